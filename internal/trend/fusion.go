package trend

// fusion.go turns the per-analyzer signals of one analysis call into a
// single confidence-scored directional verdict.

// directionScore aggregates one direction's signals: duplicate same-source
// signals are collapsed to the stronger one, each survivor contributes its
// quality (confidence x strength x reliability) multiplied by the
// supporting-factor bonus.
type directionScore struct {
	signals []Signal
	total   float64
}

func (d directionScore) count() int { return len(d.signals) }

// average is the mean boosted quality, the confidence basis for the
// direction
func (d directionScore) average() float64 {
	if len(d.signals) == 0 {
		return 0
	}
	return d.total / float64(len(d.signals))
}

// factorBonus multiplies a signal's quality by up to the configured cap for
// corroborating supporting factors
func factorBonus(s Signal, cap float64) float64 {
	bonus := 1.0
	for factor, boost := range qualityBoostFactors {
		if s.HasFactor(factor) {
			bonus += boost
		}
	}
	if bonus > cap {
		bonus = cap
	}
	return bonus
}

// scoreDirection collapses duplicates and sums boosted qualities
func scoreDirection(signals []Signal, cfg Config) directionScore {
	bySource := make(map[string]Signal)
	for _, s := range signals {
		if prev, ok := bySource[s.Source]; !ok || s.Quality() > prev.Quality() {
			bySource[s.Source] = s
		}
	}

	var ds directionScore
	for _, s := range bySource {
		ds.signals = append(ds.signals, s)
		ds.total += s.Quality() * factorBonus(s, cfg.SupportingFactorBonusMax)
	}
	return ds
}

// FuseSignals groups signals by direction, resolves conflicts, and returns
// the overall verdict with its fused confidence.
//
// When both directions carry signals the stronger one wins but is penalized
// by (ConflictPenaltyBase - ConflictPenaltyScale x weaker/stronger): evenly
// matched opposition halves the verdict, a lopsided one costs only 20%. A
// lone direction instead earns a consensus bonus for multiple confirming
// sources.
func FuseSignals(signals []Signal, cfg Config) (Direction, float64, []Signal) {
	var bullish, bearish []Signal
	for _, s := range signals {
		switch s.Type.Direction() {
		case Bullish:
			bullish = append(bullish, s)
		case Bearish:
			bearish = append(bearish, s)
		}
	}

	bull := scoreDirection(bullish, cfg)
	bear := scoreDirection(bearish, cfg)

	switch {
	case bull.count() == 0 && bear.count() == 0:
		return Neutral, 0, nil

	case bull.count() > 0 && bear.count() > 0:
		winner, loser := bull, bear
		direction := Bullish
		if bear.total > bull.total {
			winner, loser = bear, bull
			direction = Bearish
		} else if bull.total == bear.total {
			// Dead heat: no tradable verdict, report the penalized residue
			penalty := cfg.ConflictPenaltyBase - cfg.ConflictPenaltyScale
			return Neutral, clamp01(bull.average() * penalty), nil
		}

		ratio := loser.total / winner.total
		penalty := cfg.ConflictPenaltyBase - cfg.ConflictPenaltyScale*ratio
		return direction, clamp01(winner.average() * penalty), winner.signals

	default:
		winner := bull
		direction := Bullish
		if bear.count() > 0 {
			winner = bear
			direction = Bearish
		}

		bonus := 1.0
		if winner.count() >= 3 {
			bonus += cfg.ConsensusBonusTriple
		} else if winner.count() >= 2 {
			bonus += cfg.ConsensusBonusDouble
		}
		return direction, clamp01(winner.average() * bonus), winner.signals
	}
}

package trend

// filters.go is the independently testable signal filtering pipeline. Each
// stage is a pure function over an already-computed signal list; composing
// the stages is idempotent on their own output.

// FilterSignalsByConfidence drops signals below the minimum confidence
func FilterSignalsByConfidence(signals []Signal, minConfidence float64) []Signal {
	var out []Signal
	for _, s := range signals {
		if s.Confidence >= minConfidence {
			out = append(out, s)
		}
	}
	return out
}

// FilterSignalsBySourceQuality drops signals below their source's minimum
// quality (confidence x strength x reliability)
func FilterSignalsBySourceQuality(signals []Signal) []Signal {
	var out []Signal
	for _, s := range signals {
		threshold, ok := sourceQualityThreshold[s.Source]
		if !ok {
			threshold = 0.6
		}
		if s.Quality() >= threshold {
			out = append(out, s)
		}
	}
	return out
}

// FilterConflictingSignals resolves direction conflicts: when both
// directions are present only the higher-total-quality direction survives;
// an exact tie keeps neither.
func FilterConflictingSignals(signals []Signal) []Signal {
	var bullish, bearish []Signal
	bullTotal, bearTotal := 0.0, 0.0

	for _, s := range signals {
		switch s.Type.Direction() {
		case Bullish:
			bullish = append(bullish, s)
			bullTotal += s.Quality()
		case Bearish:
			bearish = append(bearish, s)
			bearTotal += s.Quality()
		}
	}

	if len(bullish) == 0 {
		return bearish
	}
	if len(bearish) == 0 {
		return bullish
	}
	if bullTotal > bearTotal {
		return bullish
	}
	if bearTotal > bullTotal {
		return bearish
	}
	return nil
}

// FilterSignalsBySupportingFactors drops signals with fewer supporting
// factors than their source's floor: 1 for market_structure and divergence,
// 2 for everything else
func FilterSignalsBySupportingFactors(signals []Signal) []Signal {
	var out []Signal
	for _, s := range signals {
		if len(s.SupportingFactors) >= minSupportingFactors(s.Source) {
			out = append(out, s)
		}
	}
	return out
}

// GetTrendSignals returns the surviving signals of a computed result,
// optionally restricted to one direction
func GetTrendSignals(result *Result, direction Direction) []Signal {
	if result == nil {
		return nil
	}
	if direction == "" || direction == Neutral {
		return result.Signals
	}

	var out []Signal
	for _, s := range result.Signals {
		if s.Type.Direction() == direction {
			out = append(out, s)
		}
	}
	return out
}

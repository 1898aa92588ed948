package trend

import (
	"trendbot/internal/indicators"
	"trendbot/internal/market"
)

// ShouldTradeTrend gates an entry in the requested direction. With a
// crossover-type signal present the fused confidence must clear the
// configured minimum and the higher timeframe must not contradict; without
// one it falls back to a continuous directional score instead of blocking
// outright.
func (e *Engine) ShouldTradeTrend(klines []market.Kline, direction Direction, symbol string) (bool, float64) {
	if direction != Bullish && direction != Bearish {
		return false, 0
	}

	result := e.AnalyzeTrendChange(klines, symbol)

	hasCrossover := false
	for _, s := range result.Signals {
		if s.Type.IsCrossover() && s.Type.Direction() == direction {
			hasCrossover = true
			break
		}
	}

	if !hasCrossover {
		score := e.directionalScore(klines, direction)
		return score >= e.config.DirectionalScoreThreshold, score
	}

	confidence := result.Confidence
	if result.Direction != direction {
		return false, 0
	}

	if e.config.MTFAlignmentEnabled {
		if out := result.RawOutputs[SourceMultiTimeframe]; out != nil && out.Alignment != nil {
			a := out.Alignment
			if a.Direction != Neutral && a.Direction != direction {
				// Higher timeframe disagrees: halve confidence and block
				confidence /= 2
				e.logger.Debug().
					Str("symbol", symbol).
					Str("direction", string(direction)).
					Str("higher_tf", a.HigherTimeframe).
					Float64("confidence", confidence).
					Msg("trade blocked by higher timeframe contradiction")
				return false, confidence
			}
		}
	}

	if confidence < e.config.MinConfidence {
		return false, confidence
	}
	return true, confidence
}

// directionalScore is the continuous fallback when no crossover signal
// exists for the direction: EMA separation weighted 0.5, Aroon dominance
// 0.3, price-vs-20-period-EMA sign 0.2.
func (e *Engine) directionalScore(klines []market.Kline, direction Direction) float64 {
	if len(klines) < e.config.EMASlowPeriod {
		return 0
	}

	fast := indicators.EMA(klines, e.config.EMAFastPeriod)
	slow := indicators.EMA(klines, e.config.EMASlowPeriod)
	up, down := indicators.Aroon(klines, e.config.AroonPeriod)
	lastClose := klines[len(klines)-1].Close

	// EMA separation, saturating at a 2% relative gap
	emaScore := 0.5
	if slow > 0 {
		separation := (fast - slow) / slow
		emaScore = clamp01(0.5 + separation/0.02*0.5)
	}

	// Aroon dominance normalized from [-100,100] to [0,1]
	aroonScore := clamp01(0.5 + (up-down)/200)

	// Price side of the 20-period EMA
	ema20 := indicators.EMA(klines, 20)
	priceScore := 0.0
	if lastClose > ema20 {
		priceScore = 1.0
	}

	if direction == Bearish {
		emaScore = 1 - emaScore
		aroonScore = 1 - aroonScore
		priceScore = 1 - priceScore
	}

	return 0.5*emaScore + 0.3*aroonScore + 0.2*priceScore
}

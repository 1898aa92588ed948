package trendline

import (
	"math"
	"time"

	"trendbot/internal/indicators"
	"trendbot/internal/market"
)

// DetectBreaks checks each identified line against recent price action and
// returns confirmed breaks. A break fires when the close violates the
// projected line value by more than the (optionally volatility-scaled) break
// threshold, holding for at least 2 of the last 3 bars.
func (a *Analyzer) DetectBreaks(klines []market.Kline, lines []Trendline) []Break {
	if len(klines) < 3 {
		return nil
	}

	threshold := a.effectiveBreakThreshold(klines)

	var breaks []Break
	for _, line := range lines {
		projected := a.ProjectValue(klines, line)
		if projected <= 0 {
			continue
		}

		if !a.isBroken(klines, line, projected, threshold) {
			continue
		}

		lastClose := klines[len(klines)-1].Close
		volumeOK := a.confirmVolume(klines)
		retestOK := a.confirmRetest(klines, line, projected)

		breaks = append(breaks, Break{
			Line:               line,
			BreakPoint:         lastClose,
			VolumeConfirmation: volumeOK,
			RetestConfirmed:    retestOK,
			BreakStrength:      a.breakStrength(line, projected, lastClose, volumeOK),
		})
	}

	if len(breaks) > 0 {
		a.logger.Info().
			Int("breaks", len(breaks)).
			Float64("threshold", threshold).
			Msg("trendline breaks detected")
	}

	return breaks
}

// DetectBreaksEnhanced runs DetectBreaks and augments each break strength
// with sustainability, volume-pattern, broader-trend-alignment, and advanced
// volume components.
func (a *Analyzer) DetectBreaksEnhanced(klines []market.Kline, lines []Trendline) []Break {
	breaks := a.DetectBreaks(klines, lines)

	for i := range breaks {
		bonus := 0.0

		if a.violationBarCount(klines, breaks[i].Line) == 3 {
			bonus += 0.1 // sustained on all of the last 3 bars
		}
		if expansion, accel := a.volumeExpansion(klines); expansion >= 0.3 || accel >= 0.1 {
			bonus += 0.05
		}
		if a.alignsWithTrend(klines, breaks[i].Line) {
			bonus += 0.05
		}
		if a.volumeStrength != nil && a.volumeStrength(klines) > 0.7 {
			bonus += 0.05
		}

		breaks[i].BreakStrength = clamp01(breaks[i].BreakStrength + bonus)
	}

	return breaks
}

// ProjectValue estimates the line's value at the latest bar. Bar offset
// since the line's end anchor is approximated from the median bar interval;
// this drifts slightly from an exact index replay and is kept deliberately.
func (a *Analyzer) ProjectValue(klines []market.Kline, line Trendline) float64 {
	interval := medianBarInterval(klines)
	if interval <= 0 {
		return line.End.Price
	}

	elapsed := klines[len(klines)-1].Time().Sub(line.End.Timestamp)
	offsetBars := float64(elapsed) / float64(interval)
	if offsetBars < 0 {
		offsetBars = 0
	}

	return line.End.Price + line.Slope*offsetBars
}

// effectiveBreakThreshold scales the configured threshold by recent 20-bar
// volatility when enabled: noisy series demand a larger violation, quiet
// ones a smaller one.
func (a *Analyzer) effectiveBreakThreshold(klines []market.Kline) float64 {
	threshold := a.config.BreakThreshold
	if !a.config.VolatilityScaling {
		return threshold
	}

	vol := indicators.Volatility(klines, 20)
	const baseline = 0.01 // 1% reference volatility
	if vol <= 0 {
		return threshold
	}

	scale := vol / baseline
	if scale < 0.5 {
		scale = 0.5
	} else if scale > 2.0 {
		scale = 2.0
	}
	return threshold * scale
}

// isBroken requires the latest close beyond the threshold on the violating
// side, with the violation holding on at least 2 of the last 3 bars
func (a *Analyzer) isBroken(klines []market.Kline, line Trendline, projected, threshold float64) bool {
	last := klines[len(klines)-1].Close

	if line.LineType == LineSupport {
		if last >= projected*(1-threshold) {
			return false
		}
	} else {
		if last <= projected*(1+threshold) {
			return false
		}
	}

	return a.violationBarCount(klines, line) >= 2
}

// violationBarCount counts how many of the last 3 bars closed on the
// violating side of the projected line
func (a *Analyzer) violationBarCount(klines []market.Kline, line Trendline) int {
	interval := medianBarInterval(klines)

	count := 0
	for i := len(klines) - 3; i < len(klines); i++ {
		if i < 0 {
			continue
		}

		value := line.End.Price
		if interval > 0 {
			offset := float64(klines[i].Time().Sub(line.End.Timestamp)) / float64(interval)
			if offset > 0 {
				value = line.End.Price + line.Slope*offset
			}
		}

		if line.LineType == LineSupport && klines[i].Close < value {
			count++
		} else if line.LineType == LineResistance && klines[i].Close > value {
			count++
		}
	}
	return count
}

// confirmVolume checks break volume: one strong signal confirms outright,
// two moderate signals together also confirm.
func (a *Analyzer) confirmVolume(klines []market.Kline) bool {
	strong := 0
	moderate := 0

	// Spike: max of the last 3 bars vs the 20-bar average preceding them
	spikeMax := 0.0
	for i := len(klines) - 3; i < len(klines); i++ {
		if i >= 0 && klines[i].Volume > spikeMax {
			spikeMax = klines[i].Volume
		}
	}
	if avg := market.AverageVolumeExcludingTail(klines, 20, 3); avg > 0 {
		ratio := spikeMax / avg
		if ratio >= a.config.VolumeConfirmationThreshold {
			strong++
		} else if ratio >= a.config.VolumeConfirmationThreshold*0.75 {
			moderate++
		}
	}

	// Expansion: recent 5-bar average vs the prior 10, plus acceleration
	// inside the recent window
	expansion, accel := a.volumeExpansion(klines)
	if expansion >= 0.3 || accel >= 0.1 {
		strong++
	} else if expansion >= 0.15 {
		moderate++
	}

	// External volume-strength helper
	if a.volumeStrength != nil {
		vs := a.volumeStrength(klines)
		if vs > 0.7 {
			strong++
		} else if vs > 0.5 {
			moderate++
		}
	}

	return strong >= 1 || moderate >= 2
}

// volumeExpansion returns the 5-bar vs prior-10-bar volume expansion ratio
// and the intra-window acceleration (last bar vs window average)
func (a *Analyzer) volumeExpansion(klines []market.Kline) (expansion, acceleration float64) {
	if len(klines) < 15 {
		return 0, 0
	}

	recent := market.AverageVolume(klines, 5)
	prior := market.AverageVolumeExcludingTail(klines, 10, 5)
	if prior > 0 {
		expansion = recent/prior - 1
	}
	if recent > 0 {
		acceleration = klines[len(klines)-1].Volume/recent - 1
	}
	return expansion, acceleration
}

// breakStrength scores a break: 0.3 base, magnitude normalized to 2% of the
// line value capped at +0.25, 0.15 x line strength, +0.25 volume confirmed
// or -0.2 unconfirmed, up to +0.1 for touches beyond the defining pair
func (a *Analyzer) breakStrength(line Trendline, projected, breakPrice float64, volumeOK bool) float64 {
	strength := 0.3

	if projected > 0 {
		magnitude := math.Abs(breakPrice-projected) / projected
		strength += math.Min(0.25, magnitude/0.02*0.25)
	}

	strength += 0.15 * line.Strength

	if volumeOK {
		strength += 0.25
	} else {
		strength -= 0.2
	}

	extraTouches := line.TouchPoints - 2
	if extraTouches > 0 {
		strength += math.Min(0.1, float64(extraTouches)*0.025)
	}

	return clamp01(strength)
}

// confirmRetest looks for price revisiting the broken level from the new
// side and closing back on the breakout side within the retest lookback
func (a *Analyzer) confirmRetest(klines []market.Kline, line Trendline, projected float64) bool {
	lookback := a.config.RetestLookback
	if lookback <= 0 || len(klines) < 2 {
		return false
	}

	start := len(klines) - lookback
	if start < 0 {
		start = 0
	}

	tol := a.config.TouchTolerance * 2
	for i := start; i < len(klines)-1; i++ {
		if line.LineType == LineSupport {
			// Broken support acts as resistance: wick back up to it, close below
			touched := klines[i].High >= projected*(1-tol)
			heldBelow := klines[i].Close < projected
			if touched && heldBelow {
				return true
			}
		} else {
			touched := klines[i].Low <= projected*(1+tol)
			heldAbove := klines[i].Close > projected
			if touched && heldAbove {
				return true
			}
		}
	}
	return false
}

// ConfirmRetestExtended accepts everything confirmRetest does, plus two or
// more retest touches holding at least 70% of the time even when no single
// bar satisfies the base criterion
func (a *Analyzer) ConfirmRetestExtended(klines []market.Kline, line Trendline) bool {
	projected := a.ProjectValue(klines, line)
	if projected <= 0 {
		return false
	}

	if a.confirmRetest(klines, line, projected) {
		return true
	}

	lookback := a.config.RetestLookback
	start := len(klines) - lookback
	if start < 0 {
		start = 0
	}

	tol := a.config.TouchTolerance * 2
	touches, held := 0, 0
	for i := start; i < len(klines); i++ {
		var touched, holding bool
		if line.LineType == LineSupport {
			touched = klines[i].High >= projected*(1-tol)
			holding = klines[i].Close < projected
		} else {
			touched = klines[i].Low <= projected*(1+tol)
			holding = klines[i].Close > projected
		}
		if touched {
			touches++
			if holding {
				held++
			}
		}
	}

	return touches >= 2 && float64(held)/float64(touches) >= 0.7
}

// alignsWithTrend reports whether the break direction matches the broader
// 50-bar price drift
func (a *Analyzer) alignsWithTrend(klines []market.Kline, line Trendline) bool {
	if len(klines) < 50 {
		return false
	}

	drift := klines[len(klines)-1].Close - klines[len(klines)-50].Close
	if line.LineType == LineSupport {
		return drift < 0 // support break is bearish
	}
	return drift > 0
}

// medianBarInterval estimates the bar spacing from close-time deltas
func medianBarInterval(klines []market.Kline) time.Duration {
	if len(klines) < 2 {
		return 0
	}

	// Sample up to the last 20 deltas; bars are regular so a few suffice
	start := len(klines) - 21
	if start < 0 {
		start = 0
	}

	var deltas []int64
	for i := start + 1; i < len(klines); i++ {
		d := klines[i].CloseTime - klines[i-1].CloseTime
		if d > 0 {
			deltas = append(deltas, d)
		}
	}
	if len(deltas) == 0 {
		return 0
	}

	// Median by simple selection; the slice is tiny
	for i := 0; i < len(deltas); i++ {
		for j := i + 1; j < len(deltas); j++ {
			if deltas[j] < deltas[i] {
				deltas[i], deltas[j] = deltas[j], deltas[i]
			}
		}
	}
	return time.Duration(deltas[len(deltas)/2]) * time.Millisecond
}

// Package indicators wraps go-talib for the indicator math the trend engine
// needs outside its plug-in analyzers: EMA separation for the directional
// fallback score, Aroon dominance, and rolling volatility for break
// threshold scaling.
package indicators

import (
	"math"

	"github.com/markcheno/go-talib"

	"trendbot/internal/market"
)

// VolumeStrengthFunc is the synchronous external volume-strength helper.
// Implementations must be fast and side-effect-free; a nil func means no
// external volume signal is available.
type VolumeStrengthFunc func(klines []market.Kline) float64

// EMA returns the latest EMA value for the period, or 0 when the series is
// too short
func EMA(klines []market.Kline, period int) float64 {
	if len(klines) < period || period <= 0 {
		return 0
	}
	series := sanitize(talib.Ema(market.Closes(klines), period))
	return lastValid(series)
}

// EMASeries returns the sanitized EMA series for the period
func EMASeries(klines []market.Kline, period int) []float64 {
	if len(klines) < period || period <= 0 {
		return nil
	}
	return sanitize(talib.Ema(market.Closes(klines), period))
}

// Aroon returns the latest Aroon up and down values for the period
func Aroon(klines []market.Kline, period int) (up, down float64) {
	if len(klines) <= period || period <= 0 {
		return 0, 0
	}
	downSeries, upSeries := talib.Aroon(market.Highs(klines), market.Lows(klines), period)
	return lastValid(sanitize(upSeries)), lastValid(sanitize(downSeries))
}

// Volatility returns the rolling standard deviation of closes over the
// period, expressed relative to the latest close. Used to scale break
// thresholds up in noisy markets and down in quiet ones.
func Volatility(klines []market.Kline, period int) float64 {
	if len(klines) < period || period <= 1 {
		return 0
	}
	series := sanitize(talib.StdDev(market.Closes(klines), period, 1.0))
	sd := lastValid(series)

	last := klines[len(klines)-1].Close
	if last <= 0 {
		return 0
	}
	return sd / last
}

// sanitize replaces NaN/Inf values with zero so warm-up bars never leak into
// downstream math
func sanitize(series []float64) []float64 {
	for i, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			series[i] = 0
		}
	}
	return series
}

// lastValid returns the last non-zero value of the series, or 0
func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if series[i] != 0 {
			return series[i]
		}
	}
	return 0
}

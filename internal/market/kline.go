package market

import (
	"math"
	"time"
)

// Kline represents a single OHLCV candlestick
type Kline struct {
	OpenTime  int64   `json:"openTime"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	CloseTime int64   `json:"closeTime"`
}

// Time returns the candle close time as time.Time
func (k Kline) Time() time.Time {
	return time.UnixMilli(k.CloseTime)
}

// IsComplete reports whether all OHLC fields carry usable values
func (k Kline) IsComplete() bool {
	for _, v := range []float64{k.Open, k.High, k.Low, k.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return false
		}
	}
	return true
}

// Closes extracts the close series from klines
func Closes(klines []Kline) []float64 {
	out := make([]float64, len(klines))
	for i, k := range klines {
		out[i] = k.Close
	}
	return out
}

// Highs extracts the high series from klines
func Highs(klines []Kline) []float64 {
	out := make([]float64, len(klines))
	for i, k := range klines {
		out[i] = k.High
	}
	return out
}

// Lows extracts the low series from klines
func Lows(klines []Kline) []float64 {
	out := make([]float64, len(klines))
	for i, k := range klines {
		out[i] = k.Low
	}
	return out
}

// Volumes extracts the volume series from klines
func Volumes(klines []Kline) []float64 {
	out := make([]float64, len(klines))
	for i, k := range klines {
		out[i] = k.Volume
	}
	return out
}

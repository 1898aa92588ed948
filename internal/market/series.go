package market

import (
	"fmt"
	"hash/fnv"
	"math"
)

// ValidationIssue describes a single integrity problem found in a series
type ValidationIssue struct {
	Index  int
	Reason string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("bar %d: %s", v.Index, v.Reason)
}

// Validate checks a kline series for sufficient length and OHLC integrity.
// It returns all issues found; an empty slice means the series is usable.
func Validate(klines []Kline, minBars int) []ValidationIssue {
	var issues []ValidationIssue

	if len(klines) < minBars {
		issues = append(issues, ValidationIssue{
			Index:  -1,
			Reason: fmt.Sprintf("insufficient history: %d bars, need %d", len(klines), minBars),
		})
		return issues
	}

	for i, k := range klines {
		if !k.IsComplete() {
			issues = append(issues, ValidationIssue{Index: i, Reason: "missing or non-positive OHLC value"})
			continue
		}
		if k.High < k.Low {
			issues = append(issues, ValidationIssue{Index: i, Reason: "high below low"})
		}
		if k.Close > k.High || k.Close < k.Low {
			issues = append(issues, ValidationIssue{Index: i, Reason: "close outside high/low range"})
		}
		if math.IsNaN(k.Volume) || k.Volume < 0 {
			issues = append(issues, ValidationIssue{Index: i, Reason: "invalid volume"})
		}
	}

	return issues
}

// maxRepairRun bounds how long a NaN run Repair will forward-fill.
const maxRepairRun = 3

// Repair forward-fills short NaN/zero runs in the tail of the series using
// the last complete bar. Runs longer than maxRepairRun are left untouched so
// validation still rejects structurally broken input. Returns a repaired copy
// and the number of bars touched.
func Repair(klines []Kline) ([]Kline, int) {
	if len(klines) == 0 {
		return klines, 0
	}

	out := make([]Kline, len(klines))
	copy(out, klines)

	repaired := 0
	run := 0
	for i := 1; i < len(out); i++ {
		if out[i].IsComplete() {
			run = 0
			continue
		}
		run++
		if run > maxRepairRun || !out[i-1].IsComplete() {
			continue
		}
		prev := out[i-1]
		out[i].Open = prev.Close
		out[i].High = prev.Close
		out[i].Low = prev.Close
		out[i].Close = prev.Close
		if math.IsNaN(out[i].Volume) || out[i].Volume < 0 {
			out[i].Volume = 0
		}
		repaired++
	}

	return out, repaired
}

// Fingerprint hashes the trailing OHLC values of a series into a stable hex
// key. Two series with byte-identical tails produce the same fingerprint.
func Fingerprint(klines []Kline, tailBars int) string {
	if tailBars <= 0 || tailBars > len(klines) {
		tailBars = len(klines)
	}

	h := fnv.New64a()
	buf := make([]byte, 8)
	for _, k := range klines[len(klines)-tailBars:] {
		for _, v := range []float64{k.Open, k.High, k.Low, k.Close} {
			bits := math.Float64bits(v)
			for i := 0; i < 8; i++ {
				buf[i] = byte(bits >> (8 * i))
			}
			h.Write(buf)
		}
	}

	return fmt.Sprintf("%016x", h.Sum64())
}

// AverageVolume computes the mean volume over the trailing period
func AverageVolume(klines []Kline, period int) float64 {
	if len(klines) == 0 {
		return 0
	}
	if period <= 0 || period > len(klines) {
		period = len(klines)
	}

	sum := 0.0
	for i := len(klines) - period; i < len(klines); i++ {
		sum += klines[i].Volume
	}
	return sum / float64(period)
}

// AverageVolumeExcludingTail computes the mean volume over period bars
// ending before the last exclude bars. Used to compare a recent volume spike
// against the baseline that precedes it.
func AverageVolumeExcludingTail(klines []Kline, period, exclude int) float64 {
	end := len(klines) - exclude
	if end <= 0 {
		return 0
	}
	return AverageVolume(klines[:end], period)
}

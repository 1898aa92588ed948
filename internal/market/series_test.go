package market

import (
	"math"
	"testing"
)

func makeSeries(n int, base float64) []Kline {
	klines := make([]Kline, n)
	for i := 0; i < n; i++ {
		price := base + float64(i)*0.5
		klines[i] = Kline{
			OpenTime:  int64(i) * 3600000,
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price + 0.5,
			Volume:    100,
			CloseTime: int64(i+1)*3600000 - 1,
		}
	}
	return klines
}

// TestValidateCleanSeries verifies a well-formed series produces no issues
func TestValidateCleanSeries(t *testing.T) {
	klines := makeSeries(60, 100)

	issues := Validate(klines, 50)
	if len(issues) != 0 {
		t.Fatalf("Expected no issues, got %d: %v", len(issues), issues)
	}
}

// TestValidateInsufficientHistory verifies the length gate fires first
func TestValidateInsufficientHistory(t *testing.T) {
	klines := makeSeries(30, 100)

	issues := Validate(klines, 50)
	if len(issues) != 1 {
		t.Fatalf("Expected 1 issue, got %d", len(issues))
	}
	if issues[0].Index != -1 {
		t.Errorf("Expected series-level issue index -1, got %d", issues[0].Index)
	}
}

// TestValidateFlagsBadBars verifies per-bar integrity checks
func TestValidateFlagsBadBars(t *testing.T) {
	klines := makeSeries(60, 100)
	klines[10].Close = math.NaN()
	klines[20].High = klines[20].Low - 5
	klines[30].Volume = -1

	issues := Validate(klines, 50)
	if len(issues) != 3 {
		t.Fatalf("Expected 3 issues, got %d: %v", len(issues), issues)
	}
}

// TestRepairForwardFillsShortRuns verifies a short NaN run in the tail is
// filled from the last complete bar
func TestRepairForwardFillsShortRuns(t *testing.T) {
	klines := makeSeries(60, 100)
	lastGood := klines[56].Close
	for i := 57; i < 60; i++ {
		klines[i].Open = math.NaN()
		klines[i].High = math.NaN()
		klines[i].Low = math.NaN()
		klines[i].Close = math.NaN()
	}

	repaired, touched := Repair(klines)
	if touched != 3 {
		t.Fatalf("Expected 3 repaired bars, got %d", touched)
	}
	for i := 57; i < 60; i++ {
		if repaired[i].Close != lastGood {
			t.Errorf("Bar %d: expected forward-filled close %f, got %f", i, lastGood, repaired[i].Close)
		}
	}
	if issues := Validate(repaired, 50); len(issues) != 0 {
		t.Errorf("Repaired series should validate, got %v", issues)
	}

	// Original must be untouched
	if !math.IsNaN(klines[57].Close) {
		t.Error("Repair must not mutate the input series")
	}
}

// TestRepairLeavesLongRunsAlone verifies runs past the fill limit stay broken
func TestRepairLeavesLongRunsAlone(t *testing.T) {
	klines := makeSeries(60, 100)
	for i := 54; i < 60; i++ {
		klines[i].Close = math.NaN()
		klines[i].Open = math.NaN()
		klines[i].High = math.NaN()
		klines[i].Low = math.NaN()
	}

	repaired, touched := Repair(klines)
	if touched != maxRepairRun {
		t.Fatalf("Expected %d repaired bars, got %d", maxRepairRun, touched)
	}
	if issues := Validate(repaired, 50); len(issues) == 0 {
		t.Error("Series with a long broken run should still fail validation")
	}
}

// TestFingerprintStability verifies identical tails hash identically and a
// changed tail bar changes the key
func TestFingerprintStability(t *testing.T) {
	a := makeSeries(100, 100)
	b := makeSeries(100, 100)

	if Fingerprint(a, 20) != Fingerprint(b, 20) {
		t.Error("Identical series must produce identical fingerprints")
	}

	// A change outside the tail window is invisible to the key
	b[10].Close += 1
	if Fingerprint(a, 20) != Fingerprint(b, 20) {
		t.Error("Change outside the tail window should not affect the fingerprint")
	}

	// A change inside the tail window must change it
	b[95].Close += 1
	if Fingerprint(a, 20) == Fingerprint(b, 20) {
		t.Error("Change inside the tail window must change the fingerprint")
	}
}

// TestAverageVolumeExcludingTail verifies the baseline skips the spike bars
func TestAverageVolumeExcludingTail(t *testing.T) {
	klines := makeSeries(60, 100)
	klines[58].Volume = 1000
	klines[59].Volume = 1000

	baseline := AverageVolumeExcludingTail(klines, 20, 2)
	if baseline != 100 {
		t.Errorf("Expected baseline 100, got %f", baseline)
	}

	withSpike := AverageVolume(klines, 20)
	if withSpike <= baseline {
		t.Errorf("Spike should lift the trailing average: %f vs %f", withSpike, baseline)
	}
}

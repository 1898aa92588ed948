package resource

import (
	"errors"
	"testing"
)

// TestMemoryManagerCheck verifies the ceiling comparison with a fake reader
func TestMemoryManagerCheck(t *testing.T) {
	mm := NewMemoryManager(500)
	mm.SetReader(func() float64 { return 300 })

	over, used := mm.Check()
	if over {
		t.Errorf("300MB must sit under a 500MB ceiling, reported over at %f", used)
	}

	mm.SetReader(func() float64 { return 600 })
	over, used = mm.Check()
	if !over || used != 600 {
		t.Errorf("600MB must exceed a 500MB ceiling, got over=%v used=%f", over, used)
	}

	mm.SetCeiling(1000)
	if over, _ = mm.Check(); over {
		t.Error("Raised ceiling must clear the same usage")
	}
}

// TestMemoryManagerCleanupCount verifies cleanup passes are counted
func TestMemoryManagerCleanupCount(t *testing.T) {
	mm := NewMemoryManager(500)
	mm.SetReader(func() float64 { return 100 })

	mm.ForceCleanup()
	mm.ForceCleanup()

	if got := mm.Stats()["cleanups"].(int); got != 2 {
		t.Errorf("Expected 2 cleanups, got %d", got)
	}
}

// TestErrorRecoveryManager verifies per-kind counting and last-failure
// snapshots
func TestErrorRecoveryManager(t *testing.T) {
	rm := NewErrorRecoveryManager()

	rm.Record("data_validation", "BTCUSDT", errors.New("bad bar"))
	rm.Record("data_validation", "ETHUSDT", errors.New("worse bar"))
	rm.Record("analysis_timeout", "BTCUSDT", errors.New("too slow"))
	rm.Record("analysis_timeout", "", nil) // nil errors are ignored

	if rm.Count("data_validation") != 2 {
		t.Errorf("Expected 2 validation failures, got %d", rm.Count("data_validation"))
	}
	if rm.Count("analysis_timeout") != 1 {
		t.Errorf("Expected 1 timeout, got %d", rm.Count("analysis_timeout"))
	}

	last, ok := rm.Last("data_validation")
	if !ok || last.Symbol != "ETHUSDT" || last.Message != "worse bar" {
		t.Errorf("Expected the latest failure snapshot, got %+v", last)
	}

	rm.Reset()
	if len(rm.Counts()) != 0 {
		t.Error("Reset must clear all counters")
	}
	if _, ok := rm.Last("data_validation"); ok {
		t.Error("Reset must clear last-failure snapshots")
	}
}

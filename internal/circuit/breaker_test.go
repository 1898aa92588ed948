package circuit

import (
	"errors"
	"testing"
	"time"
)

// TestBreakerOpensAfterThreshold tests that a failure streak opens the breaker
func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 3, RecoveryTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		if !b.Allow() {
			t.Fatalf("breaker should allow call %d while closed", i)
		}
		b.RecordFailure(errors.New("boom"))
	}

	if b.State() != StateClosed {
		t.Errorf("breaker should stay closed below threshold, got %s", b.State())
	}

	b.Allow()
	b.RecordFailure(errors.New("boom"))

	if b.State() != StateOpen {
		t.Errorf("breaker should open after 3 consecutive failures, got %s", b.State())
	}
	if b.Allow() {
		t.Error("open breaker should reject calls within recovery timeout")
	}
}

// TestBreakerSuccessResetsStreak tests that a success clears the failure count
func TestBreakerSuccessResetsStreak(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 3, RecoveryTimeout: time.Minute})

	b.RecordFailure(errors.New("boom"))
	b.RecordFailure(errors.New("boom"))
	b.RecordSuccess()
	b.RecordFailure(errors.New("boom"))
	b.RecordFailure(errors.New("boom"))

	if b.State() != StateClosed {
		t.Errorf("streak should reset on success, got state %s", b.State())
	}
}

// TestBreakerHalfOpenProbe tests the single-probe recovery cycle
func TestBreakerHalfOpenProbe(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, RecoveryTimeout: 30 * time.Second})

	current := time.Now()
	b.setClock(func() time.Time { return current })

	b.RecordFailure(errors.New("boom"))
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}
	if b.Allow() {
		t.Fatal("should reject before recovery timeout")
	}

	// Advance past the recovery timeout: exactly one probe is admitted
	current = current.Add(31 * time.Second)
	if !b.Allow() {
		t.Fatal("should allow one probe after recovery timeout")
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half_open during probe, got %s", b.State())
	}
	if b.Allow() {
		t.Error("should reject second call while probe is outstanding")
	}

	// Probe fails: breaker re-opens immediately
	b.RecordFailure(errors.New("boom"))
	if b.State() != StateOpen {
		t.Errorf("failed probe should re-open breaker, got %s", b.State())
	}

	// Next cycle: probe succeeds, breaker closes
	current = current.Add(31 * time.Second)
	if !b.Allow() {
		t.Fatal("should allow probe on second recovery")
	}
	b.RecordSuccess()
	if b.State() != StateClosed {
		t.Errorf("successful probe should close breaker, got %s", b.State())
	}
	if !b.Allow() {
		t.Error("closed breaker should allow calls")
	}
}

// TestBreakerStats tests the diagnostics snapshot
func TestBreakerStats(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 2, RecoveryTimeout: time.Minute})

	b.RecordFailure(errors.New("first"))
	b.RecordFailure(errors.New("second"))
	b.Allow() // rejected

	stats := b.Stats()
	if stats["state"] != string(StateOpen) {
		t.Errorf("expected open state in stats, got %v", stats["state"])
	}
	if stats["total_failures"] != 2 {
		t.Errorf("expected 2 total failures, got %v", stats["total_failures"])
	}
	if stats["total_rejections"] != 1 {
		t.Errorf("expected 1 rejection, got %v", stats["total_rejections"])
	}
	if stats["last_failure"] != "second" {
		t.Errorf("expected last failure message, got %v", stats["last_failure"])
	}
}

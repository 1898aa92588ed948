package circuit

import (
	"sync"
	"time"
)

// BreakerState represents the circuit breaker state
type BreakerState string

const (
	StateClosed   BreakerState = "closed"    // Normal operation
	StateOpen     BreakerState = "open"      // Calls rejected
	StateHalfOpen BreakerState = "half_open" // Testing recovery
)

// BreakerConfig holds circuit breaker configuration
type BreakerConfig struct {
	FailureThreshold int           `json:"failure_threshold"` // Consecutive failures before opening
	RecoveryTimeout  time.Duration `json:"recovery_timeout"`  // Cooldown before a probe call
}

// DefaultBreakerConfig returns safe defaults
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
	}
}

// Breaker isolates a repeatedly-failing component. After FailureThreshold
// consecutive failures it opens and rejects calls for RecoveryTimeout, then
// allows exactly one probe call: success closes it, failure re-opens it.
type Breaker struct {
	config              BreakerConfig
	state               BreakerState
	consecutiveFailures int
	totalFailures       int
	totalSuccesses      int
	totalRejections     int
	lastFailure         error
	lastTripTime        time.Time
	probing             bool
	mu                  sync.Mutex
	now                 func() time.Time
}

// NewBreaker creates a closed circuit breaker
func NewBreaker(config BreakerConfig) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = DefaultBreakerConfig().RecoveryTimeout
	}
	return &Breaker{
		config: config,
		state:  StateClosed,
		now:    time.Now,
	}
}

// Allow reports whether a call may proceed. While open it rejects until the
// recovery timeout elapses, then flips to half-open and admits one probe;
// further calls are rejected until that probe is recorded.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.lastTripTime) < b.config.RecoveryTimeout {
			b.totalRejections++
			return false
		}
		b.state = StateHalfOpen
		b.probing = true
		return true
	case StateHalfOpen:
		if b.probing {
			b.totalRejections++
			return false
		}
		b.probing = true
		return true
	}
	return false
}

// RecordSuccess records a successful call and closes a half-open breaker
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalSuccesses++
	b.consecutiveFailures = 0
	b.probing = false
	b.state = StateClosed
}

// RecordFailure records a failed call; trips the breaker on a threshold
// streak or on a failed half-open probe
func (b *Breaker) RecordFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalFailures++
	b.consecutiveFailures++
	b.lastFailure = err
	b.probing = false

	if b.state == StateHalfOpen || b.consecutiveFailures >= b.config.FailureThreshold {
		b.trip()
	}
}

// trip opens the breaker; caller holds the lock
func (b *Breaker) trip() {
	b.state = StateOpen
	b.lastTripTime = b.now()
}

// UpdateConfig live-updates thresholds without disturbing breaker state
func (b *Breaker) UpdateConfig(config BreakerConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if config.FailureThreshold > 0 {
		b.config.FailureThreshold = config.FailureThreshold
	}
	if config.RecoveryTimeout > 0 {
		b.config.RecoveryTimeout = config.RecoveryTimeout
	}
}

// ForceReset manually closes the breaker and clears the failure streak
func (b *Breaker) ForceReset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.consecutiveFailures = 0
	b.probing = false
}

// State returns the current breaker state
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns current breaker statistics
func (b *Breaker) Stats() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	lastErr := ""
	if b.lastFailure != nil {
		lastErr = b.lastFailure.Error()
	}

	return map[string]interface{}{
		"state":                string(b.state),
		"consecutive_failures": b.consecutiveFailures,
		"total_failures":       b.totalFailures,
		"total_successes":      b.totalSuccesses,
		"total_rejections":     b.totalRejections,
		"last_failure":         lastErr,
		"last_trip_time":       b.lastTripTime,
	}
}

// setClock overrides the time source for tests
func (b *Breaker) setClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

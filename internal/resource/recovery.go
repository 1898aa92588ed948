package resource

import (
	"sync"
	"time"
)

// FailureRecord is a structured snapshot of one recovered failure
type FailureRecord struct {
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Symbol    string    `json:"symbol,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorRecoveryManager accumulates per-kind failure diagnostics for errors
// that were caught at the orchestrator boundary and converted into empty or
// partial results. Callers query counts instead of receiving panics.
type ErrorRecoveryManager struct {
	mu     sync.Mutex
	counts map[string]int
	last   map[string]FailureRecord
}

// NewErrorRecoveryManager creates an empty recovery manager
func NewErrorRecoveryManager() *ErrorRecoveryManager {
	return &ErrorRecoveryManager{
		counts: make(map[string]int),
		last:   make(map[string]FailureRecord),
	}
}

// Record registers a recovered failure under its taxonomy kind
func (rm *ErrorRecoveryManager) Record(kind, symbol string, err error) {
	if err == nil {
		return
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.counts[kind]++
	rm.last[kind] = FailureRecord{
		Kind:      kind,
		Message:   err.Error(),
		Symbol:    symbol,
		Timestamp: time.Now(),
	}
}

// Count returns how many failures of a kind have been recovered
func (rm *ErrorRecoveryManager) Count(kind string) int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.counts[kind]
}

// Counts returns a copy of all per-kind counters
func (rm *ErrorRecoveryManager) Counts() map[string]int {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	out := make(map[string]int, len(rm.counts))
	for k, v := range rm.counts {
		out[k] = v
	}
	return out
}

// Last returns the most recent failure of a kind, if any
func (rm *ErrorRecoveryManager) Last(kind string) (FailureRecord, bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rec, ok := rm.last[kind]
	return rec, ok
}

// Reset clears all accumulated diagnostics
func (rm *ErrorRecoveryManager) Reset() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.counts = make(map[string]int)
	rm.last = make(map[string]FailureRecord)
}

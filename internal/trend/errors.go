package trend

import "fmt"

// Error kinds used for recovery-manager bookkeeping. The public API never
// surfaces these as returned errors; they are caught at the orchestrator
// boundary and converted into empty or partial results.
const (
	KindDataValidation          = "data_validation"
	KindAnalysisTimeout         = "analysis_timeout"
	KindComponentInitialization = "component_initialization"
	KindResourceLimit           = "resource_limit"
)

// DataValidationError reports bad or insufficient input history
type DataValidationError struct {
	Symbol string
	Reason string
}

func (e *DataValidationError) Error() string {
	return fmt.Sprintf("data validation failed for %s: %s", e.Symbol, e.Reason)
}

// AnalysisTimeoutError reports an exhausted per-call time budget
type AnalysisTimeoutError struct {
	Symbol    string
	ElapsedMs int64
	BudgetMs  int64
}

func (e *AnalysisTimeoutError) Error() string {
	return fmt.Sprintf("analysis budget exceeded for %s: %dms of %dms", e.Symbol, e.ElapsedMs, e.BudgetMs)
}

// ComponentInitializationError reports a failed plug-in construction when
// graceful degradation is disabled
type ComponentInitializationError struct {
	Component string
	Cause     error
}

func (e *ComponentInitializationError) Error() string {
	return fmt.Sprintf("component %s failed to initialize: %v", e.Component, e.Cause)
}

func (e *ComponentInitializationError) Unwrap() error { return e.Cause }

// ResourceLimitError reports a memory ceiling that survived a cleanup pass
type ResourceLimitError struct {
	UsedMB    float64
	CeilingMB float64
}

func (e *ResourceLimitError) Error() string {
	return fmt.Sprintf("memory ceiling exceeded: %.1fMB used, %.1fMB allowed", e.UsedMB, e.CeilingMB)
}

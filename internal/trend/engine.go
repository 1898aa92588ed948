package trend

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trendbot/internal/cache"
	"trendbot/internal/circuit"
	"trendbot/internal/market"
	"trendbot/internal/resource"
)

// budgetSoftStop is the fraction of the analysis budget after which no
// further analyzer step is attempted
const budgetSoftStop = 0.8

// HigherTimeframeFunc supplies the higher timeframe's history for the
// multi-timeframe aligner. A nil func or nil return means no higher data.
type HigherTimeframeFunc func(symbol string) []market.Kline

// Engine orchestrates the analyzer plug-ins: it validates input, consults
// the result cache, invokes each available analyzer under its circuit
// breaker within the wall-clock budget, and fuses the surviving signals
// into one verdict. One analysis call per engine instance may be in flight
// at a time; hosts analyzing symbols concurrently use one engine each.
type Engine struct {
	config     Config
	validation ValidationResult
	logger     zerolog.Logger

	registry  Registry
	analyzers map[string]Analyzer
	status    map[string]ComponentStatus
	breakers  map[string]*circuit.Breaker

	results  *cache.ResultCache
	memory   *resource.MemoryManager
	recovery *resource.ErrorRecoveryManager

	higherTimeframe HigherTimeframeFunc
	now             func() time.Time
}

// NewEngine validates the raw configuration, constructs every registered
// analyzer, and wires the resilience infrastructure. Construction proceeds
// on config violations (the corrected config is used and the violations
// exposed); it fails only when graceful degradation is disabled and an
// analyzer slot cannot be filled.
func NewEngine(raw map[string]interface{}, registry Registry, logger zerolog.Logger) (*Engine, error) {
	validation := ValidateConfig(raw)
	cfg := validation.Config

	e := &Engine{
		config:     cfg,
		validation: validation,
		logger:     logger.With().Str("component", "trend_engine").Logger(),
		registry:   registry,
		analyzers:  make(map[string]Analyzer),
		status:     make(map[string]ComponentStatus),
		breakers:   make(map[string]*circuit.Breaker),
		results:    cache.NewResultCache(cfg.CacheSize),
		memory:     resource.NewMemoryManager(cfg.MemoryLimitMB),
		recovery:   resource.NewErrorRecoveryManager(),
		now:        time.Now,
	}

	for _, violation := range validation.Errors {
		e.logger.Warn().Str("violation", violation).Msg("config corrected")
	}

	if err := e.buildAnalyzers(); err != nil {
		return nil, err
	}

	return e, nil
}

// buildAnalyzers resolves the registry into instances plus a status map
func (e *Engine) buildAnalyzers() error {
	for _, name := range AnalyzerNames {
		factory, ok := e.registry[name]
		if !ok {
			e.status[name] = StatusImportFailed
			continue
		}

		analyzer, err := factory(e.config)
		if err != nil || analyzer == nil {
			e.status[name] = StatusInitFailed
			e.logger.Warn().Str("analyzer", name).Err(err).Msg("analyzer construction failed")
			if !e.config.GracefulDegradation {
				initErr := &ComponentInitializationError{Component: name, Cause: err}
				e.recovery.Record(KindComponentInitialization, "", initErr)
				return initErr
			}
			continue
		}

		e.analyzers[name] = analyzer
		e.status[name] = StatusAvailable
		e.breakers[name] = circuit.NewBreaker(circuit.BreakerConfig{
			FailureThreshold: e.config.BreakerFailureThreshold,
			RecoveryTimeout:  e.config.BreakerRecoveryTimeout(),
		})
	}

	if !e.config.GracefulDegradation {
		for _, name := range AnalyzerNames {
			if e.status[name] != StatusAvailable {
				initErr := &ComponentInitializationError{
					Component: name,
					Cause:     fmt.Errorf("no factory registered"),
				}
				e.recovery.Record(KindComponentInitialization, "", initErr)
				return initErr
			}
		}
	}

	return nil
}

// SetHigherTimeframeSource installs the supplier the multi-timeframe
// aligner reads from
func (e *Engine) SetHigherTimeframeSource(f HigherTimeframeFunc) {
	e.higherTimeframe = f
}

// AnalyzeTrendChange runs the full detection pipeline for one symbol. It
// never returns an error: every rejection path yields a zero-confidence
// empty result with the failure recorded in the error-count map.
func (e *Engine) AnalyzeTrendChange(klines []market.Kline, symbol string) *Result {
	started := e.now()

	if !e.config.Enabled {
		return emptyResult(symbol, e.config.Timeframe)
	}

	if !e.checkMemory() {
		return emptyResult(symbol, e.config.Timeframe)
	}

	klines, ok := e.validateInput(klines, symbol)
	if !ok {
		return emptyResult(symbol, e.config.Timeframe)
	}

	key := cache.Key{
		Symbol:      symbol,
		Timeframe:   e.config.Timeframe,
		Fingerprint: market.Fingerprint(klines, e.config.FingerprintTailBars),
	}
	if e.config.CacheEnabled {
		if cached, hit := e.results.Get(key); hit {
			snapshot := *(cached.(*Result))
			snapshot.CacheHit = true
			return &snapshot
		}
	}

	result := e.runAnalyzers(klines, symbol, started)
	result.AnalysisID = uuid.NewString()
	result.Symbol = symbol
	result.Timeframe = e.config.Timeframe
	result.Timestamp = started
	result.ElapsedMs = e.now().Sub(started).Milliseconds()

	if e.config.CacheEnabled {
		e.results.Put(key, result)
	}

	e.logger.Debug().
		Str("analysis_id", result.AnalysisID).
		Str("symbol", symbol).
		Str("direction", string(result.Direction)).
		Float64("confidence", result.Confidence).
		Int("signals", len(result.Signals)).
		Bool("partial", result.Partial).
		Int64("elapsed_ms", result.ElapsedMs).
		Msg("trend analysis complete")

	return result
}

// checkMemory enforces the advisory ceiling: over the limit it clears the
// cache, forces a collection pass, and aborts the cycle if still over
func (e *Engine) checkMemory() bool {
	over, used := e.memory.Check()
	if !over {
		return true
	}

	e.logger.Warn().Float64("used_mb", used).Msg("memory ceiling exceeded, forcing cleanup")
	e.results.Clear()
	used = e.memory.ForceCleanup()

	if used > e.config.MemoryLimitMB {
		err := &ResourceLimitError{UsedMB: used, CeilingMB: e.config.MemoryLimitMB}
		e.recovery.Record(KindResourceLimit, "", err)
		e.logger.Error().Err(err).Msg("aborting analysis cycle")
		return false
	}
	return true
}

// validateInput applies the length and integrity gates, auto-repairing the
// tail when enabled
func (e *Engine) validateInput(klines []market.Kline, symbol string) ([]market.Kline, bool) {
	issues := market.Validate(klines, e.config.MinHistoryBars)
	if len(issues) == 0 {
		return klines, true
	}

	if e.config.AutoRepairData && len(klines) >= e.config.MinHistoryBars {
		repaired, touched := market.Repair(klines)
		if touched > 0 {
			e.logger.Debug().Int("bars", touched).Str("symbol", symbol).Msg("auto-repaired history tail")
		}
		if issues = market.Validate(repaired, e.config.MinHistoryBars); len(issues) == 0 {
			return repaired, true
		}
	}

	err := &DataValidationError{Symbol: symbol, Reason: issues[0].String()}
	e.recovery.Record(KindDataValidation, symbol, err)
	e.logger.Debug().Err(err).Int("issues", len(issues)).Msg("rejecting input history")
	return nil, false
}

// runAnalyzers invokes each available analyzer under its breaker and the
// shared wall-clock budget, then filters and fuses the produced signals
func (e *Engine) runAnalyzers(klines []market.Kline, symbol string, started time.Time) *Result {
	result := &Result{
		Direction:  Neutral,
		RawOutputs: make(map[string]*Output),
	}

	budget := e.config.AnalysisBudget()
	softStop := time.Duration(float64(budget) * budgetSoftStop)

	var higher []market.Kline
	if e.higherTimeframe != nil {
		higher = e.higherTimeframe(symbol)
	}

	var signals []Signal
	timedOut := false

	for _, name := range AnalyzerNames {
		analyzer, available := e.analyzers[name]
		if !available {
			continue
		}

		if elapsed := e.now().Sub(started); elapsed >= softStop {
			if !timedOut {
				timedOut = true
				result.Partial = true
				err := &AnalysisTimeoutError{
					Symbol:    symbol,
					ElapsedMs: elapsed.Milliseconds(),
					BudgetMs:  budget.Milliseconds(),
				}
				e.recovery.Record(KindAnalysisTimeout, symbol, err)
				e.logger.Debug().Err(err).Msg("budget soft-stop reached, skipping remaining analyzers")
			}
			result.Skipped = append(result.Skipped, name)
			continue
		}

		breaker := e.breakers[name]
		if !breaker.Allow() {
			result.Skipped = append(result.Skipped, name)
			continue
		}

		out, err := e.invokeAnalyzer(analyzer, klines, higher)
		if err != nil {
			breaker.RecordFailure(err)
			e.logger.Warn().Str("analyzer", name).Err(err).Msg("analyzer failed, signal absent")
			continue
		}
		breaker.RecordSuccess()

		if out == nil {
			continue
		}
		result.RawOutputs[name] = out
		if sig := signalFromOutput(name, out, klines, e.config.MinSignalStrength); sig != nil {
			signals = append(signals, *sig)
		}
	}

	filtered := FilterSignalsByConfidence(signals, e.config.MinConfidence)
	filtered = FilterSignalsBySourceQuality(filtered)
	filtered = FilterConflictingSignals(filtered)
	filtered = FilterSignalsBySupportingFactors(filtered)

	direction, confidence, survivors := FuseSignals(filtered, e.config)
	result.Direction = direction
	result.Confidence = confidence
	result.Signals = survivors
	return result
}

// invokeAnalyzer shields the engine from a panicking plug-in; a panic is a
// soft failure like any returned error
func (e *Engine) invokeAnalyzer(analyzer Analyzer, klines, higher []market.Kline) (out *Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("analyzer panic: %v", r)
		}
	}()
	return analyzer.Analyze(klines, higher)
}

// UpdateConfig re-validates the raw map, diffs it against the current
// config, and live-updates thresholds, weights, memory ceiling, and cache
// size. The whole update is rejected when validation surfaces more than 10
// distinct violations; the cache is cleared when its size moved by more
// than 100 entries.
func (e *Engine) UpdateConfig(raw map[string]interface{}) error {
	validation := ValidateConfig(raw)
	if len(validation.Errors) > 10 {
		return fmt.Errorf("config update rejected: %d validation errors", len(validation.Errors))
	}

	old := e.config
	e.config = validation.Config
	e.validation = validation

	if diff := old.CacheSize - e.config.CacheSize; diff > 100 || diff < -100 {
		e.results.Clear()
	}
	e.results.Resize(e.config.CacheSize)
	e.memory.SetCeiling(e.config.MemoryLimitMB)

	for _, breaker := range e.breakers {
		breaker.UpdateConfig(circuit.BreakerConfig{
			FailureThreshold: e.config.BreakerFailureThreshold,
			RecoveryTimeout:  e.config.BreakerRecoveryTimeout(),
		})
	}

	// Re-run factories so analyzers pick up their slice of the new config;
	// slots that keep failing stay in their previous status
	for _, name := range AnalyzerNames {
		factory, ok := e.registry[name]
		if !ok {
			continue
		}
		if analyzer, err := factory(e.config); err == nil && analyzer != nil {
			e.analyzers[name] = analyzer
			e.status[name] = StatusAvailable
		}
	}

	e.logger.Info().
		Int("violations", len(validation.Errors)).
		Int("cache_size", e.config.CacheSize).
		Float64("memory_limit_mb", e.config.MemoryLimitMB).
		Msg("config updated")

	return nil
}

// Config returns the engine's current corrected configuration
func (e *Engine) Config() Config {
	return e.config
}

// ValidationErrors returns the corrections applied to the last accepted
// configuration
func (e *Engine) ValidationErrors() []string {
	return e.validation.Errors
}

// IsComponentAvailable reports whether an analyzer slot was filled
func (e *Engine) IsComponentAvailable(name string) bool {
	return e.status[name] == StatusAvailable
}

// ComponentStatuses returns a copy of the per-analyzer status map
func (e *Engine) ComponentStatuses() map[string]ComponentStatus {
	out := make(map[string]ComponentStatus, len(e.status))
	for k, v := range e.status {
		out[k] = v
	}
	return out
}

// ErrorCounts returns the queryable per-kind recovered-failure counters
func (e *Engine) ErrorCounts() map[string]int {
	return e.recovery.Counts()
}

// BreakerStats returns per-analyzer circuit breaker diagnostics
func (e *Engine) BreakerStats() map[string]map[string]interface{} {
	out := make(map[string]map[string]interface{}, len(e.breakers))
	for name, b := range e.breakers {
		out[name] = b.Stats()
	}
	return out
}

// CacheStats returns result-cache diagnostics
func (e *Engine) CacheStats() map[string]interface{} {
	return e.results.Stats()
}

package trend

import (
	"fmt"
	"math"
	"time"

	"trendbot/internal/trendline"
)

// Config holds every tuning parameter the engine recognizes. Values are
// produced by ValidateConfig and always lie within their documented bounds.
type Config struct {
	// Engine
	Enabled             bool    `json:"trend_detection_enabled"`
	Sensitivity         float64 `json:"trend_detection_sensitivity"` // [1,10]
	MinConfidence       float64 `json:"min_confidence"`              // [0,1]
	MinSignalStrength   float64 `json:"min_signal_strength"`         // [0,1]
	MinHistoryBars      int     `json:"min_history_bars"`            // [50,500]
	Timeframe           string  `json:"timeframe"`
	AutoRepairData      bool    `json:"auto_repair_data"`
	GracefulDegradation bool    `json:"graceful_degradation"`

	// Cache
	CacheEnabled        bool `json:"cache_enabled"`
	CacheSize           int  `json:"cache_size"`            // [10,10000]
	FingerprintTailBars int  `json:"fingerprint_tail_bars"` // [5,100]

	// Resources / budget
	MemoryLimitMB     float64 `json:"memory_limit_mb"`      // [50,2000]
	AnalysisBudgetMs  int     `json:"max_analysis_time_ms"` // [10,1000]

	// Circuit breaker
	BreakerFailureThreshold   int `json:"circuit_failure_threshold"`  // [1,20]
	BreakerRecoveryTimeoutSec int `json:"circuit_recovery_timeout_s"` // [1,3600]

	// Multi-timeframe gate
	MTFAlignmentEnabled bool `json:"mtf_alignment_enabled"`

	// Fusion
	ConsensusBonusDouble     float64 `json:"consensus_bonus_double"`      // [0,0.5]
	ConsensusBonusTriple     float64 `json:"consensus_bonus_triple"`      // [0,0.5]
	ConflictPenaltyBase      float64 `json:"conflict_penalty_base"`       // [0.5,1]
	ConflictPenaltyScale     float64 `json:"conflict_penalty_scale"`      // [0,0.5]
	SupportingFactorBonusMax float64 `json:"supporting_factor_bonus_max"` // [1,2]

	// Trade gate
	EMAFastPeriod             int     `json:"ema_fast_period"`             // [2,100]
	EMASlowPeriod             int     `json:"ema_slow_period"`             // [5,400]
	AroonPeriod               int     `json:"aroon_period"`                // [5,100]
	DirectionalScoreThreshold float64 `json:"directional_score_threshold"` // [0,1]

	// Trendline analyzer
	SwingStrength               int     `json:"swing_strength"`                // [1,10]
	MaxLookbackBars             int     `json:"max_lookback_bars"`             // [50,1000]
	MinSwingSignificance        float64 `json:"min_swing_significance"`        // [0,1]
	MaxSwingPoints              int     `json:"max_swing_points"`              // [5,50]
	MinTrendlineDuration        int     `json:"min_trendline_duration"`        // [2,100]
	MinTrendlineTouches         int     `json:"min_trendline_touches"`         // [2,10]
	MaxTrendlines               int     `json:"max_trendlines"`                // [1,50]
	AngleMin                    float64 `json:"angle_min"`                     // [-89,89]
	AngleMax                    float64 `json:"angle_max"`                     // [-89,89]
	TouchTolerance              float64 `json:"touch_tolerance"`               // [0,0.05]
	BreakThreshold              float64 `json:"break_threshold"`               // [0.0001,0.05]
	VolatilityScaling           bool    `json:"volatility_scaling"`
	VolumeConfirmationThreshold float64 `json:"volume_confirmation_threshold"` // [1,5]
	RetestLookback              int     `json:"retest_lookback"`               // [2,50]
}

// DefaultConfig returns the stock engine tuning
func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		Sensitivity:         5,
		MinConfidence:       0.6,
		MinSignalStrength:   0.3,
		MinHistoryBars:      50,
		Timeframe:           "1h",
		AutoRepairData:      true,
		GracefulDegradation: true,

		CacheEnabled:        true,
		CacheSize:           500,
		FingerprintTailBars: 20,

		MemoryLimitMB:    500,
		AnalysisBudgetMs: 100,

		BreakerFailureThreshold:   5,
		BreakerRecoveryTimeoutSec: 60,

		MTFAlignmentEnabled: true,

		ConsensusBonusDouble:     0.10,
		ConsensusBonusTriple:     0.15,
		ConflictPenaltyBase:      0.8,
		ConflictPenaltyScale:     0.3,
		SupportingFactorBonusMax: 1.3,

		EMAFastPeriod:             20,
		EMASlowPeriod:             50,
		AroonPeriod:               25,
		DirectionalScoreThreshold: 0.5,

		SwingStrength:               3,
		MaxLookbackBars:             200,
		MinSwingSignificance:        0.3,
		MaxSwingPoints:              20,
		MinTrendlineDuration:        10,
		MinTrendlineTouches:         3,
		MaxTrendlines:               10,
		AngleMin:                    -60,
		AngleMax:                    60,
		TouchTolerance:              0.002,
		BreakThreshold:              0.005,
		VolatilityScaling:           true,
		VolumeConfirmationThreshold: 1.5,
		RetestLookback:              10,
	}
}

// ValidationResult carries the corrected config and every correction made.
// Validation never fails outright: out-of-bound values are clamped to the
// nearest bound and unknown types fall back to defaults, each recorded as a
// violation string.
type ValidationResult struct {
	Config  Config   `json:"config"`
	Errors  []string `json:"errors"`
	IsValid bool     `json:"is_valid"`
}

// ValidateConfig builds a corrected Config from a flat key map
func ValidateConfig(raw map[string]interface{}) ValidationResult {
	cfg := DefaultConfig()
	v := &validator{raw: raw}

	v.boolKey("trend_detection_enabled", &cfg.Enabled)
	v.floatKey("trend_detection_sensitivity", &cfg.Sensitivity, 1, 10)
	v.floatKey("min_confidence", &cfg.MinConfidence, 0, 1)
	v.floatKey("min_signal_strength", &cfg.MinSignalStrength, 0, 1)
	v.intKey("min_history_bars", &cfg.MinHistoryBars, 50, 500)
	v.stringKey("timeframe", &cfg.Timeframe)
	v.boolKey("auto_repair_data", &cfg.AutoRepairData)
	v.boolKey("graceful_degradation", &cfg.GracefulDegradation)

	v.boolKey("cache_enabled", &cfg.CacheEnabled)
	v.intKey("cache_size", &cfg.CacheSize, 10, 10000)
	v.intKey("fingerprint_tail_bars", &cfg.FingerprintTailBars, 5, 100)

	v.floatKey("memory_limit_mb", &cfg.MemoryLimitMB, 50, 2000)
	v.intKey("max_analysis_time_ms", &cfg.AnalysisBudgetMs, 10, 1000)

	v.intKey("circuit_failure_threshold", &cfg.BreakerFailureThreshold, 1, 20)
	v.intKey("circuit_recovery_timeout_s", &cfg.BreakerRecoveryTimeoutSec, 1, 3600)

	v.boolKey("mtf_alignment_enabled", &cfg.MTFAlignmentEnabled)

	v.floatKey("consensus_bonus_double", &cfg.ConsensusBonusDouble, 0, 0.5)
	v.floatKey("consensus_bonus_triple", &cfg.ConsensusBonusTriple, 0, 0.5)
	v.floatKey("conflict_penalty_base", &cfg.ConflictPenaltyBase, 0.5, 1)
	v.floatKey("conflict_penalty_scale", &cfg.ConflictPenaltyScale, 0, 0.5)
	v.floatKey("supporting_factor_bonus_max", &cfg.SupportingFactorBonusMax, 1, 2)

	v.intKey("ema_fast_period", &cfg.EMAFastPeriod, 2, 100)
	v.intKey("ema_slow_period", &cfg.EMASlowPeriod, 5, 400)
	v.intKey("aroon_period", &cfg.AroonPeriod, 5, 100)
	v.floatKey("directional_score_threshold", &cfg.DirectionalScoreThreshold, 0, 1)

	v.intKey("swing_strength", &cfg.SwingStrength, 1, 10)
	v.intKey("max_lookback_bars", &cfg.MaxLookbackBars, 50, 1000)
	v.floatKey("min_swing_significance", &cfg.MinSwingSignificance, 0, 1)
	v.intKey("max_swing_points", &cfg.MaxSwingPoints, 5, 50)
	v.intKey("min_trendline_duration", &cfg.MinTrendlineDuration, 2, 100)
	v.intKey("min_trendline_touches", &cfg.MinTrendlineTouches, 2, 10)
	v.intKey("max_trendlines", &cfg.MaxTrendlines, 1, 50)
	v.floatKey("angle_min", &cfg.AngleMin, -89, 89)
	v.floatKey("angle_max", &cfg.AngleMax, -89, 89)
	v.floatKey("touch_tolerance", &cfg.TouchTolerance, 0, 0.05)
	v.floatKey("break_threshold", &cfg.BreakThreshold, 0.0001, 0.05)
	v.boolKey("volatility_scaling", &cfg.VolatilityScaling)
	v.floatKey("volume_confirmation_threshold", &cfg.VolumeConfirmationThreshold, 1, 5)
	v.intKey("retest_lookback", &cfg.RetestLookback, 2, 50)

	// Cross-field sanity: an inverted angle window is corrected, not rejected
	if cfg.AngleMin > cfg.AngleMax {
		v.errors = append(v.errors, fmt.Sprintf("angle_min %.1f above angle_max %.1f, swapped", cfg.AngleMin, cfg.AngleMax))
		cfg.AngleMin, cfg.AngleMax = cfg.AngleMax, cfg.AngleMin
	}
	if cfg.EMAFastPeriod >= cfg.EMASlowPeriod {
		v.errors = append(v.errors, fmt.Sprintf("ema_fast_period %d not below ema_slow_period %d, reset to defaults", cfg.EMAFastPeriod, cfg.EMASlowPeriod))
		cfg.EMAFastPeriod = DefaultConfig().EMAFastPeriod
		cfg.EMASlowPeriod = DefaultConfig().EMASlowPeriod
	}

	return ValidationResult{Config: cfg, Errors: v.errors, IsValid: len(v.errors) == 0}
}

// BreakerRecoveryTimeout returns the breaker cooldown as a duration
func (c Config) BreakerRecoveryTimeout() time.Duration {
	return time.Duration(c.BreakerRecoveryTimeoutSec) * time.Second
}

// AnalysisBudget returns the per-call wall-clock budget as a duration
func (c Config) AnalysisBudget() time.Duration {
	return time.Duration(c.AnalysisBudgetMs) * time.Millisecond
}

// TrendlineConfig projects the trendline analyzer's slice of the engine
// config
func (c Config) TrendlineConfig() trendline.Config {
	return trendline.Config{
		SwingStrength:               c.SwingStrength,
		MaxLookbackBars:             c.MaxLookbackBars,
		MinSwingSignificance:        c.MinSwingSignificance,
		MaxSwingPoints:              c.MaxSwingPoints,
		MinTrendlineDuration:        c.MinTrendlineDuration,
		MinTrendlineTouches:         c.MinTrendlineTouches,
		MaxTrendlines:               c.MaxTrendlines,
		AngleMin:                    c.AngleMin,
		AngleMax:                    c.AngleMax,
		TouchTolerance:              c.TouchTolerance,
		BreakThreshold:              c.BreakThreshold,
		VolatilityScaling:           c.VolatilityScaling,
		VolumeConfirmationThreshold: c.VolumeConfirmationThreshold,
		RetestLookback:              c.RetestLookback,
	}
}

// validator accumulates per-key corrections against a raw config map
type validator struct {
	raw    map[string]interface{}
	errors []string
}

func (v *validator) floatKey(key string, target *float64, lo, hi float64) {
	val, ok := v.lookupFloat(key)
	if !ok {
		return
	}
	if math.IsNaN(val) || math.IsInf(val, 0) {
		v.errors = append(v.errors, fmt.Sprintf("%s: non-finite value, kept default %.4g", key, *target))
		return
	}
	if val < lo {
		v.errors = append(v.errors, fmt.Sprintf("%s: %.4g below minimum %.4g, clamped", key, val, lo))
		val = lo
	} else if val > hi {
		v.errors = append(v.errors, fmt.Sprintf("%s: %.4g above maximum %.4g, clamped", key, val, hi))
		val = hi
	}
	*target = val
}

func (v *validator) intKey(key string, target *int, lo, hi int) {
	val, ok := v.lookupFloat(key)
	if !ok {
		return
	}
	iv := int(val)
	if val != math.Trunc(val) {
		v.errors = append(v.errors, fmt.Sprintf("%s: %.4g truncated to %d", key, val, iv))
	}
	if iv < lo {
		v.errors = append(v.errors, fmt.Sprintf("%s: %d below minimum %d, clamped", key, iv, lo))
		iv = lo
	} else if iv > hi {
		v.errors = append(v.errors, fmt.Sprintf("%s: %d above maximum %d, clamped", key, iv, hi))
		iv = hi
	}
	*target = iv
}

func (v *validator) boolKey(key string, target *bool) {
	raw, present := v.raw[key]
	if !present {
		return
	}
	b, ok := raw.(bool)
	if !ok {
		v.errors = append(v.errors, fmt.Sprintf("%s: expected bool, got %T, kept default", key, raw))
		return
	}
	*target = b
}

func (v *validator) stringKey(key string, target *string) {
	raw, present := v.raw[key]
	if !present {
		return
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s: expected non-empty string, got %T, kept default", key, raw))
		return
	}
	*target = s
}

// lookupFloat tolerates the numeric types a flat JSON-ish map can carry
func (v *validator) lookupFloat(key string) (float64, bool) {
	raw, present := v.raw[key]
	if !present {
		return 0, false
	}
	switch n := raw.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		v.errors = append(v.errors, fmt.Sprintf("%s: expected number, got %T, kept default", key, raw))
		return 0, false
	}
}

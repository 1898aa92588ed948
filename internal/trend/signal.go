// Package trend implements the trend-change detection engine: it runs the
// registered analyzer plug-ins against a symbol's price history under a
// per-call time budget, isolates their failures behind circuit breakers,
// fuses their outputs into one confidence-scored verdict, and gates entry
// signals on the fused result.
package trend

import (
	"time"
)

// Direction of a detected trend change
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
	Neutral Direction = "neutral"
)

// SignalType tags a signal's kind and direction. Direction is implied by
// the variant and never stored separately.
type SignalType string

const (
	BullishStructureBreak  SignalType = "bullish_structure_break"
	BearishStructureBreak  SignalType = "bearish_structure_break"
	BullishCrossover       SignalType = "bullish_crossover"
	BearishCrossover       SignalType = "bearish_crossover"
	BullishDivergence      SignalType = "bullish_divergence"
	BearishDivergence      SignalType = "bearish_divergence"
	BullishTrendlineBreak  SignalType = "bullish_trendline_break"
	BearishTrendlineBreak  SignalType = "bearish_trendline_break"
	BullishVolumeSurge     SignalType = "bullish_volume_surge"
	BearishVolumeSurge     SignalType = "bearish_volume_surge"
)

// Direction derives the trade direction from the variant tag
func (st SignalType) Direction() Direction {
	switch st {
	case BullishStructureBreak, BullishCrossover, BullishDivergence, BullishTrendlineBreak, BullishVolumeSurge:
		return Bullish
	case BearishStructureBreak, BearishCrossover, BearishDivergence, BearishTrendlineBreak, BearishVolumeSurge:
		return Bearish
	}
	return Neutral
}

// IsCrossover reports whether the variant is a crossover-type signal
func (st SignalType) IsCrossover() bool {
	return st == BullishCrossover || st == BearishCrossover
}

// Analyzer source names. These key the registry, the status map, and the
// reliability table.
const (
	SourceMarketStructure = "market_structure"
	SourceDivergence      = "divergence"
	SourceTrendline       = "trendline"
	SourceEMA             = "ema"
	SourceAroon           = "aroon"
	SourceVolume          = "volume"
	SourceMultiTimeframe  = "multi_timeframe"
)

// AnalyzerNames lists every plug-in slot the engine attempts to fill, in
// invocation order
var AnalyzerNames = []string{
	SourceMarketStructure,
	SourceDivergence,
	SourceTrendline,
	SourceEMA,
	SourceAroon,
	SourceVolume,
	SourceMultiTimeframe,
}

// sourceReliability is the fixed per-source weight table used in fusion,
// highest to lowest
var sourceReliability = map[string]float64{
	SourceMarketStructure: 0.95,
	SourceDivergence:      0.90,
	SourceTrendline:       0.85,
	SourceEMA:             0.80,
	SourceAroon:           0.75,
	SourceVolume:          0.70,
}

// SourceReliability returns the fixed fusion weight for a source
func SourceReliability(source string) float64 {
	if w, ok := sourceReliability[source]; ok {
		return w
	}
	return 0.5
}

// sourceQualityThreshold is the per-source minimum quality
// (confidence x strength x reliability) a signal must clear
var sourceQualityThreshold = map[string]float64{
	SourceMarketStructure: 0.75,
	SourceDivergence:      0.70,
	SourceTrendline:       0.65,
	SourceEMA:             0.60,
	SourceAroon:           0.55,
	SourceVolume:          0.50,
}

// minSupportingFactors is the per-source supporting-factor floor a signal
// must satisfy after fusion
func minSupportingFactors(source string) int {
	switch source {
	case SourceMarketStructure, SourceDivergence:
		return 1
	default:
		return 2
	}
}

// Supporting-factor tags
const (
	FactorVolumeConfirmation   = "volume_confirmation"
	FactorValidatedPattern     = "validated_pattern"
	FactorMomentumConfirmation = "momentum_confirmation"
	FactorRetestConfirmed      = "retest_confirmed"
	FactorTrendAlignment       = "trend_alignment"
)

// qualityBoostFactors are the supporting factors that multiply a signal's
// fused quality, up to the configured cap
var qualityBoostFactors = map[string]float64{
	FactorVolumeConfirmation:   0.10,
	FactorValidatedPattern:     0.10,
	FactorMomentumConfirmation: 0.10,
}

// Signal is one directional observation from one analyzer
type Signal struct {
	Type              SignalType `json:"type"`
	Strength          float64    `json:"strength"`   // 0.0 to 1.0
	Source            string     `json:"source"`     // analyzer name
	Confidence        float64    `json:"confidence"` // 0.0 to 1.0
	Timestamp         time.Time  `json:"timestamp"`
	PriceLevel        float64    `json:"price_level"`
	SupportingFactors []string   `json:"supporting_factors"`
}

// Quality is the signal's fused contribution before factor bonuses
func (s Signal) Quality() float64 {
	return s.Confidence * s.Strength * SourceReliability(s.Source)
}

// HasFactor reports whether a supporting factor tag is present
func (s Signal) HasFactor(factor string) bool {
	for _, f := range s.SupportingFactors {
		if f == factor {
			return true
		}
	}
	return false
}

// Result aggregates one analysis call: the surviving fused signals, the
// overall verdict, and each analyzer's raw output for downstream inspection
type Result struct {
	AnalysisID string             `json:"analysis_id"`
	Symbol     string             `json:"symbol"`
	Timeframe  string             `json:"timeframe"`
	Timestamp  time.Time          `json:"timestamp"`
	Direction  Direction          `json:"direction"`
	Confidence float64            `json:"confidence"` // 0.0 to 1.0
	Signals    []Signal           `json:"signals"`
	RawOutputs map[string]*Output `json:"raw_outputs,omitempty"`
	Partial    bool               `json:"partial"` // budget cut the run short
	CacheHit   bool               `json:"cache_hit"`
	Skipped    []string           `json:"skipped,omitempty"` // analyzers not attempted
	ElapsedMs  int64              `json:"elapsed_ms"`
}

// emptyResult is the zero-confidence verdict returned on every rejection
// path; the public API never raises
func emptyResult(symbol, timeframe string) *Result {
	return &Result{
		Symbol:     symbol,
		Timeframe:  timeframe,
		Timestamp:  time.Now(),
		Direction:  Neutral,
		Confidence: 0,
		Signals:    nil,
	}
}

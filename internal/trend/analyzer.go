package trend

import (
	"time"

	"trendbot/internal/market"
	"trendbot/internal/trendline"
)

// Analyzer is the capability contract every plug-in satisfies: one
// deterministic, synchronous method over the OHLCV history. The higher
// series is non-nil only for the multi-timeframe aligner; other analyzers
// ignore it. Implementations must not retain references to the engine.
type Analyzer interface {
	Name() string
	Analyze(klines []market.Kline, higher []market.Kline) (*Output, error)
}

// Output is the typed result of one analyzer call. Exactly one variant
// field is populated; a nil Output with a nil error means "nothing to
// report", which the engine treats the same as an absent signal.
type Output struct {
	StructureBreak  *StructureBreakResult `json:"structure_break,omitempty"`
	Divergence      *DivergenceResult     `json:"divergence,omitempty"`
	Aroon           *AroonSignal          `json:"aroon,omitempty"`
	EMACross        *EMACrossSignal       `json:"ema_cross,omitempty"`
	Alignment       *TimeframeAlignment   `json:"alignment,omitempty"`
	Volume          *VolumeConfirmation   `json:"volume,omitempty"`
	EarlyWarning    *EarlyWarningSignal   `json:"early_warning,omitempty"`
	Trendlines      []trendline.Trendline `json:"trendlines,omitempty"`
	TrendlineBreaks []trendline.Break     `json:"trendline_breaks,omitempty"`
}

// StructureBreakResult reports a break of market structure (higher-low /
// lower-high sequence violated)
type StructureBreakResult struct {
	Direction  Direction `json:"direction"`
	BreakLevel float64   `json:"break_level"`
	Confirmed  bool      `json:"confirmed"`
	Strength   float64   `json:"strength"` // 0.0 to 1.0
}

// DivergenceResult reports a price/indicator divergence
type DivergenceResult struct {
	Direction Direction `json:"direction"`
	Indicator string    `json:"indicator"`
	Validated bool      `json:"validated"`
	Strength  float64   `json:"strength"`
}

// AroonSignal reports Aroon oscillator state and any crossover
type AroonSignal struct {
	Up        float64   `json:"up"`
	Down      float64   `json:"down"`
	Crossover Direction `json:"crossover"` // Neutral when no crossover fired
	Strength  float64   `json:"strength"`
}

// EMACrossSignal reports EMA momentum state and any crossover
type EMACrossSignal struct {
	Fast              float64   `json:"fast"`
	Slow              float64   `json:"slow"`
	Separation        float64   `json:"separation"` // relative fast-slow gap
	Crossover         Direction `json:"crossover"`
	MomentumConfirmed bool      `json:"momentum_confirmed"`
	Strength          float64   `json:"strength"`
}

// TimeframeAlignment reports whether the higher timeframe agrees with the
// primary one
type TimeframeAlignment struct {
	Direction       Direction `json:"direction"`
	Aligned         bool      `json:"aligned"`
	HigherTimeframe string    `json:"higher_timeframe"`
	Strength        float64   `json:"strength"`
}

// VolumeConfirmation reports standalone volume pressure
type VolumeConfirmation struct {
	Direction Direction `json:"direction"`
	Confirmed bool      `json:"confirmed"`
	Strength  float64   `json:"strength"`
}

// EarlyWarningSignal reports a pre-confirmation heads-up; it never produces
// a tradable signal on its own
type EarlyWarningSignal struct {
	Direction Direction `json:"direction"`
	Score     float64   `json:"score"`
}

// ComponentStatus records the construction outcome for one analyzer slot
type ComponentStatus string

const (
	StatusAvailable    ComponentStatus = "available"
	StatusImportFailed ComponentStatus = "import_failed" // no factory registered
	StatusInitFailed   ComponentStatus = "init_failed"   // factory returned an error
)

// AnalyzerFactory constructs one analyzer instance at engine construction
// time. The registry maps analyzer name to factory; resolution is static,
// with unavailable slots recorded in the status map rather than retried
// at call time.
type AnalyzerFactory func(cfg Config) (Analyzer, error)

// Registry maps analyzer names to their factories
type Registry map[string]AnalyzerFactory

// trendlineAnalyzer adapts the geometric trendline analyzer to the
// capability contract
type trendlineAnalyzer struct {
	inner *trendline.Analyzer
}

// NewTrendlineAnalyzer wraps a trendline.Analyzer as an engine plug-in
func NewTrendlineAnalyzer(inner *trendline.Analyzer) Analyzer {
	return &trendlineAnalyzer{inner: inner}
}

func (t *trendlineAnalyzer) Name() string { return SourceTrendline }

func (t *trendlineAnalyzer) Analyze(klines []market.Kline, _ []market.Kline) (*Output, error) {
	lines := t.inner.IdentifyTrendlines(klines)
	if len(lines) == 0 {
		return nil, nil
	}

	return &Output{
		Trendlines:      lines,
		TrendlineBreaks: t.inner.DetectBreaksEnhanced(klines, lines),
	}, nil
}

// signalFromOutput translates one analyzer output into at most one Signal.
// Weak or unconfirmed outputs produce none.
func signalFromOutput(source string, out *Output, klines []market.Kline, minStrength float64) *Signal {
	if out == nil {
		return nil
	}

	now := time.Now()
	lastClose := 0.0
	if len(klines) > 0 {
		lastClose = klines[len(klines)-1].Close
	}

	switch source {
	case SourceMarketStructure:
		sb := out.StructureBreak
		if sb == nil || !sb.Confirmed || sb.Strength < minStrength {
			return nil
		}
		st := BullishStructureBreak
		if sb.Direction == Bearish {
			st = BearishStructureBreak
		}
		return &Signal{
			Type:              st,
			Strength:          clamp01(sb.Strength),
			Source:            source,
			Confidence:        clamp01(0.5 + sb.Strength/2),
			Timestamp:         now,
			PriceLevel:        sb.BreakLevel,
			SupportingFactors: []string{FactorValidatedPattern},
		}

	case SourceDivergence:
		d := out.Divergence
		if d == nil || !d.Validated || d.Strength < minStrength {
			return nil
		}
		st := BullishDivergence
		if d.Direction == Bearish {
			st = BearishDivergence
		}
		return &Signal{
			Type:              st,
			Strength:          clamp01(d.Strength),
			Source:            source,
			Confidence:        clamp01(0.5 + d.Strength/2),
			Timestamp:         now,
			PriceLevel:        lastClose,
			SupportingFactors: []string{FactorValidatedPattern},
		}

	case SourceAroon:
		a := out.Aroon
		if a == nil || a.Crossover == Neutral || a.Strength < minStrength {
			return nil
		}
		st := BullishCrossover
		if a.Crossover == Bearish {
			st = BearishCrossover
		}
		factors := []string{FactorMomentumConfirmation}
		// A dominant up/down spread evidences an established trend beyond
		// the crossover itself
		if spread := a.Up - a.Down; spread >= 50 || spread <= -50 {
			factors = append(factors, FactorTrendAlignment)
		}
		return &Signal{
			Type:              st,
			Strength:          clamp01(a.Strength),
			Source:            source,
			Confidence:        clamp01(0.4 + a.Strength/2),
			Timestamp:         now,
			PriceLevel:        lastClose,
			SupportingFactors: factors,
		}

	case SourceEMA:
		e := out.EMACross
		if e == nil || e.Crossover == Neutral || e.Strength < minStrength {
			return nil
		}
		st := BullishCrossover
		if e.Crossover == Bearish {
			st = BearishCrossover
		}
		factors := []string{FactorTrendAlignment}
		if e.MomentumConfirmed {
			factors = append(factors, FactorMomentumConfirmation)
		}
		return &Signal{
			Type:              st,
			Strength:          clamp01(e.Strength),
			Source:            source,
			Confidence:        clamp01(0.45 + e.Strength/2),
			Timestamp:         now,
			PriceLevel:        lastClose,
			SupportingFactors: factors,
		}

	case SourceVolume:
		vc := out.Volume
		if vc == nil || !vc.Confirmed || vc.Direction == Neutral || vc.Strength < minStrength {
			return nil
		}
		st := BullishVolumeSurge
		if vc.Direction == Bearish {
			st = BearishVolumeSurge
		}
		factors := []string{FactorVolumeConfirmation}
		// A strong surge carries directional momentum, not just participation
		if vc.Strength >= 0.7 {
			factors = append(factors, FactorMomentumConfirmation)
		}
		return &Signal{
			Type:              st,
			Strength:          clamp01(vc.Strength),
			Source:            source,
			Confidence:        clamp01(0.4 + vc.Strength/2),
			Timestamp:         now,
			PriceLevel:        lastClose,
			SupportingFactors: factors,
		}

	case SourceTrendline:
		best := strongestBreak(out.TrendlineBreaks)
		if best == nil {
			return nil
		}
		// Only volume- or strength-confirmed breaks become signals
		if !best.VolumeConfirmation && best.BreakStrength < 0.6 {
			return nil
		}
		st := BearishTrendlineBreak // support break
		if best.Line.LineType == trendline.LineResistance {
			st = BullishTrendlineBreak
		}
		factors := []string{FactorValidatedPattern}
		if best.VolumeConfirmation {
			factors = append(factors, FactorVolumeConfirmation)
		}
		if best.RetestConfirmed {
			factors = append(factors, FactorRetestConfirmed)
		}
		return &Signal{
			Type:              st,
			Strength:          clamp01(best.BreakStrength),
			Source:            source,
			Confidence:        clamp01(0.4 + best.Line.Strength/2),
			Timestamp:         now,
			PriceLevel:        best.BreakPoint,
			SupportingFactors: factors,
		}
	}

	// Multi-timeframe alignment and early warnings gate trades but never
	// produce their own directional signal
	return nil
}

func strongestBreak(breaks []trendline.Break) *trendline.Break {
	var best *trendline.Break
	for i := range breaks {
		if best == nil || breaks[i].BreakStrength > best.BreakStrength {
			best = &breaks[i]
		}
	}
	return best
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

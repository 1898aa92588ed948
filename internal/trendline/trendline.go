// Package trendline implements geometric trendline detection: swing-point
// extraction, candidate line generation and validation, and break/retest
// detection against identified lines.
package trendline

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"trendbot/internal/indicators"
	"trendbot/internal/market"
)

// PointType classifies a swing point
type PointType string

const (
	PointHigh PointType = "high"
	PointLow  PointType = "low"
)

// LineType classifies a trendline
type LineType string

const (
	LineSupport    LineType = "support"
	LineResistance LineType = "resistance"
)

// SwingPoint is a local price extreme anchoring trendline construction.
// Produced and consumed entirely within one IdentifyTrendlines call.
type SwingPoint struct {
	Index        int
	Timestamp    time.Time
	Price        float64
	Type         PointType
	Significance float64 // 0.0 to 1.0
}

// Anchor is one (timestamp, price) endpoint of a trendline
type Anchor struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// Trendline is an immutable fitted line between two same-type swing points.
// It deliberately does not retain the original bar indices; break projection
// re-derives an approximate offset from the slope and bar interval.
type Trendline struct {
	Start       Anchor   `json:"start"`
	End         Anchor   `json:"end"`
	Slope       float64  `json:"slope"` // price change per bar
	TouchPoints int      `json:"touch_points"`
	Strength    float64  `json:"strength"` // 0.0 to 1.0
	LineType    LineType `json:"line_type"`
}

// Break describes a confirmed violation of a trendline
type Break struct {
	Line               Trendline `json:"line"`
	BreakPoint         float64   `json:"break_point"`
	VolumeConfirmation bool      `json:"volume_confirmation"`
	RetestConfirmed    bool      `json:"retest_confirmed"`
	BreakStrength      float64   `json:"break_strength"` // 0.0 to 1.0
}

// Config holds trendline detection tuning parameters. Values are assumed
// pre-clamped by the engine's config validator.
type Config struct {
	SwingStrength               int     `json:"swing_strength"`                // Bars each side of a swing extreme
	MaxLookbackBars             int     `json:"max_lookback_bars"`             // Detection window from series end
	MinSwingSignificance        float64 `json:"min_swing_significance"`        // Drop swings below this
	MaxSwingPoints              int     `json:"max_swing_points"`              // Cap on candidate-generating swings
	MinTrendlineDuration        int     `json:"min_trendline_duration"`        // Min bars between defining points
	MinTrendlineTouches         int     `json:"min_trendline_touches"`         // Min touches incl. defining points
	MaxTrendlines               int     `json:"max_trendlines"`                // Result cap after ranking
	AngleMin                    float64 `json:"angle_min"`                     // Degrees
	AngleMax                    float64 `json:"angle_max"`                     // Degrees
	TouchTolerance              float64 `json:"touch_tolerance"`               // Relative distance counting as a touch
	BreakThreshold              float64 `json:"break_threshold"`               // Relative violation firing a break
	VolatilityScaling           bool    `json:"volatility_scaling"`            // Scale break threshold by 20-bar vol
	VolumeConfirmationThreshold float64 `json:"volume_confirmation_threshold"` // Spike multiple vs trailing average
	RetestLookback              int     `json:"retest_lookback"`               // Bars searched for a retest
}

// DefaultConfig returns the stock trendline tuning
func DefaultConfig() Config {
	return Config{
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

// Analyzer detects trendlines and their breaks in OHLCV history
type Analyzer struct {
	config         Config
	volumeStrength indicators.VolumeStrengthFunc
	logger         zerolog.Logger
}

// NewAnalyzer creates a trendline analyzer. volumeStrength may be nil.
func NewAnalyzer(config Config, volumeStrength indicators.VolumeStrengthFunc, logger zerolog.Logger) *Analyzer {
	if config.SwingStrength <= 0 {
		config = DefaultConfig()
	}
	return &Analyzer{
		config:         config,
		volumeStrength: volumeStrength,
		logger:         logger.With().Str("component", "trendline").Logger(),
	}
}

// Config returns the analyzer's tuning parameters
func (a *Analyzer) Config() Config {
	return a.config
}

// IdentifyTrendlines extracts swing points, fits candidate lines between
// same-type pairs, validates them, and returns the strongest survivors
// capped at MaxTrendlines.
func (a *Analyzer) IdentifyTrendlines(klines []market.Kline) []Trendline {
	swings := a.findSwingPoints(klines)
	if len(swings) < 2 {
		return nil
	}

	highs := filterSwings(swings, PointHigh)
	lows := filterSwings(swings, PointLow)

	var lines []Trendline
	lines = append(lines, a.buildCandidates(klines, lows, LineSupport)...)
	lines = append(lines, a.buildCandidates(klines, highs, LineResistance)...)

	sort.Slice(lines, func(i, j int) bool { return lines[i].Strength > lines[j].Strength })
	if len(lines) > a.config.MaxTrendlines {
		lines = lines[:a.config.MaxTrendlines]
	}

	a.logger.Debug().
		Int("swings", len(swings)).
		Int("lines", len(lines)).
		Msg("trendline identification complete")

	return lines
}

// findSwingPoints locates strict extremes within the recent lookback window
// and scores their significance
func (a *Analyzer) findSwingPoints(klines []market.Kline) []SwingPoint {
	s := a.config.SwingStrength
	if len(klines) < 2*s+1 {
		return nil
	}

	start := 0
	if len(klines) > a.config.MaxLookbackBars {
		start = len(klines) - a.config.MaxLookbackBars
	}

	var swings []SwingPoint
	first := start + s
	if first < s {
		first = s
	}
	for i := first; i < len(klines)-s; i++ {
		if high, ok := a.isSwingExtreme(klines, i, PointHigh); ok {
			sig := a.significance(klines, i, high, PointHigh, start)
			if sig >= a.config.MinSwingSignificance {
				swings = append(swings, SwingPoint{
					Index:        i,
					Timestamp:    klines[i].Time(),
					Price:        high,
					Type:         PointHigh,
					Significance: sig,
				})
			}
		}
		if low, ok := a.isSwingExtreme(klines, i, PointLow); ok {
			sig := a.significance(klines, i, low, PointLow, start)
			if sig >= a.config.MinSwingSignificance {
				swings = append(swings, SwingPoint{
					Index:        i,
					Timestamp:    klines[i].Time(),
					Price:        low,
					Type:         PointLow,
					Significance: sig,
				})
			}
		}
	}

	// Bound candidate-generation cost: keep only the most significant swings
	if len(swings) > a.config.MaxSwingPoints {
		sort.Slice(swings, func(i, j int) bool { return swings[i].Significance > swings[j].Significance })
		swings = swings[:a.config.MaxSwingPoints]
		sort.Slice(swings, func(i, j int) bool { return swings[i].Index < swings[j].Index })
	}

	return swings
}

// isSwingExtreme checks whether bar i is the strict extreme among the
// 2*SwingStrength+1 bars centered on it
func (a *Analyzer) isSwingExtreme(klines []market.Kline, i int, pt PointType) (float64, bool) {
	s := a.config.SwingStrength

	if pt == PointHigh {
		candidate := klines[i].High
		for j := i - s; j <= i+s; j++ {
			if j != i && klines[j].High >= candidate {
				return 0, false
			}
		}
		return candidate, true
	}

	candidate := klines[i].Low
	for j := i - s; j <= i+s; j++ {
		if j != i && klines[j].Low <= candidate {
			return 0, false
		}
	}
	return candidate, true
}

// significance scores a swing point: 0.6 price extremity within the
// surrounding window, 0.2 volume vs the trailing 10-bar average (excess
// capped at 100%), 0.2 linear recency within the lookback window
func (a *Analyzer) significance(klines []market.Kline, i int, price float64, pt PointType, windowStart int) float64 {
	s := a.config.SwingStrength

	lo, hi := math.Inf(1), math.Inf(-1)
	for j := i - s; j <= i+s; j++ {
		lo = math.Min(lo, klines[j].Low)
		hi = math.Max(hi, klines[j].High)
	}

	extremity := 0.5
	if span := hi - lo; span > 0 {
		if pt == PointHigh {
			extremity = (price - lo) / span
		} else {
			extremity = (hi - price) / span
		}
	}

	volScore := 0.5
	if avg := market.AverageVolume(klines[:i], 10); avg > 0 {
		ratio := klines[i].Volume / avg
		volScore = math.Min(ratio, 2.0) / 2.0
	}

	recency := 0.0
	if span := len(klines) - 1 - windowStart; span > 0 {
		recency = float64(i-windowStart) / float64(span)
	}

	return 0.6*extremity + 0.2*volScore + 0.2*recency
}

// buildCandidates fits a line through every ordered same-type pair and keeps
// the validated ones
func (a *Analyzer) buildCandidates(klines []market.Kline, swings []SwingPoint, lt LineType) []Trendline {
	var out []Trendline

	for i := 0; i < len(swings); i++ {
		for j := i + 1; j < len(swings); j++ {
			p1, p2 := swings[i], swings[j]
			if p2.Index-p1.Index < a.config.MinTrendlineDuration {
				continue
			}

			slope := (p2.Price - p1.Price) / float64(p2.Index-p1.Index)
			if !a.angleInRange(slope, p1.Price) {
				continue
			}

			touches, lastTouch := a.findTouches(klines, p1, p2, slope, lt)
			line, ok := a.validate(klines, p1, p2, slope, lt, touches, lastTouch)
			if ok {
				out = append(out, line)
			}
		}
	}

	return out
}

// angleInRange converts slope to an angle in degrees via percentage price
// change per bar and checks the configured bounds
func (a *Analyzer) angleInRange(slope, basePrice float64) bool {
	if basePrice <= 0 {
		return false
	}
	pctPerBar := slope / basePrice * 100
	angle := math.Atan(pctPerBar) * 180 / math.Pi
	return angle >= a.config.AngleMin && angle <= a.config.AngleMax
}

// findTouches scans intervening bars for prices within TouchTolerance of the
// line on the correct side. Touches become extra swing points with
// significance 0.5.
func (a *Analyzer) findTouches(klines []market.Kline, p1, p2 SwingPoint, slope float64, lt LineType) ([]SwingPoint, int) {
	touches := []SwingPoint{p1, p2}
	lastTouch := p2.Index

	for i := p1.Index + 1; i < p2.Index; i++ {
		expected := p1.Price + slope*float64(i-p1.Index)
		if expected <= 0 {
			continue
		}

		var price float64
		if lt == LineSupport {
			price = klines[i].Low
		} else {
			price = klines[i].High
		}

		diff := (price - expected) / expected
		if math.Abs(diff) <= a.config.TouchTolerance {
			pt := PointLow
			if lt == LineResistance {
				pt = PointHigh
			}
			touches = append(touches, SwingPoint{
				Index:        i,
				Timestamp:    klines[i].Time(),
				Price:        price,
				Type:         pt,
				Significance: 0.5,
			})
			if i > lastTouch {
				lastTouch = i
			}
		}
	}

	return touches, lastTouch
}

// validate applies the touch, strength, violation, and recency gates and
// materializes the surviving candidate
func (a *Analyzer) validate(klines []market.Kline, p1, p2 SwingPoint, slope float64, lt LineType, touches []SwingPoint, lastTouch int) (Trendline, bool) {
	if len(touches) < a.config.MinTrendlineTouches {
		return Trendline{}, false
	}

	violations := a.countViolations(klines, p1, p2, slope, lt)
	maxViolations := len(touches) / 3
	if maxViolations < 1 {
		maxViolations = 1
	}
	if violations > maxViolations {
		return Trendline{}, false
	}

	if len(klines)-1-lastTouch > 50 {
		return Trendline{}, false
	}

	strength := a.lineStrength(klines, p1, p2, touches)
	if strength < 0.4 {
		return Trendline{}, false
	}

	return Trendline{
		Start:       Anchor{Timestamp: p1.Timestamp, Price: p1.Price},
		End:         Anchor{Timestamp: p2.Timestamp, Price: p2.Price},
		Slope:       slope,
		TouchPoints: len(touches),
		Strength:    strength,
		LineType:    lt,
	}, true
}

// countViolations counts intervening bars whose extreme crosses the line by
// more than 0.5% on the wrong side
func (a *Analyzer) countViolations(klines []market.Kline, p1, p2 SwingPoint, slope float64, lt LineType) int {
	const violationTolerance = 0.005

	count := 0
	for i := p1.Index + 1; i < p2.Index; i++ {
		expected := p1.Price + slope*float64(i-p1.Index)
		if expected <= 0 {
			continue
		}

		if lt == LineSupport {
			if (expected-klines[i].Low)/expected > violationTolerance {
				count++
			}
		} else {
			if (klines[i].High-expected)/expected > violationTolerance {
				count++
			}
		}
	}
	return count
}

// lineStrength scores a candidate: 0.3 base, up to 0.4 for touches beyond
// the defining pair, up to 0.2 for span duration normalized to 50 bars, up
// to 0.1 for defining-point significance, up to 0.1 for touch volume vs the
// series average
func (a *Analyzer) lineStrength(klines []market.Kline, p1, p2 SwingPoint, touches []SwingPoint) float64 {
	strength := 0.3

	extraTouches := len(touches) - 2
	strength += math.Min(0.4, float64(extraTouches)*0.1)

	span := float64(p2.Index - p1.Index)
	strength += math.Min(0.2, span/50.0*0.2)

	strength += 0.1 * (p1.Significance + p2.Significance) / 2

	if avg := market.AverageVolume(klines, len(klines)); avg > 0 {
		sum := 0.0
		for _, t := range touches {
			sum += klines[t.Index].Volume
		}
		ratio := sum / float64(len(touches)) / avg
		strength += math.Min(0.1, 0.1*ratio)
	}

	return clamp01(strength)
}

func filterSwings(swings []SwingPoint, pt PointType) []SwingPoint {
	var out []SwingPoint
	for _, s := range swings {
		if s.Type == pt {
			out = append(out, s)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

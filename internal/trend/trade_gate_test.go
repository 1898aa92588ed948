package trend

import (
	"testing"

	"trendbot/internal/logging"
)

// TestShouldTradeTrendCrossoverPath verifies a confirmed crossover with
// sufficient fused confidence opens the gate
func TestShouldTradeTrendCrossoverPath(t *testing.T) {
	stub := &stubAnalyzer{name: SourceEMA, out: bullishEMAOutput()}
	engine, err := NewEngine(map[string]interface{}{}, stubRegistry(stub), logging.Discard())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	ok, confidence := engine.ShouldTradeTrend(makeKlines(60, 100), Bullish, "BTCUSDT")

	if !ok {
		t.Fatalf("Expected the gate to open, blocked at confidence %f", confidence)
	}
	if confidence < engine.Config().MinConfidence {
		t.Errorf("Open gate must carry confidence above the minimum, got %f", confidence)
	}
}

// TestShouldTradeTrendConfidenceFloor verifies a raised minimum blocks the
// same crossover
func TestShouldTradeTrendConfidenceFloor(t *testing.T) {
	stub := &stubAnalyzer{name: SourceEMA, out: bullishEMAOutput()}
	engine, err := NewEngine(map[string]interface{}{
		"min_confidence": 0.99,
	}, stubRegistry(stub), logging.Discard())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	ok, _ := engine.ShouldTradeTrend(makeKlines(60, 100), Bullish, "BTCUSDT")
	if ok {
		t.Error("Gate must stay closed below the confidence floor")
	}
}

// TestShouldTradeTrendMTFContradiction verifies a contradicting higher
// timeframe halves confidence and blocks
func TestShouldTradeTrendMTFContradiction(t *testing.T) {
	ema := &stubAnalyzer{name: SourceEMA, out: bullishEMAOutput()}
	mtf := &stubAnalyzer{name: SourceMultiTimeframe, out: &Output{
		Alignment: &TimeframeAlignment{
			Direction:       Bearish,
			Aligned:         false,
			HigherTimeframe: "4h",
			Strength:        0.8,
		},
	}}

	engine, err := NewEngine(map[string]interface{}{}, stubRegistry(ema, mtf), logging.Discard())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	klines := makeKlines(60, 100)
	aligned, fullConfidence := func() (bool, float64) {
		// Baseline without the contradiction
		plain, err := NewEngine(map[string]interface{}{}, stubRegistry(&stubAnalyzer{name: SourceEMA, out: bullishEMAOutput()}), logging.Discard())
		if err != nil {
			t.Fatalf("NewEngine failed: %v", err)
		}
		return plain.ShouldTradeTrend(klines, Bullish, "BTCUSDT")
	}()
	if !aligned {
		t.Fatal("Baseline gate should open without the contradiction")
	}

	ok, halved := engine.ShouldTradeTrend(klines, Bullish, "BTCUSDT")
	if ok {
		t.Error("Contradicting higher timeframe must block the trade")
	}
	if halved >= fullConfidence {
		t.Errorf("Blocked confidence %f must sit below the uncontradicted %f", halved, fullConfidence)
	}
}

// TestShouldTradeTrendDirectionalFallback verifies the continuous score
// path when no crossover signal exists for the direction
func TestShouldTradeTrendDirectionalFallback(t *testing.T) {
	// No analyzers registered: the crossover path never fires
	engine, err := NewEngine(map[string]interface{}{}, Registry{}, logging.Discard())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	rising := makeKlines(120, 100)

	ok, score := engine.ShouldTradeTrend(rising, Bullish, "BTCUSDT")
	if !ok {
		t.Errorf("Steadily rising series should clear the directional threshold, scored %f", score)
	}

	ok, score = engine.ShouldTradeTrend(rising, Bearish, "BTCUSDT")
	if ok {
		t.Errorf("Bearish gate must stay closed on a rising series, scored %f", score)
	}

	// Neutral is never tradable
	if ok, _ := engine.ShouldTradeTrend(rising, Neutral, "BTCUSDT"); ok {
		t.Error("Neutral direction must never open the gate")
	}
}

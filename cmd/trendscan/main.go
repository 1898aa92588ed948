package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/joho/godotenv"

	"trendbot/internal/logging"
	"trendbot/internal/market"
	"trendbot/internal/trend"
	"trendbot/internal/trendline"
)

func main() {
	symbol := flag.String("symbol", "BTCUSDT", "trading pair to analyze")
	interval := flag.String("interval", "1h", "kline interval")
	higherInterval := flag.String("higher-interval", "4h", "higher timeframe for alignment")
	limit := flag.Int("limit", 200, "number of klines to fetch")
	minConfidence := flag.Float64("min-confidence", 0.6, "minimum fused confidence for a tradable verdict")
	logLevel := flag.String("log-level", "warn", "log level: debug, info, warn, error")
	flag.Parse()

	godotenv.Load()
	godotenv.Load(".env")

	logger, err := logging.New(logging.Config{Level: *logLevel, Format: "console"})
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	// Kline endpoints are public; keys are only picked up when present
	client := binance.NewClient(os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_SECRET_KEY"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	klines, err := fetchKlines(ctx, client, *symbol, *interval, *limit)
	if err != nil {
		fmt.Printf("❌ Failed to fetch klines: %v\n", err)
		os.Exit(1)
	}

	registry := trend.Registry{
		trend.SourceTrendline: func(cfg trend.Config) (trend.Analyzer, error) {
			return trend.NewTrendlineAnalyzer(trendline.NewAnalyzer(cfg.TrendlineConfig(), nil, logger)), nil
		},
	}

	engine, err := trend.NewEngine(map[string]interface{}{
		"timeframe":      *interval,
		"min_confidence": *minConfidence,
		// Leave headroom for the higher timeframe fetch inside the cycle
		"max_analysis_time_ms": 1000,
	}, registry, logger)
	if err != nil {
		fmt.Printf("❌ Failed to build engine: %v\n", err)
		os.Exit(1)
	}

	engine.SetHigherTimeframeSource(func(sym string) []market.Kline {
		higher, err := fetchKlines(ctx, client, sym, *higherInterval, *limit)
		if err != nil {
			logger.Warn().Err(err).Str("interval", *higherInterval).Msg("higher timeframe fetch failed")
			return nil
		}
		return higher
	})

	result := engine.AnalyzeTrendChange(klines, *symbol)

	fmt.Printf("📊 %s %s trend analysis (%d bars)\n", *symbol, *interval, len(klines))
	fmt.Printf("   Verdict:    %s (confidence %.2f)\n", result.Direction, result.Confidence)
	fmt.Printf("   Signals:    %d", len(result.Signals))
	if result.Partial {
		fmt.Printf("  [partial: skipped %v]", result.Skipped)
	}
	fmt.Println()

	for _, s := range result.Signals {
		fmt.Printf("   • %-26s source=%-16s strength=%.2f confidence=%.2f @ %.4f\n",
			s.Type, s.Source, s.Strength, s.Confidence, s.PriceLevel)
	}

	if out := result.RawOutputs[trend.SourceTrendline]; out != nil {
		fmt.Printf("\n📐 Trendlines: %d\n", len(out.Trendlines))
		for _, l := range out.Trendlines {
			fmt.Printf("   • %-10s strength=%.2f touches=%d slope=%.5f (%.4f → %.4f)\n",
				l.LineType, l.Strength, l.TouchPoints, l.Slope, l.Start.Price, l.End.Price)
		}
		for _, b := range out.TrendlineBreaks {
			fmt.Printf("   ⚡ %s break @ %.4f strength=%.2f volume=%v retest=%v\n",
				b.Line.LineType, b.BreakPoint, b.BreakStrength, b.VolumeConfirmation, b.RetestConfirmed)
		}
	}

	for _, direction := range []trend.Direction{trend.Bullish, trend.Bearish} {
		ok, confidence := engine.ShouldTradeTrend(klines, direction, *symbol)
		verdict := "blocked"
		if ok {
			verdict = "open"
		}
		fmt.Printf("\n🚦 %s gate: %s (%.2f)", direction, verdict, confidence)
	}
	fmt.Println()
}

// fetchKlines pulls completed candles and converts them to the internal
// representation, dropping the still-forming last bar
func fetchKlines(ctx context.Context, client *binance.Client, symbol, interval string, limit int) ([]market.Kline, error) {
	raw, err := client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit + 1).
		Do(ctx)
	if err != nil {
		return nil, err
	}

	klines := make([]market.Kline, 0, len(raw))
	for _, k := range raw {
		klines = append(klines, market.Kline{
			OpenTime:  k.OpenTime,
			Open:      parseFloat(k.Open),
			High:      parseFloat(k.High),
			Low:       parseFloat(k.Low),
			Close:     parseFloat(k.Close),
			Volume:    parseFloat(k.Volume),
			CloseTime: k.CloseTime,
		})
	}

	// The last bar is still forming
	if len(klines) > 0 && time.UnixMilli(klines[len(klines)-1].CloseTime).After(time.Now()) {
		klines = klines[:len(klines)-1]
	}
	return klines, nil
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

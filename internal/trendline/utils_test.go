package trendline

import (
	"testing"
	"time"
)

func line(lt LineType, startPrice, endPrice, strength float64, touches int, end time.Time) Trendline {
	return Trendline{
		Start:       Anchor{Timestamp: end.Add(-48 * time.Hour), Price: startPrice},
		End:         Anchor{Timestamp: end, Price: endPrice},
		Slope:       (endPrice - startPrice) / 48,
		TouchPoints: touches,
		Strength:    strength,
		LineType:    lt,
	}
}

// TestFilterByStrength verifies the strength floor
func TestFilterByStrength(t *testing.T) {
	now := time.Now()
	lines := []Trendline{
		line(LineSupport, 100, 105, 0.8, 4, now),
		line(LineSupport, 90, 95, 0.3, 2, now),
	}

	out := FilterByStrength(lines, 0.5)
	if len(out) != 1 || out[0].Strength != 0.8 {
		t.Errorf("Expected only the strong line to survive, got %d", len(out))
	}
}

// TestFilterRecent verifies stale lines are dropped by end-anchor age
func TestFilterRecent(t *testing.T) {
	now := time.Now()
	lines := []Trendline{
		line(LineSupport, 100, 105, 0.8, 4, now.Add(-2*time.Hour)),
		line(LineSupport, 90, 95, 0.8, 4, now.Add(-80*time.Hour)),
	}

	out := FilterRecent(lines, now, 24*time.Hour)
	if len(out) != 1 {
		t.Fatalf("Expected 1 recent line, got %d", len(out))
	}
	if out[0].End.Price != 105 {
		t.Error("Expected the fresh line to survive")
	}
}

// TestDeduplicate verifies near-identical same-type lines collapse to the
// strongest
func TestDeduplicate(t *testing.T) {
	now := time.Now()
	lines := []Trendline{
		line(LineSupport, 100, 105, 0.6, 3, now),
		line(LineSupport, 100.2, 105.1, 0.9, 5, now), // near-duplicate, stronger
		line(LineSupport, 130, 135, 0.5, 3, now),     // distinct level
		line(LineResistance, 100, 105, 0.7, 3, now),  // same level, other type
	}

	out := Deduplicate(lines, 0.01)
	if len(out) != 3 {
		t.Fatalf("Expected 3 lines after dedup, got %d", len(out))
	}

	for _, l := range out {
		if l.LineType == LineSupport && l.End.Price == 105 && l.Strength != 0.9 {
			t.Error("Dedup must keep the strongest of a cluster")
		}
	}
}

// TestRankByRelevance verifies proximity to price dominates the ordering
func TestRankByRelevance(t *testing.T) {
	now := time.Now()
	near := line(LineSupport, 99, 101, 0.5, 3, now)
	far := line(LineSupport, 150, 155, 0.5, 3, now)

	out := RankByRelevance([]Trendline{far, near}, 100, now)
	if len(out) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(out))
	}
	if out[0].End.Price != 101 {
		t.Error("Expected the line near the current price ranked first")
	}
}

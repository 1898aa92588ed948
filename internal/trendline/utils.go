package trendline

import (
	"math"
	"sort"
	"time"
)

// FilterByStrength keeps lines at or above the minimum strength
func FilterByStrength(lines []Trendline, minStrength float64) []Trendline {
	var out []Trendline
	for _, l := range lines {
		if l.Strength >= minStrength {
			out = append(out, l)
		}
	}
	return out
}

// FilterRecent keeps lines whose end anchor is no older than maxAge relative
// to now
func FilterRecent(lines []Trendline, now time.Time, maxAge time.Duration) []Trendline {
	var out []Trendline
	for _, l := range lines {
		if now.Sub(l.End.Timestamp) <= maxAge {
			out = append(out, l)
		}
	}
	return out
}

// Deduplicate collapses same-type lines whose average price differs by less
// than tolerance (relative), keeping the strongest of each cluster
func Deduplicate(lines []Trendline, tolerance float64) []Trendline {
	sorted := make([]Trendline, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Strength > sorted[j].Strength })

	var out []Trendline
	for _, candidate := range sorted {
		duplicate := false
		for _, kept := range out {
			if kept.LineType != candidate.LineType {
				continue
			}
			keptAvg := (kept.Start.Price + kept.End.Price) / 2
			candAvg := (candidate.Start.Price + candidate.End.Price) / 2
			if keptAvg > 0 && math.Abs(candAvg-keptAvg)/keptAvg < tolerance {
				duplicate = true
				break
			}
		}
		if !duplicate {
			out = append(out, candidate)
		}
	}
	return out
}

// RankByRelevance orders lines by proximity to the current price, touch
// count, and recency, most relevant first
func RankByRelevance(lines []Trendline, currentPrice float64, now time.Time) []Trendline {
	type scored struct {
		line  Trendline
		score float64
	}

	items := make([]scored, 0, len(lines))
	for _, l := range lines {
		score := 0.0

		avg := (l.Start.Price + l.End.Price) / 2
		if currentPrice > 0 && avg > 0 {
			distance := math.Abs(avg-currentPrice) / currentPrice
			score += math.Max(0, 1-distance*10) * 0.5 // within 10% scores, closer is better
		}

		score += math.Min(1, float64(l.TouchPoints)/6.0) * 0.3

		age := now.Sub(l.End.Timestamp)
		if age < 0 {
			age = 0
		}
		score += math.Max(0, 1-age.Hours()/(24*7)) * 0.2 // fades over a week

		items = append(items, scored{line: l, score: score})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].score > items[j].score })

	out := make([]Trendline, len(items))
	for i, it := range items {
		out[i] = it.line
	}
	return out
}

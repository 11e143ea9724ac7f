// Package stats computes grouped descriptive statistics over tidy records.
package stats

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"wbi/internal/model"
	"wbi/internal/numfmt"
)

// GroupedSummary groups points by (IndicatorID, CountryISO3) and summarises
// each group. Output is ordered lexicographically by indicator, then ISO3.
// Count is the number of records in the group; Missing counts records whose
// value is absent or non-finite.
func GroupedSummary(points []model.DataPoint) []model.Summary {
	groups := make(map[model.GroupKey][]*float64)
	counts := make(map[model.GroupKey]int)
	for _, p := range points {
		key := p.Key()
		counts[key]++
		groups[key] = append(groups[key], p.Value)
	}

	keys := make([]model.GroupKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	out := make([]model.Summary, 0, len(keys))
	for _, key := range keys {
		out = append(out, summarize(key, counts[key], groups[key]))
	}
	return out
}

func summarize(key model.GroupKey, count int, values []*float64) model.Summary {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
			continue
		}
		finite = append(finite, *v)
	}

	s := model.Summary{Key: key, Count: count, Missing: count - len(finite)}
	if len(finite) == 0 {
		return s
	}

	sort.Float64s(finite)
	n := len(finite)
	median := finite[n/2]
	if n%2 == 0 {
		median = midpoint(finite[n/2-1], finite[n/2])
	}

	s.Min = model.Float(finite[0])
	s.Max = model.Float(finite[n-1])
	s.Mean = model.Float(mean(finite))
	s.Median = model.Float(median)
	return s
}

// mean sums directly and rescales each term by n only when the plain sum
// overflows, so any finite input gives a finite result.
func mean(values []float64) float64 {
	n := float64(len(values))
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	if !math.IsInf(sum, 0) {
		return sum / n
	}
	scaled := 0.0
	for _, v := range values {
		scaled += v / n
	}
	return scaled
}

func midpoint(a, b float64) float64 {
	if (a < 0) != (b < 0) {
		return (a + b) / 2
	}
	return a + (b-a)/2
}

// FormatSummary renders one summary as a single human-readable line.
func FormatSummary(s model.Summary, f *numfmt.Formatter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s • %s  count=%s missing=%s", s.Key.CountryISO3, s.Key.IndicatorID, f.Int(s.Count), f.Int(s.Missing))
	fmt.Fprintf(&b, "  min=%s max=%s mean=%s median=%s",
		f.Optional(s.Min), f.Optional(s.Max), f.Optional(s.Mean), f.Optional(s.Median))
	return b.String()
}

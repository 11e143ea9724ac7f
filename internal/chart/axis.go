package chart

import (
	"math"
	"strconv"
	"strings"

	"wbi/internal/model"
	"wbi/internal/numfmt"
)

// AxisUnit picks the y-axis unit: the single distinct non-empty unit carried
// by the points, else the last parenthesised part of the only indicator name.
func AxisUnit(points []model.DataPoint) string {
	units := make(map[string]struct{})
	names := make(map[string]struct{})
	var lastUnit, lastName string
	for _, p := range points {
		if u := p.UnitString(); u != "" {
			units[u] = struct{}{}
			lastUnit = u
		}
		names[p.IndicatorName] = struct{}{}
		lastName = p.IndicatorName
	}
	if len(units) == 1 {
		return lastUnit
	}
	if len(names) == 1 {
		return unitFromName(lastName)
	}
	return ""
}

func unitFromName(name string) string {
	open := strings.LastIndex(name, "(")
	closing := strings.LastIndex(name, ")")
	if open < 0 || closing <= open {
		return ""
	}
	return strings.TrimSpace(name[open+1 : closing])
}

func isPercentLike(unit string) bool {
	u := strings.ToLower(unit)
	return strings.Contains(u, "%") || strings.Contains(u, "percent") || strings.Contains(u, "per cent")
}

type axisScale struct {
	Divisor float64
	Word    string
}

// ScaleFor picks the y divisor from the largest magnitude. Percent-like units
// are never scaled.
func ScaleFor(maxAbs float64, unit string) axisScale {
	if unit != "" && isPercentLike(unit) {
		return axisScale{Divisor: 1}
	}
	switch {
	case maxAbs >= 1e12:
		return axisScale{Divisor: 1e12, Word: "trillions"}
	case maxAbs >= 1e9:
		return axisScale{Divisor: 1e9, Word: "billions"}
	case maxAbs >= 1e6:
		return axisScale{Divisor: 1e6, Word: "millions"}
	case maxAbs >= 1e3:
		return axisScale{Divisor: 1e3, Word: "thousands"}
	default:
		return axisScale{Divisor: 1}
	}
}

// YTitle combines the unit and scale word, e.g. "current US$ (millions)".
func YTitle(unit string, scale axisScale) string {
	if unit == "" {
		unit = "Value"
	}
	if scale.Word == "" {
		return unit
	}
	return unit + " (" + scale.Word + ")"
}

// YTickLabel formats an already scaled tick value with 0, 1 or 2 decimals
// depending on its magnitude.
func YTickLabel(f *numfmt.Formatter, v float64) string {
	a := math.Abs(v)
	switch {
	case a >= 100:
		return f.Fixed(v, 0)
	case a >= 10:
		return f.Fixed(v, 1)
	default:
		return f.Fixed(v, 2)
	}
}

// niceTicks spans [lo, hi] with about target evenly spaced round values. The
// first and last tick enclose the range.
func niceTicks(lo, hi float64, target int) []float64 {
	if hi < lo {
		lo, hi = hi, lo
	}
	if hi == lo {
		lo, hi = lo-1, hi+1
	}
	step := niceStep((hi - lo) / float64(target))
	start := math.Floor(lo/step) * step
	end := math.Ceil(hi/step) * step
	var ticks []float64
	for i := 0; ; i++ {
		v := start + float64(i)*step
		if v > end+step/2 {
			break
		}
		if math.Abs(v) < step*1e-9 {
			v = 0
		}
		ticks = append(ticks, v)
	}
	return ticks
}

func niceStep(raw float64) float64 {
	exp := math.Floor(math.Log10(raw))
	base := math.Pow(10, exp)
	frac := raw / base
	switch {
	case frac <= 1:
		return base
	case frac <= 2:
		return 2 * base
	case frac <= 5:
		return 5 * base
	default:
		return 10 * base
	}
}

// yearTicks labels at most twelve whole years between minYear and maxYear.
func yearTicks(minYear, maxYear int) []int {
	span := maxYear - minYear + 1
	step := (span + 11) / 12
	if step < 1 {
		step = 1
	}
	var years []int
	for y := minYear; y <= maxYear; y += step {
		years = append(years, y)
	}
	return years
}

func yearLabel(year int) string {
	return strconv.Itoa(year)
}

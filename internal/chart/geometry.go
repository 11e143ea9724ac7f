package chart

import (
	"math"

	gochart "github.com/wcharczuk/go-chart/v2"

	"wbi/internal/numfmt"
)

// geometry holds what gets drawn for each series in data units, before and
// after the y scale divisor is applied.
type geometry struct {
	kind    Kind
	years   [][]int
	xs      [][]float64
	ys      [][]float64
	stack   Stack
	lower   [][]float64
	upper   [][]float64
	minYear int
	maxYear int

	dataMin  float64
	dataMax  float64
	baseline float64
	lo, hi   float64
}

func newGeometry(series []Series, opts Options) (*geometry, error) {
	g := &geometry{kind: opts.Kind}
	minYear, maxYear, _ := yearBounds(series)
	g.minYear, g.maxYear = minYear, maxYear

	for _, s := range series {
		xs := make([]float64, len(s.Years))
		for i, y := range s.Years {
			xs[i] = float64(y)
		}
		ys := append([]float64(nil), s.Values...)
		if opts.Kind == KindLoess {
			smoothed, err := Loess(xs, ys, opts.LoessSpan)
			if err != nil {
				return nil, err
			}
			ys = smoothed
		}
		g.years = append(g.years, s.Years)
		g.xs = append(g.xs, xs)
		g.ys = append(g.ys, ys)
	}

	if opts.Kind == KindStackedArea {
		g.stack = StackSeries(series)
		g.lower = g.stack.Lower
		g.upper = g.stack.Upper
	}
	g.bounds()
	return g, nil
}

// bounds finds the value range the axis must cover for this kind.
func (g *geometry) bounds() {
	lo, hi := math.Inf(1), math.Inf(-1)
	if g.kind == KindStackedArea {
		lo = 0
		for _, upper := range g.upper {
			for _, v := range upper {
				hi = math.Max(hi, v)
			}
		}
		hi = math.Max(hi, 0)
	} else {
		for _, ys := range g.ys {
			for _, v := range ys {
				lo = math.Min(lo, v)
				hi = math.Max(hi, v)
			}
		}
	}
	g.dataMin, g.dataMax = lo, hi
	g.baseline = math.Min(0, lo)

	if g.kind == KindArea || g.kind == KindGroupedBar {
		lo = math.Min(lo, 0)
		hi = math.Max(hi, 0)
	}
	if lo == hi {
		lo, hi = lo-1, hi+1
	}
	g.lo, g.hi = lo, hi
}

// rescale divides every drawn y value by the axis divisor.
func (g *geometry) rescale(div float64) {
	if div == 1 {
		return
	}
	scaleAll := func(rows [][]float64) [][]float64 {
		out := make([][]float64, len(rows))
		for i, row := range rows {
			out[i] = make([]float64, len(row))
			for j, v := range row {
				out[i][j] = v / div
			}
		}
		return out
	}
	g.ys = scaleAll(g.ys)
	g.lower = scaleAll(g.lower)
	g.upper = scaleAll(g.upper)
	g.baseline /= div
	g.lo /= div
	g.hi /= div
}

func (g *geometry) xTicks() []gochart.Tick {
	if g.kind == KindGroupedBar {
		ticks := []gochart.Tick{{Value: float64(g.minYear) - 0.5}}
		for _, y := range yearTicks(g.minYear, g.maxYear) {
			ticks = append(ticks, gochart.Tick{Value: float64(y), Label: yearLabel(y)})
		}
		return append(ticks, gochart.Tick{Value: float64(g.maxYear) + 0.5})
	}
	minYear, maxYear := g.minYear, g.maxYear
	if minYear == maxYear {
		minYear, maxYear = minYear-1, maxYear+1
	}
	var ticks []gochart.Tick
	for _, y := range yearTicks(minYear, maxYear) {
		ticks = append(ticks, gochart.Tick{Value: float64(y), Label: yearLabel(y)})
	}
	if last := ticks[len(ticks)-1].Value; last < float64(maxYear) {
		ticks = append(ticks, gochart.Tick{Value: float64(maxYear)})
	}
	return ticks
}

func (g *geometry) yTicks(f *numfmt.Formatter) []gochart.Tick {
	values := niceTicks(g.lo, g.hi, yTickTarget)
	ticks := make([]gochart.Tick, len(values))
	for i, v := range values {
		ticks[i] = gochart.Tick{Value: v, Label: YTickLabel(f, v)}
	}
	return ticks
}

func (g *geometry) chartSeries(labels []string, styles []SeriesStyle) []gochart.Series {
	var out []gochart.Series
	xsGrid := make([]float64, len(g.stack.Years))
	for i, y := range g.stack.Years {
		xsGrid[i] = float64(y)
	}
	for i := range g.xs {
		name := labels[i]
		xs, ys, style := g.xs[i], g.ys[i], styles[i]
		switch g.kind {
		case KindScatter:
			out = append(out, markerSeries(name, xs, ys, style))
		case KindLinePoints:
			out = append(out, lineSeries(name, xs, ys, style, lineWidth), markerSeries(name, xs, ys, style))
		case KindArea:
			out = append(out, areaSeries(name, xs, ys, g.baseline, style))
		case KindStackedArea:
			out = append(out, bandSeries(name, xsGrid, g.lower[i], g.upper[i], style))
		case KindGroupedBar:
			out = append(out, barSeries(name, g.years[i], ys, i, len(g.xs), style))
		case KindLoess:
			out = append(out, lineSeries(name, xs, ys, style, loessWidth))
		default:
			out = append(out, lineSeries(name, xs, ys, style, lineWidth))
		}
	}
	return out
}

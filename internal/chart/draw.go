package chart

import (
	"math"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	margin        = 16
	titleBand     = 56
	titleFontPx   = 24.0
	lineWidth     = 2
	loessWidth    = 3
	pointRadius   = 3
	areaAlpha     = 51
	stackAlpha    = 77
	barGroupWidth = 0.8
	yTickTarget   = 8
)

var gridColor = drawing.Color{R: 225, G: 225, B: 225, A: 255}

// mapper converts data coordinates into canvas pixels using the ranges the
// chart computed for its axes.
type mapper struct {
	canvas gochart.Box
	x, y   gochart.Range
}

func (m mapper) X(v float64) int { return m.canvas.Left + m.x.Translate(v) }
func (m mapper) Y(v float64) int { return m.canvas.Bottom - m.y.Translate(v) }

// drawnSeries renders through the renderer directly. It lets fills, markers
// and bars interleave with native line series in draw order.
type drawnSeries struct {
	name string
	draw func(r gochart.Renderer, m mapper)
}

func (s drawnSeries) GetName() string { return s.name }
func (s drawnSeries) GetYAxis() gochart.YAxisType { return gochart.YAxisPrimary }
func (s drawnSeries) GetStyle() gochart.Style { return gochart.Style{} }
func (s drawnSeries) Validate() error { return nil }
func (s drawnSeries) Render(r gochart.Renderer, canvas gochart.Box, xr, yr gochart.Range, _ gochart.Style) {
	s.draw(r, mapper{canvas: canvas, x: xr, y: yr})
}

func lineSeries(name string, xs, ys []float64, style SeriesStyle, width float64) gochart.ContinuousSeries {
	return gochart.ContinuousSeries{
		Name:    name,
		XValues: xs,
		YValues: ys,
		Style: gochart.Style{
			StrokeColor:     style.Color,
			StrokeWidth:     width,
			StrokeDashArray: style.Dash.Array(),
		},
	}
}

func markerSeries(name string, xs, ys []float64, style SeriesStyle) drawnSeries {
	return drawnSeries{name: name, draw: func(r gochart.Renderer, m mapper) {
		for i := range xs {
			drawMarker(r, style.Marker, style.Color, m.X(xs[i]), m.Y(ys[i]), pointRadius)
		}
	}}
}

// areaSeries fills between the series and baseline, then strokes the top edge.
func areaSeries(name string, xs, ys []float64, baseline float64, style SeriesStyle) drawnSeries {
	return drawnSeries{name: name, draw: func(r gochart.Renderer, m mapper) {
		if len(xs) == 0 {
			return
		}
		r.SetStrokeWidth(0)
		r.SetFillColor(style.Color.WithAlpha(areaAlpha))
		r.MoveTo(m.X(xs[0]), m.Y(baseline))
		for i := range xs {
			r.LineTo(m.X(xs[i]), m.Y(ys[i]))
		}
		r.LineTo(m.X(xs[len(xs)-1]), m.Y(baseline))
		r.Close()
		r.Fill()
		strokePath(r, m, xs, ys, style.Color, 1)
	}}
}

// bandSeries fills between lower and upper, then strokes upper.
func bandSeries(name string, xs, lower, upper []float64, style SeriesStyle) drawnSeries {
	return drawnSeries{name: name, draw: func(r gochart.Renderer, m mapper) {
		if len(xs) == 0 {
			return
		}
		r.SetStrokeWidth(0)
		r.SetFillColor(style.Color.WithAlpha(stackAlpha))
		r.MoveTo(m.X(xs[0]), m.Y(upper[0]))
		for i := 1; i < len(xs); i++ {
			r.LineTo(m.X(xs[i]), m.Y(upper[i]))
		}
		for i := len(xs) - 1; i >= 0; i-- {
			r.LineTo(m.X(xs[i]), m.Y(lower[i]))
		}
		r.Close()
		r.Fill()
		strokePath(r, m, xs, upper, style.Color, 1)
	}}
}

// barSeries draws the idx-th bar of every year group.
func barSeries(name string, years []int, ys []float64, idx, n int, style SeriesStyle) drawnSeries {
	barW := barGroupWidth / float64(n)
	return drawnSeries{name: name, draw: func(r gochart.Renderer, m mapper) {
		r.SetFillColor(style.Color)
		r.SetStrokeColor(style.Color)
		r.SetStrokeWidth(1)
		r.SetStrokeDashArray(nil)
		for i, year := range years {
			x0 := float64(year) - barGroupWidth/2 + float64(idx)*barW
			x1 := x0 + barW
			y0, y1 := math.Min(0, ys[i]), math.Max(0, ys[i])
			r.MoveTo(m.X(x0), m.Y(y1))
			r.LineTo(m.X(x1), m.Y(y1))
			r.LineTo(m.X(x1), m.Y(y0))
			r.LineTo(m.X(x0), m.Y(y0))
			r.Close()
			r.FillStroke()
		}
	}}
}

func strokePath(r gochart.Renderer, m mapper, xs, ys []float64, color drawing.Color, width float64) {
	r.SetStrokeColor(color)
	r.SetStrokeWidth(width)
	r.SetStrokeDashArray(nil)
	r.MoveTo(m.X(xs[0]), m.Y(ys[0]))
	for i := 1; i < len(xs); i++ {
		r.LineTo(m.X(xs[i]), m.Y(ys[i]))
	}
	r.Stroke()
}

func drawMarker(r gochart.Renderer, marker Marker, color drawing.Color, cx, cy, radius int) {
	r.SetStrokeDashArray(nil)
	r.SetStrokeColor(color)
	r.SetFillColor(color)
	r.SetStrokeWidth(1)
	rad := radius
	switch marker {
	case MarkerSquare:
		polygon(r, [][2]int{{cx - rad, cy - rad}, {cx + rad, cy - rad}, {cx + rad, cy + rad}, {cx - rad, cy + rad}})
	case MarkerTriangle:
		polygon(r, [][2]int{{cx, cy - rad - 1}, {cx + rad + 1, cy + rad}, {cx - rad - 1, cy + rad}})
	case MarkerDiamond:
		polygon(r, [][2]int{{cx, cy - rad - 1}, {cx + rad + 1, cy}, {cx, cy + rad + 1}, {cx - rad - 1, cy}})
	case MarkerCross:
		r.SetStrokeWidth(2)
		r.MoveTo(cx-rad, cy)
		r.LineTo(cx+rad, cy)
		r.MoveTo(cx, cy-rad)
		r.LineTo(cx, cy+rad)
		r.Stroke()
	case MarkerX:
		r.SetStrokeWidth(2)
		r.MoveTo(cx-rad, cy-rad)
		r.LineTo(cx+rad, cy+rad)
		r.MoveTo(cx+rad, cy-rad)
		r.LineTo(cx-rad, cy+rad)
		r.Stroke()
	default:
		r.Circle(float64(rad), cx, cy)
		r.FillStroke()
	}
}

func polygon(r gochart.Renderer, pts [][2]int) {
	r.MoveTo(pts[0][0], pts[0][1])
	for _, p := range pts[1:] {
		r.LineTo(p[0], p[1])
	}
	r.Close()
	r.FillStroke()
}

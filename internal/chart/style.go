package chart

import (
	"math"
	"math/bits"

	"github.com/cespare/xxhash/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

type RGB struct {
	R, G, B uint8
}

func (c RGB) Color() drawing.Color {
	return drawing.Color{R: c.R, G: c.G, B: c.B, A: 255}
}

// OfficePalette is the ten-color palette used for series and country bases.
var OfficePalette = []RGB{
	{68, 114, 196},
	{237, 125, 49},
	{165, 165, 165},
	{255, 192, 0},
	{91, 155, 213},
	{112, 173, 71},
	{38, 68, 120},
	{158, 72, 14},
	{99, 99, 99},
	{153, 115, 0},
}

type Marker int

const (
	MarkerCircle Marker = iota
	MarkerSquare
	MarkerTriangle
	MarkerDiamond
	MarkerCross
	MarkerX
)

type Dash int

const (
	DashSolid Dash = iota
	DashDashed
	DashDotted
	DashDashDot
)

// Array returns the stroke dash pattern, nil for a solid line.
func (d Dash) Array() []float64 {
	switch d {
	case DashDashed:
		return []float64{8, 4}
	case DashDotted:
		return []float64{2, 4}
	case DashDashDot:
		return []float64{8, 4, 2, 4}
	default:
		return nil
	}
}

// SeriesStyle is the resolved look of one series.
type SeriesStyle struct {
	Base   RGB
	Color  drawing.Color
	Marker Marker
	Dash   Dash
}

// IndexStyle colors series by their position in the sorted series list.
func IndexStyle(palette []RGB, idx int) SeriesStyle {
	base := palette[idx%len(palette)]
	return SeriesStyle{Base: base, Color: base.Color(), Marker: MarkerCircle, Dash: DashSolid}
}

// CountryStyle derives a style from the country and indicator codes alone, so
// a country keeps its color family whichever other series share the chart.
// The indicator picks the shade, marker and dash.
func CountryStyle(palette []RGB, iso3, indicatorID string) SeriesStyle {
	base := countryBase(palette, iso3)
	h := xxhash.Sum64String(indicatorID)
	factor := 0.7 + 0.6*(float64(h%100)/100)
	return SeriesStyle{
		Base:   base,
		Color:  shade(base, factor),
		Marker: Marker(h % 6),
		Dash:   Dash(bits.RotateLeft64(h, 16) % 4),
	}
}

// BaseHue is the hue in degrees of the palette color assigned to iso3.
func BaseHue(palette []RGB, iso3 string) float64 {
	return hue(countryBase(palette, iso3))
}

func countryBase(palette []RGB, iso3 string) RGB {
	return palette[xxhash.Sum64String(iso3)%uint64(len(palette))]
}

func shade(c RGB, factor float64) drawing.Color {
	scale := func(v uint8) uint8 {
		return uint8(math.Max(0, math.Min(255, float64(v)*factor)))
	}
	return drawing.Color{R: scale(c.R), G: scale(c.G), B: scale(c.B), A: 255}
}

func hue(c RGB) float64 {
	r, g, b := float64(c.R)/255, float64(c.G)/255, float64(c.B)/255
	maxC := math.Max(r, math.Max(g, b))
	minC := math.Min(r, math.Min(g, b))
	delta := maxC - minC
	if delta == 0 {
		return 0
	}
	var h float64
	switch maxC {
	case r:
		h = math.Mod((g-b)/delta, 6)
	case g:
		h = (b-r)/delta + 2
	default:
		h = (r-g)/delta + 4
	}
	h *= 60
	if h < 0 {
		h += 360
	}
	return h
}

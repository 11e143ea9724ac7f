package chart

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wbi/internal/model"
)

func point(iso3, country, indicatorID, indicatorName string, year int, value *float64) model.DataPoint {
	return model.DataPoint{
		IndicatorID:   indicatorID,
		IndicatorName: indicatorName,
		CountryISO3:   iso3,
		CountryName:   country,
		Year:          year,
		Value:         value,
	}
}

func samplePoints() []model.DataPoint {
	var points []model.DataPoint
	for i, year := range []int{2000, 2001, 2002, 2003, 2004, 2005} {
		points = append(points,
			point("USA", "United States", "NY.GDP.MKTP.CD", "GDP (current US$)", year, model.Float(1.0e13+float64(i)*5e11)),
			point("DEU", "Germany", "NY.GDP.MKTP.CD", "GDP (current US$)", year, model.Float(2.0e12+float64(i)*1e11)),
		)
	}
	return points
}

func TestBuildSeriesGroupsAndOrders(t *testing.T) {
	points := []model.DataPoint{
		point("USA", "United States", "B", "Beta", 2001, model.Float(2)),
		point("USA", "United States", "B", "Beta", 2000, model.Float(1)),
		point("DEU", "Germany", "B", "Beta", 2000, nil),
		point("DEU", "Germany", "A", "Alpha", 2000, model.Float(3)),
		point("USA", "United States", "A", "Alpha", 2000, model.Float(4)),
	}

	series := BuildSeries(points)
	require.Len(t, series, 3)

	assert.Equal(t, "DEU", series[0].CountryISO3)
	assert.Equal(t, "A", series[0].IndicatorID)
	assert.Equal(t, "USA", series[1].CountryISO3)
	assert.Equal(t, "A", series[1].IndicatorID)
	assert.Equal(t, "B", series[2].IndicatorID)
	assert.Equal(t, []int{2000, 2001}, series[2].Years)
	assert.Equal(t, []float64{1, 2}, series[2].Values)
}

func TestBuildSeriesAllMissing(t *testing.T) {
	assert.Empty(t, BuildSeries([]model.DataPoint{point("USA", "US", "A", "A", 2000, nil)}))
}

func TestLabels(t *testing.T) {
	oneIndicator := BuildSeries([]model.DataPoint{
		point("USA", "United States", "A", "Alpha", 2000, model.Float(1)),
		point("DEU", "Germany", "A", "Alpha", 2000, model.Float(1)),
	})
	assert.Equal(t, []string{"Germany", "United States"}, Labels(oneIndicator))

	oneCountry := BuildSeries([]model.DataPoint{
		point("USA", "United States", "A", "Alpha", 2000, model.Float(1)),
		point("USA", "United States", "B", "Beta", 2000, model.Float(1)),
	})
	assert.Equal(t, []string{"Alpha", "Beta"}, Labels(oneCountry))

	mixed := BuildSeries([]model.DataPoint{
		point("USA", "United States", "A", "Alpha", 2000, model.Float(1)),
		point("DEU", "Germany", "B", "Beta", 2000, model.Float(1)),
	})
	assert.Equal(t, []string{"Germany — Beta", "United States — Alpha"}, Labels(mixed))
}

func TestTitle(t *testing.T) {
	names := func(n ...string) []model.DataPoint {
		var out []model.DataPoint
		for _, name := range n {
			out = append(out, model.DataPoint{IndicatorName: name})
		}
		return out
	}

	assert.Equal(t, "Custom", Title(" Custom ", names("A")))
	assert.Equal(t, "World Bank Series", Title("", nil))
	assert.Equal(t, "GDP", Title("World Bank Indicator(s)", names("GDP", "GDP")))
	assert.Equal(t, "A, B, C", Title("", names("C", "A", "B")))
	assert.Equal(t, "A + 3 more", Title("", names("D", "C", "B", "A")))
}

func TestCountryStyleIsStablePerCountry(t *testing.T) {
	gdp := CountryStyle(OfficePalette, "DEU", "NY.GDP.MKTP.CD")
	pop := CountryStyle(OfficePalette, "DEU", "SP.POP.TOTL")

	assert.Equal(t, gdp.Base, pop.Base)
	assert.Equal(t, gdp, CountryStyle(OfficePalette, "DEU", "NY.GDP.MKTP.CD"))
	assert.InDelta(t, BaseHue(OfficePalette, "DEU"), hue(gdp.Base), 1e-9)

	for _, ind := range []string{"A", "B", "C", "NY.GDP.MKTP.CD", "SP.POP.TOTL"} {
		s := CountryStyle(OfficePalette, "USA", ind)
		assert.GreaterOrEqual(t, int(s.Marker), int(MarkerCircle))
		assert.LessOrEqual(t, int(s.Marker), int(MarkerX))
		assert.GreaterOrEqual(t, int(s.Dash), int(DashSolid))
		assert.LessOrEqual(t, int(s.Dash), int(DashDashDot))
		assert.Equal(t, uint8(255), s.Color.A)
	}
}

func TestCountryStyleIgnoresOtherSeries(t *testing.T) {
	alone := BuildSeries([]model.DataPoint{point("FRA", "France", "A", "A", 2000, model.Float(1))})
	crowded := BuildSeries([]model.DataPoint{
		point("AUT", "Austria", "A", "A", 2000, model.Float(1)),
		point("BEL", "Belgium", "A", "A", 2000, model.Float(1)),
		point("FRA", "France", "A", "A", 2000, model.Float(1)),
	})
	require.Equal(t, "FRA", crowded[2].CountryISO3)

	a := CountryStyle(OfficePalette, alone[0].CountryISO3, alone[0].IndicatorID)
	b := CountryStyle(OfficePalette, crowded[2].CountryISO3, crowded[2].IndicatorID)
	assert.Equal(t, a, b)
	assert.NotEqual(t, IndexStyle(OfficePalette, 0), IndexStyle(OfficePalette, 2))
}

func TestCountryStyleSingleColorPalette(t *testing.T) {
	palette := []RGB{{10, 20, 30}}
	assert.Equal(t, palette[0], CountryStyle(palette, "USA", "A").Base)
	assert.Equal(t, palette[0], CountryStyle(palette, "DEU", "B").Base)
}

func TestHue(t *testing.T) {
	assert.InDelta(t, 0, hue(RGB{255, 0, 0}), 1e-9)
	assert.InDelta(t, 120, hue(RGB{0, 255, 0}), 1e-9)
	assert.InDelta(t, 240, hue(RGB{0, 0, 255}), 1e-9)
	assert.InDelta(t, 0, hue(RGB{99, 99, 99}), 1e-9)
}

func TestStackSeriesClampsNegativesAndFillsGaps(t *testing.T) {
	series := []Series{
		{Years: []int{2000, 2002}, Values: []float64{1, -5}},
		{Years: []int{2000, 2001, 2002}, Values: []float64{2, 3, 4}},
	}
	st := StackSeries(series)

	assert.Equal(t, []int{2000, 2001, 2002}, st.Years)
	assert.Equal(t, []float64{0, 0, 0}, st.Lower[0])
	assert.Equal(t, []float64{1, 0, 0}, st.Upper[0])
	assert.Equal(t, []float64{1, 0, 0}, st.Lower[1])
	assert.Equal(t, []float64{3, 3, 4}, st.Upper[1])
}

func TestStackSeriesEmpty(t *testing.T) {
	assert.Empty(t, StackSeries(nil).Years)
}

func TestLoessReproducesLine(t *testing.T) {
	var xs, ys []float64
	for i := 0; i < 20; i++ {
		x := float64(2000 + i)
		xs = append(xs, x)
		ys = append(ys, 3*x-100)
	}
	for _, span := range []float64{0.2, 0.5, 1} {
		got, err := Loess(xs, ys, span)
		require.NoError(t, err)
		for i := range ys {
			assert.InDelta(t, ys[i], got[i], 1e-6, "span %v index %d", span, i)
		}
	}
}

func TestLoessSmoothsNoise(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	ys := []float64{1, 10, 1, 10, 1, 10, 1, 10}
	got, err := Loess(xs, ys, 0.75)
	require.NoError(t, err)
	for _, v := range got {
		assert.False(t, math.IsNaN(v))
		assert.Greater(t, v, 0.0)
		assert.Less(t, v, 11.0)
	}
}

func TestLoessFullSpanKeepsIncreasingSeriesMonotone(t *testing.T) {
	xs := make([]float64, 15)
	for i := range xs {
		xs[i] = float64(2000 + i)
	}
	shapes := map[string]func(i int) float64{
		"step":        func(i int) float64 { return float64(i / 5 * 10) },
		"exponential": func(i int) float64 { return math.Exp(float64(i) / 3) },
		"outlier": func(i int) float64 {
			if i == 14 {
				return 1000
			}
			return float64(i)
		},
		"plateau": func(i int) float64 { return math.Min(float64(i), 6) },
		"jump": func(i int) float64 {
			if i < 7 {
				return float64(i)
			}
			return 200 + float64(i)
		},
	}
	for name, shape := range shapes {
		ys := make([]float64, len(xs))
		for i := range ys {
			ys[i] = shape(i)
		}
		got, err := Loess(xs, ys, 1)
		require.NoError(t, err, name)
		for i := 1; i < len(got); i++ {
			assert.GreaterOrEqual(t, got[i], got[i-1]-1e-9, "%s index %d", name, i)
		}
	}
}

func TestLoessInvalidSpan(t *testing.T) {
	xs := []float64{1, 2, 3}
	for _, span := range []float64{0, -0.1, 1.5, math.NaN()} {
		_, err := Loess(xs, xs, span)
		assert.True(t, errors.Is(err, ErrInvalidInput), "span %v", span)
	}
}

func TestLoessShortSeries(t *testing.T) {
	got, err := Loess([]float64{1, 2}, []float64{5, 7}, 0.3)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 7}, got)
}

func TestAxisUnit(t *testing.T) {
	withUnit := func(unit string) model.DataPoint {
		return model.DataPoint{IndicatorName: "GDP growth (annual %)", Unit: model.String(unit)}
	}
	assert.Equal(t, "USD", AxisUnit([]model.DataPoint{withUnit("USD"), withUnit(""), withUnit("USD")}))
	assert.Equal(t, "annual %", AxisUnit([]model.DataPoint{withUnit(""), withUnit("")}))
	assert.Equal(t, "annual %", AxisUnit([]model.DataPoint{withUnit("USD"), withUnit("EUR")}))
	assert.Equal(t, "", AxisUnit([]model.DataPoint{{IndicatorName: "A (x)"}, {IndicatorName: "B (y)"}}))
	assert.Equal(t, "", AxisUnit([]model.DataPoint{{IndicatorName: "Population, total"}}))
}

func TestScaleAndTitle(t *testing.T) {
	tests := []struct {
		maxAbs float64
		unit   string
		want   string
	}{
		{maxAbs: 2.1e13, unit: "current US$", want: "current US$ (trillions)"},
		{maxAbs: 5e9, unit: "", want: "Value (billions)"},
		{maxAbs: 8e7, unit: "people", want: "people (millions)"},
		{maxAbs: 1500, unit: "", want: "Value (thousands)"},
		{maxAbs: 12, unit: "", want: "Value"},
		{maxAbs: 5e6, unit: "annual %", want: "annual %"},
		{maxAbs: 5e6, unit: "Percent of GDP", want: "Percent of GDP"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, YTitle(tt.unit, ScaleFor(tt.maxAbs, tt.unit)))
	}
}

func TestYTickLabel(t *testing.T) {
	table := DefaultConfig().Locales
	en, err := table.Lookup("en")
	require.NoError(t, err)
	de, err := table.Lookup("de")
	require.NoError(t, err)

	assert.Equal(t, "1,235", YTickLabel(en, 1234.6))
	assert.Equal(t, "1.235", YTickLabel(de, 1234.6))
	assert.Equal(t, "12.5", YTickLabel(en, 12.46))
	assert.Equal(t, "0,25", YTickLabel(de, 0.25))
}

func TestNiceTicks(t *testing.T) {
	assert.Equal(t, []float64{0, 2, 4, 6, 8, 10}, niceTicks(0, 9.5, 8))
	ticks := niceTicks(-3, 3, 8)
	assert.LessOrEqual(t, ticks[0], -3.0)
	assert.GreaterOrEqual(t, ticks[len(ticks)-1], 3.0)
	assert.Contains(t, ticks, 0.0)
	flat := niceTicks(5, 5, 8)
	assert.LessOrEqual(t, flat[0], 4.0)
	assert.GreaterOrEqual(t, flat[len(flat)-1], 6.0)
}

func TestYearTicks(t *testing.T) {
	assert.Len(t, yearTicks(2000, 2020), 11)
	assert.Equal(t, []int{2000, 2001, 2002}, yearTicks(2000, 2002))
	assert.LessOrEqual(t, len(yearTicks(1960, 2030)), 12)
}

func TestTextHelpers(t *testing.T) {
	assert.Equal(t, 24, TextWidth("abcd", 10))
	assert.Equal(t, "Hell…", TruncateToWidth("Hello World", 10, 30))
	assert.Equal(t, "short", TruncateToWidth("short", 10, 100))
	assert.Equal(t, []string{"alpha beta", "gamma"}, WrapToWidth("alpha beta gamma", 10, 60))
	assert.Equal(t, []string{"abcde", "fghij", "kl"}, WrapToWidth("abcdefghijkl", 10, 30))
	assert.Equal(t, []string{"a…"}, WrapToWidth("abc", 10, 12))
}

func TestLayoutRows(t *testing.T) {
	labels := []string{"Germany", "United States", "France", "Japan"}
	wide := LayoutRows(labels, 32, 1200)
	require.Len(t, wide.Rows, 1)
	assert.Equal(t, legendMinBand, wide.Height)
	assert.Len(t, wide.ColumnX, 4)

	narrow := LayoutRows(labels, 32, 260)
	assert.Greater(t, len(narrow.Rows), 1)
	assert.Greater(t, narrow.Height, wide.Height)

	long := strings.Repeat("Very long indicator name ", 8)
	wrapped := LayoutRows([]string{long}, 32, 400)
	assert.Greater(t, len(wrapped.Lines[0]), 1)
	assert.GreaterOrEqual(t, wrapped.Height, legendPadBand+8+len(wrapped.Lines[0])*legendLineH+legendPadBand)
}

func TestParseKindAndLegend(t *testing.T) {
	k, err := ParseKind("Line_Points")
	require.NoError(t, err)
	assert.Equal(t, KindLinePoints, k)
	_, err = ParseKind("pie")
	assert.True(t, errors.Is(err, ErrInvalidInput))

	l, err := ParseLegend("")
	require.NoError(t, err)
	assert.Equal(t, LegendBottom, l)
	_, err = ParseLegend("left")
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestRenderPNGAndSVG(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	png, err := engine.Render(samplePoints(), FormatPNG, Options{Width: 800, Height: 500})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	svg, err := engine.Render(samplePoints(), FormatSVG, Options{Width: 800, Height: 500, Title: "GDP"})
	require.NoError(t, err)
	assert.Contains(t, string(svg), "<svg")
}

func TestRenderEveryKindAndLegend(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	points := samplePoints()
	points = append(points, point("DEU", "Germany", "SP.POP.TOTL", "Population, total", 2003, model.Float(-5)))

	kinds := []Kind{KindLine, KindScatter, KindLinePoints, KindArea, KindStackedArea, KindGroupedBar, KindLoess}
	legends := []Legend{LegendInside, LegendRight, LegendTop, LegendBottom}
	for _, kind := range kinds {
		for _, legend := range legends {
			for _, format := range []Format{FormatSVG, FormatPNG} {
				out, err := engine.Render(points, format, Options{
					Width:         900,
					Height:        600,
					Kind:          kind,
					Legend:        legend,
					Locale:        "de",
					CountryStyles: legend == LegendRight,
				})
				require.NoError(t, err, "%s/%s/%s", kind, legend, format)
				assert.NotEmpty(t, out)
			}
		}
	}
}

func TestRenderSinglePoint(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	out, err := engine.Render([]model.DataPoint{point("USA", "US", "A", "A", 2020, model.Float(0))}, FormatPNG, Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestPlotWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chart.svg")
	require.NoError(t, NewEngine(DefaultConfig()).Plot(samplePoints(), path, Options{Kind: KindLoess, LoessSpan: 0.5}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "(LOESS)")
}

func TestPlotFailuresLeaveNoFile(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	dir := t.TempDir()

	tests := []struct {
		name   string
		path   string
		points []model.DataPoint
		opts   Options
		want   error
	}{
		{name: "unknown locale", path: "a.png", points: samplePoints(), opts: Options{Locale: "tlh"}, want: ErrUnknownLocale},
		{name: "unsupported extension", path: "a.gif", points: samplePoints(), want: ErrUnsupportedFormat},
		{name: "no data", path: "a.svg", points: []model.DataPoint{point("USA", "US", "A", "A", 2000, nil)}, want: ErrNoData},
		{name: "bad span", path: "a.svg", points: samplePoints(), opts: Options{Kind: KindLoess, LoessSpan: 2}, want: ErrInvalidInput},
		{name: "bad size", path: "a.svg", points: samplePoints(), opts: Options{Width: -1}, want: ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.path)
			err := engine.Plot(tt.points, path, tt.opts)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), err.Error())
			_, statErr := os.Stat(path)
			assert.True(t, os.IsNotExist(statErr))
		})
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

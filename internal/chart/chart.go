// Package chart renders indicator series to PNG or SVG with go-chart. Output
// is built in memory and written atomically, so a failed render never leaves
// a partial file behind.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"wbi/internal/atomicfile"
	"wbi/internal/metrics"
	"wbi/internal/model"
	"wbi/internal/numfmt"
)

var (
	ErrNoData            = errors.New("chart: no data to plot")
	ErrInvalidInput      = errors.New("chart: invalid input")
	ErrUnknownLocale     = numfmt.ErrUnknownLocale
	ErrUnsupportedFormat = errors.New("chart: unsupported output format")
)

type Kind string

const (
	KindLine        Kind = "line"
	KindScatter     Kind = "scatter"
	KindLinePoints  Kind = "line-points"
	KindArea        Kind = "area"
	KindStackedArea Kind = "stacked-area"
	KindGroupedBar  Kind = "grouped-bar"
	KindLoess       Kind = "loess"
)

// ParseKind accepts the CLI spellings, e.g. "linepoints" or "stacked_area".
func ParseKind(s string) (Kind, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-") {
	case "", "line":
		return KindLine, nil
	case "scatter":
		return KindScatter, nil
	case "line-points", "linepoints":
		return KindLinePoints, nil
	case "area":
		return KindArea, nil
	case "stacked-area", "stackedarea", "stacked":
		return KindStackedArea, nil
	case "grouped-bar", "groupedbar", "bar", "bars":
		return KindGroupedBar, nil
	case "loess":
		return KindLoess, nil
	}
	return "", fmt.Errorf("%w: unknown chart kind %q", ErrInvalidInput, s)
}

type Legend string

const (
	LegendInside Legend = "inside"
	LegendRight  Legend = "right"
	LegendTop    Legend = "top"
	LegendBottom Legend = "bottom"
)

func ParseLegend(s string) (Legend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "bottom":
		return LegendBottom, nil
	case "top":
		return LegendTop, nil
	case "right":
		return LegendRight, nil
	case "inside":
		return LegendInside, nil
	}
	return "", fmt.Errorf("%w: unknown legend mode %q", ErrInvalidInput, s)
}

type Format string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))); f {
	case FormatPNG, FormatSVG:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// FormatFromPath picks the backend from the file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

func (f Format) ContentType() string {
	if f == FormatSVG {
		return gochart.ContentTypeSVG
	}
	return gochart.ContentTypePNG
}

func (f Format) provider() gochart.RendererProvider {
	if f == FormatSVG {
		return gochart.SVG
	}
	return gochart.PNG
}

const (
	DefaultWidth     = 1000
	DefaultHeight    = 600
	DefaultLoessSpan = 0.3
)

type Options struct {
	Width         int
	Height        int
	Locale        string
	Legend        Legend
	Title         string
	Kind          Kind
	LoessSpan     float64
	CountryStyles bool
}

func (o Options) withDefaults() Options {
	if o.Width == 0 {
		o.Width = DefaultWidth
	}
	if o.Height == 0 {
		o.Height = DefaultHeight
	}
	if o.Legend == "" {
		o.Legend = LegendBottom
	}
	if o.Kind == "" {
		o.Kind = KindLine
	}
	if o.LoessSpan == 0 {
		o.LoessSpan = DefaultLoessSpan
	}
	return o
}

func (o Options) validate() error {
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidInput, o.Width, o.Height)
	}
	if _, err := ParseKind(string(o.Kind)); err != nil {
		return err
	}
	if _, err := ParseLegend(string(o.Legend)); err != nil {
		return err
	}
	if o.Kind == KindLoess && (math.IsNaN(o.LoessSpan) || o.LoessSpan <= 0 || o.LoessSpan > 1) {
		return fmt.Errorf("%w: loess span %v outside (0, 1]", ErrInvalidInput, o.LoessSpan)
	}
	return nil
}

// Config holds what the engine needs besides per-call options.
type Config struct {
	Palette []RGB
	Locales numfmt.Table
}

func DefaultConfig() Config {
	return Config{Palette: OfficePalette, Locales: numfmt.DefaultTable()}
}

type Engine struct {
	config  Config
	metrics *metrics.Collector
}

type Option func(*Engine)

func WithMetrics(m *metrics.Collector) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func NewEngine(cfg Config, opts ...Option) *Engine {
	if len(cfg.Palette) == 0 {
		cfg.Palette = OfficePalette
	}
	if cfg.Locales == nil {
		cfg.Locales = numfmt.DefaultTable()
	}
	e := &Engine{config: cfg}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Plot renders points and writes the image to path. The extension selects PNG
// or SVG; any other extension fails before anything is written.
func (e *Engine) Plot(points []model.DataPoint, path string, opts Options) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	data, err := e.Render(points, format, opts)
	if err != nil {
		return err
	}
	if err := atomicfile.Write(path, data, 0o644); err != nil {
		return fmt.Errorf("chart: %w", err)
	}
	return nil
}

// Render returns the encoded image.
func (e *Engine) Render(points []model.DataPoint, format Format, opts Options) ([]byte, error) {
	start := time.Now()
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	f, err := e.config.Locales.Lookup(opts.Locale)
	if err != nil {
		return nil, fmt.Errorf("chart: %w", err)
	}

	series := BuildSeries(points)
	if len(series) == 0 {
		return nil, ErrNoData
	}

	c, err := e.build(points, series, opts, f)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := c.Render(format.provider(), &buf); err != nil {
		return nil, fmt.Errorf("chart: render %s: %w", format, err)
	}
	e.metrics.RecordRender(string(format), time.Since(start))
	return buf.Bytes(), nil
}

// build lays out the chart: series geometry, axis ticks, reserved legend
// space and the legend element.
func (e *Engine) build(points []model.DataPoint, series []Series, opts Options, f *numfmt.Formatter) (gochart.Chart, error) {
	styles := make([]SeriesStyle, len(series))
	for i, s := range series {
		if opts.CountryStyles {
			styles[i] = CountryStyle(e.config.Palette, s.CountryISO3, s.IndicatorID)
		} else {
			styles[i] = IndexStyle(e.config.Palette, i)
		}
	}
	labels := Labels(series)
	if opts.Kind == KindLoess {
		for i := range labels {
			labels[i] += " (LOESS)"
		}
	}

	geo, err := newGeometry(series, opts)
	if err != nil {
		return gochart.Chart{}, err
	}

	var valued []model.DataPoint
	for _, p := range points {
		if p.Value != nil {
			valued = append(valued, p)
		}
	}
	unit := AxisUnit(valued)
	scale := ScaleFor(math.Max(math.Abs(geo.dataMin), math.Abs(geo.dataMax)), unit)
	geo.rescale(scale.Divisor)

	font, err := gochart.GetDefaultFont()
	if err != nil {
		return gochart.Chart{}, fmt.Errorf("chart: load font: %w", err)
	}

	items := make([]legendItem, len(series))
	for i := range series {
		items[i] = legendItem{Label: labels[i], Style: styles[i]}
	}

	padding := gochart.Box{Top: titleBand, Left: margin, Right: margin, Bottom: margin}
	title := Title(opts.Title, valued)
	titleStyle := gochart.Style{
		FontSize: pointsFor(titleFontPx),
		Padding:  gochart.Box{Top: 10},
	}
	var layout LegendLayout
	legendStartX := margin + legendMarkerGap + legendMarkerRadius
	rightWidth := int(float64(opts.Width) * legendRightShare)
	switch opts.Legend {
	case LegendTop, LegendBottom:
		layout = LayoutRows(labels, legendStartX, opts.Width)
		if opts.Legend == LegendTop {
			padding.Top += layout.Height
			titleStyle.Padding.Top += layout.Height
		} else {
			padding.Bottom += layout.Height
		}
	case LegendRight:
		padding.Right += rightWidth
	}
	title = TruncateToWidth(title, titleFontPx, opts.Width-2*margin)

	withShape := opts.CountryStyles
	legendElement := func(r gochart.Renderer, canvas gochart.Box, defaults gochart.Style) {
		if defaults.Font == nil {
			defaults.Font = font
		}
		p := newLegendPainter(r, defaults, withShape)
		switch opts.Legend {
		case LegendTop:
			p.band(items, layout, 0)
		case LegendBottom:
			p.band(items, layout, opts.Height-layout.Height)
		case LegendRight:
			p.column(items, opts.Width-rightWidth, rightWidth)
		case LegendInside:
			p.inside(items, canvas)
		}
	}

	c := gochart.Chart{
		Title:      title,
		TitleStyle: titleStyle,
		Width:      opts.Width,
		Height:     opts.Height,
		Font:       font,
		Background: gochart.Style{
			Padding:   padding,
			FillColor: drawing.ColorWhite,
		},
		XAxis: gochart.XAxis{
			Name:  "Year",
			Ticks: geo.xTicks(),
		},
		YAxis: gochart.YAxis{
			Name:           YTitle(unit, scale),
			Ticks:          geo.yTicks(f),
			GridMajorStyle: gochart.Style{StrokeColor: gridColor, StrokeWidth: 1},
		},
		Series:   geo.chartSeries(labels, styles),
		Elements: []gochart.Renderable{legendElement},
	}
	return c, nil
}

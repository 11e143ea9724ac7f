package chart

import (
	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	legendFontPx       = 14.0
	legendLineH        = 16
	legendRowGap       = 4
	legendPadSmall     = 6
	legendPadBand      = 8
	legendMarkerRadius = 4
	legendMarkerGap    = 12
	legendTrailingGap  = 12
	legendMinColumn    = 60
	legendMinText      = 40
	legendMinBand      = 40
	legendRightShare   = 0.15
	legendSampleWidth  = 16

	// baseline offset below a row centre, about 0.35 of the font size
	legendTextDrop = 5
)

// blockChrome is the horizontal space an item takes besides its text.
const blockChrome = legendMarkerGap + legendMarkerRadius + legendTrailingGap

// LegendLayout is the table layout of a top or bottom legend band. Rows hold
// indices into the label slice; columns share x positions across rows.
type LegendLayout struct {
	Rows       [][]int
	ColumnX    []int
	TextCaps   []int
	Lines      [][]string
	RowHeights []int
	Height     int
}

// LayoutRows greedily packs labels into rows across a band totalW pixels wide
// whose first text column starts at startX. Column widths follow the longest
// single-line label per column when they fit, else uniform slots with
// wrapping. Height includes band padding and is at least legendMinBand.
func LayoutRows(labels []string, startX, totalW int) LegendLayout {
	usable := totalW - legendPadSmall
	perItemCap := int(float64(usable-startX) * 0.35)
	if perItemCap < 140 {
		perItemCap = 140
	}
	blockFor := func(label string, textCap int) int {
		if textCap < legendMinText {
			textCap = legendMinText
		}
		widest := 0
		for _, line := range WrapToWidth(label, legendFontPx, textCap) {
			if w := TextWidth(line, legendFontPx); w > widest {
				widest = w
			}
		}
		return blockChrome + widest
	}

	var rows [][]int
	var cur []int
	x := startX
	for i, label := range labels {
		remaining := usable - x
		if remaining < legendMinText {
			remaining = legendMinText
		}
		block := blockFor(label, min(remaining-blockChrome, perItemCap))
		if x+block > usable && len(cur) > 0 {
			rows = append(rows, cur)
			cur = nil
			x = startX
			block = blockFor(label, min(usable-startX-blockChrome, perItemCap))
		}
		x += block
		cur = append(cur, i)
	}
	if len(cur) > 0 {
		rows = append(rows, cur)
	}

	cols := 1
	for _, row := range rows {
		if len(row) > cols {
			cols = len(row)
		}
	}
	widths := make([]int, cols)
	for i := range widths {
		widths[i] = legendMinColumn
	}
	for _, row := range rows {
		for ci, li := range row {
			if w := blockChrome + TextWidth(labels[li], legendFontPx); w > widths[ci] {
				widths[ci] = w
			}
		}
	}
	needed := startX
	for _, w := range widths {
		needed += w
	}
	if needed > usable {
		uniform := (usable - startX) / cols
		if uniform < legendMinColumn {
			uniform = legendMinColumn
		}
		for i := range widths {
			widths[i] = uniform
		}
	}

	layout := LegendLayout{Rows: rows, Lines: make([][]string, len(labels))}
	acc := startX
	for _, w := range widths {
		layout.ColumnX = append(layout.ColumnX, acc)
		layout.TextCaps = append(layout.TextCaps, max(w-blockChrome, legendMinText))
		acc += w
	}

	height := legendPadBand + 8
	for ri, row := range rows {
		rowH := legendLineH
		for ci, li := range row {
			lines := WrapToWidth(labels[li], legendFontPx, layout.TextCaps[ci])
			layout.Lines[li] = lines
			rowH = max(rowH, max(len(lines), 1)*legendLineH)
		}
		layout.RowHeights = append(layout.RowHeights, rowH)
		height += rowH
		if ri+1 < len(rows) {
			height += legendRowGap
		}
	}
	height += legendPadBand
	layout.Height = max(height, legendMinBand)
	return layout
}

type legendItem struct {
	Label string
	Style SeriesStyle
}

// legendPainter draws legend entries with the shared font settings.
type legendPainter struct {
	r         gochart.Renderer
	font      gochart.Style
	withShape bool
}

func newLegendPainter(r gochart.Renderer, defaults gochart.Style, withShape bool) legendPainter {
	r.SetFont(defaults.Font)
	r.SetFontSize(pointsFor(legendFontPx))
	r.SetFontColor(drawing.ColorBlack)
	return legendPainter{r: r, font: defaults, withShape: withShape}
}

// text draws a line vertically centred on cy.
func (p legendPainter) text(body string, x, cy int) {
	p.r.SetFont(p.font.Font)
	p.r.SetFontSize(pointsFor(legendFontPx))
	p.r.SetFontColor(drawing.ColorBlack)
	p.r.Text(body, x, cy+legendTextDrop)
}

func (p legendPainter) symbol(style SeriesStyle, cx, cy int) {
	if p.withShape {
		p.r.SetStrokeColor(style.Color)
		p.r.SetStrokeWidth(2)
		p.r.SetStrokeDashArray(style.Dash.Array())
		p.r.MoveTo(cx-legendSampleWidth/2, cy)
		p.r.LineTo(cx+legendSampleWidth/2, cy)
		p.r.Stroke()
		p.r.SetStrokeDashArray(nil)
		drawMarker(p.r, style.Marker, style.Color, cx, cy, legendMarkerRadius)
		return
	}
	drawMarker(p.r, MarkerCircle, style.Color, cx, cy, legendMarkerRadius)
}

func (p legendPainter) band(items []legendItem, layout LegendLayout, top int) {
	y := top + legendPadBand + 8
	for ri, row := range layout.Rows {
		rowH := layout.RowHeights[ri]
		cy := y + rowH/2
		for ci, li := range row {
			textX := layout.ColumnX[ci]
			p.symbol(items[li].Style, max(textX-legendMarkerGap, 0), cy)
			lines := layout.Lines[li]
			blockTop := cy - max(len(lines), 1)*legendLineH/2
			for i, line := range lines {
				p.text(line, textX, blockTop+i*legendLineH+legendLineH/2)
			}
		}
		y += rowH + legendRowGap
	}
}

func (p legendPainter) column(items []legendItem, left, width int) {
	const padX = 6
	textX := left + padX + 24
	maxText := max(left+width-textX-padX, legendMinText)
	y := legendPadSmall + 6
	for _, it := range items {
		lines := WrapToWidth(it.Label, legendFontPx, maxText)
		blockH := max(len(lines), 1) * legendLineH
		p.symbol(it.Style, left+padX+12, y+blockH/2)
		for i, line := range lines {
			p.text(line, textX, y+i*legendLineH+legendLineH/2)
		}
		y += blockH + legendRowGap
	}
}

// inside overlays a boxed legend in the upper left corner of the plot.
func (p legendPainter) inside(items []legendItem, canvas gochart.Box) {
	const pad = 8
	widest := 0
	for _, it := range items {
		widest = max(widest, TextWidth(it.Label, legendFontPx))
	}
	maxW := canvas.Width() - 2*pad
	boxW := min(widest+blockChrome+2*pad, max(maxW, 0))
	boxH := len(items)*(legendLineH+legendRowGap) + 2*pad - legendRowGap
	left, top := canvas.Left+pad, canvas.Top+pad

	p.r.SetFillColor(drawing.ColorWhite.WithAlpha(230))
	p.r.SetStrokeColor(drawing.Color{R: 160, G: 160, B: 160, A: 255})
	p.r.SetStrokeWidth(1)
	p.r.SetStrokeDashArray(nil)
	p.r.MoveTo(left, top)
	p.r.LineTo(left+boxW, top)
	p.r.LineTo(left+boxW, top+boxH)
	p.r.LineTo(left, top+boxH)
	p.r.Close()
	p.r.FillStroke()

	textCap := boxW - 2*pad - blockChrome
	y := top + pad
	for _, it := range items {
		cy := y + legendLineH/2
		p.symbol(it.Style, left+pad+legendMarkerRadius+4, cy)
		p.text(TruncateToWidth(it.Label, legendFontPx, textCap), left+pad+legendMarkerGap+legendMarkerRadius+4, cy)
		y += legendLineH + legendRowGap
	}
}

func pointsFor(px float64) float64 {
	return px * 72 / gochart.DefaultDPI
}

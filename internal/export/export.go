// Package export writes data points to CSV, JSON or Parquet. Every writer
// goes through atomicfile, so readers never see a half-written export.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"wbi/internal/atomicfile"
	"wbi/internal/model"
)

var ErrUnsupportedFormat = errors.New("export: unsupported format")

type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
)

// Header is the fixed column order shared by every format.
var Header = []string{
	"indicator_id",
	"indicator_name",
	"country_id",
	"country_name",
	"country_iso3",
	"year",
	"value",
	"unit",
	"obs_status",
	"decimal",
}

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))); f {
	case FormatCSV, FormatJSON, FormatParquet:
		return f, nil
	case "pq":
		return FormatParquet, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Write exports points to path. An empty format is taken from the extension.
func Write(path string, format Format, points []model.DataPoint) error {
	if format == "" {
		format = Format(filepath.Ext(path))
	}
	f, err := ParseFormat(string(format))
	if err != nil {
		return err
	}
	switch f {
	case FormatJSON:
		return WriteJSON(path, points)
	case FormatParquet:
		return WriteParquet(path, points)
	default:
		return WriteCSV(path, points)
	}
}

func WriteCSV(path string, points []model.DataPoint) error {
	return atomicfile.WriteFunc(path, 0o644, func(w io.Writer) error {
		return EncodeCSV(w, points)
	})
}

// EncodeCSV writes the header and one row per point. Text cells that a
// spreadsheet would evaluate as a formula are prefixed with a quote.
func EncodeCSV(w io.Writer, points []model.DataPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, p := range points {
		row := []string{
			guard(p.IndicatorID),
			guard(p.IndicatorName),
			guard(p.CountryID),
			guard(p.CountryName),
			guard(p.CountryISO3),
			strconv.Itoa(p.Year),
			formatValue(p.Value),
			guard(deref(p.Unit)),
			guard(deref(p.ObsStatus)),
			formatDecimal(p.Decimal),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func guard(cell string) string {
	if cell == "" {
		return cell
	}
	switch cell[0] {
	case '=', '+', '-', '@':
		return "'" + cell
	}
	return cell
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatValue(v *float64) string {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatDecimal(d *int) string {
	if d == nil {
		return ""
	}
	return strconv.Itoa(*d)
}

// record fixes the JSON field order and renders absent values as null.
type record struct {
	IndicatorID   string   `json:"indicator_id"`
	IndicatorName string   `json:"indicator_name"`
	CountryID     string   `json:"country_id"`
	CountryName   string   `json:"country_name"`
	CountryISO3   string   `json:"country_iso3"`
	Year          int      `json:"year"`
	Value         *float64 `json:"value"`
	Unit          *string  `json:"unit"`
	ObsStatus     *string  `json:"obs_status"`
	Decimal       *int     `json:"decimal"`
}

func toRecord(p model.DataPoint) record {
	r := record{
		IndicatorID:   p.IndicatorID,
		IndicatorName: p.IndicatorName,
		CountryID:     p.CountryID,
		CountryName:   p.CountryName,
		CountryISO3:   p.CountryISO3,
		Year:          p.Year,
		Unit:          p.Unit,
		ObsStatus:     p.ObsStatus,
		Decimal:       p.Decimal,
	}
	if p.Value != nil && !math.IsNaN(*p.Value) && !math.IsInf(*p.Value, 0) {
		r.Value = p.Value
	}
	return r
}

func WriteJSON(path string, points []model.DataPoint) error {
	return atomicfile.WriteFunc(path, 0o644, func(w io.Writer) error {
		return EncodeJSON(w, points)
	})
}

// EncodeJSON writes points as an indented array.
func EncodeJSON(w io.Writer, points []model.DataPoint) error {
	records := make([]record, len(points))
	for i, p := range points {
		records[i] = toRecord(p)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

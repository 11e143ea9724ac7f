// Package normalize turns raw World Bank API entries into tidy data points.
//
// Upstream fields are loosely typed: numbers arrive as strings, most fields
// are nullable, and the value may be missing entirely. Each field is decoded
// by its own small parser so a bad field only affects that field.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"wbi/internal/model"
)

var (
	errAbsent    = errors.New("normalize: field absent")
	errNotNumber = errors.New("normalize: not a number")
	errNotFinite = errors.New("normalize: non-finite number")
	errNotInt    = errors.New("normalize: not an integer")
)

// Entry is one element of the data array (position 1) of an API response.
// Fields stay raw until Normalize decodes them.
type Entry struct {
	Indicator json.RawMessage `json:"indicator"`
	Country   json.RawMessage `json:"country"`
	ISO3      json.RawMessage `json:"countryiso3code"`
	Date      json.RawMessage `json:"date"`
	Value     json.RawMessage `json:"value"`
	Unit      json.RawMessage `json:"unit"`
	ObsStatus json.RawMessage `json:"obs_status"`
	Decimal   json.RawMessage `json:"decimal"`
}

type codeName struct {
	ID    json.RawMessage `json:"id"`
	Value json.RawMessage `json:"value"`
}

// Normalize maps entries to data points in input order. It never fails:
// undecodable numeric fields become absent and strings default to "".
func Normalize(entries []Entry) []model.DataPoint {
	points := make([]model.DataPoint, 0, len(entries))
	for _, entry := range entries {
		points = append(points, Point(entry))
	}
	return points
}

func Point(entry Entry) model.DataPoint {
	indicatorID, indicatorName := decodeCodeName(entry.Indicator)
	countryID, countryName := decodeCodeName(entry.Country)
	iso3, _ := decodeString(entry.ISO3)

	point := model.DataPoint{
		IndicatorID:   indicatorID,
		IndicatorName: indicatorName,
		CountryID:     countryID,
		CountryName:   countryName,
		CountryISO3:   iso3,
		Year:          decodeYear(entry.Date),
	}

	if value, err := decodeFloat(entry.Value); err == nil {
		point.Value = model.Float(value)
	}
	if unit, ok := decodeString(entry.Unit); ok {
		point.Unit = model.String(unit)
	}
	if status, ok := decodeString(entry.ObsStatus); ok {
		point.ObsStatus = model.String(status)
	}
	if decimal, err := decodeInt(entry.Decimal); err == nil {
		point.Decimal = model.Int(decimal)
	}
	return point
}

// FiniteOrNil drops NaN and infinities.
func FiniteOrNil(value *float64) *float64 {
	if value == nil || math.IsNaN(*value) || math.IsInf(*value, 0) {
		return nil
	}
	return value
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func decodeCodeName(raw json.RawMessage) (string, string) {
	if isNull(raw) {
		return "", ""
	}
	var cn codeName
	if err := json.Unmarshal(raw, &cn); err != nil {
		return "", ""
	}
	id, _ := decodeString(cn.ID)
	value, _ := decodeString(cn.Value)
	return id, value
}

// decodeString reports false when the field is absent or null. Numbers are
// kept as their literal text.
func decodeString(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}
	trimmed := bytes.TrimSpace(raw)
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", false
		}
		return s, true
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return string(trimmed), true
	default:
		return "", false
	}
}

func decodeFloat(raw json.RawMessage) (float64, error) {
	if isNull(raw) {
		return 0, errAbsent
	}
	text, ok := decodeString(raw)
	if !ok {
		return 0, errNotNumber
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, errNotNumber
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, errNotFinite
	}
	return value, nil
}

func decodeInt(raw json.RawMessage) (int, error) {
	if isNull(raw) {
		return 0, errAbsent
	}
	text, ok := decodeString(raw)
	if !ok {
		return 0, errNotInt
	}
	text = strings.TrimSpace(text)
	if value, err := strconv.Atoi(text); err == nil {
		return value, nil
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) || value != math.Trunc(value) {
		return 0, errNotInt
	}
	if value > math.MaxInt32 || value < math.MinInt32 {
		return 0, errNotInt
	}
	return int(value), nil
}

func decodeYear(raw json.RawMessage) int {
	year, err := decodeInt(raw)
	if err != nil {
		return 0
	}
	return year
}

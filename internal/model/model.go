package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidDate = errors.New("model: invalid date spec")

// DataPoint is one (indicator, country, year) observation. Nil pointers mean
// the field was absent upstream; Value is never NaN or infinite.
type DataPoint struct {
	IndicatorID   string
	IndicatorName string
	CountryID     string
	CountryName   string
	CountryISO3   string
	Year          int
	Value         *float64
	Unit          *string
	ObsStatus     *string
	Decimal       *int
}

func (p DataPoint) HasValue() bool {
	return p.Value != nil
}

func (p DataPoint) UnitString() string {
	if p.Unit == nil {
		return ""
	}
	return *p.Unit
}

func (p DataPoint) Key() GroupKey {
	return GroupKey{IndicatorID: p.IndicatorID, CountryISO3: p.CountryISO3}
}

// DateSpec is a single year when Start == End, otherwise an inclusive range.
type DateSpec struct {
	Start int
	End   int
}

func Year(year int) DateSpec {
	return DateSpec{Start: year, End: year}
}

func Range(start, end int) DateSpec {
	return DateSpec{Start: start, End: end}
}

func (d DateSpec) IsRange() bool {
	return d.Start != d.End
}

func (d DateSpec) Validate() error {
	if d.Start <= 0 || d.End <= 0 {
		return fmt.Errorf("%w: years must be positive (%d:%d)", ErrInvalidDate, d.Start, d.End)
	}
	if d.Start > d.End {
		return fmt.Errorf("%w: start %d is after end %d", ErrInvalidDate, d.Start, d.End)
	}
	return nil
}

func (d DateSpec) Contains(year int) bool {
	return year >= d.Start && year <= d.End
}

func (d DateSpec) QueryParam() string {
	if !d.IsRange() {
		return strconv.Itoa(d.Start)
	}
	return strconv.Itoa(d.Start) + ":" + strconv.Itoa(d.End)
}

func (d DateSpec) String() string {
	return d.QueryParam()
}

// ParseDateSpec accepts "YYYY" or "YYYY:YYYY".
func ParseDateSpec(value string) (DateSpec, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return DateSpec{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	if from, to, ok := strings.Cut(value, ":"); ok {
		start, errStart := strconv.Atoi(strings.TrimSpace(from))
		end, errEnd := strconv.Atoi(strings.TrimSpace(to))
		if errStart != nil || errEnd != nil {
			return DateSpec{}, fmt.Errorf("%w: %q, expected YYYY or YYYY:YYYY", ErrInvalidDate, value)
		}
		spec := Range(start, end)
		return spec, spec.Validate()
	}
	year, err := strconv.Atoi(value)
	if err != nil {
		return DateSpec{}, fmt.Errorf("%w: %q, expected YYYY or YYYY:YYYY", ErrInvalidDate, value)
	}
	spec := Year(year)
	return spec, spec.Validate()
}

type GroupKey struct {
	IndicatorID string
	CountryISO3 string
}

func (k GroupKey) Less(other GroupKey) bool {
	if k.IndicatorID != other.IndicatorID {
		return k.IndicatorID < other.IndicatorID
	}
	return k.CountryISO3 < other.CountryISO3
}

// Summary holds descriptive statistics for one group. The four statistics
// are nil when the group has no finite values.
type Summary struct {
	Key     GroupKey
	Count   int
	Missing int
	Min     *float64
	Max     *float64
	Mean    *float64
	Median  *float64
}

type PageMeta struct {
	Page    int
	Pages   int
	PerPage int
	Total   int
}

type IndicatorMeta struct {
	ID   string
	Name string
	Unit string
}

func Float(v float64) *float64 {
	return &v
}

func String(v string) *string {
	return &v
}

func Int(v int) *int {
	return &v
}

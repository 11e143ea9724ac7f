package chart

import (
	"sort"
	"strconv"
	"strings"

	"wbi/internal/model"
)

// Series is one (country, indicator) line with values sorted by year.
type Series struct {
	CountryISO3   string
	CountryName   string
	IndicatorID   string
	IndicatorName string
	Years         []int
	Values        []float64
}

func (s Series) country() string {
	if s.CountryName != "" {
		return s.CountryName
	}
	return s.CountryISO3
}

func (s Series) indicator() string {
	if s.IndicatorName != "" {
		return s.IndicatorName
	}
	return s.IndicatorID
}

// BuildSeries drops points without a value and groups the rest by country
// and indicator. Series are ordered by country name, then indicator name.
func BuildSeries(points []model.DataPoint) []Series {
	type key struct{ iso3, indicator string }
	index := make(map[key]int)
	var out []Series

	sorted := make([]model.DataPoint, 0, len(points))
	for _, p := range points {
		if p.Value != nil {
			sorted = append(sorted, p)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Year < sorted[j].Year })

	for _, p := range sorted {
		k := key{iso3: p.CountryISO3, indicator: p.IndicatorID}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, Series{
				CountryISO3:   p.CountryISO3,
				CountryName:   p.CountryName,
				IndicatorID:   p.IndicatorID,
				IndicatorName: p.IndicatorName,
			})
		}
		out[i].Years = append(out[i].Years, p.Year)
		out[i].Values = append(out[i].Values, *p.Value)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.country() != b.country() {
			return a.country() < b.country()
		}
		if a.indicator() != b.indicator() {
			return a.indicator() < b.indicator()
		}
		if a.CountryISO3 != b.CountryISO3 {
			return a.CountryISO3 < b.CountryISO3
		}
		return a.IndicatorID < b.IndicatorID
	})
	return out
}

// Labels names each series for the legend. One indicator across several
// countries shows only the country, a single country shows only the
// indicator, anything else shows both.
func Labels(series []Series) []string {
	countries := make(map[string]struct{})
	indicators := make(map[string]struct{})
	for _, s := range series {
		countries[s.CountryISO3] = struct{}{}
		indicators[s.IndicatorID] = struct{}{}
	}
	labels := make([]string, len(series))
	for i, s := range series {
		switch {
		case len(indicators) == 1 && len(countries) > 1:
			labels[i] = s.country()
		case len(countries) == 1:
			labels[i] = s.indicator()
		default:
			labels[i] = s.country() + " — " + s.indicator()
		}
	}
	return labels
}

const defaultTitle = "World Bank Indicator(s)"

// Title keeps an explicit title. An empty or default title is replaced by the
// sorted indicator names.
func Title(title string, points []model.DataPoint) string {
	title = strings.TrimSpace(title)
	if title != "" && title != defaultTitle {
		return title
	}
	seen := make(map[string]struct{})
	var names []string
	for _, p := range points {
		if _, ok := seen[p.IndicatorName]; ok {
			continue
		}
		seen[p.IndicatorName] = struct{}{}
		names = append(names, p.IndicatorName)
	}
	sort.Strings(names)
	switch {
	case len(names) == 0:
		return "World Bank Series"
	case len(names) == 1:
		return names[0]
	case len(names) <= 3:
		return strings.Join(names, ", ")
	default:
		return names[0] + " + " + strconv.Itoa(len(names)-1) + " more"
	}
}

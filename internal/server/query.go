package server

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"wbi/internal/chart"
	"wbi/internal/model"
	"wbi/internal/providers"
)

var errBadQuery = errors.New("server: bad query")

// splitList splits on commas or semicolons and drops blanks.
func splitList(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func parseQuery(values url.Values) (providers.Query, error) {
	query := providers.Query{
		Countries:  splitList(values.Get("countries")),
		Indicators: splitList(values.Get("indicators")),
	}
	if len(query.Countries) == 0 || len(query.Indicators) == 0 {
		return query, fmt.Errorf("%w: countries and indicators are required", errBadQuery)
	}
	if raw := values.Get("date"); raw != "" {
		date, err := model.ParseDateSpec(raw)
		if err != nil {
			return query, err
		}
		query.Date = &date
	}
	if raw := values.Get("source"); raw != "" {
		source, err := strconv.Atoi(raw)
		if err != nil || source <= 0 {
			return query, fmt.Errorf("%w: source must be a positive integer", errBadQuery)
		}
		query.Source = &source
	}
	return query, nil
}

func parseChartOptions(values url.Values) (chart.Options, error) {
	kind, err := chart.ParseKind(values.Get("kind"))
	if err != nil {
		return chart.Options{}, err
	}
	legend, err := chart.ParseLegend(values.Get("legend"))
	if err != nil {
		return chart.Options{}, err
	}
	opts := chart.Options{
		Kind:   kind,
		Legend: legend,
		Locale: values.Get("locale"),
		Title:  values.Get("title"),
	}
	if opts.Width, err = intParam(values, "width"); err != nil {
		return opts, err
	}
	if opts.Height, err = intParam(values, "height"); err != nil {
		return opts, err
	}
	if raw := values.Get("span"); raw != "" {
		if opts.LoessSpan, err = strconv.ParseFloat(raw, 64); err != nil {
			return opts, fmt.Errorf("%w: span must be a number", errBadQuery)
		}
	}
	if raw := values.Get("country_styles"); raw != "" {
		if opts.CountryStyles, err = strconv.ParseBool(raw); err != nil {
			return opts, fmt.Errorf("%w: country_styles must be a boolean", errBadQuery)
		}
	}
	return opts, nil
}

func intParam(values url.Values, key string) (int, error) {
	raw := values.Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", errBadQuery, key)
	}
	return v, nil
}

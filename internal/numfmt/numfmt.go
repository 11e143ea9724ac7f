// Package numfmt formats numbers with locale-specific grouping and decimal
// marks. The locale table is a plain value so callers can substitute their own.
package numfmt

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const DefaultLocale = "en"

var ErrUnknownLocale = errors.New("numfmt: unknown locale")

// Table maps normalized locale codes (lowercase, "_" separated) to language tags.
type Table map[string]language.Tag

func DefaultTable() Table {
	return Table{
		"en":     language.English,
		"us":     language.AmericanEnglish,
		"en_us":  language.AmericanEnglish,
		"en_gb":  language.BritishEnglish,
		"de":     language.German,
		"de_de":  language.German,
		"german": language.German,
		"fr":     language.French,
		"fr_fr":  language.French,
		"es":     language.Spanish,
		"es_es":  language.Spanish,
		"it":     language.Italian,
		"it_it":  language.Italian,
		"pt":     language.Portuguese,
		"pt_pt":  language.EuropeanPortuguese,
		"pt_br":  language.BrazilianPortuguese,
		"nl":     language.Dutch,
		"nl_nl":  language.Dutch,
	}
}

func NormalizeCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	return strings.ReplaceAll(code, "-", "_")
}

func (t Table) Codes() []string {
	codes := make([]string, 0, len(t))
	for code := range t {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Lookup returns a formatter for code. An empty code selects DefaultLocale.
func (t Table) Lookup(code string) (*Formatter, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		normalized = DefaultLocale
	}
	tag, ok := t[normalized]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLocale, code)
	}
	return New(normalized, tag), nil
}

type Formatter struct {
	code    string
	printer *message.Printer
	decimal string
}

func New(code string, tag language.Tag) *Formatter {
	printer := message.NewPrinter(tag)
	decimal := strings.Trim(printer.Sprintf("%.1f", 1.5), "15")
	if decimal == "" {
		decimal = "."
	}
	return &Formatter{code: code, printer: printer, decimal: decimal}
}

func (f *Formatter) Code() string {
	return f.code
}

// DecimalMark is the locale's decimal separator, e.g. "." or ",".
func (f *Formatter) DecimalMark() string {
	return f.decimal
}

// Fixed formats v with exactly prec decimals and thousands grouping.
func (f *Formatter) Fixed(v float64, prec int) string {
	if prec < 0 {
		prec = 0
	}
	out := f.printer.Sprintf(fmt.Sprintf("%%.%df", prec), v)
	return fixNegativeZero(out, f.decimal)
}

// Compact formats v with up to four decimals, trailing zeros trimmed.
func (f *Formatter) Compact(v float64) string {
	out := f.Fixed(v, 4)
	if strings.Contains(out, f.decimal) {
		out = strings.TrimRight(out, "0")
		out = strings.TrimSuffix(out, f.decimal)
	}
	return fixNegativeZero(out, f.decimal)
}

func (f *Formatter) Int(v int) string {
	return f.printer.Sprintf("%d", v)
}

// Optional formats a nil-able value, rendering nil as "NA".
func (f *Formatter) Optional(v *float64) string {
	if v == nil {
		return "NA"
	}
	return f.Compact(*v)
}

func fixNegativeZero(s, decimal string) string {
	if !strings.HasPrefix(s, "-") {
		return s
	}
	if strings.Trim(s[1:], "0"+decimal) == "" {
		return s[1:]
	}
	return s
}

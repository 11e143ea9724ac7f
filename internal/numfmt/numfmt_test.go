package numfmt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestLookupEnglishAndGerman(t *testing.T) {
	table := DefaultTable()

	en, err := table.Lookup("en")
	require.NoError(t, err)
	de, err := table.Lookup("de_DE")
	require.NoError(t, err)

	assert.Equal(t, ".", en.DecimalMark())
	assert.Equal(t, ",", de.DecimalMark())

	assert.Equal(t, "1,234,567", en.Fixed(1234567, 0))
	assert.Equal(t, "1.234.567", de.Fixed(1234567, 0))
	assert.Equal(t, "1,234.50", en.Fixed(1234.5, 2))
	assert.Equal(t, "1.234,50", de.Fixed(1234.5, 2))
}

func TestLookupAliases(t *testing.T) {
	table := DefaultTable()
	for _, code := range []string{"", "EN", "en-US", "german", "de-de", "pt_BR", "nl"} {
		_, err := table.Lookup(code)
		assert.NoError(t, err, code)
	}
}

func TestLookupUnknownLocale(t *testing.T) {
	_, err := DefaultTable().Lookup("tlh")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownLocale))
}

func TestCompactTrimsZeros(t *testing.T) {
	en := New("en", language.English)
	de := New("de", language.German)

	tests := []struct {
		value float64
		en    string
		de    string
	}{
		{value: 3, en: "3", de: "3"},
		{value: 2.5, en: "2.5", de: "2,5"},
		{value: 1234.56789, en: "1,234.5679", de: "1.234,5679"},
		{value: -0.00001, en: "0", de: "0"},
		{value: -12.1, en: "-12.1", de: "-12,1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.en, en.Compact(tt.value))
		assert.Equal(t, tt.de, de.Compact(tt.value))
	}
}

func TestOptional(t *testing.T) {
	en := New("en", language.English)
	v := 10.25
	assert.Equal(t, "NA", en.Optional(nil))
	assert.Equal(t, "10.25", en.Optional(&v))
}

func TestCustomTable(t *testing.T) {
	table := Table{"xx": language.German}
	f, err := table.Lookup("xx")
	require.NoError(t, err)
	assert.Equal(t, "xx", f.Code())
	assert.Equal(t, ",", f.DecimalMark())

	_, err = table.Lookup("en")
	assert.True(t, errors.Is(err, ErrUnknownLocale))
}

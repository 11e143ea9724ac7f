package main

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wbi/internal/chart"
)

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"DEU", "USA", "FRA"}, parseList("DEU, USA;FRA;;"))
	assert.Empty(t, parseList(" , ; "))
}

func TestQueryFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	qf := addQueryFlags(fs)
	require.NoError(t, fs.Parse([]string{"-countries", "DEU;USA", "-indicators", "SP.POP.TOTL", "-source", "2"}))

	query, err := qf.query()
	require.NoError(t, err)
	assert.Equal(t, []string{"DEU", "USA"}, query.Countries)
	require.NotNil(t, query.Date)
	assert.Equal(t, defaultDate, query.Date.QueryParam())
	require.NotNil(t, query.Source)
	assert.Equal(t, 2, *query.Source)
}

func TestQueryFlagsRejectsMissingLists(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	qf := addQueryFlags(fs)
	require.NoError(t, fs.Parse([]string{"-indicators", "X"}))

	_, err := qf.query()
	assert.Error(t, err)
}

func TestChartFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cf := addChartFlags(fs)
	require.NoError(t, fs.Parse([]string{"-kind", "stacked", "-legend", "right", "-country-styles"}))

	opts, err := cf.options()
	require.NoError(t, err)
	assert.Equal(t, chart.KindStackedArea, opts.Kind)
	assert.Equal(t, chart.LegendRight, opts.Legend)
	assert.True(t, opts.CountryStyles)
	assert.Equal(t, chart.DefaultWidth, opts.Width)
}

func TestChartFlagsRejectsOutOfRangeSize(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cf := addChartFlags(fs)
	require.NoError(t, fs.Parse([]string{"-width", "50"}))

	_, err := cf.options()
	assert.Error(t, err)
}

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wbi/internal/model"
	"wbi/internal/providers"
)

type stubProvider struct {
	points []model.DataPoint
	err    error
}

func (s stubProvider) Name() string { return "stub" }

func (s stubProvider) Fetch(ctx context.Context, query providers.Query) ([]model.DataPoint, error) {
	return s.points, s.err
}

func (s stubProvider) IndicatorUnits(ctx context.Context, indicators []string) (map[string]string, error) {
	return map[string]string{"X": "%"}, nil
}

type memoryStore struct {
	NopStore
	points []model.DataPoint
	err    error
}

func (m *memoryStore) UpsertPoints(ctx context.Context, points []model.DataPoint) error {
	if m.err != nil {
		return m.err
	}
	m.points = append(m.points, points...)
	return nil
}

func TestWriteThroughCachesFetch(t *testing.T) {
	points := []model.DataPoint{{IndicatorID: "X", CountryISO3: "DEU", Year: 2020, Value: model.Float(1)}}
	mem := &memoryStore{}
	wt := NewWriteThrough(stubProvider{points: points}, mem, nil)

	got, err := wt.Fetch(context.Background(), providers.Query{})
	require.NoError(t, err)
	assert.Equal(t, points, got)
	assert.Equal(t, points, mem.points)

	units, err := wt.IndicatorUnits(context.Background(), []string{"X"})
	require.NoError(t, err)
	assert.Equal(t, "%", units["X"])
	assert.Equal(t, "stub", wt.Name())
}

func TestWriteThroughIgnoresCacheFailure(t *testing.T) {
	points := []model.DataPoint{{IndicatorID: "X", CountryISO3: "DEU", Year: 2020}}
	wt := NewWriteThrough(stubProvider{points: points}, &memoryStore{err: errors.New("disk full")}, nil)

	got, err := wt.Fetch(context.Background(), providers.Query{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestWriteThroughSkipsCacheOnFetchError(t *testing.T) {
	mem := &memoryStore{}
	upstream := errors.New("upstream down")
	wt := NewWriteThrough(stubProvider{err: upstream}, mem, nil)

	_, err := wt.Fetch(context.Background(), providers.Query{})
	assert.ErrorIs(t, err, upstream)
	assert.Empty(t, mem.points)
}

package store

import (
	"context"

	"wbi/internal/model"
)

// Store caches fetched observations keyed by (indicator, country, year).
type Store interface {
	UpsertPoints(ctx context.Context, points []model.DataPoint) error
	LoadPoints(ctx context.Context, filter Filter) ([]model.DataPoint, error)
	Close() error
}

// Filter narrows LoadPoints. Empty lists and a nil Date match everything.
type Filter struct {
	Indicators []string
	Countries  []string
	Date       *model.DateSpec
}

type NopStore struct{}

func (s *NopStore) UpsertPoints(ctx context.Context, points []model.DataPoint) error {
	_ = ctx
	_ = points
	return nil
}

func (s *NopStore) LoadPoints(ctx context.Context, filter Filter) ([]model.DataPoint, error) {
	_ = ctx
	_ = filter
	return nil, nil
}

func (s *NopStore) Close() error {
	return nil
}

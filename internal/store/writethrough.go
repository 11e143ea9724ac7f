package store

import (
	"context"

	"wbi/internal/logging"
	"wbi/internal/model"
	"wbi/internal/providers"
)

// WriteThrough wraps a provider and caches every successful fetch. A cache
// failure is logged and never fails the fetch.
type WriteThrough struct {
	providers.Provider
	store  Store
	logger logging.Logger
}

func NewWriteThrough(provider providers.Provider, st Store, logger logging.Logger) *WriteThrough {
	if st == nil {
		st = &NopStore{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &WriteThrough{Provider: provider, store: st, logger: logger}
}

func (w *WriteThrough) Fetch(ctx context.Context, query providers.Query) ([]model.DataPoint, error) {
	points, err := w.Provider.Fetch(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := w.store.UpsertPoints(ctx, points); err != nil {
		w.logger.Warn(ctx, "[STORE] cache write failed", logging.Fields{"points": len(points), "error": err.Error()})
	}
	return points, nil
}

var _ providers.Provider = (*WriteThrough)(nil)

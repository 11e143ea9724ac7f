package providers

import (
	"context"

	"wbi/internal/model"
)

// Query selects observations. Date and Source are optional.
type Query struct {
	Countries  []string
	Indicators []string
	Date       *model.DateSpec
	Source     *int
}

type Provider interface {
	Name() string
	Fetch(ctx context.Context, query Query) ([]model.DataPoint, error)
	IndicatorUnits(ctx context.Context, indicators []string) (map[string]string, error)
}

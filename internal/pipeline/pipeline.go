// Package pipeline runs a fetch, export, chart and summary cycle. Run is
// synchronous; Start wraps it for hosts that must not block on I/O.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"wbi/internal/chart"
	"wbi/internal/export"
	"wbi/internal/logging"
	"wbi/internal/model"
	"wbi/internal/providers"
	"wbi/internal/stats"
	"wbi/internal/store"
)

var (
	ErrInvalidRequest = errors.New("pipeline: invalid request")
	ErrNoData         = errors.New("pipeline: no data returned")
)

const (
	MinYear     = 1960
	MaxYear     = 2030
	MinPlotSize = 200
	MaxPlotSize = 3000

	DataBaseName  = "wbi_data"
	ChartBaseName = "wbi_chart"
)

type ExportMode string

const (
	ExportCSV     ExportMode = "csv"
	ExportJSON    ExportMode = "json"
	ExportParquet ExportMode = "parquet"
	ExportBoth    ExportMode = "both"
)

func (m ExportMode) formats() []export.Format {
	switch m {
	case ExportJSON:
		return []export.Format{export.FormatJSON}
	case ExportParquet:
		return []export.Format{export.FormatParquet}
	case ExportBoth:
		return []export.Format{export.FormatCSV, export.FormatJSON}
	default:
		return []export.Format{export.FormatCSV}
	}
}

type PlotRequest struct {
	Format  chart.Format
	Options chart.Options
}

type Request struct {
	Countries  []string
	Indicators []string
	Date       model.DateSpec
	Source     *int
	OutputDir  string
	Export     ExportMode
	Plot       *PlotRequest
	Stats      bool
}

func (r Request) Validate() error {
	if len(nonEmpty(r.Countries)) == 0 {
		return fmt.Errorf("%w: at least one country is required", ErrInvalidRequest)
	}
	if len(nonEmpty(r.Indicators)) == 0 {
		return fmt.Errorf("%w: at least one indicator is required", ErrInvalidRequest)
	}
	if r.Date.Start > r.Date.End {
		return fmt.Errorf("%w: start year %d is after end year %d", ErrInvalidRequest, r.Date.Start, r.Date.End)
	}
	if r.Date.Start < MinYear || r.Date.End > MaxYear {
		return fmt.Errorf("%w: years must be within %d-%d", ErrInvalidRequest, MinYear, MaxYear)
	}
	switch r.Export {
	case "", ExportCSV, ExportJSON, ExportParquet, ExportBoth:
	default:
		return fmt.Errorf("%w: unknown export mode %q", ErrInvalidRequest, r.Export)
	}
	if r.Plot != nil {
		w, h := r.Plot.Options.Width, r.Plot.Options.Height
		if w < MinPlotSize || w > MaxPlotSize || h < MinPlotSize || h > MaxPlotSize {
			return fmt.Errorf("%w: plot size %dx%d outside %d-%d", ErrInvalidRequest, w, h, MinPlotSize, MaxPlotSize)
		}
		if _, err := chart.ParseFormat(string(r.Plot.Format)); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	return nil
}

type Result struct {
	RunID     string
	Points    []model.DataPoint
	DataFiles []string
	ChartFile string
	Summaries []model.Summary
	Duration  time.Duration
}

// Outcome is the single message delivered by Start.
type Outcome struct {
	Result Result
	Err    error
}

type Runner struct {
	provider providers.Provider
	charts   *chart.Engine
	store    store.Store
	logger   logging.Logger
}

type Option func(*Runner)

func WithStore(s store.Store) Option {
	return func(r *Runner) {
		if s != nil {
			r.store = s
		}
	}
}

func WithLogger(logger logging.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRunner(provider providers.Provider, charts *chart.Engine, opts ...Option) *Runner {
	if charts == nil {
		charts = chart.NewEngine(chart.DefaultConfig())
	}
	r := &Runner{
		provider: provider,
		charts:   charts,
		store:    &store.NopStore{},
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run fetches the requested series and writes the outputs into OutputDir.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	runID := logging.RunID(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = logging.WithRunID(ctx, runID)
	}
	result := Result{RunID: runID}

	if err := req.Validate(); err != nil {
		return result, err
	}

	date := req.Date
	points, err := r.provider.Fetch(ctx, providers.Query{
		Countries:  req.Countries,
		Indicators: req.Indicators,
		Date:       &date,
		Source:     req.Source,
	})
	if err != nil {
		r.logger.Error(ctx, "[RUN] fetch failed", logging.Fields{"provider": r.provider.Name()}, err)
		return result, fmt.Errorf("pipeline: fetch: %w", err)
	}
	if len(points) == 0 {
		return result, ErrNoData
	}
	result.Points = points
	r.logger.Info(ctx, "[RUN] fetched", logging.Fields{"points": len(points)})

	if err := r.store.UpsertPoints(ctx, points); err != nil {
		return result, fmt.Errorf("pipeline: cache: %w", err)
	}

	outDir := req.OutputDir
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return result, fmt.Errorf("pipeline: create output dir: %w", err)
	}

	for _, format := range req.Export.formats() {
		path := filepath.Join(outDir, DataBaseName+"."+string(format))
		if err := export.Write(path, format, points); err != nil {
			return result, fmt.Errorf("pipeline: export: %w", err)
		}
		result.DataFiles = append(result.DataFiles, path)
	}

	if req.Plot != nil {
		path := filepath.Join(outDir, ChartBaseName+"."+string(req.Plot.Format))
		if err := r.charts.Plot(points, path, req.Plot.Options); err != nil {
			return result, fmt.Errorf("pipeline: plot: %w", err)
		}
		result.ChartFile = path
	}

	if req.Stats {
		result.Summaries = stats.GroupedSummary(points)
	}

	result.Duration = time.Since(start)
	r.logger.Info(ctx, "[RUN] complete", logging.Fields{
		"points":      len(points),
		"files":       len(result.DataFiles),
		"chart":       result.ChartFile,
		"duration_ms": result.Duration.Milliseconds(),
	})
	return result, nil
}

// Start runs req on its own goroutine. The returned channel is buffered and
// receives exactly one Outcome, so the caller may read it whenever it likes.
func (r *Runner) Start(ctx context.Context, req Request) <-chan Outcome {
	out := make(chan Outcome, 1)
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	r.logger.Debug(ctx, "[RUN] started", logging.Fields{
		"countries":  strings.Join(req.Countries, ";"),
		"indicators": strings.Join(req.Indicators, ";"),
	})
	go func() {
		defer close(out)
		res, err := r.Run(ctx, req)
		out <- Outcome{Result: res, Err: err}
	}()
	return out
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

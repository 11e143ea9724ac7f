package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"wbi/internal/chart"
	"wbi/internal/export"
	"wbi/internal/logging"
	"wbi/internal/metrics"
	"wbi/internal/model"
	"wbi/internal/numfmt"
	"wbi/internal/pipeline"
	"wbi/internal/providers"
	"wbi/internal/providers/worldbank"
	"wbi/internal/stats"
	"wbi/internal/store"
	"wbi/internal/store/sqlstore"
)

var version = "dev"

const defaultDate = "2000:2020"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "get":
		err = get(os.Args[2:])
	case "run":
		err = run(os.Args[2:])
	case "units":
		err = units(os.Args[2:])
	case "stats":
		err = summaries(os.Args[2:])
	case "serve":
		err = serve(os.Args[2:])
	case "version":
		fmt.Println(version)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "wbi %s failed: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: wbi <command> [options]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  get      fetch observations, export them and optionally plot")
	fmt.Fprintln(os.Stderr, "  run      fetch into an output directory through the async pipeline")
	fmt.Fprintln(os.Stderr, "  units    print the unit of each indicator")
	fmt.Fprintln(os.Stderr, "  stats    print summaries from the local cache")
	fmt.Fprintln(os.Stderr, "  serve    run the HTTP API")
	fmt.Fprintln(os.Stderr, "  version  print the build version")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "run 'wbi <command> -h' for command options")
}

// queryFlags are shared by every command that talks to the upstream API.
type queryFlags struct {
	countries  *string
	indicators *string
	date       *string
	source     *int
}

func addQueryFlags(fs *flag.FlagSet) queryFlags {
	return queryFlags{
		countries:  fs.String("countries", "", "country codes separated by ',' or ';'"),
		indicators: fs.String("indicators", "", "indicator ids separated by ',' or ';'"),
		date:       fs.String("date", defaultDate, "year YYYY or range YYYY:YYYY"),
		source:     fs.Int("source", 0, "World Bank source id (0 = default)"),
	}
}

func (q queryFlags) query() (providers.Query, error) {
	query := providers.Query{
		Countries:  parseList(*q.countries),
		Indicators: parseList(*q.indicators),
	}
	if len(query.Countries) == 0 {
		return query, errors.New("no countries provided")
	}
	if len(query.Indicators) == 0 {
		return query, errors.New("no indicators provided")
	}
	date, err := model.ParseDateSpec(*q.date)
	if err != nil {
		return query, err
	}
	query.Date = &date
	if *q.source > 0 {
		source := *q.source
		query.Source = &source
	}
	return query, nil
}

// chartFlags holds the rendering options shared by get and run.
type chartFlags struct {
	width         *int
	height        *int
	title         *string
	kind          *string
	legend        *string
	locale        *string
	span          *float64
	countryStyles *bool
}

func addChartFlags(fs *flag.FlagSet) chartFlags {
	return chartFlags{
		width:         fs.Int("width", chart.DefaultWidth, "chart width in pixels"),
		height:        fs.Int("height", chart.DefaultHeight, "chart height in pixels"),
		title:         fs.String("title", "", "chart title (derived from indicator names when empty)"),
		kind:          fs.String("kind", "line", "line, scatter, line-points, area, stacked-area, grouped-bar or loess"),
		legend:        fs.String("legend", "bottom", "bottom, top, right or inside"),
		locale:        fs.String("locale", numfmt.DefaultLocale, "number locale for axis labels and summaries"),
		span:          fs.Float64("span", chart.DefaultLoessSpan, "LOESS span in (0, 1]"),
		countryStyles: fs.Bool("country-styles", false, "derive colors, markers and dashes from the country code"),
	}
}

func (c chartFlags) options() (chart.Options, error) {
	kind, err := chart.ParseKind(*c.kind)
	if err != nil {
		return chart.Options{}, err
	}
	legend, err := chart.ParseLegend(*c.legend)
	if err != nil {
		return chart.Options{}, err
	}
	w, h := *c.width, *c.height
	if w < pipeline.MinPlotSize || w > pipeline.MaxPlotSize || h < pipeline.MinPlotSize || h > pipeline.MaxPlotSize {
		return chart.Options{}, fmt.Errorf("plot size %dx%d outside %d-%d", w, h, pipeline.MinPlotSize, pipeline.MaxPlotSize)
	}
	return chart.Options{
		Width:         w,
		Height:        h,
		Locale:        *c.locale,
		Legend:        legend,
		Title:         *c.title,
		Kind:          kind,
		LoessSpan:     *c.span,
		CountryStyles: *c.countryStyles,
	}, nil
}

func get(args []string) error {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	qf := addQueryFlags(fs)
	cf := addChartFlags(fs)
	out := fs.String("out", "", "data file path (.csv, .json or .parquet)")
	format := fs.String("format", "", "data format csv|json|parquet (default: from -out extension)")
	plot := fs.String("plot", "", "chart file path (.png or .svg)")
	withStats := fs.Bool("stats", false, "print a summary per indicator and country")
	dbPath := fs.String("db", "", "cache database path or postgres:// DSN (empty disables caching)")
	verbose := fs.Bool("verbose", false, "print each observation and log at debug level")
	fs.Parse(args)

	query, err := qf.query()
	if err != nil {
		return err
	}
	var opts chart.Options
	if *plot != "" {
		if opts, err = cf.options(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(*verbose)
	provider, err := newProvider(logger, nil)
	if err != nil {
		return err
	}
	defer provider.Close()
	st, err := openStore(*dbPath, nil)
	if err != nil {
		return err
	}
	defer st.Close()

	points, err := store.NewWriteThrough(provider, st, logger).Fetch(ctx, query)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return pipeline.ErrNoData
	}
	logger.Info(ctx, "[GET] fetched", logging.Fields{"points": len(points)})

	if *verbose {
		f, err := numfmt.DefaultTable().Lookup(*cf.locale)
		if err != nil {
			return err
		}
		for _, p := range points {
			fmt.Printf("%s %s %d %s\n", p.CountryISO3, p.IndicatorID, p.Year, f.Optional(p.Value))
		}
	}

	if *out != "" {
		dataFormat := export.Format("")
		if *format != "" {
			if dataFormat, err = export.ParseFormat(*format); err != nil {
				return err
			}
		}
		if err := export.Write(*out, dataFormat, points); err != nil {
			return err
		}
		logger.Info(ctx, "[GET] exported", logging.Fields{"path": *out})
	}

	if *plot != "" {
		if err := chart.NewEngine(chart.DefaultConfig()).Plot(points, *plot, opts); err != nil {
			return err
		}
		logger.Info(ctx, "[GET] plotted", logging.Fields{"path": *plot, "kind": string(opts.Kind)})
	}

	if *withStats {
		return printSummaries(stats.GroupedSummary(points), *cf.locale)
	}
	return nil
}

func run(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	qf := addQueryFlags(fs)
	cf := addChartFlags(fs)
	outDir := fs.String("outdir", ".", "output directory")
	exportMode := fs.String("export", string(pipeline.ExportCSV), "csv, json, parquet or both")
	plotFormat := fs.String("plot-format", "", "png or svg (empty skips the chart)")
	withStats := fs.Bool("stats", false, "print a summary per indicator and country")
	dbPath := fs.String("db", "", "cache database path or postgres:// DSN (empty disables caching)")
	verbose := fs.Bool("verbose", false, "log at debug level")
	fs.Parse(args)

	query, err := qf.query()
	if err != nil {
		return err
	}
	req := pipeline.Request{
		Countries:  query.Countries,
		Indicators: query.Indicators,
		Date:       *query.Date,
		Source:     query.Source,
		OutputDir:  *outDir,
		Export:     pipeline.ExportMode(strings.ToLower(strings.TrimSpace(*exportMode))),
		Stats:      *withStats,
	}
	if *plotFormat != "" {
		format, err := chart.ParseFormat(*plotFormat)
		if err != nil {
			return err
		}
		opts, err := cf.options()
		if err != nil {
			return err
		}
		req.Plot = &pipeline.PlotRequest{Format: format, Options: opts}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(*verbose)
	provider, err := newProvider(logger, nil)
	if err != nil {
		return err
	}
	defer provider.Close()
	st, err := openStore(*dbPath, nil)
	if err != nil {
		return err
	}
	defer st.Close()

	runner := pipeline.NewRunner(provider, chart.NewEngine(chart.DefaultConfig()),
		pipeline.WithStore(st),
		pipeline.WithLogger(logger),
	)
	outcome := <-runner.Start(ctx, req)
	if outcome.Err != nil {
		return outcome.Err
	}

	res := outcome.Result
	for _, path := range res.DataFiles {
		fmt.Printf("data: %s\n", path)
	}
	if res.ChartFile != "" {
		fmt.Printf("chart: %s\n", res.ChartFile)
	}
	fmt.Printf("run %s complete (points=%d duration=%s)\n", res.RunID, len(res.Points), res.Duration.Round(time.Millisecond))
	if *withStats {
		return printSummaries(res.Summaries, *cf.locale)
	}
	return nil
}

func units(args []string) error {
	fs := flag.NewFlagSet("units", flag.ExitOnError)
	indicators := fs.String("indicators", "", "indicator ids separated by ',' or ';'")
	verbose := fs.Bool("verbose", false, "log at debug level")
	fs.Parse(args)

	ids := parseList(*indicators)
	if len(ids) == 0 {
		return errors.New("no indicators provided")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := newProvider(newLogger(*verbose), nil)
	if err != nil {
		return err
	}
	defer provider.Close()
	unitMap, err := provider.IndicatorUnits(ctx, ids)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(unitMap))
	for id := range unitMap {
		keys = append(keys, id)
	}
	sort.Strings(keys)
	for _, id := range keys {
		fmt.Printf("%s\t%s\n", id, unitMap[id])
	}
	return nil
}

func summaries(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	dbPath := fs.String("db", "wbi.db", "cache database path or postgres:// DSN")
	countries := fs.String("countries", "", "country codes separated by ',' or ';' (empty = all)")
	indicators := fs.String("indicators", "", "indicator ids separated by ',' or ';' (empty = all)")
	date := fs.String("date", "", "year YYYY or range YYYY:YYYY (empty = all)")
	locale := fs.String("locale", numfmt.DefaultLocale, "number locale")
	fs.Parse(args)

	filter := store.Filter{
		Countries:  parseList(*countries),
		Indicators: parseList(*indicators),
	}
	if *date != "" {
		spec, err := model.ParseDateSpec(*date)
		if err != nil {
			return err
		}
		filter.Date = &spec
	}

	st, err := sqlstore.New(*dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	points, err := st.LoadPoints(context.Background(), filter)
	if err != nil {
		return err
	}
	if len(points) == 0 {
		return fmt.Errorf("no cached observations in %s", *dbPath)
	}
	return printSummaries(stats.GroupedSummary(points), *locale)
}

func printSummaries(summaries []model.Summary, locale string) error {
	f, err := numfmt.DefaultTable().Lookup(locale)
	if err != nil {
		return err
	}
	for _, s := range summaries {
		fmt.Println(stats.FormatSummary(s, f))
	}
	return nil
}

func newLogger(verbose bool) *logging.StructuredLogger {
	level := getenv("WBI_LOG_LEVEL", "info")
	if verbose {
		level = "debug"
	}
	return logging.New("wbi", version, level)
}

func newProvider(logger logging.Logger, collector *metrics.Collector) (*worldbank.Provider, error) {
	cfg, err := worldbank.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return worldbank.NewWithConfig(cfg,
		worldbank.WithLogger(logger),
		worldbank.WithMetrics(collector),
	)
}

func openStore(dsn string, collector *metrics.Collector) (store.Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return &store.NopStore{}, nil
	}
	return sqlstore.New(dsn, sqlstore.WithMetrics(collector))
}

func newCollector() *metrics.Collector {
	return metrics.NewCollector("wbi", prometheus.NewRegistry())
}

func parseList(value string) []string {
	raw := strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ';' })
	items := make([]string, 0, len(raw))
	for _, item := range raw {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		items = append(items, trimmed)
	}
	return items
}

func getenv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

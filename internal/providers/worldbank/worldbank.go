// Package worldbank fetches indicator observations from the World Bank
// Indicators API (v2) and returns them as normalized data points.
package worldbank

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"wbi/internal/logging"
	"wbi/internal/metrics"
	"wbi/internal/model"
	"wbi/internal/normalize"
	"wbi/internal/providers"
)

const (
	defaultBaseURL         = "https://api.worldbank.org/v2"
	defaultTimeoutSeconds  = 30
	defaultUserAgent       = "wbi/0.1"
	defaultMaxRetries      = 3
	defaultMaxPages        = 1000
	defaultPerPage         = 1000
	defaultRateLimitPerSec = 0
	defaultRateLimitBurst  = 1
	defaultConcurrency     = 1
	defaultInitialBackoff  = 100 * time.Millisecond
	defaultMaxBackoff      = 5 * time.Second
)

const (
	stageData  = "data"
	stageUnits = "units"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// NoRetries disables retries when set as Config.MaxRetries.
const NoRetries = -1

type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// MaxRetries of 0 selects the default; a negative value disables retries.
	MaxRetries      int
	MaxPages        int
	PerPage         int
	RateLimitPerSec int
	RateLimitBurst  int
	Concurrency     int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	Sleep           SleepFunc
}

type Provider struct {
	config  Config
	client  *http.Client
	limiter *rateLimiter
	logger  logging.Logger
	metrics *metrics.Collector
}

type Option func(*Provider)

func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		if client != nil {
			p.client = client
		}
	}
}

func WithLogger(logger logging.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithMetrics(collector *metrics.Collector) Option {
	return func(p *Provider) {
		p.metrics = collector
	}
}

// WithSleep replaces the retry delay function, typically with a recorder in
// tests.
func WithSleep(sleep SleepFunc) Option {
	return func(p *Provider) {
		if sleep != nil {
			p.config.Sleep = sleep
		}
	}
}

func New(opts ...Option) (*Provider, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg, opts...)
}

func NewWithConfig(cfg Config, opts ...Option) (*Provider, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, errors.New("worldbank: invalid base url: " + err.Error())
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeoutSeconds * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	switch {
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = defaultMaxRetries
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = 0
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = defaultPerPage
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = defaultRateLimitBurst
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepWithContext
	}

	p := &Provider{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.limiter = newRateLimiter(p.config.RateLimitPerSec, p.config.RateLimitBurst)
	return p, nil
}

// Close stops the rate limiter and releases idle connections. The provider
// must not be used afterwards.
func (p *Provider) Close() error {
	p.limiter.Close()
	p.client.CloseIdleConnections()
	return nil
}

func ConfigFromEnv() (Config, error) {
	cfg := Config{
		BaseURL:         getenv("WBI_BASE_URL", defaultBaseURL),
		UserAgent:       getenv("WBI_USER_AGENT", defaultUserAgent),
		MaxRetries:      retriesFromEnv(),
		MaxPages:        getenvInt("WBI_MAX_PAGES", defaultMaxPages),
		RateLimitPerSec: getenvInt("WBI_RATE_LIMIT_PER_SEC", defaultRateLimitPerSec),
		RateLimitBurst:  getenvInt("WBI_RATE_LIMIT_BURST", defaultRateLimitBurst),
		Concurrency:     getenvInt("WBI_CONCURRENCY", defaultConcurrency),
	}
	cfg.Timeout = time.Duration(getenvInt("WBI_TIMEOUT_SECONDS", defaultTimeoutSeconds)) * time.Second
	return cfg, nil
}

func (p *Provider) Name() string {
	return "worldbank"
}

// Fetch returns every observation matching query, in upstream order. With
// several indicators and no source the upstream API rejects a combined call,
// so each indicator is fetched on its own and the results are concatenated
// in input order. The first failing indicator fails the whole fetch.
func (p *Provider) Fetch(ctx context.Context, query providers.Query) ([]model.DataPoint, error) {
	countries, indicators, err := validateQuery(query)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var points []model.DataPoint
	if len(indicators) > 1 && query.Source == nil {
		points, err = p.fetchEach(ctx, countries, indicators, query)
	} else {
		points, err = p.fetchPaged(ctx, countries, indicators, query)
	}
	if err != nil {
		return nil, err
	}

	p.enrichUnits(ctx, points, indicators)
	p.metrics.RecordFetch(time.Since(start), len(points))
	p.logger.Info(ctx, "[FETCH] complete", logging.Fields{
		"countries":  strings.Join(countries, ";"),
		"indicators": strings.Join(indicators, ";"),
		"points":     len(points),
		"duration":   time.Since(start).String(),
	})
	return points, nil
}

func (p *Provider) fetchEach(ctx context.Context, countries, indicators []string, query providers.Query) ([]model.DataPoint, error) {
	results := make([][]model.DataPoint, len(indicators))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.config.Concurrency)
	for i, indicator := range indicators {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			points, err := p.fetchPaged(groupCtx, countries, []string{indicator}, query)
			if err != nil {
				return err
			}
			results[i] = points
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, points := range results {
		total += len(points)
	}
	merged := make([]model.DataPoint, 0, total)
	for _, points := range results {
		merged = append(merged, points...)
	}
	return merged, nil
}

// fetchPaged follows pagination for one combined request. A response that
// reports more pages than MaxPages fails instead of being truncated.
func (p *Provider) fetchPaged(ctx context.Context, countries, indicators []string, query providers.Query) ([]model.DataPoint, error) {
	path := "country/" + joinCodes(countries) + "/indicator/" + joinCodes(indicators)
	params := url.Values{}
	params.Set("format", "json")
	params.Set("per_page", strconv.Itoa(p.config.PerPage))
	if query.Date != nil {
		params.Set("date", query.Date.QueryParam())
	}
	if query.Source != nil {
		params.Set("source", strconv.Itoa(*query.Source))
	}

	tgt := target{
		stage:     stageData,
		indicator: strings.Join(indicators, ";"),
		countries: strings.Join(countries, ";"),
	}

	var points []model.DataPoint
	for page := 1; ; page++ {
		tgt.page = page
		params.Set("page", strconv.Itoa(page))

		body, err := p.getWithRetry(ctx, path, params, tgt)
		if err != nil {
			return nil, err
		}
		meta, entries, err := decodePage(body, tgt)
		if err != nil {
			return nil, err
		}
		if meta.Pages > p.config.MaxPages {
			return nil, tgt.fail(KindPageCapExceeded, 0,
				"response reports "+strconv.Itoa(meta.Pages)+" pages, cap is "+strconv.Itoa(p.config.MaxPages), nil)
		}

		p.metrics.RecordPage()
		p.logger.Debug(ctx, "[FETCH] page", logging.Fields{
			"indicator": tgt.indicator,
			"page":      page,
			"pages":     meta.Pages,
			"entries":   len(entries),
		})
		points = append(points, normalize.Normalize(entries)...)

		if meta.Pages <= page {
			break
		}
	}
	return points, nil
}

// IndicatorUnits looks up the unit of each indicator. Indicators without a
// non-blank unit are left out of the map.
func (p *Provider) IndicatorUnits(ctx context.Context, indicators []string) (map[string]string, error) {
	ids := cleanCodes(indicators)
	units := make(map[string]string)
	if len(ids) == 0 {
		return units, nil
	}

	params := url.Values{}
	params.Set("format", "json")
	params.Set("per_page", strconv.Itoa(p.config.PerPage))
	tgt := target{stage: stageUnits, indicator: strings.Join(ids, ";")}

	body, err := p.getWithRetry(ctx, "indicator/"+joinCodes(ids), params, tgt)
	if err != nil {
		return nil, err
	}
	metas, err := decodeIndicators(body, tgt)
	if err != nil {
		return nil, err
	}
	for _, meta := range metas {
		if strings.TrimSpace(meta.Unit) == "" {
			continue
		}
		units[meta.ID] = meta.Unit
	}
	return units, nil
}

// enrichUnits back-fills blank units from indicator metadata. A failed
// lookup is logged and leaves the points unchanged.
func (p *Provider) enrichUnits(ctx context.Context, points []model.DataPoint, indicators []string) {
	needed := false
	for _, point := range points {
		if strings.TrimSpace(point.UnitString()) == "" {
			needed = true
			break
		}
	}
	if !needed {
		return
	}

	units, err := p.IndicatorUnits(ctx, indicators)
	if err != nil {
		p.logger.Warn(ctx, "[FETCH] unit enrichment failed", logging.Fields{
			"indicators": strings.Join(indicators, ";"),
			"error":      err.Error(),
		})
		return
	}
	for i := range points {
		if strings.TrimSpace(points[i].UnitString()) != "" {
			continue
		}
		if unit, ok := units[points[i].IndicatorID]; ok {
			points[i].Unit = model.String(unit)
		}
	}
}

func validateQuery(query providers.Query) ([]string, []string, error) {
	countries := cleanCodes(query.Countries)
	if len(countries) == 0 {
		return nil, nil, invalidInput("at least one country code is required")
	}
	indicators := cleanCodes(query.Indicators)
	if len(indicators) == 0 {
		return nil, nil, invalidInput("at least one indicator code is required")
	}
	if query.Date != nil {
		if err := query.Date.Validate(); err != nil {
			return nil, nil, &FetchError{Kind: KindInvalidInput, Message: "invalid date", Err: err}
		}
	}
	if query.Source != nil && *query.Source <= 0 {
		return nil, nil, invalidInput("source must be positive, got %d", *query.Source)
	}
	return countries, indicators, nil
}

func cleanCodes(codes []string) []string {
	cleaned := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		cleaned = append(cleaned, code)
	}
	return cleaned
}

// joinCodes percent-encodes each code, keeping letters, digits and "-_."
// literal, and joins them with ";".
func joinCodes(codes []string) string {
	encoded := make([]string, len(codes))
	for i, code := range codes {
		encoded[i] = escapeCode(code)
	}
	return strings.Join(encoded, ";")
}

func escapeCode(code string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9', c == '-', c == '_', c == '.':
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0f])
		}
	}
	return b.String()
}

func getenv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

// retriesFromEnv maps an explicit WBI_MAX_RETRIES=0 to NoRetries.
func retriesFromEnv() int {
	retries := getenvInt("WBI_MAX_RETRIES", defaultMaxRetries)
	if retries <= 0 {
		return NoRetries
	}
	return retries
}

func getenvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

var _ providers.Provider = (*Provider)(nil)

// Package metrics holds the prometheus instruments for fetching, rendering,
// storage and the HTTP API. A nil *Collector is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides application metrics collection
type Collector struct {
	Registry *prometheus.Registry

	// Fetch Metrics
	FetchRequestsTotal *prometheus.CounterVec
	FetchRetriesTotal  prometheus.Counter
	FetchPagesTotal    prometheus.Counter
	FetchDuration      prometheus.Histogram
	PointsFetchedTotal prometheus.Counter

	// Chart Metrics
	RenderDuration *prometheus.HistogramVec

	// Store Metrics
	StoreQueryDuration *prometheus.HistogramVec

	// API Metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
}

// NewCollector registers every instrument on registry. Passing a fresh
// registry per collector keeps tests independent.
func NewCollector(namespace string, registry *prometheus.Registry) *Collector {
	factory := promauto.With(registry)
	return &Collector{
		Registry: registry,

		FetchRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_requests_total",
				Help:      "Upstream API requests by HTTP status (\"error\" for transport failures)",
			},
			[]string{"status"},
		),

		FetchRetriesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_retries_total",
				Help:      "Upstream requests retried after a transient failure",
			},
		),

		FetchPagesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_pages_total",
				Help:      "Result pages fetched from the upstream API",
			},
		),

		FetchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Duration of complete fetch operations in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),

		PointsFetchedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "points_fetched_total",
				Help:      "Normalized data points returned by fetches",
			},
		),

		RenderDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "chart_render_duration_seconds",
				Help:      "Chart render duration in seconds by output format",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
			},
			[]string{"format"},
		),

		StoreQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_query_duration_seconds",
				Help:      "Cache store query duration in seconds by query type",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"query_type"},
		),

		APIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by route, method, and status",
			},
			[]string{"route", "method", "status"},
		),

		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"route"},
		),
	}
}

// RecordFetchRequest counts one upstream request. status 0 means the request
// never produced a response.
func (c *Collector) RecordFetchRequest(status int) {
	if c == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	c.FetchRequestsTotal.WithLabelValues(label).Inc()
}

func (c *Collector) RecordRetry() {
	if c == nil {
		return
	}
	c.FetchRetriesTotal.Inc()
}

func (c *Collector) RecordPage() {
	if c == nil {
		return
	}
	c.FetchPagesTotal.Inc()
}

func (c *Collector) RecordFetch(duration time.Duration, points int) {
	if c == nil {
		return
	}
	c.FetchDuration.Observe(duration.Seconds())
	c.PointsFetchedTotal.Add(float64(points))
}

func (c *Collector) RecordRender(format string, duration time.Duration) {
	if c == nil {
		return
	}
	c.RenderDuration.WithLabelValues(format).Observe(duration.Seconds())
}

func (c *Collector) RecordStoreQuery(queryType string, duration time.Duration) {
	if c == nil {
		return
	}
	c.StoreQueryDuration.WithLabelValues(queryType).Observe(duration.Seconds())
}

func (c *Collector) RecordAPIRequest(route, method string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.APIRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	c.APIRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// Package server exposes observations, summaries, charts and indicator units
// over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wbi/internal/chart"
	"wbi/internal/export"
	"wbi/internal/logging"
	"wbi/internal/metrics"
	"wbi/internal/model"
	"wbi/internal/pipeline"
	"wbi/internal/providers"
	"wbi/internal/providers/worldbank"
	"wbi/internal/stats"
)

const requestIDHeader = "X-Request-ID"

// Handler serves the HTTP API.
type Handler struct {
	provider providers.Provider
	charts   *chart.Engine
	logger   logging.Logger
	metrics  *metrics.Collector
}

func NewHandler(provider providers.Provider, charts *chart.Engine, logger logging.Logger, collector *metrics.Collector) *Handler {
	if charts == nil {
		charts = chart.NewEngine(chart.DefaultConfig())
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{provider: provider, charts: charts, logger: logger, metrics: collector}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type summaryResponse struct {
	IndicatorID string   `json:"indicator_id"`
	CountryISO3 string   `json:"country_iso3"`
	Count       int      `json:"count"`
	Missing     int      `json:"missing"`
	Min         *float64 `json:"min"`
	Max         *float64 `json:"max"`
	Mean        *float64 `json:"mean"`
	Median      *float64 `json:"median"`
}

// Router builds the mux with middleware, API routes, health and metrics.
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(h.requestID, h.instrument)
	h.RegisterRoutes(router)

	if h.metrics != nil && h.metrics.Registry != nil {
		router.Handle("/metrics", promhttp.HandlerFor(h.metrics.Registry, promhttp.HandlerOpts{}))
	} else {
		router.Handle("/metrics", promhttp.Handler())
	}
	return router
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/observations", h.GetObservations).Methods("GET")
	api.HandleFunc("/summary", h.GetSummary).Methods("GET")
	api.HandleFunc("/chart.{format}", h.GetChart).Methods("GET")
	api.HandleFunc("/indicators/{ids}/units", h.GetUnits).Methods("GET")
}

// GetObservations handles GET /api/v1/observations
func (h *Handler) GetObservations(w http.ResponseWriter, r *http.Request) {
	points, ok := h.fetch(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := export.EncodeJSON(w, points); err != nil {
		h.logger.Error(r.Context(), "[API] encode observations failed", logging.Fields{}, err)
	}
}

// GetSummary handles GET /api/v1/summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	points, ok := h.fetch(w, r)
	if !ok {
		return
	}
	summaries := stats.GroupedSummary(points)
	out := make([]summaryResponse, len(summaries))
	for i, s := range summaries {
		out[i] = summaryResponse{
			IndicatorID: s.Key.IndicatorID,
			CountryISO3: s.Key.CountryISO3,
			Count:       s.Count,
			Missing:     s.Missing,
			Min:         s.Min,
			Max:         s.Max,
			Mean:        s.Mean,
			Median:      s.Median,
		}
	}
	h.sendJSON(w, out, http.StatusOK)
}

// GetChart handles GET /api/v1/chart.{png|svg}
func (h *Handler) GetChart(w http.ResponseWriter, r *http.Request) {
	format, err := chart.ParseFormat(mux.Vars(r)["format"])
	if err != nil {
		h.sendFailure(w, r, err)
		return
	}
	opts, err := parseChartOptions(r.URL.Query())
	if err != nil {
		h.sendFailure(w, r, err)
		return
	}
	points, ok := h.fetch(w, r)
	if !ok {
		return
	}
	image, err := h.charts.Render(points, format, opts)
	if err != nil {
		h.sendFailure(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(image)
}

// GetUnits handles GET /api/v1/indicators/{ids}/units
func (h *Handler) GetUnits(w http.ResponseWriter, r *http.Request) {
	ids := splitList(mux.Vars(r)["ids"])
	if len(ids) == 0 {
		h.sendError(w, r, "at least one indicator id is required", http.StatusBadRequest)
		return
	}
	units, err := h.provider.IndicatorUnits(r.Context(), ids)
	if err != nil {
		h.sendFailure(w, r, err)
		return
	}
	h.sendJSON(w, units, http.StatusOK)
}

// HealthCheck handles GET /healthz
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	h.sendJSON(w, status, http.StatusOK)
}

func (h *Handler) fetch(w http.ResponseWriter, r *http.Request) ([]model.DataPoint, bool) {
	query, err := parseQuery(r.URL.Query())
	if err != nil {
		h.sendFailure(w, r, err)
		return nil, false
	}
	points, err := h.provider.Fetch(r.Context(), query)
	if err != nil {
		h.sendFailure(w, r, err)
		return nil, false
	}
	return points, true
}

// sendJSON sends a JSON response
func (h *Handler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *Handler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}
	h.sendJSON(w, response, statusCode)
}

func (h *Handler) sendFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "[API] request failed", logging.Fields{"path": r.URL.Path, "status": status}, err)
	} else {
		h.logger.Warn(r.Context(), "[API] rejected request", logging.Fields{"path": r.URL.Path, "status": status, "reason": err.Error()})
	}
	h.sendError(w, r, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadQuery),
		errors.Is(err, model.ErrInvalidDate),
		errors.Is(err, pipeline.ErrInvalidRequest),
		errors.Is(err, worldbank.ErrInvalidInput),
		errors.Is(err, chart.ErrInvalidInput),
		errors.Is(err, chart.ErrUnknownLocale),
		errors.Is(err, chart.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, chart.ErrNoData), errors.Is(err, pipeline.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, worldbank.ErrHTTP),
		errors.Is(err, worldbank.ErrNetwork),
		errors.Is(err, worldbank.ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		duration := time.Since(start)
		h.metrics.RecordAPIRequest(route, r.Method, rec.status, duration)
		h.logger.Debug(r.Context(), "[API] request served", logging.Fields{
			"route":       route,
			"method":      r.Method,
			"status":      rec.status,
			"duration_ms": duration.Milliseconds(),
		})
	})
}

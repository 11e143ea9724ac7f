package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wbi/internal/metrics"
	"wbi/internal/model"
	"wbi/internal/providers"
	"wbi/internal/providers/worldbank"
)

type fakeProvider struct {
	points  []model.DataPoint
	units   map[string]string
	err     error
	queries []providers.Query
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Fetch(ctx context.Context, query providers.Query) ([]model.DataPoint, error) {
	f.queries = append(f.queries, query)
	return f.points, f.err
}

func (f *fakeProvider) IndicatorUnits(ctx context.Context, indicators []string) (map[string]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]string, len(indicators))
	for _, id := range indicators {
		out[id] = f.units[id]
	}
	return out, nil
}

func samplePoints() []model.DataPoint {
	var points []model.DataPoint
	for i, year := range []int{2018, 2019, 2020} {
		for _, c := range []struct{ iso3, name string }{{"DEU", "Germany"}, {"FRA", "France"}} {
			points = append(points, model.DataPoint{
				IndicatorID:   "SP.POP.TOTL",
				IndicatorName: "Population, total",
				CountryISO3:   c.iso3,
				CountryName:   c.name,
				Year:          year,
				Value:         model.Float(float64(80+i) * 1e6),
			})
		}
	}
	points = append(points, model.DataPoint{
		IndicatorID: "SP.POP.TOTL", IndicatorName: "Population, total",
		CountryISO3: "DEU", CountryName: "Germany", Year: 2021,
	})
	return points
}

func newTestServer(t *testing.T, provider *fakeProvider) *httptest.Server {
	t.Helper()
	handler := NewHandler(provider, nil, nil, metrics.NewCollector("wbi", prometheus.NewRegistry()))
	srv := httptest.NewServer(handler.Router())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t, &fakeProvider{})

	resp, body := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))

	var status map[string]string
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, "healthy", status["status"])
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := newTestServer(t, &fakeProvider{})

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(requestIDHeader, "req-42")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "req-42", resp.Header.Get(requestIDHeader))
}

func TestGetObservations(t *testing.T) {
	provider := &fakeProvider{points: samplePoints()}
	srv := newTestServer(t, provider)

	resp, body := get(t, srv.URL+"/api/v1/observations?countries=DEU;FRA&indicators=SP.POP.TOTL&date=2018:2021&source=2")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var records []map[string]any
	require.NoError(t, json.Unmarshal(body, &records))
	require.Len(t, records, 7)
	assert.Equal(t, "SP.POP.TOTL", records[0]["indicator_id"])
	assert.Nil(t, records[6]["value"])

	require.Len(t, provider.queries, 1)
	q := provider.queries[0]
	assert.Equal(t, []string{"DEU", "FRA"}, q.Countries)
	assert.Equal(t, []string{"SP.POP.TOTL"}, q.Indicators)
	require.NotNil(t, q.Date)
	assert.Equal(t, "2018:2021", q.Date.QueryParam())
	require.NotNil(t, q.Source)
	assert.Equal(t, 2, *q.Source)
}

func TestGetObservationsBadQuery(t *testing.T) {
	srv := newTestServer(t, &fakeProvider{})

	tests := []struct {
		name  string
		query string
	}{
		{name: "missing countries", query: "indicators=SP.POP.TOTL"},
		{name: "missing indicators", query: "countries=DEU"},
		{name: "reversed range", query: "countries=DEU&indicators=X&date=2020:2010"},
		{name: "bad source", query: "countries=DEU&indicators=X&source=abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := get(t, srv.URL+"/api/v1/observations?"+tt.query)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var errResp ErrorResponse
			require.NoError(t, json.Unmarshal(body, &errResp))
			assert.Equal(t, http.StatusBadRequest, errResp.Code)
			assert.NotEmpty(t, errResp.Message)
		})
	}
}

func TestUpstreamErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "http", err: &worldbank.FetchError{Kind: worldbank.KindHTTP, Status: http.StatusServiceUnavailable}, want: http.StatusBadGateway},
		{name: "network", err: &worldbank.FetchError{Kind: worldbank.KindNetwork}, want: http.StatusBadGateway},
		{name: "invalid input", err: &worldbank.FetchError{Kind: worldbank.KindInvalidInput}, want: http.StatusBadRequest},
		{name: "page cap", err: &worldbank.FetchError{Kind: worldbank.KindPageCapExceeded}, want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeProvider{err: tt.err})
			resp, _ := get(t, srv.URL+"/api/v1/observations?countries=DEU&indicators=X")
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestGetSummary(t *testing.T) {
	srv := newTestServer(t, &fakeProvider{points: samplePoints()})

	resp, body := get(t, srv.URL+"/api/v1/summary?countries=DEU,FRA&indicators=SP.POP.TOTL")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summaries []summaryResponse
	require.NoError(t, json.Unmarshal(body, &summaries))
	require.Len(t, summaries, 2)
	assert.Equal(t, "DEU", summaries[0].CountryISO3)
	assert.Equal(t, 4, summaries[0].Count)
	assert.Equal(t, 1, summaries[0].Missing)
	require.NotNil(t, summaries[0].Median)
	assert.InDelta(t, 81e6, *summaries[0].Median, 1e-6)
	assert.Equal(t, "FRA", summaries[1].CountryISO3)
	assert.Equal(t, 0, summaries[1].Missing)
}

func TestGetChart(t *testing.T) {
	srv := newTestServer(t, &fakeProvider{points: samplePoints()})
	base := srv.URL + "/api/v1/chart"
	query := "?countries=DEU,FRA&indicators=SP.POP.TOTL"

	resp, body := get(t, base+".svg"+query+"&kind=loess&span=0.5&legend=right&locale=de&width=800&height=500&country_styles=true")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	assert.True(t, strings.Contains(string(body), "<svg"))

	resp, body = get(t, base+".png"+query+"&kind=bar")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(string(body), "\x89PNG"))
}

func TestGetChartRejectsBadOptions(t *testing.T) {
	srv := newTestServer(t, &fakeProvider{points: samplePoints()})
	query := "?countries=DEU&indicators=SP.POP.TOTL"

	for _, path := range []string{
		"/api/v1/chart.gif" + query,
		"/api/v1/chart.svg" + query + "&kind=pie",
		"/api/v1/chart.svg" + query + "&legend=left",
		"/api/v1/chart.svg" + query + "&locale=tlh",
		"/api/v1/chart.svg" + query + "&width=-3",
		"/api/v1/chart.svg" + query + "&kind=loess&span=2",
	} {
		resp, _ := get(t, srv.URL+path)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
	}
}

func TestGetChartNoData(t *testing.T) {
	points := []model.DataPoint{{IndicatorID: "X", CountryISO3: "DEU", Year: 2020}}
	srv := newTestServer(t, &fakeProvider{points: points})

	resp, _ := get(t, srv.URL+"/api/v1/chart.svg?countries=DEU&indicators=X")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetUnits(t *testing.T) {
	provider := &fakeProvider{units: map[string]string{"NY.GDP.MKTP.CD": "current US$"}}
	srv := newTestServer(t, provider)

	resp, body := get(t, srv.URL+"/api/v1/indicators/NY.GDP.MKTP.CD;SP.POP.TOTL/units")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var units map[string]string
	require.NoError(t, json.Unmarshal(body, &units))
	assert.Equal(t, map[string]string{"NY.GDP.MKTP.CD": "current US$", "SP.POP.TOTL": ""}, units)
}

func TestMetricsEndpointRecordsRequests(t *testing.T) {
	registry := prometheus.NewRegistry()
	router := NewHandler(&fakeProvider{}, nil, nil, metrics.NewCollector("wbi", registry)).Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `wbi_api_requests_total{method="GET",route="/healthz",status="200"} 1`)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"DEU", "FRA", "USA"}, splitList(" DEU, FRA;;USA ,"))
	assert.Empty(t, splitList(""))
}

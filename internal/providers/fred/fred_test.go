package fred

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"macroscope/internal/fetch"
	"macroscope/internal/mappings"
	"macroscope/internal/model"
)

func testFetcher() *fetch.Client {
	return fetch.NewWithConfig(fetch.Config{
		MaxRetries:  1,
		BackoffBase: time.Millisecond,
		Spacing:     -1,
	})
}

func newTestClient(baseURL string) *Client {
	return NewWithConfig(Config{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Fetcher: testFetcher(),
	})
}

func TestFetchSkipsMissingSentinel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("series_id"); got != "CPIAUCSL" {
			t.Errorf("expected series CPIAUCSL, got %q", got)
		}
		if got := r.URL.Query().Get("api_key"); got != "test-key" {
			t.Errorf("api key not sent, got %q", got)
		}
		w.Write([]byte(`{"observations":[
			{"date":"2025-06-01","value":"."},
			{"date":"2025-05-01","value":"3.40"},
			{"date":"2025-04-01","value":"3.10"}
		]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	point := client.FetchMetric(context.Background(), model.MetricInflation, "USA", 0, 0)
	if point.Err != "" {
		t.Fatalf("unexpected error: %s", point.Err)
	}
	if point.Value == nil || *point.Value != 3.40 {
		t.Errorf("expected 3.40 (first non-sentinel), got %v", point.Value)
	}
	if point.Period != "2025-05-01" {
		t.Errorf("expected period 2025-05-01, got %q", point.Period)
	}
	if point.Source != "FRED" {
		t.Errorf("unexpected source %q", point.Source)
	}
}

func TestFetchAllSentinels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"observations":[{"date":"2025-06-01","value":"."}]}`))
	}))
	defer server.Close()

	point := newTestClient(server.URL).FetchMetric(context.Background(), model.MetricInflation, "USA", 0, 0)
	if point.Value != nil {
		t.Errorf("expected no value, got %v", *point.Value)
	}
	if point.Err == "" {
		t.Error("expected a reason for the absent value")
	}
	if point.Period != model.PeriodUnavailable {
		t.Errorf("expected sentinel period, got %q", point.Period)
	}
}

func TestMissingAPIKeySkipsFetch(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := NewWithConfig(Config{BaseURL: server.URL, Fetcher: testFetcher()})
	point := client.FetchMetric(context.Background(), model.MetricInflation, "USA", 0, 0)
	if calls.Load() != 0 {
		t.Error("client without an API key must not issue requests")
	}
	if point.Value != nil || point.Err == "" {
		t.Errorf("expected degraded no-value point, got value=%v err=%q", point.Value, point.Err)
	}
}

func TestNoMappingSkipsFetch(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	// Table with no entry and no fallback template for inflation.
	table := mappings.Default()
	table.FRED[model.MetricInflation] = mappings.FREDSeries{ByCountry: map[string]string{}}

	client := NewWithConfig(Config{
		BaseURL:  server.URL,
		APIKey:   "test-key",
		Mappings: table,
		Fetcher:  testFetcher(),
	})
	point := client.FetchMetric(context.Background(), model.MetricInflation, "USA", 0, 0)
	if calls.Load() != 0 {
		t.Error("missing mapping must not trigger a fetch attempt")
	}
	if point.Value != nil || point.Err == "" {
		t.Errorf("expected no-series point, got value=%v err=%q", point.Value, point.Err)
	}
}

func TestTransportFailureBecomesDataPointError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	point := newTestClient(server.URL).FetchMetric(context.Background(), model.MetricInflation, "USA", 0, 0)
	if point.Value != nil {
		t.Error("expected no value after transport failure")
	}
	if point.Err == "" {
		t.Error("transport failure must surface in the data point, not panic or propagate")
	}
}

func TestMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	point := newTestClient(server.URL).FetchMetric(context.Background(), model.MetricInflation, "USA", 0, 0)
	if point.Value != nil || point.Err == "" {
		t.Errorf("malformed response must degrade to an error point, got value=%v err=%q", point.Value, point.Err)
	}
}

func TestYearFilterParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("observation_start"); got != "2020-01-01" {
			t.Errorf("expected observation_start 2020-01-01, got %q", got)
		}
		if got := r.URL.Query().Get("observation_end"); got != "2023-12-31" {
			t.Errorf("expected observation_end 2023-12-31, got %q", got)
		}
		w.Write([]byte(`{"observations":[{"date":"2023-12-01","value":"1.0"}]}`))
	}))
	defer server.Close()

	point := newTestClient(server.URL).FetchMetric(context.Background(), model.MetricInflation, "USA", 2020, 2023)
	if point.Err != "" {
		t.Fatalf("unexpected error: %s", point.Err)
	}
}

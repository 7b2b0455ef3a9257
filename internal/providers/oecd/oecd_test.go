package oecd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"macroscope/internal/fetch"
	"macroscope/internal/mappings"
	"macroscope/internal/model"
)

func newTestClient(baseURL string) *Client {
	return NewWithConfig(Config{
		BaseURL: baseURL,
		Fetcher: fetch.NewWithConfig(fetch.Config{
			MaxRetries:  1,
			BackoffBase: time.Millisecond,
			Spacing:     -1,
		}),
	})
}

const sdmxBody = `{
	"dataSets": [{
		"observations": {
			"0:0:0:0": [2.1],
			"0:0:0:1": [2.4],
			"0:0:0:2": [2.8]
		}
	}],
	"structure": {
		"dimensions": {
			"observation": [
				{"id": "MEASURE", "values": [{"id": "GP"}]},
				{"id": "TIME_PERIOD", "values": [
					{"id": "2022"}, {"id": "2023"}, {"id": "2024"}
				]}
			]
		}
	}
}`

func TestFetchParsesSDMX(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "PRICES_CPI/CPALTT01.USA.GP.A") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Accept"); !strings.Contains(got, "sdmx") {
			t.Errorf("expected SDMX accept header, got %q", got)
		}
		if got := r.URL.Query().Get("dimensionAtObservation"); got != "AllDimensions" {
			t.Errorf("expected dimensionAtObservation=AllDimensions, got %q", got)
		}
		w.Write([]byte(sdmxBody))
	}))
	defer server.Close()

	point := newTestClient(server.URL).FetchMetric(context.Background(), model.MetricInflation, "USA", 0, 0)
	if point.Err != "" {
		t.Fatalf("unexpected error: %s", point.Err)
	}
	// The last sorted observation key is 0:0:0:2, index 2 in TIME_PERIOD.
	if point.Value == nil || *point.Value != 2.8 {
		t.Errorf("expected 2.8, got %v", point.Value)
	}
	if point.Period != "2024" {
		t.Errorf("expected period 2024, got %q", point.Period)
	}
	if point.Source != "OECD" {
		t.Errorf("unexpected source %q", point.Source)
	}
}

func TestCountryCodeTranslation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// EUU maps to the EA20 SDMX area code.
		if !strings.Contains(r.URL.Path, "CPALTT01.EA20.GP.A") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(sdmxBody))
	}))
	defer server.Close()

	point := newTestClient(server.URL).FetchMetric(context.Background(), model.MetricInflation, "EUU", 0, 0)
	if point.Err != "" {
		t.Fatalf("unexpected error: %s", point.Err)
	}
}

func TestEmptyDataSets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"dataSets": []}`))
	}))
	defer server.Close()

	point := newTestClient(server.URL).FetchMetric(context.Background(), model.MetricInflation, "USA", 0, 0)
	if point.Value != nil {
		t.Error("expected no value")
	}
	if point.Err != "no datasets in response" {
		t.Errorf("unexpected reason %q", point.Err)
	}
}

func TestEmptyObservations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"dataSets": [{"observations": {}}]}`))
	}))
	defer server.Close()

	point := newTestClient(server.URL).FetchMetric(context.Background(), model.MetricInflation, "USA", 0, 0)
	if point.Err != "no observations in dataset" {
		t.Errorf("unexpected reason %q", point.Err)
	}
}

func TestMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway error</html>`))
	}))
	defer server.Close()

	point := newTestClient(server.URL).FetchMetric(context.Background(), model.MetricInflation, "USA", 0, 0)
	if point.Value != nil || point.Err == "" {
		t.Errorf("malformed response must degrade to an error point, got value=%v err=%q", point.Value, point.Err)
	}
}

func TestNoMappingSkipsFetch(t *testing.T) {
	requested := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = true
	}))
	defer server.Close()

	table := mappings.Default()
	delete(table.OECD, model.MetricInflation)

	client := NewWithConfig(Config{
		BaseURL:  server.URL,
		Mappings: table,
		Fetcher:  fetch.NewWithConfig(fetch.Config{MaxRetries: 1, Spacing: -1}),
	})
	point := client.FetchMetric(context.Background(), model.MetricInflation, "USA", 0, 0)
	if requested {
		t.Error("missing mapping must not trigger a fetch attempt")
	}
	if point.Value != nil || point.Err == "" {
		t.Errorf("expected no-series point, got value=%v err=%q", point.Value, point.Err)
	}
}

func TestPeriodFilterParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("startPeriod"); got != "2020" {
			t.Errorf("expected startPeriod=2020, got %q", got)
		}
		if got := r.URL.Query().Get("endPeriod"); got != "2024" {
			t.Errorf("expected endPeriod=2024, got %q", got)
		}
		w.Write([]byte(sdmxBody))
	}))
	defer server.Close()

	point := newTestClient(server.URL).FetchMetric(context.Background(), model.MetricInflation, "USA", 2020, 2024)
	if point.Err != "" {
		t.Fatalf("unexpected error: %s", point.Err)
	}
}

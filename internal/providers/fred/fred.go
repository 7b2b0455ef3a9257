// Package fred implements the FRED (Federal Reserve Economic Data)
// observations client.
package fred

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"macroscope/internal/fetch"
	"macroscope/internal/mappings"
	"macroscope/internal/model"
	"macroscope/internal/providers"
)

const (
	sourceName     = "FRED"
	defaultBaseURL = "https://api.stlouisfed.org/fred"

	// FRED marks a missing observation with a literal "." value.
	missingSentinel = "."
)

type Config struct {
	BaseURL string
	// APIKey may be empty; the client then degrades to always reporting
	// "no series" instead of issuing requests that would be rejected.
	APIKey   string
	Mappings mappings.Table
	Fetcher  *fetch.Client
}

type Client struct {
	config Config
}

func New() *Client {
	return NewWithConfig(ConfigFromEnv())
}

func NewWithConfig(cfg Config) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Mappings.Countries == nil {
		cfg.Mappings = mappings.Default()
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = fetch.New()
	}
	return &Client{config: cfg}
}

func ConfigFromEnv() Config {
	return Config{
		BaseURL: strings.TrimSpace(os.Getenv("MACROSCOPE_FRED_BASE_URL")),
		APIKey:  strings.TrimSpace(os.Getenv("FRED_API_KEY")),
	}
}

func (c *Client) Name() string {
	return sourceName
}

func (c *Client) FetchMetric(ctx context.Context, metric model.Metric, countryCode string, startYear, endYear int) model.DataPoint {
	point := c.emptyPoint(metric, countryCode)

	if c.config.APIKey == "" {
		point.Err = "FRED API key not configured"
		return point
	}

	seriesID, ok := c.config.Mappings.FREDSeriesID(metric, countryCode)
	if !ok {
		point.Err = fmt.Sprintf("no FRED series for %s/%s", metric, countryCode)
		return point
	}

	params := url.Values{}
	params.Set("series_id", seriesID)
	params.Set("api_key", c.config.APIKey)
	params.Set("file_type", "json")
	params.Set("sort_order", "desc")
	params.Set("limit", "10")
	if startYear > 0 {
		params.Set("observation_start", fmt.Sprintf("%04d-01-01", startYear))
	}
	if endYear > 0 {
		params.Set("observation_end", fmt.Sprintf("%04d-12-31", endYear))
	}

	body, err := c.config.Fetcher.Get(ctx, c.config.BaseURL+"/series/observations", params, nil)
	if err != nil {
		point.Err = err.Error()
		return point
	}

	value, period, parseErr := parseObservations(body)
	if parseErr != "" {
		point.Err = parseErr
		return point
	}
	point.Value = &value
	point.Period = period
	return point
}

func (c *Client) emptyPoint(metric model.Metric, countryCode string) model.DataPoint {
	return model.DataPoint{
		Source:      sourceName,
		Metric:      metric,
		Country:     c.config.Mappings.CountryName(countryCode),
		CountryCode: countryCode,
		Unit:        "percent",
		Period:      model.PeriodUnavailable,
		RetrievedAt: time.Now().UTC(),
	}
}

type observationsResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// parseObservations picks the most recent observation whose value is
// numeric, skipping the "." missing sentinel. The response is requested
// sorted descending so the first usable row wins.
func parseObservations(body []byte) (value float64, period string, errText string) {
	var payload observationsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, "", fmt.Sprintf("unexpected FRED response: %v", err)
	}
	if len(payload.Observations) == 0 {
		return 0, "", "no observations found"
	}
	for _, obs := range payload.Observations {
		if obs.Value == missingSentinel {
			continue
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(obs.Value), 64)
		if err != nil {
			continue
		}
		return parsed, obs.Date, ""
	}
	return 0, "", "all observations are missing values"
}

var _ providers.Client = (*Client)(nil)

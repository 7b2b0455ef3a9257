// Package worldbank implements the World Bank Open Data country/indicator
// client.
package worldbank

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"macroscope/internal/fetch"
	"macroscope/internal/mappings"
	"macroscope/internal/model"
	"macroscope/internal/providers"
)

const (
	sourceName     = "World Bank"
	defaultBaseURL = "https://api.worldbank.org/v2"
)

// LookbackYears is the default date window when the caller gives no
// start year.
const LookbackYears = 5

type Config struct {
	BaseURL  string
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

// ConfigFromEnv reads overrides; the World Bank API needs no key.
func ConfigFromEnv() Config {
	return Config{
		BaseURL: strings.TrimSpace(os.Getenv("MACROSCOPE_WORLDBANK_BASE_URL")),
	}
}

func (c *Client) Name() string {
	return sourceName
}

func (c *Client) FetchMetric(ctx context.Context, metric model.Metric, countryCode string, startYear, endYear int) model.DataPoint {
	point := c.emptyPoint(metric, countryCode)

	indicator, wbCountry, ok := c.config.Mappings.WorldBankIndicator(metric, countryCode)
	if !ok {
		point.Err = fmt.Sprintf("no World Bank indicator for %s/%s", metric, countryCode)
		return point
	}

	currentYear := time.Now().UTC().Year()
	if startYear <= 0 {
		startYear = currentYear - LookbackYears
	}
	if endYear <= 0 {
		endYear = currentYear
	}

	params := url.Values{}
	params.Set("format", "json")
	params.Set("per_page", "10")
	params.Set("date", fmt.Sprintf("%d:%d", startYear, endYear))

	endpoint := fmt.Sprintf("%s/country/%s/indicator/%s",
		c.config.BaseURL, url.PathEscape(wbCountry), url.PathEscape(indicator))
	body, err := c.config.Fetcher.Get(ctx, endpoint, params, nil)
	if err != nil {
		point.Err = err.Error()
		return point
	}

	value, period, parseErr := parseResponse(body)
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

type observation struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

// parseResponse decodes the World Bank [metadata, observations] pair and
// picks the most recent non-null value. The API returns observations most
// recent first.
func parseResponse(body []byte) (value float64, period string, errText string) {
	var envelope []json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope) < 2 {
		return 0, "", "invalid API response format"
	}

	var observations []observation
	if err := json.Unmarshal(envelope[1], &observations); err != nil {
		return 0, "", "invalid API response format"
	}
	if len(observations) == 0 {
		return 0, "", "no data available"
	}
	for _, obs := range observations {
		if obs.Value == nil {
			continue
		}
		period := obs.Date
		if period == "" {
			period = model.PeriodUnavailable
		}
		return *obs.Value, period, ""
	}
	return 0, "", "all values are null"
}

var _ providers.Client = (*Client)(nil)

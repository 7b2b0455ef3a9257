// Package oecd implements the OECD SDMX-JSON data client.
package oecd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"macroscope/internal/fetch"
	"macroscope/internal/mappings"
	"macroscope/internal/model"
	"macroscope/internal/providers"
)

const (
	sourceName     = "OECD"
	defaultBaseURL = "https://sdmx.oecd.org/public/rest/data"

	acceptSDMX = "application/vnd.sdmx.data+json;version=1.0"
)

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

// ConfigFromEnv reads overrides; the OECD API needs no key.
func ConfigFromEnv() Config {
	return Config{
		BaseURL: strings.TrimSpace(os.Getenv("MACROSCOPE_OECD_BASE_URL")),
	}
}

func (c *Client) Name() string {
	return sourceName
}

func (c *Client) FetchMetric(ctx context.Context, metric model.Metric, countryCode string, startYear, endYear int) model.DataPoint {
	point := c.emptyPoint(metric, countryCode)

	dataPath, ok := c.config.Mappings.OECDDataPath(metric, countryCode)
	if !ok {
		point.Err = fmt.Sprintf("no OECD dataset for %s/%s", metric, countryCode)
		return point
	}

	params := url.Values{}
	params.Set("dimensionAtObservation", "AllDimensions")
	if startYear > 0 {
		params.Set("startPeriod", strconv.Itoa(startYear))
	}
	if endYear > 0 {
		params.Set("endPeriod", strconv.Itoa(endYear))
	}

	headers := http.Header{}
	headers.Set("Accept", acceptSDMX)

	body, err := c.config.Fetcher.Get(ctx, c.config.BaseURL+"/"+dataPath, params, headers)
	if err != nil {
		point.Err = err.Error()
		return point
	}

	value, period, parseErr := parseSDMX(body)
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

type sdmxResponse struct {
	DataSets []struct {
		// Observation keys are colon-joined dimension indices; each value
		// is an array whose first element is the numeric observation.
		Observations map[string][]json.Number `json:"observations"`
	} `json:"dataSets"`
	Structure struct {
		Dimensions struct {
			Observation []struct {
				ID     string `json:"id"`
				Values []struct {
					ID string `json:"id"`
				} `json:"values"`
			} `json:"observation"`
		} `json:"dimensions"`
	} `json:"structure"`
}

// parseSDMX extracts the last observation (by sorted key) from the first
// dataset and resolves its TIME_PERIOD label from the structure block.
func parseSDMX(body []byte) (value float64, period string, errText string) {
	var payload sdmxResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, "", fmt.Sprintf("unexpected SDMX response: %v", err)
	}
	if len(payload.DataSets) == 0 {
		return 0, "", "no datasets in response"
	}
	observations := payload.DataSets[0].Observations
	if len(observations) == 0 {
		return 0, "", "no observations in dataset"
	}

	keys := make([]string, 0, len(observations))
	for key := range observations {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	lastKey := keys[len(keys)-1]

	cells := observations[lastKey]
	if len(cells) == 0 {
		return 0, "", "empty observation cell"
	}
	parsed, err := cells[0].Float64()
	if err != nil {
		return 0, "", "observation value is not numeric"
	}

	return parsed, periodForKey(payload, lastKey), ""
}

func periodForKey(payload sdmxResponse, key string) string {
	index := 0
	if i := strings.LastIndex(key, ":"); i >= 0 {
		parsed, err := strconv.Atoi(key[i+1:])
		if err == nil {
			index = parsed
		}
	}
	for _, dim := range payload.Structure.Dimensions.Observation {
		if dim.ID != "TIME_PERIOD" {
			continue
		}
		if index < len(dim.Values) {
			return dim.Values[index].ID
		}
	}
	return model.PeriodUnavailable
}

var _ providers.Client = (*Client)(nil)

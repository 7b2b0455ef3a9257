package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"macroscope/internal/cache"
	"macroscope/internal/model"
	"macroscope/internal/store"
	"macroscope/internal/store/sqlite"
	"macroscope/internal/triangulate"
)

var queryFlags struct {
	metrics    []string
	countries  []string
	startYear  int
	endYear    int
	tolerance  float64
	fredAPIKey string
	timeout    time.Duration
	jsonOut    bool
	dbPath     string
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Triangulate metrics for countries and print the results",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd.Context())
	},
}

func init() {
	queryCmd.Flags().StringSliceVar(&queryFlags.metrics, "metrics", []string{"inflation"},
		"metrics to triangulate (gdp_growth, inflation, unemployment, interest_rate)")
	queryCmd.Flags().StringSliceVar(&queryFlags.countries, "countries", []string{"USA"},
		"ISO 3-letter country codes")
	queryCmd.Flags().IntVar(&queryFlags.startYear, "start-year", 0, "optional start year filter")
	queryCmd.Flags().IntVar(&queryFlags.endYear, "end-year", 0, "optional end year filter")
	queryCmd.Flags().Float64Var(&queryFlags.tolerance, "tolerance", triangulate.DefaultTolerancePercent,
		"percentage tolerance for source agreement")
	queryCmd.Flags().StringVar(&queryFlags.fredAPIKey, "fred-api-key", "",
		"FRED API key (or set FRED_API_KEY)")
	queryCmd.Flags().DurationVar(&queryFlags.timeout, "timeout", 2*time.Minute,
		"overall deadline for the whole query")
	queryCmd.Flags().BoolVar(&queryFlags.jsonOut, "json", false, "print results as JSON")
	queryCmd.Flags().StringVar(&queryFlags.dbPath, "db", "",
		"sqlite database path to persist results (empty disables persistence)")
}

func runQuery(ctx context.Context) error {
	metrics, err := parseMetrics(queryFlags.metrics)
	if err != nil {
		return err
	}
	if len(queryFlags.countries) == 0 {
		return fmt.Errorf("no countries provided")
	}

	apiKey := queryFlags.fredAPIKey
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("FRED_API_KEY"))
	}

	engine, err := triangulate.NewDefault(apiKey, queryFlags.tolerance, slog.Default())
	if err != nil {
		return err
	}

	st, err := openStore(queryFlags.dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(ctx, queryFlags.timeout)
	defer cancel()

	// Overlapping requests within one invocation hit the memo cache
	// instead of re-fetching.
	memo := cache.New(0, 0)

	results := make([]model.TriangulatedResult, 0, len(metrics)*len(queryFlags.countries))
	for _, country := range queryFlags.countries {
		country = strings.ToUpper(strings.TrimSpace(country))
		for _, metric := range metrics {
			metric := metric
			result := memo.GetOrCompute(ctx, metric, country, func(ctx context.Context) model.TriangulatedResult {
				return engine.Triangulate(ctx, metric, country, queryFlags.startYear, queryFlags.endYear)
			})
			results = append(results, result)
		}
	}

	if err := st.UpsertResults(ctx, results); err != nil {
		return err
	}

	if queryFlags.jsonOut {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(results)
	}
	for _, result := range results {
		printResult(result)
	}
	return nil
}

func openStore(path string) (store.Store, error) {
	if strings.TrimSpace(path) == "" {
		return &store.NopStore{}, nil
	}
	return sqlite.New(path)
}

func parseMetrics(raw []string) ([]model.Metric, error) {
	metrics := make([]model.Metric, 0, len(raw))
	for _, item := range raw {
		metric := model.Metric(strings.ToLower(strings.TrimSpace(item)))
		if !metric.Valid() {
			return nil, fmt.Errorf("unknown metric %q", item)
		}
		metrics = append(metrics, metric)
	}
	if len(metrics) == 0 {
		return nil, fmt.Errorf("no metrics provided")
	}
	return metrics, nil
}

func printResult(result model.TriangulatedResult) {
	consensus := "n/a"
	if result.ConsensusValue != nil {
		consensus = fmt.Sprintf("%.2f%%", *result.ConsensusValue)
	}
	fmt.Printf("%s / %s: %s (confidence=%s period=%s sources=%s)\n",
		result.Country, result.Metric.DisplayName(), consensus,
		result.Confidence, result.Period, strings.Join(result.SourcesUsed, "+"))
	fmt.Printf("  %s\n", result.Explanation)
}

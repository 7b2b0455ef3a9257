package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"macroscope/internal/dataset"
	"macroscope/internal/triangulate"
)

var datasetFlags struct {
	jobPath    string
	countries  []string
	metrics    []string
	variants   int
	noMulti    bool
	tolerance  float64
	fredAPIKey string
	parallel   int
	output     string
	outputJSON string
}

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Generate ChatML training samples from triangulated data",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDataset(cmd.Context())
	},
}

func init() {
	datasetCmd.Flags().StringVar(&datasetFlags.jobPath, "job", "",
		"YAML job definition (flags override its fields)")
	datasetCmd.Flags().StringSliceVar(&datasetFlags.countries, "countries", nil,
		"ISO 3-letter country codes (default: USA,IND,EUU,CHN)")
	datasetCmd.Flags().StringSliceVar(&datasetFlags.metrics, "metrics", nil,
		"metrics to include (default: gdp_growth,inflation)")
	datasetCmd.Flags().IntVar(&datasetFlags.variants, "question-variants", 0,
		"question variants per data point (default: 2)")
	datasetCmd.Flags().BoolVar(&datasetFlags.noMulti, "no-multi-turn", false,
		"disable multi-turn conversation samples")
	datasetCmd.Flags().Float64Var(&datasetFlags.tolerance, "tolerance", 0,
		"percentage tolerance for source agreement (default: 0.5)")
	datasetCmd.Flags().StringVar(&datasetFlags.fredAPIKey, "fred-api-key", "",
		"FRED API key (or set FRED_API_KEY)")
	datasetCmd.Flags().IntVar(&datasetFlags.parallel, "parallel", 0,
		"countries processed concurrently (default: 1)")
	datasetCmd.Flags().StringVar(&datasetFlags.output, "output", "training_data.jsonl",
		"output JSONL path")
	datasetCmd.Flags().StringVar(&datasetFlags.outputJSON, "output-json", "",
		"optional: also save as formatted JSON for inspection")
}

func runDataset(ctx context.Context) error {
	job, err := buildJob()
	if err != nil {
		return err
	}

	apiKey := datasetFlags.fredAPIKey
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("FRED_API_KEY"))
	}
	engine, err := triangulate.NewDefault(apiKey, job.TolerancePercent, slog.Default())
	if err != nil {
		return err
	}

	generator := dataset.NewGenerator(engine, slog.Default())
	samples, err := generator.Generate(ctx, job)
	if err != nil {
		return err
	}

	if err := dataset.WriteJSONL(samples, datasetFlags.output); err != nil {
		return err
	}
	if datasetFlags.outputJSON != "" {
		if err := dataset.WriteJSON(samples, datasetFlags.outputJSON); err != nil {
			return err
		}
	}

	fmt.Printf("dataset generation complete (samples=%d output=%s)\n", len(samples), datasetFlags.output)
	return nil
}

func buildJob() (dataset.Job, error) {
	var job dataset.Job
	if datasetFlags.jobPath != "" {
		loaded, err := dataset.LoadJob(datasetFlags.jobPath)
		if err != nil {
			return dataset.Job{}, err
		}
		job = loaded
	}

	if len(datasetFlags.countries) > 0 {
		job.Countries = datasetFlags.countries
	}
	if len(datasetFlags.metrics) > 0 {
		metrics, err := parseMetrics(datasetFlags.metrics)
		if err != nil {
			return dataset.Job{}, err
		}
		job.Metrics = metrics
	}
	if datasetFlags.variants > 0 {
		job.QuestionVariants = datasetFlags.variants
	}
	if datasetFlags.noMulti {
		multi := false
		job.MultiTurn = &multi
	}
	if datasetFlags.tolerance > 0 {
		job.TolerancePercent = datasetFlags.tolerance
	}
	if datasetFlags.parallel > 0 {
		job.Parallel = datasetFlags.parallel
	}

	for i, country := range job.Countries {
		job.Countries[i] = strings.ToUpper(strings.TrimSpace(country))
	}
	for _, metric := range job.Metrics {
		if !metric.Valid() {
			return dataset.Job{}, fmt.Errorf("unknown metric %q", metric)
		}
	}
	return job, nil
}

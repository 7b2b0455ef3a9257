package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"macroscope/internal/model"
	"macroscope/internal/triangulate"
)

// Job describes one dataset generation run. Loaded from YAML or built
// directly from CLI flags.
type Job struct {
	Countries        []string       `yaml:"countries"`
	Metrics          []model.Metric `yaml:"metrics"`
	QuestionVariants int            `yaml:"question_variants"`
	MultiTurn        *bool          `yaml:"multi_turn"`
	TolerancePercent float64        `yaml:"tolerance_percent"`
	// Parallel bounds concurrent country runs; provider pacing still
	// applies underneath.
	Parallel int `yaml:"parallel"`
}

// LoadJob reads a Job definition from a YAML file.
func LoadJob(path string) (Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Job{}, err
	}
	var job Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return Job{}, fmt.Errorf("dataset: parse job %s: %w", path, err)
	}
	return job.withDefaults(), nil
}

func (j Job) withDefaults() Job {
	if len(j.Countries) == 0 {
		j.Countries = []string{"USA", "IND", "EUU", "CHN"}
	}
	if len(j.Metrics) == 0 {
		j.Metrics = []model.Metric{model.MetricGDPGrowth, model.MetricInflation}
	}
	if j.QuestionVariants <= 0 {
		j.QuestionVariants = 2
	}
	if j.Parallel <= 0 {
		j.Parallel = 1
	}
	return j
}

func (j Job) validate() error {
	for _, metric := range j.Metrics {
		if !metric.Valid() {
			return fmt.Errorf("dataset: unknown metric %q", metric)
		}
	}
	return nil
}

func (j Job) multiTurn() bool {
	if j.MultiTurn == nil {
		return true
	}
	return *j.MultiTurn
}

// Generator runs triangulations for a job and formats the results into
// training samples.
type Generator struct {
	engine *triangulate.Engine
	logger *slog.Logger
}

func NewGenerator(engine *triangulate.Engine, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{engine: engine, logger: logger}
}

// Generate triangulates every country/metric pair in the job and returns
// the resulting samples. Countries run concurrently up to job.Parallel;
// within one country the metrics run sequentially so multi-turn samples
// keep a stable order.
func (g *Generator) Generate(ctx context.Context, job Job) ([]Sample, error) {
	job = job.withDefaults()
	if err := job.validate(); err != nil {
		return nil, err
	}

	perCountry := make([][]Sample, len(job.Countries))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(job.Parallel)
	for i, country := range job.Countries {
		i, country := i, country
		eg.Go(func() error {
			perCountry[i] = g.generateCountry(ctx, job, country)
			return ctx.Err()
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var samples []Sample
	for _, countrySamples := range perCountry {
		samples = append(samples, countrySamples...)
	}
	return samples, nil
}

func (g *Generator) generateCountry(ctx context.Context, job Job, country string) []Sample {
	var samples []Sample
	var results []model.TriangulatedResult

	for _, metric := range job.Metrics {
		result := g.engine.Triangulate(ctx, metric, country, 0, 0)
		results = append(results, result)
		for variant := 0; variant < job.QuestionVariants; variant++ {
			samples = append(samples, FormatSample(result, variant))
		}
		g.logger.Info("sample generated",
			"country", country, "metric", metric, "confidence", result.Confidence)
	}

	if job.multiTurn() && len(results) >= 2 {
		samples = append(samples, FormatMultiTurn(results))
	}
	return samples
}

// WriteJSONL writes one sample per line, the fine-tuning input format.
func WriteJSONL(samples []Sample, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetEscapeHTML(false)
	for _, sample := range samples {
		if err := encoder.Encode(sample); err != nil {
			return err
		}
	}
	return nil
}

// WriteJSON writes an indented JSON array for inspection.
func WriteJSON(samples []Sample, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

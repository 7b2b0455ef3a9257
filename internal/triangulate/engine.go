// Package triangulate reconciles per-provider answers for one
// (metric, country) pair into a consensus value with a calibrated
// confidence label.
package triangulate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"macroscope/internal/mappings"
	"macroscope/internal/model"
	"macroscope/internal/providers"
)

// DefaultTolerancePercent is the maximum relative difference (in percent)
// for two values to count as agreeing.
const DefaultTolerancePercent = 0.5

type Config struct {
	// TolerancePercent widens or narrows the agreement window; zero uses
	// the default.
	TolerancePercent float64
	// Clients are invoked in order; SourcesUsed preserves that order.
	Clients  []providers.Client
	Mappings mappings.Table
	Logger   *slog.Logger
}

// Engine holds no state across calls besides its configuration, so
// concurrent Triangulate calls are independent.
type Engine struct {
	tolerance float64
	clients   []providers.Client
	mappings  mappings.Table
	logger    *slog.Logger
}

// New builds an engine. An empty client list is a configuration error and
// fails here rather than on the first Triangulate call.
func New(cfg Config) (*Engine, error) {
	if len(cfg.Clients) == 0 {
		return nil, errors.New("triangulate: at least one provider client is required")
	}
	if cfg.TolerancePercent < 0 {
		return nil, fmt.Errorf("triangulate: tolerance must be non-negative, got %v", cfg.TolerancePercent)
	}
	tolerance := cfg.TolerancePercent
	if tolerance == 0 {
		tolerance = DefaultTolerancePercent
	}
	if cfg.Mappings.Countries == nil {
		cfg.Mappings = mappings.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		tolerance: tolerance,
		clients:   cfg.Clients,
		mappings:  cfg.Mappings,
		logger:    logger,
	}, nil
}

// Triangulate queries every configured client concurrently and folds the
// answers into a TriangulatedResult. It never fails: provider errors
// degrade that slot to "no value" and flow through the same confidence
// rules as a missing series, so even total provider failure yields a
// well-formed result with ConfidenceNoData.
func (e *Engine) Triangulate(ctx context.Context, metric model.Metric, countryCode string, startYear, endYear int) model.TriangulatedResult {
	e.logger.Info("triangulating", "metric", metric, "country", countryCode)

	points := e.fetchAll(ctx, metric, countryCode, startYear, endYear)
	for _, point := range points {
		attrs := []any{"source", point.Source, "period", point.Period}
		if point.Value != nil {
			attrs = append(attrs, "value", *point.Value)
		}
		if point.Err != "" {
			attrs = append(attrs, "reason", point.Err)
			e.logger.Warn("provider returned no value", attrs...)
			continue
		}
		e.logger.Debug("provider answered", attrs...)
	}

	withValue := make([]sourceValue, 0, len(points))
	for _, point := range points {
		if point.Value != nil {
			withValue = append(withValue, sourceValue{name: point.Source, value: *point.Value})
		}
	}

	confidence, explanation := e.determineConfidence(withValue)

	result := model.TriangulatedResult{
		Metric:      metric,
		Country:     e.mappings.CountryName(countryCode),
		CountryCode: countryCode,
		Period:      bestPeriod(points),
		Confidence:  confidence,
		Explanation: explanation,
		SourcesUsed: make([]string, 0, len(withValue)),
		RetrievedAt: time.Now().UTC(),
	}
	if len(withValue) > 0 {
		result.ConsensusValue = model.Float(consensus(values(withValue)))
	}
	for _, sv := range withValue {
		result.SourcesUsed = append(result.SourcesUsed, sv.name)
	}
	for _, point := range points {
		assignSlot(&result, point)
	}
	if confidence != model.ConfidenceHigh && confidence != model.ConfidenceMedium {
		result.DisagreementDetails = explanation
	}
	return result
}

// fetchAll issues the provider calls concurrently so total latency is
// bounded by the slowest provider. A caller-level cancellation leaves the
// unfinished slots as error DataPoints, which the confidence rules treat
// like any other absent value.
func (e *Engine) fetchAll(ctx context.Context, metric model.Metric, countryCode string, startYear, endYear int) []model.DataPoint {
	points := make([]model.DataPoint, len(e.clients))
	g, gctx := errgroup.WithContext(ctx)
	for i, client := range e.clients {
		i, client := i, client
		g.Go(func() error {
			points[i] = client.FetchMetric(gctx, metric, countryCode, startYear, endYear)
			return nil
		})
	}
	_ = g.Wait()

	for i, client := range e.clients {
		if points[i].Source == "" {
			// Client never ran (cancelled before scheduling).
			points[i] = model.DataPoint{
				Source:      client.Name(),
				Metric:      metric,
				CountryCode: countryCode,
				Period:      model.PeriodUnavailable,
				RetrievedAt: time.Now().UTC(),
				Err:         "fetch abandoned",
			}
		}
	}
	return points
}

type sourceValue struct {
	name  string
	value float64
}

func values(svs []sourceValue) []float64 {
	out := make([]float64, len(svs))
	for i, sv := range svs {
		out[i] = sv.value
	}
	return out
}

// valuesAgree reports whether a and b fall within the tolerance. When both
// are zero they agree; when exactly one is zero the comparison falls back
// to absolute difference so the relative formula cannot blow up.
func (e *Engine) valuesAgree(a, b float64) bool {
	if a == 0 && b == 0 {
		return true
	}
	if a == 0 || b == 0 {
		return abs(a-b) <= e.tolerance
	}
	avg := (abs(a) + abs(b)) / 2
	return abs(a-b)/avg*100 <= e.tolerance
}

// consensus is the median: robust to a single outlier source in a way the
// mean is not. Even counts average the two middle elements.
func consensus(vals []float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

func (e *Engine) determineConfidence(withValue []sourceValue) (model.Confidence, string) {
	switch len(withValue) {
	case 0:
		return model.ConfidenceNoData, "No data available from any source."
	case 1:
		sv := withValue[0]
		return model.ConfidenceSingleSource,
			fmt.Sprintf("Only %s provided data (%.2f%%).", sv.name, sv.value)
	case 2:
		a, b := withValue[0], withValue[1]
		if e.valuesAgree(a.value, b.value) {
			return model.ConfidenceMedium, fmt.Sprintf(
				"%s (%.2f%%) and %s (%.2f%%) agree within tolerance. Third source unavailable for full triangulation.",
				a.name, a.value, b.name, b.value)
		}
		return model.ConfidenceLow, fmt.Sprintf(
			"%s (%.2f%%) and %s (%.2f%%) disagree. Third source unavailable for tie-breaker.",
			a.name, a.value, b.name, b.value)
	default:
		return e.threeWayConfidence(withValue[:3])
	}
}

func (e *Engine) threeWayConfidence(svs []sourceValue) (model.Confidence, string) {
	type pair struct{ i, j int }
	pairs := []pair{{0, 1}, {0, 2}, {1, 2}}

	agreements := 0
	var agreeing pair
	for _, p := range pairs {
		if e.valuesAgree(svs[p.i].value, svs[p.j].value) {
			if agreements == 0 {
				agreeing = p
			}
			agreements++
		}
	}

	switch {
	case agreements == 3:
		return model.ConfidenceHigh, fmt.Sprintf(
			"All three sources agree: %s.", joinValues(svs))
	case agreements >= 1:
		outlier := 3 - agreeing.i - agreeing.j
		return model.ConfidenceMedium, fmt.Sprintf(
			"%s (%.2f%%) and %s (%.2f%%) agree. %s (%.2f%%) differs.",
			svs[agreeing.i].name, svs[agreeing.i].value,
			svs[agreeing.j].name, svs[agreeing.j].value,
			svs[outlier].name, svs[outlier].value)
	default:
		return model.ConfidenceLow, fmt.Sprintf(
			"All sources disagree significantly: %s. Exercise caution with this data.",
			joinValues(svs))
	}
}

func joinValues(svs []sourceValue) string {
	parts := make([]string, len(svs))
	for i, sv := range svs {
		parts[i] = fmt.Sprintf("%s (%.2f%%)", sv.name, sv.value)
	}
	return strings.Join(parts, ", ")
}

// bestPeriod picks the lexicographically maximal non-sentinel period. This
// textual comparison matches chronological order only because all three
// providers format periods as YYYY or YYYY-MM-DD style strings.
func bestPeriod(points []model.DataPoint) string {
	best := model.PeriodUnavailable
	for _, point := range points {
		if point.Period == model.PeriodUnavailable || point.Period == "" {
			continue
		}
		if best == model.PeriodUnavailable || point.Period > best {
			best = point.Period
		}
	}
	return best
}

func assignSlot(result *model.TriangulatedResult, point model.DataPoint) {
	if point.Value == nil {
		return
	}
	switch point.Source {
	case "FRED":
		result.FREDValue = point.Value
	case "World Bank":
		result.WorldBankValue = point.Value
	case "OECD":
		result.OECDValue = point.Value
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

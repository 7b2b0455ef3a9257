// Package providers defines the contract every macro data source client
// implements.
package providers

import (
	"context"

	"macroscope/internal/model"
)

// Client fetches one metric/country pair from one external source and
// normalizes it into a model.DataPoint. FetchMetric never fails: expected
// absence (no series, empty observations) and exhausted transport retries
// alike land in DataPoint.Err, so the engine needs no per-source error
// handling. startYear/endYear are optional filters; zero means unset.
type Client interface {
	Name() string
	FetchMetric(ctx context.Context, metric model.Metric, countryCode string, startYear, endYear int) model.DataPoint
}

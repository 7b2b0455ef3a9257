package store

import (
	"context"

	"macroscope/internal/model"
)

// Store persists triangulated results for later inspection or export. The
// engine itself never touches a store; callers decide whether to persist.
type Store interface {
	UpsertResults(ctx context.Context, results []model.TriangulatedResult) error
	ListResults(ctx context.Context, metric model.Metric, countryCode string) ([]model.TriangulatedResult, error)
	Close() error
}

// NopStore discards everything. Used when persistence is disabled.
type NopStore struct{}

func (s *NopStore) UpsertResults(ctx context.Context, results []model.TriangulatedResult) error {
	_ = ctx
	_ = results
	return nil
}

func (s *NopStore) ListResults(ctx context.Context, metric model.Metric, countryCode string) ([]model.TriangulatedResult, error) {
	_ = ctx
	_ = metric
	_ = countryCode
	return nil, nil
}

func (s *NopStore) Close() error {
	return nil
}

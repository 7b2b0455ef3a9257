// Package cache memoizes triangulated results for a short, fixed TTL so
// repeated questions about the same metric/country do not re-hit the
// upstream APIs.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"macroscope/internal/model"
)

const (
	defaultTTL  = time.Hour
	defaultSize = 64
)

// ComputeFunc produces a result on cache miss.
type ComputeFunc func(ctx context.Context) model.TriangulatedResult

// ResultCache is a TTL-bounded LRU keyed by (metric, country). Safe for
// concurrent use.
type ResultCache struct {
	lru *expirable.LRU[string, model.TriangulatedResult]
}

// New builds a cache. Zero ttl or size use the defaults (1 hour, 64
// entries).
func New(ttl time.Duration, size int) *ResultCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if size <= 0 {
		size = defaultSize
	}
	return &ResultCache{
		lru: expirable.NewLRU[string, model.TriangulatedResult](size, nil, ttl),
	}
}

func key(metric model.Metric, countryCode string) string {
	return string(metric) + "|" + countryCode
}

// GetOrCompute returns the cached result for (metric, country) or computes
// and stores a fresh one. Two concurrent misses may both compute; the
// upstream engine is idempotent so the duplicated work is acceptable.
func (c *ResultCache) GetOrCompute(ctx context.Context, metric model.Metric, countryCode string, compute ComputeFunc) model.TriangulatedResult {
	k := key(metric, countryCode)
	if result, ok := c.lru.Get(k); ok {
		return result
	}
	result := compute(ctx)
	c.lru.Add(k, result)
	return result
}

// Invalidate drops the cached entry for (metric, country), if any.
func (c *ResultCache) Invalidate(metric model.Metric, countryCode string) {
	c.lru.Remove(key(metric, countryCode))
}

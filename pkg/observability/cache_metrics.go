package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricCacheHitsTotal   = "asyncgit.cache.hits.total"
	metricCacheMissesTotal = "asyncgit.cache.misses.total"

	attrCache = "cache"
)

// CacheMetrics holds OTel instruments for the two bounded caches in this
// module: pkg/cache.CommitInfoCache and pkg/gitjobs.DiffJob's
// hashicorp/golang-lru result cache.
type CacheMetrics struct {
	cacheHits   metric.Int64Counter
	cacheMisses metric.Int64Counter
}

// CacheStats is one cache's hit/miss tally at a point in time, the same two
// counts pkg/cache.LRUStats carries. DiffJob exposes no cache tally.
type CacheStats struct {
	Hits   int64
	Misses int64
}

// NewCacheMetrics creates cache metric instruments from the given meter.
func NewCacheMetrics(mt metric.Meter) (*CacheMetrics, error) {
	hits, err := mt.Int64Counter(metricCacheHitsTotal,
		metric.WithDescription("Cache hits by cache name"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheHitsTotal, err)
	}

	misses, err := mt.Int64Counter(metricCacheMissesTotal,
		metric.WithDescription("Cache misses by cache name"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheMissesTotal, err)
	}

	return &CacheMetrics{cacheHits: hits, cacheMisses: misses}, nil
}

// RecordCache reports name's hit/miss tally. Safe to call on a nil receiver
// (no-op), so callers that run without metrics configured need no branch.
func (cm *CacheMetrics) RecordCache(ctx context.Context, name string, stats CacheStats) {
	if cm == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrCache, name))

	cm.cacheHits.Add(ctx, stats.Hits, attrs)
	cm.cacheMisses.Add(ctx, stats.Misses, attrs)
}

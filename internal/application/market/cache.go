// Package market is the orchestration layer: it fuses collaborator data into
// field analyses, caches them, runs the rule engine and applies regional
// post-processing to produce the final recommendation list.
package market

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plantsaathi/market-intelligence/internal/domain/analysis"
	"github.com/plantsaathi/market-intelligence/internal/infrastructure/monitoring/logging"
	"github.com/plantsaathi/market-intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/plantsaathi/market-intelligence/pkg/errors"
)

// Upstream data sources whose freshness gates cached analyses.
const (
	SourceBlackbox = "blackbox"
	SourceDisease  = "disease"
	SourceWeather  = "weather"
	SourceYield    = "yield"
)

// DataSources lists every version-tracked upstream source.
var DataSources = []string{SourceBlackbox, SourceDisease, SourceWeather, SourceYield}

// ValidDataSource reports whether the name is a tracked source.
func ValidDataSource(source string) bool {
	for _, s := range DataSources {
		if s == source {
			return true
		}
	}
	return false
}

// Cache is the analysis store the orchestrator consults before rebuilding.
type Cache interface {
	// Get returns a fresh cached analysis, or nil and false on a miss.
	Get(ctx context.Context, fieldID string) (*analysis.FieldAnalysis, bool)

	// Set stores an analysis under the current data source versions.
	Set(ctx context.Context, fieldID string, fa *analysis.FieldAnalysis)

	// Invalidate drops one field's entry.
	Invalidate(ctx context.Context, fieldID string)

	// UpdateDataSourceVersion regenerates the source's version token and
	// clears every cached entry.  Returns the new token.
	UpdateDataSourceVersion(ctx context.Context, source string) (string, error)

	// Versions returns a copy of the current source version tokens.
	Versions(ctx context.Context) map[string]string
}

const (
	// DefaultTTL bounds how long an analysis may serve from cache.
	DefaultTTL = 24 * time.Hour

	// DefaultMaxEntries bounds the in-memory working set; the oldest entry
	// is evicted when a Set would exceed it.
	DefaultMaxEntries = 5
)

type cacheEntry struct {
	analysis *analysis.FieldAnalysis
	cachedAt time.Time
	versions map[string]string
}

// ContextCache is the in-memory Cache used in single-node deployments.
// Safe for concurrent use.
type ContextCache struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	versions   map[string]string
	ttl        time.Duration
	maxEntries int
	logger     logging.Logger
	metrics    *prometheus.AppMetrics
	clock      func() time.Time
}

// NewContextCache builds an empty cache.  Non-positive ttl or maxEntries
// fall back to the defaults.
func NewContextCache(ttl time.Duration, maxEntries int, logger logging.Logger, metrics *prometheus.AppMetrics) *ContextCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	versions := make(map[string]string, len(DataSources))
	for _, s := range DataSources {
		versions[s] = uuid.NewString()
	}

	return &ContextCache{
		entries:    make(map[string]*cacheEntry),
		versions:   versions,
		ttl:        ttl,
		maxEntries: maxEntries,
		logger:     logger.Named("cache"),
		metrics:    metrics,
		clock:      time.Now,
	}
}

// Get returns the cached analysis when it is within TTL and was stored under
// the current data source versions.  Stale entries are removed on the way
// out so a miss is also a cleanup.
func (c *ContextCache) Get(_ context.Context, fieldID string) (*analysis.FieldAnalysis, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[fieldID]
	if !ok {
		c.countMiss("absent")
		return nil, false
	}
	// Entries live for now < cachedAt+ttl; the expiry instant itself misses.
	if c.clock().Sub(entry.cachedAt) >= c.ttl {
		delete(c.entries, fieldID)
		c.countMiss("expired")
		return nil, false
	}
	for source, current := range c.versions {
		if entry.versions[source] != current {
			delete(c.entries, fieldID)
			c.countMiss("stale_version")
			return nil, false
		}
	}

	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues("memory").Inc()
	}
	return entry.analysis, true
}

// Set stores the analysis, evicting the oldest entry when the cache is full.
func (c *ContextCache) Set(_ context.Context, fieldID string, fa *analysis.FieldAnalysis) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[fieldID]; !exists {
		for len(c.entries) >= c.maxEntries {
			c.evictOldestLocked()
		}
	}

	versions := make(map[string]string, len(c.versions))
	for s, v := range c.versions {
		versions[s] = v
	}
	c.entries[fieldID] = &cacheEntry{
		analysis: fa,
		cachedAt: c.clock(),
		versions: versions,
	}
	c.setEntryGauge()
}

func (c *ContextCache) evictOldestLocked() {
	var oldestID string
	var oldestAt time.Time
	for id, entry := range c.entries {
		if oldestID == "" || entry.cachedAt.Before(oldestAt) {
			oldestID = id
			oldestAt = entry.cachedAt
		}
	}
	if oldestID == "" {
		return
	}
	delete(c.entries, oldestID)
	c.logger.Debug("evicted oldest cache entry", logging.String("field_id", oldestID))
	if c.metrics != nil {
		c.metrics.CacheEvictionsTotal.WithLabelValues("memory").Inc()
	}
}

// Invalidate drops one field's entry.
func (c *ContextCache) Invalidate(_ context.Context, fieldID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, fieldID)
	c.setEntryGauge()
}

// UpdateDataSourceVersion regenerates the token for one upstream source and
// clears the cache, forcing every field analysis to rebuild against the new
// data.
func (c *ContextCache) UpdateDataSourceVersion(_ context.Context, source string) (string, error) {
	if !ValidDataSource(source) {
		return "", errors.InvalidParam("unknown data source: " + source)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	token := uuid.NewString()
	c.versions[source] = token
	c.entries = make(map[string]*cacheEntry)
	c.setEntryGauge()

	c.logger.Info("data source version bumped, cache cleared",
		logging.String("source", source),
		logging.String("version", token))
	if c.metrics != nil {
		c.metrics.CacheInvalidations.WithLabelValues(source).Inc()
	}
	return token, nil
}

// Versions returns a copy of the current source version tokens.
func (c *ContextCache) Versions(_ context.Context) map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.versions))
	for s, v := range c.versions {
		out[s] = v
	}
	return out
}

// Len reports the number of cached entries.
// Capacity reports the maximum number of entries the cache holds.
func (c *ContextCache) Capacity() int {
	return c.maxEntries
}

func (c *ContextCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ContextCache) countMiss(reason string) {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues("memory", reason).Inc()
	}
}

func (c *ContextCache) setEntryGauge() {
	if c.metrics != nil {
		c.metrics.CacheEntries.WithLabelValues("memory").Set(float64(len(c.entries)))
	}
}

package market

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantsaathi/market-intelligence/internal/domain/analysis"
	"github.com/plantsaathi/market-intelligence/internal/infrastructure/monitoring/logging"
)

func newTestCache() *ContextCache {
	return NewContextCache(DefaultTTL, 3, logging.NewNopLogger(), nil)
}

func testAnalysis(fieldID string) *analysis.FieldAnalysis {
	return &analysis.FieldAnalysis{FieldID: fieldID, AnalyzedAt: time.Now()}
}

func TestCache_GetAfterSet(t *testing.T) {
	ctx := context.Background()
	c := newTestCache()

	fa := testAnalysis("f1")
	c.Set(ctx, "f1", fa)

	got, ok := c.Get(ctx, "f1")
	require.True(t, ok)
	assert.Same(t, fa, got)
}

func TestCache_MissWhenAbsent(t *testing.T) {
	c := newTestCache()
	_, ok := c.Get(context.Background(), "nope")
	assert.False(t, ok)
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	c := NewContextCache(time.Hour, 3, logging.NewNopLogger(), nil)

	now := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	c.clock = func() time.Time { return now }

	c.Set(ctx, "f1", testAnalysis("f1"))

	now = now.Add(59 * time.Minute)
	_, ok := c.Get(ctx, "f1")
	assert.True(t, ok, "within TTL")

	now = now.Add(2 * time.Minute)
	_, ok = c.Get(ctx, "f1")
	assert.False(t, ok, "expired")
	assert.Equal(t, 0, c.Len(), "expired entry removed")
}

func TestCache_ExpiryInstantIsAMiss(t *testing.T) {
	ctx := context.Background()
	c := NewContextCache(time.Hour, 3, logging.NewNopLogger(), nil)

	now := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	c.clock = func() time.Time { return now }

	c.Set(ctx, "f1", testAnalysis("f1"))

	now = now.Add(time.Hour)
	_, ok := c.Get(ctx, "f1")
	assert.False(t, ok, "now == expires_at is no longer fresh")
}

func TestCache_VersionBumpInvalidatesBeforeTTL(t *testing.T) {
	ctx := context.Background()
	c := newTestCache()

	c.Set(ctx, "f1", testAnalysis("f1"))
	c.Set(ctx, "f2", testAnalysis("f2"))

	before := c.Versions(ctx)[SourceWeather]
	token, err := c.UpdateDataSourceVersion(ctx, SourceWeather)
	require.NoError(t, err)
	assert.NotEqual(t, before, token)
	assert.Equal(t, token, c.Versions(ctx)[SourceWeather])

	_, ok := c.Get(ctx, "f1")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "f2")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCache_UnknownDataSourceRejected(t *testing.T) {
	c := newTestCache()
	_, err := c.UpdateDataSourceVersion(context.Background(), "satellite")
	assert.Error(t, err)
}

func TestCache_EvictsOldestAtCapacity(t *testing.T) {
	ctx := context.Background()
	c := NewContextCache(DefaultTTL, 3, logging.NewNopLogger(), nil)

	now := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	c.clock = func() time.Time { return now }

	for i := 1; i <= 3; i++ {
		c.Set(ctx, fmt.Sprintf("f%d", i), testAnalysis(fmt.Sprintf("f%d", i)))
		now = now.Add(time.Minute)
	}
	require.Equal(t, 3, c.Len())

	c.Set(ctx, "f4", testAnalysis("f4"))
	assert.Equal(t, 3, c.Len(), "never exceeds capacity")

	_, ok := c.Get(ctx, "f1")
	assert.False(t, ok, "oldest entry evicted")
	for _, id := range []string{"f2", "f3", "f4"} {
		_, ok := c.Get(ctx, id)
		assert.True(t, ok, "%s retained", id)
	}
}

func TestCache_OverwriteDoesNotEvict(t *testing.T) {
	ctx := context.Background()
	c := NewContextCache(DefaultTTL, 2, logging.NewNopLogger(), nil)

	c.Set(ctx, "f1", testAnalysis("f1"))
	c.Set(ctx, "f2", testAnalysis("f2"))
	c.Set(ctx, "f1", testAnalysis("f1"))

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(ctx, "f2")
	assert.True(t, ok)
}

func TestCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	c := newTestCache()

	c.Set(ctx, "f1", testAnalysis("f1"))
	c.Invalidate(ctx, "f1")
	_, ok := c.Get(ctx, "f1")
	assert.False(t, ok)
}

func TestValidDataSource(t *testing.T) {
	for _, s := range DataSources {
		assert.True(t, ValidDataSource(s), s)
	}
	assert.False(t, ValidDataSource("satellite"))
	assert.False(t, ValidDataSource(""))
}

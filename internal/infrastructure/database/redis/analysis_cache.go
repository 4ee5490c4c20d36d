package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/plantsaathi/market-intelligence/internal/application/market"
	"github.com/plantsaathi/market-intelligence/internal/domain/analysis"
	"github.com/plantsaathi/market-intelligence/internal/infrastructure/monitoring/logging"
	"github.com/plantsaathi/market-intelligence/pkg/errors"
)

// cachedEnvelope is the stored form of one analysis: the payload plus the
// data source versions it was built under.
type cachedEnvelope struct {
	Analysis *analysis.FieldAnalysis `json:"analysis"`
	Versions map[string]string       `json:"versions"`
}

// AnalysisCache is the redis-backed market.Cache.  Entry count is bounded by
// TTL rather than an explicit cap; redis handles expiry server-side.
type AnalysisCache struct {
	client *Client
	prefix string
	ttl    time.Duration
	logger logging.Logger
}

var _ market.Cache = (*AnalysisCache)(nil)

// NewAnalysisCache seeds missing version tokens so a fresh deployment starts
// with a consistent version set.
func NewAnalysisCache(client *Client, keyPrefix string, ttl time.Duration, logger logging.Logger) (*AnalysisCache, error) {
	if ttl <= 0 {
		ttl = market.DefaultTTL
	}
	c := &AnalysisCache{
		client: client,
		prefix: keyPrefix,
		ttl:    ttl,
		logger: logger.Named("analysis_cache"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, source := range market.DataSources {
		ok, err := client.rdb.SetNX(ctx, c.versionKey(source), uuid.NewString(), 0).Result()
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeCacheError, "failed to seed version token")
		}
		if ok {
			c.logger.Debug("seeded version token", logging.String("source", source))
		}
	}
	return c, nil
}

func (c *AnalysisCache) analysisKey(fieldID string) string {
	return c.prefix + "analysis:" + fieldID
}

func (c *AnalysisCache) versionKey(source string) string {
	return c.prefix + "version:" + source
}

// Get returns the cached analysis when its stored versions still match the
// current tokens.  Any decode or transport error degrades to a miss.
func (c *AnalysisCache) Get(ctx context.Context, fieldID string) (*analysis.FieldAnalysis, bool) {
	raw, err := c.client.rdb.Get(ctx, c.analysisKey(fieldID)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("cache read failed", logging.String("field_id", fieldID), logging.Err(err))
		return nil, false
	}

	var envelope cachedEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		c.logger.Warn("corrupt cache entry dropped", logging.String("field_id", fieldID), logging.Err(err))
		c.client.rdb.Del(ctx, c.analysisKey(fieldID))
		return nil, false
	}

	current := c.Versions(ctx)
	for source, token := range current {
		if envelope.Versions[source] != token {
			c.client.rdb.Del(ctx, c.analysisKey(fieldID))
			return nil, false
		}
	}
	return envelope.Analysis, true
}

// Set stores the analysis under the current version tokens with TTL expiry.
func (c *AnalysisCache) Set(ctx context.Context, fieldID string, fa *analysis.FieldAnalysis) {
	envelope := cachedEnvelope{
		Analysis: fa,
		Versions: c.Versions(ctx),
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		c.logger.Error("failed to encode analysis", logging.String("field_id", fieldID), logging.Err(err))
		return
	}
	if err := c.client.rdb.Set(ctx, c.analysisKey(fieldID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", logging.String("field_id", fieldID), logging.Err(err))
	}
}

// Invalidate drops one field's entry.
func (c *AnalysisCache) Invalidate(ctx context.Context, fieldID string) {
	if err := c.client.rdb.Del(ctx, c.analysisKey(fieldID)).Err(); err != nil {
		c.logger.Warn("cache invalidate failed", logging.String("field_id", fieldID), logging.Err(err))
	}
}

// UpdateDataSourceVersion rotates the source's token and clears every cached
// analysis so all fields rebuild against the new data.
func (c *AnalysisCache) UpdateDataSourceVersion(ctx context.Context, source string) (string, error) {
	if !market.ValidDataSource(source) {
		return "", errors.InvalidParam("unknown data source: " + source)
	}

	token := uuid.NewString()
	if err := c.client.rdb.Set(ctx, c.versionKey(source), token, 0).Err(); err != nil {
		return "", errors.Wrap(err, errors.CodeCacheError, "failed to rotate version token")
	}

	if err := c.clearAnalyses(ctx); err != nil {
		return "", err
	}
	c.logger.Info("data source version bumped, cache cleared",
		logging.String("source", source),
		logging.String("version", token))
	return token, nil
}

func (c *AnalysisCache) clearAnalyses(ctx context.Context) error {
	iter := c.client.rdb.Scan(ctx, 0, c.prefix+"analysis:*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "failed to scan cache keys")
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.rdb.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, errors.CodeCacheError, "failed to clear cache")
	}
	return nil
}

// Versions returns the current token for every tracked source.  Sources
// whose key is unreadable come back empty, which downstream treats as stale.
func (c *AnalysisCache) Versions(ctx context.Context) map[string]string {
	out := make(map[string]string, len(market.DataSources))
	for _, source := range market.DataSources {
		token, err := c.client.rdb.Get(ctx, c.versionKey(source)).Result()
		if err != nil && err != redis.Nil {
			c.logger.Warn("version token read failed", logging.String("source", source), logging.Err(err))
		}
		out[source] = token
	}
	return out
}

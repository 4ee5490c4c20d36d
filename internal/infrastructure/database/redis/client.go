// Package redis provides the shared-cache backend used when multiple
// replicas must agree on analysis freshness.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/plantsaathi/market-intelligence/internal/config"
	"github.com/plantsaathi/market-intelligence/internal/infrastructure/monitoring/logging"
	"github.com/plantsaathi/market-intelligence/pkg/errors"
)

// Client wraps a standalone redis connection.
type Client struct {
	rdb    *redis.Client
	logger logging.Logger
}

// NewClient connects and verifies the server with a ping.
func NewClient(cfg config.RedisConfig, logger logging.Logger) (*Client, error) {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, errors.Wrap(err, errors.CodeCacheError, "redis connection failed")
	}

	logger.Info("redis connected", logging.String("addr", cfg.Addr))
	return &Client{rdb: rdb, logger: logger.Named("redis")}, nil
}

// Raw exposes the underlying client for callers that need it.
func (c *Client) Raw() *redis.Client {
	return c.rdb
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Package redis provides the Redis client and the invoice signature store
// used for duplicate detection. Signatures are hot, short-lived working
// state; the durable audit record lives in PostgreSQL.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/apclear/invoicegate/internal/config"
	"github.com/apclear/invoicegate/internal/infrastructure/monitoring/logging"
	"github.com/apclear/invoicegate/pkg/errors"
)

// Client wraps the go-redis client with config-driven construction.
type Client struct {
	rdb    *redis.Client
	cfg    config.RedisConfig
	logger logging.Logger
}

// NewClient connects and verifies the connection with a ping.
func NewClient(cfg config.RedisConfig, log logging.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "redis connection failed")
	}

	log.Info("connected to Redis", logging.String("addr", cfg.Addr), logging.Int("db", cfg.DB))
	return &Client{rdb: rdb, cfg: cfg, logger: log}, nil
}

// NewClientWithRedis wraps an existing go-redis client, for testing.
func NewClientWithRedis(rdb *redis.Client, cfg config.RedisConfig, log logging.Logger) *Client {
	return &Client{rdb: rdb, cfg: cfg, logger: log}
}

// Redis exposes the underlying client.
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

// HealthCheck verifies the connection is alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "redis health check failed")
	}
	return nil
}

// Close shuts the client down.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Package redisx wraps Redis for the two things the radar needs from it: a
// plain cache/set store (go-redis) and a distributed lock (redlock-go).
// Unlike the teacher's split packages, one Client here consistently exposes
// both, since every caller needs at least one of them and several need
// both.
package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/amyangfei/redlock-go/v3/redlock"
	goredis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/dmitrov/finradar/internal/config"
	"github.com/dmitrov/finradar/pkg/logger"
)

// Client bundles a go-redis client for cache/set operations with a redlock
// manager for distributed locks.
type Client struct {
	rdb         *goredis.Client
	lockManager *redlock.RedLock
}

// New connects to Redis and initializes the redlock manager against the
// same instance.
func New(cfg *config.RedisConfig) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	addr := fmt.Sprintf("tcp://%s", cfg.Addr())
	lockManager, err := redlock.NewRedLock(ctx, []string{addr})
	if err != nil {
		return nil, fmt.Errorf("failed to create redlock manager: %w", err)
	}

	logger.Info("redis client initialized", zap.String("addr", cfg.Addr()))

	return &Client{rdb: rdb, lockManager: lockManager}, nil
}

// Raw returns the underlying go-redis client for cache/set operations.
func (c *Client) Raw() *goredis.Client {
	return c.rdb
}

// LockManager returns the redlock manager for distributed locks.
func (c *Client) LockManager() *redlock.RedLock {
	return c.lockManager
}

// Close closes the go-redis connection.
func (c *Client) Close() error {
	logger.Info("closing redis client")
	return c.rdb.Close()
}

// Health verifies Redis is reachable.
func (c *Client) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

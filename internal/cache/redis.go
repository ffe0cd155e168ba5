// Package cache provides the Redis access layer: cached auth contexts,
// session revocation, snapshot read caching, refresh locks and rate limits.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options tunes the connection pool. Zero values keep the defaults.
type Options struct {
	PoolSize     int
	MinIdleConns int
}

func (o Options) apply(opt *redis.Options) {
	opt.PoolSize = 10
	if o.PoolSize > 0 {
		opt.PoolSize = o.PoolSize
	}
	opt.MinIdleConns = 2
	if o.MinIdleConns > 0 {
		opt.MinIdleConns = o.MinIdleConns
	}
	if opt.MinIdleConns > opt.PoolSize {
		opt.MinIdleConns = opt.PoolSize
	}
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
}

// Cache wraps the Redis client shared by every cache concern.
type Cache struct {
	client *redis.Client
}

// New connects to redisURL and pings it.
func New(ctx context.Context, redisURL string, opts Options) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.apply(opt)

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return &Cache{client: client}, nil
}

// NewFromClient wraps an existing client. Tests use it with miniredis.
func NewFromClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Ping checks Redis connectivity for the readiness check.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Client exposes the raw client to the outbox, which owns its stream keys.
func (c *Cache) Client() *redis.Client {
	return c.client
}

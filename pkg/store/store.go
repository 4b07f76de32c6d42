// Package store provides the shared counter store client used by the rate
// limiter, the response cache, and the job queue. It wraps a single Redis
// connection with an explicit open/close lifecycle: the handle is created
// once on startup, injected into each component, and closed on shutdown.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is the shared key/value + atomic-script store handle.
type Client struct {
	rdb *redis.Client
}

// Open creates a store client and verifies connectivity.
func Open(ctx context.Context, addr string) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping store at %s: %w", addr, err)
	}
	return &Client{rdb: rdb}, nil
}

// New wraps an existing Redis client. Used by tests and by callers that
// manage the connection themselves.
func New(rdb *redis.Client) *Client {
	if rdb == nil {
		panic("redis client cannot be nil")
	}
	return &Client{rdb: rdb}
}

// Get returns the value stored under key, or ErrNotFound.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store get: %w", err)
	}
	return val, nil
}

// GetBytes returns the raw value stored under key, or ErrNotFound.
func (c *Client) GetBytes(ctx context.Context, key string) ([]byte, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store get: %w", err)
	}
	return val, nil
}

// SetWithTTL stores value under key. A zero ttl stores without expiry.
func (c *Client) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("store set: %w", err)
	}
	return nil
}

// Incr atomically increments the integer stored under key and returns the
// new value.
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	val, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("store incr: %w", err)
	}
	return val, nil
}

// Expire sets the TTL of an existing key.
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := c.rdb.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("store expire: %w", err)
	}
	return nil
}

// TTL returns the remaining time to live of a key.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := c.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("store ttl: %w", err)
	}
	return ttl, nil
}

// Del removes one or more keys. Missing keys are not an error.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("store del: %w", err)
	}
	return nil
}

// Eval executes a Lua script atomically on the store. All read-modify-write
// sequences used for decisions go through here; callers must never split
// them into separate round-trips.
func (c *Client) Eval(ctx context.Context, script *redis.Script, keys []string, args ...interface{}) (interface{}, error) {
	res, err := script.Run(ctx, c.rdb, keys, args...).Result()
	if err != nil {
		return nil, fmt.Errorf("store eval: %w", err)
	}
	return res, nil
}

// Ping verifies the store is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("store ping: %w", err)
	}
	return nil
}

// Redis exposes the underlying client for operations outside the minimal
// key/value surface (queue list/zset structures, tests).
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

// Close releases the underlying connection. The handle must not be used
// afterwards.
func (c *Client) Close() error {
	return c.rdb.Close()
}

package cache

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StoreOption is a functional option for configuring a cache store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	redisClient *redis.Client
	ttl         time.Duration
	keyPrefix   string
	now         func() time.Time
	err         error
}

// WithRedisClient sets the Redis client for the Redis store.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithRedisURL creates the Redis client from a redis:// URL.
func WithRedisURL(rawURL string) StoreOption {
	return func(c *storeConfig) {
		opt, err := redis.ParseURL(rawURL)
		if err != nil {
			c.err = fmt.Errorf("parsing redis url: %w", err)
			return
		}
		c.redisClient = redis.NewClient(opt)
	}
}

// WithTTL sets how long cached entries are kept.
func WithTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) {
		c.ttl = ttl
	}
}

// WithKeyPrefix sets the prefix of every cache key.
func WithKeyPrefix(prefix string) StoreOption {
	return func(c *storeConfig) {
		c.keyPrefix = prefix
	}
}

// withClock overrides the clock of the in-memory store.
func withClock(now func() time.Time) StoreOption {
	return func(c *storeConfig) {
		c.now = now
	}
}

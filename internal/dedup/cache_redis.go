// Package dedup decides whether a parsed listing is newly observed, using a
// bounded-TTL fast-path cache in front of the persisted job store.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements scraper.SeenCache on a Redis key space with TTL.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache parses redisURL, verifies connectivity, and returns a cache
// whose entries expire after ttl.
func NewRedisCache(ctx context.Context, redisURL, prefix string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if prefix == "" {
		prefix = "jobsentry:seen"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}, nil
}

// Seen reports whether the fingerprint is cached.
func (c *RedisCache) Seen(ctx context.Context, fingerprint string) (bool, error) {
	err := c.client.Get(ctx, c.key(fingerprint)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get: %w", err)
	}
	return true, nil
}

// MarkSeen caches the fingerprint with the configured TTL.
func (c *RedisCache) MarkSeen(ctx context.Context, fingerprint string) error {
	if err := c.client.Set(ctx, c.key(fingerprint), time.Now().Unix(), c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) key(fingerprint string) string {
	return c.prefix + ":" + fingerprint
}

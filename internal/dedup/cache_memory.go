package dedup

import (
	"context"
	"sync"
	"time"
)

// MemoryCache implements scraper.SeenCache in-process, for development and
// single-node deployments without Redis.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache builds a cache whose entries expire after ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Seen reports whether the fingerprint is cached and not yet expired.
func (c *MemoryCache) Seen(_ context.Context, fingerprint string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	expiry, ok := c.entries[fingerprint]
	if !ok {
		return false, nil
	}
	if c.now().After(expiry) {
		delete(c.entries, fingerprint)
		return false, nil
	}
	return true, nil
}

// MarkSeen caches the fingerprint with the configured TTL.
func (c *MemoryCache) MarkSeen(_ context.Context, fingerprint string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint] = c.now().Add(c.ttl)
	return nil
}

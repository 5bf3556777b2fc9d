// Package ratelimit implements per-site token bucket throttling for fetches.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jobsentry/jobsentry/internal/metrics"
)

// Limiter manages per-site rate limits. Safe for concurrent use; acquisitions
// for the same site are serialized by the underlying bucket, so throughput
// never exceeds the configured rate even when runs for one site overlap.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// Config holds rate limiter configuration.
type Config struct {
	RPS   float64
	Burst int
}

// New creates a new Limiter. A non-positive RPS disables throttling.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      r,
		burst:    burst,
	}
}

// Wait blocks until a token is available for the site, or the context ends.
func (l *Limiter) Wait(ctx context.Context, siteID string) error {
	limiter := l.forSite(siteID)

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if delay := time.Since(start); delay > time.Millisecond {
		metrics.ObserveRateLimitDelay(siteID, delay)
	}
	return nil
}

// Throttle drains the site's bucket after an upstream 429, pushing the next
// permitted request a full burst-refill into the future.
func (l *Limiter) Throttle(siteID string) {
	limiter := l.forSite(siteID)
	if limiter.Limit() == rate.Inf {
		return
	}
	now := time.Now()
	for i := 0; i < limiter.Burst(); i++ {
		limiter.ReserveN(now, 1)
	}
	metrics.ObserveThrottle(siteID)
}

func (l *Limiter) forSite(siteID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.limiters[siteID]
	if !ok {
		limiter = rate.NewLimiter(l.rps, l.burst)
		l.limiters[siteID] = limiter
	}
	return limiter
}

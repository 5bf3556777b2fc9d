package dedup

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jobsentry/jobsentry/internal/scraper"
)

// Outcome is the dedup verdict for one candidate listing.
type Outcome int

const (
	// New means the fingerprint has never been confirmed before.
	New Outcome = iota
	// Seen means a record with this fingerprint already exists.
	Seen
)

// Deduplicator resolves new-vs-seen with a cache-aside pattern: the TTL
// cache is consulted first, the persisted job store on a miss. The store is
// the source of truth; the cache only saves a store round-trip for
// fingerprints confirmed recently.
type Deduplicator struct {
	cache  scraper.SeenCache
	jobs   scraper.JobStore
	logger *zap.Logger
}

// NewDeduplicator builds a Deduplicator.
func NewDeduplicator(cache scraper.SeenCache, jobs scraper.JobStore, logger *zap.Logger) *Deduplicator {
	return &Deduplicator{cache: cache, jobs: jobs, logger: logger}
}

// Check computes the listing's fingerprint and classifies it. Cache errors
// degrade to a store lookup rather than failing the check. A store-confirmed
// Seen is written through to the cache; a New verdict is NOT cached here —
// the caller confirms it with Confirm only after the record is persisted, so
// a crash between check and persist cannot suppress a future notification.
func (d *Deduplicator) Check(ctx context.Context, listing scraper.Listing) (string, Outcome, error) {
	fp := scraper.Fingerprint(listing)

	cached, err := d.cache.Seen(ctx, fp)
	if err != nil {
		d.logger.Warn("dedup cache lookup failed, falling back to store", zap.Error(err))
	} else if cached {
		return fp, Seen, nil
	}

	exists, err := d.jobs.FindJob(ctx, fp)
	if err != nil {
		return fp, Seen, fmt.Errorf("find job by fingerprint: %w", err)
	}
	if exists {
		d.markCache(ctx, fp)
		return fp, Seen, nil
	}
	return fp, New, nil
}

// Confirm records a fingerprint in the fast path after its job record has
// been durably persisted.
func (d *Deduplicator) Confirm(ctx context.Context, fingerprint string) {
	d.markCache(ctx, fingerprint)
}

func (d *Deduplicator) markCache(ctx context.Context, fingerprint string) {
	if err := d.cache.MarkSeen(ctx, fingerprint); err != nil {
		d.logger.Warn("dedup cache write failed", zap.Error(err))
	}
}

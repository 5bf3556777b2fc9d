// Package runner executes one scrape run end to end: fetch with retries,
// parse, deduplicate, persist, notify.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jobsentry/jobsentry/internal/dedup"
	"github.com/jobsentry/jobsentry/internal/metrics"
	"github.com/jobsentry/jobsentry/internal/parser"
	"github.com/jobsentry/jobsentry/internal/scraper"
)

// Deduper resolves new-vs-seen for candidate listings.
type Deduper interface {
	Check(ctx context.Context, listing scraper.Listing) (string, dedup.Outcome, error)
	Confirm(ctx context.Context, fingerprint string)
}

// Announcer delivers outbound notifications. Implementations absorb their own
// failures; a broken channel never changes a run's outcome.
type Announcer interface {
	JobFound(ctx context.Context, site scraper.Site, record scraper.JobRecord)
	RunSummary(ctx context.Context, site scraper.Site, run scraper.Run)
}

// Runner owns the per-site scrape pipeline. Safe for concurrent use across
// distinct sites; the scheduler guarantees at most one run per site at a time.
type Runner struct {
	fetcher     scraper.Fetcher
	deduper     Deduper
	store       scraper.Store
	announcer   Announcer
	retry       scraper.RetryPolicy
	clock       scraper.Clock
	logger      *zap.Logger
	strictParse bool

	// sleep is swappable in tests to keep retry paths fast.
	sleep func(ctx context.Context, d time.Duration) error
}

// Options configures optional runner behavior.
type Options struct {
	Retry       scraper.RetryPolicy
	StrictParse bool
}

// New builds a Runner.
func New(fetcher scraper.Fetcher, deduper Deduper, store scraper.Store, announcer Announcer, clock scraper.Clock, logger *zap.Logger, opts Options) *Runner {
	retry := opts.Retry
	if retry.MaxRetries == 0 && retry.BaseDelay == 0 {
		retry = scraper.DefaultRetryPolicy()
	}
	return &Runner{
		fetcher:     fetcher,
		deduper:     deduper,
		store:       store,
		announcer:   announcer,
		retry:       retry,
		clock:       clock,
		logger:      logger,
		strictParse: opts.StrictParse,
		sleep:       sleepCtx,
	}
}

// Run executes one scrape run for the site and returns the finalized,
// persisted summary. Failures are reported in the run's status and reason,
// never as an error, so the scheduler's dispatch loop stays uniform.
func (r *Runner) Run(ctx context.Context, site scraper.Site) scraper.Run {
	started := r.clock.Now()
	run := scraper.Run{
		ID:      uuid.NewString(),
		SiteID:  site.ID,
		Started: started,
	}
	logger := r.logger.With(zap.String("site", site.Name), zap.String("run_id", run.ID))
	logger.Info("scrape run starting")

	markup, err := r.fetchWithRetry(ctx, site, logger)
	if err != nil {
		run.Counters.Errors++
		r.finalize(ctx, site, &run, scraper.RunStatusFailed, err.Error(), logger)
		return run
	}
	run.Counters.Fetched = 1

	// A document-level parse error means tokenization itself failed: zero
	// candidates were processed, so the run is failed rather than partial.
	result, err := parser.Parse(markup, site, started)
	if err != nil {
		run.Counters.Errors++
		r.finalize(ctx, site, &run, scraper.RunStatusFailed, fmt.Sprintf("parse: %v", err), logger)
		return run
	}
	run.Counters.Parsed = len(result.Listings)
	if result.Dropped > 0 {
		logger.Warn("listings dropped for missing title", zap.Int("dropped", result.Dropped))
	}

	newRecords := r.processListings(ctx, site, &run, result.Listings, logger)

	// Records are durable at this point; notifications go out last so a crash
	// cannot notify about a job that was never persisted.
	for _, rec := range newRecords {
		r.announcer.JobFound(ctx, site, rec)
	}

	status, reason := r.verdict(run.Counters, result.Dropped)
	r.finalize(ctx, site, &run, status, reason, logger)
	return run
}

func (r *Runner) fetchWithRetry(ctx context.Context, site scraper.Site, logger *zap.Logger) ([]byte, error) {
	var waited time.Duration
	for attempt := 0; ; attempt++ {
		markup, err := r.fetcher.Fetch(ctx, site)
		if err == nil {
			return markup, nil
		}
		if !scraper.IsTransientFetch(err) {
			return nil, err
		}
		failed := attempt + 1
		if !r.retry.ShouldRetry(failed, waited) {
			return nil, fmt.Errorf("giving up after %d attempts: %w", failed, err)
		}
		delay := r.retry.Backoff(failed)
		logger.Warn("transient fetch failure, retrying",
			zap.Int("attempt", failed),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		metrics.ObserveFetchRetry(site.Name)
		if err := r.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("retry wait: %w", err)
		}
		waited += delay
	}
}

// processListings runs dedup and persistence per candidate and returns the
// records that were freshly inserted this run, in document order.
func (r *Runner) processListings(ctx context.Context, site scraper.Site, run *scraper.Run, listings []scraper.Listing, logger *zap.Logger) []scraper.JobRecord {
	var fresh []scraper.JobRecord
	for _, listing := range listings {
		fp, outcome, err := r.deduper.Check(ctx, listing)
		if err != nil {
			run.Counters.Errors++
			logger.Error("dedup check failed", zap.String("title", listing.Title), zap.Error(err))
			continue
		}

		record := scraper.NewRecord(listing, fp)
		if outcome == dedup.Seen {
			if _, err := r.store.UpsertJob(ctx, record); err != nil {
				run.Counters.Errors++
				logger.Error("advance last-seen failed", zap.String("fingerprint", fp), zap.Error(err))
				continue
			}
			run.Counters.Duplicates++
			metrics.ObserveListing(site.Name, "seen")
			continue
		}

		inserted, err := r.store.UpsertJob(ctx, record)
		if err != nil {
			run.Counters.Errors++
			logger.Error("persist job failed", zap.String("fingerprint", fp), zap.Error(err))
			continue
		}
		r.deduper.Confirm(ctx, fp)
		if !inserted {
			// Another run won the insert race; this copy is a duplicate.
			run.Counters.Duplicates++
			metrics.ObserveListing(site.Name, "seen")
			continue
		}
		run.Counters.New++
		metrics.ObserveListing(site.Name, "new")
		fresh = append(fresh, record)
	}
	return fresh
}

func (r *Runner) verdict(c scraper.RunCounters, dropped int) (scraper.RunStatus, string) {
	if c.Errors > 0 {
		return scraper.RunStatusPartial, fmt.Sprintf("%d listings errored", c.Errors)
	}
	if dropped > 0 && r.strictParse {
		return scraper.RunStatusPartial, fmt.Sprintf("%d listings dropped for missing title", dropped)
	}
	return scraper.RunStatusSuccess, ""
}

func (r *Runner) finalize(ctx context.Context, site scraper.Site, run *scraper.Run, status scraper.RunStatus, reason string, logger *zap.Logger) {
	run.Finished = r.clock.Now()
	run.Status = status
	run.Reason = reason

	if err := r.store.SaveRun(ctx, *run); err != nil {
		logger.Error("persist run summary failed", zap.Error(err))
	}
	if err := r.store.TouchSiteScraped(ctx, site.ID, run.Finished); err != nil {
		logger.Error("record last-scraped failed", zap.Error(err))
	}
	metrics.ObserveRun(site.Name, string(status), run.Finished.Sub(run.Started))

	if run.Counters.New > 0 {
		r.announcer.RunSummary(ctx, site, *run)
	}

	logger.Info("scrape run finished",
		zap.String("status", string(status)),
		zap.Int("parsed", run.Counters.Parsed),
		zap.Int("new", run.Counters.New),
		zap.Int("duplicates", run.Counters.Duplicates),
		zap.Int("errors", run.Counters.Errors),
		zap.Duration("duration", run.Finished.Sub(run.Started)),
	)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

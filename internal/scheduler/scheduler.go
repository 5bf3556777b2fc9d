// Package scheduler decides when each site is due and dispatches scrape runs
// to a bounded worker pool, guaranteeing at most one in-flight run per site.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jobsentry/jobsentry/internal/metrics"
	"github.com/jobsentry/jobsentry/internal/scraper"
)

// RunFunc executes one scrape run for a site and returns its summary.
type RunFunc func(ctx context.Context, site scraper.Site) scraper.Run

// Registry tracks per-site dispatch state: the last dispatch time and an
// in-flight flag. It is the sole arbiter of dueness, so a slow run can never
// overlap the next one for the same site.
type Registry struct {
	mu       sync.Mutex
	lastRun  map[string]time.Time
	inFlight map[string]bool
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		lastRun:  make(map[string]time.Time),
		inFlight: make(map[string]bool),
	}
}

// DueSites filters sites down to those due at now. A site is due when it is
// not in flight and its interval has elapsed since the last dispatch. Sites
// never dispatched this process are seeded from their persisted last-scraped
// time; with neither, the site is due immediately.
func (r *Registry) DueSites(sites []scraper.Site, now time.Time) []scraper.Site {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []scraper.Site
	for _, site := range sites {
		if r.inFlight[site.ID] {
			continue
		}
		last, ok := r.lastRun[site.ID]
		if !ok && site.LastScrapedAt != nil {
			last = *site.LastScrapedAt
			r.lastRun[site.ID] = last
			ok = true
		}
		if ok && now.Sub(last) < site.Interval {
			continue
		}
		due = append(due, site)
	}
	return due
}

// MarkDispatched flags the site in-flight and records the dispatch time.
func (r *Registry) MarkDispatched(siteID string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight[siteID] = true
	r.lastRun[siteID] = now
}

// Complete clears the site's in-flight flag.
func (r *Registry) Complete(siteID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, siteID)
}

// InFlight reports whether the site currently has a running scrape.
func (r *Registry) InFlight(siteID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight[siteID]
}

// Config tunes the scheduler loop.
type Config struct {
	Tick       time.Duration
	Workers    int
	MaxRunTime time.Duration
}

// Scheduler polls the site store on a fixed tick and hands due sites to the
// worker pool. When the pool is saturated, remaining due sites simply wait
// for a later tick; nothing is queued.
type Scheduler struct {
	sites    scraper.SiteStore
	run      RunFunc
	registry *Registry
	clock    scraper.Clock
	logger   *zap.Logger
	cfg      Config

	tokens chan struct{}
	wg     sync.WaitGroup
}

// New builds a Scheduler.
func New(sites scraper.SiteStore, run RunFunc, clock scraper.Clock, logger *zap.Logger, cfg Config) *Scheduler {
	if cfg.Tick <= 0 {
		cfg.Tick = 30 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Scheduler{
		sites:    sites,
		run:      run,
		registry: NewRegistry(),
		clock:    clock,
		logger:   logger,
		cfg:      cfg,
		tokens:   make(chan struct{}, cfg.Workers),
	}
}

// Run polls until ctx is canceled, then waits for in-flight runs to drain.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started",
		zap.Duration("tick", s.cfg.Tick),
		zap.Int("workers", s.cfg.Workers),
	)
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	// First sweep happens immediately rather than a full tick later.
	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping, draining workers")
			s.wg.Wait()
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	sites, err := s.sites.ListEnabledSites(ctx)
	if err != nil {
		s.logger.Error("list enabled sites failed", zap.Error(err))
		return
	}
	now := s.clock.Now()
	for _, site := range s.registry.DueSites(sites, now) {
		select {
		case s.tokens <- struct{}{}:
		default:
			// Pool saturated; the site stays due and is picked up next tick.
			s.logger.Warn("worker pool saturated, deferring site", zap.String("site", site.Name))
			return
		}
		s.dispatch(ctx, site, now)
	}
}

func (s *Scheduler) dispatch(ctx context.Context, site scraper.Site, now time.Time) {
	s.registry.MarkDispatched(site.ID, now)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.tokens }()
		defer s.registry.Complete(site.ID)

		metrics.IncActiveWorkers()
		defer metrics.DecActiveWorkers()

		runCtx := ctx
		if s.cfg.MaxRunTime > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, s.cfg.MaxRunTime)
			defer cancel()
		}
		s.run(runCtx, site)
	}()
}

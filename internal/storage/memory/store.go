// Package memory provides an in-memory store implementation for
// development and testing.
package memory

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/jobsentry/jobsentry/internal/scraper"
)

// ErrNotFound is returned when a site lookup misses.
var ErrNotFound = errors.New("not found")

// Store keeps sites, job records, and runs in process memory.
type Store struct {
	mu     sync.RWMutex
	sites  map[string]scraper.Site
	jobs   map[string]scraper.JobRecord
	runs   []scraper.Run
	nextID int
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		sites: make(map[string]scraper.Site),
		jobs:  make(map[string]scraper.JobRecord),
	}
}

// AddSite registers a site, assigning an ID when absent. A site with the
// same URL is replaced, mirroring the persisted store's upsert-by-url.
func (s *Store) AddSite(_ context.Context, site scraper.Site) (string, error) {
	if err := site.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.sites {
		if existing.URL == site.URL {
			site.ID = id
			s.sites[id] = site
			return id, nil
		}
	}
	if site.ID == "" {
		s.nextID++
		site.ID = "site-" + strconv.Itoa(s.nextID)
	}
	s.sites[site.ID] = site
	return site.ID, nil
}

// GetSite fetches a site by ID.
func (s *Store) GetSite(_ context.Context, id string) (scraper.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	site, ok := s.sites[id]
	if !ok {
		return scraper.Site{}, ErrNotFound
	}
	return site, nil
}

// GetSiteByName fetches a site by its configured name.
func (s *Store) GetSiteByName(_ context.Context, name string) (scraper.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, site := range s.sites {
		if site.Name == name {
			return site, nil
		}
	}
	return scraper.Site{}, ErrNotFound
}

// ListSites returns all sites ordered by ID.
func (s *Store) ListSites(_ context.Context) ([]scraper.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]scraper.Site, 0, len(s.sites))
	for _, site := range s.sites {
		out = append(out, site)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListEnabledSites returns the enabled subset of ListSites.
func (s *Store) ListEnabledSites(ctx context.Context) ([]scraper.Site, error) {
	all, err := s.ListSites(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, site := range all {
		if site.Enabled {
			out = append(out, site)
		}
	}
	return out, nil
}

// SetSiteEnabled flips a site's enabled flag.
func (s *Store) SetSiteEnabled(_ context.Context, id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	site, ok := s.sites[id]
	if !ok {
		return ErrNotFound
	}
	site.Enabled = enabled
	s.sites[id] = site
	return nil
}

// TouchSiteScraped records when the site was last scraped.
func (s *Store) TouchSiteScraped(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	site, ok := s.sites[id]
	if !ok {
		return ErrNotFound
	}
	ts := at
	site.LastScrapedAt = &ts
	s.sites[id] = site
	return nil
}

// UpsertJob inserts the record if its fingerprint is new, otherwise only
// advances last-seen.
func (s *Store) UpsertJob(_ context.Context, record scraper.JobRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.jobs[record.Fingerprint]
	if ok {
		if record.LastSeen.After(existing.LastSeen) {
			existing.LastSeen = record.LastSeen
			s.jobs[record.Fingerprint] = existing
		}
		return false, nil
	}
	s.jobs[record.Fingerprint] = record
	return true, nil
}

// FindJob reports whether a fingerprint has a persisted record.
func (s *Store) FindJob(_ context.Context, fingerprint string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.jobs[fingerprint]
	return ok, nil
}

// SaveRun appends a finalized run summary.
func (s *Store) SaveRun(_ context.Context, run scraper.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

// RunStats aggregates runs started at or after since.
func (s *Store) RunStats(_ context.Context, since time.Time) (scraper.RunStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stats scraper.RunStats
	for _, run := range s.runs {
		if run.Started.Before(since) {
			continue
		}
		stats.Runs++
		switch run.Status {
		case scraper.RunStatusSuccess:
			stats.Succeeded++
		case scraper.RunStatusPartial:
			stats.Partial++
		case scraper.RunStatusFailed:
			stats.Failed++
		}
		stats.NewJobs += run.Counters.New
		stats.Duplicates += run.Counters.Duplicates
	}
	return stats, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() {}

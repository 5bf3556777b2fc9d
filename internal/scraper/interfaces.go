package scraper

import (
	"context"
	"time"
)

// SiteStore persists site configuration.
type SiteStore interface {
	AddSite(ctx context.Context, site Site) (string, error)
	GetSite(ctx context.Context, id string) (Site, error)
	GetSiteByName(ctx context.Context, name string) (Site, error)
	ListSites(ctx context.Context) ([]Site, error)
	ListEnabledSites(ctx context.Context) ([]Site, error)
	SetSiteEnabled(ctx context.Context, id string, enabled bool) error
	TouchSiteScraped(ctx context.Context, id string, at time.Time) error
}

// JobStore persists confirmed listings keyed by fingerprint.
type JobStore interface {
	// UpsertJob inserts the record if its fingerprint is absent and reports
	// true; otherwise it only advances last-seen and reports false.
	UpsertJob(ctx context.Context, record JobRecord) (bool, error)
	// FindJob reports whether a fingerprint already has a persisted record.
	FindJob(ctx context.Context, fingerprint string) (bool, error)
}

// RunStore persists finalized run summaries.
type RunStore interface {
	SaveRun(ctx context.Context, run Run) error
	RunStats(ctx context.Context, since time.Time) (RunStats, error)
}

// Store bundles the persistence interfaces a full deployment provides.
type Store interface {
	SiteStore
	JobStore
	RunStore
	Close()
}

// Fetcher retrieves the raw markup for one site.
type Fetcher interface {
	Fetch(ctx context.Context, site Site) ([]byte, error)
}

// Notifier delivers one ready-to-send message to the external channel.
type Notifier interface {
	Send(ctx context.Context, message string) error
}

// SeenCache is the dedup fast path: a bounded-TTL record of recently
// confirmed fingerprints. Purely an optimization over the job store.
type SeenCache interface {
	Seen(ctx context.Context, fingerprint string) (bool, error)
	MarkSeen(ctx context.Context, fingerprint string) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Package postgres provides Postgres-backed persistence for sites, job
// records, and run summaries.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jobsentry/jobsentry/internal/scraper"
)

// ErrNotFound is returned when a site lookup misses.
var ErrNotFound = errors.New("not found")

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store implements scraper.Store on a pgx connection pool.
type Store struct {
	pool pgxPool
}

// NewStore connects a pool using cfg and returns a Store.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewStoreWithPool(pool pgxPool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// InitSchema creates the tables if they do not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sites (
	id               UUID PRIMARY KEY,
	name             TEXT NOT NULL,
	url              TEXT NOT NULL UNIQUE,
	selectors        JSONB NOT NULL,
	interval_seconds BIGINT NOT NULL,
	enabled          BOOLEAN NOT NULL DEFAULT TRUE,
	tags             JSONB NOT NULL DEFAULT '[]',
	last_scraped_at  TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS jobs (
	fingerprint TEXT PRIMARY KEY,
	site_id     UUID NOT NULL,
	title       TEXT NOT NULL,
	company     TEXT NOT NULL DEFAULT '',
	location    TEXT NOT NULL DEFAULT '',
	url         TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	salary      TEXT NOT NULL DEFAULT '',
	job_type    TEXT NOT NULL DEFAULT '',
	posted_date TEXT NOT NULL DEFAULT '',
	first_seen  TIMESTAMPTZ NOT NULL,
	last_seen   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS jobs_site_id_idx ON jobs (site_id);
CREATE TABLE IF NOT EXISTS runs (
	id          UUID PRIMARY KEY,
	site_id     UUID NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	status      TEXT NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	fetched     INT NOT NULL DEFAULT 0,
	parsed      INT NOT NULL DEFAULT 0,
	new_jobs    INT NOT NULL DEFAULT 0,
	duplicates  INT NOT NULL DEFAULT 0,
	errors      INT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS runs_started_at_idx ON runs (started_at);
`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// AddSite inserts a site, or replaces the configuration of an existing site
// with the same URL. Returns the site's ID.
func (s *Store) AddSite(ctx context.Context, site scraper.Site) (string, error) {
	if err := site.Validate(); err != nil {
		return "", err
	}
	if site.ID == "" {
		site.ID = uuid.NewString()
	}
	selectorsJSON, err := json.Marshal(site.Selectors)
	if err != nil {
		return "", fmt.Errorf("marshal selectors: %w", err)
	}
	tagsJSON, err := json.Marshal(tagsOrEmpty(site.Tags))
	if err != nil {
		return "", fmt.Errorf("marshal tags: %w", err)
	}
	const query = `
INSERT INTO sites (id, name, url, selectors, interval_seconds, enabled, tags)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (url) DO UPDATE SET
	name = EXCLUDED.name,
	selectors = EXCLUDED.selectors,
	interval_seconds = EXCLUDED.interval_seconds,
	enabled = EXCLUDED.enabled,
	tags = EXCLUDED.tags
RETURNING id`
	var id string
	err = s.pool.QueryRow(ctx, query,
		site.ID,
		site.Name,
		site.URL,
		selectorsJSON,
		int64(site.Interval/time.Second),
		site.Enabled,
		tagsJSON,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert site: %w", err)
	}
	return id, nil
}

const siteColumns = `id, name, url, selectors, interval_seconds, enabled, tags, last_scraped_at`

// GetSite fetches a site by ID.
func (s *Store) GetSite(ctx context.Context, id string) (scraper.Site, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+siteColumns+` FROM sites WHERE id = $1`, id)
	return scanSite(row)
}

// GetSiteByName fetches a site by its configured name.
func (s *Store) GetSiteByName(ctx context.Context, name string) (scraper.Site, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+siteColumns+` FROM sites WHERE name = $1`, name)
	return scanSite(row)
}

// ListSites returns all sites ordered by name.
func (s *Store) ListSites(ctx context.Context) ([]scraper.Site, error) {
	return s.querySites(ctx, `SELECT `+siteColumns+` FROM sites ORDER BY name`)
}

// ListEnabledSites returns enabled sites ordered by name.
func (s *Store) ListEnabledSites(ctx context.Context) ([]scraper.Site, error) {
	return s.querySites(ctx, `SELECT `+siteColumns+` FROM sites WHERE enabled ORDER BY name`)
}

func (s *Store) querySites(ctx context.Context, query string) ([]scraper.Site, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sites: %w", err)
	}
	defer rows.Close()

	var sites []scraper.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sites: %w", err)
	}
	return sites, nil
}

// SetSiteEnabled flips a site's enabled flag.
func (s *Store) SetSiteEnabled(ctx context.Context, id string, enabled bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE sites SET enabled = $2 WHERE id = $1`, id, enabled)
	if err != nil {
		return fmt.Errorf("update site enabled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchSiteScraped records when the site was last scraped.
func (s *Store) TouchSiteScraped(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE sites SET last_scraped_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch site: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertJob inserts the record if its fingerprint is absent and reports true;
// on conflict only last-seen advances and it reports false. xmax = 0 holds
// only for freshly inserted rows, which distinguishes the two arms of the
// upsert in a single round-trip.
func (s *Store) UpsertJob(ctx context.Context, record scraper.JobRecord) (bool, error) {
	const query = `
INSERT INTO jobs (
	fingerprint, site_id, title, company, location, url,
	description, salary, job_type, posted_date, first_seen, last_seen
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (fingerprint) DO UPDATE SET
	last_seen = GREATEST(jobs.last_seen, EXCLUDED.last_seen)
RETURNING (xmax = 0) AS inserted`
	var inserted bool
	err := s.pool.QueryRow(ctx, query,
		record.Fingerprint,
		record.SiteID,
		record.Title,
		record.Company,
		record.Location,
		record.URL,
		record.Description,
		record.Salary,
		record.JobType,
		record.PostedDate,
		record.FirstSeen,
		record.LastSeen,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert job: %w", err)
	}
	return inserted, nil
}

// FindJob reports whether a fingerprint already has a persisted record.
func (s *Store) FindJob(ctx context.Context, fingerprint string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM jobs WHERE fingerprint = $1)`, fingerprint,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("find job: %w", err)
	}
	return exists, nil
}

// SaveRun persists a finalized run summary.
func (s *Store) SaveRun(ctx context.Context, run scraper.Run) error {
	const query = `
INSERT INTO runs (
	id, site_id, started_at, finished_at, status, reason,
	fetched, parsed, new_jobs, duplicates, errors
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err := s.pool.Exec(ctx, query,
		run.ID,
		run.SiteID,
		run.Started,
		run.Finished,
		string(run.Status),
		run.Reason,
		run.Counters.Fetched,
		run.Counters.Parsed,
		run.Counters.New,
		run.Counters.Duplicates,
		run.Counters.Errors,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RunStats aggregates runs started at or after since.
func (s *Store) RunStats(ctx context.Context, since time.Time) (scraper.RunStats, error) {
	const query = `
SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE status = 'success'),
	COUNT(*) FILTER (WHERE status = 'partial'),
	COUNT(*) FILTER (WHERE status = 'failed'),
	COALESCE(SUM(new_jobs), 0),
	COALESCE(SUM(duplicates), 0)
FROM runs WHERE started_at >= $1`
	var stats scraper.RunStats
	err := s.pool.QueryRow(ctx, query, since).Scan(
		&stats.Runs,
		&stats.Succeeded,
		&stats.Partial,
		&stats.Failed,
		&stats.NewJobs,
		&stats.Duplicates,
	)
	if err != nil {
		return scraper.RunStats{}, fmt.Errorf("run stats: %w", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSite(row rowScanner) (scraper.Site, error) {
	var (
		site            scraper.Site
		selectorsJSON   []byte
		tagsJSON        []byte
		intervalSeconds int64
		lastScraped     *time.Time
	)
	err := row.Scan(
		&site.ID,
		&site.Name,
		&site.URL,
		&selectorsJSON,
		&intervalSeconds,
		&site.Enabled,
		&tagsJSON,
		&lastScraped,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return scraper.Site{}, ErrNotFound
	}
	if err != nil {
		return scraper.Site{}, fmt.Errorf("scan site: %w", err)
	}
	if err := json.Unmarshal(selectorsJSON, &site.Selectors); err != nil {
		return scraper.Site{}, fmt.Errorf("unmarshal selectors: %w", err)
	}
	if err := json.Unmarshal(tagsJSON, &site.Tags); err != nil {
		return scraper.Site{}, fmt.Errorf("unmarshal tags: %w", err)
	}
	site.Interval = time.Duration(intervalSeconds) * time.Second
	site.LastScrapedAt = lastScraped
	return site, nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

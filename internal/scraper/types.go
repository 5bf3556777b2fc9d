// Package scraper defines core types shared across subsystems.
package scraper

import (
	"fmt"
	"time"
)

// RunStatus represents the terminal state of a scrape run.
type RunStatus string

// Run status values persisted in the run store.
const (
	RunStatusSuccess RunStatus = "success"
	RunStatusPartial RunStatus = "partial"
	RunStatusFailed  RunStatus = "failed"
)

// Selectors maps listing fields to CSS locators for one site. Container and
// Title are mandatory; any other empty locator means that field is always
// empty for the site.
type Selectors struct {
	Container   string `json:"container" mapstructure:"container"`
	Title       string `json:"title" mapstructure:"title"`
	Company     string `json:"company" mapstructure:"company"`
	Location    string `json:"location" mapstructure:"location"`
	URL         string `json:"url" mapstructure:"url"`
	Description string `json:"description" mapstructure:"description"`
	Salary      string `json:"salary" mapstructure:"salary"`
	JobType     string `json:"job_type" mapstructure:"job_type"`
	PostedDate  string `json:"posted_date" mapstructure:"posted_date"`
}

// Site is one configured scrape target with its own extraction rules and
// schedule. The core never mutates a Site except to record last-run times.
type Site struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	URL           string        `json:"url"`
	Selectors     Selectors     `json:"selectors"`
	Interval      time.Duration `json:"interval"`
	Enabled       bool          `json:"enabled"`
	Tags          []string      `json:"tags,omitempty"`
	LastScrapedAt *time.Time    `json:"last_scraped_at,omitempty"`
}

// Listing is a parsed, not-yet-deduplicated candidate record. It exists only
// within one run.
type Listing struct {
	SiteID      string    `json:"site_id"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Location    string    `json:"location"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	Salary      string    `json:"salary"`
	JobType     string    `json:"job_type"`
	PostedDate  string    `json:"posted_date"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// JobRecord is a persisted, confirmed listing keyed by its fingerprint.
// Immutable after creation except for LastSeen.
type JobRecord struct {
	Fingerprint string    `json:"fingerprint"`
	SiteID      string    `json:"site_id"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Location    string    `json:"location"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	Salary      string    `json:"salary"`
	JobType     string    `json:"job_type"`
	PostedDate  string    `json:"posted_date"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
}

// RunCounters tracks per-run outcome counts.
type RunCounters struct {
	Fetched    int `json:"fetched"`
	Parsed     int `json:"parsed"`
	New        int `json:"new"`
	Duplicates int `json:"duplicates"`
	Errors     int `json:"errors"`
}

// Run is the persisted summary of one pipeline execution for one site.
// Finalized once, never mutated afterwards.
type Run struct {
	ID       string      `json:"id"`
	SiteID   string      `json:"site_id"`
	Started  time.Time   `json:"started_at"`
	Finished time.Time   `json:"finished_at"`
	Status   RunStatus   `json:"status"`
	Reason   string      `json:"reason,omitempty"`
	Counters RunCounters `json:"counters"`
}

// RunStats aggregates run summaries over a time window for the stats command.
type RunStats struct {
	Runs       int `json:"runs"`
	Succeeded  int `json:"succeeded"`
	Partial    int `json:"partial"`
	Failed     int `json:"failed"`
	NewJobs    int `json:"new_jobs"`
	Duplicates int `json:"duplicates"`
}

// NewRecord reifies a listing into a job record with its dedup identity.
func NewRecord(l Listing, fingerprint string) JobRecord {
	return JobRecord{
		Fingerprint: fingerprint,
		SiteID:      l.SiteID,
		Title:       l.Title,
		Company:     l.Company,
		Location:    l.Location,
		URL:         l.URL,
		Description: l.Description,
		Salary:      l.Salary,
		JobType:     l.JobType,
		PostedDate:  l.PostedDate,
		FirstSeen:   l.FetchedAt,
		LastSeen:    l.FetchedAt,
	}
}

// Validate enforces the mandatory parts of a site configuration.
func (s Site) Validate() error {
	switch {
	case s.Name == "":
		return fmt.Errorf("site name is required")
	case s.URL == "":
		return fmt.Errorf("site url is required")
	case s.Selectors.Container == "":
		return fmt.Errorf("selectors.container is required")
	case s.Selectors.Title == "":
		return fmt.Errorf("selectors.title is required")
	case s.Interval <= 0:
		return fmt.Errorf("scrape interval must be > 0")
	}
	return nil
}

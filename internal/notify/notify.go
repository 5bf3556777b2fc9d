// Package notify delivers outbound messages about newly discovered jobs.
// Delivery is strictly best-effort: a failed send is logged and counted,
// never retried, and never alters the outcome of a scrape run.
package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jobsentry/jobsentry/internal/metrics"
	"github.com/jobsentry/jobsentry/internal/scraper"
)

// Adapter formats pipeline events into messages and hands them to the
// configured channel. It implements the runner's Announcer.
type Adapter struct {
	notifier scraper.Notifier
	logger   *zap.Logger
}

// NewAdapter builds an Adapter around a channel implementation.
func NewAdapter(notifier scraper.Notifier, logger *zap.Logger) *Adapter {
	return &Adapter{notifier: notifier, logger: logger}
}

// JobFound sends one message for a freshly persisted job record.
func (a *Adapter) JobFound(ctx context.Context, site scraper.Site, record scraper.JobRecord) {
	a.send(ctx, formatJob(site, record))
}

// RunSummary sends a digest for a finished run that found new jobs.
func (a *Adapter) RunSummary(ctx context.Context, site scraper.Site, run scraper.Run) {
	a.send(ctx, fmt.Sprintf("Scrape of %s finished: %d new, %d duplicates, status %s",
		site.Name, run.Counters.New, run.Counters.Duplicates, run.Status))
}

// Startup announces that the service came up.
func (a *Adapter) Startup(ctx context.Context) {
	a.send(ctx, "jobsentry started and watching for new listings")
}

// Announce sends an arbitrary message, used by the notify CLI command to
// verify channel configuration end to end.
func (a *Adapter) Announce(ctx context.Context, message string) error {
	if err := a.notifier.Send(ctx, message); err != nil {
		metrics.ObserveNotifyFailure()
		return err
	}
	return nil
}

func (a *Adapter) send(ctx context.Context, message string) {
	if err := a.notifier.Send(ctx, message); err != nil {
		metrics.ObserveNotifyFailure()
		a.logger.Warn("notification send failed, skipping", zap.Error(err))
	}
}

func formatJob(site scraper.Site, record scraper.JobRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New job on %s: %s", site.Name, record.Title)
	if record.Company != "" {
		fmt.Fprintf(&b, " at %s", record.Company)
	}
	if record.Location != "" {
		fmt.Fprintf(&b, " (%s)", record.Location)
	}
	if record.Salary != "" {
		fmt.Fprintf(&b, ", %s", record.Salary)
	}
	if record.URL != "" {
		fmt.Fprintf(&b, "\n%s", record.URL)
	}
	return b.String()
}

// Noop discards all messages; the default when no channel is configured.
type Noop struct{}

// Send implements scraper.Notifier.
func (Noop) Send(context.Context, string) error { return nil }

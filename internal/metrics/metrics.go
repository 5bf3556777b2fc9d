// Package metrics exposes Prometheus collectors for the scraper service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	runsTotal             *prometheus.CounterVec
	listingsTotal         *prometheus.CounterVec
	fetchRetriesTotal     *prometheus.CounterVec
	throttleTotal         *prometheus.CounterVec
	notifyFailuresTotal   prometheus.Counter
	activeWorkers         prometheus.Gauge
	runDurationSeconds    *prometheus.HistogramVec
	rateLimitDelaySeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call more than once.
func Init() {
	once.Do(func() {
		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobsentry_runs_total",
				Help: "Total scrape runs, labeled by site and terminal status.",
			},
			[]string{"site", "status"},
		)

		listingsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobsentry_listings_total",
				Help: "Total processed listings, labeled by site and dedup outcome.",
			},
			[]string{"site", "outcome"},
		)

		fetchRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobsentry_fetch_retries_total",
				Help: "Total fetch retries, labeled by site.",
			},
			[]string{"site"},
		)

		throttleTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobsentry_throttle_total",
				Help: "Times a site's bucket was drained after an upstream 429.",
			},
			[]string{"site"},
		)

		notifyFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "jobsentry_notify_failures_total",
				Help: "Notification sends that failed and were skipped.",
			},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "jobsentry_active_workers",
				Help: "Workers currently executing a scrape run.",
			},
		)

		runDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobsentry_run_duration_seconds",
				Help:    "Histogram of scrape run durations, labeled by site.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"site"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobsentry_rate_limit_delay_seconds",
				Help:    "Histogram of rate limit wait durations, labeled by site.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRun records a finished run.
func ObserveRun(site, status string, duration time.Duration) {
	if runsTotal == nil {
		return
	}
	runsTotal.WithLabelValues(site, status).Inc()
	runDurationSeconds.WithLabelValues(site).Observe(duration.Seconds())
}

// ObserveListing records one dedup outcome ("new" or "seen").
func ObserveListing(site, outcome string) {
	if listingsTotal == nil {
		return
	}
	listingsTotal.WithLabelValues(site, outcome).Inc()
}

// ObserveFetchRetry counts one retried fetch attempt.
func ObserveFetchRetry(site string) {
	if fetchRetriesTotal == nil {
		return
	}
	fetchRetriesTotal.WithLabelValues(site).Inc()
}

// ObserveThrottle counts a 429-triggered bucket drain.
func ObserveThrottle(site string) {
	if throttleTotal == nil {
		return
	}
	throttleTotal.WithLabelValues(site).Inc()
}

// ObserveNotifyFailure counts a skipped notification.
func ObserveNotifyFailure() {
	if notifyFailuresTotal == nil {
		return
	}
	notifyFailuresTotal.Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	if activeWorkers != nil {
		activeWorkers.Inc()
	}
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	if activeWorkers != nil {
		activeWorkers.Dec()
	}
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(site string, duration time.Duration) {
	if rateLimitDelaySeconds == nil {
		return
	}
	rateLimitDelaySeconds.WithLabelValues(site).Observe(duration.Seconds())
}

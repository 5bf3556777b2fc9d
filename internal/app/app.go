// Package app wires configuration into the concrete subsystems and owns
// their lifecycles.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jobsentry/jobsentry/internal/clock/system"
	"github.com/jobsentry/jobsentry/internal/config"
	"github.com/jobsentry/jobsentry/internal/dedup"
	"github.com/jobsentry/jobsentry/internal/fetcher"
	"github.com/jobsentry/jobsentry/internal/logging"
	"github.com/jobsentry/jobsentry/internal/metrics"
	"github.com/jobsentry/jobsentry/internal/notify"
	"github.com/jobsentry/jobsentry/internal/ratelimit"
	"github.com/jobsentry/jobsentry/internal/runner"
	"github.com/jobsentry/jobsentry/internal/scheduler"
	"github.com/jobsentry/jobsentry/internal/scraper"
	"github.com/jobsentry/jobsentry/internal/storage/memory"
	"github.com/jobsentry/jobsentry/internal/storage/postgres"
)

// App is the assembled service: every subsystem constructed, connected, and
// ready to run or to serve a one-shot CLI command.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Store    scraper.Store
	Runner   *runner.Runner
	Notifier *notify.Adapter

	cache    scraper.SeenCache
	closeFns []func()
}

// New builds an App from loaded configuration.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	metrics.Init()

	a := &App{Config: cfg, Logger: logger}

	if err := a.buildStore(ctx, cfg); err != nil {
		return nil, err
	}
	if err := a.buildCache(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildNotifier(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}

	limiter := ratelimit.New(ratelimit.Config{
		RPS:   cfg.RateLimit.RPS,
		Burst: cfg.RateLimit.Burst,
	})
	fetch := fetcher.New(fetcher.Config{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	}, limiter, logger)
	deduper := dedup.NewDeduplicator(a.cache, a.Store, logger)

	a.Runner = runner.New(fetch, deduper, a.Store, a.Notifier, system.Clock{}, logger, runner.Options{
		Retry: scraper.RetryPolicy{
			MaxRetries: cfg.Fetch.MaxRetries,
			BaseDelay:  time.Duration(cfg.Fetch.BackoffBaseMs) * time.Millisecond,
			MaxDelay:   time.Duration(cfg.Fetch.BackoffMaxMs) * time.Millisecond,
			MaxElapsed: time.Duration(cfg.Fetch.MaxElapsedSeconds) * time.Second,
		},
		StrictParse: cfg.Scraper.StrictParse,
	})
	return a, nil
}

// Scheduler builds the polling scheduler bound to this app's runner.
func (a *App) Scheduler() *scheduler.Scheduler {
	return scheduler.New(a.Store, a.Runner.Run, system.Clock{}, a.Logger, scheduler.Config{
		Tick:       a.Config.Tick(),
		Workers:    a.Config.Scheduler.Workers,
		MaxRunTime: a.Config.MaxRunDuration(),
	})
}

// Close releases all held resources in reverse construction order.
func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
	_ = a.Logger.Sync()
}

func (a *App) buildStore(ctx context.Context, cfg config.Config) error {
	switch cfg.DB.Provider {
	case "postgres":
		store, err := postgres.NewStore(ctx, postgres.Config{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("build postgres store: %w", err)
		}
		a.Store = store
	case "memory", "":
		a.Store = memory.NewStore()
	default:
		return fmt.Errorf("unknown db.provider %q", cfg.DB.Provider)
	}
	a.closeFns = append(a.closeFns, a.Store.Close)
	return nil
}

func (a *App) buildCache(ctx context.Context, cfg config.Config) error {
	switch cfg.Dedup.CacheProvider {
	case "redis":
		cache, err := dedup.NewRedisCache(ctx, cfg.Dedup.RedisURL, "jobsentry:seen", cfg.CacheTTL())
		if err != nil {
			return fmt.Errorf("build redis cache: %w", err)
		}
		a.cache = cache
		a.closeFns = append(a.closeFns, func() { _ = cache.Close() })
	case "memory", "":
		a.cache = dedup.NewMemoryCache(cfg.CacheTTL())
	default:
		return fmt.Errorf("unknown dedup.cache_provider %q", cfg.Dedup.CacheProvider)
	}
	return nil
}

func (a *App) buildNotifier(ctx context.Context, cfg config.Config) error {
	var (
		notifier scraper.Notifier
		err      error
	)
	switch cfg.Notify.Provider {
	case "telegram":
		notifier, err = notify.NewTelegram(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID)
	case "slack":
		notifier, err = notify.NewSlack(cfg.Notify.SlackToken, cfg.Notify.SlackChannel)
	case "pubsub":
		var ps *notify.PubSub
		ps, err = notify.NewPubSub(ctx, cfg.Notify.PubSubProjectID, cfg.Notify.PubSubTopic)
		if err == nil {
			notifier = ps
			a.closeFns = append(a.closeFns, func() { _ = ps.Close() })
		}
	case "noop", "":
		notifier = notify.Noop{}
	default:
		err = fmt.Errorf("unknown notify.provider %q", cfg.Notify.Provider)
	}
	if err != nil {
		return fmt.Errorf("build notifier: %w", err)
	}
	a.Notifier = notify.NewAdapter(notifier, a.Logger)
	return nil
}

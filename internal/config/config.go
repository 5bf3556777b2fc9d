// Package config loads and validates jobsentry configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Dedup     DedupConfig     `mapstructure:"dedup"`
	DB        DBConfig        `mapstructure:"db"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls the metrics/health HTTP listener.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// SchedulerConfig governs the polling loop and worker pool.
type SchedulerConfig struct {
	TickSeconds   int `mapstructure:"tick_seconds"`
	Workers       int `mapstructure:"workers"`
	MaxRunMinutes int `mapstructure:"max_run_minutes"`
}

// ScraperConfig governs run-level behavior.
type ScraperConfig struct {
	// StrictParse degrades a run to partial when a container is dropped for
	// missing mandatory fields.
	StrictParse bool `mapstructure:"strict_parse"`
}

// FetchConfig configures HTTP retrieval and retry behavior.
type FetchConfig struct {
	UserAgent         string `mapstructure:"user_agent"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	MaxRetries        int    `mapstructure:"max_retries"`
	BackoffBaseMs     int    `mapstructure:"backoff_base_ms"`
	BackoffMaxMs      int    `mapstructure:"backoff_max_ms"`
	MaxElapsedSeconds int    `mapstructure:"max_elapsed_seconds"`
}

// RateLimitConfig sets per-site token bucket parameters.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// DedupConfig controls the fingerprint fast-path cache.
type DedupConfig struct {
	CacheProvider   string `mapstructure:"cache_provider"` // redis | memory
	RedisURL        string `mapstructure:"redis_url"`
	CacheTTLMinutes int    `mapstructure:"cache_ttl_minutes"`
}

// DBConfig controls access to the persisted store.
type DBConfig struct {
	Provider string `mapstructure:"provider"` // postgres | memory
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// NotifyConfig selects and configures the notification channel.
type NotifyConfig struct {
	Provider string `mapstructure:"provider"` // telegram | slack | pubsub | noop

	TelegramToken  string `mapstructure:"telegram_token"`
	TelegramChatID string `mapstructure:"telegram_chat_id"`

	SlackToken   string `mapstructure:"slack_token"`
	SlackChannel string `mapstructure:"slack_channel"`

	PubSubProjectID string `mapstructure:"pubsub_project_id"`
	PubSubTopic     string `mapstructure:"pubsub_topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JOBSENTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("scheduler.tick_seconds", 30)
	v.SetDefault("scheduler.workers", 4)
	v.SetDefault("scheduler.max_run_minutes", 10)
	v.SetDefault("scraper.strict_parse", false)
	v.SetDefault("fetch.user_agent", "jobsentry/1.0 (+https://github.com/jobsentry/jobsentry)")
	v.SetDefault("fetch.timeout_seconds", 20)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.backoff_base_ms", 500)
	v.SetDefault("fetch.backoff_max_ms", 30000)
	v.SetDefault("fetch.max_elapsed_seconds", 120)
	v.SetDefault("rate_limit.rps", 0.5)
	v.SetDefault("rate_limit.burst", 1)
	v.SetDefault("dedup.cache_provider", "memory")
	v.SetDefault("dedup.cache_ttl_minutes", 180)
	v.SetDefault("db.provider", "memory")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("notify.provider", "noop")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scheduler.TickSeconds <= 0 {
		return fmt.Errorf("scheduler.tick_seconds must be > 0")
	}
	if c.Scheduler.Workers <= 0 {
		return fmt.Errorf("scheduler.workers must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.MaxRetries < 0 {
		return fmt.Errorf("fetch.max_retries must be >= 0")
	}
	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("rate_limit.rps must be >= 0")
	}
	if c.DB.Provider == "postgres" && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set when db.provider is postgres")
	}
	if c.Dedup.CacheProvider == "redis" && c.Dedup.RedisURL == "" {
		return fmt.Errorf("dedup.redis_url must be set when dedup.cache_provider is redis")
	}
	switch c.Notify.Provider {
	case "telegram":
		if c.Notify.TelegramToken == "" || c.Notify.TelegramChatID == "" {
			return fmt.Errorf("notify.telegram_token and notify.telegram_chat_id must be set for telegram")
		}
	case "slack":
		if c.Notify.SlackToken == "" || c.Notify.SlackChannel == "" {
			return fmt.Errorf("notify.slack_token and notify.slack_channel must be set for slack")
		}
	case "pubsub":
		if c.Notify.PubSubProjectID == "" || c.Notify.PubSubTopic == "" {
			return fmt.Errorf("notify.pubsub_project_id and notify.pubsub_topic must be set for pubsub")
		}
	case "noop", "":
	default:
		return fmt.Errorf("unknown notify.provider %q", c.Notify.Provider)
	}
	return nil
}

// FetchTimeout converts the configured fetch timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// Tick converts the scheduler polling period into a duration.
func (c Config) Tick() time.Duration {
	return time.Duration(c.Scheduler.TickSeconds) * time.Second
}

// MaxRunDuration is how long a single scrape run may take before it is aborted.
func (c Config) MaxRunDuration() time.Duration {
	return time.Duration(c.Scheduler.MaxRunMinutes) * time.Minute
}

// CacheTTL is the dedup fast-path entry lifetime.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Dedup.CacheTTLMinutes) * time.Minute
}

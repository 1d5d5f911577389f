// Package config loads and validates service configuration via Viper.
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
	Auth      AuthConfig      `mapstructure:"auth"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Store     StoreConfig     `mapstructure:"store"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// QueueConfig governs the pending queue and the concurrency ceiling.
type QueueConfig struct {
	Ceiling       int `mapstructure:"ceiling"`
	CleanAgeHours int `mapstructure:"clean_age_hours"`
}

// WorkerConfig governs the worker pool and retry behavior.
type WorkerConfig struct {
	Workers       int `mapstructure:"workers"`
	MaxAttempts   int `mapstructure:"max_attempts"`
	BaseBackoffMs int `mapstructure:"base_backoff_ms"`
}

// BrowserConfig configures the headless rendering subsystem.
type BrowserConfig struct {
	MaxParallel   int    `mapstructure:"max_parallel"`
	UserAgent     string `mapstructure:"user_agent"`
	NavTimeoutSec int    `mapstructure:"nav_timeout_seconds"`
}

// FetchConfig configures the lightweight HTTP fetcher.
type FetchConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// StoreConfig selects and configures the job store backend.
type StoreConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
	MinConns int    `mapstructure:"min_conns"`
}

// SnapshotConfig selects and configures raw page snapshot persistence.
type SnapshotConfig struct {
	Provider string `mapstructure:"provider"`
	BaseDir  string `mapstructure:"base_dir"`
	Bucket   string `mapstructure:"bucket"`
}

// NotifyConfig selects the job update transport.
type NotifyConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// SchedulerConfig holds standing task schedules and sweep policy.
type SchedulerConfig struct {
	DailySchedule     string `mapstructure:"daily_schedule"`
	WeeklySchedule    string `mapstructure:"weekly_schedule"`
	TrendsSchedule    string `mapstructure:"trends_schedule"`
	CleanupSchedule   string `mapstructure:"cleanup_schedule"`
	RetentionDays     int    `mapstructure:"retention_days"`
	TrendSourceURL    string `mapstructure:"trend_source_url"`
	TrendLookbackDays int    `mapstructure:"trend_lookback_days"`
	TrendKeywordMax   int    `mapstructure:"trend_keyword_max"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCOUT")
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
	v.SetDefault("queue.ceiling", 5)
	v.SetDefault("queue.clean_age_hours", 24)
	v.SetDefault("worker.workers", 5)
	v.SetDefault("worker.max_attempts", 3)
	v.SetDefault("worker.base_backoff_ms", 1000)
	v.SetDefault("browser.max_parallel", 2)
	v.SetDefault("browser.user_agent", "scout-bot/0.1")
	v.SetDefault("browser.nav_timeout_seconds", 30)
	v.SetDefault("fetch.user_agent", "scout-bot/0.1")
	v.SetDefault("fetch.timeout_seconds", 30)
	v.SetDefault("store.provider", "memory")
	v.SetDefault("store.max_conns", 8)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("snapshot.provider", "memory")
	v.SetDefault("notify.provider", "log")
	v.SetDefault("scheduler.daily_schedule", "0 2 * * *")
	v.SetDefault("scheduler.weekly_schedule", "0 3 * * 0")
	v.SetDefault("scheduler.trends_schedule", "0 * * * *")
	v.SetDefault("scheduler.cleanup_schedule", "0 1 * * *")
	v.SetDefault("scheduler.retention_days", 30)
	v.SetDefault("scheduler.trend_lookback_days", 7)
	v.SetDefault("scheduler.trend_keyword_max", 20)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Queue.Ceiling <= 0 {
		return fmt.Errorf("queue.ceiling must be > 0")
	}
	if c.Worker.Workers <= 0 {
		return fmt.Errorf("worker.workers must be > 0")
	}
	if c.Browser.MaxParallel <= 0 {
		return fmt.Errorf("browser.max_parallel must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Store.Provider {
	case "memory":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn must be set when store.provider is postgres")
		}
	default:
		return fmt.Errorf("store.provider must be memory or postgres")
	}
	switch c.Snapshot.Provider {
	case "memory":
	case "local":
		if c.Snapshot.BaseDir == "" {
			return fmt.Errorf("snapshot.base_dir must be set when snapshot.provider is local")
		}
	case "gcs":
		if c.Snapshot.Bucket == "" {
			return fmt.Errorf("snapshot.bucket must be set when snapshot.provider is gcs")
		}
	default:
		return fmt.Errorf("snapshot.provider must be memory, local, or gcs")
	}
	switch c.Notify.Provider {
	case "log":
	case "pubsub":
		if c.Notify.ProjectID == "" || c.Notify.Topic == "" {
			return fmt.Errorf("notify.project_id and notify.topic must be set when notify.provider is pubsub")
		}
	default:
		return fmt.Errorf("notify.provider must be log or pubsub")
	}
	return nil
}

// NavTimeout converts the browser navigation timeout into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Browser.NavTimeoutSec) * time.Second
}

// FetchTimeout converts the lightweight fetch timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// BaseBackoff converts the retry backoff base into a duration.
func (c Config) BaseBackoff() time.Duration {
	return time.Duration(c.Worker.BaseBackoffMs) * time.Millisecond
}

// QueueCleanAge converts the pending-queue sweep age into a duration.
func (c Config) QueueCleanAge() time.Duration {
	return time.Duration(c.Queue.CleanAgeHours) * time.Hour
}

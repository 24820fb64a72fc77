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
	Source    SourceConfig    `mapstructure:"source"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// SourceConfig identifies the source site and its listing categories.
type SourceConfig struct {
	BaseURL    string            `mapstructure:"base_url"`
	Categories map[string]string `mapstructure:"categories"`
}

// FetchConfig governs the plain fetch path and request pacing.
type FetchConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MinDelayMs     int `mapstructure:"min_delay_ms"`
	MaxDelayMs     int `mapstructure:"max_delay_ms"`
}

// HeadlessConfig configures the script-executing fetch path.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
}

// WorkerConfig controls the task consumers.
type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	QueueDepth  int `mapstructure:"queue_depth"`
}

// SchedulerConfig controls the automatic archival loop.
type SchedulerConfig struct {
	AutoStart       bool   `mapstructure:"auto_start"`
	IntervalMinutes int    `mapstructure:"interval_minutes"`
	BackoffSeconds  int    `mapstructure:"backoff_seconds"`
	Category        string `mapstructure:"category"`
	MaxStories      int    `mapstructure:"max_stories"`
	ListingPages    int    `mapstructure:"listing_pages"`
	FetchBodies     bool   `mapstructure:"fetch_bodies"`
}

// StorageConfig selects the archive tier backend. A bucket wins over a local
// directory; with neither set the tier is in-memory.
type StorageConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls access to the relational database. An empty DSN selects
// the in-memory stores.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
	MinConns int    `mapstructure:"min_conns"`
}

// PubSubConfig selects the Pub/Sub task queue. Empty project falls back to the
// in-memory queue.
type PubSubConfig struct {
	ProjectID      string `mapstructure:"project_id"`
	TopicID        string `mapstructure:"topic_id"`
	SubscriptionID string `mapstructure:"subscription_id"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STORYVAULT")
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
	v.SetDefault("source.base_url", "https://truyenfull.vision")
	v.SetDefault("source.categories", map[string]string{
		"hot":       "https://truyenfull.vision/danh-sach/truyen-hot/",
		"new":       "https://truyenfull.vision/danh-sach/truyen-moi/",
		"completed": "https://truyenfull.vision/danh-sach/truyen-full/",
	})
	v.SetDefault("fetch.timeout_seconds", 30)
	v.SetDefault("fetch.min_delay_ms", 1000)
	v.SetDefault("fetch.max_delay_ms", 3000)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.queue_depth", 64)
	v.SetDefault("scheduler.auto_start", false)
	v.SetDefault("scheduler.interval_minutes", 15)
	v.SetDefault("scheduler.backoff_seconds", 60)
	v.SetDefault("scheduler.category", "new")
	v.SetDefault("scheduler.max_stories", 10)
	v.SetDefault("scheduler.listing_pages", 1)
	v.SetDefault("scheduler.fetch_bodies", true)
	v.SetDefault("storage.prefix", "chapters")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Source.BaseURL == "" {
		return fmt.Errorf("source.base_url is required")
	}
	if len(c.Source.Categories) == 0 {
		return fmt.Errorf("source.categories must not be empty")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.MinDelayMs < 0 || c.Fetch.MaxDelayMs < c.Fetch.MinDelayMs {
		return fmt.Errorf("fetch delay range is invalid")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be > 0")
	}
	if _, ok := c.Source.Categories[c.Scheduler.Category]; !ok {
		return fmt.Errorf("scheduler.category %q is not a configured category", c.Scheduler.Category)
	}
	return nil
}

// FetchTimeout converts the configured fetch timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// DelayRange returns the configured stealth delay bounds.
func (c Config) DelayRange() (time.Duration, time.Duration) {
	return time.Duration(c.Fetch.MinDelayMs) * time.Millisecond,
		time.Duration(c.Fetch.MaxDelayMs) * time.Millisecond
}

// SchedulerInterval converts the configured loop interval into a duration.
func (c Config) SchedulerInterval() time.Duration {
	return time.Duration(c.Scheduler.IntervalMinutes) * time.Minute
}

// SchedulerBackoff converts the configured failure backoff into a duration.
func (c Config) SchedulerBackoff() time.Duration {
	return time.Duration(c.Scheduler.BackoffSeconds) * time.Second
}

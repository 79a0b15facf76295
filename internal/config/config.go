// Package config defines process configuration for the market-event
// processing core. Config is loaded from a YAML file (default:
// configs/config.yaml) with sensitive fields overridable via
// TICKSTOCK_* environment variables. Adapted from the teacher's
// internal/config/config.go: same viper + mapstructure + env-override
// shape, fields replaced with the queue/worker/filter/sync/cache/bus/
// catalog groups spec.md §6 names.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML
// file structure.
type Config struct {
	Queue     QueueConfig     `mapstructure:"queue"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Bus       BusConfig       `mapstructure:"bus"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// QueueConfig controls the bounded priority queue (§4.2, §6).
type QueueConfig struct {
	MaxQueueSize               int     `mapstructure:"max_queue_size"`
	QueueOverflowDropThreshold float64 `mapstructure:"queue_overflow_drop_threshold"`
	MaxEventAgeMs              int     `mapstructure:"max_event_age_ms"`
	EventBatchSize             int     `mapstructure:"event_batch_size"`
	CircuitBreakerFailMax      uint32  `mapstructure:"circuit_breaker_fail_max"`
	CircuitBreakerTimeoutSec   int     `mapstructure:"circuit_breaker_timeout_seconds"`
}

// WorkerConfig controls the worker pool (§4.3, §6).
type WorkerConfig struct {
	WorkerPoolSize             int     `mapstructure:"worker_pool_size"`
	MinWorkerPoolSize          int     `mapstructure:"min_worker_pool_size"`
	MaxWorkerPoolSize          int     `mapstructure:"max_worker_pool_size"`
	WorkerEventBatchSize       int     `mapstructure:"worker_event_batch_size"`
	WorkerCollectionTimeoutSec float64 `mapstructure:"worker_collection_timeout_seconds"`
	DisplayChannelCapacity     int     `mapstructure:"display_channel_capacity"`
}

// SyncConfig controls the universe synchronizer (§4.5, §6).
type SyncConfig struct {
	SyncTimeoutMinutes int    `mapstructure:"sync_timeout_minutes"`
	EODWaitTimeoutSec  int    `mapstructure:"eod_wait_timeout_seconds"`
	CronSchedule       string `mapstructure:"cron_schedule"`
}

// CacheConfig controls the priority cache / ranked-symbols snapshot
// (§4.2, §6).
type CacheConfig struct {
	PriorityCacheRefreshSeconds int      `mapstructure:"priority_cache_refresh_seconds"`
	TopSize                     int      `mapstructure:"top_size"`
	SecondarySize               int      `mapstructure:"secondary_size"`
	MarketOpenPromotions        []string `mapstructure:"market_open_promotions"`
}

// BusConfig controls the Redis pub/sub publisher (internal/bus).
type BusConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CatalogConfig controls the MongoDB-backed universe catalog
// (internal/catalog).
type CatalogConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// LoggingConfig controls log/slog output.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

// DashboardConfig controls the websocket display-channel server
// (internal/transport).
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Default returns the configuration with every default named in §6.
func Default() Config {
	return Config{
		Queue: QueueConfig{
			MaxQueueSize:               100000,
			QueueOverflowDropThreshold: 0.98,
			MaxEventAgeMs:              120000,
			EventBatchSize:             1000,
			CircuitBreakerFailMax:      5,
			CircuitBreakerTimeoutSec:   30,
		},
		Worker: WorkerConfig{
			WorkerPoolSize:             12,
			MinWorkerPoolSize:          8,
			MaxWorkerPoolSize:          16,
			WorkerEventBatchSize:       500,
			WorkerCollectionTimeoutSec: 0.5,
			DisplayChannelCapacity:     10000,
		},
		Sync: SyncConfig{
			SyncTimeoutMinutes: 30,
			EODWaitTimeoutSec:  3600,
		},
		Cache: CacheConfig{
			PriorityCacheRefreshSeconds: 300,
			TopSize:                     100,
			SecondarySize:               400,
			MarketOpenPromotions:        []string{"SPY", "QQQ", "IWM", "DIA"},
		},
		Catalog: CatalogConfig{Database: "tickstock"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads config from a YAML file over the §6 defaults, with env
// var overrides via TICKSTOCK_*.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("TICKSTOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if uri := os.Getenv("TICKSTOCK_CATALOG_URI"); uri != "" {
		cfg.Catalog.URI = uri
	}
	if addr := os.Getenv("TICKSTOCK_BUS_ADDR"); addr != "" {
		cfg.Bus.Addr = addr
	}
	if pass := os.Getenv("TICKSTOCK_BUS_PASSWORD"); pass != "" {
		cfg.Bus.Password = pass
	}

	return &cfg, nil
}

// Validate checks required fields and value ranges, following
// config.Config.Validate()'s shape in the teacher.
func (c *Config) Validate() error {
	if c.Queue.MaxQueueSize <= 0 {
		return fmt.Errorf("queue.max_queue_size must be > 0")
	}
	if c.Queue.QueueOverflowDropThreshold <= 0 || c.Queue.QueueOverflowDropThreshold > 1 {
		return fmt.Errorf("queue.queue_overflow_drop_threshold must be in (0, 1]")
	}
	if c.Queue.MaxEventAgeMs <= 0 {
		return fmt.Errorf("queue.max_event_age_ms must be > 0")
	}
	if c.Worker.MinWorkerPoolSize <= 0 {
		return fmt.Errorf("worker.min_worker_pool_size must be > 0")
	}
	if c.Worker.MaxWorkerPoolSize < c.Worker.MinWorkerPoolSize {
		return fmt.Errorf("worker.max_worker_pool_size must be >= worker.min_worker_pool_size")
	}
	if c.Sync.SyncTimeoutMinutes <= 0 {
		return fmt.Errorf("sync.sync_timeout_minutes must be > 0")
	}
	if c.Catalog.URI == "" {
		return fmt.Errorf("catalog.uri is required (set TICKSTOCK_CATALOG_URI)")
	}
	if c.Dashboard.Enabled && c.Dashboard.Port == 0 {
		return fmt.Errorf("dashboard.port is required when dashboard.enabled is true")
	}
	return nil
}

// SyncTimeout and EODWaitTimeout convert the sync group's
// minute/second int fields into time.Duration for internal/sync.Config.
func (s SyncConfig) SyncTimeout() time.Duration {
	return time.Duration(s.SyncTimeoutMinutes) * time.Minute
}

func (s SyncConfig) EODWaitTimeout() time.Duration {
	return time.Duration(s.EODWaitTimeoutSec) * time.Second
}

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort            = 8080
	DefaultDriver          = "sqlite"
	DefaultDSN             = "downtime.db"
	DefaultTimezone        = "Local"
	DefaultPageSize        = 25
	DefaultMaxPageSize     = 500
	DefaultRateLimitPerSec = 10
	DefaultRateLimitBurst  = 5
	DefaultCacheTTLSeconds = 300
	DefaultPushTTL         = 3600
	DefaultLogLevel        = "info"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Tracker    TrackerConfig    `yaml:"tracker"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Log        LogConfig        `yaml:"log"`
	Machines   []MachineConfig  `yaml:"machines"`
}

// WorkerPoolConfig holds the configuration for the alert worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push alerts. Alerts are disabled
// when either key is empty.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// CacheTTL returns the GET response cache lifetime.
func (s ServerConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLSeconds) * time.Second
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // sqlite | postgres
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogSQL                 bool   `yaml:"log_sql"`
}

// TrackerConfig controls how timestamps are rendered into detail rows and
// how listings are paginated.
type TrackerConfig struct {
	Timezone        string         `yaml:"timezone"`
	Location        *time.Location `yaml:"-"`
	DefaultPageSize int            `yaml:"default_page_size"`
	MaxPageSize     int            `yaml:"max_page_size"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	Level string `yaml:"level"`
}

// MachineConfig seeds the machine registry on startup.
type MachineConfig struct {
	Code      string `yaml:"code"`
	Operation string `yaml:"operation"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyDefaults fills unset values and resolves the tracker timezone.
func (c *Config) ApplyDefaults() error {
	if c.Server.Port <= 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.RateLimitPerSec <= 0 {
		c.Server.RateLimitPerSec = DefaultRateLimitPerSec
	}
	if c.Server.RateLimitBurst <= 0 {
		c.Server.RateLimitBurst = DefaultRateLimitBurst
	}
	if c.Server.CacheTTLSeconds <= 0 {
		c.Server.CacheTTLSeconds = DefaultCacheTTLSeconds
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDriver
	}
	if c.Database.DSN == "" && c.Database.Driver == DefaultDriver {
		c.Database.DSN = DefaultDSN
	}

	if c.Tracker.Timezone == "" {
		c.Tracker.Timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(c.Tracker.Timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone %q: %w", c.Tracker.Timezone, err)
	}
	c.Tracker.Location = loc

	if c.Tracker.DefaultPageSize <= 0 {
		c.Tracker.DefaultPageSize = DefaultPageSize
	}
	if c.Tracker.MaxPageSize <= 0 {
		c.Tracker.MaxPageSize = DefaultMaxPageSize
	}

	if c.Push.TTL <= 0 {
		c.Push.TTL = DefaultPushTTL
	}

	if c.WorkerPool.Size <= 0 {
		c.WorkerPool.Size = 1
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}

	return nil
}

// Package main provides the SyncWatch server CLI.
package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
type Config struct {
	API         APIConfig         `yaml:"api"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Database    DatabaseConfig    `yaml:"database"`
	ClickHouse  ClickHouseConfig  `yaml:"clickhouse"`
	Platform    PlatformConfig    `yaml:"platform"`
	Checker     CheckerConfig     `yaml:"checker"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Alerting    AlertingConfig    `yaml:"alerting"`
	Remediation RemediationConfig `yaml:"remediation"`
	Notifier    NotifierConfig    `yaml:"notifier"`
	Benchmark   BenchmarkConfig   `yaml:"benchmark"`
	Verbose     bool              `yaml:"-"` // set via CLI flag
}

// APIConfig contains HTTP API settings.
type APIConfig struct {
	Address        string    `yaml:"address"`           // HTTP listen address (default: :8080)
	RateLimitPerIP int       `yaml:"rate_limit_per_ip"` // write requests per IP per minute
	TLS            TLSConfig `yaml:"tls"`
}

// TLSConfig contains TLS settings for the API server.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// MetricsConfig contains Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // default :9090
}

// DatabaseConfig contains SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"` // default ./data/syncwatch.db
}

// ClickHouseConfig contains the optional metric backend settings. When
// disabled, score snapshots are kept in SQLite.
type ClickHouseConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Addresses []string `yaml:"addresses"`
	Database  string   `yaml:"database"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
}

// PlatformConfig locates the sync platform's internal API.
type PlatformConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	// Token is read from SYNCWATCH_PLATFORM_TOKEN, not from the file.
}

// CheckerConfig tunes accuracy scans.
type CheckerConfig struct {
	SampleSize            int     `yaml:"sample_size"`
	Parallelism           int     `yaml:"parallelism"`
	TxnReconcileTolerance float64 `yaml:"txn_reconcile_tolerance"`
}

// SchedulerConfig lists organizations scanned on a recurring basis.
type SchedulerConfig struct {
	Organizations []string `yaml:"organizations"`
	Scope         string   `yaml:"scope"`
	Sensitivity   float64  `yaml:"sensitivity"`
}

// AlertingConfig contains alert manager settings.
type AlertingConfig struct {
	RulesFile     string        `yaml:"rules_file"`     // optional bootstrap rules, hot-reloaded
	SnoozeSweep   time.Duration `yaml:"snooze_sweep"`   // snooze expiry cadence (default 1m)
	DeliverySweep time.Duration `yaml:"delivery_sweep"` // notification delivery cadence (default 15s)
}

// RemediationConfig tunes the auto-remediation engine.
type RemediationConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Throttle         time.Duration `yaml:"throttle"`
	SyncPollTimeout  time.Duration `yaml:"sync_poll_timeout"`
	MaxChangesPerRun int           `yaml:"max_changes_per_run"`
}

// BenchmarkConfig is an optional industry baseline for score percentile
// comparisons. Unset (zero mean) disables the comparison.
type BenchmarkConfig struct {
	Mean   float64 `yaml:"mean"`
	StdDev float64 `yaml:"std_dev"`
}

// NotifierConfig configures delivery channels. A channel with an empty
// config is not registered.
type NotifierConfig struct {
	MaxPerMinute int                  `yaml:"max_per_minute"` // per-channel rate limit (default 10)
	Slack        SlackChannelConfig   `yaml:"slack"`
	Email        EmailChannelConfig   `yaml:"email"`
	Webhook      WebhookChannelConfig `yaml:"webhook"`
}

// SlackChannelConfig configures the Slack channel.
type SlackChannelConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

// EmailChannelConfig configures the SMTP channel.
type EmailChannelConfig struct {
	Host       string   `yaml:"host"`
	Port       int      `yaml:"port"`
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password"`
	From       string   `yaml:"from"`
	Recipients []string `yaml:"recipients"`
}

// WebhookChannelConfig configures the generic webhook channel.
type WebhookChannelConfig struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.API.Address == "" {
		c.API.Address = ":8080"
	}
	if c.Metrics.Address == "" {
		c.Metrics.Address = ":9090"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/syncwatch.db"
	}
	if c.Platform.BaseURL == "" {
		c.Platform.BaseURL = "http://localhost:9000"
	}
	if c.Alerting.SnoozeSweep == 0 {
		c.Alerting.SnoozeSweep = time.Minute
	}
	if c.Alerting.DeliverySweep == 0 {
		c.Alerting.DeliverySweep = 15 * time.Second
	}
	if c.Notifier.MaxPerMinute == 0 {
		c.Notifier.MaxPerMinute = 10
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.API.TLS.Enabled {
		if c.API.TLS.CertFile == "" {
			return fmt.Errorf("api.tls.cert_file is required when TLS is enabled")
		}
		if c.API.TLS.KeyFile == "" {
			return fmt.Errorf("api.tls.key_file is required when TLS is enabled")
		}
	}
	if c.ClickHouse.Enabled {
		if len(c.ClickHouse.Addresses) == 0 {
			return fmt.Errorf("clickhouse.addresses is required when ClickHouse is enabled")
		}
		if c.ClickHouse.Database == "" {
			return fmt.Errorf("clickhouse.database is required when ClickHouse is enabled")
		}
	}
	if c.Scheduler.Scope != "" {
		switch c.Scheduler.Scope {
		case "full", "products", "inventory", "pricing":
		default:
			return fmt.Errorf("scheduler.scope %q is not a valid scope", c.Scheduler.Scope)
		}
	}
	return nil
}

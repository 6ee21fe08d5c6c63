// Package config loads and validates the application's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kaister3/silk/logging"
)

const (
	// Default pool settings
	defaultPoolWorkers = 4

	// Default monitoring settings
	defaultMetricsPrefix = "silk"
	defaultJobName       = "silk"
	defaultPushTimeout   = 30 * time.Second

	// Default history settings
	defaultHistoryMaxRuns = 100
)

// Config represents the complete application configuration.
type Config struct {
	Pool       PoolConfig       `yaml:"pool"`
	Logging    logging.Config   `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	History    HistoryConfig    `yaml:"history"`

	// Triggers schedules workflow runs, in the form
	// "workflow[,workflow...]:cronspec[;...]". Empty disables scheduling.
	Triggers string `yaml:"triggers"`
}

// PoolConfig sizes the shared worker pool.
type PoolConfig struct {
	// Workers is the number of concurrent workers. Zero selects the default.
	Workers int `yaml:"workers"`
}

// MonitoringConfig holds metrics delivery settings. ListenAddress selects
// scrape delivery, RemoteWriteURL push delivery; setting neither disables
// metrics.
type MonitoringConfig struct {
	// ListenAddress is the address the scrape endpoint listens on,
	// for example ":9090".
	ListenAddress string `yaml:"listen_address"`

	// RemoteWriteURL is a Prometheus remote-write endpoint metrics are
	// pushed to.
	RemoteWriteURL string `yaml:"remote_write_url"`

	// MetricsPrefix namespaces every metric name.
	MetricsPrefix string `yaml:"metrics_prefix"`

	// JobName is the job label attached to pushed metrics.
	JobName string `yaml:"jobname"`

	// Instance is the instance label attached to pushed metrics. Defaults
	// to the hostname.
	Instance string `yaml:"instance"`

	// PushTimeout bounds each remote-write request.
	PushTimeout time.Duration `yaml:"push_timeout"`
}

// HistoryConfig bounds the run history.
type HistoryConfig struct {
	// MaxRuns is the number of completed runs kept in memory.
	MaxRuns int `yaml:"max_runs"`
}

// Validate performs basic validation on the configuration.
func (c *Config) Validate() error {
	if c.Pool.Workers < 0 {
		return fmt.Errorf("pool workers cannot be negative")
	}
	if c.History.MaxRuns < 0 {
		return fmt.Errorf("history max_runs cannot be negative")
	}
	if c.Monitoring.ListenAddress != "" && c.Monitoring.RemoteWriteURL != "" {
		return fmt.Errorf("monitoring listen_address and remote_write_url are mutually exclusive")
	}
	if c.Monitoring.PushTimeout < 0 {
		return fmt.Errorf("monitoring push timeout cannot be negative")
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

// SetDefaults sets reasonable default values for optional fields.
func (c *Config) SetDefaults() {
	if c.Pool.Workers == 0 {
		c.Pool.Workers = defaultPoolWorkers
	}
	if c.Monitoring.MetricsPrefix == "" {
		c.Monitoring.MetricsPrefix = defaultMetricsPrefix
	}
	if c.Monitoring.JobName == "" {
		c.Monitoring.JobName = defaultJobName
	}
	if c.Monitoring.Instance == "" {
		if hostname, err := os.Hostname(); err == nil {
			c.Monitoring.Instance = hostname
		}
	}
	if c.Monitoring.PushTimeout == 0 {
		c.Monitoring.PushTimeout = defaultPushTimeout
	}
	if c.History.MaxRuns == 0 {
		c.History.MaxRuns = defaultHistoryMaxRuns
	}
	c.Logging.SetDefaults()
}

// LoadConfig reads the YAML config file at the given path, applies defaults,
// and validates the result.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Commit modes for [IngestConfig.CommitMode].
const (
	CommitPerRecord = "per_record"
	CommitBatch     = "batch"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Upstream UpstreamConfig `toml:"upstream"`
	Ingest   IngestConfig   `toml:"ingest"`
	Schedule ScheduleConfig `toml:"schedule"`
	Log      LogConfig      `toml:"log"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
//
// WebhookToken, when set, must be sent by the upstream in the X-Webhook-Token header.
// APIToken must be sent in the X-API-Token header to trigger report fetches; while it
// is empty the report route is closed.
type ServerConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	WebhookToken string `toml:"webhook_token"`
	APIToken     string `toml:"api_token"`
	RateLimit    int    `toml:"rate_limit"`
	RateWindow   string `toml:"rate_window"`
}

// UpstreamConfig contains the Callyzer client settings and the default report filters.
type UpstreamConfig struct {
	Timeout           string   `toml:"timeout"`
	Timezone          string   `toml:"timezone"`
	PageSize          int      `toml:"page_size"`
	CallTypes         []string `toml:"call_types"`
	EmpTags           []string `toml:"emp_tags"`
	EmpNumbers        []string `toml:"emp_numbers"`
	ExcludeNumbers    bool     `toml:"exclude_numbers"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Burst             int      `toml:"burst"`
	BreakerFailures   uint32   `toml:"breaker_failures"`
	BreakerTimeout    string   `toml:"breaker_timeout"`
}

// IngestConfig controls how a batch is committed.
type IngestConfig struct {
	CommitMode string `toml:"commit_mode"`
}

// ScheduleConfig drives the periodic fetch run by `callsync serve`. An empty interval disables it.
type ScheduleConfig struct {
	Interval string `toml:"interval"`
	Lookback string `toml:"lookback"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Location loads the configured timezone, defaulting to Asia/Kolkata.
func (u UpstreamConfig) Location() (*time.Location, error) {
	name := u.Timezone
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, name, err)
	}
	return loc, nil
}

// Validate checks values that cannot be parsed lazily.
func (c *Config) Validate() error {
	switch c.Ingest.CommitMode {
	case "", CommitPerRecord, CommitBatch:
	default:
		return fmt.Errorf("%w: ingest.commit_mode must be %q or %q", ErrInvalidConfig, CommitPerRecord, CommitBatch)
	}

	for key, val := range map[string]string{
		"server.rate_window":       c.Server.RateWindow,
		"upstream.timeout":         c.Upstream.Timeout,
		"upstream.breaker_timeout": c.Upstream.BreakerTimeout,
		"schedule.interval":        c.Schedule.Interval,
		"schedule.lookback":        c.Schedule.Lookback,
	} {
		if val == "" {
			continue
		}
		if _, err := time.ParseDuration(val); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
		}
	}

	if _, err := c.Upstream.Location(); err != nil {
		return err
	}
	return nil
}

// ParseDurationOr parses s, returning fallback when s is empty or malformed.
func ParseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values absent from the file keep the defaults from [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

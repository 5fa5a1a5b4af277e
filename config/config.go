// Package config loads engine configuration from YAML with sensible
// defaults and environment overrides, for binaries embedding the engine.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates the tunables of an embedding process.
type Config struct {
	Agency AgencyConfig `yaml:"agency"`
	Store  StoreConfig  `yaml:"store"`
	NATS   NATSConfig   `yaml:"nats"`
}

// AgencyConfig tunes the orchestrator.
type AgencyConfig struct {
	// MaxConcurrentSeats bounds how many seats run at once.
	MaxConcurrentSeats int `yaml:"max_concurrent_seats"`
	// MaxRetries is the per-seat retry budget (attempts = retries + 1).
	MaxRetries int `yaml:"max_retries"`
	// RetryDelay is the fixed delay between attempts of one seat.
	RetryDelay time.Duration `yaml:"retry_delay"`
	// OutputFormat is the default consolidation format.
	OutputFormat string `yaml:"output_format"`
}

// StoreConfig locates the SQLite persistence gateway.
type StoreConfig struct {
	// Path of the database file; empty disables durable persistence.
	Path string `yaml:"path"`
}

// NATSConfig locates the progress sink broker.
type NATSConfig struct {
	// URL of the NATS server; empty disables the NATS sink.
	URL string `yaml:"url"`
	// SubjectPrefix for progress subjects.
	SubjectPrefix string `yaml:"subject_prefix"`
}

func defaults() Config {
	return Config{
		Agency: AgencyConfig{
			MaxConcurrentSeats: 4,
			MaxRetries:         2,
			RetryDelay:         time.Second,
			OutputFormat:       "markdown",
		},
		Store: StoreConfig{
			Path: "data/agency.db",
		},
		NATS: NATSConfig{
			SubjectPrefix: "agency.progress",
		},
	}
}

// Load reads the YAML file at path on top of the defaults, then applies
// environment overrides. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AGENCYKIT_MAX_CONCURRENT_SEATS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Agency.MaxConcurrentSeats = n
		}
	}
	if v := os.Getenv("AGENCYKIT_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Agency.MaxRetries = n
		}
	}
	if v := os.Getenv("AGENCYKIT_RETRY_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Agency.RetryDelay = d
		}
	}
	if v := os.Getenv("AGENCYKIT_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("AGENCYKIT_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
}

func (c Config) validate() error {
	if c.Agency.MaxConcurrentSeats < 1 {
		return fmt.Errorf("agency.max_concurrent_seats must be at least 1, got %d", c.Agency.MaxConcurrentSeats)
	}
	if c.Agency.MaxRetries < 0 {
		return fmt.Errorf("agency.max_retries must not be negative, got %d", c.Agency.MaxRetries)
	}
	if c.Agency.RetryDelay < 0 {
		return fmt.Errorf("agency.retry_delay must not be negative, got %s", c.Agency.RetryDelay)
	}
	switch c.Agency.OutputFormat {
	case "markdown", "json", "csv", "text":
	default:
		return fmt.Errorf("agency.output_format %q is not supported", c.Agency.OutputFormat)
	}
	return nil
}

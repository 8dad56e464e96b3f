package service

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/distributoor/internal/export"
	"github.com/ethpandaops/distributoor/internal/sink"
)

// Config holds the complete service configuration.
type Config struct {
	// LogLevel sets the logging verbosity. Defaults to "info".
	LogLevel string `yaml:"logLevel"`

	// Addr is the listen address for the ingest API.
	// Defaults to ":8080".
	Addr string `yaml:"addr"`

	// MetaClientName labels exported records with the submitting client.
	MetaClientName string `yaml:"metaClientName"`

	// MetaNetworkName labels exported records with a network name.
	MetaNetworkName string `yaml:"metaNetworkName"`

	// Health configures the Prometheus metrics server.
	Health export.HealthConfig `yaml:"health"`

	// Sinks configures snapshot record delivery.
	Sinks sink.Config `yaml:"sinks"`
}

// DefaultConfig returns a config with sane defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Addr:     ":8080",
		Health: export.HealthConfig{
			Addr: ":9090",
		},
	}
}

// LoadConfig loads the config from a YAML file, applying defaults for
// any unset fields.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ApplyDefaults fills in any unset fields.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	if c.Addr == "" {
		c.Addr = ":8080"
	}

	if c.Health.Addr == "" {
		c.Health.Addr = ":9090"
	}

	if c.Sinks.ClickHouse.Enabled {
		c.Sinks.ClickHouse.ApplyDefaults()
	}

	if c.Sinks.HTTP.Enabled {
		c.Sinks.HTTP.ApplyDefaults()
	}
}

// Validate checks the config for errors.
func (c *Config) Validate() error {
	if c.Sinks.ClickHouse.Enabled {
		if c.Sinks.ClickHouse.Endpoint == "" {
			return fmt.Errorf("clickhouse sink enabled but endpoint is empty")
		}

		if c.Sinks.ClickHouse.Database == "" {
			return fmt.Errorf("clickhouse sink enabled but database is empty")
		}
	}

	if c.Sinks.HTTP.Enabled {
		if err := c.Sinks.HTTP.Validate(); err != nil {
			return fmt.Errorf("http sink: %w", err)
		}
	}

	return nil
}

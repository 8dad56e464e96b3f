package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, ":9090", cfg.Health.Addr)
	assert.False(t, cfg.Sinks.ClickHouse.Enabled)
	assert.False(t, cfg.Sinks.HTTP.Enabled)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
logLevel: debug
addr: ":7070"
metaClientName: bench-01
metaNetworkName: mainnet
health:
  addr: ":7071"
sinks:
  clickhouse:
    enabled: true
    endpoint: localhost:9000
    database: telemetry
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":7070", cfg.Addr)
	assert.Equal(t, "bench-01", cfg.MetaClientName)
	assert.Equal(t, "mainnet", cfg.MetaNetworkName)
	assert.Equal(t, ":7071", cfg.Health.Addr)
	assert.True(t, cfg.Sinks.ClickHouse.Enabled)
	assert.Equal(t, "localhost:9000", cfg.Sinks.ClickHouse.Endpoint)

	// Defaults still apply inside the clickhouse block.
	assert.Equal(t, "distribution_snapshots", cfg.Sinks.ClickHouse.Table)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := writeConfig(t, "addr: [:::")

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidateClickHouseRequiresEndpoint(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sinks.ClickHouse.Enabled = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint")
}

func TestValidateHTTPRequiresAddress(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sinks.HTTP.Enabled = true
	cfg.ApplyDefaults()

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address")
}

func TestApplyDefaultsHTTPSink(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sinks.HTTP.Enabled = true
	cfg.Sinks.HTTP.Address = "http://localhost:9999"
	cfg.ApplyDefaults()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 512, cfg.Sinks.HTTP.BatchSize)
}

package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, `
addr: ":9090"
metrics_addr: ":9091"
allowed_origin: "http://localhost:3000"
max_concurrent_debates: 4
results_dir: "/tmp/results"
session_ttl: 30m
provider:
  id: "openai"
  model: "gpt-4o"
  base_url: "https://api.openai.com/v1"
  temperature: 0.5
  max_tokens: 600
  timeout: 90s
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, ":9091", cfg.MetricsAddr)
	assert.Equal(t, "http://localhost:3000", cfg.AllowedOrigin)
	assert.Equal(t, 4, cfg.MaxConcurrentDebates)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "gpt-4o", cfg.Provider.Model)
	assert.Equal(t, 90*time.Second, cfg.Provider.Timeout)
}

func TestLoadConfigKeepsDefaultsForUnsetFields(t *testing.T) {
	path := writeConfigFile(t, `addr: ":9090"`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	defaults := DefaultConfig()
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, defaults.SessionTTL, cfg.SessionTTL)
	assert.Equal(t, defaults.Provider.Model, cfg.Provider.Model)
	assert.Equal(t, defaults.MaxConcurrentDebates, cfg.MaxConcurrentDebates)
}

func TestLoadConfigRejectsUnknownFields(t *testing.T) {
	path := writeConfigFile(t, `adress: ":9090"`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

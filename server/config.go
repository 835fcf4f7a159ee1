package server

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the YAML-file configuration for the debate service.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `yaml:"addr"`

	// MetricsAddr is the Prometheus exporter address. Empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`

	// AllowedOrigin enables CORS for one origin. Empty disables CORS.
	AllowedOrigin string `yaml:"allowed_origin"`

	// MaxConcurrentDebates bounds simultaneously streaming debates.
	MaxConcurrentDebates int `yaml:"max_concurrent_debates"`

	// ResultsDir is where debate results are persisted.
	ResultsDir string `yaml:"results_dir"`

	// SessionTTL is how long an unstreamed session stays registered.
	SessionTTL time.Duration `yaml:"session_ttl"`

	// RedisAddr switches the session registry to Redis when set.
	RedisAddr string `yaml:"redis_addr"`

	Provider ProviderConfig `yaml:"provider"`
}

// ProviderConfig selects and tunes the LLM backend.
type ProviderConfig struct {
	ID          string        `yaml:"id"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Addr:                 ":8000",
		MaxConcurrentDebates: defaultMaxConcurrentDebates,
		ResultsDir:           "debate_results",
		SessionTTL:           time.Hour,
		Provider: ProviderConfig{
			ID:          "openai",
			Model:       "gpt-4o-mini",
			BaseURL:     "https://api.openai.com/v1",
			Temperature: 0.7,
			MaxTokens:   800,
		},
	}
}

// LoadConfig reads a YAML config file over the defaults. Unset fields keep
// their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	// KnownFields surfaces typos instead of silently ignoring them.
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

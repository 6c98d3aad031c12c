// Package config defines the dispatch application configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration. A Config value also serves as the
// opaque environment handle forwarded to skills.
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Provider ProviderConfig `json:"provider" yaml:"provider"`
	Timeouts TimeoutsConfig `json:"timeouts" yaml:"timeouts"`
	Cache    CacheConfig    `json:"cache" yaml:"cache"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	LogLevel string         `json:"log_level" yaml:"log_level"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"` // listen address, e.g., ":8787"
}

// ProviderConfig selects and configures the generation backend.
type ProviderConfig struct {
	Name      string `json:"name" yaml:"name"` // "openai" or "mock"
	BaseURL   string `json:"base_url,omitempty" yaml:"base_url"`
	Model     string `json:"model,omitempty" yaml:"model"`
	APIKeyEnv string `json:"api_key_env,omitempty" yaml:"api_key_env"` // env var holding the key
}

// APIKey resolves the provider credential from the configured environment
// variable. The key itself never appears in config files.
func (p ProviderConfig) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

// TimeoutsConfig bounds outbound calls, in seconds.
type TimeoutsConfig struct {
	GenerationSec int `json:"generation_sec" yaml:"generation_sec"`
	ToolSec       int `json:"tool_sec" yaml:"tool_sec"`
}

// CacheConfig sizes the tool result cache.
type CacheConfig struct {
	Capacity     int `json:"capacity" yaml:"capacity"`
	ResultTTLSec int `json:"result_ttl_sec" yaml:"result_ttl_sec"`
}

// JournalConfig locates the task journal database.
type JournalConfig struct {
	// DSN for the journal; the default keeps it in memory so no task
	// record outlives the process.
	DSN string `json:"dsn" yaml:"dsn"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":8787"},
		Provider: ProviderConfig{Name: "openai", Model: "gpt-4o-mini", APIKeyEnv: "OPENAI_API_KEY"},
		Timeouts: TimeoutsConfig{GenerationSec: 60, ToolSec: 10},
		Cache:    CacheConfig{Capacity: 256, ResultTTLSec: 300},
		Journal:  JournalConfig{DSN: "file:dispatch?mode=memory&cache=shared"},
		LogLevel: "info",
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// GenerationTimeout returns the deadline for one upstream generation call.
func (c *Config) GenerationTimeout() time.Duration {
	if c == nil || c.Timeouts.GenerationSec <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Timeouts.GenerationSec) * time.Second
}

// ToolTimeout returns the deadline for one tool invocation.
func (c *Config) ToolTimeout() time.Duration {
	if c == nil || c.Timeouts.ToolSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Timeouts.ToolSec) * time.Second
}

// ResultTTL returns how long tool results stay cached.
func (c *Config) ResultTTL() time.Duration {
	if c == nil || c.Cache.ResultTTLSec <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Cache.ResultTTLSec) * time.Second
}

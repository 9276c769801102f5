// Package config provides configuration loading and management for Agentflow.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete Agentflow configuration
type Config struct {
	Model    ModelConfig    `yaml:"model"`
	NATS     NATSConfig     `yaml:"nats"`
	HTTP     HTTPConfig     `yaml:"http"`
	Research ResearchConfig `yaml:"research"`
	Janitor  JanitorConfig  `yaml:"janitor"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ModelConfig configures the LLM used for planning and task execution
type ModelConfig struct {
	// Provider selects the LLM provider adapter ("ollama", "openai", "anthropic")
	Provider string `yaml:"provider"`
	// Name is the model identifier (e.g., "qwen2.5:14b")
	Name string `yaml:"name"`
	// Endpoint overrides the provider's default API endpoint
	Endpoint string `yaml:"endpoint"`
	// Temperature sets sampling randomness, 0.0 through 1.0
	Temperature float64 `yaml:"temperature"`
	// MaxTokens caps completion length (0 = provider default)
	MaxTokens int `yaml:"max_tokens"`
	// Timeout bounds one completion call end to end
	Timeout time.Duration `yaml:"timeout"`
}

// NATSConfig locates the NATS server backing state and events
type NATSConfig struct {
	// URL is the NATS server URL
	URL string `yaml:"url"`
}

// HTTPConfig configures the API server
type HTTPConfig struct {
	// Addr is the listen address (e.g., ":8080")
	Addr string `yaml:"addr"`
	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ResearchConfig configures reference fetching for research tasks
type ResearchConfig struct {
	// FetchPages enables fetching URLs mentioned in task descriptions
	FetchPages bool `yaml:"fetch_pages"`
	// FetchTimeout bounds a single page fetch
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	// MaxPageBytes caps the size of a fetched page (0 = built-in default)
	MaxPageBytes int64 `yaml:"max_page_bytes"`
	// UserAgent overrides the User-Agent header on fetches
	UserAgent string `yaml:"user_agent"`
}

// JanitorConfig configures expired-thread cleanup
type JanitorConfig struct {
	// Disabled turns the janitor off. Expressed as an opt-out so a
	// sparse config layer can switch it off through Merge.
	Disabled bool `yaml:"disabled"`
	// CheckInterval is how often to sweep for expired threads
	CheckInterval time.Duration `yaml:"check_interval"`
	// MaxAge is how long an idle thread survives before removal
	MaxAge time.Duration `yaml:"max_age"`
}

// LoggingConfig configures log output
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error"
	Level string `yaml:"level"`
	// Format is "text" or "json"
	Format string `yaml:"format"`
}

// SlogLevel maps the configured level name onto a slog level.
// Unknown names fall back to info.
func (c LoggingConfig) SlogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DefaultConfig is the base layer; every other config source overrides it.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Provider:    "ollama",
			Name:        "qwen2.5:14b",
			Endpoint:    "", // Provider default
			Temperature: 0.2,
			Timeout:     5 * time.Minute,
		},
		NATS: NATSConfig{
			URL: "nats://localhost:4222",
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Research: ResearchConfig{
			FetchPages:   false,
			FetchTimeout: 30 * time.Second,
		},
		Janitor: JanitorConfig{
			CheckInterval: time.Hour,
			MaxAge:        24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.Model.Provider == "" {
		return fmt.Errorf("model.provider is required")
	}
	if c.Model.Name == "" {
		return fmt.Errorf("model.name is required")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 1 {
		return fmt.Errorf("model.temperature must be between 0 and 1")
	}
	if c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required")
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	if !c.Janitor.Disabled {
		if c.Janitor.CheckInterval <= 0 {
			return fmt.Errorf("janitor.check_interval must be positive")
		}
		if c.Janitor.MaxAge <= 0 {
			return fmt.Errorf("janitor.max_age must be positive")
		}
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json")
	}
	return nil
}

// LoadFromFile reads one YAML file over the defaults. Use this when an
// explicit --config path should stand alone instead of layering.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return config, nil
}

// SaveToFile writes the configuration as YAML, creating parent
// directories as needed.
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Merge lays other over c. Zero values in other leave c untouched, so
// a sparse YAML layer only overrides what it mentions.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Model
	if other.Model.Provider != "" {
		c.Model.Provider = other.Model.Provider
	}
	if other.Model.Name != "" {
		c.Model.Name = other.Model.Name
	}
	if other.Model.Endpoint != "" {
		c.Model.Endpoint = other.Model.Endpoint
	}
	if other.Model.Temperature != 0 {
		c.Model.Temperature = other.Model.Temperature
	}
	if other.Model.MaxTokens != 0 {
		c.Model.MaxTokens = other.Model.MaxTokens
	}
	if other.Model.Timeout != 0 {
		c.Model.Timeout = other.Model.Timeout
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}

	// HTTP
	if other.HTTP.Addr != "" {
		c.HTTP.Addr = other.HTTP.Addr
	}
	if other.HTTP.ShutdownTimeout != 0 {
		c.HTTP.ShutdownTimeout = other.HTTP.ShutdownTimeout
	}

	// Research
	if other.Research.FetchPages {
		c.Research.FetchPages = true
	}
	if other.Research.FetchTimeout != 0 {
		c.Research.FetchTimeout = other.Research.FetchTimeout
	}
	if other.Research.MaxPageBytes != 0 {
		c.Research.MaxPageBytes = other.Research.MaxPageBytes
	}
	if other.Research.UserAgent != "" {
		c.Research.UserAgent = other.Research.UserAgent
	}

	// Janitor
	if other.Janitor.Disabled {
		c.Janitor.Disabled = true
	}
	if other.Janitor.CheckInterval != 0 {
		c.Janitor.CheckInterval = other.Janitor.CheckInterval
	}
	if other.Janitor.MaxAge != 0 {
		c.Janitor.MaxAge = other.Janitor.MaxAge
	}

	// Logging
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.Format != "" {
		c.Logging.Format = other.Logging.Format
	}
}

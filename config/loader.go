package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// ProjectConfigFile is looked up in the working directory and its
	// parents, so a checkout can pin its own settings.
	ProjectConfigFile = "agentflow.yaml"

	// UserConfigDir under the home directory holds UserConfigFile.
	UserConfigDir  = ".config/agentflow"
	UserConfigFile = "config.yaml"
)

// Loader assembles the effective configuration from its layers.
type Loader struct {
	logger *slog.Logger
}

// NewLoader returns a Loader. A nil logger falls back to slog.Default.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load builds the configuration, each layer overriding the one below:
// defaults, then the user config (~/.config/agentflow/config.yaml),
// then the project config (agentflow.yaml found upward from the
// working directory), then environment variables (NATS_URL and
// AGENTFLOW_*). The merged result is validated before it is returned.
func (l *Loader) Load() (*Config, error) {
	config := DefaultConfig()

	if path := l.userConfigPath(); path != "" {
		l.mergeFile(config, path, "user")
	}
	if path := l.findProjectConfig(); path != "" {
		l.mergeFile(config, path, "project")
	} else {
		l.logger.Debug("No project config found")
	}
	l.applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// mergeFile lays the named config file over config. A missing file is
// normal; anything else unreadable or unparsable is logged and skipped
// so one broken layer cannot take the service down.
func (l *Loader) mergeFile(config *Config, path, layer string) {
	loaded, err := loadLayer(path)
	switch {
	case err == nil:
		l.logger.Debug("Loaded config layer", slog.String("layer", layer), slog.String("path", path))
		config.Merge(loaded)
	case errors.Is(err, os.ErrNotExist):
	default:
		l.logger.Warn("Skipping unreadable config layer",
			slog.String("layer", layer),
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}

// EnsureUserConfig writes a default user config file unless one
// already exists. The init subcommand calls this so a fresh install
// has something to edit.
func (l *Loader) EnsureUserConfig() error {
	path := l.userConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine user home directory")
	}

	if _, err := os.Stat(path); err == nil {
		l.logger.Debug("User config already exists", slog.String("path", path))
		return nil
	}

	if err := DefaultConfig().SaveToFile(path); err != nil {
		return err
	}
	l.logger.Info("Created default user config", slog.String("path", path))
	return nil
}

// loadLayer reads one config file into a zero-value Config, so merging
// it only overrides the fields the file actually sets. LoadFromFile is
// the one for direct loads: it lays the file over the defaults.
func loadLayer(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return config, nil
}

// applyEnv applies environment variable overrides, the highest layer.
func (l *Loader) applyEnv(config *Config) {
	set := func(field *string, env string) {
		if value := os.Getenv(env); value != "" {
			*field = value
			l.logger.Debug("Applied environment override", slog.String("var", env))
		}
	}
	set(&config.NATS.URL, "NATS_URL")
	set(&config.Model.Provider, "AGENTFLOW_MODEL_PROVIDER")
	set(&config.Model.Name, "AGENTFLOW_MODEL")
	set(&config.Model.Endpoint, "AGENTFLOW_MODEL_ENDPOINT")
	set(&config.HTTP.Addr, "AGENTFLOW_HTTP_ADDR")
	set(&config.Logging.Level, "AGENTFLOW_LOG_LEVEL")
}

// userConfigPath returns "" when the home directory is unknown.
func (l *Loader) userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findProjectConfig walks from the working directory toward the
// filesystem root and returns the first agentflow.yaml it sees.
func (l *Loader) findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		candidate := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

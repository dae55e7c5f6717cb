package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Settings represents the optional settings file
type Settings struct {
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Service ServiceConfig `yaml:"service" json:"service"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
}

// ServiceConfig contains tunables of the supervised master server
type ServiceConfig struct {
	StaleAfter    string `yaml:"stale_after" json:"stale_after"`
	PruneSchedule string `yaml:"prune_schedule" json:"prune_schedule"`
	ReadTimeout   string `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout  string `yaml:"write_timeout" json:"write_timeout"`
}

const defaultSettingsPath = "./configs/masterserver.yaml"

// DefaultSettings returns the settings used when no file is present
func DefaultSettings() *Settings {
	return &Settings{
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			File:       "",
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
		},
		Service: ServiceConfig{
			StaleAfter:    "2m",
			PruneSchedule: "@every 30s",
			ReadTimeout:   "15s",
			WriteTimeout:  "15s",
		},
	}
}

// LoadSettings loads the settings file and applies environment overrides.
// An empty path falls back to CONFIG_PATH and then to ./configs/masterserver.yaml.
// A missing file is not an error.
func LoadSettings(path string) (*Settings, error) {
	cfg := DefaultSettings()

	explicit := path != ""
	if path == "" {
		path = GetSettingsPath()
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read settings file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse settings file: %w", err)
		}
	} else if explicit {
		return nil, fmt.Errorf("settings file not found: %s", path)
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if logFile := os.Getenv("LOG_FILE"); logFile != "" {
		cfg.Logging.File = logFile
	}

	if cfg.Logging.File != "" && !filepath.IsAbs(cfg.Logging.File) {
		if abs, err := filepath.Abs(cfg.Logging.File); err == nil {
			cfg.Logging.File = abs
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	return cfg, nil
}

// GetSettingsPath returns the resolved settings path
func GetSettingsPath() string {
	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		return configPath
	}
	return defaultSettingsPath
}

// Validate checks if the settings are usable
func (s *Settings) Validate() error {
	for name, value := range map[string]string{
		"stale_after":   s.Service.StaleAfter,
		"read_timeout":  s.Service.ReadTimeout,
		"write_timeout": s.Service.WriteTimeout,
	} {
		d, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("service.%s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("service.%s must be positive", name)
		}
	}

	if _, err := cron.ParseStandard(s.Service.PruneSchedule); err != nil {
		return fmt.Errorf("service.prune_schedule: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(s.Logging.Format)) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json")
	}

	return nil
}

// StaleAfterDuration returns how long a host may go without a heartbeat
func (c ServiceConfig) StaleAfterDuration() time.Duration {
	return mustDuration(c.StaleAfter, 2*time.Minute)
}

// ReadTimeoutDuration returns the HTTP read timeout
func (c ServiceConfig) ReadTimeoutDuration() time.Duration {
	return mustDuration(c.ReadTimeout, 15*time.Second)
}

// WriteTimeoutDuration returns the HTTP write timeout
func (c ServiceConfig) WriteTimeoutDuration() time.Duration {
	return mustDuration(c.WriteTimeout, 15*time.Second)
}

func mustDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Content ContentConfig `mapstructure:"content"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ContentConfig holds the content synchronization settings. The section
// is optional; when absent, sync stays disabled.
type ContentConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	SourceURL          string `mapstructure:"source_url"`
	CheckIntervalHours int    `mapstructure:"check_interval_hours"`
	TimeoutSeconds     int    `mapstructure:"timeout_seconds"`
	// QuickTimeoutSeconds bounds the on-demand checks fired from menu
	// navigation, which must stay cheap.
	QuickTimeoutSeconds int    `mapstructure:"quick_timeout_seconds"`
	Dir                 string `mapstructure:"dir"`
	TrackerFile         string `mapstructure:"tracker_file"`
	HistoryDB           string `mapstructure:"history_db"`
	MaxResolution       int    `mapstructure:"max_resolution"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Content: ContentConfig{
			Enabled:             false,
			CheckIntervalHours:  24,
			TimeoutSeconds:      60,
			QuickTimeoutSeconds: 10,
			Dir:                 "content",
			TrackerFile:         "config/deleted_content.json",
			HistoryDB:           "config/sync_history.db",
			MaxResolution:       720,
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

// Interval returns the periodic check interval as a duration.
func (c ContentConfig) Interval() time.Duration {
	hours := c.CheckIntervalHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// Timeout returns the per-request timeout for full sync passes.
func (c ContentConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// QuickTimeout returns the per-request timeout for on-demand checks.
func (c ContentConfig) QuickTimeout() time.Duration {
	if c.QuickTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.QuickTimeoutSeconds) * time.Second
}

// Load reads app_config.json from the given directory (or the working
// directory when empty), applying defaults and CONTENTSYNC_* env
// overrides. A missing config file is not an error.
func Load(dir string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("app_config")
	v.SetConfigType("json")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("CONTENTSYNC")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file means sync stays disabled.
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// Package config loads server configuration from a YAML file with
// environment variable overrides (prefix CHESSBOARD_).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	NATS    NATSConfig    `mapstructure:"nats"`
	Replay  ReplayConfig  `mapstructure:"replay"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds the outer-surface settings.
type ServerConfig struct {
	HTTP HTTPConfig `mapstructure:"http"`
}

// HTTPConfig holds the HTTP listener settings.
type HTTPConfig struct {
	Address string `mapstructure:"address"`
}

// NATSConfig holds the event-log transport settings.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	Stream        string `mapstructure:"stream"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

// ReplayConfig controls startup state recovery.
type ReplayConfig struct {
	// Enabled rebuilds board state from the event stream before serving.
	Enabled bool `mapstructure:"enabled"`
	// StartupTimeout bounds how long bootstrap waits for the replayer to
	// catch up before serving anyway.
	StartupTimeout time.Duration `mapstructure:"startup_timeout"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`
	// Format is json or console.
	Format string `mapstructure:"format"`
}

// Load reads the configuration file at path, applying defaults and
// CHESSBOARD_* environment overrides. A missing file is not an error;
// defaults and environment carry the configuration.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.http.address", ":8080")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.stream", "CHESSBOARD")
	v.SetDefault("nats.subject_prefix", "chessboard.events")
	v.SetDefault("replay.enabled", true)
	v.SetDefault("replay.startup_timeout", 30*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetEnvPrefix("CHESSBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

const envPrefix = "FRPANEL_"

type Config struct {
	Server ServerConfig
	Log    LogConfig
	Paths  PathsConfig
	Client ClientOverrides
}

type ServerConfig struct {
	Address string `env:"SERVER_ADDRESS" envDefault:":3001"`
}

type LogConfig struct {
	Level    string `env:"LOG_LEVEL" envDefault:"info"`
	Format   string `env:"LOG_FORMAT" envDefault:"text"`
	Capacity int    `env:"LOG_CAPACITY" envDefault:"100"`
}

type PathsConfig struct {
	// Document is the frpc.toml managed by the panel.
	Document      string `env:"CONFIG_PATH" envDefault:"frpc.toml"`
	ProcessConfig string `env:"PROCESS_CONFIG" envDefault:"frpanel.yaml"`
}

// ClientOverrides take precedence over the process config file.
type ClientOverrides struct {
	Binary    string `env:"CLIENT_BINARY"`
	ExtraArgs string `env:"CLIENT_EXTRA_ARGS"`
}

// LoadConfig reads FRPANEL_* environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}

// NewLogger builds the process-wide slog logger.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

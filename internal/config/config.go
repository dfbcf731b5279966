// Package config loads process settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds everything cmd/towerd needs at startup.
type Config struct {
	DBPath      string   `env:"TOWER_DB_PATH" envDefault:"data/tower.db"`
	HTTPAddr    string   `env:"TOWER_HTTP_ADDR" envDefault:"127.0.0.1:8420"`
	LogLevel    string   `env:"TOWER_LOG_LEVEL" envDefault:"info"`
	LogFormat   string   `env:"TOWER_LOG_FORMAT" envDefault:"text"`
	CORSOrigins []string `env:"TOWER_CORS_ORIGINS" envSeparator:","`

	// Seed fixes the deck and placement RNG; 0 picks a random seed.
	Seed int64 `env:"TOWER_SEED" envDefault:"0"`

	// ActionRate caps mutating requests per client per minute.
	ActionRate int `env:"TOWER_ACTION_RATE" envDefault:"240"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the process cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("TOWER_DB_PATH must not be empty")
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return fmt.Errorf("TOWER_HTTP_ADDR must not be empty")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("TOWER_LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if c.ActionRate <= 0 {
		return fmt.Errorf("TOWER_ACTION_RATE must be positive, got %d", c.ActionRate)
	}
	return nil
}

// Level maps LogLevel to a slog level.
func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("TOWER_LOG_LEVEL: %w", err)
	}
	return lvl, nil
}

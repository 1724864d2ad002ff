// Package config reads the service configuration from the environment and
// builds the loggers.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"barangay-helpdesk/internal/dataset"
	"barangay-helpdesk/internal/integrations/httpfetch"
	"barangay-helpdesk/internal/integrations/paramstore"
)

type Config struct {
	// Storage
	StateTable string `env:"STATE_TABLE"`

	// Parameters
	ParamPrefix string `env:"PARAM_PREFIX" envDefault:"/barangay-helpdesk"`

	// Dataset; the first non-empty source wins.
	DatasetURL   string `env:"DATASET_URL"`
	DatasetPath  string `env:"DATASET_PATH"`
	DatasetParam string `env:"DATASET_PARAM"`

	// Matching
	FuzzyThreshold float64 `env:"FUZZY_THRESHOLD" envDefault:"0.5"`

	// Hand-off
	PollInterval     time.Duration `env:"POLL_INTERVAL" envDefault:"3s"`
	WatchInterval    time.Duration `env:"WATCH_INTERVAL" envDefault:"1s"`
	MaxMessageLength int           `env:"MAX_MESSAGE_LENGTH" envDefault:"500"`
	RecentLimit      int           `env:"RECENT_LIMIT" envDefault:"10"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`
}

// Load parses the process environment.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses vars instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.MaxMessageLength <= 0 {
		return nil, errors.New("parse config: MAX_MESSAGE_LENGTH must be positive")
	}
	if cfg.PollInterval <= 0 || cfg.WatchInterval <= 0 {
		return nil, errors.New("parse config: intervals must be positive")
	}
	return cfg, nil
}

// RequireStateTable fails when no DynamoDB table is configured.
func (c *Config) RequireStateTable() error {
	if strings.TrimSpace(c.StateTable) == "" {
		return errors.New("config: STATE_TABLE is not set")
	}
	return nil
}

// Level returns the configured slog level, defaulting to info.
func (c *Config) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// DatasetSource returns the configured dataset resource, or nil when none is
// configured. params is only needed for DATASET_PARAM.
func (c *Config) DatasetSource(params paramstore.Getter) (dataset.Source, error) {
	switch {
	case c.DatasetURL != "":
		client, err := httpfetch.New(c.DatasetURL)
		if err != nil {
			return nil, err
		}
		return client, nil
	case c.DatasetPath != "":
		return dataset.File{Path: c.DatasetPath}, nil
	case c.DatasetParam != "":
		if params == nil {
			return nil, errors.New("config: DATASET_PARAM needs a parameter store")
		}
		return paramstore.DatasetSource{
			Getter: params,
			Name:   paramstore.Join(c.ParamPrefix, c.DatasetParam),
		}, nil
	default:
		return nil, nil
	}
}

// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and environment variables on top of New().
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"time"

	"github.com/okian/fencerpulse/internal/domain/classifier"
	"github.com/okian/fencerpulse/internal/domain/explain"
	"github.com/okian/fencerpulse/internal/domain/ranking"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// ModelPath is the artifact file loaded at start and written by training.
	ModelPath string `koanf:"model_path" validate:"required"`

	// TopN is the default shortlist length.
	TopN int `koanf:"top_n" validate:"gte=1"`

	// TopK is the default number of explanation items.
	TopK int `koanf:"top_k" validate:"gte=1"`

	// Solver settings used by training.
	TrainC         float64 `koanf:"train_c" validate:"gt=0"`
	TrainMaxIter   int     `koanf:"train_max_iter" validate:"gte=1"`
	TrainTolerance float64 `koanf:"train_tolerance" validate:"gte=0"`
	TrainSeed      uint64  `koanf:"train_seed"`

	// ReloadIntervalS polls the artifact for changes; 0 disables hot reload.
	ReloadIntervalS int `koanf:"reload_interval_s" validate:"gte=0"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		ModelPath:       "data/model.json",
		TopN:            ranking.DefaultTopN,
		TopK:            explain.DefaultTopK,
		TrainC:          classifier.DefaultC,
		TrainMaxIter:    classifier.DefaultMaxIter,
		TrainTolerance:  classifier.DefaultTolerance,
		TrainSeed:       classifier.DefaultSeed,
		ReloadIntervalS: 0,
	}
}

// TrainingParams returns the solver settings.
func (c *Config) TrainingParams() classifier.Params {
	return classifier.Params{
		C:         c.TrainC,
		MaxIter:   c.TrainMaxIter,
		Tolerance: c.TrainTolerance,
		Seed:      c.TrainSeed,
	}
}

// ReloadInterval returns the hot reload period, zero when disabled.
func (c *Config) ReloadInterval() time.Duration {
	return time.Duration(c.ReloadIntervalS) * time.Second
}

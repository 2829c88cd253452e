// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package offload

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config collects the tunables of an interactive program built on this
// package. Zero-valued fields loaded from a file keep their defaults.
type Config struct {
	// Workers is the pool size; zero selects runtime.GOMAXPROCS(0).
	Workers       int           `yaml:"workers" json:"workers"`
	QueueCapacity int           `yaml:"queue_capacity" json:"queue_capacity"`
	StepBudget    int           `yaml:"step_budget" json:"step_budget"`
	Metrics       MetricsConfig `yaml:"metrics" json:"metrics"`
	Log           LogConfig     `yaml:"log" json:"log"`
}

// MetricsConfig controls Prometheus instrumentation.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Prefix  string `yaml:"prefix" json:"prefix"`
	// Addr is the listen address for a /metrics endpoint, if the program
	// serves one.
	Addr string `yaml:"addr" json:"addr"`
}

// LogConfig controls construction of the zap logger.
type LogConfig struct {
	Level       string `yaml:"level" json:"level"`
	Development bool   `yaml:"development" json:"development"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		QueueCapacity: DefaultQueueCapacity,
		StepBudget:    DefaultStepBudget,
		Metrics: MetricsConfig{
			Prefix: defaultMetricsPrefix,
			Addr:   ":9090",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads a YAML (.yaml, .yml) or JSON (.json) file on top of
// [DefaultConfig] and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing JSON config: %w", err)
		}
	default:
		return cfg, fmt.Errorf("%w: unsupported config format %q", ErrInvalidConfig, ext)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks that every field is in range. The returned error wraps
// [ErrInvalidConfig].
func (c Config) Validate() error {
	switch {
	case c.Workers < 0:
		return fmt.Errorf("%w: workers must be non-negative, got %d", ErrInvalidConfig, c.Workers)
	case c.Workers > MaxWorkers:
		return fmt.Errorf("%w: workers must be at most %d, got %d", ErrInvalidConfig, MaxWorkers, c.Workers)
	case c.QueueCapacity < 0:
		return fmt.Errorf("%w: queue_capacity must be non-negative, got %d", ErrInvalidConfig, c.QueueCapacity)
	case c.StepBudget < 0:
		return fmt.Errorf("%w: step_budget must be non-negative, got %d", ErrInvalidConfig, c.StepBudget)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// PoolOptions translates the configuration into options for [NewWorkerPool].
// Metrics are registered with registerer only when enabled; a nil registerer
// selects prometheus.DefaultRegisterer.
func (c Config) PoolOptions(logger *zap.Logger, registerer prometheus.Registerer) []PoolOption {
	opts := []PoolOption{WithLogger(logger)}
	if c.QueueCapacity > 0 {
		opts = append(opts, WithQueueCapacity(c.QueueCapacity))
	}
	if c.Metrics.Enabled {
		if registerer == nil {
			registerer = prometheus.DefaultRegisterer
		}
		opts = append(opts, WithMetrics(registerer, c.Metrics.Prefix))
	}
	return opts
}

// Build constructs a zap logger at the configured level, using zap's
// development defaults if Development is set and its production defaults
// otherwise.
func (c LogConfig) Build() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

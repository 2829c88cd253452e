// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package offload_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/petenewcomb/offload-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	chk := require.New(t)
	cfg := offload.DefaultConfig()
	chk.NoError(cfg.Validate())
	chk.Equal(offload.DefaultQueueCapacity, cfg.QueueCapacity)
	chk.Equal(offload.DefaultStepBudget, cfg.StepBudget)
	chk.False(cfg.Metrics.Enabled)
}

func TestLoadConfigYAML(t *testing.T) {
	chk := require.New(t)
	path := writeConfig(t, "offload.yaml", `
workers: 6
step_budget: 12
metrics:
  enabled: true
  prefix: sweep_pool
log:
  level: debug
  development: true
`)
	cfg, err := offload.LoadConfig(path)
	chk.NoError(err)
	chk.Equal(6, cfg.Workers)
	chk.Equal(12, cfg.StepBudget)
	// Unset fields keep their defaults.
	chk.Equal(offload.DefaultQueueCapacity, cfg.QueueCapacity)
	chk.True(cfg.Metrics.Enabled)
	chk.Equal("sweep_pool", cfg.Metrics.Prefix)
	chk.Equal(":9090", cfg.Metrics.Addr)
	chk.Equal("debug", cfg.Log.Level)
	chk.True(cfg.Log.Development)
}

func TestLoadConfigJSON(t *testing.T) {
	chk := require.New(t)
	path := writeConfig(t, "offload.json", `{"workers": 2, "queue_capacity": 64}`)
	cfg, err := offload.LoadConfig(path)
	chk.NoError(err)
	chk.Equal(2, cfg.Workers)
	chk.Equal(64, cfg.QueueCapacity)
	chk.Equal("info", cfg.Log.Level)
}

func TestLoadConfigErrors(t *testing.T) {
	chk := require.New(t)

	_, err := offload.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	chk.ErrorIs(err, os.ErrNotExist)

	_, err = offload.LoadConfig(writeConfig(t, "offload.toml", "workers = 2"))
	chk.ErrorIs(err, offload.ErrInvalidConfig)

	_, err = offload.LoadConfig(writeConfig(t, "bad.yaml", "workers: [1, 2"))
	chk.Error(err)

	_, err = offload.LoadConfig(writeConfig(t, "big.yml", "workers: 33"))
	chk.ErrorIs(err, offload.ErrInvalidConfig)
}

func TestConfigValidate(t *testing.T) {
	for name, mutate := range map[string]func(*offload.Config){
		"negative workers":  func(c *offload.Config) { c.Workers = -1 },
		"too many workers":  func(c *offload.Config) { c.Workers = offload.MaxWorkers + 1 },
		"negative capacity": func(c *offload.Config) { c.QueueCapacity = -1 },
		"negative budget":   func(c *offload.Config) { c.StepBudget = -1 },
		"unknown level":     func(c *offload.Config) { c.Log.Level = "chatty" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := offload.DefaultConfig()
			mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), offload.ErrInvalidConfig)
		})
	}
}

func TestConfigPoolOptions(t *testing.T) {
	chk := require.New(t)
	cfg := offload.DefaultConfig()
	cfg.Workers = 3
	cfg.QueueCapacity = 8
	cfg.Metrics.Enabled = true
	cfg.Metrics.Prefix = "cfg_pool"

	reg := prometheus.NewRegistry()
	p, err := offload.NewWorkerPool(cfg.Workers, cfg.PoolOptions(zap.NewNop(), reg)...)
	chk.NoError(err)
	defer p.Shutdown()

	chk.Equal(3, p.NumWorkers())
	chk.Equal(8, p.QueueCapacity())
	families, err := reg.Gather()
	chk.NoError(err)
	var names []string
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	chk.Contains(names, "cfg_pool_submitted_total")
}

func TestLogConfigBuild(t *testing.T) {
	chk := require.New(t)
	logger, err := offload.LogConfig{Level: "warn"}.Build()
	chk.NoError(err)
	chk.False(logger.Core().Enabled(zapcore.InfoLevel))
	chk.True(logger.Core().Enabled(zapcore.WarnLevel))

	logger, err = offload.LogConfig{Level: "debug", Development: true}.Build()
	chk.NoError(err)
	chk.True(logger.Core().Enabled(zapcore.DebugLevel))

	_, err = offload.LogConfig{Level: "loud"}.Build()
	chk.ErrorIs(err, offload.ErrInvalidConfig)
}

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFallsBackToDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigParsesYAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stencil.yaml")
	const doc = `
simulation:
  width: 60
  wrap: true
  accelerated: true
partition:
  ranks: 3
  ghost_width: 2
run:
  max_steps: 50
  writer_period: 5
initial_spike:
  at: 30
  value: 200
logging:
  level: debug
metrics:
  address: ":2112"
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.Simulation.Width)
	assert.True(t, cfg.Simulation.Wrap)
	assert.True(t, cfg.Simulation.Accelerated)
	assert.Equal(t, 3, cfg.Partition.Ranks)
	assert.Equal(t, 2, cfg.Partition.GhostWidth)
	assert.Equal(t, uint64(50), cfg.Run.MaxSteps)
	assert.Equal(t, uint64(5), cfg.Run.WriterPeriod)
	assert.Equal(t, 30, cfg.InitialSpike.At)
	assert.Equal(t, 200.0, cfg.InitialSpike.Value)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, ":2112", cfg.Metrics.Address)
}

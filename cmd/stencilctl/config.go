package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is a stencilctl run's YAML configuration: the reference
// heat-diffusion demo's simulation area, decomposition, and initial
// condition. Grounded on
// theRebelliousNerd-codenerd/internal/config/config.go's
// DefaultConfig/Load shape.
type Config struct {
	Simulation struct {
		Width int  `yaml:"width"`
		Wrap  bool `yaml:"wrap"`
		// Accelerated selects the streakHeatCell kernel, which drives its
		// whole-streak update through an OCCA device kernel (accel
		// package) instead of the default cell-by-cell scalar path.
		Accelerated bool `yaml:"accelerated"`
	} `yaml:"simulation"`

	Partition struct {
		Ranks      int `yaml:"ranks"`
		GhostWidth int `yaml:"ghost_width"`
	} `yaml:"partition"`

	Run struct {
		MaxSteps     uint64 `yaml:"max_steps"`
		WriterPeriod uint64 `yaml:"writer_period"`
	} `yaml:"run"`

	InitialSpike struct {
		At    int     `yaml:"at"`
		Value float64 `yaml:"value"`
	} `yaml:"initial_spike"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	Metrics struct {
		// Address is the listen address for the Prometheus /metrics
		// endpoint. Empty disables it.
		Address string `yaml:"address"`
	} `yaml:"metrics"`
}

// DefaultConfig returns the configuration stencilctl runs with when no
// file is found: a 40-cell non-wrapping 1-D domain over 2 ranks, a
// single heat spike at cell 20, run for 100 steps with progress logged
// every 10.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Simulation.Width = 40
	cfg.Partition.Ranks = 2
	cfg.Partition.GhostWidth = 1
	cfg.Run.MaxSteps = 100
	cfg.Run.WriterPeriod = 10
	cfg.InitialSpike.At = 20
	cfg.InitialSpike.Value = 100
	cfg.Logging.Level = "info"
	return cfg
}

// LoadConfig loads a stencilctl run configuration from path, falling
// back to DefaultConfig if path does not exist.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Package config loads CertGo run configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config describes one verification run.
type Config struct {
	// Dataset identifier (mnist, fashion-mnist, cifar10, svhn, imagenet).
	Dataset string `yaml:"dataset"`
	// Model is the path to the JSON model file.
	Model string `yaml:"model"`
	// Inputs is the path to the CSV file of labeled examples.
	Inputs string `yaml:"inputs"`
	// MaxInputs limits how many examples are verified (0 = all).
	MaxInputs int `yaml:"max_inputs"`

	// Method selects the verification strategy:
	// clean, pgd, ibp, fastlin, milp, sdp.
	Method string `yaml:"method"`
	// Norm is the perturbation norm family; only "inf" is supported.
	Norm string `yaml:"norm"`
	// Radius is the perturbation radius in original pixel space.
	Radius float64 `yaml:"radius"`

	Solver  SolverConfig  `yaml:"solver"`
	Logging LoggingConfig `yaml:"logging"`
}

// SolverConfig bounds the MILP/SDP solves.
type SolverConfig struct {
	// TimeLimit is a Go duration string per solve, e.g. "30s".
	TimeLimit string `yaml:"time_limit"`
	Verbose   bool   `yaml:"verbose"`
}

// LoggingConfig controls diagnostic output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// Default returns the configuration used when a field is absent.
func Default() *Config {
	return &Config{
		Dataset: "mnist",
		Method:  "fastlin",
		Norm:    "inf",
		Radius:  0.02,
		Solver:  SolverConfig{TimeLimit: "30s"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads a YAML config file over the defaults and validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field values and cross-field consistency.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model path is required")
	}
	if c.Inputs == "" {
		return fmt.Errorf("inputs path is required")
	}
	if c.Radius < 0 {
		return fmt.Errorf("radius must be non-negative, got %g", c.Radius)
	}
	if _, err := c.SolverTimeLimit(); err != nil {
		return err
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	return nil
}

// SolverTimeLimit parses the solver time limit.
func (c *Config) SolverTimeLimit() (time.Duration, error) {
	if c.Solver.TimeLimit == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Solver.TimeLimit)
	if err != nil {
		return 0, fmt.Errorf("bad solver time_limit %q: %w", c.Solver.TimeLimit, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("solver time_limit must be non-negative, got %s", d)
	}
	return d, nil
}

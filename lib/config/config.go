// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the trigger
// service.
//
// Configuration is loaded from a single YAML file specified by:
//   - TRIGGER_CONFIG environment variable, or
//   - --config flag passed to the binary
//
// There are no fallbacks or automatic discovery, and environment
// variables never override file values. This ensures deterministic,
// auditable configuration with no hidden overrides.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the trigger service configuration. All fields are fixed
// at startup; the running service never reloads.
type Config struct {
	// ListenAddress is the TCP address the HTTP server binds
	// (e.g., "127.0.0.1:8377").
	ListenAddress string `yaml:"listen_address"`

	// SecretFile is the path to the file holding the shared bearer
	// secret, or "-" to read it from stdin at startup.
	SecretFile string `yaml:"secret_file"`

	// MaxConcurrentRuns bounds how many runs may execute at once.
	MaxConcurrentRuns int `yaml:"max_concurrent_runs"`

	// RunTimeout is the wall-clock age after which a still-running
	// run is killed by the reaper (duration string, e.g. "30m").
	RunTimeout string `yaml:"run_timeout"`

	// SweepInterval is how often the reaper sweeps the registry
	// between requests (duration string, e.g. "30s").
	SweepInterval string `yaml:"sweep_interval"`

	// ShutdownTimeout is how long graceful HTTP shutdown waits for
	// in-flight requests (duration string, e.g. "10s"). Streaming
	// /trigger responses are deliberately not waited for — running
	// jobs outlive the server.
	ShutdownTimeout string `yaml:"shutdown_timeout"`

	// Script is the path to the automation executable each admitted
	// run launches.
	Script string `yaml:"script"`

	// WorkingDirectory is the directory the script starts in. Empty
	// means the service's own working directory.
	WorkingDirectory string `yaml:"working_directory"`

	runTimeout      time.Duration
	sweepInterval   time.Duration
	shutdownTimeout time.Duration
}

// Default returns the default configuration. Defaults exist to give
// every optional field a sensible value — the config file is still
// required, and must provide secret_file and script.
func Default() *Config {
	return &Config{
		ListenAddress:     "127.0.0.1:8377",
		MaxConcurrentRuns: 3,
		RunTimeout:        "30m",
		SweepInterval:     "30s",
		ShutdownTimeout:   "10s",
	}
}

// Load loads configuration from the file named by the TRIGGER_CONFIG
// environment variable. Fails if the variable is unset.
func Load() (*Config, error) {
	path := os.Getenv("TRIGGER_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("TRIGGER_CONFIG environment variable not set; " +
			"set it to the path of your trigger.yaml config file, or use --config")
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path and validates
// it.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// validate checks required fields and parses duration strings. Called
// by LoadFile; the typed duration accessors are only meaningful after
// this succeeds.
func (c *Config) validate() error {
	if c.ListenAddress == "" {
		return fmt.Errorf("listen_address is required")
	}
	if c.SecretFile == "" {
		return fmt.Errorf("secret_file is required")
	}
	if c.Script == "" {
		return fmt.Errorf("script is required")
	}
	if c.MaxConcurrentRuns < 1 {
		return fmt.Errorf("max_concurrent_runs must be at least 1, got %d", c.MaxConcurrentRuns)
	}

	var err error
	if c.runTimeout, err = parsePositiveDuration("run_timeout", c.RunTimeout); err != nil {
		return err
	}
	if c.sweepInterval, err = parsePositiveDuration("sweep_interval", c.SweepInterval); err != nil {
		return err
	}
	if c.shutdownTimeout, err = parsePositiveDuration("shutdown_timeout", c.ShutdownTimeout); err != nil {
		return err
	}
	return nil
}

func parsePositiveDuration(field, value string) (time.Duration, error) {
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %q", field, value)
	}
	return parsed, nil
}

// RunTimeoutDuration returns the parsed run_timeout. Only valid on a
// Config produced by Load or LoadFile.
func (c *Config) RunTimeoutDuration() time.Duration { return c.runTimeout }

// SweepIntervalDuration returns the parsed sweep_interval.
func (c *Config) SweepIntervalDuration() time.Duration { return c.sweepInterval }

// ShutdownTimeoutDuration returns the parsed shutdown_timeout.
func (c *Config) ShutdownTimeoutDuration() time.Duration { return c.shutdownTimeout }

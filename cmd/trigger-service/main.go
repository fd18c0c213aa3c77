// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Trigger-service is the triggered-run admission controller. It
// accepts authenticated POST /trigger requests, bounds how many
// automation runs execute concurrently, deduplicates in-flight runs
// per issue, supervises the processes it spawns (liveness, wall-clock
// timeout), and streams each run's output back to the caller while
// the run is in flight.
//
// Configuration comes from a single YAML file (TRIGGER_CONFIG or
// --config); the shared bearer secret is read from the configured
// secret file at startup. SIGINT/SIGTERM stop intake — running jobs
// are never terminated by shutdown.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/trigger/lib/clock"
	"github.com/bureau-foundation/trigger/lib/config"
	"github.com/bureau-foundation/trigger/lib/process"
	"github.com/bureau-foundation/trigger/lib/runner"
	"github.com/bureau-foundation/trigger/lib/secret"
	"github.com/bureau-foundation/trigger/trigger"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("trigger-service", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to trigger.yaml (overrides TRIGGER_CONFIG)")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Printf("trigger-service %s\n", version)
		return nil
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	sharedSecret, err := secret.ReadFromPath(cfg.SecretFile)
	if err != nil {
		return fmt.Errorf("loading trigger secret: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.Real()
	registry := trigger.NewRegistry(cfg.MaxConcurrentRuns, cfg.RunTimeoutDuration(), clk, logger)
	handler := trigger.NewHandler(trigger.HandlerConfig{
		Registry:         registry,
		Runner:           runner.NewExecRunner(),
		Secret:           sharedSecret,
		Script:           cfg.Script,
		WorkingDirectory: cfg.WorkingDirectory,
		Clock:            clk,
		Logger:           logger,
	})
	server := trigger.NewServer(trigger.ServerConfig{
		Address:         cfg.ListenAddress,
		Handler:         handler,
		Registry:        registry,
		SweepInterval:   cfg.SweepIntervalDuration(),
		ShutdownTimeout: cfg.ShutdownTimeoutDuration(),
		Clock:           clk,
		Logger:          logger,
	})

	return server.Serve(ctx)
}

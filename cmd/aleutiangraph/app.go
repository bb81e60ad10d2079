// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/AleutianAI/AleutianGraph/pkg/logging"
	"github.com/AleutianAI/AleutianGraph/pkg/ux"
	"github.com/AleutianAI/AleutianGraph/services/graph"
	"github.com/AleutianAI/AleutianGraph/services/graph/components"
	"github.com/AleutianAI/AleutianGraph/services/graph/config"
	"github.com/AleutianAI/AleutianGraph/services/graph/registry"
	"github.com/AleutianAI/AleutianGraph/services/graph/storage"
	"github.com/AleutianAI/AleutianGraph/services/graph/telemetry"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath  string
	workers     int
	force       bool
	personality string
	verbose     bool
}

// app is everything a command needs, built from the configuration file.
type app struct {
	cfg     config.Config
	logger  *logging.Logger
	store   *storage.Instrumented
	engine  *graph.Engine
	printer *ux.Printer

	shutdownTelemetry func(context.Context) error
}

// newApp loads the configuration and opens the store. Flags override the
// file. Callers must Close the app.
func newApp(ctx context.Context, flags *globalFlags, printer *ux.Printer) (*app, error) {
	cfg, created, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.workers > 0 {
		cfg.Executor.Workers = flags.workers
	}
	if flags.force {
		cfg.Executor.ForceRetrain = true
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	if flags.verbose {
		level = logging.LevelDebug
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "aleutiangraph",
		JSON:    cfg.Logging.JSON,
	})
	if created {
		printer.Info(fmt.Sprintf("Created default configuration at %s", flags.configPath))
	}

	tcfg := telemetry.ForExporter(cfg.Telemetry.Exporter, cfg.Telemetry.Endpoint)
	tcfg.ServiceName = cfg.Telemetry.ServiceName
	tcfg.SampleRate = cfg.Telemetry.SampleRate
	shutdown, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, printer: printer, shutdownTelemetry: shutdown}
	inner, err := storage.Open(ctx, cfg.Storage, logger.Slog())
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Backend, err)
	}
	a.store = storage.NewInstrumented(inner)

	reg := registry.New()
	if err := components.Register(reg); err != nil {
		_ = a.Close()
		return nil, err
	}
	a.engine, err = graph.NewEngine(a.store, reg, graph.Options{
		Workers:      cfg.Executor.Workers,
		ForceRetrain: cfg.Executor.ForceRetrain,
		Environment:  cfg.Packages.Environment(),
		Logger:       logger.Slog(),
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// slog returns the application logger.
func (a *app) slog() *slog.Logger {
	return a.logger.Slog()
}

// Close releases the store, flushes telemetry and closes the log file.
func (a *app) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.shutdownTelemetry != nil {
		errs = append(errs, a.shutdownTelemetry(context.Background()))
	}
	errs = append(errs, a.logger.Close())
	return errors.Join(errs...)
}

// manifestPath resolves the manifest flag against the configured default.
func (a *app) manifestPath(flag string) string {
	if flag != "" {
		return flag
	}
	return a.cfg.Server.Manifest
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the application configuration of the graph CLI and
// server: where resources are stored, how the executor runs, and the
// logging, telemetry and HTTP settings.
package config

import (
	"os"
	"path/filepath"

	"github.com/AleutianAI/AleutianGraph/services/graph/capability"
	"github.com/AleutianAI/AleutianGraph/services/graph/storage"
)

// Config is the contents of aleutiangraph.yaml.
type Config struct {
	Storage   storage.Config  `yaml:"storage" json:"storage"`
	Executor  ExecutorConfig  `yaml:"executor" json:"executor"`
	Packages  PackagesConfig  `yaml:"packages" json:"packages"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
	Server    ServerConfig    `yaml:"server" json:"server"`
}

// ExecutorConfig tunes graph execution.
type ExecutorConfig struct {
	// Workers bounds concurrently running nodes. 0 means GOMAXPROCS.
	Workers int `yaml:"workers" json:"workers" validate:"gte=0,lte=1024"`

	// ForceRetrain ignores cached train artifacts.
	ForceRetrain bool `yaml:"force_retrain" json:"force_retrain"`
}

// PackagesConfig declares externally installed packages that the build
// information and PATH cannot reveal.
type PackagesConfig struct {
	Available []string `yaml:"available" json:"available" validate:"dive,required"`
}

// Environment returns the capability environment: the module's build
// dependencies, executables on PATH, and the declared packages.
func (p PackagesConfig) Environment() capability.Environment {
	env := capability.DefaultEnvironment()
	if len(p.Available) == 0 {
		return env
	}
	return capability.AnyEnvironment{env, capability.NewStaticEnvironment(p.Available...)}
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level" validate:"omitempty,oneof=debug info warn warning error DEBUG INFO WARN WARNING ERROR"`
	Dir   string `yaml:"dir" json:"dir"`
	JSON  bool   `yaml:"json" json:"json"`
}

// Telemetry exporters.
const (
	ExporterNone       = "none"
	ExporterStdout     = "stdout"
	ExporterOTLP       = "otlp"
	ExporterPrometheus = "prometheus"
)

// TelemetryConfig selects the OpenTelemetry exporters.
type TelemetryConfig struct {
	// Exporter is one of none, stdout, otlp or prometheus.
	Exporter string `yaml:"exporter" json:"exporter" validate:"oneof=none stdout otlp prometheus"`

	// Endpoint is the OTLP gRPC collector address.
	Endpoint string `yaml:"endpoint" json:"endpoint" validate:"required_if=Exporter otlp"`

	ServiceName string `yaml:"service_name" json:"service_name" validate:"required"`

	// SampleRate is the trace sampling ratio in [0, 1].
	SampleRate float64 `yaml:"sample_rate" json:"sample_rate" validate:"gte=0,lte=1"`
}

// ServerConfig configures the inference HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" json:"port" validate:"gte=1,lte=65535"`

	// Manifest is the trained model the server answers with.
	Manifest string `yaml:"manifest" json:"manifest"`

	// ShutdownSeconds bounds graceful shutdown.
	ShutdownSeconds int `yaml:"shutdown_seconds" json:"shutdown_seconds" validate:"gte=0"`
}

// Home returns the graph state directory, ~/.aleutian/graph, or a relative
// .aleutian/graph when there is no home directory.
func Home() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".aleutian", "graph")
	}
	return filepath.Join(home, ".aleutian", "graph")
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	return filepath.Join(Home(), "aleutiangraph.yaml")
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() Config {
	home := Home()
	return Config{
		Storage: storage.Config{
			Backend: storage.BackendLocal,
			Path:    filepath.Join(home, "resources"),
		},
		Executor: ExecutorConfig{},
		Packages: PackagesConfig{Available: []string{}},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   filepath.Join(home, "logs"),
		},
		Telemetry: TelemetryConfig{
			Exporter:    ExporterPrometheus,
			ServiceName: "aleutian-graph",
			SampleRate:  1,
		},
		Server: ServerConfig{
			Port:            12220,
			Manifest:        filepath.Join(home, "models", "latest.json"),
			ShutdownSeconds: 10,
		},
	}
}

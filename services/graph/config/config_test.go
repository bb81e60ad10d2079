// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianGraph/services/graph/storage"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, storage.BackendLocal, cfg.Storage.Backend)
	assert.Equal(t, ExporterPrometheus, cfg.Telemetry.Exporter)
}

func TestLoad_CreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "nested", "aleutiangraph.yaml")

	cfg, created, err := Load(path)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 12220, cfg.Server.Port)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk Config
	require.NoError(t, yaml.Unmarshal(data, &onDisk))
	assert.Equal(t, DefaultConfig().Storage, onDisk.Storage)

	_, created, err = Load(path)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestParse_KeepsDefaultsForMissingKeys(t *testing.T) {
	cfg, err := Parse([]byte(`
storage:
  backend: badger
  path: /var/lib/graph
executor:
  workers: 4
`), nil)
	require.NoError(t, err)
	assert.Equal(t, "badger", cfg.Storage.Backend)
	assert.Equal(t, 4, cfg.Executor.Workers)
	assert.Equal(t, "aleutian-graph", cfg.Telemetry.ServiceName)
	assert.Equal(t, 12220, cfg.Server.Port)
}

func TestParse_EnvironmentOverrides(t *testing.T) {
	cfg, err := Parse([]byte("storage:\n  backend: local\n  path: /tmp/x\n"), env(map[string]string{
		"ALEUTIAN_GRAPH_STORAGE_BACKEND":    "gcs",
		"ALEUTIAN_GRAPH_GCS_BUCKET":         "models",
		"ALEUTIAN_GRAPH_WORKERS":            " 8 ",
		"ALEUTIAN_GRAPH_FORCE_RETRAIN":      "true",
		"ALEUTIAN_GRAPH_PACKAGES":           "spacy, ,mitie",
		"ALEUTIAN_GRAPH_TELEMETRY_EXPORTER": "otlp",
		"ALEUTIAN_GRAPH_OTLP_ENDPOINT":      "collector:4317",
	}))
	require.NoError(t, err)
	assert.Equal(t, storage.BackendGCS, cfg.Storage.Backend)
	assert.Equal(t, "models", cfg.Storage.GCS.Bucket)
	assert.Equal(t, 8, cfg.Executor.Workers)
	assert.True(t, cfg.Executor.ForceRetrain)
	assert.Equal(t, []string{"spacy", "mitie"}, cfg.Packages.Available)
	assert.Equal(t, "collector:4317", cfg.Telemetry.Endpoint)
	assert.True(t, cfg.Packages.Environment().Has("mitie"))
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		env  map[string]string
	}{
		{"unknown backend", "storage:\n  backend: s3\n", nil},
		{"local without path", "storage:\n  backend: local\n  path: \"\"\n", nil},
		{"negative workers", "executor:\n  workers: -1\n", nil},
		{"port out of range", "server:\n  port: 70000\n", nil},
		{"otlp without endpoint", "telemetry:\n  exporter: otlp\n", nil},
		{"sample rate", "telemetry:\n  sample_rate: 2\n", nil},
		{"log level", "logging:\n  level: loud\n", nil},
		{"malformed yaml", "storage: [", nil},
		{"bad workers env", "", map[string]string{"ALEUTIAN_GRAPH_WORKERS": "many"}},
		{"bad bool env", "", map[string]string{"ALEUTIAN_GRAPH_FORCE_RETRAIN": "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), env(tt.env))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

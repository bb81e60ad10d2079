// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	graphbadger "github.com/AleutianAI/AleutianGraph/services/graph/storage/badger"
)

// Backend names accepted by Open.
const (
	BackendLocal  = "local"
	BackendBadger = "badger"
	BackendGCS    = "gcs"
	BackendAzure  = "azure"
	BackendMemory = "memory"
)

// Config selects and configures a store backend.
type Config struct {
	// Backend is one of local, badger, gcs, azure or memory.
	Backend string `yaml:"backend" json:"backend" validate:"required,oneof=local badger gcs azure memory"`

	// Path is the root directory for local and badger stores.
	Path string `yaml:"path" json:"path" validate:"required_if=Backend local,required_if=Backend badger"`

	GCS   GCSConfig   `yaml:"gcs" json:"gcs"`
	Azure AzureConfig `yaml:"azure" json:"azure"`
}

// Open creates the store described by cfg.
//
// Description:
//
//	The badger backend keeps its database in {Path}/badger. The returned
//	store is not instrumented; wrap it with NewInstrumented for metrics.
//
// Outputs:
//
//	Store - The opened store. Caller must Close it.
//	error - ErrUnknownBackend for an unrecognized backend name, or the
//	        backend's own open error.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Backend {
	case BackendLocal:
		return NewLocalStore(cfg.Path, logger)
	case BackendBadger:
		bcfg := graphbadger.DefaultConfig(filepath.Join(cfg.Path, "badger"))
		bcfg.Logger = logger
		return OpenBadgerStore(bcfg, logger)
	case BackendGCS:
		return NewGCSStore(ctx, cfg.GCS, logger)
	case BackendAzure:
		return NewAzureStore(ctx, cfg.Azure, logger)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

const (
	stagingDirName = ".staging"
	indexFileName  = "index.json"
	entriesDirName = "entries"
)

// LocalStore keeps one directory per fingerprint below a root directory.
//
// Layout:
//
//	{root}/
//	  .staging/{key}-{uuid}/      (in-flight writers)
//	  {key[0:2]}/{key}/
//
// where key is Fingerprint.Key.
//	    index.json
//	    entries/{name}
//
// Writers stage into .staging and publish with a directory rename, so an
// artifact directory only ever appears complete.
type LocalStore struct {
	root   string
	logger *slog.Logger
}

// NewLocalStore creates a LocalStore rooted at root, creating it if needed.
//
// Inputs:
//
//	root - Root directory. Required.
//	logger - Logger for store events. If nil, uses slog.Default().
//
// Outputs:
//
//	*LocalStore - The store.
//	error - Non-nil if root is empty or cannot be created.
func NewLocalStore(root string, logger *slog.Logger) (*LocalStore, error) {
	if root == "" {
		return nil, errors.New("local store root is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Join(root, stagingDirName), 0750); err != nil {
		return nil, fmt.Errorf("create store root %s: %w", root, err)
	}
	return &LocalStore{root: root, logger: logger}, nil
}

// Root returns the store's root directory.
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) dir(fp Fingerprint) string {
	key := fp.Key()
	return filepath.Join(s.root, key[:2], key)
}

// Exists reports whether fp has a published index.
func (s *LocalStore) Exists(ctx context.Context, fp Fingerprint) (bool, error) {
	if err := fp.Validate(); err != nil {
		return false, err
	}
	_, err := os.Stat(filepath.Join(s.dir(fp), indexFileName))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat resource %s: %w", fp, err)
}

// Begin creates a staging directory for fp.
func (s *LocalStore) Begin(ctx context.Context, fp Fingerprint) (Writer, error) {
	if err := fp.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	staging := filepath.Join(s.root, stagingDirName, fp.Key()+"-"+uuid.NewString())
	if err := os.MkdirAll(filepath.Join(staging, entriesDirName), 0750); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &localWriter{store: s, fp: fp, staging: staging, artifact: NewArtifact()}, nil
}

// Read loads and verifies the artifact for r.
func (s *LocalStore) Read(ctx context.Context, r Resource) (*Artifact, error) {
	if err := r.Fingerprint.Validate(); err != nil {
		return nil, err
	}
	dir := s.dir(r.Fingerprint)
	raw, err := os.ReadFile(filepath.Join(dir, indexFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, notFound(r.Fingerprint)
		}
		return nil, fmt.Errorf("read index for %s: %w", r.Fingerprint, err)
	}
	var idx index
	if err := json.Unmarshal(raw, &idx); err != nil {
		return nil, fmt.Errorf("%w: index for %s: %v", ErrCorruptArtifact, r.Fingerprint, err)
	}

	a := NewArtifact()
	for _, entry := range idx.Entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(dir, entriesDirName, filepath.FromSlash(entry.Name)))
		if err != nil {
			return nil, fmt.Errorf("read entry %q of %s: %w", entry.Name, r.Fingerprint, err)
		}
		if err := entry.verify(data); err != nil {
			return nil, err
		}
		a.entries[entry.Name] = data
	}
	return a, nil
}

// Close is a no-op for LocalStore.
func (s *LocalStore) Close() error {
	return nil
}

// localWriter streams entries straight into its staging directory.
type localWriter struct {
	mu       sync.Mutex
	store    *LocalStore
	fp       Fingerprint
	staging  string
	artifact *Artifact // mirrors staged entries for the index
	closed   bool
}

func (w *localWriter) Put(name string, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	if err := ValidateEntryName(name); err != nil {
		return err
	}
	target := filepath.Join(w.staging, entriesDirName, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
		return fmt.Errorf("create entry dir: %w", err)
	}
	if err := os.WriteFile(target, data, 0640); err != nil {
		return fmt.Errorf("write entry %q: %w", name, err)
	}
	w.artifact.entries[name] = cloneBytes(data)
	return nil
}

func (w *localWriter) Commit() (Resource, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return Resource{}, ErrWriterClosed
	}
	w.closed = true
	res := Resource{Fingerprint: w.fp}

	raw, err := json.MarshalIndent(newIndex(w.fp, "", w.artifact), "", "  ")
	if err != nil {
		_ = w.cleanup()
		return Resource{}, fmt.Errorf("marshal index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(w.staging, indexFileName), raw, 0640); err != nil {
		_ = w.cleanup()
		return Resource{}, fmt.Errorf("write index: %w", err)
	}

	final := w.store.dir(w.fp)
	if err := os.MkdirAll(filepath.Dir(final), 0750); err != nil {
		_ = w.cleanup()
		return Resource{}, fmt.Errorf("create shard dir: %w", err)
	}

	if err := os.Rename(w.staging, final); err != nil {
		_ = w.cleanup()
		// Losing the race to another writer is success: same fingerprint, same content.
		if exists, _ := w.store.Exists(context.Background(), w.fp); exists {
			w.store.logger.Debug("resource already committed by another writer",
				slog.String("fingerprint", string(w.fp)),
			)
			return res, nil
		}
		return Resource{}, fmt.Errorf("publish resource %s: %w", w.fp, err)
	}
	return res, nil
}

func (w *localWriter) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.cleanup()
}

func (w *localWriter) cleanup() error {
	w.artifact = NewArtifact()
	if err := os.RemoveAll(w.staging); err != nil {
		return fmt.Errorf("remove staging dir %s: %w", w.staging, err)
	}
	return nil
}

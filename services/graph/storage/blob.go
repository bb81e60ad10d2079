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
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// errBlobNotFound and errBlobExists are the two conditions every object
// backend must report distinctly.
var (
	errBlobNotFound = errors.New("blob not found")
	errBlobExists   = errors.New("blob already exists")
)

// blobBackend is the minimal object API shared by GCS and Azure.
type blobBackend interface {
	// put writes data under key. With ifAbsent set, it must fail with
	// errBlobExists when key is already present.
	put(ctx context.Context, key string, data []byte, ifAbsent bool) error

	// get returns the object under key or errBlobNotFound.
	get(ctx context.Context, key string) ([]byte, error)

	// exists reports whether key is present.
	exists(ctx context.Context, key string) (bool, error)

	// delete removes key. Missing keys are not an error.
	delete(ctx context.Context, key string) error

	close() error
}

// BlobStore stores artifacts in an object store.
//
// Layout:
//
//	{prefix}/{key}/index.json
//	{prefix}/{key}/{writer}/{name}
//
// where key is Fingerprint.Key.
//
// Every writer uploads its entries below its own writer id, then creates
// the index with an if-absent precondition. The index names the winning
// writer, so entries of losing or aborted writers are never read and are
// deleted by their owner.
type BlobStore struct {
	backend     blobBackend
	prefix      string
	kind        string
	concurrency int
	logger      *slog.Logger
}

func newBlobStore(kind string, backend blobBackend, prefix string, logger *slog.Logger) *BlobStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &BlobStore{
		backend:     backend,
		prefix:      strings.Trim(prefix, "/"),
		kind:        kind,
		concurrency: 8,
		logger:      logger.With(slog.String("store", kind)),
	}
}

// Kind returns the backend name, "gcs" or "azure".
func (s *BlobStore) Kind() string {
	return s.kind
}

func (s *BlobStore) key(parts ...string) string {
	if s.prefix == "" {
		return path.Join(parts...)
	}
	return path.Join(append([]string{s.prefix}, parts...)...)
}

func (s *BlobStore) indexKey(fp Fingerprint) string {
	return s.key(fp.Key(), indexFileName)
}

func (s *BlobStore) entryKey(fp Fingerprint, writer, name string) string {
	return s.key(fp.Key(), writer, name)
}

// Exists reports whether fp has a committed index.
func (s *BlobStore) Exists(ctx context.Context, fp Fingerprint) (bool, error) {
	if err := fp.Validate(); err != nil {
		return false, err
	}
	ok, err := s.backend.exists(ctx, s.indexKey(fp))
	if err != nil {
		return false, fmt.Errorf("check resource %s: %w", fp, err)
	}
	return ok, nil
}

// Begin returns a writer that uploads under a fresh writer id on Commit.
func (s *BlobStore) Begin(ctx context.Context, fp Fingerprint) (Writer, error) {
	if err := fp.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	writer := uuid.NewString()
	var (
		mu       sync.Mutex
		uploaded []string
	)
	cleanup := func() error {
		mu.Lock()
		keys := uploaded
		uploaded = nil
		mu.Unlock()
		return s.deleteAll(context.WithoutCancel(ctx), keys)
	}
	commit := func(a *Artifact) (Resource, error) {
		res := Resource{Fingerprint: fp}
		for _, name := range a.Names() {
			key := s.entryKey(fp, writer, name)
			mu.Lock()
			uploaded = append(uploaded, key)
			mu.Unlock()
			if err := s.backend.put(ctx, key, a.entries[name], false); err != nil {
				return Resource{}, fmt.Errorf("upload entry %q of %s: %w", name, fp, err)
			}
		}
		raw, err := json.Marshal(newIndex(fp, writer, a))
		if err != nil {
			return Resource{}, fmt.Errorf("marshal index: %w", err)
		}
		err = s.backend.put(ctx, s.indexKey(fp), raw, true)
		if errors.Is(err, errBlobExists) {
			s.logger.Debug("resource already committed by another writer",
				slog.String("fingerprint", string(fp)),
			)
			if cerr := cleanup(); cerr != nil {
				s.logger.Warn("failed to remove redundant entries",
					slog.String("fingerprint", string(fp)),
					slog.String("error", cerr.Error()),
				)
			}
			return res, nil
		}
		if err != nil {
			return Resource{}, fmt.Errorf("publish index for %s: %w", fp, err)
		}
		return res, nil
	}
	return newStagedWriter(fp, commit, cleanup), nil
}

func (s *BlobStore) deleteAll(ctx context.Context, keys []string) error {
	var errs []error
	for _, key := range keys {
		if err := s.backend.delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Read loads the index and fetches its entries in parallel.
func (s *BlobStore) Read(ctx context.Context, r Resource) (*Artifact, error) {
	fp := r.Fingerprint
	if err := fp.Validate(); err != nil {
		return nil, err
	}
	raw, err := s.backend.get(ctx, s.indexKey(fp))
	if errors.Is(err, errBlobNotFound) {
		return nil, notFound(fp)
	}
	if err != nil {
		return nil, fmt.Errorf("read index for %s: %w", fp, err)
	}
	var idx index
	if err := json.Unmarshal(raw, &idx); err != nil {
		return nil, fmt.Errorf("%w: index for %s: %v", ErrCorruptArtifact, fp, err)
	}

	data := make([][]byte, len(idx.Entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, entry := range idx.Entries {
		g.Go(func() error {
			b, err := s.backend.get(gctx, s.entryKey(fp, idx.Writer, entry.Name))
			if err != nil {
				return fmt.Errorf("%w: entry %q of %s: %v", ErrCorruptArtifact, entry.Name, fp, err)
			}
			if err := entry.verify(b); err != nil {
				return err
			}
			data[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	a := NewArtifact()
	for i, entry := range idx.Entries {
		a.entries[entry.Name] = data[i]
	}
	return a, nil
}

// Close releases the backend client.
func (s *BlobStore) Close() error {
	return s.backend.close()
}

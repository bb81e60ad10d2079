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
	"sync"
)

// MemoryStore keeps artifacts in process memory. Data is lost on Close.
type MemoryStore struct {
	mu        sync.RWMutex
	artifacts map[Fingerprint]*Artifact
	closed    bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{artifacts: make(map[Fingerprint]*Artifact)}
}

// Exists reports whether fp has been committed.
func (s *MemoryStore) Exists(ctx context.Context, fp Fingerprint) (bool, error) {
	if err := fp.Validate(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrStoreClosed
	}
	_, ok := s.artifacts[fp]
	return ok, nil
}

// Begin returns a buffered writer for fp.
func (s *MemoryStore) Begin(ctx context.Context, fp Fingerprint) (Writer, error) {
	if err := fp.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newStagedWriter(fp, func(a *Artifact) (Resource, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return Resource{}, ErrStoreClosed
		}
		if _, ok := s.artifacts[fp]; !ok {
			s.artifacts[fp] = copyArtifact(a)
		}
		return Resource{Fingerprint: fp}, nil
	}, nil), nil
}

// Read returns a copy of the artifact committed for r.
func (s *MemoryStore) Read(ctx context.Context, r Resource) (*Artifact, error) {
	if err := r.Fingerprint.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	a, ok := s.artifacts[r.Fingerprint]
	if !ok {
		return nil, notFound(r.Fingerprint)
	}
	return copyArtifact(a), nil
}

// Close drops all artifacts.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.artifacts = nil
	return nil
}

func copyArtifact(a *Artifact) *Artifact {
	out := NewArtifact()
	for name, data := range a.entries {
		out.entries[name] = cloneBytes(data)
	}
	return out
}

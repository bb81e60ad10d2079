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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// Fingerprint is the content address of a Resource.
type Fingerprint string

// Validate returns ErrInvalidFingerprint if f is empty. Any other string
// is a usable fingerprint.
func (f Fingerprint) Validate() error {
	if f == "" {
		return fmt.Errorf("%w: empty", ErrInvalidFingerprint)
	}
	return nil
}

// Key returns the hex SHA-256 of f. Backends address artifacts by Key so
// that any fingerprint is safe as a path segment or object key.
func (f Fingerprint) Key() string {
	sum := sha256.Sum256([]byte(f))
	return hex.EncodeToString(sum[:])
}

// String returns the fingerprint as a string.
func (f Fingerprint) String() string {
	return string(f)
}

// Resource is an immutable handle to a committed artifact.
type Resource struct {
	// Fingerprint is the content address the artifact was committed under.
	Fingerprint Fingerprint `json:"fingerprint" yaml:"fingerprint"`

	// Node is the graph node that produced the artifact, for diagnostics.
	Node string `json:"node,omitempty" yaml:"node,omitempty"`
}

// IsZero reports whether r is the zero Resource.
func (r Resource) IsZero() bool {
	return r.Fingerprint == ""
}

// Store is durable, fingerprint-addressed artifact storage.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent use.
type Store interface {
	// Exists reports whether a committed artifact exists for fp.
	Exists(ctx context.Context, fp Fingerprint) (bool, error)

	// Begin acquires a scoped Writer for fp. The caller must end it with
	// exactly one of Commit or Abort; prefer the Write helper.
	Begin(ctx context.Context, fp Fingerprint) (Writer, error)

	// Read returns the artifact for r. Returns an error matching
	// ErrResourceNotFound when nothing was committed. Read has no side effects.
	Read(ctx context.Context, r Resource) (*Artifact, error)

	// Close releases backend resources.
	Close() error
}

// Writer stages entries for one fingerprint.
type Writer interface {
	// Put stages data under name.
	Put(name string, data []byte) error

	// Commit publishes the staged entries. If another writer already
	// committed the fingerprint, Commit discards the staged data and returns
	// the existing Resource.
	Commit() (Resource, error)

	// Abort discards staged data. Calling Abort after Commit is a no-op.
	Abort() error
}

// Write runs fn with a scoped Writer for fp and commits on success.
//
// Description:
//
//	Any error returned by fn, a failed Commit, or a panic inside fn aborts
//	the write so that no partial artifact becomes visible. Panics are
//	re-raised after the abort.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	s - The store to write to.
//	fp - The fingerprint to commit under.
//	fn - Stages entries through the Writer.
//
// Outputs:
//
//	Resource - The committed resource.
//	error - Non-nil if staging or committing fails.
func Write(ctx context.Context, s Store, fp Fingerprint, fn func(w Writer) error) (res Resource, err error) {
	w, err := s.Begin(ctx, fp)
	if err != nil {
		return Resource{}, err
	}

	done := false
	defer func() {
		if done {
			return
		}
		if p := recover(); p != nil {
			_ = w.Abort()
			panic(p)
		}
		_ = w.Abort()
	}()

	if err := fn(w); err != nil {
		return Resource{}, err
	}
	res, err = w.Commit()
	if err != nil {
		return Resource{}, err
	}
	done = true
	return res, nil
}

// WriteArtifact commits every entry of a under fp.
func WriteArtifact(ctx context.Context, s Store, fp Fingerprint, a *Artifact) (Resource, error) {
	return Write(ctx, s, fp, func(w Writer) error {
		for _, name := range a.Names() {
			data, _ := a.Get(name)
			if err := w.Put(name, data); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteBytes commits data as a single-blob artifact under fp.
func WriteBytes(ctx context.Context, s Store, fp Fingerprint, data []byte) (Resource, error) {
	return WriteArtifact(ctx, s, fp, BytesArtifact(data))
}

// ReadBytes reads the single-blob payload of r.
func ReadBytes(ctx context.Context, s Store, r Resource) ([]byte, error) {
	a, err := s.Read(ctx, r)
	if err != nil {
		return nil, err
	}
	data, ok := a.Get(DataEntry)
	if !ok {
		return nil, fmt.Errorf("%w: resource %s has no %q entry", ErrCorruptArtifact, r.Fingerprint, DataEntry)
	}
	return data, nil
}

// stagedWriter buffers entries in memory and hands them to a backend commit
// function. Used by every backend except LocalStore.
type stagedWriter struct {
	mu       sync.Mutex
	fp       Fingerprint
	artifact *Artifact
	closed   bool
	commit   func(a *Artifact) (Resource, error)
	abort    func() error
}

func newStagedWriter(fp Fingerprint, commit func(*Artifact) (Resource, error), abort func() error) *stagedWriter {
	return &stagedWriter{
		fp:       fp,
		artifact: NewArtifact(),
		commit:   commit,
		abort:    abort,
	}
}

func (w *stagedWriter) Put(name string, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	return w.artifact.Set(name, data)
}

func (w *stagedWriter) Commit() (Resource, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return Resource{}, ErrWriterClosed
	}
	w.closed = true
	res, err := w.commit(w.artifact)
	if err != nil && w.abort != nil {
		_ = w.abort()
	}
	return res, err
}

func (w *stagedWriter) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	w.artifact = NewArtifact()
	if w.abort != nil {
		return w.abort()
	}
	return nil
}

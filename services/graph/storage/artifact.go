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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// DataEntry is the entry name used for single-blob artifacts.
const DataEntry = "data"

// Artifact is the payload of a Resource: a set of named byte entries.
//
// A single blob lives under DataEntry. A directory maps each file's
// slash-separated relative path to its content.
type Artifact struct {
	entries map[string][]byte
}

// NewArtifact returns an empty artifact.
func NewArtifact() *Artifact {
	return &Artifact{entries: make(map[string][]byte)}
}

// BytesArtifact returns an artifact holding data under DataEntry.
func BytesArtifact(data []byte) *Artifact {
	a := NewArtifact()
	a.entries[DataEntry] = cloneBytes(data)
	return a
}

// Set stores a copy of data under name.
func (a *Artifact) Set(name string, data []byte) error {
	if err := ValidateEntryName(name); err != nil {
		return err
	}
	a.entries[name] = cloneBytes(data)
	return nil
}

// Get returns the entry stored under name.
func (a *Artifact) Get(name string) ([]byte, bool) {
	if a == nil {
		return nil, false
	}
	data, ok := a.entries[name]
	return data, ok
}

// Bytes returns the DataEntry payload, or nil when absent.
func (a *Artifact) Bytes() []byte {
	data, _ := a.Get(DataEntry)
	return data
}

// Names returns the entry names in lexical order.
func (a *Artifact) Names() []string {
	if a == nil {
		return nil
	}
	names := make([]string, 0, len(a.entries))
	for name := range a.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of entries.
func (a *Artifact) Len() int {
	if a == nil {
		return 0
	}
	return len(a.entries)
}

// Size returns the total payload size in bytes.
func (a *Artifact) Size() int64 {
	var total int64
	for _, data := range a.entriesOrNil() {
		total += int64(len(data))
	}
	return total
}

func (a *Artifact) entriesOrNil() map[string][]byte {
	if a == nil {
		return nil
	}
	return a.entries
}

// ArtifactFromDir loads every regular file below dir into an artifact.
func ArtifactFromDir(dir string) (*Artifact, error) {
	a := NewArtifact()
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		return a.Set(filepath.ToSlash(rel), data)
	})
	if err != nil {
		return nil, fmt.Errorf("load artifact from %s: %w", dir, err)
	}
	return a, nil
}

// WriteDir materializes the artifact below dir, creating it if needed.
func (a *Artifact) WriteDir(dir string) error {
	for _, name := range a.Names() {
		target := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
			return fmt.Errorf("create %s: %w", filepath.Dir(target), err)
		}
		if err := os.WriteFile(target, a.entries[name], 0640); err != nil {
			return fmt.Errorf("write %s: %w", target, err)
		}
	}
	return nil
}

// ValidateEntryName checks that name is a clean, slash-separated relative path.
func ValidateEntryName(name string) error {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return fmt.Errorf("%w: %q", ErrInvalidEntryName, name)
	}
	if path.Clean(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidEntryName, name)
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." || seg == "." {
			return fmt.Errorf("%w: %q", ErrInvalidEntryName, name)
		}
	}
	return nil
}

// index is the commit record every backend publishes last.
type index struct {
	Version     int          `json:"version"`
	Fingerprint Fingerprint  `json:"fingerprint"`
	Writer      string       `json:"writer,omitempty"`
	Entries     []indexEntry `json:"entries"`
}

type indexEntry struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

const indexVersion = 1

func newIndex(fp Fingerprint, writer string, a *Artifact) *index {
	idx := &index{Version: indexVersion, Fingerprint: fp, Writer: writer}
	for _, name := range a.Names() {
		data := a.entries[name]
		idx.Entries = append(idx.Entries, indexEntry{
			Name:   name,
			Size:   int64(len(data)),
			SHA256: digest(data),
		})
	}
	return idx
}

// verify checks data against the recorded digest for an entry.
func (e indexEntry) verify(data []byte) error {
	if int64(len(data)) != e.Size || digest(data) != e.SHA256 {
		return fmt.Errorf("%w: entry %q", ErrCorruptArtifact, e.Name)
	}
	return nil
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func cloneBytes(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	return out
}

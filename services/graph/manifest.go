// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/AleutianAI/AleutianGraph/services/graph/recipe"
	"github.com/AleutianAI/AleutianGraph/services/graph/storage"
)

// ManifestVersion is the current manifest format version (semver).
const ManifestVersion = "1.0.0"

// Manifest records what a training run produced.
//
// It carries the configuration document, so the predict schema can be
// rebuilt, and the Resource of every train node, keyed by node name. Load
// nodes find their artifact through their ResourceFrom.
type Manifest struct {
	Document  *recipe.Document            `json:"document"`
	Resources map[string]storage.Resource `json:"resources"`
	TrainedAt time.Time                   `json:"trained_at"`
}

// NewManifest creates a manifest for doc with a copy of resources.
func NewManifest(doc *recipe.Document, resources map[string]storage.Resource) *Manifest {
	m := &Manifest{
		Document:  doc,
		Resources: make(map[string]storage.Resource, len(resources)),
		TrainedAt: time.Now().UTC(),
	}
	for k, v := range resources {
		m.Resources[k] = v
	}
	return m
}

// Nodes returns the node names holding a resource, sorted.
func (m *Manifest) Nodes() []string {
	out := make([]string, 0, len(m.Resources))
	for name := range m.Resources {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// manifestFile is the on-disk envelope. Checksum covers the compact JSON
// encoding of Manifest.
type manifestFile struct {
	Version  string          `json:"version"`
	Checksum string          `json:"checksum"`
	Manifest json.RawMessage `json:"manifest"`
}

func checksum(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Marshal encodes the manifest with its version and checksum.
func (m *Manifest) Marshal() ([]byte, error) {
	if m == nil || m.Document == nil {
		return nil, fmt.Errorf("%w: manifest has no document", ErrInvalidInput)
	}
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return json.MarshalIndent(manifestFile{
		Version:  ManifestVersion,
		Checksum: checksum(body),
		Manifest: body,
	}, "", "  ")
}

// ParseManifest decodes and verifies an encoded manifest.
//
// Outputs:
//
//	*Manifest - The manifest. Never nil on success.
//	error - ErrManifestVersionMismatch, ErrManifestCorrupt, or a decode or
//	        document validation error.
func ParseManifest(data []byte) (*Manifest, error) {
	var f manifestFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	if f.Version != ManifestVersion {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrManifestVersionMismatch, f.Version, ManifestVersion)
	}

	var body bytes.Buffer
	if err := json.Compact(&body, f.Manifest); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestCorrupt, err)
	}
	if checksum(body.Bytes()) != f.Checksum {
		return nil, ErrManifestCorrupt
	}

	var m Manifest
	if err := json.Unmarshal(body.Bytes(), &m); err != nil {
		return nil, fmt.Errorf("unmarshal manifest body: %w", err)
	}
	if m.Document == nil {
		return nil, fmt.Errorf("%w: manifest has no document", ErrManifestCorrupt)
	}
	if err := m.Document.Validate(); err != nil {
		return nil, err
	}
	if m.Resources == nil {
		m.Resources = map[string]storage.Resource{}
	}
	return &m, nil
}

// SaveManifest writes m to path atomically using temp file + rename.
//
// Inputs:
//
//	m - The manifest. Must not be nil.
//	path - Destination file. Parent directories are created.
//
// Outputs:
//
//	error - Non-nil if encoding or the file write fails.
func SaveManifest(m *Manifest, path string) error {
	if path == "" {
		return fmt.Errorf("%w: path must not be empty", ErrInvalidInput)
	}
	data, err := m.Marshal()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}
	tempFile, err := os.CreateTemp(dir, ".manifest-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("sync manifest: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close manifest: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename manifest: %w", err)
	}

	success = true
	return nil
}

// LoadManifest reads and verifies the manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: path must not be empty", ErrInvalidInput)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}

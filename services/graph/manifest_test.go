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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGraph/services/graph/storage"
)

func testManifest(t *testing.T) *Manifest {
	doc := parseDoc(t, `
language: en
pipeline:
  - name: Upper
  - name: Memo
    epochs: 3
    pattern: "<b>&</b>"
`)
	return NewManifest(doc, map[string]storage.Resource{
		"train_Memo": {Fingerprint: "abc123", Node: "train_Memo"},
	})
}

func TestManifest_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models", "latest.json")
	m := testManifest(t)

	require.NoError(t, SaveManifest(m, path))

	loaded, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, m.Resources, loaded.Resources)
	assert.Equal(t, "en", loaded.Document.Language)
	require.Len(t, loaded.Document.Pipeline, 2)
	assert.Equal(t, "Memo", loaded.Document.Pipeline[1].Name)
	assert.EqualValues(t, 3, loaded.Document.Pipeline[1].Config["epochs"])
	assert.Equal(t, "<b>&</b>", loaded.Document.Pipeline[1].Config["pattern"])
	assert.True(t, m.TrainedAt.Equal(loaded.TrainedAt))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not remain")
}

func TestManifest_DetectsTampering(t *testing.T) {
	data, err := testManifest(t).Marshal()
	require.NoError(t, err)

	tampered := bytes.Replace(data, []byte("abc123"), []byte("def456"), 1)
	require.NotEqual(t, data, tampered)

	_, err = ParseManifest(tampered)
	assert.ErrorIs(t, err, ErrManifestCorrupt)
}

func TestManifest_VersionMismatch(t *testing.T) {
	data, err := testManifest(t).Marshal()
	require.NoError(t, err)

	old := bytes.Replace(data, []byte(`"version": "`+ManifestVersion+`"`), []byte(`"version": "0.1.0"`), 1)
	_, err = ParseManifest(old)
	assert.ErrorIs(t, err, ErrManifestVersionMismatch)
}

func TestManifest_InvalidInput(t *testing.T) {
	assert.ErrorIs(t, SaveManifest(testManifest(t), ""), ErrInvalidInput)
	assert.ErrorIs(t, SaveManifest(&Manifest{}, filepath.Join(t.TempDir(), "m.json")), ErrInvalidInput)

	_, err := LoadManifest("")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = LoadManifest(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

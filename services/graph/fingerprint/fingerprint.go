// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fingerprint computes the Merkle-style cache keys of graph nodes.
//
// A node's fingerprint covers its component identity, its kind, its
// configuration, the fingerprints of every input by parameter name, and,
// for source nodes, a digest of the run input. A change anywhere upstream
// therefore changes every downstream fingerprint.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"sort"

	"github.com/AleutianAI/AleutianGraph/services/graph/schema"
	"github.com/AleutianAI/AleutianGraph/services/graph/storage"
)

// version is mixed into every fingerprint. Bump it when the encoding changes.
const version = "aleutian.graph.fingerprint/v1"

// Spec is everything that determines a node's output.
type Spec struct {
	Component string
	Type      schema.ComponentType
	Kind      schema.Kind

	// Config is the frozen node configuration.
	Config map[string]any

	// Inputs maps parameter name to the producing node's fingerprint.
	Inputs map[string]storage.Fingerprint

	// RunInput is the digest of the run input for source nodes, else "".
	RunInput string

	// Resource is the fingerprint of the artifact a load node consumes.
	Resource storage.Fingerprint
}

// ForNode returns the Spec for n with the given input fingerprints.
func ForNode(n schema.Node, inputs map[string]storage.Fingerprint, runInput string) Spec {
	s := Spec{
		Component: n.Component,
		Type:      n.Type,
		Kind:      n.Kind,
		Config:    n.Config,
		Inputs:    inputs,
	}
	if n.Source {
		s.RunInput = runInput
	}
	return s
}

// Compute returns the fingerprint of s.
//
// Description:
//
//	Fields are length-prefixed so no two distinct specs share an encoding.
//	Inputs are written sorted by parameter name. Config is canonicalized
//	first, so map ordering never affects the result.
//
// Outputs:
//
//	storage.Fingerprint - 64 lowercase hex characters.
//	error - Non-nil if the configuration holds values that cannot be encoded.
func Compute(s Spec) (storage.Fingerprint, error) {
	cfg, err := Canonical(s.Config)
	if err != nil {
		return "", fmt.Errorf("canonicalize config of %s: %w", s.Component, err)
	}

	h := sha256.New()
	writeField(h, []byte(version))
	writeField(h, []byte(s.Component))
	writeField(h, []byte(s.Type))
	writeField(h, []byte(s.Kind))
	writeField(h, cfg)

	params := make([]string, 0, len(s.Inputs))
	for p := range s.Inputs {
		params = append(params, p)
	}
	sort.Strings(params)
	writeCount(h, len(params))
	for _, p := range params {
		writeField(h, []byte(p))
		writeField(h, []byte(s.Inputs[p]))
	}

	writeField(h, []byte(s.RunInput))
	writeField(h, []byte(s.Resource))

	return storage.Fingerprint(hex.EncodeToString(h.Sum(nil))), nil
}

// Value returns a content digest of an arbitrary run input.
//
// Byte slices and strings are hashed directly. Anything else is hashed
// through its canonical JSON encoding. A nil value digests to "".
func Value(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	var data []byte
	switch t := v.(type) {
	case []byte:
		data = t
	case string:
		data = []byte(t)
	default:
		var err error
		data, err = Canonical(t)
		if err != nil {
			return "", err
		}
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Canonical encodes v as JSON with map keys sorted at every level.
//
// YAML decoders may produce map[any]any; those keys are converted with
// fmt.Sprint before encoding.
func Canonical(v any) ([]byte, error) {
	data, err := json.Marshal(normalize(v))
	if err != nil {
		return nil, err
	}
	return data, nil
}

func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = normalize(vv)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[fmt.Sprint(k)] = normalize(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = normalize(vv)
		}
		return out
	default:
		return v
	}
}

func writeField(h hash.Hash, data []byte) {
	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(len(data)))
	h.Write(length[:])
	h.Write(data)
}

func writeCount(h hash.Hash, n int) {
	var count [8]byte
	binary.BigEndian.PutUint64(count[:], uint64(n))
	h.Write(count[:])
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package components

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/AleutianAI/AleutianGraph/services/graph/component"
	"github.com/AleutianAI/AleutianGraph/services/graph/storage"
)

// Sentinel errors for the components package.
var (
	// ErrInvalidData is returned for inputs a component cannot interpret.
	ErrInvalidData = errors.New("invalid component input")

	// ErrInvalidConfig is returned for malformed step configuration.
	ErrInvalidConfig = errors.New("invalid component configuration")
)

// Configuration values arrive from YAML (int) or JSON (float64), so numeric
// readers accept both.

func intOption(cfg map[string]any, key string, def int) (int, error) {
	v, ok := cfg[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%w: %s must be an integer, got %v", ErrInvalidConfig, key, n)
		}
		return int(n), nil
	}
	return 0, fmt.Errorf("%w: %s must be an integer, got %T", ErrInvalidConfig, key, v)
}

func floatOption(cfg map[string]any, key string, def float64) (float64, error) {
	v, ok := cfg[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	}
	return 0, fmt.Errorf("%w: %s must be a number, got %T", ErrInvalidConfig, key, v)
}

func boolOption(cfg map[string]any, key string, def bool) (bool, error) {
	v, ok := cfg[key]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s must be a boolean, got %T", ErrInvalidConfig, key, v)
	}
	return b, nil
}

func stringsOption(cfg map[string]any, key string) ([]string, error) {
	v, ok := cfg[key]
	if !ok || v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		if s, ok := v.([]string); ok {
			return append([]string(nil), s...), nil
		}
		return nil, fmt.Errorf("%w: %s must be a list, got %T", ErrInvalidConfig, key, v)
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s entries must be strings, got %T", ErrInvalidConfig, key, item)
		}
		out = append(out, s)
	}
	return out, nil
}

// dataInput returns the upstream batch, or the run input for source nodes.
func dataInput(in component.Inputs) (*Batch, error) {
	if v, ok := in.Get(component.ParamData); ok {
		return toBatch(v)
	}
	if v, ok := in.Get(component.ParamInput); ok {
		return toBatch(v)
	}
	return nil, fmt.Errorf("%w: no %q or %q input", ErrInvalidData, component.ParamData, component.ParamInput)
}

// jsonArtifact encodes v as a single-blob artifact.
func jsonArtifact(v any) (*storage.Artifact, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return storage.BytesArtifact(data), nil
}

// decodeArtifact decodes a single-blob JSON artifact into v. It reports
// false when a is nil, meaning there is nothing to restore.
func decodeArtifact(a *storage.Artifact, v any) (bool, error) {
	if a == nil {
		return false, nil
	}
	data, ok := a.Get(storage.DataEntry)
	if !ok {
		return false, fmt.Errorf("%w: artifact has no %q entry", storage.ErrCorruptArtifact, storage.DataEntry)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode artifact: %w", err)
	}
	return true, nil
}

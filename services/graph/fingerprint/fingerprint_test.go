// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGraph/services/graph/schema"
	"github.com/AleutianAI/AleutianGraph/services/graph/storage"
)

func baseSpec() Spec {
	return Spec{
		Component: "KeywordIntentClassifier",
		Type:      schema.TypeIntentClassifier,
		Kind:      schema.KindTrain,
		Config:    map[string]any{"threshold": 0.5, "nested": map[string]any{"a": 1, "b": []any{"x", "y"}}},
		Inputs:    map[string]storage.Fingerprint{"data": "abc", "model": "def"},
	}
}

func mustCompute(t *testing.T, s Spec) storage.Fingerprint {
	t.Helper()
	fp, err := Compute(s)
	require.NoError(t, err)
	return fp
}

func TestCompute_Deterministic(t *testing.T) {
	first := mustCompute(t, baseSpec())
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, mustCompute(t, baseSpec()))
	}
	assert.Len(t, string(first), 64)
	assert.NoError(t, first.Validate())
}

func TestCompute_SensitiveToEveryField(t *testing.T) {
	base := mustCompute(t, baseSpec())

	mutations := map[string]func(s *Spec){
		"component": func(s *Spec) { s.Component = "Other" },
		"type":      func(s *Spec) { s.Type = schema.TypeEntityExtractor },
		"kind":      func(s *Spec) { s.Kind = schema.KindProcess },
		"config":    func(s *Spec) { s.Config["threshold"] = 0.6 },
		"nested":    func(s *Spec) { s.Config["nested"].(map[string]any)["a"] = 2 },
		"input fp":  func(s *Spec) { s.Inputs["data"] = "abd" },
		"param":     func(s *Spec) { s.Inputs = map[string]storage.Fingerprint{"text": "abc", "model": "def"} },
		"run input": func(s *Spec) { s.RunInput = "digest" },
		"resource":  func(s *Spec) { s.Resource = "res" },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			s := baseSpec()
			mutate(&s)
			assert.NotEqual(t, base, mustCompute(t, s))
		})
	}
}

func TestCompute_NoFieldAmbiguity(t *testing.T) {
	a := Spec{Component: "ab", Kind: schema.KindProcess}
	b := Spec{Component: "a", Type: "b", Kind: schema.KindProcess}
	assert.NotEqual(t, mustCompute(t, a), mustCompute(t, b))
}

func TestCompute_YAMLMapsMatchStringMaps(t *testing.T) {
	a := Spec{Component: "c", Config: map[string]any{"m": map[string]any{"k": "v"}}}
	b := Spec{Component: "c", Config: map[string]any{"m": map[any]any{"k": "v"}}}
	assert.Equal(t, mustCompute(t, a), mustCompute(t, b))
}

func TestForNode_OnlySourcesSeeRunInput(t *testing.T) {
	n := schema.Node{Name: "x", Component: "c", Type: schema.TypeTokenizer, Kind: schema.KindProcess}
	assert.Empty(t, ForNode(n, nil, "digest").RunInput)

	n.Source = true
	assert.Equal(t, "digest", ForNode(n, nil, "digest").RunInput)
}

func TestValue(t *testing.T) {
	empty, err := Value(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	a, err := Value(map[string]any{"x": 1, "y": 2})
	require.NoError(t, err)
	b, err := Value(map[string]any{"y": 2, "x": 1})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	s, err := Value("hello")
	require.NoError(t, err)
	raw, err := Value([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, s, raw)

	_, err = Value(map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package recipe

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGraph/services/graph/component"
	"github.com/AleutianAI/AleutianGraph/services/graph/registry"
	"github.com/AleutianAI/AleutianGraph/services/graph/schema"
)

type noop struct{}

func (noop) Process(context.Context, component.Inputs, component.ExecutionContext) (any, error) {
	return nil, nil
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	RegisterDefaults()
	r := registry.New()
	add := func(name string, typ schema.ComponentType, trainable bool) {
		r.MustRegister(registry.Entry{
			Name:      name,
			Types:     []schema.ComponentType{typ},
			Trainable: trainable,
			Factory:   func(map[string]any) (component.Component, error) { return noop{}, nil },
		})
	}
	add("Provider", schema.TypeModelProvider, false)
	add("Tokenizer", schema.TypeTokenizer, false)
	add("Featurizer", schema.TypeFeaturizer, true)
	add("Classifier", schema.TypeIntentClassifier, true)
	add("Memo", schema.TypePolicyWithoutEndToEnd, true)
	add("E2E", schema.TypePolicyWithEndToEnd, true)
	add("Rules", schema.TypePolicyWithoutEndToEnd, false)
	return r
}

func translate(t *testing.T, yamlDoc string, mode schema.Mode) (*schema.Schema, error) {
	t.Helper()
	doc, err := Parse([]byte(yamlDoc))
	require.NoError(t, err)
	return Translate(doc, mode, testRegistry(t))
}

func inputsOf(t *testing.T, s *schema.Schema, name string) map[string]string {
	t.Helper()
	n, ok := s.Node(name)
	require.True(t, ok, "missing node %s", name)
	out := make(map[string]string, len(n.Inputs))
	for _, in := range n.Inputs {
		out[in.Param] = in.From
	}
	return out
}

const fullDoc = `
recipe: default.v1
language: en
pipeline:
  - name: Provider
  - name: Tokenizer
  - name: Featurizer
    model_from: Provider
    max_features: 10
  - name: Classifier
    epochs: 5
policies:
  - name: Memo
  - name: E2E
`

func TestParse_SplitsReservedKeys(t *testing.T) {
	doc, err := Parse([]byte(`
pipeline:
  - name: Featurizer
    id: feats
    trainable: false
    model_from: Provider
    ngram: 2
`))
	require.NoError(t, err)
	require.Len(t, doc.Pipeline, 1)

	step := doc.Pipeline[0]
	assert.Equal(t, "Featurizer", step.Name)
	assert.Equal(t, "feats", step.ID)
	assert.Equal(t, "Provider", step.ModelFrom)
	require.NotNil(t, step.Trainable)
	assert.False(t, *step.Trainable)
	assert.Equal(t, map[string]any{"ngram": 2}, step.Config)
}

func TestParse_JSON(t *testing.T) {
	doc, err := Parse([]byte(`{"language": "en", "pipeline": [{"name": "Tokenizer", "lowercase": true}]}`))
	require.NoError(t, err)
	assert.Equal(t, "en", doc.Language)
	assert.Equal(t, true, doc.Pipeline[0].Config["lowercase"])
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("pipeline:\n  - lowercase: true\n"))
	assert.ErrorIs(t, err, schema.ErrMissingField)

	_, err = Parse([]byte("pipeline:\n  - name: [not, a, string]\n"))
	var cfgErr *schema.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))

	_, err = Parse([]byte("pipeline:\n  - name: Tokenizer\n    id: \"bad id\"\n"))
	assert.ErrorIs(t, err, schema.ErrInvalidNode)
}

func TestStep_JSONRoundTrip(t *testing.T) {
	frozen := false
	step := Step{Name: "Classifier", ID: "clf", Trainable: &frozen, Config: map[string]any{"epochs": 3.0}}

	data, err := json.Marshal(step)
	require.NoError(t, err)

	var back Step
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, step.Name, back.Name)
	assert.Equal(t, step.ID, back.ID)
	assert.Equal(t, false, *back.Trainable)
	assert.Equal(t, 3.0, back.Config["epochs"])
}

func TestDefaultRecipe_TrainShape(t *testing.T) {
	s, err := translate(t, fullDoc, schema.ModeTrain)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"provide_Provider",
		"run_Tokenizer",
		"train_Featurizer", "run_Featurizer",
		"train_Classifier", "run_Classifier",
		"train_Memo",
		"train_E2E",
	}, s.Names())

	tok, _ := s.Node("run_Tokenizer")
	assert.True(t, tok.Source)
	assert.Equal(t, schema.KindProcess, tok.Kind)

	assert.Equal(t, map[string]string{"data": "run_Tokenizer", "model": "provide_Provider"}, inputsOf(t, s, "train_Featurizer"))
	assert.Equal(t, map[string]string{
		"resource": "train_Featurizer",
		"data":     "run_Tokenizer",
		"model":    "provide_Provider",
	}, inputsOf(t, s, "run_Featurizer"))

	clf, _ := s.Node("train_Classifier")
	assert.True(t, clf.Trainable)
	assert.Equal(t, schema.KindTrain, clf.Kind)
	assert.Equal(t, 5, clf.Config["epochs"])

	memo, _ := s.Node("train_Memo")
	assert.True(t, memo.Source, "policy without end-to-end consumes the raw run input")
	assert.Empty(t, memo.Inputs)

	assert.Equal(t, map[string]string{"data": "run_Classifier"}, inputsOf(t, s, "train_E2E"))
}

func TestDefaultRecipe_PredictShape(t *testing.T) {
	s, err := translate(t, fullDoc, schema.ModePredict)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"provide_Provider",
		"run_Tokenizer",
		"load_Featurizer", "run_Featurizer",
		"load_Classifier", "run_Classifier",
		"load_Memo", "run_Memo",
		"load_E2E", "run_E2E",
	}, s.Names())

	for _, name := range s.Names() {
		n, _ := s.Node(name)
		assert.NotEqual(t, schema.KindTrain, n.Kind, "predict schema must not train (%s)", name)
	}

	load, _ := s.Node("load_Featurizer")
	assert.Equal(t, schema.KindLoad, load.Kind)
	assert.Equal(t, "train_Featurizer", load.ResourceFrom)
	assert.Equal(t, map[string]string{"model": "provide_Provider"}, inputsOf(t, s, "load_Featurizer"))

	loadClf, _ := s.Node("load_Classifier")
	assert.True(t, loadClf.Source)

	assert.Equal(t, map[string]string{"resource": "load_Memo"}, inputsOf(t, s, "run_Memo"))
	assert.Equal(t, map[string]string{"resource": "load_E2E", "data": "run_Classifier"}, inputsOf(t, s, "run_E2E"))
}

func TestDefaultRecipe_NoForwardReferencesAndAcyclic(t *testing.T) {
	docs := []string{
		fullDoc,
		"pipeline:\n  - name: Tokenizer\n",
		"policies:\n  - name: E2E\n",
		"pipeline:\n  - name: Classifier\n  - name: Classifier\n  - name: Classifier\n",
		"pipeline:\n  - name: Provider\n  - name: Classifier\n    model_from: Provider\npolicies:\n  - name: Rules\n  - name: E2E\n",
	}
	for _, doc := range docs {
		for _, mode := range []schema.Mode{schema.ModeTrain, schema.ModePredict} {
			s, err := translate(t, doc, mode)
			require.NoError(t, err)

			order := s.TopologicalOrder()
			require.Len(t, order, s.Len())
			for _, name := range s.Names() {
				for _, dep := range s.Dependencies(name) {
					assert.Less(t, s.Index(dep), s.Index(name), "%s consumes later node %s", name, dep)
				}
			}
		}
	}
}

func TestDefaultRecipe_RepeatedComponentIDs(t *testing.T) {
	s, err := translate(t, `
pipeline:
  - name: Tokenizer
  - name: Featurizer
  - name: Featurizer
  - name: Classifier
    id: intents
`, schema.ModeTrain)
	require.NoError(t, err)

	assert.True(t, s.Has("train_Featurizer1"))
	assert.True(t, s.Has("train_Featurizer2"))
	assert.True(t, s.Has("run_intents"))
	assert.Equal(t, map[string]string{"data": "run_Featurizer1"}, inputsOf(t, s, "train_Featurizer2"))
}

func TestDefaultRecipe_GeneratedIDsSkipExplicitIDs(t *testing.T) {
	s, err := translate(t, `
pipeline:
  - name: Tokenizer
  - name: Featurizer
    id: Featurizer2
  - name: Featurizer
  - name: Featurizer
`, schema.ModeTrain)
	require.NoError(t, err)

	assert.True(t, s.Has("train_Featurizer2"))
	assert.True(t, s.Has("train_Featurizer3"))
	assert.True(t, s.Has("train_Featurizer4"))
	assert.Equal(t, map[string]string{"data": "run_Featurizer3"}, inputsOf(t, s, "train_Featurizer4"))

	// A lone component whose name is used as another step's id is suffixed.
	s, err = translate(t, `
pipeline:
  - name: Featurizer
    id: Tokenizer
  - name: Tokenizer
`, schema.ModeTrain)
	require.NoError(t, err)
	assert.True(t, s.Has("train_Tokenizer"))
	assert.True(t, s.Has("run_Tokenizer1"))
}

func TestDefaultRecipe_Trainability(t *testing.T) {
	s, err := translate(t, "pipeline:\n  - name: Classifier\n    trainable: false\n", schema.ModeTrain)
	require.NoError(t, err)
	assert.Equal(t, []string{"run_Classifier"}, s.Names())

	_, err = translate(t, "pipeline:\n  - name: Tokenizer\n    trainable: true\n", schema.ModeTrain)
	assert.ErrorIs(t, err, schema.ErrInvalidNode)

	s, err = translate(t, "policies:\n  - name: Rules\n", schema.ModePredict)
	require.NoError(t, err)
	assert.Equal(t, []string{"run_Rules"}, s.Names())
}

func TestDefaultRecipe_Errors(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		sentinel error
	}{
		{"unknown component", "pipeline:\n  - name: Ghost\n", schema.ErrUnknownComponent},
		{"unresolved model_from", "pipeline:\n  - name: Featurizer\n    model_from: Nowhere\n", schema.ErrNodeNotFound},
		{"provider declared later", "pipeline:\n  - name: Featurizer\n    model_from: Provider\n  - name: Provider\n", schema.ErrNodeNotFound},
		{"policy in pipeline", "pipeline:\n  - name: Memo\n", schema.ErrInvalidNode},
		{"nlu in policies", "policies:\n  - name: Tokenizer\n", schema.ErrInvalidNode},
		{"empty", "language: en\n", schema.ErrMissingField},
		{"duplicate ids", "pipeline:\n  - name: Tokenizer\n    id: x\n  - name: Featurizer\n    id: x\n    trainable: false\n", schema.ErrDuplicateNode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := translate(t, tt.doc, schema.ModeTrain)
			require.Error(t, err)
			var cfgErr *schema.ConfigurationError
			assert.True(t, errors.As(err, &cfgErr))
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

const graphDoc = `
recipe: graph.v1
language: en
train_schema:
  - name: tokenize
    uses: Tokenizer
    kind: process
    source: true
  - name: train_intents
    uses: Classifier
    kind: train
    needs: {data: tokenize}
    config: {epochs: 2}
predict_schema:
  - name: tokenize
    uses: Tokenizer
    kind: process
    source: true
  - name: load_intents
    uses: Classifier
    kind: load
    resource_from: train_intents
    source: true
  - name: classify
    uses: Classifier
    kind: process
    needs: {data: tokenize, resource: load_intents}
`

func TestGraphRecipe(t *testing.T) {
	train, err := translate(t, graphDoc, schema.ModeTrain)
	require.NoError(t, err)
	assert.Equal(t, []string{"tokenize", "train_intents"}, train.Names())
	n, _ := train.Node("train_intents")
	assert.True(t, n.Trainable)
	assert.Equal(t, 2, n.Config["epochs"])

	predict, err := translate(t, graphDoc, schema.ModePredict)
	require.NoError(t, err)
	assert.Equal(t, []string{"tokenize", "load_intents", "classify"}, predict.Names())
	classify, _ := predict.Node("classify")
	assert.Equal(t, []schema.Input{{Param: "data", From: "tokenize"}, {Param: "resource", From: "load_intents"}}, classify.Inputs)
}

func TestGraphRecipe_NeedsListKeepsDeclaredOrder(t *testing.T) {
	doc := `
recipe: graph.v1
predict_schema:
  - {name: tokenize, uses: Tokenizer, kind: process, source: true}
  - {name: load_intents, uses: Classifier, kind: load, resource_from: train_intents, source: true}
  - name: classify
    uses: Classifier
    kind: process
    needs:
      - {param: resource, from: load_intents}
      - {param: data, from: tokenize}
`
	s, err := translate(t, doc, schema.ModePredict)
	require.NoError(t, err)
	classify, _ := s.Node("classify")
	assert.Equal(t, []schema.Input{{Param: "resource", From: "load_intents"}, {Param: "data", From: "tokenize"}}, classify.Inputs)

	parsed, err := Parse([]byte(`{"recipe": "graph.v1", "predict_schema": [` +
		`{"name": "a", "uses": "Tokenizer", "kind": "process", "needs": [{"param": "z", "from": "x"}, {"param": "b", "from": "y"}]},` +
		`{"name": "c", "uses": "Tokenizer", "kind": "process", "needs": {"z": "x", "b": "y"}}]}`))
	require.NoError(t, err)
	assert.Equal(t, Needs{{Param: "z", From: "x"}, {Param: "b", From: "y"}}, parsed.PredictSchema[0].Needs)
	assert.Equal(t, Needs{{Param: "b", From: "y"}, {Param: "z", From: "x"}}, parsed.PredictSchema[1].Needs)

	var direct Needs
	require.NoError(t, json.Unmarshal([]byte(`[{"param": "q", "from": "p"}, {"param": "a", "from": "p"}]`), &direct))
	assert.Equal(t, Needs{{Param: "q", From: "p"}, {Param: "a", From: "p"}}, direct)

	_, err = Parse([]byte("recipe: graph.v1\npredict_schema:\n  - {name: a, uses: Tokenizer, kind: process, needs: tokenize}\n"))
	assert.ErrorIs(t, err, schema.ErrInvalidNode)

	_, err = Parse([]byte("recipe: graph.v1\npredict_schema:\n  - {name: a, uses: Tokenizer, kind: process, needs: [{param: data}]}\n"))
	assert.ErrorIs(t, err, schema.ErrMissingField)
}

func TestGraphRecipe_Errors(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		mode     schema.Mode
		sentinel error
	}{
		{
			"missing predict schema",
			"recipe: graph.v1\ntrain_schema:\n  - {name: a, uses: Tokenizer, kind: process, source: true}\n",
			schema.ModePredict, schema.ErrMissingField,
		},
		{
			"cycle",
			"recipe: graph.v1\ntrain_schema:\n  - {name: a, uses: Tokenizer, kind: process, source: true}\n  - {name: b, uses: Tokenizer, kind: process, needs: {x: c}}\n  - {name: c, uses: Tokenizer, kind: process, needs: {x: b}}\n",
			schema.ModeTrain, schema.ErrCycleDetected,
		},
		{
			"forward reference",
			"recipe: graph.v1\ntrain_schema:\n  - {name: b, uses: Tokenizer, kind: process, needs: {x: a}}\n  - {name: a, uses: Tokenizer, kind: process, source: true}\n",
			schema.ModeTrain, schema.ErrForwardReference,
		},
		{
			"train in predict",
			"recipe: graph.v1\npredict_schema:\n  - {name: a, uses: Classifier, kind: train, source: true}\n",
			schema.ModePredict, schema.ErrInvalidNode,
		},
		{
			"untrainable train",
			"recipe: graph.v1\ntrain_schema:\n  - {name: a, uses: Tokenizer, kind: train, source: true}\n",
			schema.ModeTrain, schema.ErrInvalidNode,
		},
		{
			"wrong type",
			"recipe: graph.v1\ntrain_schema:\n  - {name: a, uses: Tokenizer, type: featurizer, kind: process, source: true}\n",
			schema.ModeTrain, schema.ErrInvalidNode,
		},
		{
			"unknown component",
			"recipe: graph.v1\ntrain_schema:\n  - {name: a, uses: Ghost, kind: process, source: true}\n",
			schema.ModeTrain, schema.ErrUnknownComponent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := translate(t, tt.doc, tt.mode)
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestTranslate_UnknownRecipe(t *testing.T) {
	_, err := translate(t, "recipe: magic.v9\npipeline:\n  - name: Tokenizer\n", schema.ModeTrain)
	assert.ErrorIs(t, err, ErrUnknownRecipe)
}

func TestTranslate_BadInputs(t *testing.T) {
	_, err := Translate(nil, schema.ModeTrain, testRegistry(t))
	assert.ErrorIs(t, err, schema.ErrMissingField)

	_, err = Translate(&Document{Pipeline: []Step{{Name: "Tokenizer"}}}, "serve", testRegistry(t))
	assert.ErrorIs(t, err, schema.ErrInvalidNode)
}

func TestRegisterDefaults(t *testing.T) {
	RegisterDefaults()
	RegisterDefaults()
	assert.Equal(t, []string{"default.v1", "graph.v1"}, Names())

	r, ok := Lookup(GraphRecipeName)
	require.True(t, ok)
	assert.IsType(t, GraphRecipe{}, r)
}

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
	"github.com/AleutianAI/AleutianGraph/services/graph/registry"
	"github.com/AleutianAI/AleutianGraph/services/graph/schema"
)

// GraphRecipeName identifies GraphRecipe.
const GraphRecipeName = "graph.v1"

// GraphRecipe reads the schema for each mode from explicit node lists.
//
// Example document:
//
//	recipe: graph.v1
//	language: en
//	train_schema:
//	  - name: tokenize
//	    uses: WhitespaceTokenizer
//	    kind: process
//	    source: true
//	  - name: train_intents
//	    uses: KeywordIntentClassifier
//	    kind: train
//	    needs: {data: tokenize}
type GraphRecipe struct{}

// Name returns GraphRecipeName.
func (GraphRecipe) Name() string {
	return GraphRecipeName
}

// Translate builds the schema from train_schema or predict_schema.
func (GraphRecipe) Translate(doc *Document, mode schema.Mode, reg *registry.Registry) (*schema.Schema, error) {
	specs := doc.TrainSchema
	field := "train_schema"
	if mode == schema.ModePredict {
		specs = doc.PredictSchema
		field = "predict_schema"
	}
	if len(specs) == 0 {
		return nil, schema.NewConfigurationError("", schema.ErrMissingField, "%s", field)
	}

	b := schema.NewBuilder(mode)
	for _, spec := range specs {
		n, err := nodeFromSpec(spec, mode, reg)
		if err != nil {
			return nil, err
		}
		b.AddNode(n)
	}
	return b.Build()
}

func nodeFromSpec(spec NodeSpec, mode schema.Mode, reg *registry.Registry) (schema.Node, error) {
	entry, err := reg.Resolve(spec.Name, spec.Uses)
	if err != nil {
		return schema.Node{}, err
	}

	typ := entry.PrimaryType()
	if spec.Type != "" {
		typ = schema.ComponentType(spec.Type)
		if !entry.HasType(typ) {
			return schema.Node{}, schema.NewConfigurationError(spec.Name, schema.ErrInvalidNode, "component %q cannot act as %s", spec.Uses, typ)
		}
	}

	kind := schema.Kind(spec.Kind)
	switch kind {
	case schema.KindTrain:
		if mode == schema.ModePredict {
			return schema.Node{}, schema.NewConfigurationError(spec.Name, schema.ErrInvalidNode, "train nodes are not allowed in predict_schema")
		}
		if !entry.Trainable {
			return schema.Node{}, schema.NewConfigurationError(spec.Name, schema.ErrInvalidNode, "component %q is not trainable", spec.Uses)
		}
	case schema.KindLoad:
		if !entry.Trainable {
			return schema.Node{}, schema.NewConfigurationError(spec.Name, schema.ErrInvalidNode, "component %q has no trained resource to load", spec.Uses)
		}
	case schema.KindProvide:
		if !typ.IsProvider() {
			return schema.Node{}, schema.NewConfigurationError(spec.Name, schema.ErrInvalidNode, "only model providers can use kind provide")
		}
	}

	inputs := make([]schema.Input, 0, len(spec.Needs))
	for _, need := range spec.Needs {
		inputs = append(inputs, schema.Input{Param: need.Param, From: need.From})
	}

	return schema.Node{
		Name:         spec.Name,
		Component:    spec.Uses,
		Type:         typ,
		Kind:         kind,
		Trainable:    kind == schema.KindTrain || kind == schema.KindLoad,
		Inputs:       inputs,
		ModelFrom:    spec.ModelFrom,
		ResourceFrom: spec.ResourceFrom,
		Source:       spec.Source,
		Config:       spec.Config,
	}, nil
}

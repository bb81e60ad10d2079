// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package components provides the built-in NLU and dialogue components.
//
// Every component reads a Batch (or a raw training or inference input when
// it is a source node) and returns a new Batch, so one node's output is
// never modified by another. Trained state is persisted as a single JSON
// blob per node.
//
// Call Register to add them to a registry before translating documents.
package components

import (
	"github.com/AleutianAI/AleutianGraph/services/graph/capability"
	"github.com/AleutianAI/AleutianGraph/services/graph/registry"
	"github.com/AleutianAI/AleutianGraph/services/graph/schema"
)

// Entries returns the registry entries of the built-in components.
func Entries() []registry.Entry {
	return []registry.Entry{
		{
			Name:       "LexicalModel",
			Types:      []schema.ComponentType{schema.TypeModelProvider},
			Descriptor: capability.Descriptor{Languages: capability.AllLanguages()},
			Factory:    NewLexicalModel,
		},
		{
			Name:  "WhitespaceTokenizer",
			Types: []schema.ComponentType{schema.TypeTokenizer},
			Descriptor: capability.Descriptor{
				Languages: capability.AllLanguages().Except("zh", "ja", "th"),
			},
			Factory: NewWhitespaceTokenizer,
		},
		{
			Name:       "CountVectorsFeaturizer",
			Types:      []schema.ComponentType{schema.TypeFeaturizer},
			Trainable:  true,
			Descriptor: capability.Descriptor{Languages: capability.AllLanguages()},
			Factory:    NewCountVectorsFeaturizer,
		},
		{
			Name:       "KeywordIntentClassifier",
			Types:      []schema.ComponentType{schema.TypeIntentClassifier},
			Trainable:  true,
			Descriptor: capability.Descriptor{Languages: capability.AllLanguages()},
			Factory:    NewKeywordIntentClassifier,
		},
		{
			Name:       "RegexEntityExtractor",
			Types:      []schema.ComponentType{schema.TypeEntityExtractor},
			Trainable:  true,
			Descriptor: capability.Descriptor{Languages: capability.AllLanguages()},
			Factory:    NewRegexEntityExtractor,
		},
		{
			Name:       "MemoizationPolicy",
			Types:      []schema.ComponentType{schema.TypePolicyWithoutEndToEnd},
			Trainable:  true,
			Descriptor: capability.Descriptor{Languages: capability.AllLanguages()},
			Factory:    NewMemoizationPolicy,
		},
		{
			Name:       "TEDPolicy",
			Types:      []schema.ComponentType{schema.TypePolicyWithEndToEnd},
			Trainable:  true,
			Descriptor: capability.Descriptor{Languages: capability.AllLanguages()},
			Factory:    NewTEDPolicy,
		},
	}
}

// Register adds the built-in components to reg.
func Register(reg *registry.Registry) error {
	for _, e := range Entries() {
		if err := reg.Register(e); err != nil {
			return err
		}
	}
	return nil
}

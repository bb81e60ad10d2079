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
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianGraph/services/graph/component"
	"github.com/AleutianAI/AleutianGraph/services/graph/storage"
)

// Vocabulary is the trained state of CountVectorsFeaturizer.
type Vocabulary struct {
	Terms []string `json:"terms"`

	index map[string]bool
}

func newVocabulary(terms []string) *Vocabulary {
	v := &Vocabulary{Terms: terms, index: make(map[string]bool, len(terms))}
	for _, t := range terms {
		v.index[t] = true
	}
	return v
}

// Has reports whether term is in the vocabulary.
func (v *Vocabulary) Has(term string) bool {
	return v != nil && v.index[term]
}

// CountVectorsFeaturizer turns tokens into bag-of-words counts over a
// vocabulary learned during training.
//
// Config:
//
//	min_count - Minimum number of training messages a term must appear in. Default 1.
//	max_features - Keep only the most frequent terms. 0 keeps all. Default 0.
type CountVectorsFeaturizer struct {
	minCount    int
	maxFeatures int
}

// NewCountVectorsFeaturizer is the registry factory.
func NewCountVectorsFeaturizer(cfg map[string]any) (component.Component, error) {
	minCount, err := intOption(cfg, "min_count", 1)
	if err != nil {
		return nil, err
	}
	maxFeatures, err := intOption(cfg, "max_features", 0)
	if err != nil {
		return nil, err
	}
	if minCount < 1 || maxFeatures < 0 {
		return nil, fmt.Errorf("%w: min_count must be >= 1 and max_features >= 0", ErrInvalidConfig)
	}
	return &CountVectorsFeaturizer{minCount: minCount, maxFeatures: maxFeatures}, nil
}

// Train learns the vocabulary from the batch.
func (f *CountVectorsFeaturizer) Train(_ context.Context, in component.Inputs, _ component.ExecutionContext) (any, *storage.Artifact, error) {
	b, err := dataInput(in)
	if err != nil {
		return nil, nil, err
	}
	lex := lexiconInput(in)

	docFreq := make(map[string]int)
	for _, m := range b.Messages {
		seen := make(map[string]bool)
		for _, term := range terms(m) {
			if lex.IsStopword(term) || seen[term] {
				continue
			}
			seen[term] = true
			docFreq[term]++
		}
	}

	kept := make([]string, 0, len(docFreq))
	for term, n := range docFreq {
		if n >= f.minCount {
			kept = append(kept, term)
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if docFreq[kept[i]] != docFreq[kept[j]] {
			return docFreq[kept[i]] > docFreq[kept[j]]
		}
		return kept[i] < kept[j]
	})
	if f.maxFeatures > 0 && len(kept) > f.maxFeatures {
		kept = kept[:f.maxFeatures]
	}
	sort.Strings(kept)

	vocab := newVocabulary(kept)
	a, err := jsonArtifact(vocab)
	if err != nil {
		return nil, nil, err
	}
	return vocab, a, nil
}

// Load restores the vocabulary. Without an artifact the vocabulary is empty.
func (f *CountVectorsFeaturizer) Load(_ context.Context, a *storage.Artifact, _ component.ExecutionContext) (any, error) {
	var v Vocabulary
	ok, err := decodeArtifact(a, &v)
	if err != nil {
		return nil, err
	}
	if !ok {
		return newVocabulary(nil), nil
	}
	return newVocabulary(v.Terms), nil
}

// Process adds term counts to every message.
func (f *CountVectorsFeaturizer) Process(_ context.Context, in component.Inputs, ec component.ExecutionContext) (any, error) {
	vocab, err := component.Input[*Vocabulary](in, component.ParamResource)
	if err != nil {
		return nil, err
	}
	b, err := dataInput(in)
	if err != nil {
		return nil, err
	}
	lex := lexiconInput(in)

	out := b.derive()
	for i := range out.Messages {
		m := &out.Messages[i]
		features := make(map[string]float64)
		oov := 0
		for _, term := range terms(*m) {
			if lex.IsStopword(term) {
				continue
			}
			if !vocab.Has(term) {
				oov++
				continue
			}
			features[term]++
		}
		m.Features = features
		if ec.Diagnostics {
			m.diagnose("out_of_vocabulary", oov)
		}
	}
	return out, nil
}

// terms returns the token texts of m, or its lowercased words when it was
// never tokenized.
func terms(m Message) []string {
	if len(m.Tokens) == 0 {
		return strings.Fields(strings.ToLower(m.Text))
	}
	out := make([]string, len(m.Tokens))
	for i, t := range m.Tokens {
		out[i] = t.Text
	}
	return out
}

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

	"github.com/AleutianAI/AleutianGraph/services/graph/component"
	"github.com/AleutianAI/AleutianGraph/services/graph/storage"
)

// IntentModel is the trained state of KeywordIntentClassifier: for each
// intent, the fraction of its examples each term occurs in.
type IntentModel struct {
	Weights map[string]map[string]float64 `json:"weights"`
}

// Intents returns the known intents, sorted.
func (m *IntentModel) Intents() []string {
	out := make([]string, 0, len(m.Weights))
	for name := range m.Weights {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// KeywordIntentClassifier scores intents by how typical a message's terms
// are for each intent's training examples.
//
// Config:
//
//	threshold - Below this confidence the fallback intent is used. Default 0.
//	fallback_intent - Intent reported below the threshold. Default "nlu_fallback".
type KeywordIntentClassifier struct {
	threshold float64
	fallback  string
}

// NewKeywordIntentClassifier is the registry factory.
func NewKeywordIntentClassifier(cfg map[string]any) (component.Component, error) {
	threshold, err := floatOption(cfg, "threshold", 0)
	if err != nil {
		return nil, err
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: threshold must be in [0, 1], got %v", ErrInvalidConfig, threshold)
	}
	fallback := "nlu_fallback"
	if v, ok := cfg["fallback_intent"].(string); ok && v != "" {
		fallback = v
	}
	return &KeywordIntentClassifier{threshold: threshold, fallback: fallback}, nil
}

// Train learns term weights from labeled messages.
func (c *KeywordIntentClassifier) Train(_ context.Context, in component.Inputs, _ component.ExecutionContext) (any, *storage.Artifact, error) {
	b, err := dataInput(in)
	if err != nil {
		return nil, nil, err
	}

	counts := make(map[string]map[string]float64)
	examples := make(map[string]int)
	for _, m := range b.Messages {
		if m.Label == "" {
			continue
		}
		examples[m.Label]++
		if counts[m.Label] == nil {
			counts[m.Label] = make(map[string]float64)
		}
		for term := range messageTerms(m) {
			counts[m.Label][term]++
		}
	}
	if len(examples) == 0 {
		return nil, nil, fmt.Errorf("%w: no labeled examples to train on", ErrInvalidData)
	}

	model := &IntentModel{Weights: make(map[string]map[string]float64, len(counts))}
	for intent, termCounts := range counts {
		weights := make(map[string]float64, len(termCounts))
		for term, n := range termCounts {
			weights[term] = n / float64(examples[intent])
		}
		model.Weights[intent] = weights
	}

	a, err := jsonArtifact(model)
	if err != nil {
		return nil, nil, err
	}
	return model, a, nil
}

// Load restores the model. Without an artifact no intent is known.
func (c *KeywordIntentClassifier) Load(_ context.Context, a *storage.Artifact, _ component.ExecutionContext) (any, error) {
	model := &IntentModel{}
	if _, err := decodeArtifact(a, model); err != nil {
		return nil, err
	}
	if model.Weights == nil {
		model.Weights = map[string]map[string]float64{}
	}
	return model, nil
}

// Process sets the intent of every message.
func (c *KeywordIntentClassifier) Process(_ context.Context, in component.Inputs, ec component.ExecutionContext) (any, error) {
	model, err := component.Input[*IntentModel](in, component.ParamResource)
	if err != nil {
		return nil, err
	}
	b, err := dataInput(in)
	if err != nil {
		return nil, err
	}

	out := b.derive()
	for i := range out.Messages {
		m := &out.Messages[i]
		ranking := c.rank(model, messageTerms(*m))
		if len(ranking) == 0 || ranking[0].Confidence < c.threshold {
			m.Intent = &Intent{Name: c.fallback}
		} else {
			top := ranking[0]
			m.Intent = &top
		}
		if ec.Diagnostics {
			m.diagnose("intent_ranking", ranking)
		}
	}
	return out, nil
}

// rank returns the intents with a positive score, best first, with
// confidences normalized to sum to one.
func (c *KeywordIntentClassifier) rank(model *IntentModel, terms map[string]bool) []Intent {
	var total float64
	ranking := make([]Intent, 0, len(model.Weights))
	for _, intent := range model.Intents() {
		var score float64
		for term := range terms {
			score += model.Weights[intent][term]
		}
		if score > 0 {
			ranking = append(ranking, Intent{Name: intent, Confidence: score})
			total += score
		}
	}
	for i := range ranking {
		ranking[i].Confidence /= total
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Confidence > ranking[j].Confidence
	})
	return ranking
}

// messageTerms prefers featurized terms over raw tokens.
func messageTerms(m Message) map[string]bool {
	out := make(map[string]bool)
	if len(m.Features) > 0 {
		for term, n := range m.Features {
			if n > 0 {
				out[term] = true
			}
		}
		return out
	}
	for _, term := range terms(m) {
		out[term] = true
	}
	return out
}

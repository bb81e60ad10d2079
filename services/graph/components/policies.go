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

	"github.com/AleutianAI/AleutianGraph/services/graph/component"
	"github.com/AleutianAI/AleutianGraph/services/graph/storage"
)

// PolicyPrediction is the output of a policy node.
type PolicyPrediction struct {
	Policy     string  `json:"policy"`
	Action     string  `json:"action,omitempty"`
	Confidence float64 `json:"confidence"`
	Intent     string  `json:"intent,omitempty"`
}

// storyActions maps each intent to the action of its last story.
func storyActions(td *TrainingData) map[string]string {
	out := make(map[string]string)
	if td == nil {
		return out
	}
	for _, s := range td.Stories {
		out[s.Intent] = s.Action
	}
	return out
}

// Memory is the trained state of MemoizationPolicy.
type Memory struct {
	Texts map[string]string `json:"texts"`
}

// MemoizationPolicy answers exactly the utterances it was trained on. It
// reads the raw run input, not the NLU pipeline output.
type MemoizationPolicy struct{}

// NewMemoizationPolicy is the registry factory.
func NewMemoizationPolicy(map[string]any) (component.Component, error) {
	return &MemoizationPolicy{}, nil
}

// Train memorizes each example text whose intent has a story.
func (p *MemoizationPolicy) Train(_ context.Context, in component.Inputs, _ component.ExecutionContext) (any, *storage.Artifact, error) {
	b, err := dataInput(in)
	if err != nil {
		return nil, nil, err
	}
	if b.Data == nil {
		return nil, nil, fmt.Errorf("%w: MemoizationPolicy trains on training data", ErrInvalidData)
	}
	actions := storyActions(b.Data)
	mem := &Memory{Texts: make(map[string]string)}
	for _, ex := range b.Data.Examples {
		if action, ok := actions[ex.Intent]; ok {
			mem.Texts[normalize(ex.Text)] = action
		}
	}
	a, err := jsonArtifact(mem)
	if err != nil {
		return nil, nil, err
	}
	return mem, a, nil
}

// Load restores the memory. Without an artifact nothing is remembered.
func (p *MemoizationPolicy) Load(_ context.Context, a *storage.Artifact, _ component.ExecutionContext) (any, error) {
	mem := &Memory{}
	if _, err := decodeArtifact(a, mem); err != nil {
		return nil, err
	}
	if mem.Texts == nil {
		mem.Texts = map[string]string{}
	}
	return mem, nil
}

// Process looks up the first message.
func (p *MemoizationPolicy) Process(_ context.Context, in component.Inputs, _ component.ExecutionContext) (any, error) {
	mem, err := component.Input[*Memory](in, component.ParamResource)
	if err != nil {
		return nil, err
	}
	b, err := dataInput(in)
	if err != nil {
		return nil, err
	}
	pred := &PolicyPrediction{Policy: "MemoizationPolicy"}
	if action, ok := mem.Texts[normalize(b.First().Text)]; ok {
		pred.Action = action
		pred.Confidence = 1
	}
	return pred, nil
}

// ActionTable is the trained state of TEDPolicy.
type ActionTable struct {
	Actions map[string]string `json:"actions"`
}

// TEDPolicy predicts the next action from the intent the NLU pipeline
// classified. It consumes the pipeline output end to end.
//
// Config:
//
//	threshold - Below this intent confidence the fallback action is used. Default 0.3.
//	fallback_action - Default "action_default_fallback".
type TEDPolicy struct {
	threshold float64
	fallback  string
}

// NewTEDPolicy is the registry factory.
func NewTEDPolicy(cfg map[string]any) (component.Component, error) {
	threshold, err := floatOption(cfg, "threshold", 0.3)
	if err != nil {
		return nil, err
	}
	fallback := "action_default_fallback"
	if v, ok := cfg["fallback_action"].(string); ok && v != "" {
		fallback = v
	}
	return &TEDPolicy{threshold: threshold, fallback: fallback}, nil
}

// Train builds the intent to action table from the stories.
func (p *TEDPolicy) Train(_ context.Context, in component.Inputs, _ component.ExecutionContext) (any, *storage.Artifact, error) {
	b, err := dataInput(in)
	if err != nil {
		return nil, nil, err
	}
	if b.Data == nil || len(b.Data.Stories) == 0 {
		return nil, nil, fmt.Errorf("%w: TEDPolicy needs stories", ErrInvalidData)
	}
	table := &ActionTable{Actions: storyActions(b.Data)}
	a, err := jsonArtifact(table)
	if err != nil {
		return nil, nil, err
	}
	return table, a, nil
}

// Load restores the table. Without an artifact every prediction falls back.
func (p *TEDPolicy) Load(_ context.Context, a *storage.Artifact, _ component.ExecutionContext) (any, error) {
	table := &ActionTable{}
	if _, err := decodeArtifact(a, table); err != nil {
		return nil, err
	}
	if table.Actions == nil {
		table.Actions = map[string]string{}
	}
	return table, nil
}

// Process predicts the action for the first message's intent.
func (p *TEDPolicy) Process(_ context.Context, in component.Inputs, _ component.ExecutionContext) (any, error) {
	table, err := component.Input[*ActionTable](in, component.ParamResource)
	if err != nil {
		return nil, err
	}
	b, err := dataInput(in)
	if err != nil {
		return nil, err
	}

	m := b.First()
	pred := &PolicyPrediction{Policy: "TEDPolicy", Action: p.fallback}
	if m.Intent == nil {
		return pred, nil
	}
	pred.Intent = m.Intent.Name
	pred.Confidence = m.Intent.Confidence
	if action, ok := table.Actions[m.Intent.Name]; ok && m.Intent.Confidence >= p.threshold {
		pred.Action = action
	}
	return pred, nil
}

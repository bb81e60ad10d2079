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
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Token is a span of a message's text.
type Token struct {
	Text  string `json:"text" yaml:"text"`
	Start int    `json:"start" yaml:"start"`
	End   int    `json:"end" yaml:"end"`
}

// Intent is a classified intent with its confidence in [0, 1].
type Intent struct {
	Name       string  `json:"name" yaml:"name"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// Entity is an extracted entity.
type Entity struct {
	Type      string `json:"entity" yaml:"entity"`
	Value     string `json:"value" yaml:"value"`
	Start     int    `json:"start" yaml:"start"`
	End       int    `json:"end" yaml:"end"`
	Extractor string `json:"extractor,omitempty" yaml:"extractor,omitempty"`
}

// Message is one user utterance and everything the pipeline learned about it.
type Message struct {
	Text     string             `json:"text" yaml:"text"`
	Tokens   []Token            `json:"tokens,omitempty" yaml:"tokens,omitempty"`
	Features map[string]float64 `json:"features,omitempty" yaml:"features,omitempty"`
	Intent   *Intent            `json:"intent,omitempty" yaml:"intent,omitempty"`
	Entities []Entity           `json:"entities,omitempty" yaml:"entities,omitempty"`

	// Label is the annotated intent of a training example.
	Label string `json:"label,omitempty" yaml:"label,omitempty"`

	// Diagnostics is filled only when the run asks for diagnostic data.
	Diagnostics map[string]any `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// clone returns a copy of m whose slices and maps may be replaced freely.
func (m Message) clone() Message {
	out := m
	out.Tokens = append([]Token(nil), m.Tokens...)
	out.Entities = append([]Entity(nil), m.Entities...)
	if m.Features != nil {
		out.Features = make(map[string]float64, len(m.Features))
		for k, v := range m.Features {
			out.Features[k] = v
		}
	}
	if m.Intent != nil {
		intent := *m.Intent
		out.Intent = &intent
	}
	if m.Diagnostics != nil {
		out.Diagnostics = make(map[string]any, len(m.Diagnostics))
		for k, v := range m.Diagnostics {
			out.Diagnostics[k] = v
		}
	}
	return out
}

func (m *Message) diagnose(key string, value any) {
	if m.Diagnostics == nil {
		m.Diagnostics = make(map[string]any)
	}
	m.Diagnostics[key] = value
}

// Example is an annotated training utterance.
type Example struct {
	Text     string   `json:"text" yaml:"text"`
	Intent   string   `json:"intent" yaml:"intent"`
	Entities []Entity `json:"entities,omitempty" yaml:"entities,omitempty"`
}

// Story maps an intent to the action the assistant takes in response.
type Story struct {
	Intent string `json:"intent" yaml:"intent"`
	Action string `json:"action" yaml:"action"`
}

// TrainingData is the input of a training run.
type TrainingData struct {
	Examples []Example `json:"examples" yaml:"examples"`

	// Regexes maps entity types to patterns.
	Regexes map[string][]string `json:"regexes,omitempty" yaml:"regexes,omitempty"`

	Stories []Story `json:"stories,omitempty" yaml:"stories,omitempty"`
}

// ParseTrainingData decodes YAML or JSON training data.
func ParseTrainingData(data []byte) (*TrainingData, error) {
	var td TrainingData
	if err := yaml.Unmarshal(data, &td); err != nil {
		return nil, fmt.Errorf("parse training data: %w", err)
	}
	if len(td.Examples) == 0 && len(td.Stories) == 0 {
		return nil, fmt.Errorf("%w: training data has no examples or stories", ErrInvalidData)
	}
	return &td, nil
}

// LoadTrainingData reads training data from path.
func LoadTrainingData(path string) (*TrainingData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read training data %s: %w", path, err)
	}
	return ParseTrainingData(data)
}

// Batch is the value passed between pipeline nodes: the messages being
// processed and, during training, the data they came from.
//
// Components never modify a Batch they receive; they return a new one.
type Batch struct {
	Messages []Message     `json:"messages"`
	Data     *TrainingData `json:"-"`
}

// NewTrainingBatch turns each example into a labeled message.
func NewTrainingBatch(td *TrainingData) *Batch {
	b := &Batch{Data: td, Messages: make([]Message, 0, len(td.Examples))}
	for _, ex := range td.Examples {
		b.Messages = append(b.Messages, Message{Text: ex.Text, Label: ex.Intent})
	}
	return b
}

// derive returns a batch sharing Data with cloned messages.
func (b *Batch) derive() *Batch {
	out := &Batch{Data: b.Data, Messages: make([]Message, len(b.Messages))}
	for i, m := range b.Messages {
		out.Messages[i] = m.clone()
	}
	return out
}

// First returns the first message, or the zero Message.
func (b *Batch) First() Message {
	if b == nil || len(b.Messages) == 0 {
		return Message{}
	}
	return b.Messages[0]
}

// toBatch accepts the values a run input or upstream node can carry.
func toBatch(v any) (*Batch, error) {
	switch t := v.(type) {
	case *Batch:
		if t == nil {
			return nil, fmt.Errorf("%w: nil batch", ErrInvalidData)
		}
		return t, nil
	case *TrainingData:
		if t == nil {
			return nil, fmt.Errorf("%w: nil training data", ErrInvalidData)
		}
		return NewTrainingBatch(t), nil
	case TrainingData:
		return NewTrainingBatch(&t), nil
	case Message:
		return &Batch{Messages: []Message{t}}, nil
	case *Message:
		if t == nil {
			return nil, fmt.Errorf("%w: nil message", ErrInvalidData)
		}
		return &Batch{Messages: []Message{*t}}, nil
	case string:
		return &Batch{Messages: []Message{{Text: t}}}, nil
	case []string:
		b := &Batch{Messages: make([]Message, 0, len(t))}
		for _, s := range t {
			b.Messages = append(b.Messages, Message{Text: s})
		}
		return b, nil
	case map[string]any:
		text, ok := t["text"].(string)
		if !ok {
			return nil, fmt.Errorf("%w: message has no text", ErrInvalidData)
		}
		return &Batch{Messages: []Message{{Text: text}}}, nil
	}
	return nil, fmt.Errorf("%w: unsupported input type %T", ErrInvalidData, v)
}

// normalize lowercases and collapses whitespace, the key form used for
// memorized texts.
func normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

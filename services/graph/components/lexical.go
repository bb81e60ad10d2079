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
	"errors"
	"strings"

	"github.com/AleutianAI/AleutianGraph/services/graph/component"
)

// defaultStopwords is the English stopword list used when none is configured.
var defaultStopwords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from", "i",
	"in", "is", "it", "me", "my", "of", "on", "or", "the", "to", "with",
}

// Lexicon is the shared language model handle produced by LexicalModel.
type Lexicon struct {
	Language  string
	stopwords map[string]bool
}

// IsStopword reports whether word is ignored by featurizers.
func (l *Lexicon) IsStopword(word string) bool {
	if l == nil {
		return false
	}
	return l.stopwords[strings.ToLower(word)]
}

// LexicalModel is a model provider. Featurizers that name it in model_from
// drop its stopwords.
//
// Config:
//
//	language - Lexicon language. Default "en".
//	stopwords - Stopword list. Default a short English list.
type LexicalModel struct {
	lexicon *Lexicon
}

// NewLexicalModel is the registry factory.
func NewLexicalModel(cfg map[string]any) (component.Component, error) {
	lang := "en"
	if v, ok := cfg["language"].(string); ok && v != "" {
		lang = v
	}
	words, err := stringsOption(cfg, "stopwords")
	if err != nil {
		return nil, err
	}
	if words == nil {
		words = defaultStopwords
	}
	lex := &Lexicon{Language: lang, stopwords: make(map[string]bool, len(words))}
	for _, w := range words {
		lex.stopwords[strings.ToLower(w)] = true
	}
	return &LexicalModel{lexicon: lex}, nil
}

// Provide returns the lexicon.
func (m *LexicalModel) Provide(_ context.Context, _ component.ExecutionContext) (any, error) {
	return m.lexicon, nil
}

// Process is not part of a provider's graph role.
func (m *LexicalModel) Process(context.Context, component.Inputs, component.ExecutionContext) (any, error) {
	return nil, errors.New("LexicalModel only provides a model")
}

// lexiconInput returns the optional model input.
func lexiconInput(in component.Inputs) *Lexicon {
	lex, _ := component.OptionalInput[*Lexicon](in, component.ParamModel)
	return lex
}

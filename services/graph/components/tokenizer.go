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
	"strings"
	"unicode"

	"github.com/AleutianAI/AleutianGraph/services/graph/component"
)

// WhitespaceTokenizer splits messages on whitespace and punctuation.
//
// Config:
//
//	lowercase - Lowercase token text. Default true.
//
// Languages without whitespace word boundaries are not supported.
type WhitespaceTokenizer struct {
	lowercase bool
}

// NewWhitespaceTokenizer is the registry factory.
func NewWhitespaceTokenizer(cfg map[string]any) (component.Component, error) {
	lower, err := boolOption(cfg, "lowercase", true)
	if err != nil {
		return nil, err
	}
	return &WhitespaceTokenizer{lowercase: lower}, nil
}

// Process tokenizes every message of the batch.
func (t *WhitespaceTokenizer) Process(_ context.Context, in component.Inputs, _ component.ExecutionContext) (any, error) {
	b, err := dataInput(in)
	if err != nil {
		return nil, err
	}
	out := b.derive()
	for i := range out.Messages {
		out.Messages[i].Tokens = t.tokenize(out.Messages[i].Text)
	}
	return out, nil
}

func (t *WhitespaceTokenizer) tokenize(text string) []Token {
	var tokens []Token
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		word := text[start:end]
		if t.lowercase {
			word = strings.ToLower(word)
		}
		tokens = append(tokens, Token{Text: word, Start: start, End: end})
		start = -1
	}
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' || r == '_' {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(text))
	return tokens
}

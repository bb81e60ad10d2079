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
	"regexp"
	"sort"

	"github.com/AleutianAI/AleutianGraph/services/graph/component"
	"github.com/AleutianAI/AleutianGraph/services/graph/storage"
)

const regexExtractorName = "RegexEntityExtractor"

// EntityPatterns is the trained state of RegexEntityExtractor.
type EntityPatterns struct {
	Patterns      map[string][]string `json:"patterns"`
	CaseSensitive bool                `json:"case_sensitive"`

	compiled map[string][]*regexp.Regexp
}

func (p *EntityPatterns) compile() error {
	p.compiled = make(map[string][]*regexp.Regexp, len(p.Patterns))
	for entity, patterns := range p.Patterns {
		for _, pat := range patterns {
			if !p.CaseSensitive {
				pat = "(?i)" + pat
			}
			re, err := regexp.Compile(pat)
			if err != nil {
				return fmt.Errorf("%w: pattern for %s: %v", ErrInvalidConfig, entity, err)
			}
			p.compiled[entity] = append(p.compiled[entity], re)
		}
	}
	return nil
}

// Entities returns the entity types with patterns, sorted.
func (p *EntityPatterns) Entities() []string {
	out := make([]string, 0, len(p.Patterns))
	for e := range p.Patterns {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// RegexEntityExtractor finds entities with regular expressions collected
// from its configuration and from the training data.
//
// Config:
//
//	patterns - Map of entity type to a pattern or list of patterns.
//	use_training_data - Also learn the training data regexes and the literal
//	                    values of annotated example entities. Default true.
//	case_sensitive - Match case exactly. Default false.
type RegexEntityExtractor struct {
	configured      map[string][]string
	useTrainingData bool
	caseSensitive   bool
}

// NewRegexEntityExtractor is the registry factory.
func NewRegexEntityExtractor(cfg map[string]any) (component.Component, error) {
	useData, err := boolOption(cfg, "use_training_data", true)
	if err != nil {
		return nil, err
	}
	caseSensitive, err := boolOption(cfg, "case_sensitive", false)
	if err != nil {
		return nil, err
	}
	configured := make(map[string][]string)
	if raw, ok := cfg["patterns"]; ok && raw != nil {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: patterns must be a mapping, got %T", ErrInvalidConfig, raw)
		}
		for entity, v := range m {
			if s, ok := v.(string); ok {
				configured[entity] = []string{s}
				continue
			}
			list, err := stringsOption(m, entity)
			if err != nil {
				return nil, err
			}
			configured[entity] = list
		}
	}
	e := &RegexEntityExtractor{configured: configured, useTrainingData: useData, caseSensitive: caseSensitive}
	if _, err := e.patterns(nil); err != nil {
		return nil, err
	}
	return e, nil
}

// patterns merges the configured patterns with those learned from td.
func (e *RegexEntityExtractor) patterns(td *TrainingData) (*EntityPatterns, error) {
	merged := make(map[string][]string)
	seen := make(map[string]bool)
	add := func(entity, pat string) {
		key := entity + "\x00" + pat
		if seen[key] {
			return
		}
		seen[key] = true
		merged[entity] = append(merged[entity], pat)
	}
	for entity, list := range e.configured {
		for _, pat := range list {
			add(entity, pat)
		}
	}
	if td != nil && e.useTrainingData {
		for entity, list := range td.Regexes {
			for _, pat := range list {
				add(entity, pat)
			}
		}
		for _, ex := range td.Examples {
			for _, ent := range ex.Entities {
				if ent.Value != "" {
					add(ent.Type, `\b`+regexp.QuoteMeta(ent.Value)+`\b`)
				}
			}
		}
	}
	for entity := range merged {
		sort.Strings(merged[entity])
	}
	p := &EntityPatterns{Patterns: merged, CaseSensitive: e.caseSensitive}
	if err := p.compile(); err != nil {
		return nil, err
	}
	return p, nil
}

// Train collects the patterns.
func (e *RegexEntityExtractor) Train(_ context.Context, in component.Inputs, _ component.ExecutionContext) (any, *storage.Artifact, error) {
	b, err := dataInput(in)
	if err != nil {
		return nil, nil, err
	}
	p, err := e.patterns(b.Data)
	if err != nil {
		return nil, nil, err
	}
	a, err := jsonArtifact(p)
	if err != nil {
		return nil, nil, err
	}
	return p, a, nil
}

// Load restores the patterns. Without an artifact only configured patterns apply.
func (e *RegexEntityExtractor) Load(_ context.Context, a *storage.Artifact, _ component.ExecutionContext) (any, error) {
	var p EntityPatterns
	ok, err := decodeArtifact(a, &p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return e.patterns(nil)
	}
	if err := p.compile(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Process appends the matched entities to every message.
func (e *RegexEntityExtractor) Process(_ context.Context, in component.Inputs, _ component.ExecutionContext) (any, error) {
	p, err := component.Input[*EntityPatterns](in, component.ParamResource)
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
		var found []Entity
		for _, entity := range p.Entities() {
			for _, re := range p.compiled[entity] {
				for _, loc := range re.FindAllStringIndex(m.Text, -1) {
					found = append(found, Entity{
						Type:      entity,
						Value:     m.Text[loc[0]:loc[1]],
						Start:     loc[0],
						End:       loc[1],
						Extractor: regexExtractorName,
					})
				}
			}
		}
		sort.SliceStable(found, func(i, j int) bool { return found[i].Start < found[j].Start })
		m.Entities = append(m.Entities, dedupeEntities(found)...)
	}
	return out, nil
}

// dedupeEntities drops repeated matches of the same span and type.
func dedupeEntities(in []Entity) []Entity {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, e := range in {
		key := fmt.Sprintf("%s:%d:%d", e.Type, e.Start, e.End)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}

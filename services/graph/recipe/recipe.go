// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package recipe translates configuration documents into graph schemas.
//
// A Recipe is a translation strategy. Two are built in:
//
//   - default.v1 derives the graph from the ordered pipeline and policies
//   - graph.v1 reads explicit train_schema and predict_schema node lists
//
// Both produce the same *schema.Schema representation.
package recipe

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/AleutianAI/AleutianGraph/services/graph/registry"
	"github.com/AleutianAI/AleutianGraph/services/graph/schema"
)

// ErrUnknownRecipe is returned when a document names an unregistered recipe.
var ErrUnknownRecipe = errors.New("unknown recipe")

// Recipe translates a document into a schema for one run mode.
type Recipe interface {
	// Name is the identifier documents use in their recipe field.
	Name() string

	// Translate builds the schema. All failures are *schema.ConfigurationError.
	Translate(doc *Document, mode schema.Mode, reg *registry.Registry) (*schema.Schema, error)
}

var (
	recipesMu sync.RWMutex
	recipes   = map[string]Recipe{}
)

// RegisterDefaults adds DefaultRecipe and GraphRecipe to the recipe table.
// It is safe to call more than once.
func RegisterDefaults() {
	Register(DefaultRecipe{})
	Register(GraphRecipe{})
}

// Register adds r to the recipe table, replacing any recipe with the same name.
func Register(r Recipe) {
	recipesMu.Lock()
	defer recipesMu.Unlock()
	recipes[r.Name()] = r
}

// Lookup returns the recipe registered under name.
func Lookup(name string) (Recipe, bool) {
	recipesMu.RLock()
	defer recipesMu.RUnlock()
	r, ok := recipes[name]
	return r, ok
}

// Names returns the registered recipe names in order.
func Names() []string {
	recipesMu.RLock()
	defer recipesMu.RUnlock()
	out := make([]string, 0, len(recipes))
	for name := range recipes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Translate validates doc and translates it with the recipe it names.
//
// Inputs:
//
//	doc - The configuration document. Required.
//	mode - ModeTrain or ModePredict.
//	reg - The component registry. If nil, uses registry.Default().
//
// Outputs:
//
//	*schema.Schema - The built schema.
//	error - A *schema.ConfigurationError for unregistered components,
//	        missing fields, unresolved references or cycles.
func Translate(doc *Document, mode schema.Mode, reg *registry.Registry) (*schema.Schema, error) {
	if doc == nil {
		return nil, schema.NewConfigurationError("", schema.ErrMissingField, "document")
	}
	if !mode.Valid() {
		return nil, schema.NewConfigurationError("", schema.ErrInvalidNode, "unknown run mode %q", mode)
	}
	if reg == nil {
		reg = registry.Default()
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	name := doc.Recipe
	if name == "" {
		name = DefaultRecipeName
	}
	r, ok := Lookup(name)
	if !ok {
		return nil, schema.NewConfigurationError("", ErrUnknownRecipe, "recipe %q", name)
	}

	s, err := r.Translate(doc, mode, reg)
	if err != nil {
		var cfgErr *schema.ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, err
		}
		return nil, fmt.Errorf("translate with %s: %w", name, err)
	}
	return s, nil
}

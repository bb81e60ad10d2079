// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package component defines the interface graph nodes are implemented
// against, and the per-run ExecutionContext passed to every invocation.
//
// The operation set is fixed. Every component can Process. Trainable
// components add Train and Load. Model providers add Provide. Components
// are created through a registry Factory with their frozen configuration.
package component

import (
	"context"
	"fmt"
	"sort"

	"github.com/AleutianAI/AleutianGraph/services/graph/storage"
)

// Component is implemented by every node.
type Component interface {
	// Process computes the node output from its inputs.
	Process(ctx context.Context, in Inputs, ec ExecutionContext) (any, error)
}

// Trainable is implemented by components that learn state from data.
type Trainable interface {
	Component

	// Train fits the component and returns its output together with the
	// artifact to persist. The executor stores the artifact under the
	// node fingerprint.
	Train(ctx context.Context, in Inputs, ec ExecutionContext) (any, *storage.Artifact, error)

	// Load restores the component output from a persisted artifact. A nil
	// artifact means no prior artifact exists; the component must fall
	// back to a freshly initialized state.
	Load(ctx context.Context, a *storage.Artifact, ec ExecutionContext) (any, error)
}

// Provider is implemented by model-provider components, which produce a
// shared model handle consumed by downstream steps.
type Provider interface {
	Component

	// Provide returns the model handle.
	Provide(ctx context.Context, ec ExecutionContext) (any, error)
}

// Factory creates a component from its frozen configuration.
type Factory func(config map[string]any) (Component, error)

// Well-known input parameter names.
const (
	// ParamInput carries the run input to source nodes.
	ParamInput = "input"

	// ParamData carries the upstream message or training data.
	ParamData = "data"

	// ParamModel carries the model-provider output.
	ParamModel = "model"

	// ParamResource carries a trained or loaded component state.
	ParamResource = "resource"
)

// Inputs maps parameter names to resolved input values.
type Inputs map[string]any

// Get returns the value for param.
func (in Inputs) Get(param string) (any, bool) {
	v, ok := in[param]
	return v, ok
}

// Has reports whether param is present.
func (in Inputs) Has(param string) bool {
	_, ok := in[param]
	return ok
}

// Params returns the parameter names in lexical order.
func (in Inputs) Params() []string {
	out := make([]string, 0, len(in))
	for p := range in {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Input returns param converted to T.
//
// Outputs:
//
//	T - The typed value.
//	error - Non-nil if param is missing or holds another type.
func Input[T any](in Inputs, param string) (T, error) {
	var zero T
	v, ok := in[param]
	if !ok {
		return zero, fmt.Errorf("missing input %q", param)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("input %q has type %T, want %T", param, v, zero)
	}
	return t, nil
}

// OptionalInput returns param converted to T, or the zero value and false
// when param is absent or has another type.
func OptionalInput[T any](in Inputs, param string) (T, bool) {
	var zero T
	v, ok := in[param]
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

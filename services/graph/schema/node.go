// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package schema

// Input is one declared input edge of a node.
type Input struct {
	// Param is the logical parameter name the value is passed under.
	Param string `yaml:"param" json:"param"`

	// From is the producing node.
	From string `yaml:"from" json:"from"`
}

// Node is a single computation step in the graph.
type Node struct {
	// Name is unique within a schema.
	Name string `yaml:"name" json:"name"`

	// Component is the registered component name.
	Component string `yaml:"component" json:"component"`

	// Type is the component's role for this step.
	Type ComponentType `yaml:"type" json:"type"`

	// Kind selects the component operation the executor invokes.
	Kind Kind `yaml:"kind" json:"kind"`

	// Trainable is true for nodes whose output is persisted as a Resource.
	Trainable bool `yaml:"trainable,omitempty" json:"trainable,omitempty"`

	// Inputs are ordered input edges.
	Inputs []Input `yaml:"inputs,omitempty" json:"inputs,omitempty"`

	// ModelFrom names the upstream model-provider node, if any.
	ModelFrom string `yaml:"model_from,omitempty" json:"model_from,omitempty"`

	// ResourceFrom names the training node whose Resource a load node reads.
	ResourceFrom string `yaml:"resource_from,omitempty" json:"resource_from,omitempty"`

	// Source marks nodes that receive the run input.
	Source bool `yaml:"source,omitempty" json:"source,omitempty"`

	// Config holds the step settings. Frozen by Builder.Build; treat as read-only.
	Config map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
}

// Dependencies returns the distinct producing nodes in input order,
// followed by ModelFrom when no input already names it.
func (n Node) Dependencies() []string {
	seen := make(map[string]bool, len(n.Inputs)+1)
	deps := make([]string, 0, len(n.Inputs)+1)
	for _, in := range n.Inputs {
		if !seen[in.From] {
			seen[in.From] = true
			deps = append(deps, in.From)
		}
	}
	if n.ModelFrom != "" && !seen[n.ModelFrom] {
		deps = append(deps, n.ModelFrom)
	}
	return deps
}

// clone returns a deep copy of n.
func (n Node) clone() Node {
	out := n
	if n.Inputs != nil {
		out.Inputs = append([]Input(nil), n.Inputs...)
	}
	out.Config = CloneConfig(n.Config)
	return out
}

// CloneConfig deep-copies a configuration mapping, including nested maps
// and slices.
func CloneConfig(cfg map[string]any) map[string]any {
	if cfg == nil {
		return nil
	}
	out := make(map[string]any, len(cfg))
	for k, v := range cfg {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneConfig(t)
	case map[any]any:
		out := make(map[any]any, len(t))
		for k, vv := range t {
			out[k] = cloneValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = cloneValue(vv)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case []byte:
		return append([]byte(nil), t...)
	default:
		return v
	}
}

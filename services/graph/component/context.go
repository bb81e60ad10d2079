// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package component

import (
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianGraph/services/graph/schema"
)

// ExecutionContext is per-run metadata passed to every node invocation.
//
// It is a value type. The executor hands each node its own copy with
// NodeName set, so nodes can never affect one another through it.
type ExecutionContext struct {
	// RunID identifies an inference run. Empty during training.
	RunID string

	// Diagnostics asks components to attach diagnostic data to outputs.
	Diagnostics bool

	// Finetuning is set when training continues from earlier artifacts.
	Finetuning bool

	// Schema is the graph being executed.
	Schema *schema.Schema

	// NodeName is the node currently being invoked.
	NodeName string
}

// Options configures NewExecutionContext.
type Options struct {
	Diagnostics bool
	Finetuning  bool
}

// NewExecutionContext creates the context for one run of s.
//
// Inference runs get a fresh UUID run id. Training runs have none.
func NewExecutionContext(s *schema.Schema, opts Options) ExecutionContext {
	ec := ExecutionContext{
		Diagnostics: opts.Diagnostics,
		Finetuning:  opts.Finetuning,
		Schema:      s,
	}
	if s != nil && s.Mode() == schema.ModePredict {
		ec.RunID = uuid.NewString()
	}
	return ec
}

// ForNode returns a copy of ec scoped to the named node.
func (ec ExecutionContext) ForNode(name string) ExecutionContext {
	ec.NodeName = name
	return ec
}

// IsTraining reports whether this is a training run.
func (ec ExecutionContext) IsTraining() bool {
	return ec.RunID == ""
}

// Node returns the current node from the schema.
func (ec ExecutionContext) Node() (schema.Node, bool) {
	if ec.Schema == nil {
		return schema.Node{}, false
	}
	return ec.Schema.Node(ec.NodeName)
}

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

// Builder constructs a Schema with validation.
//
// Description:
//
//	Nodes are added in declaration order. Build checks that every
//	reference resolves, that the edge set is acyclic, that no node consumes
//	a node declared after it, and that every node without inputs is a
//	source. Node configuration is deep-copied so later changes to the
//	caller's maps do not reach the schema.
//
// Thread Safety:
//
//	Builder is NOT safe for concurrent use. Build the schema in a single goroutine.
//
// Example:
//
//	s, err := schema.NewBuilder(schema.ModeTrain).
//	    AddNode(schema.Node{Name: "run_tok", Component: "WhitespaceTokenizer", ...}).
//	    AddNode(schema.Node{Name: "train_clf", ...}).
//	    Build()
type Builder struct {
	mode  Mode
	nodes []Node
	names map[string]bool
	errs  []error
}

// NewBuilder creates a builder for a schema in the given mode.
func NewBuilder(mode Mode) *Builder {
	return &Builder{
		mode:  mode,
		names: make(map[string]bool),
	}
}

// AddNode appends a node. Duplicate or unnamed nodes are recorded as
// errors and reported by Build.
func (b *Builder) AddNode(n Node) *Builder {
	if n.Name == "" {
		b.errs = append(b.errs, NewConfigurationError("", ErrMissingField, "node %d has no name", len(b.nodes)))
		return b
	}
	if b.names[n.Name] {
		b.errs = append(b.errs, &ConfigurationError{Node: n.Name, Err: ErrDuplicateNode})
		return b
	}
	b.names[n.Name] = true

	n = n.clone()
	if n.Kind == KindTrain {
		n.Trainable = true
	}
	b.nodes = append(b.nodes, n)
	return b
}

// Has reports whether a node named name has been added.
func (b *Builder) Has(name string) bool {
	return b.names[name]
}

// Build validates and constructs the Schema.
//
// Outputs:
//
//	*Schema - The immutable schema.
//	error - A *ConfigurationError describing the first problem found.
func (b *Builder) Build() (*Schema, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	if len(b.nodes) == 0 {
		return nil, &ConfigurationError{Err: ErrEmptySchema}
	}

	index := make(map[string]int, len(b.nodes))
	for i, n := range b.nodes {
		index[n.Name] = i
	}

	for _, n := range b.nodes {
		if err := validateNode(n, index); err != nil {
			return nil, err
		}
	}

	dependents := make(map[string][]string, len(b.nodes))
	for _, n := range b.nodes {
		for _, dep := range n.Dependencies() {
			dependents[dep] = append(dependents[dep], n.Name)
		}
	}

	if err := detectCycles(b.nodes, index); err != nil {
		return nil, err
	}

	for i, n := range b.nodes {
		for _, dep := range n.Dependencies() {
			if index[dep] >= i {
				return nil, NewConfigurationError(n.Name, ErrForwardReference, "input from %q", dep)
			}
		}
	}

	order, stuck := kahn(b.nodes, index, dependents)
	if len(stuck) > 0 {
		return nil, &ConfigurationError{Node: stuck[0], Err: &CycleError{Path: stuck}}
	}

	nodes := make([]Node, len(b.nodes))
	copy(nodes, b.nodes)
	return &Schema{
		mode:       b.mode,
		nodes:      nodes,
		index:      index,
		dependents: dependents,
		topo:       order,
	}, nil
}

// FromNodes builds a schema from an ordered node list.
func FromNodes(mode Mode, nodes []Node) (*Schema, error) {
	b := NewBuilder(mode)
	for _, n := range nodes {
		b.AddNode(n)
	}
	return b.Build()
}

func validateNode(n Node, index map[string]int) error {
	if n.Component == "" {
		return NewConfigurationError(n.Name, ErrMissingField, "component")
	}
	if !n.Kind.Valid() {
		return NewConfigurationError(n.Name, ErrInvalidNode, "unknown kind %q", n.Kind)
	}
	if !n.Type.Valid() {
		return NewConfigurationError(n.Name, ErrInvalidNode, "unknown component type %q", n.Type)
	}
	for _, in := range n.Inputs {
		if in.Param == "" {
			return NewConfigurationError(n.Name, ErrMissingField, "input parameter name")
		}
		if _, ok := index[in.From]; !ok {
			return NewConfigurationError(n.Name, ErrNodeNotFound, "input %q from %q", in.Param, in.From)
		}
	}
	if n.ModelFrom != "" {
		if _, ok := index[n.ModelFrom]; !ok {
			return NewConfigurationError(n.Name, ErrNodeNotFound, "model_from %q", n.ModelFrom)
		}
	}
	if n.Kind == KindLoad && n.ResourceFrom == "" {
		return NewConfigurationError(n.Name, ErrMissingField, "resource_from")
	}
	if len(n.Inputs) == 0 && !n.Source {
		return NewConfigurationError(n.Name, ErrInvalidNode, "node has no inputs and is not a source")
	}
	return nil
}

// detectCycles runs a DFS over input edges in declaration order.
func detectCycles(nodes []Node, index map[string]int) error {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make([]int, len(nodes))
	path := make([]string, 0, len(nodes))

	var dfs func(i int) error
	dfs = func(i int) error {
		state[i] = onStack
		path = append(path, nodes[i].Name)

		for _, dep := range nodes[i].Dependencies() {
			j := index[dep]
			switch state[j] {
			case unvisited:
				if err := dfs(j); err != nil {
					return err
				}
			case onStack:
				start := 0
				for k, name := range path {
					if name == dep {
						start = k
						break
					}
				}
				cycle := append(append([]string(nil), path[start:]...), dep)
				return &ConfigurationError{Node: nodes[i].Name, Err: &CycleError{Path: cycle}}
			}
		}

		path = path[:len(path)-1]
		state[i] = done
		return nil
	}

	for i := range nodes {
		if state[i] == unvisited {
			if err := dfs(i); err != nil {
				return err
			}
		}
	}
	return nil
}

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

import (
	"container/heap"
)

// Schema is an immutable, validated DAG of nodes in declaration order.
//
// Thread Safety:
//
//	Safe for concurrent use. Nothing mutates a Schema after Build.
type Schema struct {
	mode       Mode
	nodes      []Node
	index      map[string]int
	dependents map[string][]string
	topo       []string
}

// Mode returns the run mode the schema was built for, or "" if unset.
func (s *Schema) Mode() Mode {
	return s.mode
}

// Len returns the number of nodes.
func (s *Schema) Len() int {
	return len(s.nodes)
}

// Node returns the node named name. Its Config must not be modified.
func (s *Schema) Node(name string) (Node, bool) {
	i, ok := s.index[name]
	if !ok {
		return Node{}, false
	}
	return s.nodes[i], true
}

// Has reports whether the schema contains name.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Nodes returns a deep copy of the nodes in declaration order.
func (s *Schema) Nodes() []Node {
	out := make([]Node, len(s.nodes))
	for i, n := range s.nodes {
		out[i] = n.clone()
	}
	return out
}

// Names returns node names in declaration order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.nodes))
	for i, n := range s.nodes {
		out[i] = n.Name
	}
	return out
}

// Index returns the declaration index of name, or -1.
func (s *Schema) Index(name string) int {
	i, ok := s.index[name]
	if !ok {
		return -1
	}
	return i
}

// Dependencies returns the distinct nodes that name consumes.
func (s *Schema) Dependencies(name string) []string {
	n, ok := s.Node(name)
	if !ok {
		return nil
	}
	return n.Dependencies()
}

// Dependents returns the nodes that consume name, in declaration order.
func (s *Schema) Dependents(name string) []string {
	return append([]string(nil), s.dependents[name]...)
}

// Targets returns the nodes nothing depends on, in declaration order.
func (s *Schema) Targets() []string {
	var out []string
	for _, n := range s.nodes {
		if len(s.dependents[n.Name]) == 0 {
			out = append(out, n.Name)
		}
	}
	return out
}

// Sources returns the nodes marked as sources, in declaration order.
func (s *Schema) Sources() []string {
	var out []string
	for _, n := range s.nodes {
		if n.Source {
			out = append(out, n.Name)
		}
	}
	return out
}

// TopologicalOrder returns a linearization in which every node follows all
// of its dependencies. Among nodes that are ready at the same time, the one
// declared first comes first, so the order is deterministic.
func (s *Schema) TopologicalOrder() []string {
	return append([]string(nil), s.topo...)
}

// indexHeap is a min-heap of declaration indexes.
type indexHeap []int

func (h indexHeap) Len() int           { return len(h) }
func (h indexHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *indexHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// kahn computes the stable topological order. It returns the nodes it could
// not place, which are non-empty only when the graph has a cycle.
func kahn(nodes []Node, index map[string]int, dependents map[string][]string) (order []string, stuck []string) {
	remaining := make([]int, len(nodes))
	ready := &indexHeap{}
	for i, n := range nodes {
		remaining[i] = len(n.Dependencies())
		if remaining[i] == 0 {
			heap.Push(ready, i)
		}
	}

	order = make([]string, 0, len(nodes))
	for ready.Len() > 0 {
		i := heap.Pop(ready).(int)
		name := nodes[i].Name
		order = append(order, name)
		for _, dep := range dependents[name] {
			j := index[dep]
			remaining[j]--
			if remaining[j] == 0 {
				heap.Push(ready, j)
			}
		}
	}

	for i, n := range nodes {
		if remaining[i] > 0 {
			stuck = append(stuck, n.Name)
		}
	}
	return order, stuck
}

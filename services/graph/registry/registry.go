// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package registry maps component names to their types, trainability,
// capability descriptor and factory.
//
// Components are registered with an explicit Register call before any
// translation happens. Name lookup is the only string dispatch in the
// engine; everything after translation works with the resolved Entry.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/AleutianAI/AleutianGraph/services/graph/capability"
	"github.com/AleutianAI/AleutianGraph/services/graph/component"
	"github.com/AleutianAI/AleutianGraph/services/graph/schema"
)

// Sentinel errors for the registry package.
var (
	// ErrDuplicateComponent is returned when a name is registered twice.
	ErrDuplicateComponent = errors.New("component already registered")

	// ErrInvalidEntry is returned for an entry missing its name, types or factory.
	ErrInvalidEntry = errors.New("invalid registry entry")
)

// Entry describes one registered component.
type Entry struct {
	// Name is the stable component name used in configuration documents.
	Name string

	// Types are the roles the component can fill. The first is its default.
	Types []schema.ComponentType

	// Trainable is the default trainability. Steps may freeze a trainable
	// component but can never make a non-trainable one trainable.
	Trainable bool

	// Descriptor declares language support and required packages.
	Descriptor capability.Descriptor

	// Factory creates the component from its frozen config.
	Factory component.Factory
}

// PrimaryType returns the component's default role.
func (e Entry) PrimaryType() schema.ComponentType {
	if len(e.Types) == 0 {
		return ""
	}
	return e.Types[0]
}

// HasType reports whether the component can fill role t.
func (e Entry) HasType(t schema.ComponentType) bool {
	for _, have := range e.Types {
		if have == t {
			return true
		}
	}
	return false
}

func (e Entry) validate() error {
	if e.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidEntry)
	}
	if len(e.Types) == 0 {
		return fmt.Errorf("%w: component %q declares no types", ErrInvalidEntry, e.Name)
	}
	for _, t := range e.Types {
		if !t.Valid() {
			return fmt.Errorf("%w: component %q has unknown type %q", ErrInvalidEntry, e.Name, t)
		}
	}
	if e.Factory == nil {
		return fmt.Errorf("%w: component %q has no factory", ErrInvalidEntry, e.Name)
	}
	return nil
}

// Registry is a set of component entries.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New returns an empty registry. Tests use this instead of Default.
func New() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

var defaultRegistry = New()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

// Register adds e.
//
// Outputs:
//
//	error - ErrInvalidEntry for an incomplete entry, ErrDuplicateComponent
//	        when the name is taken.
func (r *Registry) Register(e Entry) error {
	if err := e.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[e.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateComponent, e.Name)
	}
	e.Types = append([]schema.ComponentType(nil), e.Types...)
	e.Descriptor.Packages = append([]string(nil), e.Descriptor.Packages...)
	r.entries[e.Name] = e
	return nil
}

// MustRegister is Register that panics on error. Use it for static
// registration at program start.
func (r *Registry) MustRegister(entries ...Entry) {
	for _, e := range entries {
		if err := r.Register(e); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the entry for name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Resolve returns the entry for name, or a *schema.ConfigurationError
// wrapping schema.ErrUnknownComponent.
func (r *Registry) Resolve(node, name string) (Entry, error) {
	e, ok := r.Lookup(name)
	if !ok {
		return Entry{}, schema.NewConfigurationError(node, schema.ErrUnknownComponent, "component %q is not registered", name)
	}
	return e, nil
}

// Descriptor implements capability.DescriptorSource.
func (r *Registry) Descriptor(name string) (capability.Descriptor, bool) {
	e, ok := r.Lookup(name)
	if !ok {
		return capability.Descriptor{}, false
	}
	return e.Descriptor, true
}

// Create instantiates the component for node n.
func (r *Registry) Create(n schema.Node) (component.Component, error) {
	e, err := r.Resolve(n.Name, n.Component)
	if err != nil {
		return nil, err
	}
	c, err := e.Factory(schema.CloneConfig(n.Config))
	if err != nil {
		return nil, fmt.Errorf("create component %q for node %q: %w", n.Component, n.Name, err)
	}
	return c, nil
}

// Names returns the registered names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered components.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

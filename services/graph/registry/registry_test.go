// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGraph/services/graph/capability"
	"github.com/AleutianAI/AleutianGraph/services/graph/component"
	"github.com/AleutianAI/AleutianGraph/services/graph/schema"
)

type echo struct {
	config map[string]any
}

func (e *echo) Process(_ context.Context, in component.Inputs, _ component.ExecutionContext) (any, error) {
	return in, nil
}

func echoEntry(name string) Entry {
	return Entry{
		Name:       name,
		Types:      []schema.ComponentType{schema.TypeTokenizer},
		Descriptor: capability.Descriptor{Languages: capability.OnlyLanguages("en")},
		Factory: func(cfg map[string]any) (component.Component, error) {
			return &echo{config: cfg}, nil
		},
	}
}

func TestRegister(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(echoEntry("Echo")))

	e, ok := r.Lookup("Echo")
	require.True(t, ok)
	assert.Equal(t, schema.TypeTokenizer, e.PrimaryType())
	assert.True(t, e.HasType(schema.TypeTokenizer))
	assert.False(t, e.HasType(schema.TypeFeaturizer))
	assert.Equal(t, []string{"Echo"}, r.Names())
	assert.Equal(t, 1, r.Len())
}

func TestRegister_Duplicate(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(echoEntry("Echo")))
	assert.ErrorIs(t, r.Register(echoEntry("Echo")), ErrDuplicateComponent)
}

func TestRegister_Invalid(t *testing.T) {
	r := New()
	noName := echoEntry("")
	noTypes := echoEntry("A")
	noTypes.Types = nil
	badType := echoEntry("B")
	badType.Types = []schema.ComponentType{"parser"}
	noFactory := echoEntry("C")
	noFactory.Factory = nil

	for _, e := range []Entry{noName, noTypes, badType, noFactory} {
		assert.ErrorIs(t, r.Register(e), ErrInvalidEntry)
	}
	assert.Zero(t, r.Len())
}

func TestMustRegister_Panics(t *testing.T) {
	r := New()
	r.MustRegister(echoEntry("Echo"))
	assert.Panics(t, func() { r.MustRegister(echoEntry("Echo")) })
}

func TestResolve_Unknown(t *testing.T) {
	_, err := New().Resolve("step", "Ghost")
	var cfgErr *schema.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "step", cfgErr.Node)
	assert.ErrorIs(t, err, schema.ErrUnknownComponent)
}

func TestDescriptor(t *testing.T) {
	r := New()
	r.MustRegister(echoEntry("Echo"))

	d, ok := r.Descriptor("Echo")
	require.True(t, ok)
	assert.True(t, d.Languages.Allows("en"))
	assert.False(t, d.Languages.Allows("de"))

	_, ok = r.Descriptor("Ghost")
	assert.False(t, ok)

	var _ capability.DescriptorSource = r
}

func TestCreate_PassesConfigCopy(t *testing.T) {
	r := New()
	r.MustRegister(echoEntry("Echo"))

	n := schema.Node{Name: "tok", Component: "Echo", Config: map[string]any{"k": "v"}}
	c, err := r.Create(n)
	require.NoError(t, err)

	e := c.(*echo)
	e.config["k"] = "changed"
	assert.Equal(t, "v", n.Config["k"])
}

func TestCreate_FactoryError(t *testing.T) {
	r := New()
	entry := echoEntry("Broken")
	entry.Factory = func(map[string]any) (component.Component, error) {
		return nil, errors.New("bad config")
	}
	r.MustRegister(entry)

	_, err := r.Create(schema.Node{Name: "n", Component: "Broken"})
	assert.ErrorContains(t, err, "bad config")
}

func TestDefault_IsShared(t *testing.T) {
	assert.Same(t, Default(), Default())
}

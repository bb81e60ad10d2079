// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package capability

import (
	"context"
	"errors"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGraph/services/graph/schema"
)

type mapSource map[string]Descriptor

func (m mapSource) Descriptor(name string) (Descriptor, bool) {
	d, ok := m[name]
	return d, ok
}

func TestLanguageSupport_States(t *testing.T) {
	assert.True(t, AllLanguages().Allows("en"))
	assert.True(t, LanguageSupport{}.Allows("xx"))
	assert.False(t, NoLanguages().Allows("en"))
	assert.True(t, OnlyLanguages("en", "de").Allows("de"))
	assert.False(t, OnlyLanguages("en").Allows("fr"))
	assert.False(t, OnlyLanguages().Allows("en"))
}

func TestLanguageSupport_Except(t *testing.T) {
	ls := AllLanguages().Except("en")
	assert.False(t, ls.Allows("en"))
	assert.True(t, ls.Allows("de"))

	only := OnlyLanguages("en", "de").Except("de")
	assert.True(t, only.Allows("en"))
	assert.False(t, only.Allows("de"))

	// Except must not mutate the receiver.
	base := OnlyLanguages("en")
	_ = base.Except("en")
	assert.True(t, base.Allows("en"))
}

func TestLanguageSupport_Normalized(t *testing.T) {
	assert.True(t, OnlyLanguages(" EN ").Allows("en"))
	assert.False(t, AllLanguages().Except("De").Allows("de"))
}

func TestFromLists(t *testing.T) {
	supported := FromLists([]string{"en"}, nil)
	assert.True(t, supported.Allows("en"))
	assert.False(t, supported.Allows("de"))

	notSupported := FromLists(nil, []string{"en"})
	assert.False(t, notSupported.Allows("en"))
	assert.True(t, notSupported.Allows("de"))

	assert.Equal(t, "only [en]", supported.String())
	assert.Equal(t, "all except [en]", notSupported.String())
	assert.Nil(t, notSupported.Supported())
	assert.Equal(t, []string{"en"}, notSupported.Excluded())
}

func singleNodeSchema(t *testing.T, component string) *schema.Schema {
	t.Helper()
	s, err := schema.NewBuilder(schema.ModeTrain).
		AddNode(schema.Node{Name: "C", Component: component, Type: schema.TypeTokenizer, Kind: schema.KindProcess, Source: true}).
		Build()
	require.NoError(t, err)
	return s
}

func TestValidator_Language(t *testing.T) {
	src := mapSource{
		"OnlyEn": {Languages: FromLists([]string{"en"}, nil)},
		"NotEn":  {Languages: FromLists(nil, []string{"en"})},
	}
	v := NewValidator(src, NewStaticEnvironment(), nil)
	ctx := context.Background()

	assert.NoError(t, v.Validate(ctx, singleNodeSchema(t, "OnlyEn"), "en"))
	err := v.Validate(ctx, singleNodeSchema(t, "OnlyEn"), "de")
	var langErr *IncompatibleLanguageError
	require.True(t, errors.As(err, &langErr))
	assert.Equal(t, "C", langErr.Node)
	assert.Equal(t, "de", langErr.Language)
	assert.ErrorIs(t, err, ErrIncompatibleLanguage)

	assert.ErrorIs(t, v.Validate(ctx, singleNodeSchema(t, "NotEn"), "en"), ErrIncompatibleLanguage)
	assert.NoError(t, v.Validate(ctx, singleNodeSchema(t, "NotEn"), "de"))

	// No run language configured: language checks are skipped.
	assert.NoError(t, v.Validate(ctx, singleNodeSchema(t, "OnlyEn"), ""))
}

func TestValidator_MissingDependency(t *testing.T) {
	src := mapSource{"NeedsSpacy": {Packages: []string{"spacy"}}}
	ctx := context.Background()

	err := NewValidator(src, NewStaticEnvironment("numpy"), nil).Validate(ctx, singleNodeSchema(t, "NeedsSpacy"), "en")
	var depErr *MissingDependencyError
	require.True(t, errors.As(err, &depErr))
	assert.Equal(t, "C", depErr.Node)
	assert.Equal(t, "spacy", depErr.Package)

	assert.NoError(t, NewValidator(src, NewStaticEnvironment("spacy"), nil).Validate(ctx, singleNodeSchema(t, "NeedsSpacy"), "en"))
}

func TestValidator_UnknownComponent(t *testing.T) {
	err := NewValidator(mapSource{}, NewStaticEnvironment(), nil).Validate(context.Background(), singleNodeSchema(t, "Ghost"), "en")
	assert.ErrorIs(t, err, schema.ErrUnknownComponent)
}

func TestValidator_FirstViolationInDeclarationOrder(t *testing.T) {
	src := mapSource{
		"Fine":   {},
		"NoDe":   {Languages: OnlyLanguages("en")},
		"NoPkgs": {Packages: []string{"missing"}},
	}
	s, err := schema.NewBuilder(schema.ModeTrain).
		AddNode(schema.Node{Name: "a", Component: "Fine", Type: schema.TypeTokenizer, Kind: schema.KindProcess, Source: true}).
		AddNode(schema.Node{Name: "b", Component: "NoPkgs", Type: schema.TypeFeaturizer, Kind: schema.KindProcess, Inputs: []schema.Input{{Param: "data", From: "a"}}}).
		AddNode(schema.Node{Name: "c", Component: "NoDe", Type: schema.TypeFeaturizer, Kind: schema.KindProcess, Inputs: []schema.Input{{Param: "data", From: "b"}}}).
		Build()
	require.NoError(t, err)

	err = NewValidator(src, NewStaticEnvironment(), nil).Validate(context.Background(), s, "de")
	var depErr *MissingDependencyError
	require.True(t, errors.As(err, &depErr))
	assert.Equal(t, "b", depErr.Node)
}

func TestValidator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewValidator(mapSource{"Fine": {}}, NewStaticEnvironment(), nil).Validate(ctx, singleNodeSchema(t, "Fine"), "en")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildInfoEnvironment(t *testing.T) {
	env := &BuildInfoEnvironment{read: func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{
			Main: debug.Module{Path: "github.com/example/app"},
			Deps: []*debug.Module{
				{Path: "github.com/dgraph-io/badger/v4"},
				{Path: "gopkg.in/yaml.v3"},
			},
		}, true
	}}

	assert.True(t, env.Has("github.com/dgraph-io/badger/v4"))
	assert.True(t, env.Has("github.com/dgraph-io/badger/v4/options"))
	assert.True(t, env.Has("gopkg.in/yaml.v3"))
	assert.True(t, env.Has("github.com/example/app/internal/x"))
	assert.False(t, env.Has("github.com/dgraph-io"))
	assert.False(t, env.Has("spacy"))
	assert.False(t, env.Has("not a path"))
}

func TestExecutableEnvironment(t *testing.T) {
	env := &ExecutableEnvironment{lookPath: func(name string) (string, error) {
		if name == "git" {
			return "/usr/bin/git", nil
		}
		return "", errors.New("not found")
	}}
	assert.True(t, env.Has("git"))
	assert.False(t, env.Has("spacy"))
	assert.False(t, env.Has("/usr/bin/git"))
}

func TestAnyEnvironment(t *testing.T) {
	env := AnyEnvironment{nil, NewStaticEnvironment("a"), NewStaticEnvironment("b")}
	assert.True(t, env.Has("a"))
	assert.True(t, env.Has("b"))
	assert.False(t, env.Has("c"))
}

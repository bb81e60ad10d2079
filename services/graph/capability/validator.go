// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package capability checks a graph against the run's language and the
// packages available in the environment before anything executes.
package capability

import (
	"context"
	"log/slog"

	"github.com/AleutianAI/AleutianGraph/services/graph/schema"
)

// Descriptor is a component's declared language support and package needs.
type Descriptor struct {
	Languages LanguageSupport

	// Packages are required external packages: Go import paths or
	// executable names, depending on the Environment in use.
	Packages []string
}

// DescriptorSource resolves a component name to its Descriptor.
// The component registry implements it.
type DescriptorSource interface {
	Descriptor(component string) (Descriptor, bool)
}

// Validator gates execution on capability checks.
type Validator struct {
	source DescriptorSource
	env    Environment
	logger *slog.Logger
}

// NewValidator creates a Validator.
//
// Inputs:
//
//	source - Resolves component descriptors. Required.
//	env - Package availability. If nil, uses DefaultEnvironment().
//	logger - If nil, uses slog.Default().
func NewValidator(source DescriptorSource, env Environment, logger *slog.Logger) *Validator {
	if env == nil {
		env = DefaultEnvironment()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{source: source, env: env, logger: logger}
}

// Validate checks every node of s in declaration order.
//
// Description:
//
//	For each node, the run language must be accepted by the component's
//	LanguageSupport and every required package must be available. An
//	empty language skips the language check. The first violation is
//	returned; nothing is executed by this call.
//
// Outputs:
//
//	error - nil, *IncompatibleLanguageError, *MissingDependencyError, or a
//	        *schema.ConfigurationError for an unregistered component.
func (v *Validator) Validate(ctx context.Context, s *schema.Schema, language string) error {
	for _, n := range s.Nodes() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := v.ValidateNode(n, language); err != nil {
			v.logger.Warn("capability check failed",
				slog.String("node", n.Name),
				slog.String("component", n.Component),
				slog.String("error", err.Error()),
			)
			return err
		}
	}
	v.logger.Debug("capability check passed",
		slog.Int("nodes", s.Len()),
		slog.String("language", language),
	)
	return nil
}

// ValidateNode checks a single node.
func (v *Validator) ValidateNode(n schema.Node, language string) error {
	d, ok := v.source.Descriptor(n.Component)
	if !ok {
		return schema.NewConfigurationError(n.Name, schema.ErrUnknownComponent, "component %q", n.Component)
	}
	if language != "" && !d.Languages.Allows(language) {
		return &IncompatibleLanguageError{Node: n.Name, Language: language, Support: d.Languages.String()}
	}
	for _, pkg := range d.Packages {
		if !v.env.Has(pkg) {
			return &MissingDependencyError{Node: n.Name, Package: pkg}
		}
	}
	return nil
}

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
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the schema package. They are always wrapped in a
// *ConfigurationError.
var (
	// ErrUnknownComponent is returned when a step names an unregistered component.
	ErrUnknownComponent = errors.New("unknown component")

	// ErrCycleDetected is returned when node inputs form a cycle.
	ErrCycleDetected = errors.New("cycle detected in graph")

	// ErrForwardReference is returned when a node consumes a node declared after it.
	ErrForwardReference = errors.New("reference to a node declared later")

	// ErrNodeNotFound is returned when a referenced node does not exist.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDuplicateNode is returned when two nodes share a name.
	ErrDuplicateNode = errors.New("node with this name already exists")

	// ErrMissingField is returned when a required field is absent.
	ErrMissingField = errors.New("required field missing")

	// ErrInvalidNode is returned for a node that is structurally invalid,
	// such as a non-source node without inputs or an unknown kind.
	ErrInvalidNode = errors.New("invalid node")

	// ErrEmptySchema is returned when building a schema with no nodes.
	ErrEmptySchema = errors.New("schema has no nodes")
)

// ConfigurationError reports a malformed configuration or schema.
type ConfigurationError struct {
	// Node is the offending node or step, empty for document-level problems.
	Node string

	// Detail adds context such as the field or reference involved.
	Detail string

	// Err is one of the package sentinels.
	Err error
}

// Error returns the error message.
func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("configuration error")
	if e.Node != "" {
		fmt.Fprintf(&b, ": node %q", e.Node)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates a ConfigurationError.
func NewConfigurationError(node string, err error, detailFormat string, args ...any) *ConfigurationError {
	return &ConfigurationError{
		Node:   node,
		Detail: fmt.Sprintf(detailFormat, args...),
		Err:    err,
	}
}

// CycleError provides details about a detected cycle.
type CycleError struct {
	Path []string
}

// Error returns the cycle description.
func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %s", strings.Join(e.Path, " -> "))
}

// Unwrap returns ErrCycleDetected.
func (e *CycleError) Unwrap() error {
	return ErrCycleDetected
}

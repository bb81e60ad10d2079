// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package executor

import (
	"errors"
	"fmt"
)

// Sentinel errors for the executor package.
var (
	// ErrNilContext indicates a nil context.Context was passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrNilSchema indicates Run was called without a schema.
	ErrNilSchema = errors.New("schema must not be nil")

	// ErrNilStore indicates the executor was created without a store.
	ErrNilStore = errors.New("resource store must not be nil")

	// ErrUnsupportedKind is returned when a component does not implement
	// the operation its node kind requires.
	ErrUnsupportedKind = errors.New("component does not support node kind")

	// ErrNodeSkipped marks nodes that never ran because a dependency failed.
	ErrNodeSkipped = errors.New("node skipped after upstream failure")
)

// NodeExecutionError wraps the failure of a single node.
//
// Resources committed before the failure stay valid.
type NodeExecutionError struct {
	Node string
	Err  error
}

// Error implements error.
func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %s: %v", e.Node, e.Err)
}

// Unwrap returns the underlying error.
func (e *NodeExecutionError) Unwrap() error {
	return e.Err
}

func nodeError(node string, err error) *NodeExecutionError {
	return &NodeExecutionError{Node: node, Err: err}
}

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
	"errors"
	"fmt"
)

// Sentinel errors for the capability package.
var (
	// ErrIncompatibleLanguage matches every *IncompatibleLanguageError.
	ErrIncompatibleLanguage = errors.New("language not supported")

	// ErrMissingDependency matches every *MissingDependencyError.
	ErrMissingDependency = errors.New("required package not available")
)

// IncompatibleLanguageError reports a node that does not support the run language.
type IncompatibleLanguageError struct {
	Node     string
	Language string

	// Support describes what the component accepts.
	Support string
}

// Error returns the error message.
func (e *IncompatibleLanguageError) Error() string {
	return fmt.Sprintf("node %q does not support language %q (supports %s)", e.Node, e.Language, e.Support)
}

// Is reports whether target is ErrIncompatibleLanguage.
func (e *IncompatibleLanguageError) Is(target error) bool {
	return target == ErrIncompatibleLanguage
}

// MissingDependencyError reports a node whose required package is absent.
type MissingDependencyError struct {
	Node    string
	Package string
}

// Error returns the error message.
func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("node %q requires package %q, which is not available in this environment", e.Node, e.Package)
}

// Is reports whether target is ErrMissingDependency.
func (e *MissingDependencyError) Is(target error) bool {
	return target == ErrMissingDependency
}

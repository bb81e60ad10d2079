// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import "errors"

// Sentinel errors for the graph package.
var (
	// ErrInvalidInput indicates a nil or empty required argument.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNilContext indicates a nil context.Context was passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrManifestCorrupt indicates the manifest checksum does not match its content.
	ErrManifestCorrupt = errors.New("manifest checksum mismatch")

	// ErrManifestVersionMismatch indicates a manifest written by an incompatible version.
	ErrManifestVersionMismatch = errors.New("manifest version mismatch")
)

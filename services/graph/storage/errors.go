// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"errors"
	"fmt"
)

// Sentinel errors for the storage package.
var (
	// ErrResourceNotFound is returned when no committed artifact exists for a fingerprint.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrInvalidFingerprint is returned for empty fingerprints.
	ErrInvalidFingerprint = errors.New("invalid fingerprint")

	// ErrInvalidEntryName is returned when an artifact entry name is not a clean relative path.
	ErrInvalidEntryName = errors.New("invalid artifact entry name")

	// ErrWriterClosed is returned when a Writer is used after Commit or Abort.
	ErrWriterClosed = errors.New("writer already committed or aborted")

	// ErrCorruptArtifact is returned when stored content does not match its index.
	ErrCorruptArtifact = errors.New("artifact content does not match its index")

	// ErrStoreClosed is returned when a closed store is used.
	ErrStoreClosed = errors.New("store is closed")

	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown storage backend")
)

// ResourceNotFoundError reports a read against a fingerprint with no stored
// artifact. It matches ErrResourceNotFound with errors.Is.
type ResourceNotFoundError struct {
	Fingerprint Fingerprint
}

// Error returns the error message.
func (e *ResourceNotFoundError) Error() string {
	return fmt.Sprintf("resource %q not found", string(e.Fingerprint))
}

// Is reports whether target is ErrResourceNotFound.
func (e *ResourceNotFoundError) Is(target error) bool {
	return target == ErrResourceNotFound
}

func notFound(fp Fingerprint) error {
	return &ResourceNotFoundError{Fingerprint: fp}
}

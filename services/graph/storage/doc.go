// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage provides the content-addressed resource store used by the
// graph executor to persist and reuse trained node artifacts.
//
// Every artifact is addressed by a Fingerprint. Writes go through a scoped
// Writer obtained from Store.Begin and end in exactly one of Commit or Abort;
// the Write helper guarantees that on every exit path, panics included.
//
// # Atomicity
//
// A committed artifact is visible in full or not at all. Each backend stages
// entries first and publishes a small index last; readers only trust the
// index. Concurrent writers for the same fingerprint race on publishing the
// index: the first one wins and later commits become no-ops that return the
// same Resource.
//
// # Backends
//
//   - LocalStore: directory per fingerprint, staged in a temp dir and renamed
//   - BadgerStore: one badger transaction per artifact
//   - BlobStore on GCS (NewGCSStore): objects plus an index written with a
//     DoesNotExist precondition
//   - BlobStore on Azure (NewAzureStore): blobs plus an index written with
//     If-None-Match: *
//   - MemoryStore: process-local map, for tests and dry runs
//
// # Thread Safety
//
// All Store implementations are safe for concurrent use. A Writer must be
// used by a single goroutine.
package storage

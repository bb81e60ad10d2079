// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package schema defines the static graph description executed by the
// graph executor.
//
// A Schema is an ordered set of Nodes. Each node names a registered
// component, the operation the executor invokes on it (its Kind), and its
// input edges. Schemas are produced by the recipe translator and are
// immutable once built.
//
// # Invariants
//
// Builder.Build rejects schemas where:
//
//   - an input or model_from reference does not resolve
//   - a node consumes a node declared after it
//   - the edges form a cycle
//   - a node has no inputs and is not marked as a source
//
// All rejections are *ConfigurationError values wrapping a package sentinel.
package schema

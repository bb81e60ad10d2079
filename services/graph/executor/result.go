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
	"sort"
	"time"

	"github.com/AleutianAI/AleutianGraph/services/graph/storage"
)

// Result is the outcome of one Run.
//
// On failure Run still returns the partial Result, holding whatever
// completed before the failing node.
type Result struct {
	// RunID is copied from the execution context.
	RunID string

	// Outputs maps node name to its output.
	Outputs map[string]any

	// Resources maps train and load node names to the artifact they
	// produced or consumed.
	Resources map[string]storage.Resource

	// Fingerprints maps node name to its computed fingerprint.
	Fingerprints map[string]storage.Fingerprint

	// CacheHits lists train nodes restored from the store, in completion order.
	CacheHits []string

	// Skipped lists nodes that never ran because a dependency failed.
	Skipped []string

	// FailedNode is the first node that failed, or "".
	FailedNode string

	// NodeDurations holds the wall time of each executed node.
	NodeDurations map[string]time.Duration

	// Duration is the wall time of the whole run.
	Duration time.Duration
}

func newResult(runID string, n int) *Result {
	return &Result{
		RunID:         runID,
		Outputs:       make(map[string]any, n),
		Resources:     make(map[string]storage.Resource),
		Fingerprints:  make(map[string]storage.Fingerprint, n),
		NodeDurations: make(map[string]time.Duration, n),
	}
}

// Output returns the output of node name.
func (r *Result) Output(name string) (any, bool) {
	v, ok := r.Outputs[name]
	return v, ok
}

// Completed reports whether node name produced an output.
func (r *Result) Completed(name string) bool {
	_, ok := r.Outputs[name]
	return ok
}

// CacheHit reports whether train node name was restored from the store.
func (r *Result) CacheHit(name string) bool {
	for _, hit := range r.CacheHits {
		if hit == name {
			return true
		}
	}
	return false
}

// ResourceNames returns the nodes holding a Resource, sorted.
func (r *Result) ResourceNames() []string {
	out := make([]string, 0, len(r.Resources))
	for name := range r.Resources {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

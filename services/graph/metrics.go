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

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// engineRuns counts engine runs.
	// Labels: mode (train, predict), status (success, config_error, capability_error, node_error)
	engineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aleutian_graph",
		Subsystem: "engine",
		Name:      "runs_total",
		Help:      "Total engine runs by mode and outcome",
	}, []string{"mode", "status"})

	// engineRunDuration measures end-to-end run latency including translation.
	engineRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aleutian_graph",
		Subsystem: "engine",
		Name:      "run_duration_seconds",
		Help:      "Engine run duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	}, []string{"mode"})

	// engineCacheHits counts train nodes restored from the resource store.
	engineCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "aleutian_graph",
		Subsystem: "engine",
		Name:      "cache_hits_total",
		Help:      "Train nodes restored from cached artifacts",
	})
)

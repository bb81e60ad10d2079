// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes a trained graph over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianGraph/services/graph"
	"github.com/AleutianAI/AleutianGraph/services/graph/capability"
	"github.com/AleutianAI/AleutianGraph/services/graph/executor"
	"github.com/AleutianAI/AleutianGraph/services/graph/schema"
	"github.com/AleutianAI/AleutianGraph/services/graph/telemetry"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "1.0.0"

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequest = "invalid_request"
	CodeNotReady       = "not_ready"
	CodeConfiguration  = "configuration_error"
	CodeCapability     = "capability_error"
	CodeNodeFailed     = "node_failed"
	CodeCanceled       = "canceled"
	CodeInternal       = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`

	// Node is the failing node for node_failed errors.
	Node string `json:"node,omitempty"`
}

// HealthResponse is the body of GET /v1/graph/health.
type HealthResponse struct {
	Status    string     `json:"status"`
	Version   string     `json:"version"`
	Ready     bool       `json:"ready"`
	Recipe    string     `json:"recipe,omitempty"`
	Language  string     `json:"language,omitempty"`
	Nodes     []string   `json:"nodes,omitempty"`
	TrainedAt *time.Time `json:"trained_at,omitempty"`
}

// PredictRequest is the body of POST /v1/graph/predict.
type PredictRequest struct {
	// Message is passed to the graph's source nodes: a string or an object
	// with a "text" field.
	Message any `json:"message" binding:"required"`

	Diagnostics bool `json:"diagnostics"`
}

// PredictResponse is the body of a successful prediction.
type PredictResponse struct {
	RunID      string         `json:"run_id"`
	Outputs    map[string]any `json:"outputs"`
	DurationMs int64          `json:"duration_ms"`
}

// Handlers serves one engine and the manifest it predicts with.
//
// Thread Safety:
//
//	Safe for concurrent use. SetManifest swaps the model for later requests.
type Handlers struct {
	engine *graph.Engine
	logger *slog.Logger

	mu       sync.RWMutex
	manifest *graph.Manifest
}

// NewHandlers creates handlers. m may be nil until a model is trained.
func NewHandlers(engine *graph.Engine, m *graph.Manifest, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{engine: engine, manifest: m, logger: logger}
}

// SetManifest replaces the served model.
func (h *Handlers) SetManifest(m *graph.Manifest) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.manifest = m
}

func (h *Handlers) currentManifest() *graph.Manifest {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.manifest
}

// HandleHealth handles GET /v1/graph/health. It always answers 200; Ready
// reports whether a model is loaded.
func (h *Handlers) HandleHealth(c *gin.Context) {
	resp := HealthResponse{Status: "healthy", Version: ServiceVersion}
	if m := h.currentManifest(); m != nil {
		resp.Ready = true
		resp.Recipe = m.Document.Recipe
		resp.Language = m.Document.Language
		resp.Nodes = m.Nodes()
		trainedAt := m.TrainedAt
		resp.TrainedAt = &trainedAt
	}
	c.JSON(http.StatusOK, resp)
}

// HandleSchema handles GET /v1/graph/schema, returning the predict nodes
// in execution order.
func (h *Handlers) HandleSchema(c *gin.Context) {
	m := h.currentManifest()
	if m == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "no model loaded", Code: CodeNotReady})
		return
	}
	s, err := h.engine.Validate(c.Request.Context(), m.Document, schema.ModePredict)
	if err != nil {
		h.writeError(c, err)
		return
	}
	nodes := make([]schema.Node, 0, s.Len())
	for _, name := range s.TopologicalOrder() {
		n, _ := s.Node(name)
		nodes = append(nodes, n)
	}
	c.JSON(http.StatusOK, gin.H{"mode": s.Mode(), "nodes": nodes, "targets": s.Targets()})
}

// HandlePredict handles POST /v1/graph/predict.
//
// Response:
//
//	200 OK: PredictResponse
//	400 Bad Request: malformed body
//	422 Unprocessable Entity: the model's graph fails translation or capability checks
//	500 Internal Server Error: a node failed
//	503 Service Unavailable: no model is loaded
func (h *Handlers) HandlePredict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeInvalidRequest})
		return
	}
	m := h.currentManifest()
	if m == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "no model loaded", Code: CodeNotReady})
		return
	}

	ctx := c.Request.Context()
	start := time.Now()
	res, err := h.engine.Predict(ctx, m, req.Message, graph.RunOptions{Diagnostics: req.Diagnostics})
	if err != nil {
		h.writeError(c, err)
		return
	}

	telemetry.LoggerWithTrace(ctx, h.logger).Debug("prediction served",
		slog.String("run_id", res.RunID),
		slog.Duration("duration", time.Since(start)),
	)
	c.JSON(http.StatusOK, PredictResponse{
		RunID:      res.RunID,
		Outputs:    res.Outputs,
		DurationMs: time.Since(start).Milliseconds(),
	})
}

func (h *Handlers) writeError(c *gin.Context, err error) {
	var cfgErr *schema.ConfigurationError
	var nodeErr *executor.NodeExecutionError

	status, resp := http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeInternal}
	switch {
	case errors.As(err, &cfgErr):
		status, resp.Code = http.StatusUnprocessableEntity, CodeConfiguration
	case errors.Is(err, capability.ErrIncompatibleLanguage), errors.Is(err, capability.ErrMissingDependency):
		status, resp.Code = http.StatusUnprocessableEntity, CodeCapability
	case errors.As(err, &nodeErr):
		// A node that hit its own deadline is still reported as that node's failure.
		resp.Code, resp.Node = CodeNodeFailed, nodeErr.Node
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status, resp.Code = http.StatusServiceUnavailable, CodeCanceled
	case errors.Is(err, graph.ErrInvalidInput):
		status, resp.Code = http.StatusBadRequest, CodeInvalidRequest
	}

	telemetry.LoggerWithTrace(c.Request.Context(), h.logger).Warn("request failed",
		slog.String("path", c.FullPath()),
		slog.String("code", resp.Code),
		slog.String("error", err.Error()),
	)
	c.JSON(status, resp)
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGraph/services/graph"
	"github.com/AleutianAI/AleutianGraph/services/graph/capability"
	"github.com/AleutianAI/AleutianGraph/services/graph/components"
	"github.com/AleutianAI/AleutianGraph/services/graph/executor"
	"github.com/AleutianAI/AleutianGraph/services/graph/recipe"
	"github.com/AleutianAI/AleutianGraph/services/graph/registry"
	"github.com/AleutianAI/AleutianGraph/services/graph/storage"
)

const testDoc = `
recipe: default.v1
language: en
pipeline:
  - name: WhitespaceTokenizer
  - name: KeywordIntentClassifier
policies:
  - name: MemoizationPolicy
  - name: TEDPolicy
`

const testData = `
examples:
  - text: hello there
    intent: greet
  - text: book a flight
    intent: book_flight
stories:
  - intent: greet
    action: utter_greet
  - intent: book_flight
    action: action_book_flight
`

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(t *testing.T, trained bool) (*gin.Engine, *Handlers) {
	t.Helper()
	reg := registry.New()
	require.NoError(t, components.Register(reg))
	e, err := graph.NewEngine(storage.NewMemoryStore(), reg, graph.Options{Environment: capability.NewStaticEnvironment()})
	require.NoError(t, err)

	var m *graph.Manifest
	if trained {
		doc, err := recipe.Parse([]byte(testDoc))
		require.NoError(t, err)
		td, err := components.ParseTrainingData([]byte(testData))
		require.NoError(t, err)
		res, err := e.Train(context.Background(), doc, td, graph.RunOptions{})
		require.NoError(t, err)
		m = res.Manifest
	}

	h := NewHandlers(e, m, nil)
	router := gin.New()
	RegisterRoutes(router.Group("/v1"), h)
	return router, h
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	t.Run("no model", func(t *testing.T) {
		router, _ := setupRouter(t, false)
		w := do(t, router, http.MethodGet, "/v1/graph/health", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp.Status)
		assert.False(t, resp.Ready)
		assert.Nil(t, resp.TrainedAt)
	})

	t.Run("trained", func(t *testing.T) {
		router, _ := setupRouter(t, true)
		w := do(t, router, http.MethodGet, "/v1/graph/health", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Ready)
		assert.Equal(t, "default.v1", resp.Recipe)
		assert.Equal(t, "en", resp.Language)
		assert.Contains(t, resp.Nodes, "train_KeywordIntentClassifier")
		require.NotNil(t, resp.TrainedAt)
	})
}

func TestHandlePredict(t *testing.T) {
	router, _ := setupRouter(t, true)

	w := do(t, router, http.MethodPost, "/v1/graph/predict", PredictRequest{Message: "hello there"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		RunID   string                                  `json:"run_id"`
		Outputs map[string]components.PolicyPrediction `json:"outputs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, "utter_greet", resp.Outputs["run_MemoizationPolicy"].Action)
	assert.Equal(t, "utter_greet", resp.Outputs["run_TEDPolicy"].Action)

	// An object message carries its text under "text".
	w = do(t, router, http.MethodPost, "/v1/graph/predict", map[string]any{
		"message": map[string]any{"text": "please book a flight"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "action_book_flight", resp.Outputs["run_TEDPolicy"].Action)
}

func TestHandlePredict_Errors(t *testing.T) {
	tests := []struct {
		name    string
		trained bool
		body    any
		status  int
		code    string
	}{
		{"malformed json", true, `{"message":`, http.StatusBadRequest, CodeInvalidRequest},
		{"missing message", true, `{"diagnostics":true}`, http.StatusBadRequest, CodeInvalidRequest},
		{"no model", false, PredictRequest{Message: "hi"}, http.StatusServiceUnavailable, CodeNotReady},
		{"unusable message", true, PredictRequest{Message: 42}, http.StatusInternalServerError, CodeNodeFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := setupRouter(t, tt.trained)
			w := do(t, router, http.MethodPost, "/v1/graph/predict", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestHandlePredict_UnsupportedLanguage(t *testing.T) {
	router, h := setupRouter(t, true)
	m := *h.currentManifest()
	doc := *m.Document
	doc.Language = "zh"
	m.Document = &doc
	h.SetManifest(&m)

	w := do(t, router, http.MethodPost, "/v1/graph/predict", PredictRequest{Message: "你好"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, CodeCapability, resp.Code)
}

func TestWriteError_Codes(t *testing.T) {
	_, h := setupRouter(t, false)
	tests := []struct {
		name   string
		err    error
		status int
		code   string
		node   string
	}{
		{
			"node timeout",
			&executor.NodeExecutionError{Node: "run_X", Err: fmt.Errorf("x: %w", context.DeadlineExceeded)},
			http.StatusInternalServerError, CodeNodeFailed, "run_X",
		},
		{
			"node canceled",
			fmt.Errorf("predict: %w", &executor.NodeExecutionError{Node: "run_Y", Err: context.Canceled}),
			http.StatusInternalServerError, CodeNodeFailed, "run_Y",
		},
		{"request canceled", fmt.Errorf("predict: %w", context.Canceled), http.StatusServiceUnavailable, CodeCanceled, ""},
		{"deadline", context.DeadlineExceeded, http.StatusServiceUnavailable, CodeCanceled, ""},
		{"invalid input", fmt.Errorf("%w: empty text", graph.ErrInvalidInput), http.StatusBadRequest, CodeInvalidRequest, ""},
		{"other", errors.New("boom"), http.StatusInternalServerError, CodeInternal, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/v1/graph/predict", nil)

			h.writeError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
			assert.Equal(t, tt.node, resp.Node)
		})
	}
}

func TestHandleSchema(t *testing.T) {
	router, _ := setupRouter(t, true)
	w := do(t, router, http.MethodGet, "/v1/graph/schema", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Mode  string `json:"mode"`
		Nodes []struct {
			Name string `json:"name"`
		} `json:"nodes"`
		Targets []string `json:"targets"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "predict", resp.Mode)
	require.NotEmpty(t, resp.Nodes)
	assert.ElementsMatch(t, []string{"run_MemoizationPolicy", "run_TEDPolicy"}, resp.Targets)

	router, _ = setupRouter(t, false)
	w = do(t, router, http.MethodGet, "/v1/graph/schema", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestNewRouter_Metrics(t *testing.T) {
	_, h := setupRouter(t, false)
	router := NewRouter(h, "graph-test")

	w := do(t, router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodGet, "/v1/graph/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, http.NotFoundHandler(), 0, time.Second, nil)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

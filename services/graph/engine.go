// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph ties the recipe translator, capability validator and
// executor together into train and predict runs.
//
// A training run translates the document into the train schema, checks
// capabilities, executes it, and returns a Manifest naming every trained
// artifact. A predict run rebuilds the predict schema from the manifest's
// document and executes it with the manifest resources.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianGraph/services/graph/capability"
	"github.com/AleutianAI/AleutianGraph/services/graph/component"
	"github.com/AleutianAI/AleutianGraph/services/graph/executor"
	"github.com/AleutianAI/AleutianGraph/services/graph/recipe"
	"github.com/AleutianAI/AleutianGraph/services/graph/registry"
	"github.com/AleutianAI/AleutianGraph/services/graph/schema"
	"github.com/AleutianAI/AleutianGraph/services/graph/storage"
)

// Options configures an Engine.
type Options struct {
	// Workers bounds concurrent node invocations. Zero means GOMAXPROCS.
	Workers int

	// ForceRetrain ignores cached artifacts during training.
	ForceRetrain bool

	// Environment reports installed packages. If nil, uses
	// capability.DefaultEnvironment().
	Environment capability.Environment

	// Logger receives engine logs. If nil, uses slog.Default().
	Logger *slog.Logger
}

// RunOptions are per-run flags passed to components.
type RunOptions struct {
	Diagnostics bool
	Finetune    bool
}

// Engine runs configuration documents.
//
// Thread Safety:
//
//	Engine is safe for concurrent use.
type Engine struct {
	store     storage.Store
	reg       *registry.Registry
	validator *capability.Validator
	opts      Options
	logger    *slog.Logger
}

// NewEngine creates an Engine and registers the built-in recipes.
//
// Inputs:
//
//	store - The resource store. Must not be nil.
//	reg - The component registry. If nil, uses registry.Default().
//	opts - Engine options.
func NewEngine(store storage.Store, reg *registry.Registry, opts Options) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store must not be nil", ErrInvalidInput)
	}
	if reg == nil {
		reg = registry.Default()
	}
	recipe.RegisterDefaults()
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Engine{
		store:     store,
		reg:       reg,
		validator: capability.NewValidator(reg, opts.Environment, opts.Logger),
		opts:      opts,
		logger:    opts.Logger,
	}, nil
}

// Registry returns the engine's component registry.
func (e *Engine) Registry() *registry.Registry {
	return e.reg
}

// Validate translates doc for mode and checks capabilities. Nothing runs.
//
// Outputs:
//
//	*schema.Schema - The validated schema.
//	error - *schema.ConfigurationError, *capability.IncompatibleLanguageError
//	        or *capability.MissingDependencyError.
func (e *Engine) Validate(ctx context.Context, doc *recipe.Document, mode schema.Mode) (*schema.Schema, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	s, err := recipe.Translate(doc, mode, e.reg)
	if err != nil {
		return nil, err
	}
	if err := e.validator.Validate(ctx, s, doc.Language); err != nil {
		return nil, err
	}
	return s, nil
}

// TrainResult is the outcome of Train.
type TrainResult struct {
	Schema   *schema.Schema
	Result   *executor.Result
	Manifest *Manifest
}

// Train runs the train schema of doc over data.
//
// Description:
//
//	Capability checks run before any node, so a missing package or an
//	unsupported language fails without side effects. Train nodes whose
//	fingerprint is already stored are restored instead of retrained.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	doc - The configuration document. Must not be nil.
//	data - The training data, passed to source nodes.
//	ro - Per-run flags.
//
// Outputs:
//
//	*TrainResult - The manifest and the executor result. Result is set
//	               even on node failure.
//	error - Non-nil if translation, validation or execution fails.
func (e *Engine) Train(ctx context.Context, doc *recipe.Document, data any, ro RunOptions) (*TrainResult, error) {
	start := time.Now()
	s, err := e.Validate(ctx, doc, schema.ModeTrain)
	if err != nil {
		e.observe(schema.ModeTrain, start, err)
		return nil, err
	}

	res, err := e.run(ctx, s, ro, data, nil)
	out := &TrainResult{Schema: s, Result: res}
	if err != nil {
		e.observe(schema.ModeTrain, start, err)
		return out, err
	}

	trained := make(map[string]storage.Resource)
	for name, r := range res.Resources {
		if n, ok := s.Node(name); ok && n.Kind == schema.KindTrain {
			trained[name] = r
		}
	}
	out.Manifest = NewManifest(doc, trained)

	e.observe(schema.ModeTrain, start, nil)
	e.logger.Info("training finished",
		slog.Int("nodes", s.Len()),
		slog.Int("resources", len(trained)),
		slog.Int("cache_hits", len(res.CacheHits)),
		slog.Duration("duration", time.Since(start)),
	)
	return out, nil
}

// PredictResult is the outcome of Predict.
type PredictResult struct {
	RunID  string
	Schema *schema.Schema
	Result *executor.Result

	// Outputs holds the outputs of the schema targets, the nodes nothing
	// else consumes.
	Outputs map[string]any
}

// Predict runs the predict schema rebuilt from m over message.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	m - The manifest of a training run. Must not be nil.
//	message - The inference input, passed to source nodes.
//	ro - Per-run flags.
//
// Outputs:
//
//	*PredictResult - Target outputs and the executor result.
//	error - Non-nil if translation, validation or execution fails.
func (e *Engine) Predict(ctx context.Context, m *Manifest, message any, ro RunOptions) (*PredictResult, error) {
	if m == nil || m.Document == nil {
		return nil, fmt.Errorf("%w: manifest must not be nil", ErrInvalidInput)
	}
	start := time.Now()
	s, err := e.Validate(ctx, m.Document, schema.ModePredict)
	if err != nil {
		e.observe(schema.ModePredict, start, err)
		return nil, err
	}

	res, err := e.run(ctx, s, ro, message, m.Resources)
	out := &PredictResult{Schema: s, Result: res}
	if res != nil {
		out.RunID = res.RunID
	}
	if err != nil {
		e.observe(schema.ModePredict, start, err)
		return out, err
	}

	out.Outputs = make(map[string]any)
	for _, name := range s.Targets() {
		out.Outputs[name] = res.Outputs[name]
	}
	e.observe(schema.ModePredict, start, nil)
	return out, nil
}

func (e *Engine) run(ctx context.Context, s *schema.Schema, ro RunOptions, input any, resources map[string]storage.Resource) (*executor.Result, error) {
	ex, err := executor.New(e.store, e.reg, executor.Options{
		Workers:      e.opts.Workers,
		ForceRetrain: e.opts.ForceRetrain,
		Resources:    resources,
		Logger:       e.logger,
	})
	if err != nil {
		return nil, err
	}
	ec := component.NewExecutionContext(s, component.Options{
		Diagnostics: ro.Diagnostics,
		Finetuning:  ro.Finetune,
	})
	res, err := ex.Run(ctx, s, ec, input)
	if res != nil {
		engineCacheHits.Add(float64(len(res.CacheHits)))
	}
	return res, err
}

func (e *Engine) observe(mode schema.Mode, start time.Time, err error) {
	engineRunDuration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())
	engineRuns.WithLabelValues(string(mode), outcome(err)).Inc()
}

// outcome classifies err for the runs counter.
func outcome(err error) string {
	var (
		cfgErr  *schema.ConfigurationError
		langErr *capability.IncompatibleLanguageError
		depErr  *capability.MissingDependencyError
		nodeErr *executor.NodeExecutionError
	)
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &cfgErr):
		return "config_error"
	case errors.As(err, &langErr), errors.As(err, &depErr):
		return "capability_error"
	case errors.As(err, &nodeErr):
		return "node_error"
	}
	return "error"
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package executor runs a validated graph schema.
//
// Nodes are scheduled on data dependencies: a node starts once every node
// it consumes has completed, and independent branches run concurrently up
// to Options.Workers. Train nodes are content-addressed by fingerprint. When
// the store already holds an artifact for the fingerprint, the node loads it
// instead of training again.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/AleutianAI/AleutianGraph/services/graph/component"
	"github.com/AleutianAI/AleutianGraph/services/graph/fingerprint"
	"github.com/AleutianAI/AleutianGraph/services/graph/registry"
	"github.com/AleutianAI/AleutianGraph/services/graph/schema"
	"github.com/AleutianAI/AleutianGraph/services/graph/storage"
)

// Options configures an Executor.
type Options struct {
	// Workers bounds concurrent node invocations. Zero means GOMAXPROCS.
	Workers int

	// ForceRetrain ignores cached artifacts and trains every train node.
	ForceRetrain bool

	// Resources maps training node names to their committed artifacts.
	// Load nodes look up their ResourceFrom here.
	Resources map[string]storage.Resource

	// Logger receives execution logs. If nil, uses slog.Default().
	Logger *slog.Logger
}

// Executor runs graph schemas against a resource store.
//
// Thread Safety:
//
//	Executor is safe for concurrent use. Each Run has its own state and
//	creates its own component instances.
type Executor struct {
	store  storage.Store
	reg    *registry.Registry
	opts   Options
	logger *slog.Logger

	// Metrics (initialized lazily)
	metricsOnce  sync.Once
	nodeLatency  metric.Float64Histogram
	nodeFailures metric.Int64Counter
	cacheHits    metric.Int64Counter
	cacheMisses  metric.Int64Counter
	activeNodes  metric.Int64UpDownCounter
	runLatency   metric.Float64Histogram
}

// New creates an Executor.
//
// Inputs:
//
//	store - The resource store. Must not be nil.
//	reg - The registry used to create components. If nil, uses registry.Default().
//	opts - Execution options.
//
// Outputs:
//
//	*Executor - The configured executor.
//	error - ErrNilStore if store is nil.
func New(store storage.Store, reg *registry.Registry, opts Options) (*Executor, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if reg == nil {
		reg = registry.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	resources := make(map[string]storage.Resource, len(opts.Resources))
	for k, v := range opts.Resources {
		resources[k] = v
	}
	opts.Resources = resources

	return &Executor{
		store:  store,
		reg:    reg,
		opts:   opts,
		logger: opts.Logger,
	}, nil
}

// Run executes every node of s.
//
// Description:
//
//	Components are created up front, so a factory failure aborts the run
//	before any node is invoked. Nodes then run in dependency order. When a
//	node fails, nodes that depend on it are skipped while independent
//	branches run to completion. Cancellation is observed between node
//	invocations only.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	s - The schema to run. Must not be nil.
//	ec - The execution context. Its Schema is set to s when empty.
//	input - The run input, passed to source nodes as component.ParamInput.
//
// Outputs:
//
//	*Result - Outputs, resources and fingerprints. Partial on failure.
//	error - *NodeExecutionError for the first failing node, or a wrapped
//	        context error when the run was canceled.
func (e *Executor) Run(ctx context.Context, s *schema.Schema, ec component.ExecutionContext, input any) (*Result, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if s == nil {
		return nil, ErrNilSchema
	}
	if ec.Schema == nil {
		ec.Schema = s
	}

	e.initMetrics()

	ctx, span := tracer.Start(ctx, "graph.Run",
		trace.WithAttributes(
			attribute.String("graph.mode", string(s.Mode())),
			attribute.Int("graph.node_count", s.Len()),
			attribute.String("graph.run_id", ec.RunID),
		),
	)
	defer span.End()

	start := time.Now()
	result := newResult(ec.RunID, s.Len())

	e.logger.Info("graph run started",
		slog.String("mode", string(s.Mode())),
		slog.String("run_id", ec.RunID),
		slog.Int("nodes", s.Len()),
		slog.Int("workers", e.opts.Workers),
	)

	fail := func(err error) (*Result, error) {
		result.Duration = time.Since(start)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Error("graph run failed",
			slog.String("run_id", ec.RunID),
			slog.String("failed_node", result.FailedNode),
			slog.Int("skipped", len(result.Skipped)),
			slog.String("error", err.Error()),
		)
		return result, err
	}

	digest, err := fingerprint.Value(input)
	if err != nil {
		return fail(fmt.Errorf("digest run input: %w", err))
	}

	comps, err := e.createComponents(s)
	if err != nil {
		var ne *NodeExecutionError
		if errors.As(err, &ne) {
			result.FailedNode = ne.Node
		}
		return fail(err)
	}

	r := &run{
		e:      e,
		s:      s,
		ec:     ec,
		input:  input,
		digest: digest,
		comps:  comps,
		result: result,
	}
	err = r.schedule(ctx)

	result.Duration = time.Since(start)
	if e.runLatency != nil {
		e.runLatency.Record(ctx, result.Duration.Seconds(),
			metric.WithAttributes(attribute.String("mode", string(s.Mode()))),
		)
	}
	if err != nil {
		return fail(err)
	}

	span.SetStatus(codes.Ok, "")
	e.logger.Info("graph run completed",
		slog.String("run_id", ec.RunID),
		slog.Duration("duration", result.Duration),
		slog.Int("nodes_executed", len(result.Outputs)),
		slog.Int("cache_hits", len(result.CacheHits)),
	)
	return result, nil
}

func (e *Executor) createComponents(s *schema.Schema) (map[string]component.Component, error) {
	comps := make(map[string]component.Component, s.Len())
	for _, name := range s.Names() {
		n, _ := s.Node(name)
		c, err := e.reg.Create(n)
		if err != nil {
			return nil, nodeError(name, err)
		}
		comps[name] = c
	}
	return comps, nil
}

// run is the state of one Run call.
type run struct {
	e      *Executor
	s      *schema.Schema
	ec     component.ExecutionContext
	input  any
	digest string
	comps  map[string]component.Component

	mu     sync.Mutex
	result *Result
}

type completion struct {
	name string
	err  error
}

// schedule dispatches ready nodes until nothing is ready or running.
func (r *run) schedule(ctx context.Context) error {
	remaining := make(map[string]int, r.s.Len())
	var ready []string
	for _, name := range r.s.TopologicalOrder() {
		remaining[name] = len(r.s.Dependencies(name))
		if remaining[name] == 0 {
			ready = append(ready, name)
		}
	}

	sem := semaphore.NewWeighted(int64(r.e.opts.Workers))
	done := make(chan completion, r.s.Len())
	inflight := 0

	var (
		firstErr  *NodeExecutionError
		cancelErr error
		failed    []string
	)

	for len(ready) > 0 || inflight > 0 {
		for len(ready) > 0 && cancelErr == nil {
			if err := sem.Acquire(ctx, 1); err != nil {
				cancelErr = err
				break
			}
			name := ready[0]
			ready = ready[1:]
			inflight++
			go func(name string) {
				defer sem.Release(1)
				done <- completion{name: name, err: r.execute(ctx, name)}
			}(name)
		}
		if inflight == 0 {
			break
		}

		c := <-done
		inflight--
		if c.err != nil {
			var ne *NodeExecutionError
			if errors.As(c.err, &ne) {
				failed = append(failed, c.name)
				if firstErr == nil {
					firstErr = ne
				}
			} else if cancelErr == nil {
				cancelErr = c.err
			}
			continue
		}

		for _, dep := range r.s.Dependents(c.name) {
			remaining[dep]--
			if remaining[dep] == 0 {
				ready = append(ready, dep)
			}
		}
		sort.Slice(ready, func(i, j int) bool {
			return r.s.Index(ready[i]) < r.s.Index(ready[j])
		})
	}

	if firstErr != nil {
		r.result.FailedNode = firstErr.Node
		r.result.Skipped = r.downstream(failed)
		return firstErr
	}
	if cancelErr != nil {
		return fmt.Errorf("graph run canceled: %w", cancelErr)
	}
	return nil
}

// downstream returns every node reachable from roots, in declaration order.
func (r *run) downstream(roots []string) []string {
	seen := make(map[string]bool)
	queue := append([]string(nil), roots...)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		for _, dep := range r.s.Dependents(name) {
			if !seen[dep] {
				seen[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	var out []string
	for _, name := range r.s.Names() {
		if seen[name] {
			out = append(out, name)
		}
	}
	return out
}

// execute runs one node with observability. It returns the bare context
// error when the run was canceled before the node started.
func (r *run) execute(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, _ := r.s.Node(name)

	ctx, span := tracer.Start(ctx, "graph.Node",
		trace.WithAttributes(
			attribute.String("graph.node", name),
			attribute.String("graph.component", n.Component),
			attribute.String("graph.kind", string(n.Kind)),
		),
	)
	defer span.End()

	if r.e.activeNodes != nil {
		r.e.activeNodes.Add(ctx, 1)
		defer r.e.activeNodes.Add(ctx, -1)
	}

	r.e.logger.Debug("node starting",
		slog.String("node", name),
		slog.String("kind", string(n.Kind)),
	)

	start := time.Now()
	out, err := r.invoke(ctx, n)
	duration := time.Since(start)

	if r.e.nodeLatency != nil {
		r.e.nodeLatency.Record(ctx, duration.Seconds(),
			metric.WithAttributes(
				attribute.String("component", n.Component),
				attribute.String("kind", string(n.Kind)),
			),
		)
	}

	if err != nil {
		if r.e.nodeFailures != nil {
			r.e.nodeFailures.Add(ctx, 1,
				metric.WithAttributes(attribute.String("component", n.Component)),
			)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.e.logger.Error("node failed",
			slog.String("node", name),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)
		return nodeError(name, err)
	}

	r.mu.Lock()
	r.result.Outputs[name] = out.value
	r.result.Fingerprints[name] = out.fp
	if !out.resource.IsZero() {
		r.result.Resources[name] = out.resource
	}
	if out.cacheHit {
		r.result.CacheHits = append(r.result.CacheHits, name)
	}
	r.result.NodeDurations[name] = duration
	r.mu.Unlock()

	span.SetAttributes(
		attribute.String("graph.fingerprint", out.fp.String()),
		attribute.Bool("graph.cache_hit", out.cacheHit),
	)
	span.SetStatus(codes.Ok, "")
	r.e.logger.Info("node completed",
		slog.String("node", name),
		slog.Duration("duration", duration),
		slog.Bool("cache_hit", out.cacheHit),
	)
	return nil
}

// nodeOutput is what a successful invocation produced.
type nodeOutput struct {
	value    any
	fp       storage.Fingerprint
	resource storage.Resource
	cacheHit bool
}

func (r *run) invoke(ctx context.Context, n schema.Node) (out nodeOutput, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in component %s: %v", n.Component, p)
		}
	}()

	inputs, inputFps := r.gather(n)
	spec := fingerprint.ForNode(n, inputFps, r.digest)

	var stored storage.Resource
	var haveStored bool
	if n.Kind == schema.KindLoad {
		stored, haveStored = r.e.opts.Resources[n.ResourceFrom]
		spec.Resource = stored.Fingerprint
	}

	out.fp, err = fingerprint.Compute(spec)
	if err != nil {
		return out, err
	}

	comp := r.comps[n.Name]
	ec := r.ec.ForNode(n.Name)

	switch n.Kind {
	case schema.KindProvide:
		p, ok := comp.(component.Provider)
		if !ok {
			return out, fmt.Errorf("%w: %s is not a model provider", ErrUnsupportedKind, n.Component)
		}
		out.value, err = p.Provide(ctx, ec)

	case schema.KindProcess:
		out.value, err = comp.Process(ctx, inputs, ec)

	case schema.KindTrain:
		t, ok := comp.(component.Trainable)
		if !ok {
			return out, fmt.Errorf("%w: %s is not trainable", ErrUnsupportedKind, n.Component)
		}
		err = r.train(ctx, n, t, inputs, ec, &out)

	case schema.KindLoad:
		t, ok := comp.(component.Trainable)
		if !ok {
			return out, fmt.Errorf("%w: %s is not trainable", ErrUnsupportedKind, n.Component)
		}
		err = r.load(ctx, n, t, stored, haveStored, ec, &out)

	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedKind, n.Kind)
	}
	return out, err
}

// gather collects the outputs and fingerprints of n's dependencies.
func (r *run) gather(n schema.Node) (component.Inputs, map[string]storage.Fingerprint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inputs := make(component.Inputs, len(n.Inputs)+1)
	fps := make(map[string]storage.Fingerprint, len(n.Inputs)+1)
	for _, in := range n.Inputs {
		inputs[in.Param] = r.result.Outputs[in.From]
		fps[in.Param] = r.result.Fingerprints[in.From]
	}
	if n.ModelFrom != "" {
		if _, ok := inputs[component.ParamModel]; !ok {
			inputs[component.ParamModel] = r.result.Outputs[n.ModelFrom]
			fps[component.ParamModel] = r.result.Fingerprints[n.ModelFrom]
		}
	}
	if n.Source {
		inputs[component.ParamInput] = r.input
	}
	return inputs, fps
}

// train restores the artifact for out.fp when one exists, otherwise trains
// and commits a new one.
func (r *run) train(ctx context.Context, n schema.Node, t component.Trainable, inputs component.Inputs, ec component.ExecutionContext, out *nodeOutput) error {
	store := r.e.store
	attrs := metric.WithAttributes(attribute.String("component", n.Component))

	if !r.e.opts.ForceRetrain {
		exists, err := store.Exists(ctx, out.fp)
		if err != nil {
			return fmt.Errorf("check cached artifact: %w", err)
		}
		if exists {
			res := storage.Resource{Fingerprint: out.fp, Node: n.Name}
			a, err := store.Read(ctx, res)
			switch {
			case err == nil:
				v, err := t.Load(ctx, a, ec)
				if err != nil {
					return fmt.Errorf("load cached artifact: %w", err)
				}
				if r.e.cacheHits != nil {
					r.e.cacheHits.Add(ctx, 1, attrs)
				}
				out.value = v
				out.resource = res
				out.cacheHit = true
				return nil
			case errors.Is(err, storage.ErrResourceNotFound):
				r.e.logger.Warn("cached artifact vanished, retraining",
					slog.String("node", n.Name),
					slog.String("fingerprint", out.fp.String()),
				)
			default:
				return fmt.Errorf("read cached artifact: %w", err)
			}
		}
	}

	if r.e.cacheMisses != nil {
		r.e.cacheMisses.Add(ctx, 1, attrs)
	}

	v, a, err := t.Train(ctx, inputs, ec)
	if err != nil {
		return err
	}
	if a == nil {
		a = storage.NewArtifact()
	}
	res, err := storage.WriteArtifact(ctx, store, out.fp, a)
	if err != nil {
		return fmt.Errorf("persist artifact: %w", err)
	}
	res.Node = n.Name

	out.value = v
	out.resource = res
	return nil
}

// load hands the trained artifact to t. A missing resource is not an error:
// Load receives nil and falls back to a fresh state.
func (r *run) load(ctx context.Context, n schema.Node, t component.Trainable, res storage.Resource, have bool, ec component.ExecutionContext, out *nodeOutput) error {
	var a *storage.Artifact
	if have {
		var err error
		a, err = r.e.store.Read(ctx, res)
		switch {
		case err == nil:
		case errors.Is(err, storage.ErrResourceNotFound):
			r.e.logger.Warn("trained resource not found, loading fresh state",
				slog.String("node", n.Name),
				slog.String("fingerprint", res.Fingerprint.String()),
			)
			a, have = nil, false
		default:
			return fmt.Errorf("read resource: %w", err)
		}
	} else {
		r.e.logger.Debug("no trained resource recorded, loading fresh state",
			slog.String("node", n.Name),
			slog.String("resource_from", n.ResourceFrom),
		)
	}

	v, err := t.Load(ctx, a, ec)
	if err != nil {
		return err
	}
	out.value = v
	if have {
		out.resource = res
	}
	return nil
}

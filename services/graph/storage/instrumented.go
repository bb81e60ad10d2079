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
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("aleutian.graph.storage")
	meter  = otel.Meter("aleutian.graph.storage")
)

var (
	storeOps      metric.Int64Counter
	storeDuration metric.Float64Histogram
	storeBytes    metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		storeOps, err = meter.Int64Counter(
			"graph_store_operations_total",
			metric.WithDescription("Total resource store operations by type and outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		storeDuration, err = meter.Float64Histogram(
			"graph_store_operation_duration_seconds",
			metric.WithDescription("Duration of resource store operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		storeBytes, err = meter.Int64Counter(
			"graph_store_bytes_total",
			metric.WithDescription("Bytes read from and written to the resource store"),
			metric.WithUnit("By"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordOp(ctx context.Context, op string, start time.Time, bytes int64, err error) {
	if initMetrics() != nil {
		return
	}
	outcome := "ok"
	switch {
	case errors.Is(err, ErrResourceNotFound):
		outcome = "not_found"
	case err != nil:
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	)
	storeOps.Add(ctx, 1, attrs)
	storeDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	if bytes > 0 {
		storeBytes.Add(ctx, bytes, metric.WithAttributes(attribute.String("op", op)))
	}
}

// Stats is a snapshot of the operations an Instrumented store has seen.
type Stats struct {
	Exists int64
	Reads  int64
	Writes int64
	Aborts int64
}

// Instrumented wraps a Store with counters, OTel metrics and spans.
//
// Reads counts Read calls that returned an artifact. Writes counts commits
// that returned without error.
type Instrumented struct {
	inner  Store
	exists atomic.Int64
	reads  atomic.Int64
	writes atomic.Int64
	aborts atomic.Int64
}

// NewInstrumented wraps inner.
func NewInstrumented(inner Store) *Instrumented {
	return &Instrumented{inner: inner}
}

// Unwrap returns the wrapped store.
func (s *Instrumented) Unwrap() Store {
	return s.inner
}

// Stats returns the current counters.
func (s *Instrumented) Stats() Stats {
	return Stats{
		Exists: s.exists.Load(),
		Reads:  s.reads.Load(),
		Writes: s.writes.Load(),
		Aborts: s.aborts.Load(),
	}
}

// Reset zeroes the counters.
func (s *Instrumented) Reset() {
	s.exists.Store(0)
	s.reads.Store(0)
	s.writes.Store(0)
	s.aborts.Store(0)
}

func (s *Instrumented) Exists(ctx context.Context, fp Fingerprint) (bool, error) {
	start := time.Now()
	ok, err := s.inner.Exists(ctx, fp)
	s.exists.Add(1)
	recordOp(ctx, "exists", start, 0, err)
	return ok, err
}

func (s *Instrumented) Begin(ctx context.Context, fp Fingerprint) (Writer, error) {
	ctx, span := tracer.Start(ctx, "Store.Write",
		trace.WithAttributes(attribute.String("resource.fingerprint", string(fp))),
	)
	w, err := s.inner.Begin(ctx, fp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, err
	}
	return &instrumentedWriter{store: s, inner: w, ctx: ctx, span: span, start: time.Now()}, nil
}

func (s *Instrumented) Read(ctx context.Context, r Resource) (*Artifact, error) {
	ctx, span := tracer.Start(ctx, "Store.Read",
		trace.WithAttributes(attribute.String("resource.fingerprint", string(r.Fingerprint))),
	)
	defer span.End()

	start := time.Now()
	a, err := s.inner.Read(ctx, r)
	recordOp(ctx, "read", start, a.Size(), err)
	if err != nil {
		if !errors.Is(err, ErrResourceNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}
	s.reads.Add(1)
	span.SetAttributes(attribute.Int("resource.entries", a.Len()))
	return a, nil
}

func (s *Instrumented) Close() error {
	return s.inner.Close()
}

type instrumentedWriter struct {
	store *Instrumented
	inner Writer
	ctx   context.Context
	span  trace.Span
	start time.Time
	bytes atomic.Int64
	ended atomic.Bool
}

func (w *instrumentedWriter) Put(name string, data []byte) error {
	if err := w.inner.Put(name, data); err != nil {
		return err
	}
	w.bytes.Add(int64(len(data)))
	return nil
}

func (w *instrumentedWriter) Commit() (Resource, error) {
	if w.ended.Swap(true) {
		return w.inner.Commit()
	}
	defer w.span.End()
	res, err := w.inner.Commit()
	recordOp(w.ctx, "write", w.start, w.bytes.Load(), err)
	if err != nil {
		w.span.RecordError(err)
		w.span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	w.store.writes.Add(1)
	return res, nil
}

func (w *instrumentedWriter) Abort() error {
	if w.ended.Swap(true) {
		return w.inner.Abort()
	}
	err := w.inner.Abort()
	w.store.aborts.Add(1)
	w.span.SetAttributes(attribute.Bool("resource.aborted", true))
	w.span.End()
	return err
}

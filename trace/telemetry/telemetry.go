// Copyright (C) 2025 North Shore AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package telemetry wraps the core compare and validate operations with
// OpenTelemetry spans and metrics.
//
// The core packages stay instrumentation-free; this package is a
// decorator layer for operators who want operation counts, latency
// histograms, and traces. With no global providers installed every
// instrument is a no-op, so the decorators are safe to use
// unconditionally.
package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/North-Shore-AI/crucible-trace/trace"
	"github.com/North-Shore-AI/crucible-trace/trace/compare"
	"github.com/North-Shore-AI/crucible-trace/trace/relationship"
)

// instrumentationName identifies this library in exported telemetry.
const instrumentationName = "github.com/North-Shore-AI/crucible-trace"

// Instruments bundles the meters and tracer shared by the decorators.
type Instruments struct {
	tracer oteltrace.Tracer

	compareTotal    metric.Int64Counter
	compareSeconds  metric.Float64Histogram
	validateTotal   metric.Int64Counter
	validateSeconds metric.Float64Histogram
}

// NewInstruments creates instruments from the given providers. Nil
// providers fall back to the otel globals (no-ops unless configured).
func NewInstruments(mp metric.MeterProvider, tp oteltrace.TracerProvider) (*Instruments, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	meter := mp.Meter(instrumentationName)

	compareTotal, err := meter.Int64Counter("crucible.compare.total",
		metric.WithDescription("Chain comparisons performed"))
	if err != nil {
		return nil, err
	}
	compareSeconds, err := meter.Float64Histogram("crucible.compare.duration",
		metric.WithDescription("Chain comparison latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	validateTotal, err := meter.Int64Counter("crucible.validate.total",
		metric.WithDescription("Chain integrity validations performed"))
	if err != nil {
		return nil, err
	}
	validateSeconds, err := meter.Float64Histogram("crucible.validate.duration",
		metric.WithDescription("Chain integrity validation latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Instruments{
		tracer:          tp.Tracer(instrumentationName),
		compareTotal:    compareTotal,
		compareSeconds:  compareSeconds,
		validateTotal:   validateTotal,
		validateSeconds: validateSeconds,
	}, nil
}

// Comparer decorates compare.Compare with telemetry.
type Comparer struct {
	inst *Instruments
}

// NewComparer creates a telemetry-wrapped comparer.
func NewComparer(inst *Instruments) *Comparer {
	return &Comparer{inst: inst}
}

// Compare runs compare.Compare inside a span and records count and
// latency with strategy and outcome attributes.
func (c *Comparer) Compare(ctx context.Context, chainA, chainB trace.Chain, opts *compare.Options) (*compare.Diff, error) {
	ctx, span := c.inst.tracer.Start(ctx, "crucible.compare",
		oteltrace.WithAttributes(
			attribute.String("chain_a.id", chainA.ID),
			attribute.String("chain_b.id", chainB.ID),
			attribute.Int("chain_a.events", chainA.Len()),
			attribute.Int("chain_b.events", chainB.Len()),
		))
	defer span.End()

	start := time.Now()
	diff, err := compare.Compare(chainA, chainB, opts)
	elapsed := time.Since(start).Seconds()

	attrs := []attribute.KeyValue{attribute.String("outcome", outcome(err))}
	if diff != nil {
		attrs = append(attrs,
			attribute.String("strategy", string(diff.Strategy)),
			attribute.Float64("similarity", diff.SimilarityScore),
		)
		span.SetAttributes(attrs...)
	}
	set := metric.WithAttributes(attrs...)
	c.inst.compareTotal.Add(ctx, 1, set)
	c.inst.compareSeconds.Record(ctx, elapsed, set)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return diff, nil
}

// Validator decorates relationship.Validate with telemetry.
type Validator struct {
	inst *Instruments
}

// NewValidator creates a telemetry-wrapped validator.
func NewValidator(inst *Instruments) *Validator {
	return &Validator{inst: inst}
}

// Validate runs relationship.Validate inside a span and records count
// and latency with the failure kind as an attribute.
func (v *Validator) Validate(ctx context.Context, chain trace.Chain) error {
	ctx, span := v.inst.tracer.Start(ctx, "crucible.validate",
		oteltrace.WithAttributes(
			attribute.String("chain.id", chain.ID),
			attribute.Int("chain.events", chain.Len()),
		))
	defer span.End()

	start := time.Now()
	err := relationship.Validate(chain)
	elapsed := time.Since(start).Seconds()

	set := metric.WithAttributes(attribute.String("outcome", outcome(err)))
	v.inst.validateTotal.Add(ctx, 1, set)
	v.inst.validateSeconds.Record(ctx, elapsed, set)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// outcome maps an error to a low-cardinality attribute value.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, compare.ErrInvalidMatchStrategy):
		return "invalid_strategy"
	case errors.Is(err, relationship.ErrMissingReference):
		return "missing_reference"
	case errors.Is(err, relationship.ErrCycleDetected):
		return "cycle_detected"
	default:
		return "error"
	}
}

// Copyright (C) 2025 North Shore AI
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/North-Shore-AI/crucible-trace/trace"
	"github.com/North-Shore-AI/crucible-trace/trace/compare"
	"github.com/North-Shore-AI/crucible-trace/trace/relationship"
)

func testSetup(t *testing.T) (*Instruments, *sdkmetric.ManualReader, *tracetest.SpanRecorder) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	inst, err := NewInstruments(mp, tp)
	require.NoError(t, err)
	return inst, reader, recorder
}

func sampleChain(id string) trace.Chain {
	chain := trace.NewChain("session", trace.WithChainID(id))
	chain.Events = []trace.Event{
		trace.NewEvent(trace.EventHypothesisFormed, "d", "r", trace.WithEventID(id+"-e1")),
	}
	return chain
}

// counterValue digs the summed value of a counter out of collected
// metrics. Returns -1 when the metric is absent.
func counterValue(rm metricdata.ResourceMetrics, name string) int64 {
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				return -1
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return -1
}

func TestComparer_RecordsTelemetry(t *testing.T) {
	inst, reader, recorder := testSetup(t)
	comparer := NewComparer(inst)

	diff, err := comparer.Compare(context.Background(), sampleChain("a"), sampleChain("b"), nil)
	require.NoError(t, err)
	require.NotNil(t, diff)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	assert.Equal(t, int64(1), counterValue(rm, "crucible.compare.total"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "crucible.compare", spans[0].Name())
}

func TestComparer_ErrorOutcome(t *testing.T) {
	inst, reader, recorder := testSetup(t)
	comparer := NewComparer(inst)

	_, err := comparer.Compare(context.Background(), sampleChain("a"), sampleChain("b"),
		&compare.Options{MatchBy: compare.Strategy("fuzzy")})
	require.ErrorIs(t, err, compare.ErrInvalidMatchStrategy)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	assert.Equal(t, int64(1), counterValue(rm, "crucible.compare.total"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.NotEmpty(t, spans[0].Events(), "failed compare should record the error")
}

func TestValidator_RecordsTelemetry(t *testing.T) {
	inst, reader, recorder := testSetup(t)
	validator := NewValidator(inst)

	t.Run("success", func(t *testing.T) {
		require.NoError(t, validator.Validate(context.Background(), sampleChain("ok")))
	})

	t.Run("failure passes the error through", func(t *testing.T) {
		broken := trace.NewChain("broken", trace.WithChainID("broken-1"))
		broken.Events = []trace.Event{
			trace.NewEvent(trace.EventHypothesisFormed, "d", "r",
				trace.WithEventID("e1"), trace.WithParent("ghost")),
		}
		err := validator.Validate(context.Background(), broken)
		assert.ErrorIs(t, err, relationship.ErrMissingReference)
	})

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	assert.Equal(t, int64(2), counterValue(rm, "crucible.validate.total"))
	assert.Len(t, recorder.Ended(), 2)
}

func TestNewInstruments_NilProvidersUseGlobals(t *testing.T) {
	inst, err := NewInstruments(nil, nil)
	require.NoError(t, err)

	// No providers configured: everything is a no-op but must not panic.
	_, err = NewComparer(inst).Compare(context.Background(), sampleChain("a"), sampleChain("b"), nil)
	assert.NoError(t, err)
	assert.NoError(t, NewValidator(inst).Validate(context.Background(), sampleChain("c")))
}

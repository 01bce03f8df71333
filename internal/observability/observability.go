// Package observability provides the metrics and tracing hooks the ingestion
// pipeline reports through. Recorders aggregate per-operation outcome
// counters and timings; tracers capture span-level detail for individual
// files and observations.
package observability

import (
	"context"
	"time"
)

// MetricsRecorder receives one observation per completed pipeline operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// CounterRecorder accumulates named run counters, such as the number of
// stale planes a synchronization pass removed. Recorders that also track
// counters implement it alongside MetricsRecorder.
type CounterRecorder interface {
	Add(counter string, delta int64)
}

// AddCounter forwards a counter increment when the recorder supports it.
func AddCounter(metrics MetricsRecorder, counter string, delta int64) {
	if rec, ok := metrics.(CounterRecorder); ok {
		rec.Add(counter, delta)
	}
}

// Tracer opens a span around a pipeline operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan terminates a span, recording whether the operation failed.
type TraceSpan interface {
	End(err error)
}

// NoopMetrics discards every observation.
type NoopMetrics struct{}

func (NoopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// NoopTracer produces spans that record nothing.
type NoopTracer struct{}

func (NoopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

var (
	_ MetricsRecorder = NoopMetrics{}
	_ Tracer          = NoopTracer{}
)

// Timed runs fn under a span and reports its duration and outcome to the
// recorder. Either hook may be nil.
func Timed(ctx context.Context, metrics MetricsRecorder, tracer Tracer, operation string, fn func(ctx context.Context) error) error {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if tracer == nil {
		tracer = NoopTracer{}
	}
	ctx, span := tracer.Start(ctx, operation)
	start := time.Now()
	err := fn(ctx)
	span.End(err)
	metrics.Observe(ctx, operation, err == nil, time.Since(start))
	return err
}

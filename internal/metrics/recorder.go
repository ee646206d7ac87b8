package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "localqueue"

// Operation names recorded by the queue components.
const (
	OpEnqueue          = "queue.enqueue"
	OpManagerSave      = "manager.save"
	OpSchedulerTick    = "scheduler.tick"
	OpDispatcherSubmit = "dispatcher.submit"
	OpDispatcherRun    = "dispatcher.execute"
)

// Recorder times queue operations and records dispatcher capacity.
type Recorder struct {
	duration  metric.Float64Histogram
	calls     metric.Int64Counter
	failures  metric.Int64Counter
	available metric.Int64Histogram
}

// New builds a Recorder on mp. A nil mp falls back to the global provider.
func New(mp metric.MeterProvider) (*Recorder, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	duration, err := meter.Float64Histogram("localqueue.operation.duration",
		metric.WithDescription("Operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	calls, err := meter.Int64Counter("localqueue.operation.calls",
		metric.WithDescription("Number of operations attempted"),
	)
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("localqueue.operation.failures",
		metric.WithDescription("Number of operations that returned an error"),
	)
	if err != nil {
		return nil, err
	}
	available, err := meter.Int64Histogram("localqueue.dispatcher.available",
		metric.WithDescription("Dispatcher capacity observed by the scheduler"),
	)
	if err != nil {
		return nil, err
	}
	return &Recorder{
		duration:  duration,
		calls:     calls,
		failures:  failures,
		available: available,
	}, nil
}

// NewNop returns a Recorder that discards everything.
func NewNop() *Recorder {
	r, _ := New(noop.NewMeterProvider())
	return r
}

// Time runs fn and records its duration and outcome. fn's error is returned as is.
func (r *Recorder) Time(ctx context.Context, operation, workType string, fn func() error) error {
	if r == nil {
		return fn()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	attrs := []attribute.KeyValue{attribute.String("operation", operation)}
	if workType != "" {
		attrs = append(attrs, attribute.String("work_type", workType))
	}
	opt := metric.WithAttributes(attrs...)

	r.calls.Add(ctx, 1, opt)
	start := time.Now()
	err := fn()
	r.duration.Record(ctx, float64(time.Since(start).Microseconds())/1000.0, opt)
	if err != nil {
		r.failures.Add(ctx, 1, opt)
	}
	return err
}

// RecordAvailable records the dispatcher capacity seen on a scheduler tick.
func (r *Recorder) RecordAvailable(ctx context.Context, n int) {
	if r == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	r.available.Record(ctx, int64(n), metric.WithAttributes(attribute.String("operation", OpSchedulerTick)))
}

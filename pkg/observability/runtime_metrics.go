package observability

import (
	"context"
	"fmt"
	"math"
	runtimemetrics "runtime/metrics"

	"go.opentelemetry.io/otel/metric"
)

const (
	metricGoroutines        = "asyncgit.runtime.goroutines"
	metricThreads           = "asyncgit.runtime.threads"
	metricGoroutinesCreated = "asyncgit.runtime.goroutines.created"

	sampleGoroutines        = "/sched/goroutines:goroutines"
	sampleThreads           = "/sched/threads:threads"
	sampleGoroutinesCreated = "/sched/goroutines-created:goroutines"
)

// RuntimeMetrics exposes Go runtime goroutine/thread counts as OTel
// instruments, the only cross-cutting signal for asyncjob.Pool's worker
// goroutines that doesn't require instrumenting the pool itself: every job
// run locks an OS thread for its duration, so a stuck libgit2 call shows up
// here as a thread count that stops tracking the configured pool size.
type RuntimeMetrics struct {
	goroutines        metric.Int64ObservableGauge
	threads           metric.Int64ObservableGauge
	goroutinesCreated metric.Int64ObservableCounter
}

// NewRuntimeMetrics registers observable instruments backed by
// runtime/metrics; the meter's periodic reader invokes the callback, no
// manual polling required.
func NewRuntimeMetrics(mt metric.Meter) (*RuntimeMetrics, error) {
	goroutines, err := mt.Int64ObservableGauge(metricGoroutines,
		metric.WithDescription("Current number of live goroutines"),
		metric.WithUnit("{goroutine}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricGoroutines, err)
	}

	threads, err := mt.Int64ObservableGauge(metricThreads,
		metric.WithDescription("Current number of OS threads created by the Go runtime"),
		metric.WithUnit("{thread}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricThreads, err)
	}

	created, err := mt.Int64ObservableCounter(metricGoroutinesCreated,
		metric.WithDescription("Total goroutines created since process start"),
		metric.WithUnit("{goroutine}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricGoroutinesCreated, err)
	}

	rm := &RuntimeMetrics{goroutines: goroutines, threads: threads, goroutinesCreated: created}

	if _, err := mt.RegisterCallback(rm.observe, goroutines, threads, created); err != nil {
		return nil, fmt.Errorf("register runtime metrics callback: %w", err)
	}

	return rm, nil
}

func (rm *RuntimeMetrics) observe(_ context.Context, obs metric.Observer) error {
	samples := []runtimemetrics.Sample{
		{Name: sampleGoroutines},
		{Name: sampleThreads},
		{Name: sampleGoroutinesCreated},
	}

	runtimemetrics.Read(samples)

	for idx := range samples {
		val, ok := sampleInt64Value(samples[idx].Value)
		if !ok {
			continue
		}

		switch samples[idx].Name {
		case sampleGoroutines:
			obs.ObserveInt64(rm.goroutines, val)
		case sampleThreads:
			obs.ObserveInt64(rm.threads, val)
		case sampleGoroutinesCreated:
			obs.ObserveInt64(rm.goroutinesCreated, val)
		}
	}

	return nil
}

func sampleInt64Value(val runtimemetrics.Value) (int64, bool) {
	switch val.Kind() {
	case runtimemetrics.KindUint64:
		u := val.Uint64()
		if u > uint64(math.MaxInt64) {
			return math.MaxInt64, true
		}

		return int64(u), true
	case runtimemetrics.KindFloat64:
		return int64(val.Float64()), true
	case runtimemetrics.KindBad, runtimemetrics.KindFloat64Histogram:
		return 0, false
	default:
		return 0, false
	}
}

package observability

import (
	"context"
	"runtime"
	"strings"
	"time"

	"github.com/samber/lo"
	otelruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterPrefix = "bidtree"

func meterName(name string) string {
	builder := &strings.Builder{}
	builder.WriteString(meterPrefix)
	builder.WriteString("/")
	if len(strings.TrimSpace(name)) > 0 {
		builder.WriteString(name)
	} else {
		builder.WriteString("default")
	}
	return builder.String()
}

type Op string

const (
	OpLoad   Op = "load"
	OpList   Op = "list"
	OpFind   Op = "find"
	OpRemove Op = "remove"
	OpClear  Op = "clear"
)

// OpStats counts the backend operations and records their latency.
type OpStats struct {
	backend attribute.KeyValue
	meter   metric.Meter
	ops     metric.Int64Counter
	latency metric.Float64Histogram
}

func NewOpStats(mp metric.MeterProvider, backend string) *OpStats {
	meter := mp.Meter(meterName("store"))
	return &OpStats{
		backend: attribute.String("backend", backend),
		meter:   meter,
		ops: lo.Must[metric.Int64Counter](meter.Int64Counter(
			"bidtree.store.ops",
			metric.WithDescription(`The bid store operations.`),
		)),
		latency: lo.Must[metric.Float64Histogram](meter.Float64Histogram(
			"bidtree.store.latency",
			metric.WithDescription(`The bid store operation latency.`),
			metric.WithUnit("ms"),
		)),
	}
}

func (s *OpStats) Record(ctx context.Context, op Op, elapsed time.Duration, err error) {
	if s == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	attrs := metric.WithAttributes(s.backend, attribute.String("op", string(op)), attribute.String("result", result))
	s.ops.Add(ctx, 1, attrs)
	s.latency.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
}

// ObserveRecords reports the records held by the backend on every collection.
func (s *OpStats) ObserveRecords(count func(ctx context.Context) (int64, error)) error {
	if s == nil || count == nil {
		return nil
	}
	_, err := s.meter.Int64ObservableGauge(
		"bidtree.store.records",
		metric.WithDescription(`The bid records held by the store.`),
		metric.WithInt64Callback(func(ctx context.Context, ob metric.Int64Observer) error {
			n, err := count(ctx)
			if err != nil {
				return err
			}
			ob.Observe(n, metric.WithAttributes(s.backend))
			return nil
		}),
	)
	return err
}

// StartAppStats registers the goroutines and processes gauges plus the go
// runtime metrics.
func StartAppStats(mp metric.MeterProvider, name string) error {
	meter := mp.Meter(meterName(name), metric.WithInstrumentationVersion(otelruntime.Version()))
	if _, err := meter.Int64ObservableUpDownCounter(
		"app.core.goroutines",
		metric.WithDescription(`The application goroutines' info.`),
		metric.WithInt64Callback(func(ctx context.Context, ob metric.Int64Observer) error {
			ob.Observe(int64(runtime.NumGoroutine()))
			return nil
		}),
	); err != nil {
		return err
	}
	if _, err := meter.Int64ObservableUpDownCounter(
		"app.core.processes",
		metric.WithDescription(`The application processes' info.`),
		metric.WithInt64Callback(func(ctx context.Context, ob metric.Int64Observer) error {
			ob.Observe(int64(runtime.GOMAXPROCS(0)))
			return nil
		}),
	); err != nil {
		return err
	}
	return otelruntime.Start(otelruntime.WithMeterProvider(mp))
}

package observability

// https://opentelemetry.io/docs/languages/go/exporters/

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/benz9527/bidtree/lib/infra"
)

type ExporterKind string

const (
	NoneExporter       ExporterKind = "none"
	StdoutExporter     ExporterKind = "stdout"
	PrometheusExporter ExporterKind = "prometheus"
)

func ParseExporterKind(kind string) (ExporterKind, error) {
	switch k := ExporterKind(strings.ToLower(strings.TrimSpace(kind))); k {
	case "":
		return NoneExporter, nil
	case NoneExporter, StdoutExporter, PrometheusExporter:
		return k, nil
	default:
	}
	return NoneExporter, infra.NewErrorStack("[observability] unknown metrics exporter " + kind)
}

// MeterProvider keeps the shutdown of the exporter. The prometheus registry
// is present only for the prometheus exporter.
type MeterProvider struct {
	metric.MeterProvider
	Registry *promclient.Registry
	shutdown func(ctx context.Context) error
}

func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp == nil || mp.shutdown == nil {
		return nil
	}
	return mp.shutdown(ctx)
}

type ExporterConfig struct {
	Kind     ExporterKind
	Interval time.Duration
	Timeout  time.Duration
	Writer   io.Writer // stdout exporter only
}

// NewMeterProvider builds the provider by the exporter kind and sets it as
// the otel global.
func NewMeterProvider(cfg ExporterConfig) (*MeterProvider, error) {
	var (
		mp  *MeterProvider
		err error
	)
	switch cfg.Kind {
	case StdoutExporter:
		mp, err = newConsoleMetricsExporter(cfg)
	case PrometheusExporter:
		mp, err = newPrometheusMetricsExporter()
	case NoneExporter, "":
		mp = &MeterProvider{MeterProvider: noop.NewMeterProvider()}
	default:
		err = infra.NewErrorStack("[observability] unknown metrics exporter " + string(cfg.Kind))
	}
	if err != nil {
		return nil, err
	}
	otel.SetMeterProvider(mp.MeterProvider)
	return mp, nil
}

// Serves for test/dev environment.
func newConsoleMetricsExporter(cfg ExporterConfig) (*MeterProvider, error) {
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, infra.WrapErrorStackWithMessage(err, "[observability] stdout exporter")
	}
	interval, timeout := cfg.Interval, cfg.Timeout
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if timeout <= 0 {
		timeout = interval
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(
		exporter,
		sdkmetric.WithInterval(interval),
		sdkmetric.WithTimeout(timeout),
	)))
	return &MeterProvider{MeterProvider: mp, shutdown: mp.Shutdown}, nil
}

// Serves for the product environment and fetch stats metrics by HTTP.
// The registry is private, so the exporter is able to be built repeatedly.
func newPrometheusMetricsExporter() (*MeterProvider, error) {
	reg := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		return nil, infra.WrapErrorStackWithMessage(err, "[observability] prometheus exporter")
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	return &MeterProvider{MeterProvider: mp, Registry: reg, shutdown: mp.Shutdown}, nil
}

package observability

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader sdkmetric.Reader) map[string]metricdata.Metrics {
	rm := metricdata.ResourceMetrics{}
	require.NoError(t, reader.Collect(context.Background(), &rm))
	res := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			res[m.Name] = m
		}
	}
	return res
}

func TestOpStats(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	stats := NewOpStats(mp, "rbtree")
	ctx := context.Background()
	stats.Record(ctx, OpFind, time.Millisecond, nil)
	stats.Record(ctx, OpFind, 3*time.Millisecond, nil)
	stats.Record(ctx, OpLoad, 10*time.Millisecond, errors.New("bad csv"))
	require.NoError(t, stats.ObserveRecords(func(context.Context) (int64, error) {
		return 42, nil
	}))

	var nilStats *OpStats
	nilStats.Record(ctx, OpList, time.Second, nil)
	require.NoError(t, nilStats.ObserveRecords(nil))

	metrics := collect(t, reader)
	ops, ok := metrics["bidtree.store.ops"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	total, errCount := int64(0), int64(0)
	for _, dp := range ops.DataPoints {
		total += dp.Value
		if v, ok := dp.Attributes.Value("result"); ok && v.AsString() == "error" {
			errCount += dp.Value
			op, _ := dp.Attributes.Value("op")
			require.Equal(t, string(OpLoad), op.AsString())
		}
		backend, _ := dp.Attributes.Value("backend")
		require.Equal(t, "rbtree", backend.AsString())
	}
	require.Equal(t, int64(3), total)
	require.Equal(t, int64(1), errCount)

	latency, ok := metrics["bidtree.store.latency"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	count := uint64(0)
	for _, dp := range latency.DataPoints {
		count += dp.Count
	}
	require.Equal(t, uint64(3), count)

	records, ok := metrics["bidtree.store.records"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, records.DataPoints, 1)
	require.Equal(t, int64(42), records.DataPoints[0].Value)
}

func TestStartAppStats(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	require.NoError(t, StartAppStats(mp, ""))
	metrics := collect(t, reader)
	goroutines, ok := metrics["app.core.goroutines"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, goroutines.DataPoints, 1)
	require.Greater(t, goroutines.DataPoints[0].Value, int64(0))
	require.Contains(t, metrics, "app.core.processes")
	require.Equal(t, "bidtree/default", meterName(" "))
}

func TestParseExporterKind(t *testing.T) {
	for in, expected := range map[string]ExporterKind{
		"":           NoneExporter,
		"none":       NoneExporter,
		" Stdout ":   StdoutExporter,
		"PROMETHEUS": PrometheusExporter,
	} {
		kind, err := ParseExporterKind(in)
		require.NoError(t, err)
		require.Equal(t, expected, kind)
	}
	_, err := ParseExporterKind("otlp")
	require.Error(t, err)
}

func TestNewMeterProvider(t *testing.T) {
	mp, err := NewMeterProvider(ExporterConfig{Kind: NoneExporter})
	require.NoError(t, err)
	require.Nil(t, mp.Registry)
	require.NoError(t, mp.Shutdown(context.Background()))

	_, err = NewMeterProvider(ExporterConfig{Kind: "otlp"})
	require.Error(t, err)

	buf := &bytes.Buffer{}
	mp, err = NewMeterProvider(ExporterConfig{Kind: StdoutExporter, Interval: time.Hour, Writer: buf})
	require.NoError(t, err)
	NewOpStats(mp, "sql").Record(context.Background(), OpList, time.Millisecond, nil)
	// The shutdown flushes the periodic reader.
	require.NoError(t, mp.Shutdown(context.Background()))
	require.Contains(t, buf.String(), "bidtree.store.ops")

	var nilMp *MeterProvider
	require.NoError(t, nilMp.Shutdown(context.Background()))
}

func TestMetricsServer(t *testing.T) {
	mp, err := NewMeterProvider(ExporterConfig{Kind: PrometheusExporter})
	require.NoError(t, err)
	require.NotNil(t, mp.Registry)
	defer func() { _ = mp.Shutdown(context.Background()) }()
	NewOpStats(mp, "redis").Record(context.Background(), OpRemove, time.Millisecond, nil)

	_, err = NewMetricsServer("127.0.0.1:0", nil, nil)
	require.Error(t, err)

	srv, err := NewMetricsServer("127.0.0.1:0", mp.Registry, nil)
	require.NoError(t, err)
	srv.Start()
	defer func() { _ = srv.Shutdown(context.Background()) }()

	resp, err := http.Get("http://" + srv.Addr() + httpPrefixMetrics)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "bidtree_store_ops")
}

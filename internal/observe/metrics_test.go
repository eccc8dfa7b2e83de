package observe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := New(mp)
	require.NoError(t, err)
	return m, reader
}

func findSum(t *testing.T, reader *sdkmetric.ManualReader, name string) metricdata.Sum[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok, "metric %s is not an int64 sum", name)
				return sum
			}
		}
	}
	t.Fatalf("metric %s not found", name)
	return metricdata.Sum[int64]{}
}

func TestRecordDrop(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordDrop(ctx, "unknown_item")
	m.RecordDrop(ctx, "unknown_item")
	m.RecordDrop(ctx, "duplicate_item")

	sum := findSum(t, reader, "rtscribe.aggregator.dropped")
	got := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("reason"))
		got[v.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"unknown_item": 2, "duplicate_item": 1}, got)
}

func TestRecordTokenExchange(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordTokenExchange(context.Background(), "http_error", 0.2)

	sum := findSum(t, reader, "rtscribe.token.exchanges")
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(1), sum.DataPoints[0].Value)
}

func TestDefault(t *testing.T) {
	assert.Same(t, Default(), Default())
}

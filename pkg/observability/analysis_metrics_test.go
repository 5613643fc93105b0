package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/effort/pkg/observability"
)

func newTestMeterProvider(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	t.Cleanup(func() { require.NoError(t, mp.Shutdown(context.Background())) })

	return mp, reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	err := reader.Collect(context.Background(), &rm)
	require.NoError(t, err)

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for idx := range rm.ScopeMetrics {
		for midx := range rm.ScopeMetrics[idx].Metrics {
			if rm.ScopeMetrics[idx].Metrics[midx].Name == name {
				return &rm.ScopeMetrics[idx].Metrics[midx]
			}
		}
	}

	return nil
}

func sumOf(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()

	require.NotNil(t, m)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}

	return total
}

// outcomes sums an int64 counter per outcome label.
func outcomes(t *testing.T, m *metricdata.Metrics) map[string]int64 {
	t.Helper()

	require.NotNil(t, m)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	out := map[string]int64{}

	for _, dp := range sum.DataPoints {
		outcome, _ := dp.Attributes.Value("outcome")
		out[outcome.AsString()] += dp.Value
	}

	return out
}

func TestAnalysisMetrics_RecordRun(t *testing.T) {
	t.Parallel()

	mp, reader := newTestMeterProvider(t)

	am, err := observability.NewAnalysisMetrics(mp.Meter("test"))
	require.NoError(t, err)

	am.RecordRun(context.Background(), observability.AnalysisStats{
		Commits:        10,
		Merges:         2,
		Changes:        31,
		UnknownChanges: 4,
		StageDurations: map[string]time.Duration{
			"parse":    20 * time.Millisecond,
			"classify": 5 * time.Millisecond,
		},
	})

	rm := collectMetrics(t, reader)

	assert.Equal(t, int64(1), sumOf(t, findMetric(rm, "effort.analysis.runs.total")))
	assert.Equal(t, int64(10), sumOf(t, findMetric(rm, "effort.analysis.commits.total")))
	assert.Equal(t, int64(2), sumOf(t, findMetric(rm, "effort.analysis.merges.total")))
	assert.Equal(t, int64(31), sumOf(t, findMetric(rm, "effort.analysis.changes.total")))
	assert.Equal(t, int64(4), sumOf(t, findMetric(rm, "effort.analysis.changes.unknown.total")))

	stages := findMetric(rm, "effort.analysis.stage.duration.seconds")
	require.NotNil(t, stages)

	hist, ok := stages.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Len(t, hist.DataPoints, 2)
}

func TestAnalysisMetrics_NilReceiver(t *testing.T) {
	t.Parallel()

	var am *observability.AnalysisMetrics

	assert.NotPanics(t, func() {
		am.RecordRun(context.Background(), observability.AnalysisStats{Commits: 1})
	})
}

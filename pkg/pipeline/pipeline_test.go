package pipeline_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Sumatoshi-tech/effort/pkg/activity"
	"github.com/Sumatoshi-tech/effort/pkg/export"
	"github.com/Sumatoshi-tech/effort/pkg/gitlog"
	"github.com/Sumatoshi-tech/effort/pkg/observability"
	"github.com/Sumatoshi-tech/effort/pkg/pipeline"
	"github.com/Sumatoshi-tech/effort/pkg/timeline"
)

const scenarioLog = `commit aaaa
Author: alice <alice@example.com>
Date:   Mon Mar 4 09:15:00 2019 +0000

    First

A	a.java
A	b.doc

commit bbbb
Author: bob <bob@example.com>
Date:   Tue Mar 12 17:40:03 2019 +0000

    Second

M	c.java

commit cccc
Merge: aaaa bbbb
Author: alice <alice@example.com>
Date:   Wed Mar 13 08:00:00 2019 +0000

    Merge branch 'feature'
`

func newClassifier(t *testing.T) *activity.Classifier {
	t.Helper()

	doc, err := activity.NewRule("doc", `.*\.doc`)
	require.NoError(t, err)

	code, err := activity.NewRule("code", `.*\.java`)
	require.NoError(t, err)

	classifier, err := activity.NewClassifier([]activity.Rule{doc, code})
	require.NoError(t, err)

	return classifier
}

func newRunner(t *testing.T) *pipeline.Runner {
	t.Helper()

	return &pipeline.Runner{
		Classifier: newClassifier(t),
		Timeline:   timeline.Config{Granularity: timeline.Day},
	}
}

func TestRunner_EndToEnd(t *testing.T) {
	t.Parallel()

	res, err := newRunner(t).Run(context.Background(), strings.NewReader(scenarioLog))
	require.NoError(t, err)

	require.Len(t, res.Commits, 3)
	assert.Equal(t, "code", res.Commits[0].Changes[0].Label())
	assert.Equal(t, "doc", res.Commits[0].Changes[1].Label())
	assert.Empty(t, res.Commits[2].Changes)

	assert.Equal(t, 3, res.Engine.PW())
	assert.Equal(t, 2, res.Engine.PTW("code"))
	assert.Equal(t, 1, res.Engine.PTW("doc"))
	assert.Equal(t, 2, res.Engine.NAP())

	assert.Equal(t, 3, res.Timeline.Sum())
	assert.Equal(t, 1, res.Timeline.Curves["code"][0])
	assert.Equal(t, 1, res.Timeline.Curves["code"][8])

	assert.Equal(t, int64(3), res.Stats.Commits)
	assert.Equal(t, int64(1), res.Stats.Merges)
	assert.Equal(t, int64(3), res.Stats.Changes)
	assert.Zero(t, res.Stats.UnknownChanges)
	assert.Len(t, res.Stats.StageDurations, 4)

	assert.Equal(t, "3 & 3 & 2 & 2 & 0.16667 & 0.16667 & 2 & 1 & 0 & 0",
		res.Statistics(export.DefaultTypes).Format())
}

func TestRunner_CountsUnknownChanges(t *testing.T) {
	t.Parallel()

	log := strings.Replace(scenarioLog, "M\tc.java", "M\tc.java\nA\tnotes.xyz", 1)

	res, err := newRunner(t).Run(context.Background(), strings.NewReader(log))
	require.NoError(t, err)

	assert.Equal(t, int64(4), res.Stats.Changes)
	assert.Equal(t, int64(1), res.Stats.UnknownChanges)
	assert.Equal(t, 1, res.Engine.PTW(gitlog.UnknownLabel))
}

func TestRunner_LZ4Input(t *testing.T) {
	t.Parallel()

	var compressed bytes.Buffer

	zw := lz4.NewWriter(&compressed)
	_, err := zw.Write([]byte(scenarioLog))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	res, err := newRunner(t).Run(context.Background(), &compressed)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Engine.PW())
}

func TestRunner_RunFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.log")
	require.NoError(t, os.WriteFile(path, []byte(scenarioLog), 0o600))

	res, err := newRunner(t).RunFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Engine.PW())

	_, err = newRunner(t).RunFile(context.Background(), filepath.Join(t.TempDir(), "missing.log"))
	require.Error(t, err)
}

func TestRunner_Analyze(t *testing.T) {
	t.Parallel()

	commits, err := gitlog.Parse(context.Background(), strings.NewReader(scenarioLog), gitlog.Options{})
	require.NoError(t, err)

	runner := newRunner(t)
	runner.Timeline.Level = timeline.CommitLevel

	res, err := runner.Analyze(context.Background(), commits)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Timeline.Total("code"))
	assert.Zero(t, res.Timeline.Total("doc"))
	assert.Equal(t, 1, res.Timeline.Total(gitlog.UnknownLabel))
	assert.Equal(t, len(commits), res.Timeline.Sum())
}

func TestRunner_RequiresClassifier(t *testing.T) {
	t.Parallel()

	_, err := (&pipeline.Runner{}).Run(context.Background(), strings.NewReader(scenarioLog))
	require.ErrorIs(t, err, pipeline.ErrNoClassifier)
}

func TestRunner_InvalidLog(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	runner := newRunner(t)
	runner.Tracer = tp.Tracer("test")

	_, err := runner.Run(context.Background(), strings.NewReader("commit x\nDate: never\n"))
	require.ErrorIs(t, err, gitlog.ErrInvalidFormat)

	for _, span := range exporter.GetSpans() {
		assert.Equal(t, codes.Error, span.Status.Code, span.Name)
	}
}

func TestRunner_InvalidTimelineConfig(t *testing.T) {
	t.Parallel()

	runner := newRunner(t)
	runner.Timeline.Granularity = timeline.Granularity(42)

	_, err := runner.Run(context.Background(), strings.NewReader(scenarioLog))
	require.ErrorIs(t, err, timeline.ErrUnknownGranularity)
}

func TestRunner_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newRunner(t).Run(ctx, strings.NewReader(scenarioLog))
	require.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), pipeline.StageParse)
}

func TestRunner_StageSpans(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	runner := newRunner(t)
	runner.Tracer = tp.Tracer("test")

	_, err := runner.Run(context.Background(), strings.NewReader(scenarioLog))
	require.NoError(t, err)

	byName := map[string]tracetest.SpanStub{}
	for _, span := range exporter.GetSpans() {
		byName[span.Name] = span
	}

	root, ok := byName["effort.analysis"]
	require.True(t, ok)

	for _, stage := range []string{pipeline.StageParse, pipeline.StageClassify, pipeline.StageAggregate, pipeline.StageMetrics} {
		span, found := byName["effort.stage."+stage]
		require.True(t, found, stage)
		assert.Equal(t, root.SpanContext.SpanID(), span.Parent.SpanID(), stage)
	}
}

func TestRunner_RecordsAnalysisMetrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	t.Cleanup(func() { require.NoError(t, mp.Shutdown(context.Background())) })

	am, err := observability.NewAnalysisMetrics(mp.Meter("test"))
	require.NoError(t, err)

	runner := newRunner(t)
	runner.Metrics = am

	_, err = runner.Run(context.Background(), strings.NewReader(scenarioLog))
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	values := map[string]int64{}

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			sum, isSum := m.Data.(metricdata.Sum[int64])
			if !isSum {
				continue
			}

			for _, dp := range sum.DataPoints {
				values[m.Name] += dp.Value
			}
		}
	}

	assert.Equal(t, int64(1), values["effort.analysis.runs.total"])
	assert.Equal(t, int64(3), values["effort.analysis.commits.total"])
	assert.Equal(t, int64(1), values["effort.analysis.merges.total"])
	assert.Equal(t, int64(3), values["effort.analysis.changes.total"])
}

func TestRunner_StageLogsCarryRunSettings(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer

	cfg := observability.DefaultConfig()
	cfg.LogJSON = true
	cfg.LogLevel = slog.LevelDebug

	runner := newRunner(t)
	runner.Timeline = timeline.Config{Granularity: timeline.PercentOfDuration, Level: timeline.CommitLevel}
	runner.Logger = observability.NewLogger(&logs, cfg)

	_, err := runner.Run(context.Background(), strings.NewReader(scenarioLog))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(logs.String()), "\n")
	require.NotEmpty(t, lines)

	for _, line := range lines {
		var record struct {
			Msg string `json:"msg"`
			Run struct {
				Granularity string `json:"granularity"`
				Level       string `json:"level"`
				Buckets     int    `json:"buckets"`
				Rules       int    `json:"rules"`
			} `json:"run"`
		}

		require.NoError(t, json.Unmarshal([]byte(line), &record), line)
		assert.Equal(t, "percent", record.Run.Granularity, record.Msg)
		assert.Equal(t, "commit", record.Run.Level, record.Msg)
		assert.Equal(t, timeline.DefaultBuckets, record.Run.Buckets, record.Msg)
		assert.Equal(t, 2, record.Run.Rules, record.Msg)
	}
}

package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRunsTotal           = "effort.analysis.runs.total"
	metricCommitsTotal        = "effort.analysis.commits.total"
	metricMergesTotal         = "effort.analysis.merges.total"
	metricChangesTotal        = "effort.analysis.changes.total"
	metricUnknownChangesTotal = "effort.analysis.changes.unknown.total"
	metricStageDuration       = "effort.analysis.stage.duration.seconds"

	attrStage = "stage"
)

// AnalysisMetrics holds OTel instruments for analysis-specific metrics.
type AnalysisMetrics struct {
	runsTotal      metric.Int64Counter
	commitsTotal   metric.Int64Counter
	mergesTotal    metric.Int64Counter
	changesTotal   metric.Int64Counter
	unknownChanges metric.Int64Counter
	stageDuration  metric.Float64Histogram
}

// AnalysisStats holds the statistics of a single analysis run.
type AnalysisStats struct {
	Commits        int64
	Merges         int64
	Changes        int64
	UnknownChanges int64
	// StageDurations maps a stage name (parse, classify, ...) to its time.
	StageDurations map[string]time.Duration
}

// NewAnalysisMetrics creates analysis metric instruments from the given meter.
func NewAnalysisMetrics(mt metric.Meter) (*AnalysisMetrics, error) {
	runs, err := mt.Int64Counter(metricRunsTotal,
		metric.WithDescription("Total analysis runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRunsTotal, err)
	}

	commits, err := mt.Int64Counter(metricCommitsTotal,
		metric.WithDescription("Total commits analyzed"),
		metric.WithUnit("{commit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCommitsTotal, err)
	}

	merges, err := mt.Int64Counter(metricMergesTotal,
		metric.WithDescription("Total merge commits skipped by the metrics"),
		metric.WithUnit("{commit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricMergesTotal, err)
	}

	changes, err := mt.Int64Counter(metricChangesTotal,
		metric.WithDescription("Total file changes classified"),
		metric.WithUnit("{change}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricChangesTotal, err)
	}

	unknown, err := mt.Int64Counter(metricUnknownChangesTotal,
		metric.WithDescription("File changes no activity rule matched"),
		metric.WithUnit("{change}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricUnknownChangesTotal, err)
	}

	stageDur, err := mt.Float64Histogram(metricStageDuration,
		metric.WithDescription("Per-stage analysis duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricStageDuration, err)
	}

	return &AnalysisMetrics{
		runsTotal:      runs,
		commitsTotal:   commits,
		mergesTotal:    merges,
		changesTotal:   changes,
		unknownChanges: unknown,
		stageDuration:  stageDur,
	}, nil
}

// RecordRun records the statistics of a completed run.
// Safe to call on a nil receiver (no-op).
func (am *AnalysisMetrics) RecordRun(ctx context.Context, stats AnalysisStats) {
	if am == nil {
		return
	}

	am.runsTotal.Add(ctx, 1)
	am.commitsTotal.Add(ctx, stats.Commits)
	am.mergesTotal.Add(ctx, stats.Merges)
	am.changesTotal.Add(ctx, stats.Changes)
	am.unknownChanges.Add(ctx, stats.UnknownChanges)

	for stage, d := range stats.StageDurations {
		am.stageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String(attrStage, stage)))
	}
}

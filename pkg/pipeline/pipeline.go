// Package pipeline runs the analysis stages over a log: parse, classify,
// aggregate and compute workload metrics. Cancellation is honoured between
// stages and every stage gets its own span.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/effort/pkg/activity"
	"github.com/Sumatoshi-tech/effort/pkg/export"
	"github.com/Sumatoshi-tech/effort/pkg/gitlog"
	"github.com/Sumatoshi-tech/effort/pkg/observability"
	"github.com/Sumatoshi-tech/effort/pkg/timeline"
	"github.com/Sumatoshi-tech/effort/pkg/workload"
)

// tracerName is the default OTel tracer name for the pipeline package.
const tracerName = "effort"

// Stage names, used for span names, logs and the stage duration metric.
const (
	StageParse     = "parse"
	StageClassify  = "classify"
	StageAggregate = "aggregate"
	StageMetrics   = "metrics"
)

// ErrNoClassifier is returned when a Runner has no classifier.
var ErrNoClassifier = errors.New("pipeline: classifier is required")

// Runner executes analysis runs. A Runner is safe for concurrent use once
// configured; every run owns its derived structures.
type Runner struct {
	// Classifier labels file changes. Required.
	Classifier *activity.Classifier

	// Parse tunes the log parser.
	Parse gitlog.Options

	// Timeline configures the temporal aggregation.
	Timeline timeline.Config

	// Tracer overrides the global tracer. Nil uses otel.Tracer("effort").
	Tracer trace.Tracer

	// Metrics records run statistics. Nil disables recording.
	Metrics *observability.AnalysisMetrics

	// Logger receives stage logs. Nil uses slog.Default().
	Logger *slog.Logger
}

// Result holds everything one run derived from its input.
type Result struct {
	// Commits are the classified commits in log order, merges included.
	Commits  []gitlog.Commit
	Timeline *timeline.Result
	Engine   *workload.Engine
	Stats    observability.AnalysisStats
}

// Statistics returns the export record of the run for the given types.
func (r *Result) Statistics(types []string) export.Statistics {
	return export.Collect(len(r.Commits), r.Engine, types)
}

func (runner *Runner) tracer() trace.Tracer {
	if runner.Tracer != nil {
		return runner.Tracer
	}

	return otel.Tracer(tracerName)
}

func (runner *Runner) logger() *slog.Logger {
	if runner.Logger != nil {
		return runner.Logger
	}

	return slog.Default()
}

// Run parses a plain or lz4-compressed log from src and analyzes it.
func (runner *Runner) Run(ctx context.Context, src io.Reader) (*Result, error) {
	return runner.run(ctx, func(ctx context.Context) ([]gitlog.Commit, error) {
		reader, err := gitlog.Decompress(src)
		if err != nil {
			return nil, err
		}

		return gitlog.Parse(ctx, reader, runner.parseOptions())
	})
}

// RunFile analyzes the log stored at path.
func (runner *Runner) RunFile(ctx context.Context, path string) (*Result, error) {
	return runner.run(ctx, func(ctx context.Context) ([]gitlog.Commit, error) {
		return gitlog.ParseFile(ctx, path, runner.parseOptions())
	})
}

// Analyze runs every stage after parsing over already parsed commits.
func (runner *Runner) Analyze(ctx context.Context, commits []gitlog.Commit) (*Result, error) {
	return runner.run(ctx, func(context.Context) ([]gitlog.Commit, error) {
		return commits, nil
	})
}

func (runner *Runner) parseOptions() gitlog.Options {
	opts := runner.Parse
	if opts.Logger == nil {
		opts.Logger = runner.Logger
	}

	return opts
}

func (runner *Runner) run(
	ctx context.Context, parse func(ctx context.Context) ([]gitlog.Commit, error),
) (*Result, error) {
	if runner.Classifier == nil {
		return nil, ErrNoClassifier
	}

	ctx = observability.WithRun(ctx, runner.describe())

	ctx, span := runner.tracer().Start(ctx, "effort.analysis")
	defer span.End()

	res := &Result{Stats: observability.AnalysisStats{StageDurations: map[string]time.Duration{}}}

	var parsed []gitlog.Commit

	err := runner.stage(ctx, StageParse, res, func(ctx context.Context) error {
		var parseErr error

		parsed, parseErr = parse(ctx)

		return parseErr
	})
	if err != nil {
		return nil, markFailed(span, err)
	}

	err = runner.stage(ctx, StageClassify, res, func(ctx context.Context) error {
		var classifyErr error

		res.Commits, classifyErr = runner.Classifier.EnrichAll(ctx, parsed)

		return classifyErr
	})
	if err != nil {
		return nil, markFailed(span, err)
	}

	countStats(&res.Stats, res.Commits)

	err = runner.stage(ctx, StageAggregate, res, func(context.Context) error {
		var aggErr error

		res.Timeline, aggErr = timeline.Aggregate(res.Commits, runner.Timeline)

		return aggErr
	})
	if err != nil {
		return nil, markFailed(span, err)
	}

	err = runner.stage(ctx, StageMetrics, res, func(context.Context) error {
		res.Engine = workload.NewEngine(res.Commits)

		return nil
	})
	if err != nil {
		return nil, markFailed(span, err)
	}

	span.SetAttributes(
		attribute.Int64("pipeline.commits", res.Stats.Commits),
		attribute.Int64("pipeline.merges", res.Stats.Merges),
		attribute.Int64("pipeline.changes", res.Stats.Changes),
		attribute.Int64("pipeline.changes.unknown", res.Stats.UnknownChanges),
	)

	runner.Metrics.RecordRun(ctx, res.Stats)

	runner.logger().InfoContext(ctx, "analysis complete",
		"commits", res.Stats.Commits,
		"merges", res.Stats.Merges,
		"changes", res.Stats.Changes,
		"unknown", res.Stats.UnknownChanges,
	)

	return res, nil
}

// describe returns the settings stamped on every log record of a run.
func (runner *Runner) describe() observability.Run {
	run := observability.Run{
		Granularity: runner.Timeline.Granularity.String(),
		Level:       runner.Timeline.Level.String(),
		Rules:       len(runner.Classifier.Rules()),
	}

	if runner.Timeline.Granularity == timeline.PercentOfDuration {
		run.Buckets = runner.Timeline.Buckets
		if run.Buckets <= 0 {
			run.Buckets = timeline.DefaultBuckets
		}
	}

	return run
}

// stage runs fn inside a child span after checking for cancellation, and
// records its duration. Errors of fn are returned as is.
func (runner *Runner) stage(ctx context.Context, name string, res *Result, fn func(ctx context.Context) error) error {
	err := ctx.Err()
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	ctx, span := runner.tracer().Start(ctx, "effort.stage."+name,
		trace.WithAttributes(attribute.String("pipeline.stage", name)))
	defer span.End()

	start := time.Now()
	err = fn(ctx)
	elapsed := time.Since(start)

	res.Stats.StageDurations[name] = elapsed

	if err != nil {
		return markFailed(span, err)
	}

	runner.logger().DebugContext(ctx, "stage complete", "stage", name, "duration", elapsed)

	return nil
}

func markFailed(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	return err
}

package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

const (
	attrTraceID = "trace_id"
	attrSpanID  = "span_id"
	attrService = "service"
	attrEnv     = "env"
	attrMode    = "mode"

	attrRun            = "run"
	attrRunGranularity = "granularity"
	attrRunLevel       = "level"
	attrRunBuckets     = "buckets"
	attrRunRules       = "rules"
)

// Run describes the analysis settings a log record was emitted under.
type Run struct {
	Granularity string
	Level       string
	// Buckets is only meaningful for the percent granularity; zero omits it.
	Buckets int
	// Rules is the number of rules in the active classification table.
	Rules int
}

type runKey struct{}

// WithRun returns a context whose log records carry run as a "run" group.
func WithRun(ctx context.Context, run Run) context.Context {
	return context.WithValue(ctx, runKey{}, run)
}

// RunFromContext returns the run stored by WithRun.
func RunFromContext(ctx context.Context) (Run, bool) {
	run, ok := ctx.Value(runKey{}).(Run)

	return run, ok
}

func (r Run) attr() slog.Attr {
	attrs := []any{
		slog.String(attrRunGranularity, r.Granularity),
		slog.String(attrRunLevel, r.Level),
	}

	if r.Buckets > 0 {
		attrs = append(attrs, slog.Int(attrRunBuckets, r.Buckets))
	}

	attrs = append(attrs, slog.Int(attrRunRules, r.Rules))

	return slog.Group(attrRun, attrs...)
}

// NewLogger builds the process logger: a text or JSON handler writing to w,
// wrapped by a ContextHandler carrying the service metadata of cfg.
func NewLogger(w io.Writer, cfg Config) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var inner slog.Handler
	if cfg.LogJSON {
		inner = slog.NewJSONHandler(w, handlerOpts)
	} else {
		inner = slog.NewTextHandler(w, handlerOpts)
	}

	return slog.New(NewContextHandler(inner, cfg.ServiceName, cfg.Environment, cfg.Mode))
}

// ContextHandler is an [slog.Handler] that stamps every record with what the
// context knows about it: the OpenTelemetry trace and span IDs and the
// analysis Run. Service metadata is attached once, at the top level.
type ContextHandler struct {
	inner slog.Handler
}

// NewContextHandler wraps inner. service, env and mode are pre-attached so
// later WithGroup calls do not nest them.
func NewContextHandler(inner slog.Handler, service, env string, appMode AppMode) *ContextHandler {
	attrs := []slog.Attr{
		slog.String(attrService, service),
		slog.String(attrMode, string(appMode)),
	}

	if env != "" {
		attrs = append(attrs, slog.String(attrEnv, env))
	}

	return &ContextHandler{inner: inner.WithAttrs(attrs)}
}

// Enabled delegates to the inner handler.
func (ch *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return ch.inner.Enabled(ctx, level)
}

// Handle adds the trace and run attributes found in ctx, then delegates.
func (ch *ContextHandler) Handle(ctx context.Context, record slog.Record) error {
	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		record.AddAttrs(
			slog.String(attrTraceID, sc.TraceID().String()),
			slog.String(attrSpanID, sc.SpanID().String()),
		)
	}

	if run, ok := RunFromContext(ctx); ok {
		record.AddAttrs(run.attr())
	}

	err := ch.inner.Handle(ctx, record)
	if err != nil {
		return fmt.Errorf("context handler: %w", err)
	}

	return nil
}

func (ch *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: ch.inner.WithAttrs(attrs)}
}

func (ch *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: ch.inner.WithGroup(name)}
}

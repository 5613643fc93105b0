package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRequestsTotal   = "effort.requests.total"
	metricRequestDuration = "effort.request.duration.seconds"
	metricRequestInflight = "effort.requests.inflight"

	attrSurface = "surface"
	attrOp      = "op"
	attrOutcome = "outcome"
)

// durationBucketBoundaries covers 1ms to 300s: small logs classify in
// milliseconds, exports of large monorepos take minutes.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

// Surface names the entry point an analysis request arrived through.
type Surface string

// Request surfaces.
const (
	SurfaceHTTP Surface = "http"
	SurfaceMCP  Surface = "mcp"
)

// Outcome classifies a finished request.
type Outcome string

// Request outcomes. Rejected requests never reached the pipeline or were
// refused by it because of their input; failed requests hit a server fault.
const (
	OutcomeOK       Outcome = "ok"
	OutcomeRejected Outcome = "rejected"
	OutcomeFailed   Outcome = "failed"
)

// OutcomeOfStatus maps an HTTP status code to an Outcome.
func OutcomeOfStatus(code int) Outcome {
	switch {
	case code >= http.StatusInternalServerError:
		return OutcomeFailed
	case code >= http.StatusBadRequest:
		return OutcomeRejected
	default:
		return OutcomeOK
	}
}

// RequestMetrics counts and times the requests served by `effort serve` and
// `effort mcp`, labelled by surface, operation and outcome.
type RequestMetrics struct {
	total    metric.Int64Counter
	duration metric.Float64Histogram
	inflight metric.Int64UpDownCounter
}

// NewRequestMetrics creates the request instruments from mt.
func NewRequestMetrics(mt metric.Meter) (*RequestMetrics, error) {
	total, err := mt.Int64Counter(metricRequestsTotal,
		metric.WithDescription("Requests served, by surface, operation and outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRequestsTotal, err)
	}

	duration, err := mt.Float64Histogram(metricRequestDuration,
		metric.WithDescription("Request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRequestDuration, err)
	}

	inflight, err := mt.Int64UpDownCounter(metricRequestInflight,
		metric.WithDescription("Requests being served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRequestInflight, err)
	}

	return &RequestMetrics{total: total, duration: duration, inflight: inflight}, nil
}

// Request is one in-flight request started by RequestMetrics.Start.
type Request struct {
	metrics *RequestMetrics
	ctx     context.Context //nolint:containedctx // End records on the context the request started with.
	surface attribute.KeyValue
	op      attribute.KeyValue
	start   time.Time
}

// Start marks a request on surface for op as in flight. A nil receiver
// returns a Request that only measures time.
func (rm *RequestMetrics) Start(ctx context.Context, surface Surface, op string) *Request {
	req := &Request{
		metrics: rm,
		ctx:     ctx,
		surface: attribute.String(attrSurface, string(surface)),
		op:      attribute.String(attrOp, op),
		start:   time.Now(),
	}

	if rm != nil {
		rm.inflight.Add(ctx, 1, metric.WithAttributes(req.surface))
	}

	return req
}

// SetOp replaces the operation label End records. In-flight counts are
// labelled by surface only, so the op may be settled after Start.
func (r *Request) SetOp(op string) {
	r.op = attribute.String(attrOp, op)
}

// End records the outcome of the request and returns its duration.
func (r *Request) End(outcome Outcome) time.Duration {
	elapsed := time.Since(r.start)

	rm := r.metrics
	if rm == nil {
		return elapsed
	}

	rm.inflight.Add(r.ctx, -1, metric.WithAttributes(r.surface))

	attrs := metric.WithAttributes(r.surface, r.op, attribute.String(attrOutcome, string(outcome)))
	rm.total.Add(r.ctx, 1, attrs)
	rm.duration.Record(r.ctx, elapsed.Seconds(), attrs)

	return elapsed
}

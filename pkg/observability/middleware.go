package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// routeUnmatched labels requests no route accepted, keeping the op
	// label bounded.
	routeUnmatched = "unmatched"

	attrContentEncoding = "effort.content_encoding"
	encodingIdentity    = "identity"
)

// responseRecorder captures the status code and body size of a response.
type responseRecorder struct {
	http.ResponseWriter

	status  int
	written int
}

func (rr *responseRecorder) WriteHeader(code int) {
	if rr.status == 0 {
		rr.status = code
	}

	rr.ResponseWriter.WriteHeader(code)
}

func (rr *responseRecorder) Write(buf []byte) (int, error) {
	if rr.status == 0 {
		rr.status = http.StatusOK
	}

	n, err := rr.ResponseWriter.Write(buf)
	rr.written += n

	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}

	return n, nil
}

func (rr *responseRecorder) code() int {
	if rr.status == 0 {
		return http.StatusOK
	}

	return rr.status
}

func requestEncoding(hr *http.Request) string {
	enc := strings.ToLower(strings.TrimSpace(hr.Header.Get("Content-Encoding")))
	if enc == "" {
		return encodingIdentity
	}

	return enc
}

// HTTPMiddleware wraps the serve mux. Every request gets a server span
// continuing the caller's W3C trace, is counted by requests under the route
// pattern the mux matched, and is logged once it completes: failures at warn,
// everything else at debug.
func HTTPMiddleware(tracer trace.Tracer, logger *slog.Logger, requests *RequestMetrics, next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		parentCtx := otel.GetTextMapPropagator().Extract(hr.Context(), propagation.HeaderCarrier(hr.Header))

		ctx, span := tracer.Start(parentCtx, hr.Method+" "+hr.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(hr.Method),
				semconv.URLPath(hr.URL.Path),
				attribute.String(attrContentEncoding, requestEncoding(hr)),
			),
		)
		defer span.End()

		rec := &responseRecorder{ResponseWriter: rw}
		inner := hr.WithContext(ctx)

		// The mux records the matched pattern on inner, so the op is only
		// known after serving.
		req := requests.Start(ctx, SurfaceHTTP, hr.Method)
		next.ServeHTTP(rec, inner)

		route := inner.Pattern
		if route == "" {
			route = routeUnmatched
		}

		code := rec.code()
		outcome := OutcomeOfStatus(code)

		span.SetAttributes(
			semconv.HTTPRoute(route),
			semconv.HTTPResponseStatusCode(code),
			semconv.HTTPResponseBodySize(rec.written),
		)

		if outcome == OutcomeFailed {
			span.SetStatus(codes.Error, http.StatusText(code))
		}

		req.SetOp(route)
		elapsed := req.End(outcome)

		level := slog.LevelDebug
		if outcome == OutcomeFailed {
			level = slog.LevelWarn
		}

		logger.Log(ctx, level, "request served",
			"route", route,
			"path", hr.URL.Path,
			"status", code,
			"outcome", outcome,
			"bytes", rec.written,
			"duration", elapsed,
		)
	})
}

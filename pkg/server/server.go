// Package server exposes the analysis over HTTP: POST /v1/analyze takes a
// commit log as the request body and answers with a rendered report.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pierrec/lz4/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/effort/pkg/activity"
	"github.com/Sumatoshi-tech/effort/pkg/config"
	"github.com/Sumatoshi-tech/effort/pkg/gitlog"
	"github.com/Sumatoshi-tech/effort/pkg/observability"
	"github.com/Sumatoshi-tech/effort/pkg/pipeline"
	"github.com/Sumatoshi-tech/effort/pkg/report"
	"github.com/Sumatoshi-tech/effort/pkg/timeline"
)

// Routes.
const (
	RouteAnalyze = "/v1/analyze"
	RouteHealth  = "/healthz"
	RouteReady   = "/readyz"
	RouteMetrics = "/metrics"
)

const (
	encodingLZ4      = "lz4"
	encodingIdentity = "identity"
	shutdownTimeout  = 10 * time.Second
	defaultFormat    = report.FormatJSON
)

var errBadQuery = errors.New("bad query parameter")

var contentTypes = map[string]string{
	report.FormatJSON: "application/json",
	report.FormatYAML: "application/yaml",
	report.FormatText: "text/plain; charset=utf-8",
	report.FormatPlot: "text/html; charset=utf-8",
}

// Options configure a Server.
type Options struct {
	// Classifier labels file changes. Required for readiness.
	Classifier *activity.Classifier
	// Parse and Timeline are the defaults of every request.
	Parse    gitlog.Options
	Timeline timeline.Config
	// MaxBodyBytes bounds request bodies. Zero means unlimited.
	MaxBodyBytes int64

	Tracer         trace.Tracer
	Logger         *slog.Logger
	Requests       *observability.RequestMetrics
	Analysis       *observability.AnalysisMetrics
	MetricsHandler http.Handler
}

// Server serves analysis requests.
type Server struct {
	opts Options
}

// New creates a Server.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("effort")
	}

	return &Server{opts: opts}
}

// Handler returns the HTTP handler with every route wrapped in the tracing
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+RouteAnalyze, s.handleAnalyze)
	mux.Handle("GET "+RouteHealth, observability.HealthHandler())
	mux.Handle("GET "+RouteReady, observability.ReadyHandler(observability.ReadyCheck{
		Name:  "rules",
		Check: s.checkRules,
	}))

	if s.opts.MetricsHandler != nil {
		mux.Handle("GET "+RouteMetrics, s.opts.MetricsHandler)
	}

	return observability.HTTPMiddleware(s.opts.Tracer, s.opts.Logger, s.opts.Requests, mux)
}

var errNoRules = errors.New("no activity rules loaded")

func (s *Server) checkRules(context.Context) error {
	if s.opts.Classifier == nil {
		return errNoRules
	}

	return nil
}

// ListenAndServe serves on cfg.Addr() until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, cfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		s.opts.Logger.InfoContext(ctx, "server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.opts.Logger.InfoContext(ctx, "server stopped")

	return nil
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeError(ctx context.Context, rw http.ResponseWriter, code int, err error) {
	if code >= http.StatusInternalServerError {
		s.opts.Logger.ErrorContext(ctx, "analysis failed", "error", err)
	}

	rw.Header().Set("Content-Type", contentTypes[report.FormatJSON])
	rw.WriteHeader(code)

	encodeErr := json.NewEncoder(rw).Encode(errorBody{Error: err.Error()})
	if encodeErr != nil {
		s.opts.Logger.ErrorContext(ctx, "failed to encode error response", "error", encodeErr)
	}
}

func (s *Server) handleAnalyze(rw http.ResponseWriter, hr *http.Request) {
	ctx := hr.Context()

	if s.opts.Classifier == nil {
		s.writeError(ctx, rw, http.StatusServiceUnavailable, errNoRules)

		return
	}

	tlCfg, format, err := s.requestSettings(hr)
	if err != nil {
		s.writeError(ctx, rw, http.StatusBadRequest, err)

		return
	}

	body, err := s.requestBody(rw, hr)
	if err != nil {
		s.writeError(ctx, rw, http.StatusUnsupportedMediaType, err)

		return
	}

	runner := &pipeline.Runner{
		Classifier: s.opts.Classifier,
		Parse:      s.opts.Parse,
		Timeline:   tlCfg,
		Tracer:     s.opts.Tracer,
		Metrics:    s.opts.Analysis,
		Logger:     s.opts.Logger,
	}

	res, err := runner.Run(ctx, body)
	if err != nil {
		s.writeError(ctx, rw, statusOf(err), err)

		return
	}

	var buf bytes.Buffer

	err = report.Render(&buf, report.Build(res), format)
	if err != nil {
		s.writeError(ctx, rw, http.StatusInternalServerError, err)

		return
	}

	rw.Header().Set("Content-Type", contentTypes[format])
	rw.WriteHeader(http.StatusOK)

	_, err = rw.Write(buf.Bytes())
	if err != nil {
		s.opts.Logger.WarnContext(ctx, "failed to write response", "error", err)
	}
}

func (s *Server) requestSettings(hr *http.Request) (timeline.Config, string, error) {
	cfg := s.opts.Timeline
	query := hr.URL.Query()

	if raw := query.Get("granularity"); raw != "" {
		granularity, err := timeline.ParseGranularity(raw)
		if err != nil {
			return cfg, "", err
		}

		cfg.Granularity = granularity
	}

	if raw := query.Get("level"); raw != "" {
		level, err := timeline.ParseLevel(raw)
		if err != nil {
			return cfg, "", err
		}

		cfg.Level = level
	}

	if raw := query.Get("buckets"); raw != "" {
		buckets, err := strconv.Atoi(raw)
		if err != nil || buckets <= 0 {
			return cfg, "", fmt.Errorf("%w: buckets=%q", errBadQuery, raw)
		}

		if buckets > timeline.MaxBuckets {
			return cfg, "", fmt.Errorf("%w: buckets=%d (max %d)", timeline.ErrTooManyBuckets, buckets, timeline.MaxBuckets)
		}

		cfg.Buckets = buckets
	}

	if raw := query.Get("show_zero"); raw != "" {
		showZero, err := strconv.ParseBool(raw)
		if err != nil {
			return cfg, "", fmt.Errorf("%w: show_zero=%q", errBadQuery, raw)
		}

		cfg.ShowZero = showZero
	}

	format := defaultFormat
	if raw := query.Get("format"); raw != "" {
		normalized, err := report.ValidateFormat(raw, report.Formats())
		if err != nil {
			return cfg, "", err
		}

		format = normalized
	}

	return cfg, format, nil
}

var errUnsupportedEncoding = errors.New("unsupported content encoding")

func (s *Server) requestBody(rw http.ResponseWriter, hr *http.Request) (io.Reader, error) {
	var body io.Reader = hr.Body
	if s.opts.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(rw, hr.Body, s.opts.MaxBodyBytes)
	}

	switch encoding := strings.ToLower(strings.TrimSpace(hr.Header.Get("Content-Encoding"))); encoding {
	case "", encodingIdentity:
		return body, nil
	case encodingLZ4:
		return lz4.NewReader(body), nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnsupportedEncoding, encoding)
	}
}

func statusOf(err error) int {
	var maxBytesErr *http.MaxBytesError

	switch {
	case errors.As(err, &maxBytesErr), errors.Is(err, gitlog.ErrLogTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, gitlog.ErrInvalidFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, timeline.ErrTooManyBuckets):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

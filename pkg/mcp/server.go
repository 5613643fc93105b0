// Package mcp implements a Model Context Protocol server exposing effort
// analysis and path classification as MCP tools over stdio transport.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/effort/pkg/activity"
	"github.com/Sumatoshi-tech/effort/pkg/gitlog"
	"github.com/Sumatoshi-tech/effort/pkg/observability"
	"github.com/Sumatoshi-tech/effort/pkg/timeline"
	"github.com/Sumatoshi-tech/effort/pkg/version"
)

const (
	// serverName is the MCP server implementation name.
	serverName = "effort"

	// toolCount is the expected number of registered tools.
	toolCount = 2
)

// ServerDeps holds injectable dependencies for the MCP server.
// Zero-value fields use production defaults.
type ServerDeps struct {
	// Classifier labels file changes. Nil makes every tool answer with an error.
	Classifier *activity.Classifier

	// Parse and Timeline are the defaults of every analysis call.
	Parse    gitlog.Options
	Timeline timeline.Config

	// MaxLogBytes bounds inline log input. Zero uses MaxLogInputBytes.
	MaxLogBytes int

	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger

	// Requests counts tool calls by outcome. Nil disables per-tool metrics.
	Requests *observability.RequestMetrics

	// Analysis records per-run analysis metrics. Nil disables them.
	Analysis *observability.AnalysisMetrics

	// Tracer is an optional OTel tracer for per-tool-call spans. Nil disables tracing.
	Tracer trace.Tracer
}

// Server wraps the MCP SDK server with effort tool registrations.
type Server struct {
	inner    *mcpsdk.Server
	mu       sync.RWMutex
	tools    []string
	deps     ServerDeps
	requests *observability.RequestMetrics
	tracer   trace.Tracer
}

// NewServer creates a new MCP server with all effort tools registered.
func NewServer(deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	if deps.MaxLogBytes <= 0 {
		deps.MaxLogBytes = MaxLogInputBytes
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    serverName,
			Version: version.Version,
		},
		opts,
	)

	srv := &Server{
		inner:    inner,
		tools:    make([]string, 0, toolCount),
		deps:     deps,
		requests: deps.Requests,
		tracer:   deps.Tracer,
	}

	srv.registerTools()

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.tools))
	copy(names, s.tools)
	sort.Strings(names)

	return names
}

// Run starts the MCP server on stdio transport. It blocks until the context
// is canceled or the connection closes.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport starts the MCP server on the given transport. It blocks
// until the context is canceled or the connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameAnalyze,
		Description: analyzeToolDescription,
	}, withMetrics(s.requests, ToolNameAnalyze, withTracing(s.tracer, ToolNameAnalyze, s.handleAnalyze)))

	s.trackTool(ToolNameAnalyze)

	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        ToolNameClassify,
		Description: classifyToolDescription,
	}, withMetrics(s.requests, ToolNameClassify, withTracing(s.tracer, ToolNameClassify, s.handleClassify)))

	s.trackTool(ToolNameClassify)
}

// mcpSpanPrefix is the prefix for MCP tool span names.
const mcpSpanPrefix = "mcp."

// traceIDMetaKey is the metadata key for trace_id in MCP tool responses.
const traceIDMetaKey = "trace_id"

// toolHandler is an alias, not a defined type, so that mcpsdk.AddTool can
// infer its type arguments from the wrapped handlers.
type toolHandler[Input any] = func(context.Context, *mcpsdk.CallToolRequest, Input) (*mcpsdk.CallToolResult, ToolOutput, error)

// withTracing wraps a tool handler in a span per invocation and appends the
// trace_id to the response content when the span is sampled.
func withTracing[Input any](tracer trace.Tracer, toolName string, handler toolHandler[Input]) toolHandler[Input] {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		sc := span.SpanContext()
		if sc.IsSampled() && result != nil {
			traceContent := &mcpsdk.TextContent{Text: fmt.Sprintf("%s=%s", traceIDMetaKey, sc.TraceID().String())}
			result.Content = append(result.Content, traceContent)
		}

		return result, output, err
	}
}

// withMetrics counts every invocation of toolName on the MCP surface. Handler
// errors are failures; results flagged IsError were rejected inputs.
func withMetrics[Input any](requests *observability.RequestMetrics, toolName string, handler toolHandler[Input]) toolHandler[Input] {
	if requests == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		call := requests.Start(ctx, observability.SurfaceMCP, toolName)

		result, output, err := handler(ctx, req, input)

		call.End(toolOutcome(result, err))

		return result, output, err
	}
}

func toolOutcome(result *mcpsdk.CallToolResult, err error) observability.Outcome {
	switch {
	case err != nil:
		return observability.OutcomeFailed
	case result != nil && result.IsError:
		return observability.OutcomeRejected
	default:
		return observability.OutcomeOK
	}
}

func (s *Server) trackTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, name)
}

const (
	analyzeToolDescription = "Analyze a git log (git log --name-status) for activity over time: " +
		"per-label timeline curves and the workload matrix of authors and activity types. " +
		"Accepts the log inline or as an absolute path on the server."

	classifyToolDescription = "Classify file paths with the loaded activity rules. " +
		"Returns the winning label, every matching rule and the detected language per path."
)

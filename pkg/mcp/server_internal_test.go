package mcp

import (
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestWrappedHandlersAssignToSDKHandlers(t *testing.T) {
	t.Parallel()

	srv := &Server{}

	var analyze mcpsdk.ToolHandlerFor[AnalyzeInput, ToolOutput] = withMetrics(nil, ToolNameAnalyze,
		withTracing(noop.NewTracerProvider().Tracer("test"), ToolNameAnalyze, srv.handleAnalyze))

	var classify mcpsdk.ToolHandlerFor[ClassifyInput, ToolOutput] = withTracing(nil, ToolNameClassify, srv.handleClassify)

	assert.NotNil(t, analyze)
	assert.NotNil(t, classify)
}

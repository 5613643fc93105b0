package mcp

import (
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool name constants.
const (
	ToolNameAnalyze  = "effort_analyze"
	ToolNameClassify = "effort_classify"
)

// Input size limits.
const (
	// MaxLogInputBytes is the default limit for inline log input (16 MB).
	MaxLogInputBytes = 16 << 20

	// MaxClassifyPaths is the maximum number of paths per classify call.
	MaxClassifyPaths = 10000
)

// Sentinel errors for tool input validation.
var (
	// ErrNoRules indicates the server has no activity rules loaded.
	ErrNoRules = errors.New("no activity rules loaded")
	// ErrNoLogInput indicates neither log nor path was given.
	ErrNoLogInput = errors.New("one of log or path is required")
	// ErrAmbiguousLogInput indicates both log and path were given.
	ErrAmbiguousLogInput = errors.New("log and path are mutually exclusive")
	// ErrLogTooLarge indicates the inline log exceeds the size limit.
	ErrLogTooLarge = errors.New("log input exceeds maximum size")
	// ErrPathNotAbsolute indicates the path is not absolute.
	ErrPathNotAbsolute = errors.New("path must be an absolute path")
	// ErrInvalidBuckets indicates a negative bucket count.
	ErrInvalidBuckets = errors.New("buckets must not be negative")
	// ErrNoPaths indicates the classify call carried no paths.
	ErrNoPaths = errors.New("paths parameter is required and must not be empty")
	// ErrTooManyPaths indicates the classify call exceeds MaxClassifyPaths.
	ErrTooManyPaths = errors.New("too many paths")
)

// AnalyzeInput is the input schema for the effort_analyze tool.
type AnalyzeInput struct {
	Log         string `json:"log,omitempty"         jsonschema:"git log --name-status output to analyze"`
	Path        string `json:"path,omitempty"        jsonschema:"absolute path of a log file on the server, plain or lz4"`
	Granularity string `json:"granularity,omitempty" jsonschema:"time bucketing: day, week, month or percent"`
	Level       string `json:"level,omitempty"       jsonschema:"counting level: file or commit"`
	Buckets     int    `json:"buckets,omitempty"     jsonschema:"bucket count for percent granularity (default 100, max 10000)"`
	ShowZero    bool   `json:"show_zero,omitempty"   jsonschema:"include buckets without activity as zero points"`
	Format      string `json:"format,omitempty"      jsonschema:"report format: json (default), yaml or text"`
}

// ClassifyInput is the input schema for the effort_classify tool.
type ClassifyInput struct {
	Paths []string `json:"paths" jsonschema:"file paths to classify"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return textResult(string(data), value)
}

// textResult builds a CallToolResult carrying pre-rendered text.
func textResult(text string, value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: text},
		},
	}, ToolOutput{Data: value}, nil
}

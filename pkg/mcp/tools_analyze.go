package mcp

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/effort/pkg/pipeline"
	"github.com/Sumatoshi-tech/effort/pkg/report"
	"github.com/Sumatoshi-tech/effort/pkg/timeline"
)

// analyzeFormats are the report formats the analyze tool answers with.
var analyzeFormats = []string{report.FormatJSON, report.FormatYAML, report.FormatText}

// handleAnalyze processes effort_analyze tool calls.
func (s *Server) handleAnalyze(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input AnalyzeInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if s.deps.Classifier == nil {
		return errorResult(ErrNoRules)
	}

	err := validateAnalyzeInput(input, s.deps.MaxLogBytes)
	if err != nil {
		return errorResult(err)
	}

	tlCfg, err := s.timelineSettings(input)
	if err != nil {
		return errorResult(err)
	}

	format := report.FormatJSON
	if input.Format != "" {
		format, err = report.ValidateFormat(input.Format, analyzeFormats)
		if err != nil {
			return errorResult(err)
		}
	}

	runner := &pipeline.Runner{
		Classifier: s.deps.Classifier,
		Parse:      s.deps.Parse,
		Timeline:   tlCfg,
		Tracer:     s.deps.Tracer,
		Metrics:    s.deps.Analysis,
		Logger:     s.deps.Logger,
	}

	var res *pipeline.Result
	if input.Path != "" {
		res, err = runner.RunFile(ctx, input.Path)
	} else {
		res, err = runner.Run(ctx, strings.NewReader(input.Log))
	}

	if err != nil {
		return errorResult(fmt.Errorf("analyze: %w", err))
	}

	rep := report.Build(res)
	if format == report.FormatJSON {
		return jsonResult(rep)
	}

	var buf bytes.Buffer

	err = report.Render(&buf, rep, format)
	if err != nil {
		return errorResult(err)
	}

	return textResult(buf.String(), rep)
}

func (s *Server) timelineSettings(input AnalyzeInput) (timeline.Config, error) {
	cfg := s.deps.Timeline

	if input.Granularity != "" {
		granularity, err := timeline.ParseGranularity(input.Granularity)
		if err != nil {
			return cfg, err
		}

		cfg.Granularity = granularity
	}

	if input.Level != "" {
		level, err := timeline.ParseLevel(input.Level)
		if err != nil {
			return cfg, err
		}

		cfg.Level = level
	}

	if input.Buckets > 0 {
		cfg.Buckets = input.Buckets
	}

	if input.ShowZero {
		cfg.ShowZero = true
	}

	return cfg, nil
}

func validateAnalyzeInput(input AnalyzeInput, maxLogBytes int) error {
	switch {
	case input.Log == "" && input.Path == "":
		return ErrNoLogInput
	case input.Log != "" && input.Path != "":
		return ErrAmbiguousLogInput
	case input.Path != "" && !filepath.IsAbs(input.Path):
		return fmt.Errorf("%w: %s", ErrPathNotAbsolute, input.Path)
	case len(input.Log) > maxLogBytes:
		return fmt.Errorf("%w: %d bytes (max %d)", ErrLogTooLarge, len(input.Log), maxLogBytes)
	case input.Buckets < 0:
		return fmt.Errorf("%w: %d", ErrInvalidBuckets, input.Buckets)
	case input.Buckets > timeline.MaxBuckets:
		return fmt.Errorf("%w: %d (max %d)", timeline.ErrTooManyBuckets, input.Buckets, timeline.MaxBuckets)
	}

	return nil
}

package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/effort/pkg/gitlog"
)

// Classification is the classify tool answer for one path.
type Classification struct {
	Path     string   `json:"path"`
	Label    string   `json:"label"`
	Matches  []string `json:"matches"`
	Language string   `json:"language,omitempty"`
	Vendored bool     `json:"vendored,omitempty"`
}

// handleClassify processes effort_classify tool calls.
func (s *Server) handleClassify(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input ClassifyInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if s.deps.Classifier == nil {
		return errorResult(ErrNoRules)
	}

	switch {
	case len(input.Paths) == 0:
		return errorResult(ErrNoPaths)
	case len(input.Paths) > MaxClassifyPaths:
		return errorResult(fmt.Errorf("%w: %d (max %d)", ErrTooManyPaths, len(input.Paths), MaxClassifyPaths))
	}

	out := make([]Classification, 0, len(input.Paths))

	for _, filePath := range input.Paths {
		err := ctx.Err()
		if err != nil {
			return errorResult(fmt.Errorf("classify: %w", err))
		}

		change := s.deps.Classifier.ClassifyChange(gitlog.RawChange{Action: gitlog.ActionModified, Path: filePath})

		matches := s.deps.Classifier.Matches(filePath)
		if matches == nil {
			matches = []string{}
		}

		out = append(out, Classification{
			Path:     filePath,
			Label:    change.Label(),
			Matches:  matches,
			Language: change.Language,
			Vendored: change.Vendored,
		})
	}

	return jsonResult(out)
}

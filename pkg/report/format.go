package report

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Output formats.
const (
	// FormatText is the human-readable table output.
	FormatText = "text"
	// FormatJSON is indented JSON.
	FormatJSON = "json"
	// FormatYAML is YAML.
	FormatYAML = "yaml"
	// FormatPlot is a self-contained interactive HTML page.
	FormatPlot = "plot"

	formatYMLAlias  = "yml"
	formatHTMLAlias = "html"
)

// ErrUnsupportedFormat indicates the requested output format is not supported.
var ErrUnsupportedFormat = errors.New("unsupported format")

// NormalizeFormat canonicalizes a user-provided output format string.
func NormalizeFormat(format string) string {
	normalized := strings.ToLower(strings.TrimSpace(format))

	switch normalized {
	case "":
		return FormatText
	case formatYMLAlias:
		return FormatYAML
	case formatHTMLAlias:
		return FormatPlot
	default:
		return normalized
	}
}

// Formats returns the canonical formats supported by Render.
func Formats() []string {
	return []string{FormatText, FormatJSON, FormatYAML, FormatPlot}
}

// ValidateFormat checks whether a format is in the provided support list.
func ValidateFormat(format string, supported []string) (string, error) {
	normalized := NormalizeFormat(format)
	if slices.Contains(supported, normalized) {
		return normalized, nil
	}

	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

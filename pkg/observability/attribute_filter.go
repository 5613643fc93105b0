package observability

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type verdict int

const (
	verdictDrop verdict = iota
	verdictKeep
	verdictBlock
)

// keptPrefixes are the attribute namespaces effort emits itself.
var keptPrefixes = []string{
	"effort.", "pipeline.", "rules.", "timeline.", "report.", "analysis.",
	"mcp.", "http.", "error.",
}

// blockedPrefixes carry personal data. Commit logs name authors and their
// e-mail addresses; neither may reach an exporter.
var blockedPrefixes = []string{"user.", "author.", "commit."}

// blockedKeys are exact keys that carry payloads or personal data.
var blockedKeys = map[string]bool{
	"email":         true,
	"request.body":  true,
	"response.body": true,
	"log.body":      true,
}

// attributePolicy decides what happens to one attribute key.
func attributePolicy(key string) verdict {
	if blockedKeys[key] || hasAnyPrefix(key, blockedPrefixes) {
		return verdictBlock
	}

	if key == "error" || key == "stage" || hasAnyPrefix(key, keptPrefixes) {
		return verdictKeep
	}

	return verdictDrop
}

func hasAnyPrefix(key string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}

	return false
}

// attributeFilter is a SpanProcessor that applies attributePolicy to every
// ended span before it reaches the delegate.
type attributeFilter struct {
	delegate sdktrace.SpanProcessor
	logger   *slog.Logger
	warned   sync.Map
}

// NewAttributeFilter returns a SpanProcessor that keeps only effort's own
// attribute namespaces and strips personal data such as author identities
// and payload bodies. With a non-nil logger every stripped or unknown key is
// reported once at warn level.
func NewAttributeFilter(delegate sdktrace.SpanProcessor, logger *slog.Logger) sdktrace.SpanProcessor {
	return &attributeFilter{delegate: delegate, logger: logger}
}

// OnStart delegates to the wrapped processor.
func (f *attributeFilter) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	f.delegate.OnStart(parent, s)
}

// OnEnd hands the delegate a filtered view of s.
func (f *attributeFilter) OnEnd(s sdktrace.ReadOnlySpan) {
	f.delegate.OnEnd(&filteredSpan{ReadOnlySpan: s, filter: f})
}

// Shutdown delegates to the wrapped processor.
func (f *attributeFilter) Shutdown(ctx context.Context) error {
	err := f.delegate.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("attribute filter shutdown: %w", err)
	}

	return nil
}

// ForceFlush delegates to the wrapped processor.
func (f *attributeFilter) ForceFlush(ctx context.Context) error {
	err := f.delegate.ForceFlush(ctx)
	if err != nil {
		return fmt.Errorf("attribute filter flush: %w", err)
	}

	return nil
}

func (f *attributeFilter) keep(key string) bool {
	switch attributePolicy(key) {
	case verdictKeep:
		return true
	case verdictBlock:
		f.warnOnce(key, "attribute blocked by filter")
	default:
		f.warnOnce(key, "attribute dropped by filter")
	}

	return false
}

func (f *attributeFilter) warnOnce(key, msg string) {
	if f.logger == nil {
		return
	}

	if _, seen := f.warned.LoadOrStore(key, struct{}{}); seen {
		return
	}

	f.logger.Warn(msg, "key", key)
}

// filteredSpan is a ReadOnlySpan whose attributes passed the filter.
type filteredSpan struct {
	sdktrace.ReadOnlySpan

	filter *attributeFilter
}

// Attributes returns the kept attributes.
func (s *filteredSpan) Attributes() []attribute.KeyValue {
	orig := s.ReadOnlySpan.Attributes()
	kept := make([]attribute.KeyValue, 0, len(orig))

	for _, kv := range orig {
		if s.filter.keep(string(kv.Key)) {
			kept = append(kept, kv)
		}
	}

	return kept
}

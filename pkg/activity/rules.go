package activity

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Sentinel rule-table errors.
var (
	// ErrEmptyRuleTable indicates a rule table without any rule.
	ErrEmptyRuleTable = errors.New("rule table has no rules")
	// ErrInvalidRule indicates a malformed rule row or pattern.
	ErrInvalidRule = errors.New("invalid rule")
	// ErrUnsupportedRuleFormat indicates an unknown rule file extension.
	ErrUnsupportedRuleFormat = errors.New("unsupported rule table format")
)

//go:embed rules.schema.json
var rulesSchema []byte

// RuleLoadError reports a rule table that could not be loaded. It is fatal
// to classification: no default rules are assumed.
type RuleLoadError struct {
	Path string
	Err  error
}

func (e *RuleLoadError) Error() string {
	return fmt.Sprintf("load rules %s: %v", e.Path, e.Err)
}

func (e *RuleLoadError) Unwrap() error {
	return e.Err
}

// Rule maps every path matching one of its patterns to Label.
type Rule struct {
	Label    string
	Patterns []*regexp.Regexp
}

// Sources returns the patterns as written in the rule table.
func (r Rule) Sources() []string {
	out := make([]string, len(r.Patterns))

	for idx, re := range r.Patterns {
		out[idx] = strings.TrimSuffix(strings.TrimPrefix(re.String(), patternPrefix), patternSuffix)
	}

	return out
}

const (
	patternPrefix = "(?i)^(?:"
	patternSuffix = ")$"
)

// CompilePattern compiles a rule pattern as a case-insensitive match of the
// whole path.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(patternPrefix + pattern + patternSuffix)
	if err != nil {
		return nil, fmt.Errorf("%w: pattern %q: %w", ErrInvalidRule, pattern, err)
	}

	return re, nil
}

// NewRule compiles a rule from its label and pattern sources.
func NewRule(label string, patterns ...string) (Rule, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return Rule{}, fmt.Errorf("%w: empty label", ErrInvalidRule)
	}

	rule := Rule{Label: label, Patterns: make([]*regexp.Regexp, 0, len(patterns))}

	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}

		re, err := CompilePattern(pattern)
		if err != nil {
			return Rule{}, err
		}

		rule.Patterns = append(rule.Patterns, re)
	}

	return rule, nil
}

// LoadRules reads a rule table, choosing the decoder by file extension:
// .csv (or no extension), .yaml/.yml and .json.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &RuleLoadError{Path: path, Err: err}
	}

	var rules []Rule

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", "":
		rules, err = ParseCSV(bytes.NewReader(data))
	case ".yaml", ".yml":
		rules, err = ParseYAML(bytes.NewReader(data))
	case ".json":
		rules, err = ParseJSON(bytes.NewReader(data))
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedRuleFormat, ext)
	}

	if err != nil {
		return nil, &RuleLoadError{Path: path, Err: err}
	}

	return rules, nil
}

// ParseCSV reads rows of the form `label,pattern,pattern,...`. Lines
// starting with '#' and blank lines are ignored.
func ParseCSV(r io.Reader) ([]Rule, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rules []Rule

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}

		if len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "") {
			continue
		}

		line, _ := reader.FieldPos(0)

		rule, err := NewRule(record[0], record[1:]...)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		rules = append(rules, rule)
	}

	if len(rules) == 0 {
		return nil, ErrEmptyRuleTable
	}

	return rules, nil
}

type ruleDocument struct {
	Rules []struct {
		Label    string   `json:"label"    yaml:"label"`
		Patterns []string `json:"patterns" yaml:"patterns"`
	} `json:"rules" yaml:"rules"`
}

// ParseYAML reads a `rules: [{label, patterns}]` document.
func ParseYAML(r io.Reader) ([]Rule, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read yaml: %w", err)
	}

	var generic any

	err = yaml.Unmarshal(data, &generic)
	if err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	err = validateDocument(generic)
	if err != nil {
		return nil, err
	}

	var doc ruleDocument

	err = yaml.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	return compileDocument(doc)
}

// ParseJSON reads the JSON form of the YAML document.
func ParseJSON(r io.Reader) ([]Rule, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}

	var generic any

	err = json.Unmarshal(data, &generic)
	if err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}

	err = validateDocument(generic)
	if err != nil {
		return nil, err
	}

	var doc ruleDocument

	err = json.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}

	return compileDocument(doc)
}

func validateDocument(doc any) error {
	if doc == nil {
		return ErrEmptyRuleTable
	}

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(rulesSchema), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validate rule table: %w", err)
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		problems = append(problems, verr.Field()+": "+verr.Description())
	}

	return fmt.Errorf("%w: %s", ErrInvalidRule, strings.Join(problems, "; "))
}

func compileDocument(doc ruleDocument) ([]Rule, error) {
	rules := make([]Rule, 0, len(doc.Rules))

	for idx, entry := range doc.Rules {
		rule, err := NewRule(entry.Label, entry.Patterns...)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", idx, err)
		}

		rules = append(rules, rule)
	}

	if len(rules) == 0 {
		return nil, ErrEmptyRuleTable
	}

	return rules, nil
}

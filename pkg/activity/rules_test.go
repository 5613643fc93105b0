package activity_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/effort/pkg/activity"
)

func writeRules(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestParseCSV(t *testing.T) {
	t.Parallel()

	rules, err := activity.ParseCSV(strings.NewReader("# header\n\ndoc,.*\\.doc, docs/.*\n\"code\",\".*\\.(go|java)\"\n"))
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, "doc", rules[0].Label)
	assert.Equal(t, []string{`.*\.doc`, `docs/.*`}, rules[0].Sources())
	assert.Equal(t, "code", rules[1].Label)
	assert.Len(t, rules[1].Patterns, 1)
}

func TestParseCSVLabelWithoutPatterns(t *testing.T) {
	t.Parallel()

	rules, err := activity.ParseCSV(strings.NewReader("doc\ncode,.*\\.go\n"))
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Empty(t, rules[0].Patterns)
}

func TestCSVAndYAMLTablesAgree(t *testing.T) {
	t.Parallel()

	fromCSV, err := activity.LoadRules(filepath.Join("testdata", "rules.csv"))
	require.NoError(t, err)

	fromYAML, err := activity.LoadRules(filepath.Join("testdata", "rules.yaml"))
	require.NoError(t, err)

	require.Len(t, fromYAML, len(fromCSV))

	for idx := range fromCSV {
		assert.Equal(t, fromCSV[idx].Label, fromYAML[idx].Label)
		assert.Equal(t, fromCSV[idx].Sources(), fromYAML[idx].Sources())
	}
}

func TestLoadRulesJSON(t *testing.T) {
	t.Parallel()

	path := writeRules(t, "rules.json", `{"rules":[{"label":"code","patterns":[".*\\.go"]}]}`)

	rules, err := activity.LoadRules(path)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "code", rules[0].Label)
}

func TestLoadRulesErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		content string
		target  error
	}{
		{"empty_csv", "rules.csv", "# nothing here\n", activity.ErrEmptyRuleTable},
		{"bad_regex", "rules.csv", "code,(unclosed\n", activity.ErrInvalidRule},
		{"empty_label", "rules.csv", " ,.*\\.go\n", activity.ErrInvalidRule},
		{"yaml_schema", "rules.yaml", "rules:\n  - label: code\n    pattern: x\n", activity.ErrInvalidRule},
		{"yaml_no_rules", "rules.yaml", "rules: []\n", activity.ErrInvalidRule},
		{"yaml_empty", "rules.yaml", "", activity.ErrEmptyRuleTable},
		{"json_bad_regex", "rules.json", `{"rules":[{"label":"x","patterns":["[a-"]}]}`, activity.ErrInvalidRule},
		{"unknown_extension", "rules.toml", "x", activity.ErrUnsupportedRuleFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeRules(t, tt.file, tt.content)

			rules, err := activity.LoadRules(path)
			require.Error(t, err)
			assert.Nil(t, rules)
			require.ErrorIs(t, err, tt.target)

			var loadErr *activity.RuleLoadError
			require.ErrorAs(t, err, &loadErr)
			assert.Equal(t, path, loadErr.Path)
		})
	}
}

func TestLoadRulesMissingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "absent.csv")

	_, err := activity.Load(path)
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), path)
}

func TestNewClassifierRequiresRules(t *testing.T) {
	t.Parallel()

	_, err := activity.NewClassifier(nil)
	require.ErrorIs(t, err, activity.ErrEmptyRuleTable)
}

func TestDefaultRuleTables(t *testing.T) {
	t.Parallel()

	fromCSV, err := activity.Load(filepath.Join("..", "..", "rules", "default.csv"))
	require.NoError(t, err)

	fromYAML, err := activity.Load(filepath.Join("..", "..", "rules", "default.yaml"))
	require.NoError(t, err)

	assert.Equal(t, fromCSV.Labels(), fromYAML.Labels())

	tests := map[string]string{
		"src/main.go":      "code",
		"src/FooTest.java": "test",
		"README.md":        "devdoc",
		"docs/index.html":  "doc",
		"Makefile":         "build",
		"po/de.po":         "loc",
		"vendor/lib/x.go":  "lib",
		"blob.xyz":         "unknown",
	}

	for path, want := range tests {
		assert.Equal(t, want, fromCSV.Classify(path), path)
		assert.Equal(t, want, fromYAML.Classify(path), path)
	}
}

package report_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/effort/pkg/activity"
	"github.com/Sumatoshi-tech/effort/pkg/pipeline"
	"github.com/Sumatoshi-tech/effort/pkg/report"
	"github.com/Sumatoshi-tech/effort/pkg/timeline"
)

const sampleLog = `commit aaaa
Author: alice <alice@example.com>
Date:   Mon Mar 4 09:15:00 2019 +0000

    First

A	src/a.java
A	docs/b.doc

commit bbbb
Author: bob <bob@example.com>
Date:   Tue Mar 12 17:40:03 2019 +0000

    Second

M	src/c.java

commit cccc
Merge: aaaa bbbb
Author: alice <alice@example.com>
Date:   Wed Mar 13 08:00:00 2019 +0000

    Merge branch 'feature'
`

func analyze(t *testing.T, log string, cfg timeline.Config) *pipeline.Result {
	t.Helper()

	doc, err := activity.NewRule("doc", `.*\.doc`)
	require.NoError(t, err)

	code, err := activity.NewRule("code", `.*\.java`)
	require.NoError(t, err)

	classifier, err := activity.NewClassifier([]activity.Rule{doc, code})
	require.NoError(t, err)

	runner := &pipeline.Runner{Classifier: classifier, Timeline: cfg}

	res, err := runner.Run(context.Background(), strings.NewReader(log))
	require.NoError(t, err)

	return res
}

func TestNormalizeFormat(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":       report.FormatText,
		" JSON ": report.FormatJSON,
		"yml":    report.FormatYAML,
		"html":   report.FormatPlot,
		"plot":   report.FormatPlot,
		"csv":    "csv",
	}

	for input, want := range tests {
		assert.Equal(t, want, report.NormalizeFormat(input), "input %q", input)
	}
}

func TestValidateFormat(t *testing.T) {
	t.Parallel()

	got, err := report.ValidateFormat("YAML", report.Formats())
	require.NoError(t, err)
	assert.Equal(t, report.FormatYAML, got)

	_, err = report.ValidateFormat("csv", report.Formats())
	require.ErrorIs(t, err, report.ErrUnsupportedFormat)
}

func TestBuild(t *testing.T) {
	t.Parallel()

	rep := report.Build(analyze(t, sampleLog, timeline.Config{Granularity: timeline.Day}))

	assert.Equal(t, int64(3), rep.Commits)
	assert.Equal(t, int64(1), rep.Merges)
	assert.Equal(t, int64(3), rep.Changes)
	assert.Equal(t, "day", rep.Granularity)
	assert.Equal(t, "file", rep.Level)
	assert.Equal(t, 10, rep.Buckets)

	require.Len(t, rep.Curves, 2)
	assert.Equal(t, "code", rep.Curves[0].Label)
	assert.Equal(t, 2, rep.Curves[0].Total)
	assert.Equal(t, "doc", rep.Curves[1].Label)
	assert.Equal(t, 1, rep.Curves[1].Total)

	assert.Equal(t, 3, rep.Workload.PW)
	assert.Contains(t, rep.Languages, report.LanguageShare{Label: "code", Language: "Java", Changes: 2})
}

func TestBuild_ShowZero(t *testing.T) {
	t.Parallel()

	rep := report.Build(analyze(t, sampleLog, timeline.Config{Granularity: timeline.Day, ShowZero: true}))

	for _, curve := range rep.Curves {
		assert.Len(t, curve.Points, rep.Buckets, curve.Label)
	}
}

func TestRender_JSON(t *testing.T) {
	t.Parallel()

	rep := report.Build(analyze(t, sampleLog, timeline.Config{}))

	var buf bytes.Buffer
	require.NoError(t, report.Render(&buf, rep, "json"))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	assert.InDelta(t, 3, decoded["commits"], 0)
	assert.Equal(t, "week", decoded["granularity"])

	workload, ok := decoded["workload"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 3, workload["pw"], 0)
}

func TestRender_YAML(t *testing.T) {
	t.Parallel()

	rep := report.Build(analyze(t, sampleLog, timeline.Config{Granularity: timeline.Month}))

	var buf bytes.Buffer
	require.NoError(t, report.Render(&buf, rep, "yml"))

	var decoded struct {
		Commits  int `yaml:"commits"`
		Workload struct {
			PW  int `yaml:"pw"`
			NAP int `yaml:"nap"`
		} `yaml:"workload"`
		Curves []struct {
			Label string `yaml:"label"`
			Total int    `yaml:"total"`
		} `yaml:"curves"`
	}

	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, 3, decoded.Commits)
	assert.Equal(t, 3, decoded.Workload.PW)
	assert.Equal(t, 2, decoded.Workload.NAP)
	require.Len(t, decoded.Curves, 2)
	assert.Equal(t, "code", decoded.Curves[0].Label)
}

func TestRender_Text(t *testing.T) {
	t.Parallel()

	rep := report.Build(analyze(t, sampleLog, timeline.Config{Granularity: timeline.Day}))

	var buf bytes.Buffer
	require.NoError(t, report.Render(&buf, rep, ""))

	out := buf.String()
	assert.Contains(t, out, "Commits:  3 (1 merges)")
	assert.Contains(t, out, "Period:   2019-03-04 .. 2019-03-13")
	assert.Contains(t, out, "Workload")
	assert.Contains(t, out, "Activity types")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "bob")
	assert.Contains(t, out, "Timeline")
	assert.Contains(t, out, "2019-03-12")
	assert.Contains(t, out, "Java")
}

func TestRender_TextEmpty(t *testing.T) {
	t.Parallel()

	rep := report.Build(analyze(t, "", timeline.Config{}))

	var buf bytes.Buffer
	require.NoError(t, report.Render(&buf, rep, report.FormatText))

	assert.Equal(t, "No commits to report\n", buf.String())
}

func TestRender_EmptyJSONHasNullMetrics(t *testing.T) {
	t.Parallel()

	rep := report.Build(analyze(t, "", timeline.Config{}))

	var buf bytes.Buffer
	require.NoError(t, report.Render(&buf, rep, report.FormatJSON))

	assert.Contains(t, buf.String(), `"pws": null`)
}

func TestRender_Plot(t *testing.T) {
	t.Parallel()

	rep := report.Build(analyze(t, sampleLog, timeline.Config{Granularity: timeline.PercentOfDuration, Buckets: 10}))

	var buf bytes.Buffer
	require.NoError(t, report.Render(&buf, rep, report.FormatPlot))

	out := buf.String()
	assert.Contains(t, out, "<html")
	assert.Contains(t, out, "echarts")
	assert.Contains(t, out, "Activity over time")
	assert.Contains(t, out, "Workload per author")
}

func TestRender_Unsupported(t *testing.T) {
	t.Parallel()

	rep := report.Build(analyze(t, sampleLog, timeline.Config{}))

	err := report.Render(&bytes.Buffer{}, rep, "csv")
	require.ErrorIs(t, err, report.ErrUnsupportedFormat)
}

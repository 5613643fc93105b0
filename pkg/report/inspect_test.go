package report_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/effort/pkg/report"
	"github.com/Sumatoshi-tech/effort/pkg/timeline"
)

func TestParseInspect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		selector string
		label    string
		bucket   int
		wantErr  bool
	}{
		{name: "simple", selector: "code:3", label: "code", bucket: 3},
		{name: "colon_in_label", selector: "ns:code:0", label: "ns:code", bucket: 0},
		{name: "missing_bucket", selector: "code", wantErr: true},
		{name: "empty_label", selector: ":2", wantErr: true},
		{name: "negative", selector: "code:-1", wantErr: true},
		{name: "not_a_number", selector: "code:x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			label, bucket, err := report.ParseInspect(tt.selector)
			if tt.wantErr {
				require.ErrorIs(t, err, report.ErrInvalidInspect)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.label, label)
			assert.Equal(t, tt.bucket, bucket)
		})
	}
}

func TestInspect_FileLevel(t *testing.T) {
	t.Parallel()

	res := analyze(t, sampleLog, timeline.Config{Granularity: timeline.Day})

	drill := report.Inspect(res.Timeline, "code", 8)

	assert.Equal(t, "2019-03-12", drill.Start.Format("2006-01-02"))
	require.Len(t, drill.Entries, 1)
	assert.Equal(t, "bbbb", drill.Entries[0].Revision)
	assert.Equal(t, "bob", drill.Entries[0].Author)
	assert.Equal(t, "M", drill.Entries[0].Action)
	assert.Equal(t, "src/c.java", drill.Entries[0].Path)
}

func TestInspect_CommitLevel(t *testing.T) {
	t.Parallel()

	res := analyze(t, sampleLog, timeline.Config{Granularity: timeline.Day, Level: timeline.CommitLevel})

	drill := report.Inspect(res.Timeline, "code", 0)

	require.Len(t, drill.Entries, 1)
	assert.Equal(t, "aaaa", drill.Entries[0].Revision)
	assert.Empty(t, drill.Entries[0].Path)
	assert.Empty(t, drill.Entries[0].Action)
}

func TestInspect_Empty(t *testing.T) {
	t.Parallel()

	res := analyze(t, sampleLog, timeline.Config{Granularity: timeline.Day})

	drill := report.Inspect(res.Timeline, "test", 2)
	assert.Empty(t, drill.Entries)

	var buf bytes.Buffer
	require.NoError(t, report.RenderInspect(&buf, drill, report.FormatJSON))
	assert.Contains(t, buf.String(), `"entries": []`)
}

func TestRenderInspect(t *testing.T) {
	t.Parallel()

	res := analyze(t, sampleLog, timeline.Config{Granularity: timeline.Day})
	drill := report.Inspect(res.Timeline, "doc", 0)

	var text bytes.Buffer
	require.NoError(t, report.RenderInspect(&text, drill, "text"))
	assert.Contains(t, text.String(), "docs/b.doc")
	assert.Contains(t, text.String(), "alice")
	assert.Contains(t, text.String(), "Total: 1 entries")

	var js bytes.Buffer
	require.NoError(t, report.RenderInspect(&js, drill, "json"))

	var decoded report.Drilldown
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, "doc", decoded.Label)
	require.Len(t, decoded.Entries, 1)
	assert.Equal(t, "docs/b.doc", decoded.Entries[0].Path)

	err := report.RenderInspect(&bytes.Buffer{}, drill, report.FormatPlot)
	require.ErrorIs(t, err, report.ErrUnsupportedFormat)
}

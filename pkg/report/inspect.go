package report

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/effort/pkg/timeline"
)

// ErrInvalidInspect is returned for malformed "label:bucket" selectors.
var ErrInvalidInspect = errors.New("inspect selector must be label:bucket")

// Entry is one contribution of a curve point.
type Entry struct {
	Revision string    `json:"revision"         yaml:"revision"`
	Author   string    `json:"author"           yaml:"author"`
	Time     time.Time `json:"time"             yaml:"time"`
	Message  string    `json:"message"          yaml:"message"`
	Action   string    `json:"action,omitempty" yaml:"action,omitempty"`
	Path     string    `json:"path,omitempty"   yaml:"path,omitempty"`
}

// Drilldown lists the commits or changes behind one curve point.
type Drilldown struct {
	Label   string    `json:"label"   yaml:"label"`
	Bucket  int       `json:"bucket"  yaml:"bucket"`
	Start   time.Time `json:"start"   yaml:"start"`
	Entries []Entry   `json:"entries" yaml:"entries"`
}

// ParseInspect splits a "label:bucket" selector. The label may itself
// contain colons; the bucket is taken after the last one.
func ParseInspect(selector string) (string, int, error) {
	idx := strings.LastIndexByte(selector, ':')
	if idx <= 0 {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidInspect, selector)
	}

	bucket, err := strconv.Atoi(selector[idx+1:])
	if err != nil || bucket < 0 {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidInspect, selector)
	}

	return selector[:idx], bucket, nil
}

// Inspect resolves the reverse index of tl for one curve point. An unknown
// label or empty bucket yields a drilldown without entries.
func Inspect(tl *timeline.Result, label string, bucket int) Drilldown {
	drill := Drilldown{Label: label, Bucket: bucket, Start: tl.BucketStart(bucket), Entries: []Entry{}}

	for _, contribution := range tl.Contributions(label, bucket) {
		commit := tl.Commit(contribution)

		entry := Entry{
			Revision: commit.Revision,
			Author:   commit.Author,
			Time:     commit.Time,
			Message:  commit.Message,
		}

		if change, ok := tl.Change(contribution); ok {
			raw := change.Raw()
			entry.Action = string(raw.Action)
			entry.Path = raw.Path
		}

		drill.Entries = append(drill.Entries, entry)
	}

	return drill
}

// RenderInspect writes a drilldown as text, JSON or YAML.
func RenderInspect(w io.Writer, drill Drilldown, format string) error {
	normalized, err := ValidateFormat(format, []string{FormatText, FormatJSON, FormatYAML})
	if err != nil {
		return err
	}

	switch normalized {
	case FormatJSON:
		return writeJSON(w, drill)
	case FormatYAML:
		return writeYAML(w, drill)
	default:
		return writeInspectText(w, drill)
	}
}

func writeInspectText(w io.Writer, drill Drilldown) error {
	tbl := newTable(fmt.Sprintf("%s, bucket %d (from %s)", drill.Label, drill.Bucket, drill.Start.Format(time.DateOnly)))
	tbl.AppendHeader(table.Row{"REVISION", "AUTHOR", "DATE", "ACTION", "PATH", "MESSAGE"})

	for _, entry := range drill.Entries {
		tbl.AppendRow(table.Row{
			shortRevision(entry.Revision), entry.Author, entry.Time.Format(time.DateTime),
			entry.Action, entry.Path, entry.Message,
		})
	}

	tbl.AppendFooter(table.Row{"Total: " + strconv.Itoa(len(drill.Entries)) + " entries"})

	_, err := io.WriteString(w, tbl.Render()+"\n")
	if err != nil {
		return renderError(FormatText, err)
	}

	return nil
}

const shortRevisionLen = 12

func shortRevision(rev string) string {
	if len(rev) > shortRevisionLen {
		return rev[:shortRevisionLen]
	}

	return rev
}

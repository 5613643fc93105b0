// Package report turns an analysis result into a serialisable report and
// renders it as text tables, JSON, YAML or an HTML chart page.
package report

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/Sumatoshi-tech/effort/pkg/gitlog"
	"github.com/Sumatoshi-tech/effort/pkg/pipeline"
	"github.com/Sumatoshi-tech/effort/pkg/timeline"
	"github.com/Sumatoshi-tech/effort/pkg/workload"
)

// Report is the serialisable view of one analysis run.
type Report struct {
	Commits        int64     `json:"commits"         yaml:"commits"`
	Merges         int64     `json:"merges"          yaml:"merges"`
	Changes        int64     `json:"changes"         yaml:"changes"`
	UnknownChanges int64     `json:"unknown_changes" yaml:"unknown_changes"`
	Start          time.Time `json:"start"           yaml:"start"`
	End            time.Time `json:"end"             yaml:"end"`

	Granularity string `json:"granularity" yaml:"granularity"`
	Level       string `json:"level"       yaml:"level"`
	Buckets     int    `json:"buckets"     yaml:"buckets"`

	Workload workload.Summary `json:"workload" yaml:"workload"`
	Curves   []Curve          `json:"curves"   yaml:"curves"`

	// Languages counts non-merge changes per label and detected language.
	Languages []LanguageShare `json:"languages,omitempty" yaml:"languages,omitempty"`
}

// Curve is the time series of one label.
type Curve struct {
	Label  string           `json:"label"  yaml:"label"`
	Total  int              `json:"total"  yaml:"total"`
	Points []timeline.Point `json:"points" yaml:"points"`
}

// LanguageShare is the number of changes of one label in one language.
type LanguageShare struct {
	Label    string `json:"label"    yaml:"label"`
	Language string `json:"language" yaml:"language"`
	Changes  int    `json:"changes"  yaml:"changes"`
}

// Build assembles the report of res. Curves are ordered by total
// descending, ties by label.
func Build(res *pipeline.Result) *Report {
	tl := res.Timeline

	rep := &Report{
		Commits:        res.Stats.Commits,
		Merges:         res.Stats.Merges,
		Changes:        res.Stats.Changes,
		UnknownChanges: res.Stats.UnknownChanges,
		Start:          tl.Start,
		End:            tl.End,
		Granularity:    tl.Config.Granularity.String(),
		Level:          tl.Config.Level.String(),
		Buckets:        tl.Buckets,
		Workload:       res.Engine.Summary(),
		Languages:      languageShares(res.Commits),
	}

	for _, label := range tl.Labels() {
		rep.Curves = append(rep.Curves, Curve{Label: label, Total: tl.Total(label), Points: tl.Series(label)})
	}

	slices.SortStableFunc(rep.Curves, func(a, b Curve) int {
		return cmp.Compare(b.Total, a.Total)
	})

	return rep
}

func languageShares(commits []gitlog.Commit) []LanguageShare {
	counts := map[[2]string]int{}

	for _, commit := range commits {
		if commit.Merge {
			continue
		}

		for _, change := range commit.Changes {
			classified, ok := change.(gitlog.ClassifiedChange)
			if !ok || classified.Language == "" {
				continue
			}

			counts[[2]string{classified.Label(), classified.Language}]++
		}
	}

	shares := make([]LanguageShare, 0, len(counts))
	for key, count := range counts {
		shares = append(shares, LanguageShare{Label: key[0], Language: key[1], Changes: count})
	}

	slices.SortFunc(shares, func(a, b LanguageShare) int {
		return cmp.Or(
			cmp.Compare(b.Changes, a.Changes),
			cmp.Compare(a.Label, b.Label),
			cmp.Compare(a.Language, b.Language),
		)
	})

	return shares
}

// Render writes rep in the given format.
func Render(w io.Writer, rep *Report, format string) error {
	normalized, err := ValidateFormat(format, Formats())
	if err != nil {
		return err
	}

	switch normalized {
	case FormatJSON:
		return writeJSON(w, rep)
	case FormatYAML:
		return writeYAML(w, rep)
	case FormatPlot:
		return writePlot(w, rep)
	default:
		return writeText(w, rep)
	}
}

func renderError(format string, err error) error {
	return fmt.Errorf("render %s: %w", format, err)
}

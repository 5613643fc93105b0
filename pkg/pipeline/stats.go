package pipeline

import (
	"github.com/Sumatoshi-tech/effort/pkg/gitlog"
	"github.com/Sumatoshi-tech/effort/pkg/observability"
)

// countStats fills the commit and change counters of stats. Changes of
// merge commits are not counted; merges carry none after classification.
func countStats(stats *observability.AnalysisStats, commits []gitlog.Commit) {
	stats.Commits = int64(len(commits))

	for _, commit := range commits {
		if commit.Merge {
			stats.Merges++

			continue
		}

		for _, change := range commit.Changes {
			stats.Changes++

			if change.Label() == gitlog.UnknownLabel {
				stats.UnknownChanges++
			}
		}
	}
}

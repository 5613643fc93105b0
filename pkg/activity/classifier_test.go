package activity_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/effort/pkg/activity"
	"github.com/Sumatoshi-tech/effort/pkg/gitlog"
)

func loadTestClassifier(t *testing.T, name string) *activity.Classifier {
	t.Helper()

	classifier, err := activity.Load(filepath.Join("testdata", name))
	require.NoError(t, err)

	return classifier
}

func TestClassifyDefaultTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		{"", gitlog.UnknownLabel},
		{"document.doc", "doc"},
		{"Image.jpeg", "img"},
		{"location.pot~", "loc"},
		{"dskt.desktop", "ui"},
		{"soundtrack.mp3", "media"},
		{"GITLogReader.java", "code"},
		{"repository.git", "meta"},
		{"configuration.gnorba", "config"},
		{"bld.cmake", "build"},
		{"dvdoc.readme", "devdoc"},
		{"database.sql", "db"},
		{"somewhere/LogReadertest.java", "test"},
		{"/libraries/lib/library1", "lib"},
		{"documentation/doc-books/docu", "doc"},
		{"Java/test/reader/somedocument.someformat", "test"},
		{"Java/src/reader/GITLogReaderTest.java", "test"},
		{"Java/test/reader/GITLogReader.java", "test"},
		{"Java/library/reader/doc.doc", "lib"},
		{"media/GITLogReader.java", "code"},
	}

	for _, name := range []string{"rules.csv", "rules.yaml"} {
		classifier := loadTestClassifier(t, name)

		for _, tt := range tests {
			assert.Equal(t, tt.want, classifier.Classify(tt.path), "%s: %q", name, tt.path)
		}
	}
}

func TestClassifyLastMatchWins(t *testing.T) {
	t.Parallel()

	doc, err := activity.NewRule("doc", `.*\.doc`, `shared/.*`)
	require.NoError(t, err)

	code, err := activity.NewRule("code", `.*\.java`, `shared/.*`)
	require.NoError(t, err)

	classifier, err := activity.NewClassifier([]activity.Rule{doc, code})
	require.NoError(t, err)

	assert.Equal(t, "doc", classifier.Classify("x.doc"))
	assert.Equal(t, "code", classifier.Classify("x.java"))
	assert.Equal(t, "code", classifier.Classify("shared/x.doc"))
	assert.Equal(t, []string{"doc", "code"}, classifier.Matches("shared/x.doc"))
	assert.Equal(t, gitlog.UnknownLabel, classifier.Classify("x.go"))
}

func TestClassifyIsAnchoredAndCaseInsensitive(t *testing.T) {
	t.Parallel()

	rule, err := activity.NewRule("code", `.*\.java`)
	require.NoError(t, err)

	classifier, err := activity.NewClassifier([]activity.Rule{rule})
	require.NoError(t, err)

	assert.Equal(t, "code", classifier.Classify("Reader.JAVA"))
	assert.Equal(t, gitlog.UnknownLabel, classifier.Classify("Reader.java.orig"))
	assert.Equal(t, []string{`.*\.java`}, rule.Sources())
}

func TestLabelsKeepDeclaredOrder(t *testing.T) {
	t.Parallel()

	classifier := loadTestClassifier(t, "rules.csv")

	labels := classifier.Labels()
	require.Len(t, labels, 13)
	assert.Equal(t, "doc", labels[0])
	assert.Equal(t, "lib", labels[len(labels)-1])
	assert.Len(t, classifier.Rules(), 13)
}

func TestEnrich(t *testing.T) {
	t.Parallel()

	classifier := loadTestClassifier(t, "rules.csv")

	commit := gitlog.Commit{
		Revision: "r1",
		Author:   "alice",
		Changes: []gitlog.Change{
			gitlog.RawChange{Action: gitlog.ActionAdded, Path: "src/a.java"},
			gitlog.RawChange{Action: gitlog.ActionModified, Path: "b.doc"},
			gitlog.RawChange{Action: gitlog.ActionAdded, Path: "node_modules/left-pad/index.js"},
		},
	}

	enriched := classifier.Enrich(commit)
	require.Len(t, enriched.Changes, 3)

	first, ok := enriched.Changes[0].(gitlog.ClassifiedChange)
	require.True(t, ok)
	assert.Equal(t, "code", first.Activity)
	assert.Equal(t, "Java", first.Language)
	assert.False(t, first.Vendored)
	assert.Equal(t, commit.Changes[0].Raw(), first.Raw())

	assert.Equal(t, "doc", enriched.Changes[1].Label())

	third, ok := enriched.Changes[2].(gitlog.ClassifiedChange)
	require.True(t, ok)
	assert.True(t, third.Vendored)

	// The source commit keeps its raw changes.
	_, raw := commit.Changes[0].(gitlog.RawChange)
	assert.True(t, raw)
	assert.Equal(t, "alice", enriched.Author)
}

func TestEnrichWithoutLanguages(t *testing.T) {
	t.Parallel()

	rules, err := activity.LoadRules(filepath.Join("testdata", "rules.csv"))
	require.NoError(t, err)

	classifier, err := activity.NewClassifier(rules, activity.WithLanguages(false))
	require.NoError(t, err)

	change := classifier.ClassifyChange(gitlog.RawChange{Action: gitlog.ActionAdded, Path: "a.java"})
	assert.Equal(t, "code", change.Activity)
	assert.Empty(t, change.Language)
}

func TestEnrichMergeHasNoChanges(t *testing.T) {
	t.Parallel()

	classifier := loadTestClassifier(t, "rules.csv")

	merge := gitlog.Commit{
		Merge:   true,
		Changes: []gitlog.Change{gitlog.RawChange{Action: gitlog.ActionModified, Path: "a.java"}},
	}

	enriched := classifier.Enrich(merge)
	assert.NotNil(t, enriched.Changes)
	assert.Empty(t, enriched.Changes)
	assert.Equal(t, gitlog.UnknownLabel, activity.CommitType(enriched))
}

func TestEnrichAllHonoursCancellation(t *testing.T) {
	t.Parallel()

	classifier := loadTestClassifier(t, "rules.csv")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := classifier.EnrichAll(ctx, []gitlog.Commit{{Revision: "r1"}})
	require.ErrorIs(t, err, context.Canceled)

	out, err := classifier.EnrichAll(context.Background(), []gitlog.Commit{{Revision: "r1"}, {Revision: "r2"}})
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func labelled(labels ...string) gitlog.Commit {
	changes := make([]gitlog.Change, 0, len(labels))
	for _, label := range labels {
		changes = append(changes, gitlog.ClassifiedChange{Activity: label})
	}

	return gitlog.Commit{Changes: changes}
}

func TestCommitType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		commit gitlog.Commit
		want   string
	}{
		{"majority", labelled("code", "code", "doc"), "code"},
		{"majority_late", labelled("doc", "code", "code"), "code"},
		{"empty", gitlog.Commit{Changes: []gitlog.Change{}}, gitlog.UnknownLabel},
		{"nil_changes", gitlog.Commit{}, gitlog.UnknownLabel},
		{"tie_first_encountered", labelled("doc", "code", "code", "doc"), "doc"},
		{"tie_three_way", labelled("test", "doc", "code"), "test"},
		{"unclassified", gitlog.Commit{Changes: []gitlog.Change{gitlog.RawChange{Path: "a.java"}}}, gitlog.UnknownLabel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, activity.CommitType(tt.commit))
		})
	}
}

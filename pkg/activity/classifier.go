// Package activity labels file changes with activity categories from an
// ordered rule table and derives commit types by majority vote.
package activity

import (
	"context"
	"fmt"
	"path"

	"github.com/src-d/enry/v2"

	"github.com/Sumatoshi-tech/effort/pkg/gitlog"
)

// enrichCheckInterval is how many commits are enriched between context checks.
const enrichCheckInterval = 1024

// Classifier applies a rule table to file paths. Rules are evaluated in
// declared order and the last matching rule wins.
type Classifier struct {
	rules     []Rule
	languages bool
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLanguages toggles enry language and vendor detection on classified
// changes. It is enabled by default.
func WithLanguages(enabled bool) Option {
	return func(c *Classifier) {
		c.languages = enabled
	}
}

// NewClassifier builds a classifier over rules.
func NewClassifier(rules []Rule, opts ...Option) (*Classifier, error) {
	if len(rules) == 0 {
		return nil, ErrEmptyRuleTable
	}

	c := &Classifier{rules: rules, languages: true}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Load reads the rule table at path and builds a classifier from it.
func Load(path string, opts ...Option) (*Classifier, error) {
	rules, err := LoadRules(path)
	if err != nil {
		return nil, err
	}

	return NewClassifier(rules, opts...)
}

// Rules returns the rule table in declared order.
func (c *Classifier) Rules() []Rule {
	return c.rules
}

// Labels returns the distinct rule labels in order of first declaration.
func (c *Classifier) Labels() []string {
	seen := make(map[string]bool, len(c.rules))
	labels := make([]string, 0, len(c.rules))

	for _, rule := range c.rules {
		if !seen[rule.Label] {
			seen[rule.Label] = true
			labels = append(labels, rule.Label)
		}
	}

	return labels
}

// Classify returns the label of the last rule with a pattern matching the
// whole path, or gitlog.UnknownLabel.
func (c *Classifier) Classify(filePath string) string {
	label := gitlog.UnknownLabel

	for _, rule := range c.rules {
		if rule.matches(filePath) {
			label = rule.Label
		}
	}

	return label
}

// Matches returns every matching rule label in evaluation order. The last
// element is the result of Classify.
func (c *Classifier) Matches(filePath string) []string {
	var labels []string

	for _, rule := range c.rules {
		if rule.matches(filePath) {
			labels = append(labels, rule.Label)
		}
	}

	return labels
}

func (r Rule) matches(filePath string) bool {
	for _, re := range r.Patterns {
		if re.MatchString(filePath) {
			return true
		}
	}

	return false
}

// ClassifyChange labels a single change.
func (c *Classifier) ClassifyChange(change gitlog.Change) gitlog.ClassifiedChange {
	raw := change.Raw()
	out := gitlog.ClassifiedChange{RawChange: raw, Activity: c.Classify(raw.Path)}

	if c.languages && raw.Path != "" {
		out.Language = enry.GetLanguage(path.Base(raw.Path), nil)
		out.Vendored = enry.IsVendor(raw.Path)
	}

	return out
}

// Enrich returns a copy of commit whose change list holds classified
// changes. The input commit is left untouched.
func (c *Classifier) Enrich(commit gitlog.Commit) gitlog.Commit {
	changes := make([]gitlog.Change, 0, len(commit.Changes))

	if !commit.Merge {
		for _, change := range commit.Changes {
			changes = append(changes, c.ClassifyChange(change))
		}
	}

	return commit.WithChanges(changes)
}

// EnrichAll enriches every commit, checking ctx periodically.
func (c *Classifier) EnrichAll(ctx context.Context, commits []gitlog.Commit) ([]gitlog.Commit, error) {
	out := make([]gitlog.Commit, len(commits))

	for idx, commit := range commits {
		if idx%enrichCheckInterval == 0 {
			err := ctx.Err()
			if err != nil {
				return nil, fmt.Errorf("classify: %w", err)
			}
		}

		out[idx] = c.Enrich(commit)
	}

	return out, nil
}

// CommitType returns the most frequent label among the commit's changes.
// Among equally frequent labels the one whose first change comes earliest
// wins. A commit without changes is gitlog.UnknownLabel.
func CommitType(commit gitlog.Commit) string {
	if len(commit.Changes) == 0 {
		return gitlog.UnknownLabel
	}

	counts := make(map[string]int, len(commit.Changes))
	order := make([]string, 0, len(commit.Changes))

	for _, change := range commit.Changes {
		label := change.Label()
		if counts[label] == 0 {
			order = append(order, label)
		}

		counts[label]++
	}

	best := order[0]

	for _, label := range order[1:] {
		if counts[label] > counts[best] {
			best = label
		}
	}

	return best
}

// Package gitlog reads `git log --name-status --reverse` exports into commit
// records and defines the change model shared by the analysis stages.
package gitlog

import "time"

// UnknownLabel is the activity label of changes no rule matched.
const UnknownLabel = "unknown"

// Action is the name-status code of a file change.
type Action string

// Name-status codes that represent file manipulations. Any other code
// (renames, copies, type changes) is passed through verbatim.
const (
	ActionAdded    Action = "A"
	ActionModified Action = "M"
	ActionDeleted  Action = "D"
)

// IsManipulation reports whether the action is an add, modify or delete.
func (a Action) IsManipulation() bool {
	return a == ActionAdded || a == ActionModified || a == ActionDeleted
}

// Change is a file change inside a commit. The set of implementations is
// closed: [RawChange] as produced by the parser and [ClassifiedChange] as
// produced by activity classification.
type Change interface {
	// Raw returns the parsed name-status entry.
	Raw() RawChange
	// Label returns the activity label, UnknownLabel for unclassified changes.
	Label() string

	change()
}

// RawChange is one name-status line.
type RawChange struct {
	Action Action `json:"action" yaml:"action"`
	Path   string `json:"path"   yaml:"path"`
	// FromPath is the source path of renames and copies.
	FromPath string `json:"from_path,omitempty" yaml:"from_path,omitempty"`
}

// Raw returns the change itself.
func (c RawChange) Raw() RawChange { return c }

// Label returns UnknownLabel.
func (c RawChange) Label() string { return UnknownLabel }

func (RawChange) change() {}

// ClassifiedChange is a RawChange with its activity label attached.
type ClassifiedChange struct {
	RawChange

	Activity string `json:"activity" yaml:"activity"`
	Language string `json:"language,omitempty" yaml:"language,omitempty"`
	Vendored bool   `json:"vendored,omitempty" yaml:"vendored,omitempty"`
}

// Label returns the activity label.
func (c ClassifiedChange) Label() string {
	if c.Activity == "" {
		return UnknownLabel
	}

	return c.Activity
}

func (ClassifiedChange) change() {}

// Commit is one commit block of the log.
type Commit struct {
	Revision string    `json:"revision"`
	Author   string    `json:"author"`
	Email    string    `json:"email,omitempty"`
	Time     time.Time `json:"time"`
	Message  string    `json:"message"`
	Merge    bool      `json:"merge,omitempty"`
	Changes  []Change  `json:"-"`
}

// WithChanges returns a copy of the commit carrying changes instead of the
// current change list.
func (c Commit) WithChanges(changes []Change) Commit {
	c.Changes = changes

	return c
}

// Span returns the earliest and latest commit timestamps. Both are zero
// for an empty slice.
func Span(commits []Commit) (first, last time.Time) {
	for idx, commit := range commits {
		if idx == 0 || commit.Time.Before(first) {
			first = commit.Time
		}

		if idx == 0 || commit.Time.After(last) {
			last = commit.Time
		}
	}

	return first, last
}

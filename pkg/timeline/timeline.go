package timeline

import (
	"maps"
	"math"
	"slices"
	"time"

	"github.com/Sumatoshi-tech/effort/pkg/activity"
	"github.com/Sumatoshi-tech/effort/pkg/alg/stats"
	"github.com/Sumatoshi-tech/effort/pkg/gitlog"
)

// WholeCommit is the Contribution.Change value of commit-level contributions.
const WholeCommit = -1

const hoursPerDay = 24

// Curves maps label -> bucket -> count. Buckets without data are absent.
type Curves map[string]map[int]int

// Key addresses one point of a curve.
type Key struct {
	Label  string
	Bucket int
}

// Contribution points at the commit, and optionally the change within it,
// that produced one increment of a curve.
type Contribution struct {
	Commit int `json:"commit"`
	Change int `json:"change"`
}

// Point is one materialised value of a curve.
type Point struct {
	Bucket int       `json:"bucket"`
	Start  time.Time `json:"start"`
	Count  int       `json:"count"`
}

// Result is the output of Aggregate. It is read-only.
type Result struct {
	Config Config
	Curves Curves
	// Index is the reverse index from a curve point to its contributions,
	// in input order.
	Index map[Key][]Contribution
	// Start and End are the earliest and latest commit timestamps.
	Start time.Time
	End   time.Time
	// Buckets is the number of buckets spanned by the input.
	Buckets int

	commits []gitlog.Commit
	origin  time.Time
	step    float64
}

// Aggregate buckets commits according to cfg. At CommitLevel every commit
// counts once, merges under their empty-change type gitlog.UnknownLabel. At
// FileLevel merges never contribute. Aggregate does not retain mutable state
// across calls.
func Aggregate(commits []gitlog.Commit, cfg Config) (*Result, error) {
	cfg, err := cfg.normalized()
	if err != nil {
		return nil, err
	}

	res := &Result{
		Config:  cfg,
		Curves:  Curves{},
		Index:   map[Key][]Contribution{},
		commits: commits,
	}

	if len(commits) == 0 {
		return res, nil
	}

	first, last := gitlog.Span(commits)
	res.Start = first.In(cfg.Location)
	res.End = last.In(cfg.Location)
	res.prepare()

	for idx, commit := range commits {
		bucket := res.Bucket(commit.Time)

		if cfg.Level == CommitLevel {
			res.add(activity.CommitType(commit), bucket, Contribution{Commit: idx, Change: WholeCommit})

			continue
		}

		if commit.Merge {
			continue
		}

		for changeIdx, change := range commit.Changes {
			res.add(change.Label(), bucket, Contribution{Commit: idx, Change: changeIdx})
		}
	}

	return res, nil
}

func (r *Result) prepare() {
	loc := r.Config.Location

	switch r.Config.Granularity {
	case Day:
		r.origin = civilDate(r.Start, loc)
	case Week:
		day := civilDate(r.Start, loc)
		offset := (int(day.Weekday()) + 6) % 7
		r.origin = day.AddDate(0, 0, -offset)
	case Month:
		year, month, _ := r.Start.Date()
		r.origin = time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	case PercentOfDuration:
		r.origin = r.Start

		total := r.End.Sub(r.Start).Seconds()
		if total > 0 {
			r.step = total / float64(r.Config.Buckets)
		} else {
			// A zero-length project keeps every commit in bucket zero.
			r.step = 1
		}
	}

	if r.Config.Granularity == PercentOfDuration {
		r.Buckets = r.Config.Buckets
	} else {
		r.Buckets = r.Bucket(r.End) + 1
	}
}

func (r *Result) add(label string, bucket int, contribution Contribution) {
	points, ok := r.Curves[label]
	if !ok {
		points = map[int]int{}
		r.Curves[label] = points
	}

	points[bucket]++

	key := Key{Label: label, Bucket: bucket}
	r.Index[key] = append(r.Index[key], contribution)
}

// civilDate returns midnight UTC of the calendar date of t in loc, so that
// date arithmetic is free of DST shifts.
func civilDate(t time.Time, loc *time.Location) time.Time {
	year, month, day := t.In(loc).Date()

	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Bucket returns the bucket index of t. Calendar granularities count whole
// days, Monday-started weeks or months since the first commit.
func (r *Result) Bucket(t time.Time) int {
	loc := r.Config.Location

	switch r.Config.Granularity {
	case Day:
		return daysBetween(r.origin, civilDate(t, loc))
	case Week:
		return daysBetween(r.origin, civilDate(t, loc)) / 7
	case Month:
		year, month, _ := t.In(loc).Date()
		originYear, originMonth, _ := r.origin.Date()

		return (year*12 + int(month)) - (originYear*12 + int(originMonth))
	case PercentOfDuration:
		elapsed := t.Sub(r.origin).Seconds()
		idx := int(math.Floor(elapsed / r.step))

		return stats.Clamp(idx, 0, r.Config.Buckets-1)
	default:
		return 0
	}
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours()) / hoursPerDay
}

// BucketStart returns the instant a bucket begins, in Config.Location.
func (r *Result) BucketStart(bucket int) time.Time {
	loc := r.Config.Location
	year, month, day := r.origin.Date()

	switch r.Config.Granularity {
	case Day:
		return time.Date(year, month, day+bucket, 0, 0, 0, 0, loc)
	case Week:
		return time.Date(year, month, day+7*bucket, 0, 0, 0, 0, loc)
	case Month:
		return time.Date(year, month+time.Month(bucket), 1, 0, 0, 0, 0, loc)
	default:
		offset := time.Duration(float64(bucket) * r.step * float64(time.Second))

		return r.origin.Add(offset)
	}
}

// Labels returns the labels present in the curves, sorted.
func (r *Result) Labels() []string {
	return slices.Sorted(maps.Keys(r.Curves))
}

// Total returns the number of increments recorded under label.
func (r *Result) Total(label string) int {
	total := 0

	for _, count := range r.Curves[label] {
		total += count
	}

	return total
}

// Sum returns the number of increments over all labels.
func (r *Result) Sum() int {
	total := 0

	for label := range r.Curves {
		total += r.Total(label)
	}

	return total
}

// Series returns the points of a curve in bucket order. Buckets without
// data are included as zero points only when Config.ShowZero is set.
func (r *Result) Series(label string) []Point {
	points := r.Curves[label]

	if r.Config.ShowZero {
		out := make([]Point, 0, r.Buckets)

		for bucket := range r.Buckets {
			out = append(out, Point{Bucket: bucket, Start: r.BucketStart(bucket), Count: points[bucket]})
		}

		return out
	}

	out := make([]Point, 0, len(points))

	for _, bucket := range slices.Sorted(maps.Keys(points)) {
		out = append(out, Point{Bucket: bucket, Start: r.BucketStart(bucket), Count: points[bucket]})
	}

	return out
}

// Contributions returns the reverse-index entries of one curve point.
func (r *Result) Contributions(label string, bucket int) []Contribution {
	return r.Index[Key{Label: label, Bucket: bucket}]
}

// Commit resolves the commit of a contribution.
func (r *Result) Commit(c Contribution) gitlog.Commit {
	return r.commits[c.Commit]
}

// Change resolves the change of a file-level contribution. It reports false
// for commit-level contributions.
func (r *Result) Change(c Contribution) (gitlog.Change, bool) {
	if c.Change == WholeCommit {
		return nil, false
	}

	return r.commits[c.Commit].Changes[c.Change], true
}

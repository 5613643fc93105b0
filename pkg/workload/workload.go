// Package workload computes author and activity-type workload metrics and
// their inequality over a classified commit history.
//
// All ratio metrics return NaN when their denominator is zero; callers must
// check with math.IsNaN before display.
package workload

import (
	"cmp"
	"maps"
	"math"
	"slices"

	"github.com/Sumatoshi-tech/effort/pkg/alg/stats"
	"github.com/Sumatoshi-tech/effort/pkg/gitlog"
	"github.com/Sumatoshi-tech/effort/pkg/rbtree"
)

// ATW maps author -> activity label -> number of changes touched.
type ATW map[string]map[string]int

// BuildATW counts the classified changes of every non-merge commit per
// author and label.
func BuildATW(commits []gitlog.Commit) ATW {
	atw := ATW{}

	for _, commit := range commits {
		if commit.Merge {
			continue
		}

		for _, change := range commit.Changes {
			types, ok := atw[commit.Author]
			if !ok {
				types = map[string]int{}
				atw[commit.Author] = types
			}

			types[change.Label()]++
		}
	}

	return atw
}

// Total returns the sum of all cells.
func (a ATW) Total() int {
	total := 0

	for _, types := range a {
		for _, count := range types {
			total += count
		}
	}

	return total
}

// Clone returns a deep copy.
func (a ATW) Clone() ATW {
	out := make(ATW, len(a))

	for author, types := range a {
		out[author] = maps.Clone(types)
	}

	return out
}

// Engine evaluates the workload metrics of one ATW. It is immutable and
// safe for concurrent reads.
type Engine struct {
	atw     ATW
	authors []string
	types   []string
	ptw     map[string]int
	pti     map[string]int
	pw      int
}

// NewEngine builds the ATW of commits and an engine over it.
func NewEngine(commits []gitlog.Commit) *Engine {
	return FromATW(BuildATW(commits))
}

// FromATW builds an engine over a copy of atw. Authors without any touch
// are ignored.
func FromATW(atw ATW) *Engine {
	e := &Engine{
		atw: ATW{},
		ptw: map[string]int{},
		pti: map[string]int{},
	}

	for author, types := range atw {
		for label, count := range types {
			if count <= 0 {
				continue
			}

			if _, ok := e.atw[author]; !ok {
				e.atw[author] = map[string]int{}
			}

			e.atw[author][label] = count
			e.ptw[label] += count
			e.pti[label]++
			e.pw += count
		}
	}

	e.authors = slices.Sorted(maps.Keys(e.atw))
	e.types = slices.Sorted(maps.Keys(e.ptw))

	return e
}

// ATW returns a copy of the matrix.
func (e *Engine) ATW() ATW {
	return e.atw.Clone()
}

// Authors returns the authors with at least one touch, sorted.
func (e *Engine) Authors() []string {
	return slices.Clone(e.authors)
}

// Types returns the observed activity labels, sorted.
func (e *Engine) Types() []string {
	return slices.Clone(e.types)
}

// SortedTypes returns the observed labels by PTW descending, ties by name.
func (e *Engine) SortedTypes() []string {
	out := slices.Clone(e.types)

	slices.SortStableFunc(out, func(a, b string) int {
		return cmp.Compare(e.ptw[b], e.ptw[a])
	})

	return out
}

// APTI reports whether author touched label at least once.
func (e *Engine) APTI(author, label string) bool {
	return e.atw[author][label] > 0
}

// ATPW returns the number of touches of label by author.
func (e *Engine) ATPW(author, label string) int {
	return e.atw[author][label]
}

// PTW returns the project-wide touches of label.
func (e *Engine) PTW(label string) int {
	return e.ptw[label]
}

// PW returns the project-wide touches over all labels.
func (e *Engine) PW() int {
	return e.pw
}

// RPTW returns PTW(label) / PW().
func (e *Engine) RPTW(label string) float64 {
	return ratio(e.PTW(label), e.PW())
}

// PTI returns the number of authors who touched label.
func (e *Engine) PTI(label string) int {
	return e.pti[label]
}

// RPTI returns PTI(label) / NAP().
func (e *Engine) RPTI(label string) float64 {
	return ratio(e.PTI(label), e.NAP())
}

// NAP returns the number of distinct authors in the ATW. Authors of merges
// only are not counted.
func (e *Engine) NAP() int {
	return len(e.authors)
}

// NTP returns the number of distinct activity labels.
func (e *Engine) NTP() int {
	return len(e.types)
}

// PWS is the Gini coefficient of PTW over all labels.
func (e *Engine) PWS() float64 {
	return e.giniOver(func(label string) float64 { return float64(e.PTW(label)) })
}

// RPWS is the Gini coefficient of RPTW over all labels.
func (e *Engine) RPWS() float64 {
	return e.giniOver(e.RPTW)
}

// PIS is the Gini coefficient of PTI over all labels.
func (e *Engine) PIS() float64 {
	return e.giniOver(func(label string) float64 { return float64(e.PTI(label)) })
}

// RPIS is the Gini coefficient of RPTI over all labels.
func (e *Engine) RPIS() float64 {
	return e.giniOver(e.RPTI)
}

// AuthorGini is the Gini coefficient of author totals: how unevenly the
// whole workload is spread across contributors.
func (e *Engine) AuthorGini() float64 {
	set := rbtree.New[float64]()

	for _, types := range e.atw {
		total := 0
		for _, count := range types {
			total += count
		}

		set.Insert(float64(total))
	}

	return stats.Gini(set, false)
}

func (e *Engine) giniOver(value func(label string) float64) float64 {
	set := rbtree.New[float64]()

	for _, label := range e.types {
		v := value(label)
		if math.IsNaN(v) {
			return math.NaN()
		}

		set.Insert(v)
	}

	return stats.Gini(set, false)
}

func ratio(num, den int) float64 {
	if den == 0 {
		return math.NaN()
	}

	return float64(num) / float64(den)
}

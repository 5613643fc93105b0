package stats

import (
	"math"

	"github.com/Sumatoshi-tech/effort/pkg/rbtree"
)

// Gini computes the Gini inequality coefficient of the values held in set,
// which must be non-negative.
//
// With countZeros=false zero entries are excluded from the population
// while still occupying their rank in the sorted stream, so that
//
//	gini = Σ (2i - n - skip - 1) * v_i / ((n - skip) * Σ v_i)
//
// where i is the 1-based rank, n the total count and skip the number of
// excluded zeros. The result is NaN when the included values sum to zero.
func Gini(set *rbtree.Multiset[float64], countZeros bool) float64 {
	count := set.Len()

	skip := 0
	if !countZeros {
		skip = set.Count(0)
	}

	var weighted, sum float64

	rank := 0

	for value := range set.Values() {
		rank++

		if value == 0 && !countZeros {
			continue
		}

		weighted += float64(2*rank-count-skip-1) * value
		sum += value
	}

	if sum == 0 {
		return math.NaN()
	}

	return weighted / float64(count-skip) / sum
}

// GiniOf is [Gini] over a plain slice.
func GiniOf(values []float64, countZeros bool) float64 {
	return Gini(rbtree.From(values), countZeros)
}

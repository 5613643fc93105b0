package stats

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/effort/pkg/rbtree"
)

func TestClamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		val, lo, hi int
		expected    int
	}{
		{name: "within_range", val: 5, lo: 0, hi: 10, expected: 5},
		{name: "below_min", val: -1, lo: 0, hi: 10, expected: 0},
		{name: "above_max", val: 15, lo: 0, hi: 10, expected: 10},
		{name: "at_max", val: 10, lo: 0, hi: 10, expected: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, Clamp(tt.val, tt.lo, tt.hi))
		})
	}
}

func TestMean(t *testing.T) {
	t.Parallel()

	assert.Zero(t, Mean([]int{}))
	assert.InDelta(t, 2.5, Mean([]int{1, 2, 3, 4}), 1e-12)
	assert.InDelta(t, 0.5, Mean([]float64{0.25, 0.75}), 1e-12)
}

func TestGiniKnownValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		values     []float64
		countZeros bool
		expected   float64
	}{
		{name: "equal", values: []float64{4, 4, 4, 4}, expected: 0},
		{name: "two_values", values: []float64{1, 3}, expected: 0.25},
		{name: "ladder", values: []float64{1, 2, 3, 4}, expected: 0.25},
		{name: "unsorted_input", values: []float64{3, 1}, expected: 0.25},
		{name: "concentrated_with_zeros", values: []float64{0, 0, 0, 10}, countZeros: true, expected: 0.75},
		{name: "zeros_skipped", values: []float64{0, 0, 1, 3}, expected: 0.25},
		{name: "single_value", values: []float64{7}, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.InDelta(t, tt.expected, GiniOf(tt.values, tt.countZeros), 1e-12)
		})
	}
}

func TestGiniUndefined(t *testing.T) {
	t.Parallel()

	assert.True(t, math.IsNaN(GiniOf(nil, false)))
	assert.True(t, math.IsNaN(GiniOf([]float64{0, 0, 0}, false)))
	assert.True(t, math.IsNaN(GiniOf([]float64{0, 0, 0}, true)))
}

func TestGiniConcentrationApproachesOne(t *testing.T) {
	t.Parallel()

	values := make([]float64, 1000)
	values[999] = 1

	assert.InDelta(t, 0.999, GiniOf(values, true), 1e-9)
}

func TestGiniBoundsProperty(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(3, 5))

	for range 200 {
		n := 1 + rng.IntN(40)
		values := make([]float64, n)

		for idx := range values {
			if rng.IntN(4) == 0 {
				continue
			}

			values[idx] = float64(rng.IntN(100))
		}

		values[rng.IntN(n)] = 1 + float64(rng.IntN(100))

		for _, countZeros := range []bool{true, false} {
			got := GiniOf(values, countZeros)
			assert.GreaterOrEqual(t, got, -1e-12)
			assert.LessOrEqual(t, got, 1.0)
		}
	}
}

func TestGiniOverLiveMultiset(t *testing.T) {
	t.Parallel()

	set := rbtree.From([]float64{1, 3, 5})
	set.Remove(5)

	assert.InDelta(t, 0.25, Gini(set, false), 1e-12)
}

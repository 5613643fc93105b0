// Package stats provides the statistical functions behind workload metrics.
package stats

import "cmp"

// Clamp restricts val to the range [lo, hi].
func Clamp[T cmp.Ordered](val, lo, hi T) T {
	return max(lo, min(val, hi))
}

// Mean returns the arithmetic mean of values.
// Returns 0 for an empty slice.
func Mean[T ~int | ~float64](values []T) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64

	for _, v := range values {
		sum += float64(v)
	}

	return sum / float64(len(values))
}

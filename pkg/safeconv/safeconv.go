// Package safeconv provides integer conversions that panic on overflow.
package safeconv

import "math"

// MaxUint32 is the maximum value for uint32 type.
const MaxUint32 = uint32(math.MaxUint32)

// MustIntToUint32 converts int to uint32, panics on bounds violation.
// Use only when bounds violations are logically impossible.
func MustIntToUint32(v int) uint32 {
	if v < 0 || v > int(MaxUint32) {
		panic("safeconv: int to uint32 out of bounds")
	}

	return uint32(v)
}

// MustUint64ToInt64 converts uint64 to int64, panics on overflow.
// Callers validate the range first (see [FitsInt64]).
func MustUint64ToInt64(v uint64) int64 {
	if !FitsInt64(v) {
		panic("safeconv: uint64 to int64 overflow")
	}

	return int64(v)
}

// FitsInt64 reports whether v can be represented as an int64.
func FitsInt64(v uint64) bool {
	return v <= math.MaxInt64
}

package kernel

import (
	"math"

	"github.com/rayforcedb/rayforce/rlib/value"
)

// SumI64 reduces an I64 slice, skipping (not zeroing) null elements, and
// reports whether any non-null element was seen: an empty or all-null input
// returns (0, false), so the caller can yield NULL rather than 0, matching
// the per-type null propagation rule applied uniformly to reducers.
func SumI64(xs []int64) (int64, bool) {
	var sum int64
	seen := false
	for _, x := range xs {
		if x == value.NullI64 {
			continue
		}
		sum += x
		seen = true
	}
	return sum, seen
}

func SumF64(xs []float64) (float64, bool) {
	var sum float64
	seen := false
	for _, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		sum += x
		seen = true
	}
	return sum, seen
}

func MaxI64(xs []int64) (int64, bool) {
	best := int64(math.MinInt64)
	seen := false
	for _, x := range xs {
		if x == value.NullI64 {
			continue
		}
		if !seen || x > best {
			best = x
		}
		seen = true
	}
	return best, seen
}

func MinI64(xs []int64) (int64, bool) {
	best := int64(math.MaxInt64)
	seen := false
	for _, x := range xs {
		if x == value.NullI64 {
			continue
		}
		if !seen || x < best {
			best = x
		}
		seen = true
	}
	return best, seen
}

func MaxF64(xs []float64) (float64, bool) {
	best := math.Inf(-1)
	seen := false
	for _, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		if !seen || x > best {
			best = x
		}
		seen = true
	}
	return best, seen
}

func MinF64(xs []float64) (float64, bool) {
	best := math.Inf(1)
	seen := false
	for _, x := range xs {
		if math.IsNaN(x) {
			continue
		}
		if !seen || x < best {
			best = x
		}
		seen = true
	}
	return best, seen
}

// CountNonNullI64 counts elements that are not the NULL sentinel, the
// typed-loop backbone of the COUNT aggregate.
func CountNonNullI64(xs []int64) int64 {
	var n int64
	for _, x := range xs {
		if x != value.NullI64 {
			n++
		}
	}
	return n
}

func CountNonNullF64(xs []float64) int64 {
	var n int64
	for _, x := range xs {
		if !math.IsNaN(x) {
			n++
		}
	}
	return n
}

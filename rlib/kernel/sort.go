package kernel

import (
	"sort"

	"github.com/rayforcedb/rayforce/rlib/value"
)

// SortPermI64 returns the permutation that sorts xs ascending, with NULL
// (value.NullI64, the type-min sentinel) naturally sorting first — no
// special-casing needed since the sentinel already holds the minimum
// representable value for the type.
func SortPermI64(xs []int64) []int64 {
	perm := make([]int64, len(xs))
	for i := range perm {
		perm[i] = int64(i)
	}
	sort.Slice(perm, func(i, j int) bool { return xs[perm[i]] < xs[perm[j]] })
	return perm
}

// SortPermF64 sorts ascending with NaN (the F64 null sentinel) ordered
// last, since NaN fails every relational comparison.
func SortPermF64(xs []float64) []int64 {
	perm := make([]int64, len(xs))
	for i := range perm {
		perm[i] = int64(i)
	}
	isNaN := func(f float64) bool { return f != f }
	sort.Slice(perm, func(i, j int) bool {
		a, b := xs[perm[i]], xs[perm[j]]
		if isNaN(a) {
			return false
		}
		if isNaN(b) {
			return true
		}
		return a < b
	})
	return perm
}

// ApplyPermI64 gathers xs through perm into dst: dst[i] = xs[perm[i]].
func ApplyPermI64(dst, xs []int64, perm []int64) {
	for i, p := range perm {
		dst[i] = xs[p]
	}
}

func ApplyPermF64(dst, xs []float64, perm []int64) {
	for i, p := range perm {
		dst[i] = xs[p]
	}
}

// AttrsForSort reports the AttrAsc/AttrDesc flag the result of a sort
// should carry given the sort direction, per spec.md §3.2's attrs byte.
func AttrsForSort(ascending bool) value.Attrs {
	if ascending {
		return value.AttrAsc
	}
	return value.AttrDesc
}

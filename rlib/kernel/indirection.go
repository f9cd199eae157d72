package kernel

import "github.com/rayforcedb/rayforce/rlib/value"

// Peel strips one layer of ENUM/ANYMAP indirection so a kernel can recurse
// on the underlying storage without materializing it (spec.md §4.5: "for
// each dispatched operation, if either operand is ENUM/MAPLIST the kernel
// peels off the indirection (follows ids and values) before recursing").
//
// For ENUM, peeling returns the I64 index vector — composing a numeric or
// comparison kernel over the index vector is what "operators compose over
// the underlying storage" means for enum-coded symbol columns (equality
// and grouping can run directly against ids without resolving strings).
// For ANYMAP, peeling is a no-op signal since ANYMAP's elements are
// opaque byte ranges, not independently typed sub-values; callers that
// need element access go through (*value.Anymap).Entry directly.
func Peel(v value.Value) (value.Value, bool) {
	switch x := v.(type) {
	case *value.Enum:
		return x.Index, true
	default:
		return v, false
	}
}

// PeelPair peels both operands of a binary op, reporting whether either
// side was indirected. Used by the dispatcher immediately before selecting
// a typed loop, so enum-coded SYMBOL columns compare/group by id without
// ever resolving through the symbol table.
func PeelPair(a, b value.Value) (value.Value, value.Value, bool) {
	pa, okA := Peel(a)
	pb, okB := Peel(b)
	return pa, pb, okA || okB
}

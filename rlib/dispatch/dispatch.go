// Package dispatch implements binary primitive call plumbing: the
// atomic/left-atomic/right-atomic broadcast rules, recursive LIST walking,
// and result-type downgrade-to-LIST-on-heterogeneity (spec.md §4.6).
// ANYMAP operands are not walked; they reach the leaf unchanged.
package dispatch

import (
	"fmt"
	"strings"

	"github.com/rayforcedb/rayforce/internal/rmetrics"
	"github.com/rayforcedb/rayforce/rlib/arena"
	"github.com/rayforcedb/rayforce/rlib/kernel"
	"github.com/rayforcedb/rayforce/rlib/value"
)

// Metrics, when set by the process entry point, records one DispatchErrors
// observation per failing top-level Call — recursive calls made while
// walking a LIST don't double-count, since only the outermost Call
// increments it (see call/Call split below).
var Metrics *rmetrics.Metrics

// Flags is the dispatch bitmask every primitive carries alongside its
// function pointer (spec.md §4.6).
type Flags uint8

const (
	FnAtomic Flags = 1 << iota
	FnLeftAtomic
	FnRightAtomic
	FnAggr
	FnGroupMap
)

// BinaryFn is a leaf elementwise or whole-input binary primitive, invoked
// once dispatch has peeled away any LIST recursion and enum
// indirection. Leaf implementations live beside their registration in
// rlib/dispatch/builtins.go and compare.go; BinaryFn itself is kernel-package-agnostic so
// new primitives can be added without touching this file.
type BinaryFn func(a *arena.Arena, x, y value.Value) (value.Value, error)

// Binary is a registered binary primitive: its leaf function plus the
// dispatch flags describing how list/atom arguments combine.
type Binary struct {
	Name  string
	Flags Flags
	Leaf  BinaryFn
}

// Call applies b to x and y, handling FN_ATOMIC/LEFT_ATOMIC/RIGHT_ATOMIC
// broadcast and LIST recursion before invoking the leaf. Any
// elementwise failure aborts the walk: the LIST walk drops the partial
// output it has built so far and returns the error wrapped with the failing
// index, so dispatch never partially commits a result.
func Call(a *arena.Arena, b *Binary, x, y value.Value) (value.Value, error) {
	v, err := call(a, b, x, y)
	if err != nil && Metrics != nil {
		Metrics.DispatchErrors.WithLabelValues(classifyError(err)).Inc()
	}
	return v, err
}

// classifyError buckets a dispatch failure for the DispatchErrors label —
// coarse, since the leaf functions return plain fmt.Errorf strings rather
// than a typed error taxonomy.
func classifyError(err error) string {
	if strings.Contains(err.Error(), "length mismatch") {
		return "length_mismatch"
	}
	return "leaf"
}

// call is Call's recursive body: walking a LIST re-enters call, not
// Call, so a failure nested several levels deep is only ever counted once,
// at the outermost Call.
func call(a *arena.Arena, b *Binary, x, y value.Value) (value.Value, error) {
	px, py, indirected := kernel.PeelPair(x, y)
	if indirected {
		out, err := call(a, b, px, py)
		if err != nil {
			return nil, err
		}
		// Re-wrap as ENUM only when both peeled operands actually were
		// enums sharing the same domain key; otherwise the index-level
		// result (e.g. an equality mask) stands on its own.
		if ex, ok := x.(*value.Enum); ok {
			if ey, ok := y.(*value.Enum); ok && ex.Key.Symbol() == ey.Key.Symbol() {
				if outVec, ok := out.(*value.Vector); ok && outVec.Type() == value.TI64Vector {
					return value.NewEnum(ex.Key, outVec)
				}
			}
		}
		return out, nil
	}

	if b.Flags&FnAggr != 0 {
		return b.Leaf(a, x, y)
	}

	xl, xIsList := x.(*value.List)
	yl, yIsList := y.(*value.List)

	switch {
	case xIsList && yIsList:
		if xl.Len() != yl.Len() {
			return nil, fmt.Errorf("dispatch: %s: length mismatch %d vs %d", b.Name, xl.Len(), yl.Len())
		}
		return walkListList(a, b, xl, yl)
	case xIsList && b.Flags&(FnAtomic|FnLeftAtomic) != 0:
		return walkListAtom(a, b, xl, y, true)
	case yIsList && b.Flags&(FnAtomic|FnRightAtomic) != 0:
		return walkListAtom(a, b, yl, x, false)
	// listIsLeftOperand (the trailing bool) says whether the list parameter
	// occupies the left or right argument position of the leaf call.
	default:
		return b.Leaf(a, x, y)
	}
}

func walkListList(a *arena.Arena, b *Binary, xl, yl *value.List) (value.Value, error) {
	n := xl.Len()
	out := make([]value.Value, n)
	var elemType value.Type = value.TNone
	homogeneous := true
	for i := int64(0); i < n; i++ {
		r, err := call(a, b, xl.At(i), yl.At(i))
		if err != nil {
			dropAll(out[:i])
			return nil, fmt.Errorf("dispatch: %s at index %d: %w", b.Name, i, err)
		}
		out[i] = r
		t := typeOf(r)
		if i == 0 {
			elemType = t
		} else if t != elemType {
			homogeneous = false
		}
	}
	return finishContainer(a, out, elemType, homogeneous)
}

func walkListAtom(a *arena.Arena, b *Binary, xl *value.List, other value.Value, listIsLeftOperand bool) (value.Value, error) {
	n := xl.Len()
	out := make([]value.Value, n)
	var elemType value.Type = value.TNone
	homogeneous := true
	for i := int64(0); i < n; i++ {
		var r value.Value
		var err error
		if listIsLeftOperand {
			r, err = call(a, b, xl.At(i), other)
		} else {
			r, err = call(a, b, other, xl.At(i))
		}
		if err != nil {
			dropAll(out[:i])
			return nil, fmt.Errorf("dispatch: %s at index %d: %w", b.Name, i, err)
		}
		out[i] = r
		t := typeOf(r)
		if i == 0 {
			elemType = t
		} else if t != elemType {
			homogeneous = false
		}
	}
	return finishContainer(a, out, elemType, homogeneous)
}

// MaterializeVector builds a vector (or, on type heterogeneity, a LIST)
// from already-evaluated elements — the same homogeneous-or-downgrade rule
// walkListList/walkListAtom apply to primitive results, reused here for
// literal vector construction (e.g. core/eval's `[1;2;3]` nodes).
func MaterializeVector(a *arena.Arena, elems []value.Value) (value.Value, error) {
	var elemType value.Type = value.TNone
	homogeneous := true
	for i, e := range elems {
		t := typeOf(e)
		if i == 0 {
			elemType = t
		} else if t != elemType {
			homogeneous = false
		}
	}
	return finishContainer(a, elems, elemType, homogeneous)
}

// finishContainer allocates an output container whose element type matches
// the first result, downgrading to LIST if heterogeneity appeared (spec.md
// §4.6: "allocating an output container whose element type matches the
// first result and downgrading to LIST if heterogeneity appears").
func finishContainer(a *arena.Arena, elems []value.Value, elemType value.Type, homogeneous bool) (value.Value, error) {
	if !homogeneous || elemType == value.TNone || !elemType.IsAtom() {
		return value.NewList(elems), nil
	}
	vecType := elemType.VectorOf()
	v, err := value.NewVector(a, vecType, int64(len(elems)))
	if err != nil {
		dropAll(elems)
		return nil, err
	}
	for i, e := range elems {
		atom, ok := e.(value.Atom)
		if !ok {
			dropAll(elems)
			return nil, fmt.Errorf("dispatch: expected atom result, got %T", e)
		}
		writeAtomInto(v, i, atom)
	}
	dropAll(elems) // atoms are refcount-free no-ops; this just releases the slice
	return v, nil
}

func typeOf(v value.Value) value.Type {
	switch x := v.(type) {
	case value.Atom:
		return x.Type()
	case *value.Vector:
		return x.Type()
	default:
		return value.TNone
	}
}

func writeAtomInto(v *value.Vector, i int, a value.Atom) {
	switch v.Type() {
	case value.TI64Vector, value.TTimestampVector, value.TSymbolVector:
		v.I64s()[i] = int64(a.Bits())
	case value.TF64Vector:
		v.F64s()[i] = a.F64()
	case value.TI32Vector, value.TDateVector:
		v.I32s()[i] = a.I32()
	case value.TTimeVector:
		v.I32s()[i] = a.Time()
	case value.TI16Vector:
		v.I16s()[i] = a.I16()
	case value.TU8Vector:
		v.U8s()[i] = a.U8()
	case value.TB8Vector:
		b := byte(0)
		if a.Bool() {
			b = 1
		}
		v.Bools()[i] = b
	case value.TGUIDVector:
		v.GUIDs()[i] = a.GUID()
	case value.TCharVector:
		v.Chars()[i] = a.Char()
	}
}

func dropAll(vs []value.Value) {
	for _, v := range vs {
		if v != nil {
			v.Drop()
		}
	}
}

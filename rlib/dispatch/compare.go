package dispatch

import (
	"fmt"

	"github.com/rayforcedb/rayforce/rlib/arena"
	"github.com/rayforcedb/rayforce/rlib/kernel"
	"github.com/rayforcedb/rayforce/rlib/value"
)

type cmpFn int

const (
	cmpEq cmpFn = iota
	cmpLt
	cmpGt
)

func init() {
	register(&Binary{Name: "=", Flags: FnAtomic, Leaf: cmpLeaf(cmpEq)})
	register(&Binary{Name: "<", Flags: FnAtomic, Leaf: cmpLeaf(cmpLt)})
	register(&Binary{Name: ">", Flags: FnAtomic, Leaf: cmpLeaf(cmpGt)})
}

// cmpLeaf builds the leaf BinaryFn for an elementwise comparison, producing
// a TB8 atom or TB8Vector result (spec.md §4.5/§4.6: comparisons are
// ordinary atomic-broadcast primitives like arithmetic).
func cmpLeaf(op cmpFn) BinaryFn {
	return func(a *arena.Arena, x, y value.Value) (value.Value, error) {
		switch xv := x.(type) {
		case value.Atom:
			switch yv := y.(type) {
			case value.Atom:
				return cmpAtomAtom(op, xv, yv)
			case *value.Vector:
				return cmpAtomVector(a, op, xv, yv)
			}
		case *value.Vector:
			switch yv := y.(type) {
			case value.Atom:
				return cmpVectorAtom(a, op, xv, yv)
			case *value.Vector:
				return cmpVectorVector(a, op, xv, yv)
			}
		}
		return nil, fmt.Errorf("dispatch: compare: unsupported operand types %T, %T", x, y)
	}
}

func cmpAtomAtom(op cmpFn, x, y value.Atom) (value.Value, error) {
	pt, ok := kernel.Promote(x.Type(), y.Type())
	if !ok {
		return nil, fmt.Errorf("dispatch: compare: incompatible types %v, %v", x.Type(), y.Type())
	}
	dst := make([]byte, 1)
	switch pt {
	case value.TI64:
		applyCmpI64(op, dst, []int64{asI64(x)}, []int64{asI64(y)})
	case value.TF64:
		applyCmpF64(op, dst, []float64{asF64(x)}, []float64{asF64(y)})
	default:
		return nil, fmt.Errorf("dispatch: compare: type %v not comparable", pt)
	}
	return value.BoolAtom(dst[0] != 0), nil
}

func cmpAtomVector(a *arena.Arena, op cmpFn, x value.Atom, y *value.Vector) (value.Value, error) {
	xb := make([]int64, y.Len())
	xf := make([]float64, y.Len())
	out, err := value.NewVector(a, value.TB8Vector, y.Len())
	if err != nil {
		return nil, err
	}
	switch y.Type() {
	case value.TI64Vector:
		for i := range xb {
			xb[i] = asI64(x)
		}
		applyCmpI64(op, out.Bools(), xb, y.I64s())
	case value.TF64Vector:
		for i := range xf {
			xf[i] = asF64(x)
		}
		applyCmpF64(op, out.Bools(), xf, y.F64s())
	default:
		return nil, fmt.Errorf("dispatch: compare: unsupported vector type %v", y.Type())
	}
	return out, nil
}

func cmpVectorAtom(a *arena.Arena, op cmpFn, x *value.Vector, y value.Atom) (value.Value, error) {
	yb := make([]int64, x.Len())
	yf := make([]float64, x.Len())
	out, err := value.NewVector(a, value.TB8Vector, x.Len())
	if err != nil {
		return nil, err
	}
	switch x.Type() {
	case value.TI64Vector:
		for i := range yb {
			yb[i] = asI64(y)
		}
		applyCmpI64(op, out.Bools(), x.I64s(), yb)
	case value.TF64Vector:
		for i := range yf {
			yf[i] = asF64(y)
		}
		applyCmpF64(op, out.Bools(), x.F64s(), yf)
	default:
		return nil, fmt.Errorf("dispatch: compare: unsupported vector type %v", x.Type())
	}
	return out, nil
}

func cmpVectorVector(a *arena.Arena, op cmpFn, x, y *value.Vector) (value.Value, error) {
	if x.Len() != y.Len() {
		return nil, fmt.Errorf("dispatch: compare: length mismatch %d vs %d", x.Len(), y.Len())
	}
	out, err := value.NewVector(a, value.TB8Vector, x.Len())
	if err != nil {
		return nil, err
	}
	switch {
	case x.Type() == value.TI64Vector && y.Type() == value.TI64Vector:
		applyCmpI64(op, out.Bools(), x.I64s(), y.I64s())
	case x.Type() == value.TF64Vector && y.Type() == value.TF64Vector:
		applyCmpF64(op, out.Bools(), x.F64s(), y.F64s())
	case x.Type() == value.TI64Vector && y.Type() == value.TF64Vector:
		xf := make([]float64, x.Len())
		for i, v := range x.I64s() {
			xf[i] = float64(v)
		}
		applyCmpF64(op, out.Bools(), xf, y.F64s())
	default:
		return nil, fmt.Errorf("dispatch: compare: unsupported vector pair %v, %v", x.Type(), y.Type())
	}
	return out, nil
}

func applyCmpI64(op cmpFn, dst []byte, a, b []int64) {
	switch op {
	case cmpEq:
		kernel.EqI64(dst, a, b)
	case cmpLt:
		kernel.LtI64(dst, a, b)
	case cmpGt:
		kernel.GtI64(dst, a, b)
	}
}

func applyCmpF64(op cmpFn, dst []byte, a, b []float64) {
	switch op {
	case cmpEq:
		kernel.EqF64(dst, a, b)
	case cmpLt:
		kernel.LtF64(dst, a, b)
	case cmpGt:
		kernel.GtF64(dst, a, b)
	}
}

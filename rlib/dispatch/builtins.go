package dispatch

import (
	"fmt"

	"github.com/rayforcedb/rayforce/rlib/arena"
	"github.com/rayforcedb/rayforce/rlib/kernel"
	"github.com/rayforcedb/rayforce/rlib/value"
)

// Registry is the name → primitive table the evaluator consults (spec.md
// §4.9's evaluator calls into dispatch by primitive name).
var Registry = map[string]*Binary{}

func register(b *Binary) { Registry[b.Name] = b }

func init() {
	register(&Binary{Name: "+", Flags: FnAtomic, Leaf: arithLeaf(kernel.OpAdd)})
	register(&Binary{Name: "-", Flags: FnAtomic, Leaf: arithLeaf(kernel.OpSub)})
	register(&Binary{Name: "*", Flags: FnAtomic, Leaf: arithLeaf(kernel.OpMul)})
	register(&Binary{Name: "%", Flags: FnAtomic, Leaf: arithLeaf(kernel.OpDiv)})
	register(&Binary{Name: "mod", Flags: FnAtomic, Leaf: arithLeaf(kernel.OpMod)})
}

// arithLeaf builds the leaf BinaryFn for an elementwise numeric op
// (spec.md §4.5/§4.6). Atom×atom covers I64/F64/I32/I16 via kernel.Promote;
// atom×vector and vector×atom accept only I64 and F64 vectors; vector×vector
// accepts I64×I64, I64×F64, F64×F64 and I32×I32. Any other combination is
// an error.
func arithLeaf(op kernel.Op) BinaryFn {
	return func(a *arena.Arena, x, y value.Value) (value.Value, error) {
		switch xv := x.(type) {
		case value.Atom:
			switch yv := y.(type) {
			case value.Atom:
				return arithAtomAtom(op, xv, yv)
			case *value.Vector:
				return arithAtomVector(a, op, xv, yv)
			}
		case *value.Vector:
			switch yv := y.(type) {
			case value.Atom:
				return arithVectorAtom(a, op, xv, yv)
			case *value.Vector:
				return arithVectorVector(a, op, xv, yv)
			}
		}
		return nil, fmt.Errorf("dispatch: arith: unsupported operand types %T, %T", x, y)
	}
}

func arithAtomAtom(op kernel.Op, x, y value.Atom) (value.Value, error) {
	pt, ok := kernel.Promote(x.Type(), y.Type())
	if !ok {
		return nil, fmt.Errorf("dispatch: arith: incompatible types %v, %v", x.Type(), y.Type())
	}
	switch pt {
	case value.TI64:
		dst := make([]int64, 1)
		kernel.VecVecI64(op, dst, []int64{asI64(x)}, []int64{asI64(y)})
		return value.I64Atom(dst[0]), nil
	case value.TF64:
		dst := make([]float64, 1)
		kernel.VecVecF64(op, dst, []float64{asF64(x)}, []float64{asF64(y)})
		return value.F64Atom(dst[0]), nil
	case value.TI32:
		dst := make([]int32, 1)
		kernel.VecVecI32(op, dst, []int32{x.I32()}, []int32{y.I32()})
		return value.I32Atom(dst[0]), nil
	case value.TI16:
		dst := make([]int16, 1)
		kernel.VecVecI16(op, dst, []int16{x.I16()}, []int16{y.I16()})
		return value.I16Atom(dst[0]), nil
	default:
		return nil, fmt.Errorf("dispatch: arith: type %v not arithmetic", pt)
	}
}

func arithAtomVector(a *arena.Arena, op kernel.Op, x value.Atom, y *value.Vector) (value.Value, error) {
	switch y.Type() {
	case value.TI64Vector:
		out, err := value.NewVector(a, value.TI64Vector, y.Len())
		if err != nil {
			return nil, err
		}
		kernel.AtomVecI64(op, out.I64s(), asI64(x), y.I64s())
		return out, nil
	case value.TF64Vector:
		out, err := value.NewVector(a, value.TF64Vector, y.Len())
		if err != nil {
			return nil, err
		}
		kernel.AtomVecF64(op, out.F64s(), asF64(x), y.F64s())
		return out, nil
	default:
		return nil, fmt.Errorf("dispatch: arith: unsupported vector type %v", y.Type())
	}
}

func arithVectorAtom(a *arena.Arena, op kernel.Op, x *value.Vector, y value.Atom) (value.Value, error) {
	switch x.Type() {
	case value.TI64Vector:
		if y.Type() == value.TF64 && op == kernel.OpSub {
			out, err := value.NewVector(a, value.TI64Vector, x.Len())
			if err != nil {
				return nil, err
			}
			yb := make([]float64, x.Len())
			for i := range yb {
				yb[i] = y.F64()
			}
			kernel.SubI64F64Quirk(out.I64s(), x.I64s(), yb)
			return out, nil
		}
		out, err := value.NewVector(a, value.TI64Vector, x.Len())
		if err != nil {
			return nil, err
		}
		kernel.VecAtomI64(op, out.I64s(), x.I64s(), asI64(y))
		return out, nil
	case value.TF64Vector:
		out, err := value.NewVector(a, value.TF64Vector, x.Len())
		if err != nil {
			return nil, err
		}
		kernel.VecAtomF64(op, out.F64s(), x.F64s(), asF64(y))
		return out, nil
	default:
		return nil, fmt.Errorf("dispatch: arith: unsupported vector type %v", x.Type())
	}
}

func arithVectorVector(a *arena.Arena, op kernel.Op, x, y *value.Vector) (value.Value, error) {
	if x.Len() != y.Len() {
		return nil, fmt.Errorf("dispatch: arith: length mismatch %d vs %d", x.Len(), y.Len())
	}
	switch {
	case x.Type() == value.TI64Vector && y.Type() == value.TF64Vector:
		// Preserve the legacy I64-typed-but-F64-valued subtraction quirk
		// (spec.md §9 bullet 1); other ops widen normally to F64.
		if op == kernel.OpSub {
			out, err := value.NewVector(a, value.TI64Vector, x.Len())
			if err != nil {
				return nil, err
			}
			kernel.SubI64F64Quirk(out.I64s(), x.I64s(), y.F64s())
			return out, nil
		}
		out, err := value.NewVector(a, value.TF64Vector, x.Len())
		if err != nil {
			return nil, err
		}
		kernel.MixedI64F64(op, out.F64s(), x.I64s(), y.F64s())
		return out, nil
	case x.Type() == value.TI64Vector && y.Type() == value.TI64Vector:
		out, err := value.NewVector(a, value.TI64Vector, x.Len())
		if err != nil {
			return nil, err
		}
		kernel.VecVecI64(op, out.I64s(), x.I64s(), y.I64s())
		return out, nil
	case x.Type() == value.TF64Vector && y.Type() == value.TF64Vector:
		out, err := value.NewVector(a, value.TF64Vector, x.Len())
		if err != nil {
			return nil, err
		}
		kernel.VecVecF64(op, out.F64s(), x.F64s(), y.F64s())
		return out, nil
	case x.Type() == value.TI32Vector && y.Type() == value.TI32Vector:
		out, err := value.NewVector(a, value.TI32Vector, x.Len())
		if err != nil {
			return nil, err
		}
		kernel.VecVecI32(op, out.I32s(), x.I32s(), y.I32s())
		return out, nil
	default:
		return nil, fmt.Errorf("dispatch: arith: unsupported vector pair %v, %v", x.Type(), y.Type())
	}
}

func asI64(a value.Atom) int64 { return a.I64() }

func asF64(a value.Atom) float64 {
	if a.Type() == value.TI64 {
		if a.I64() == value.NullI64 {
			return value.NullAtom(value.TF64).F64()
		}
		return float64(a.I64())
	}
	return a.F64()
}

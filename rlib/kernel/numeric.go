// Package kernel implements the typed inner loops behind every arithmetic,
// comparison, and reducing primitive: one family of loops per element-type
// pair, selected by the dispatcher (rlib/dispatch) on the Cartesian product
// of input type tags (spec.md §4.5).
package kernel

import (
	"math"

	"github.com/rayforcedb/rayforce/rlib/value"
)

// Op is an elementwise binary numeric operator.
type Op int

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpMod
)

// Promote picks the common numeric type two operand types coerce to, per
// spec.md §4.5's promotion rules: mixed I64×F64 widens to F64; temporal
// rules are handled separately by the functions in temporal.go since they aren't a
// symmetric widening.
func Promote(a, b value.Type) (value.Type, bool) {
	base := func(t value.Type) value.Type {
		if t.IsAtom() {
			return t
		}
		return t.AtomOf()
	}
	ba, bb := base(a), base(b)
	if ba == bb {
		return ba, true
	}
	if (ba == value.TI64 && bb == value.TF64) || (ba == value.TF64 && bb == value.TI64) {
		return value.TF64, true
	}
	return value.TNone, false
}

// applyF64 evaluates op on two float64 operands, returning NaN (the F64
// null sentinel) for a null operand or division by zero (spec.md §4.5:
// "every per-element operation consults a per-type NULL sentinel ... and
// returns the matching null if either operand is null. Division by zero
// yields NULL.").
func applyF64(op Op, x, y float64) float64 {
	if math.IsNaN(x) || math.IsNaN(y) {
		return math.NaN()
	}
	switch op {
	case OpAdd:
		return x + y
	case OpSub:
		return x - y
	case OpMul:
		return x * y
	case OpDiv:
		if y == 0 {
			return math.NaN()
		}
		return x / y
	case OpMod:
		if y == 0 {
			return math.NaN()
		}
		return math.Mod(x, y)
	default:
		panic("kernel: unknown op")
	}
}

func applyI64(op Op, x, y int64) int64 {
	if x == value.NullI64 || y == value.NullI64 {
		return value.NullI64
	}
	switch op {
	case OpAdd:
		return x + y
	case OpSub:
		return x - y
	case OpMul:
		return x * y
	case OpDiv:
		if y == 0 {
			return value.NullI64
		}
		return x / y
	case OpMod:
		if y == 0 {
			return value.NullI64
		}
		return x % y
	default:
		panic("kernel: unknown op")
	}
}

func applyI32(op Op, x, y int32) int32 {
	if x == value.NullI32 || y == value.NullI32 {
		return value.NullI32
	}
	switch op {
	case OpAdd:
		return x + y
	case OpSub:
		return x - y
	case OpMul:
		return x * y
	case OpDiv:
		if y == 0 {
			return value.NullI32
		}
		return x / y
	case OpMod:
		if y == 0 {
			return value.NullI32
		}
		return x % y
	default:
		panic("kernel: unknown op")
	}
}

func applyI16(op Op, x, y int16) int16 {
	if x == value.NullI16 || y == value.NullI16 {
		return value.NullI16
	}
	switch op {
	case OpAdd:
		return x + y
	case OpSub:
		return x - y
	case OpMul:
		return x * y
	case OpDiv:
		if y == 0 {
			return value.NullI16
		}
		return x / y
	case OpMod:
		if y == 0 {
			return value.NullI16
		}
		return x % y
	default:
		panic("kernel: unknown op")
	}
}

// VecVecF64 applies op elementwise across two equal-length F64 slices into
// dst. Mismatched lengths are a dispatcher-level (LENGTH) error, not a
// kernel concern — kernels assume pre-validated equal-length inputs.
func VecVecF64(op Op, dst, a, b []float64) {
	for i := range dst {
		dst[i] = applyF64(op, a[i], b[i])
	}
}

// AtomVecF64 broadcasts scalar x against vector b into dst (left-atomic).
func AtomVecF64(op Op, dst []float64, x float64, b []float64) {
	for i := range dst {
		dst[i] = applyF64(op, x, b[i])
	}
}

// VecAtomF64 broadcasts vector a against scalar y into dst (right-atomic).
func VecAtomF64(op Op, dst []float64, a []float64, y float64) {
	for i := range dst {
		dst[i] = applyF64(op, a[i], y)
	}
}

func VecVecI64(op Op, dst, a, b []int64) {
	for i := range dst {
		dst[i] = applyI64(op, a[i], b[i])
	}
}
func AtomVecI64(op Op, dst []int64, x int64, b []int64) {
	for i := range dst {
		dst[i] = applyI64(op, x, b[i])
	}
}
func VecAtomI64(op Op, dst []int64, a []int64, y int64) {
	for i := range dst {
		dst[i] = applyI64(op, a[i], y)
	}
}

func VecVecI32(op Op, dst, a, b []int32) {
	for i := range dst {
		dst[i] = applyI32(op, a[i], b[i])
	}
}
func VecVecI16(op Op, dst, a, b []int16) {
	for i := range dst {
		dst[i] = applyI16(op, a[i], b[i])
	}
}

// MixedI64F64 widens an I64 slice into dst alongside an F64 slice b,
// implementing the I64×F64 widen-to-F64 promotion rule.
func MixedI64F64(op Op, dst []float64, a []int64, b []float64) {
	for i := range dst {
		var x float64
		if a[i] == value.NullI64 {
			x = math.NaN()
		} else {
			x = float64(a[i])
		}
		dst[i] = applyF64(op, x, b[i])
	}
}

// SubI64F64Quirk reproduces a specific legacy observable: the I64×F64
// subtraction path produces a result header typed I64 but whose element
// bytes are the F64-promoted bits, not a truncated integer (spec.md §9,
// bullet 1). dst's backing vector must be typed I64Vector; this writes
// float64 bit patterns into it verbatim — reading dst as I64s and
// reinterpreting as F64 (math.Float64frombits) recovers the true value.
// This is preserved exactly as observed rather than "fixed", per the
// instruction to keep current observable behavior and pin it with a test.
func SubI64F64Quirk(dst []int64, a []int64, b []float64) {
	for i := range dst {
		var x float64
		if a[i] == value.NullI64 {
			x = math.NaN()
		} else {
			x = float64(a[i])
		}
		dst[i] = int64(math.Float64bits(applyF64(OpSub, x, b[i])))
	}
}

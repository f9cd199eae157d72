package kernel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rayforcedb/rayforce/rlib/value"
)

func TestPromoteI64F64WidensToF64(t *testing.T) {
	t.Parallel()
	got, ok := Promote(value.TI64, value.TF64)
	require.True(t, ok)
	require.Equal(t, value.TF64, got)
}

func TestPromoteSameTypeIsIdentity(t *testing.T) {
	t.Parallel()
	got, ok := Promote(value.TI64Vector, value.TI64)
	require.True(t, ok)
	require.Equal(t, value.TI64, got)
}

func TestVecVecI64NullPropagation(t *testing.T) {
	t.Parallel()
	a := []int64{1, value.NullI64, 3}
	b := []int64{10, 20, value.NullI64}
	dst := make([]int64, 3)
	VecVecI64(OpAdd, dst, a, b)
	require.Equal(t, []int64{11, value.NullI64, value.NullI64}, dst)
}

func TestDivisionByZeroYieldsNull(t *testing.T) {
	t.Parallel()
	dst := make([]int64, 1)
	VecVecI64(OpDiv, dst, []int64{10}, []int64{0})
	require.Equal(t, value.NullI64, dst[0])

	dstF := make([]float64, 1)
	VecVecF64(OpDiv, dstF, []float64{10}, []float64{0})
	require.True(t, math.IsNaN(dstF[0]))
}

func TestMixedI64F64Widen(t *testing.T) {
	t.Parallel()
	dst := make([]float64, 2)
	MixedI64F64(OpAdd, dst, []int64{1, value.NullI64}, []float64{0.5, 2.0})
	require.Equal(t, 1.5, dst[0])
	require.True(t, math.IsNaN(dst[1]))
}

// TestSubI64F64QuirkPreservesLegacyObservable pins the spec.md §9 bullet-1
// behavior: the I64×F64 subtraction kernel writes F64-promoted bits into a
// result that stays typed I64Vector, rather than truncating to an integer.
func TestSubI64F64QuirkPreservesLegacyObservable(t *testing.T) {
	t.Parallel()
	dst := make([]int64, 2)
	SubI64F64Quirk(dst, []int64{10, value.NullI64}, []float64{2.5, 1.0})

	require.Equal(t, 7.5, math.Float64frombits(uint64(dst[0])))
	require.True(t, math.IsNaN(math.Float64frombits(uint64(dst[1]))))
}

func TestAtomVecAndVecAtomBroadcast(t *testing.T) {
	t.Parallel()
	dst := make([]float64, 3)
	AtomVecF64(OpMul, dst, 2, []float64{1, 2, 3})
	require.Equal(t, []float64{2, 4, 6}, dst)

	VecAtomF64(OpSub, dst, []float64{10, 20, 30}, 5)
	require.Equal(t, []float64{5, 15, 25}, dst)
}

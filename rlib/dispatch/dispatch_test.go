package dispatch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rayforcedb/rayforce/rlib/arena"
	"github.com/rayforcedb/rayforce/rlib/value"
)

func TestAtomAtomAdd(t *testing.T) {
	t.Parallel()
	a := arena.New(arena.DefaultMaxOrder)
	out, err := Call(a, Registry["+"], value.I64Atom(2), value.I64Atom(3))
	require.NoError(t, err)
	require.Equal(t, int64(5), out.(value.Atom).I64())
}

func TestVectorVectorAdd(t *testing.T) {
	t.Parallel()
	a := arena.New(arena.DefaultMaxOrder)
	x, err := value.NewVector(a, value.TI64Vector, 3)
	require.NoError(t, err)
	copy(x.I64s(), []int64{1, 2, 3})
	y, err := value.NewVector(a, value.TI64Vector, 3)
	require.NoError(t, err)
	copy(y.I64s(), []int64{10, 20, 30})

	out, err := Call(a, Registry["+"], x, y)
	require.NoError(t, err)
	require.Equal(t, []int64{11, 22, 33}, out.(*value.Vector).I64s())
}

func TestVectorVectorLengthMismatchFails(t *testing.T) {
	t.Parallel()
	a := arena.New(arena.DefaultMaxOrder)
	x, _ := value.NewVector(a, value.TI64Vector, 2)
	y, _ := value.NewVector(a, value.TI64Vector, 3)
	_, err := Call(a, Registry["+"], x, y)
	require.Error(t, err)
}

func TestAtomVectorBroadcast(t *testing.T) {
	t.Parallel()
	a := arena.New(arena.DefaultMaxOrder)
	y, err := value.NewVector(a, value.TI64Vector, 3)
	require.NoError(t, err)
	copy(y.I64s(), []int64{1, 2, 3})

	out, err := Call(a, Registry["*"], value.I64Atom(10), y)
	require.NoError(t, err)
	require.Equal(t, []int64{10, 20, 30}, out.(*value.Vector).I64s())
}

func TestListListElementwise(t *testing.T) {
	t.Parallel()
	a := arena.New(arena.DefaultMaxOrder)
	xl := value.NewList([]value.Value{value.I64Atom(1), value.I64Atom(2)})
	yl := value.NewList([]value.Value{value.I64Atom(10), value.I64Atom(20)})

	out, err := Call(a, Registry["+"], xl, yl)
	require.NoError(t, err)
	outVec := out.(*value.Vector)
	require.Equal(t, value.TI64Vector, outVec.Type())
	require.Equal(t, []int64{11, 22}, outVec.I64s())
}

func TestListHeterogeneousDowngradesToList(t *testing.T) {
	t.Parallel()
	a := arena.New(arena.DefaultMaxOrder)
	xl := value.NewList([]value.Value{value.I64Atom(1), value.F64Atom(2.5)})
	out, err := Call(a, Registry["+"], xl, value.I64Atom(1))
	require.NoError(t, err)
	outList, ok := out.(*value.List)
	require.True(t, ok)
	require.Equal(t, int64(2), outList.Len())
}

func TestEnumIndirectionComposesOverIndex(t *testing.T) {
	t.Parallel()
	a := arena.New(arena.DefaultMaxOrder)
	idx, err := value.NewVector(a, value.TI64Vector, 3)
	require.NoError(t, err)
	copy(idx.I64s(), []int64{0, 1, 2})

	e, err := value.NewEnum(value.SymbolAtom(1), idx)
	require.NoError(t, err)

	// The op runs over the peeled index; with only one enum operand the
	// result is not re-wrapped as an ENUM.
	out, err := Call(a, Registry["+"], e, value.I64Atom(10))
	require.NoError(t, err)
	outVec, ok := out.(*value.Vector)
	require.True(t, ok)
	require.Equal(t, []int64{10, 11, 12}, outVec.I64s())
}

func TestMixedI64F64VectorWidensToF64(t *testing.T) {
	t.Parallel()
	a := arena.New(arena.DefaultMaxOrder)
	x, _ := value.NewVector(a, value.TI64Vector, 2)
	copy(x.I64s(), []int64{1, 2})
	y, _ := value.NewVector(a, value.TF64Vector, 2)
	copy(y.F64s(), []float64{0.5, 1.5})

	out, err := Call(a, Registry["+"], x, y)
	require.NoError(t, err)
	outVec := out.(*value.Vector)
	require.Equal(t, value.TF64Vector, outVec.Type())
	require.Equal(t, []float64{1.5, 3.5}, outVec.F64s())
}

func TestVectorVectorSubQuirkStaysI64Typed(t *testing.T) {
	t.Parallel()
	a := arena.New(arena.DefaultMaxOrder)
	x, _ := value.NewVector(a, value.TI64Vector, 1)
	copy(x.I64s(), []int64{10})
	y, _ := value.NewVector(a, value.TF64Vector, 1)
	copy(y.F64s(), []float64{2.5})

	out, err := Call(a, Registry["-"], x, y)
	require.NoError(t, err)
	outVec := out.(*value.Vector)
	require.Equal(t, value.TI64Vector, outVec.Type())
	require.Equal(t, 7.5, math.Float64frombits(uint64(outVec.I64s()[0])))
}

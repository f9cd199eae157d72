package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rayforcedb/rayforce/rlib/arena"
	"github.com/rayforcedb/rayforce/rlib/value"
)

func TestPeelEnumReturnsIndexVector(t *testing.T) {
	t.Parallel()
	a := arena.New(arena.DefaultMaxOrder)
	idx, err := value.NewVector(a, value.TI64Vector, 2)
	require.NoError(t, err)
	copy(idx.I64s(), []int64{0, 1})

	e, err := value.NewEnum(value.SymbolAtom(1), idx)
	require.NoError(t, err)

	peeled, indirected := Peel(e)
	require.True(t, indirected)
	require.Same(t, idx, peeled)
}

func TestPeelNonIndirectedIsNoop(t *testing.T) {
	t.Parallel()
	a := arena.New(arena.DefaultMaxOrder)
	v, err := value.NewVector(a, value.TI64Vector, 1)
	require.NoError(t, err)

	peeled, indirected := Peel(v)
	require.False(t, indirected)
	require.Same(t, v, peeled)
}

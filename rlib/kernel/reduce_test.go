package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rayforcedb/rayforce/rlib/value"
)

func TestSumI64SkipsNulls(t *testing.T) {
	t.Parallel()
	sum, ok := SumI64([]int64{1, value.NullI64, 3})
	require.True(t, ok)
	require.Equal(t, int64(4), sum)
}

func TestSumI64AllNullReportsNotSeen(t *testing.T) {
	t.Parallel()
	_, ok := SumI64([]int64{value.NullI64, value.NullI64})
	require.False(t, ok)
}

func TestMinMaxI64(t *testing.T) {
	t.Parallel()
	mx, ok := MaxI64([]int64{3, value.NullI64, 7, 1})
	require.True(t, ok)
	require.Equal(t, int64(7), mx)

	mn, ok := MinI64([]int64{3, value.NullI64, 7, 1})
	require.True(t, ok)
	require.Equal(t, int64(1), mn)
}

func TestCountNonNull(t *testing.T) {
	t.Parallel()
	require.Equal(t, int64(2), CountNonNullI64([]int64{1, value.NullI64, 3}))
}

package kernel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSortPermI64Ascending(t *testing.T) {
	t.Parallel()
	xs := []int64{30, 10, 20}
	perm := SortPermI64(xs)
	dst := make([]int64, 3)
	ApplyPermI64(dst, xs, perm)
	require.Equal(t, []int64{10, 20, 30}, dst)
}

func TestSortPermF64NaNSortsLast(t *testing.T) {
	t.Parallel()
	xs := []float64{3, math.NaN(), 1}
	perm := SortPermF64(xs)
	dst := make([]float64, 3)
	ApplyPermF64(dst, xs, perm)
	require.Equal(t, 1.0, dst[0])
	require.Equal(t, 3.0, dst[1])
	require.True(t, math.IsNaN(dst[2]))
}

func TestSortPermF64SeedScenario(t *testing.T) {
	t.Parallel()
	xs := []float64{3.0, math.NaN(), 1.0, 2.0}
	perm := SortPermF64(xs)
	require.Equal(t, []int64{2, 3, 0, 1}, perm)
}

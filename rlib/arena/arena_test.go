package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrderForBytesRoundsUpToPowerOfTwo(t *testing.T) {
	require.Equal(t, uint8(MinOrder), OrderForBytes(1))
	require.Equal(t, uint8(MinOrder), OrderForBytes(1<<MinOrder))
	require.Equal(t, uint8(20), OrderForBytes(1<<20))
	require.Equal(t, uint8(21), OrderForBytes(1<<20+1))
	require.Equal(t, uint8(32), OrderForBytes(4*1024*1024*1024))
}

func TestAllocFreeRoundTrip(t *testing.T) {
	a := New(10) // 1 KiB pools
	h, err := a.Alloc(64)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(h.Buf), 64+16)

	before := a.Stats()
	a.Free(h)
	after := a.Stats()
	require.Equal(t, before.Allocs, after.Frees)
}

func TestBuddyCoalesce(t *testing.T) {
	a := New(8) // 256-byte pools
	h1, err := a.Alloc(48)
	require.NoError(t, err)
	h2, err := a.Alloc(48)
	require.NoError(t, err)

	// Two equal-order blocks from a freshly committed pool must be buddies:
	// freeing both should coalesce all the way back to one top-order block.
	a.Free(h1)
	a.Free(h2)

	h3, err := a.Alloc(200) // forces a full top-order block
	require.NoError(t, err)
	require.Equal(t, a.maxOrder, h3.Order)
}

func TestReallocGrowsAndCopies(t *testing.T) {
	a := New(12)
	h, err := a.Alloc(16)
	require.NoError(t, err)
	copy(h.Buf[16:], []byte("hello"))

	h2, err := a.Realloc(h, 4096)
	require.NoError(t, err)
	require.Equal(t, "hello", string(h2.Buf[16:21]))
}

func TestStandaloneAboveMaxOrder(t *testing.T) {
	a := New(8) // 256-byte pools
	h, err := a.Alloc(1 << 20)
	require.NoError(t, err)
	require.True(t, h.Standalone())
	a.Free(h) // no-op, GC reclaims
}

func TestBorrowMerge(t *testing.T) {
	main := New(10)
	// Seed main with two whole free pools: each top-order allocation commits
	// its own pool, and blocks from different pools never coalesce, so after
	// the frees main's top-order freelist holds the >= 2 nodes Borrow needs.
	var handles []*Handle
	for i := 0; i < 2; i++ {
		h, err := main.Alloc(1000)
		require.NoError(t, err)
		handles = append(handles, h)
	}
	for _, h := range handles {
		main.Free(h)
	}

	worker := New(10)
	main.Borrow(worker)
	// Worker should now be able to serve an allocation without committing
	// a fresh pool of its own, i.e. PoolsCommit stays zero.
	h, err := worker.Alloc(32)
	require.NoError(t, err)
	require.Equal(t, uint64(0), worker.Stats().PoolsCommit)
	worker.Free(h)

	main.Merge(worker)
}

func TestGCReclaimsFullyFreePools(t *testing.T) {
	a := New(8)
	h, err := a.Alloc(200)
	require.NoError(t, err)
	a.Free(h)
	reclaimed := a.GC()
	require.Equal(t, 1, reclaimed)
}

// Package arena implements RayforceDB's buddy allocator (spec.md §4.1): a
// fixed-header, power-of-two block allocator serving every INTERNAL value's
// backing storage. Free lists are bucketed by order exactly as the spec
// describes; unlike the original C, blocks are addressed by a (slab,
// offset) pair rather than a raw pointer with an intrusive free-list
// pointer written into the block itself — Go's GC already owns the slab
// backing array, so reusing freed payload bytes as link-list storage would
// fight the collector for no benefit. See DESIGN.md for the full rationale.
package arena

import (
	"fmt"
	"math/bits"
	"sync"

	"github.com/rayforcedb/rayforce/internal/rmetrics"
)

// MinOrder is the smallest block order ever handed out: 16 bytes, exactly
// one object header and no payload.
const MinOrder = 4

// DefaultMaxOrder is the largest order served from a pool; anything larger
// is a standalone allocation that bypasses the buddy system entirely and is
// reclaimed by the Go garbage collector instead of being coalesced (spec.md
// §4.1: "never coalesces above MAX_ORDER; those blocks return to the OS").
const DefaultMaxOrder = 24 // 16 MiB pools

// block is one buddy-tree node, free or allocated.
type block struct {
	slab  *slab
	off   int
	order uint8
}

type slab struct {
	buf []byte
}

// Handle is an allocated block returned by Alloc/Realloc. Buf is the raw
// backing storage — the first HeaderSize bytes are reserved for the
// caller's object header, per spec.md §3.2.
type Handle struct {
	Order uint8
	Buf   []byte

	blk *block // nil for standalone (above MaxOrder) allocations
}

// Standalone reports whether h bypassed the buddy pools (order > MaxOrder).
func (h *Handle) Standalone() bool { return h.blk == nil }

// Arena is one buddy-allocator instance. The reactor thread owns the main
// arena; each worker-pool executor owns its own, populated via Borrow/Merge
// around a parallel section (spec.md §4.10).
type Arena struct {
	mu       sync.Mutex
	maxOrder uint8
	free     [][]*block // free[order] = stack of free blocks of that order
	pools    []*slab

	stats   Stats
	metrics *rmetrics.Metrics
}

// SetMetrics attaches m so every Alloc records its block size against
// ArenaAllocBytes (SPEC_FULL.md §10.5); nil (the default) disables this.
func (a *Arena) SetMetrics(m *rmetrics.Metrics) {
	a.mu.Lock()
	a.metrics = m
	a.mu.Unlock()
}

// Stats tracks allocator activity for observability (SPEC_FULL.md §10.5).
type Stats struct {
	Allocs      uint64
	Frees       uint64
	PoolsCommit uint64
	GCReclaimed uint64
}

// New creates an arena whose pools are sized 1<<maxOrder. maxOrder must be
// >= MinOrder.
func New(maxOrder uint8) *Arena {
	if maxOrder < MinOrder {
		maxOrder = MinOrder
	}
	return &Arena{
		maxOrder: maxOrder,
		free:     make([][]*block, maxOrder+1),
	}
}

// orderFor returns the smallest order whose block (including the header)
// can hold payloadBytes additional bytes, per spec.md §4.1:
// "smallest order ≥ ⌈log₂(bytes + 16)⌉".
func orderFor(payloadBytes int) uint8 {
	total := payloadBytes + 16
	if total < 1<<MinOrder {
		return MinOrder
	}
	order := uint8(bits.Len(uint(total - 1)))
	if order < MinOrder {
		order = MinOrder
	}
	return order
}

// OrderForBytes returns the smallest order whose pool size (1<<order) is at
// least n bytes — the translation `--pool-size` (a human-friendly size like
// `4GiB`, parsed via c2h5oh/datasize) needs into the maxOrder New expects.
func OrderForBytes(n uint64) uint8 {
	if n <= 1<<MinOrder {
		return MinOrder
	}
	return uint8(bits.Len64(n - 1))
}

// Alloc serves a block able to hold payloadBytes of payload plus the
// 16-byte header.
func (a *Arena) Alloc(payloadBytes int) (*Handle, error) {
	order := orderFor(payloadBytes)
	if order > a.maxOrder {
		buf := make([]byte, 1<<order)
		a.mu.Lock()
		a.stats.Allocs++
		m := a.metrics
		a.mu.Unlock()
		if m != nil {
			m.ArenaAllocBytes.Add(float64(len(buf)))
		}
		return &Handle{Order: order, Buf: buf}, nil
	}

	a.mu.Lock()
	blk, err := a.allocLocked(order)
	if err != nil {
		a.mu.Unlock()
		return nil, err
	}
	a.stats.Allocs++
	m := a.metrics
	a.mu.Unlock()
	h := &Handle{
		Order: blk.order,
		Buf:   blk.slab.buf[blk.off : blk.off+(1<<blk.order)],
		blk:   blk,
	}
	if m != nil {
		m.ArenaAllocBytes.Add(float64(len(h.Buf)))
	}
	return h, nil
}

func (a *Arena) allocLocked(order uint8) (*block, error) {
	k := order
	for k <= a.maxOrder && len(a.free[k]) == 0 {
		k++
	}
	if k > a.maxOrder {
		if err := a.commitPoolLocked(); err != nil {
			// No retry is made: the error goes straight back to the
			// caller, which propagates it as ERR_MEMORY.
			return nil, err
		}
		k = a.maxOrder
	}
	top := a.popFreeLocked(k)
	return a.splitDownLocked(top, order), nil
}

func (a *Arena) commitPoolLocked() error {
	size := 1 << a.maxOrder
	buf := make([]byte, size)
	sl := &slab{buf: buf}
	a.pools = append(a.pools, sl)
	a.stats.PoolsCommit++
	a.free[a.maxOrder] = append(a.free[a.maxOrder], &block{slab: sl, off: 0, order: a.maxOrder})
	return nil
}

func (a *Arena) popFreeLocked(order uint8) *block {
	list := a.free[order]
	n := len(list)
	blk := list[n-1]
	a.free[order] = list[:n-1]
	return blk
}

func (a *Arena) splitDownLocked(blk *block, target uint8) *block {
	for blk.order > target {
		half := blk.order - 1
		buddyOff := blk.off + (1 << half)
		buddy := &block{slab: blk.slab, off: buddyOff, order: half}
		a.free[half] = append(a.free[half], buddy)
		blk = &block{slab: blk.slab, off: blk.off, order: half}
	}
	return blk
}

// Free releases h back to the arena, coalescing with its buddy while the
// buddy is also free and of the same order (spec.md §4.1).
func (a *Arena) Free(h *Handle) {
	if h == nil || h.blk == nil {
		a.mu.Lock()
		a.stats.Frees++
		a.mu.Unlock()
		return // standalone allocation: the GC reclaims it once unreferenced.
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.freeLocked(h.blk)
	a.stats.Frees++
	h.blk = nil
	h.Buf = nil
}

func (a *Arena) freeLocked(blk *block) {
	for blk.order < a.maxOrder {
		buddyOff := blk.off ^ (1 << blk.order)
		idx := a.findFreeLocked(blk.order, blk.slab, buddyOff)
		if idx < 0 {
			break
		}
		a.removeFreeAtLocked(blk.order, idx)
		if buddyOff < blk.off {
			blk = &block{slab: blk.slab, off: buddyOff, order: blk.order + 1}
		} else {
			blk = &block{slab: blk.slab, off: blk.off, order: blk.order + 1}
		}
	}
	a.free[blk.order] = append(a.free[blk.order], blk)
}

func (a *Arena) findFreeLocked(order uint8, sl *slab, off int) int {
	for i, b := range a.free[order] {
		if b.slab == sl && b.off == off {
			return i
		}
	}
	return -1
}

func (a *Arena) removeFreeAtLocked(order uint8, idx int) {
	list := a.free[order]
	list[idx] = list[len(list)-1]
	a.free[order] = list[:len(list)-1]
}

// Realloc resizes h to hold newPayloadBytes. If the new order is <= the
// current order the block is reused in place (spec.md §4.1: "in-place if
// new order ≤ old order"); otherwise a new block is allocated, the header
// and payload are copied, and the old block is freed.
func (a *Arena) Realloc(h *Handle, newPayloadBytes int) (*Handle, error) {
	newOrder := orderFor(newPayloadBytes)
	if newOrder <= h.Order {
		return h, nil
	}
	nh, err := a.Alloc(newPayloadBytes)
	if err != nil {
		return nil, err
	}
	copy(nh.Buf, h.Buf)
	a.Free(h)
	return nh, nil
}

// GC returns every fully-free top-order pool to the OS (in Go terms: drops
// the arena's last reference to the backing slice so the collector can
// reclaim it). Blocks above MaxOrder are never touched, per spec.md §4.1.
func (a *Arena) GC() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	kept := a.pools[:0]
	reclaimed := 0
	topFree := a.free[a.maxOrder]
	stillFree := topFree[:0]
	freedSlabs := make(map[*slab]bool)
	for _, blk := range topFree {
		freedSlabs[blk.slab] = true
	}
	for _, p := range a.pools {
		if freedSlabs[p] {
			reclaimed++
			continue
		}
		kept = append(kept, p)
	}
	for _, blk := range topFree {
		if !freedSlabs[blk.slab] {
			stillFree = append(stillFree, blk)
		}
	}
	a.pools = kept
	a.free[a.maxOrder] = stillFree
	a.stats.GCReclaimed += uint64(reclaimed)
	return reclaimed
}

// Borrow transfers the head of each of a's non-empty freelists to dst,
// retaining capacity for the caller (spec.md §4.10: "only if freelist has
// ≥2 nodes, so caller retains capacity").
func (a *Arena) Borrow(dst *Arena) {
	a.mu.Lock()
	defer a.mu.Unlock()
	dst.mu.Lock()
	defer dst.mu.Unlock()
	for order := range a.free {
		list := a.free[order]
		if len(list) < 2 {
			continue
		}
		n := len(list)
		blk := list[n-1]
		a.free[order] = list[:n-1]
		if int(blk.order) >= len(dst.free) {
			grown := make([][]*block, blk.order+1)
			copy(grown, dst.free)
			dst.free = grown
		}
		dst.free[blk.order] = append(dst.free[blk.order], blk)
	}
}

// Merge is Borrow's inverse: every block dst currently holds in its
// freelists is returned to a (spec.md §4.10's post-barrier "merges each
// worker arena back into the main one").
func (a *Arena) Merge(dst *Arena) {
	dst.mu.Lock()
	moved := dst.free
	dst.free = make([][]*block, len(dst.free))
	dst.mu.Unlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	for order, list := range moved {
		for _, blk := range list {
			a.freeLocked(blk)
		}
		_ = order
	}
}

// MaxOrder reports the order passed to New, for callers (e.g. the worker
// pool) that need to build a matching sibling arena.
func (a *Arena) MaxOrder() uint8 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.maxOrder
}

// Stats returns a snapshot of allocator counters.
func (a *Arena) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

func (a *Arena) String() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return fmt.Sprintf("arena(maxOrder=%d pools=%d allocs=%d frees=%d)", a.maxOrder, len(a.pools), a.stats.Allocs, a.stats.Frees)
}

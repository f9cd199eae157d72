// Package pool implements the fixed-size worker pool described in spec.md
// §4.10: a Vyukov bounded MPMC ring for tasks (results come back over a
// channel), and the
// prepare/run barrier that demarcates a parallel section.
package pool

import "sync/atomic"

// ring is a Vyukov bounded MPMC queue: a power-of-two slot array where
// each cell carries its own sequence number, so producers/consumers make
// lock-free progress under contention without the ABA hazard a pointer-
// based freelist would have (spec.md §4.10's own design note: "ABA safety
// comes from sequence numbers, not pointers").
type ring struct {
	mask  uint64
	cells []cell
	head  atomic.Uint64 // next slot a consumer claims
	tail  atomic.Uint64 // next slot a producer claims
}

type cell struct {
	seq atomic.Uint64
	val Task
}

// newRing allocates a ring of capacity rounded up to the next power of two.
func newRing(capacity int) *ring {
	n := 1
	for n < capacity {
		n <<= 1
	}
	r := &ring{mask: uint64(n - 1), cells: make([]cell, n)}
	for i := range r.cells {
		r.cells[i].seq.Store(uint64(i))
	}
	return r
}

// push enqueues t, returning false if the ring is momentarily full (caller
// backs off and retries — spec.md: "a bounded spin backoff avoids livelock").
func (r *ring) push(t Task) bool {
	pos := r.tail.Load()
	for {
		c := &r.cells[pos&r.mask]
		seq := c.seq.Load()
		diff := int64(seq) - int64(pos)
		switch {
		case diff == 0:
			if r.tail.CompareAndSwap(pos, pos+1) {
				c.val = t
				c.seq.Store(pos + 1)
				return true
			}
		case diff < 0:
			return false
		default:
			pos = r.tail.Load()
		}
	}
}

// depth estimates the number of tasks currently queued — tail minus head,
// read without synchronizing the two loads, so it is a momentary snapshot
// rather than an exact count (fine for the PoolQueueDepth gauge it feeds).
func (r *ring) depth() int {
	d := int64(r.tail.Load() - r.head.Load())
	if d < 0 {
		return 0
	}
	return int(d)
}

// pop dequeues the oldest task, reporting false if the ring is empty.
func (r *ring) pop() (Task, bool) {
	pos := r.head.Load()
	for {
		c := &r.cells[pos&r.mask]
		seq := c.seq.Load()
		diff := int64(seq) - int64(pos+1)
		switch {
		case diff == 0:
			if r.head.CompareAndSwap(pos, pos+1) {
				t := c.val
				c.val = Task{}
				c.seq.Store(pos + r.mask + 1)
				return t, true
			}
		case diff < 0:
			return Task{}, false
		default:
			pos = r.head.Load()
		}
	}
}

// Package timer implements RayforceDB's timer heap (spec.md §4.13): a
// min-heap of absolute-expiry callbacks the reactor consults every loop
// iteration.
package timer

import (
	"container/heap"
	"sync"

	"github.com/rayforcedb/rayforce/rlib/value"
)

// Entry is one scheduled timer: {id, tic (period), exp (next firing), num
// (remaining repeats, -1 = infinite), callback}, exactly as spec.md §4.13
// describes it.
type Entry struct {
	ID       int64
	TicMs    int64
	ExpMs    int64
	Num      int64
	Callback *value.Lambda

	index int // heap.Interface bookkeeping
}

// Invoke is the signature the reactor supplies to call a fired timer's
// callback against the root evaluator (turbo/timer does not import
// core/eval, and core/eval does not import turbo/timer; Scheduler satisfies
// core/eval.Timers structurally).
type Invoke func(cb *value.Lambda, nowMillis int64)

// Heap is a thread-safe min-heap of Entry ordered by ExpMs, plus a
// monotonic id counter. Deletion is an O(n) scan + sift, per spec.md
// §4.13 ("Deletion is O(n) scan + sift-down").
type Heap struct {
	mu      sync.Mutex
	entries entryHeap
	nextID  int64
}

// New returns an empty timer heap.
func New() *Heap {
	return &Heap{}
}

// Schedule inserts a new repeating (or one-shot, num==1) timer firing
// first at nowMillis+ticMillis, and returns its id. num == -1 means
// infinite repeats.
func (h *Heap) Schedule(nowMillis, ticMillis, num int64, cb *value.Lambda) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	heap.Push(&h.entries, &Entry{
		ID:       id,
		TicMs:    ticMillis,
		ExpMs:    nowMillis + ticMillis,
		Num:      num,
		Callback: cb,
	})
	return id
}

// Cancel removes the timer with the given id, if present, reporting
// whether it found one.
func (h *Heap) Cancel(id int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, e := range h.entries {
		if e.ID == id {
			heap.Remove(&h.entries, i)
			return true
		}
	}
	return false
}

// NextTimeoutMillis reports how long until the soonest timer fires, or -1
// if the heap is empty — the exact value the reactor's poll_wait call uses
// as its timeout (spec.md §4.13/§4.11).
func (h *Heap) NextTimeoutMillis(nowMillis int64) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		return -1
	}
	d := h.entries[0].ExpMs - nowMillis
	if d < 0 {
		return 0
	}
	return d
}

// FireDue invokes every timer whose expiry has passed as of nowMillis,
// rescheduling repeaters (advancing exp by tic and reinserting) and
// dropping exhausted ones, per spec.md §4.13's firing rule.
func (h *Heap) FireDue(nowMillis int64, invoke Invoke) {
	for {
		h.mu.Lock()
		if len(h.entries) == 0 || h.entries[0].ExpMs > nowMillis {
			h.mu.Unlock()
			return
		}
		e := heap.Pop(&h.entries).(*Entry)
		if e.Num > 1 {
			e.Num--
			e.ExpMs += e.TicMs
			heap.Push(&h.entries, e)
		} else if e.Num < 0 {
			e.ExpMs += e.TicMs
			heap.Push(&h.entries, e)
		}
		h.mu.Unlock()

		invoke(e.Callback, nowMillis)
	}
}

// entryHeap implements container/heap.Interface over *Entry ordered by
// ExpMs — the one stdlib-only data structure in this codebase's design:
// no library in the example pack supplies a priority queue, so the
// teacher's own reach-for-stdlib-when-nothing-fits pattern applies here.
type entryHeap []*Entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].ExpMs < h[j].ExpMs }
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*Entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

package timer

import (
	"time"

	"github.com/rayforcedb/rayforce/rlib/value"
)

// Scheduler adapts Heap to core/eval.Timers, stamping each Schedule call
// with the wall clock so eval's `timer` special form doesn't need to know
// about absolute-expiry bookkeeping.
type Scheduler struct {
	h *Heap
}

// NewScheduler wraps h for use as a core/eval.Timers implementation.
func NewScheduler(h *Heap) *Scheduler {
	return &Scheduler{h: h}
}

// Schedule satisfies core/eval.Timers.
func (s *Scheduler) Schedule(ticMillis, num int64, callback *value.Lambda) int64 {
	return s.h.Schedule(time.Now().UnixMilli(), ticMillis, num, callback)
}

// Source adapts Heap to turbo/reactor.TimerSource by binding a fixed
// Invoke callback (typically one that re-enters the root evaluator).
type Source struct {
	h      *Heap
	invoke Invoke
}

// NewSource wraps h for use as a reactor.TimerSource, firing due timers
// through invoke.
func NewSource(h *Heap, invoke Invoke) *Source {
	return &Source{h: h, invoke: invoke}
}

func (s *Source) NextTimeoutMillis(nowMillis int64) int64 { return s.h.NextTimeoutMillis(nowMillis) }
func (s *Source) FireDue(nowMillis int64)                 { s.h.FireDue(nowMillis, s.invoke) }

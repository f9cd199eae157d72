// Package reactor implements RayforceDB's single-threaded I/O multiplexer
// (spec.md §4.11): a thin cross-platform wrapper over epoll/kqueue (a
// select(2)-based poller elsewhere) that owns the registered sockets and
// drives the timer heap, and that is the only thread
// allowed to touch shared values outside a worker-pool parallel section.
package reactor

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Event is the set of readiness bits a poller reports for a registered fd.
type Event uint8

const (
	EventReadable Event = 1 << iota
	EventWritable
	EventHangup
)

// Callback is invoked by the reactor loop when a registered fd becomes
// ready. It returns false to request deregistration (e.g. on EOF).
type Callback func(fd int, ev Event) bool

// poller is the OS-specific multiplexer the reactor drives. Exactly one
// implementation is compiled in per GOOS (epoll_linux.go, kqueue_darwin.go,
// poll_fallback.go).
type poller interface {
	add(fd int, want Event) error
	remove(fd int) error
	wait(timeoutMillis int) ([]readyFD, error)
	close() error
}

type readyFD struct {
	fd int
	ev Event
}

// Selector is the reactor's per-fd state record (spec.md §4.11's "the
// reactor's per-fd state record holding buffers, callbacks, and protocol
// cursors"). Protocol layers (turbo/ipc) embed this or store one per
// connection.
type Selector struct {
	FD       int
	OnEvent  Callback
	UserData any
}

// Reactor is the main-thread event loop: one instance per process, owning
// the multiplexer, the control pipe used for cancellation, and the
// registered selector set.
type Reactor struct {
	mu        sync.Mutex
	p         poller
	selectors map[int]*Selector

	ctrlR, ctrlW *os.File
	sigCh        chan os.Signal

	code    int
	stopped bool

	timeouts TimerSource
}

// TimerSource lets the reactor consult the timer heap (turbo/timer) for its
// next wake deadline without importing that package directly;
// turbo/timer.Source implements it.
type TimerSource interface {
	// NextTimeoutMillis returns the number of milliseconds until the next
	// timer fires, or -1 if none are pending (spec.md §4.13:
	// "the reactor consults next_timeout() each loop iteration").
	NextTimeoutMillis(nowMillis int64) int64
	// FireDue invokes every timer whose expiry has passed as of nowMillis.
	FireDue(nowMillis int64)
}

// New builds a reactor with its OS-appropriate poller and control pipe.
func New(timers TimerSource) (*Reactor, error) {
	p, err := newPoller()
	if err != nil {
		return nil, err
	}
	r, w, err := os.Pipe()
	if err != nil {
		p.close()
		return nil, err
	}
	rx := &Reactor{
		p:         p,
		selectors: make(map[int]*Selector),
		ctrlR:     r,
		ctrlW:     w,
		timeouts:  timers,
	}
	if err := p.add(int(r.Fd()), EventReadable); err != nil {
		r.Close()
		w.Close()
		p.close()
		return nil, err
	}
	return rx, nil
}

// Register adds sel to the multiplexer for the readiness bits in want.
func (r *Reactor) Register(sel *Selector, want Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selectors[sel.FD] = sel
	return r.p.add(sel.FD, want)
}

// Deregister removes fd from the multiplexer and the selector table.
func (r *Reactor) Deregister(fd int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.selectors, fd)
	return r.p.remove(fd)
}

// WatchSignals arms SIGINT cancellation: a byte written to the control pipe
// unblocks poll_wait and sets Code to a nonzero value, per spec.md §4.11
// ("the reactor owns a control pipe... used by the SIGINT handler to
// unblock the multiplexer").
func (r *Reactor) WatchSignals() {
	r.sigCh = make(chan os.Signal, 1)
	signal.Notify(r.sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-r.sigCh
		r.Cancel(1)
	}()
}

// Cancel requests a graceful stop with the given exit code by waking the
// poller via the control pipe (spec.md §4.11's cancellation mechanism).
func (r *Reactor) Cancel(code int) {
	r.mu.Lock()
	if r.code == 0 {
		r.code = code
	}
	r.mu.Unlock()
	r.ctrlW.Write([]byte{1})
}

// Code returns the exit code Cancel set, or 0 if the loop is still running
// normally.
func (r *Reactor) Code() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.code
}

// Run drives the event loop until Cancel is called: each iteration blocks
// in poll_wait for at most the timer heap's next deadline, fires any due
// timers, then dispatches readiness events to their selectors' callbacks
// (spec.md §4.11 steps 1-3).
func (r *Reactor) Run(nowMillis func() int64) error {
	for {
		if r.Code() != 0 {
			return nil
		}
		timeout := -1
		if r.timeouts != nil {
			timeout = clampTimeout(r.timeouts.NextTimeoutMillis(nowMillis()))
		}
		ready, err := r.p.wait(timeout)
		if err != nil {
			return err
		}
		if r.timeouts != nil {
			r.timeouts.FireDue(nowMillis())
		}
		for _, rd := range ready {
			if rd.fd == int(r.ctrlR.Fd()) {
				var buf [64]byte
				r.ctrlR.Read(buf[:])
				continue
			}
			r.mu.Lock()
			sel, ok := r.selectors[rd.fd]
			r.mu.Unlock()
			if !ok {
				continue
			}
			if !sel.OnEvent(rd.fd, rd.ev) {
				r.Deregister(rd.fd)
			}
		}
	}
}

// BlockOn drives the loop, processing any intervening inbound events, until
// done reports true — the mechanism a sync IPC send uses to wait for its
// matching response without re-entering Run from a nested call site (spec.md
// §4.11 point 6: "sync send blocks the reactor loop inside block_on,
// processing any intervening inbound requests... before returning").
func (r *Reactor) BlockOn(nowMillis func() int64, done func() bool) error {
	for !done() {
		if r.Code() != 0 {
			return nil
		}
		timeout := 50
		if r.timeouts != nil {
			t := clampTimeout(r.timeouts.NextTimeoutMillis(nowMillis()))
			if t >= 0 && t < timeout {
				timeout = t
			}
		}
		ready, err := r.p.wait(timeout)
		if err != nil {
			return err
		}
		if r.timeouts != nil {
			r.timeouts.FireDue(nowMillis())
		}
		for _, rd := range ready {
			if rd.fd == int(r.ctrlR.Fd()) {
				var buf [64]byte
				r.ctrlR.Read(buf[:])
				continue
			}
			r.mu.Lock()
			sel, ok := r.selectors[rd.fd]
			r.mu.Unlock()
			if !ok {
				continue
			}
			if !sel.OnEvent(rd.fd, rd.ev) {
				r.Deregister(rd.fd)
			}
		}
	}
	return nil
}

// Close releases the poller and control pipe.
func (r *Reactor) Close() error {
	r.ctrlR.Close()
	r.ctrlW.Close()
	return r.p.close()
}

func clampTimeout(ms int64) int {
	if ms < 0 {
		return -1
	}
	if ms > 1<<30 {
		return 1 << 30
	}
	return int(ms)
}

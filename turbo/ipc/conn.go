package ipc

import (
	"bufio"
	"net"
	"sync"

	"github.com/rayforcedb/rayforce/rlib/arena"
	"github.com/rayforcedb/rayforce/rlib/serde"
	"github.com/rayforcedb/rayforce/rlib/symtab"
	"github.com/rayforcedb/rayforce/rlib/value"
)

// Handler receives inbound frames. OnAsync fires for MsgAsync frames (no
// reply expected). OnSync fires for MsgSync frames and must return the
// value sent back as the matching MsgResponse frame.
type Handler struct {
	OnAsync func(v value.Value)
	OnSync  func(v value.Value) value.Value
}

// outFrame is one queued outbound message, the Go-channel equivalent of
// spec.md §4.12 point 5's "per-selector FIFO of (object, msgtype)" — a
// buffered channel gives the same FIFO-with-backpressure behavior a
// reactor's toggled POLLOUT interest would, without this package needing
// to drive raw socket readiness itself (see DESIGN.md on why turbo/ipc
// sits on net.Conn + goroutines rather than directly on turbo/reactor's
// fd-level callbacks).
type outFrame struct {
	kind serde.MsgKind
	v    value.Value
}

// Conn is one established, post-handshake IPC connection: a recv loop
// (the WAIT_HEADER → WAIT_BODY → DISPATCH portion of spec.md §4.12 point
// 4 — WAIT_HANDSHAKE already completed by the time a Conn exists) and a
// send loop draining a FIFO queue.
type Conn struct {
	nc          net.Conn
	br          *bufio.Reader
	arena       *arena.Arena
	tab         *symtab.Table
	PeerVersion byte

	handler Handler

	sendQ chan outFrame

	mu       sync.Mutex
	replyQ   []chan value.Value // FIFO of pending sync-send waiters, completed in arrival order
	closed   bool
	closeErr error
	doneCh   chan struct{}
}

// NewHandler builds a Handler bound to its own Conn — a factory rather
// than a shared Handler value, since the callbacks typically want to call
// back into c (e.g. to push an unsolicited async notification) and c
// doesn't exist until after the handshake completes.
type NewHandler func(c *Conn) Handler

// Accept completes the server side of the handshake over an already
// accepted net.Conn and starts its recv/send loops.
func Accept(nc net.Conn, a *arena.Arena, tab *symtab.Table, newH NewHandler) (*Conn, error) {
	return newConn(nc, a, tab, newH)
}

// Dial connects to addr, completes the client side of the handshake, and
// starts its recv/send loops.
func Dial(addr string, a *arena.Arena, tab *symtab.Table, newH NewHandler) (*Conn, error) {
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return newConn(nc, a, tab, newH)
}

func newConn(nc net.Conn, a *arena.Arena, tab *symtab.Table, newH NewHandler) (*Conn, error) {
	br := bufio.NewReader(nc)
	peerVersion, err := handshake(nc, br)
	if err != nil {
		nc.Close()
		return nil, err
	}
	c := &Conn{
		nc:          nc,
		br:          br,
		arena:       a,
		tab:         tab,
		PeerVersion: peerVersion,
		sendQ:       make(chan outFrame, 64),
		doneCh:      make(chan struct{}),
	}
	c.handler = newH(c)
	go c.sendLoop()
	go c.recvLoop()
	return c, nil
}

// SendAsync enqueues v as a MsgAsync frame; no reply is expected.
func (c *Conn) SendAsync(v value.Value) {
	c.sendQ <- outFrame{kind: serde.MsgAsync, v: v}
}

// SyncSend enqueues v as a MsgSync frame and blocks until the matching
// MsgResponse arrives, honoring spec.md §4.12 point 6 ("processing any
// intervening inbound requests on the same socket before returning the
// matching response") — the recv loop keeps dispatching other frames
// concurrently; only this call's own goroutine blocks.
func (c *Conn) SyncSend(v value.Value) (value.Value, error) {
	wait := make(chan value.Value, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, c.closeErr
	}
	c.replyQ = append(c.replyQ, wait)
	c.mu.Unlock()

	c.sendQ <- outFrame{kind: serde.MsgSync, v: v}

	select {
	case resp := <-wait:
		return resp, nil
	case <-c.doneCh:
		return nil, c.closeErr
	}
}

// Close shuts down the connection and wakes any blocked SyncSend callers.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.closeErr == nil {
		c.closeErr = net.ErrClosed
	}
	close(c.doneCh)
	c.mu.Unlock()
	return c.nc.Close()
}

func (c *Conn) sendLoop() {
	for f := range c.sendQ {
		if err := serde.WriteFrame(c.nc, f.kind, f.v); err != nil {
			c.Close()
			return
		}
	}
}

func (c *Conn) recvLoop() {
	for {
		kind, v, err := serde.ReadFrame(c.br, c.arena, c.tab)
		if err != nil {
			c.failPending(err)
			c.Close()
			return
		}
		switch kind {
		case serde.MsgAsync:
			if c.handler.OnAsync != nil {
				c.handler.OnAsync(v)
			}
		case serde.MsgSync:
			var reply value.Value = value.Null
			if c.handler.OnSync != nil {
				reply = c.handler.OnSync(v)
			}
			c.sendQ <- outFrame{kind: serde.MsgResponse, v: reply}
		case serde.MsgResponse:
			c.completeOldestReply(v)
		}
	}
}

// completeOldestReply delivers v to the oldest still-pending SyncSend
// waiter — responses are matched to sends in FIFO arrival order, per
// spec.md §4.12 point 3 ("peer must reply with type 2 in order"), not by
// an explicit correlation id.
func (c *Conn) completeOldestReply(v value.Value) {
	c.mu.Lock()
	if len(c.replyQ) == 0 {
		c.mu.Unlock()
		return
	}
	wait := c.replyQ[0]
	c.replyQ = c.replyQ[1:]
	c.mu.Unlock()
	wait <- v
}

// failPending records the fatal recv error; Close (called by the caller
// right after this) closes doneCh, which is what actually wakes any
// blocked SyncSend callers.
func (c *Conn) failPending(err error) {
	c.mu.Lock()
	c.replyQ = nil
	c.closeErr = err
	c.mu.Unlock()
}

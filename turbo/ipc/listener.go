package ipc

import (
	"net"

	"github.com/rayforcedb/rayforce/rlib/arena"
	"github.com/rayforcedb/rayforce/rlib/symtab"
)

// Listener accepts connections on addr and completes the handshake plus
// recv/send-loop startup for each (spec.md §4.12's server side).
type Listener struct {
	ln    net.Listener
	arena *arena.Arena
	tab   *symtab.Table
	newH  NewHandler
}

// Listen starts accepting TCP connections on addr.
func Listen(addr string, a *arena.Arena, tab *symtab.Table, newH NewHandler) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln, arena: a, tab: tab, newH: newH}, nil
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Serve accepts connections until the listener is closed, handing each one
// to a goroutine that completes the handshake and runs its loops. It
// returns once Close stops the accept loop.
func (l *Listener) Serve() error {
	for {
		nc, err := l.ln.Accept()
		if err != nil {
			return err
		}
		go Accept(nc, l.arena, l.tab, l.newH)
	}
}

// Close stops Serve's accept loop.
func (l *Listener) Close() error {
	return l.ln.Close()
}

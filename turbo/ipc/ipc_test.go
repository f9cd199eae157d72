package ipc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rayforcedb/rayforce/rlib/arena"
	"github.com/rayforcedb/rayforce/rlib/symtab"
	"github.com/rayforcedb/rayforce/rlib/value"
)

func TestHandshakeAndSyncSendRoundTrip(t *testing.T) {
	tab := symtab.New()
	serverArena := arena.New(arena.DefaultMaxOrder)
	clientArena := arena.New(arena.DefaultMaxOrder)

	asyncReceived := make(chan int64, 1)
	ln, err := Listen("127.0.0.1:0", serverArena, tab, func(c *Conn) Handler {
		return Handler{
			OnSync: func(v value.Value) value.Value {
				n := v.(value.Atom).I64()
				return value.I64Atom(n * 2)
			},
			OnAsync: func(v value.Value) {
				asyncReceived <- v.(value.Atom).I64()
			},
		}
	})
	require.NoError(t, err)
	defer ln.Close()
	go ln.Serve()

	client, err := Dial(ln.Addr().String(), clientArena, tab, func(c *Conn) Handler {
		return Handler{}
	})
	require.NoError(t, err)
	defer client.Close()

	resp, err := client.SyncSend(value.I64Atom(21))
	require.NoError(t, err)
	require.Equal(t, int64(42), resp.(value.Atom).I64())

	client.SendAsync(value.I64Atom(99))
	select {
	case got := <-asyncReceived:
		require.Equal(t, int64(99), got)
	case <-time.After(time.Second):
		t.Fatal("async frame never arrived")
	}
}

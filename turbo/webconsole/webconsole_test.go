package webconsole

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestServeWSEvaluatesAndReplies(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	c := New(addr, func(src string) (string, bool) {
		return "echo:" + src, false
	})
	go c.ListenAndServe()
	defer c.Close()

	var conn *websocket.Conn
	for i := 0; i < 20; i++ {
		conn, _, err = websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(request{Src: "1+1"}))
	var resp response
	require.NoError(t, conn.ReadJSON(&resp))
	require.True(t, strings.HasPrefix(resp.Output, "echo:1+1"))
	require.False(t, resp.IsError)
}

func TestBroadcastPushesToConnectedClients(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	c := New(addr, func(src string) (string, bool) {
		return "echo:" + src, false
	})
	go c.ListenAndServe()
	defer c.Close()

	var conn *websocket.Conn
	for i := 0; i < 20; i++ {
		conn, _, err = websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, err)
	defer conn.Close()

	// give serveWS's registration goroutine time to add conn to c.clients
	// before a server-initiated broadcast races it.
	time.Sleep(20 * time.Millisecond)
	c.Broadcast("timer fired", false)

	var resp response
	require.NoError(t, conn.ReadJSON(&resp))
	require.Equal(t, "timer fired", resp.Output)
	require.False(t, resp.IsError)
}

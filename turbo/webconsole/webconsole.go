// Package webconsole implements the optional browser-facing console
// bridge (SPEC_FULL.md §10.7): a chi-routed HTTP server exposing a
// websocket endpoint that streams evaluation results and accepts
// expressions to run, gated behind the --console-addr flag.
package webconsole

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
)

// Eval is the console's bridge into the running instance: it evaluates
// src and returns its textual rendering (console output doesn't carry
// live value.Value references across the HTTP boundary, so rendering
// happens before Eval returns).
type Eval func(src string) (output string, isError bool)

// Console serves the websocket bridge on its own HTTP server, independent
// of any IPC listener.
type Console struct {
	srv      *http.Server
	upgrader websocket.Upgrader
	eval     Eval

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// New builds a Console bound to addr, routing a single "/ws" endpoint
// through chi middleware (request logging + permissive CORS, matching the
// ambient-logging/CORS texture the teacher's own HTTP surfaces carry).
func New(addr string, eval Eval) *Console {
	c := &Console{
		eval:     eval,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		clients:  make(map[*websocket.Conn]struct{}),
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))
	r.Get("/ws", c.serveWS)

	c.srv = &http.Server{Addr: addr, Handler: r}
	return c
}

// ListenAndServe blocks serving the console until the server is shut down.
func (c *Console) ListenAndServe() error {
	err := c.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close drops every connected websocket client and closes the HTTP server
// at once (http.Server.Close; there is no grace period).
func (c *Console) Close() error {
	c.mu.Lock()
	for conn := range c.clients {
		conn.Close()
	}
	c.clients = nil
	c.mu.Unlock()
	return c.srv.Close()
}

type request struct {
	Src string `json:"src"`
}

type response struct {
	Output  string `json:"output"`
	IsError bool   `json:"is_error"`
	AtMs    int64  `json:"at_ms"`
}

func (c *Console) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.clients[conn] = struct{}{}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.clients, conn)
		c.mu.Unlock()
		conn.Close()
	}()

	for {
		var req request
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		output, isErr := c.eval(req.Src)
		resp := response{Output: output, IsError: isErr, AtMs: time.Now().UnixMilli()}
		if err := conn.WriteJSON(resp); err != nil {
			return
		}
	}
}

// Broadcast pushes resp to every currently connected client, used for
// out-of-band console messages (e.g. a timer callback's output) that
// didn't originate from a client request.
func (c *Console) Broadcast(output string, isErr bool) {
	resp := response{Output: output, IsError: isErr, AtMs: time.Now().UnixMilli()}
	b, err := json.Marshal(resp)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for conn := range c.clients {
		conn.WriteMessage(websocket.TextMessage, b)
	}
}

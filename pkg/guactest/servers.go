// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package guactest

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// SessionUUID is the fixed session UUID announced by the test servers.
const SessionUUID = "f81d4fae-7dec-11d0-a765-00a0c91e6bf6"

// WSURL rewrites an httptest server URL into its WebSocket form.
func WSURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// NewWSServer starts a guacd-style WebSocket endpoint. Every accepted
// connection is handed to the given session function on its own goroutine.
func NewWSServer(session func(conn *websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{Subprotocols: []string{"guacamole"}}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		session(conn)
	}))
}

// HTTPServer is a minimal long-polling guacd endpoint. Instruction data
// queued via QueueRead is delivered by one read request each, terminated by
// the zero-length element; client writes accumulate in Writes.
type HTTPServer struct {
	// Writes receives the body of every write POST.
	Writes chan []byte

	server *httptest.Server
	reads  chan []byte

	mutex     sync.Mutex
	connected bool
}

// NewHTTPServer starts an HTTPServer. Endpoint routing follows the tunnel
// protocol's query-string conventions.
func NewHTTPServer() *HTTPServer {
	backend := &HTTPServer{
		Writes: make(chan []byte, 64),
		reads:  make(chan []byte, 64),
	}

	router := mux.NewRouter()
	router.NewRoute().
		Methods(http.MethodPost).
		MatcherFunc(matchQuery("connect")).
		HandlerFunc(backend.handleConnect)
	router.NewRoute().
		Methods(http.MethodGet).
		MatcherFunc(matchQueryPrefix("read:" + SessionUUID + ":")).
		HandlerFunc(backend.handleRead)
	router.NewRoute().
		Methods(http.MethodPost).
		MatcherFunc(matchQuery("write:" + SessionUUID)).
		HandlerFunc(backend.handleWrite)

	backend.server = httptest.NewServer(router)
	return backend
}

func matchQuery(query string) mux.MatcherFunc {
	return func(r *http.Request, _ *mux.RouteMatch) bool {
		return r.URL.RawQuery == query
	}
}

func matchQueryPrefix(prefix string) mux.MatcherFunc {
	return func(r *http.Request, _ *mux.RouteMatch) bool {
		return strings.HasPrefix(r.URL.RawQuery, prefix)
	}
}

// URL returns the tunnel base URL.
func (backend *HTTPServer) URL() string {
	return backend.server.URL
}

// Close shuts the server down.
func (backend *HTTPServer) Close() {
	backend.server.Close()
}

// QueueRead queues instruction bytes for delivery by the next read request.
func (backend *HTTPServer) QueueRead(wire []byte) {
	backend.reads <- wire
}

func (backend *HTTPServer) handleConnect(w http.ResponseWriter, r *http.Request) {
	backend.mutex.Lock()
	backend.connected = true
	backend.mutex.Unlock()

	_, _ = fmt.Fprint(w, SessionUUID)
}

func (backend *HTTPServer) handleRead(w http.ResponseWriter, r *http.Request) {
	backend.mutex.Lock()
	connected := backend.connected
	backend.mutex.Unlock()
	if !connected {
		w.Header().Set("Guacamole-Status-Code", "516") // RESOURCE_NOT_FOUND
		w.Header().Set("Guacamole-Error-Message", "No such session")
		w.WriteHeader(http.StatusNotFound)
		return
	}

	select {
	case wire := <-backend.reads:
		_, _ = w.Write(wire)
		_, _ = w.Write([]byte("0.;"))
	case <-r.Context().Done():
	}
}

func (backend *HTTPServer) handleWrite(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	backend.Writes <- body
}

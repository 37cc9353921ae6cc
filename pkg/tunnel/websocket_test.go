// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tunnel

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/glyptodon/guacamole-go/pkg/protocol"
)

const testSessionUUID = "f81d4fae-7dec-11d0-a765-00a0c91e6bf6"

// startWebSocketServer runs a minimal guacd-style WebSocket endpoint which
// announces a session UUID and echoes a fixed instruction, then records
// everything the client sends into sent.
func startWebSocketServer(t *testing.T, sent chan<- string) *httptest.Server {
	upgrader := websocket.Upgrader{Subprotocols: []string{wsSubprotocol}}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "token" {
			t.Errorf("handshake data missing from query, got %q", r.URL.RawQuery)
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer func() { _ = conn.Close() }()

		uuidInstruction := protocol.Encode(protocol.InternalDataOpcode, testSessionUUID)
		if err := conn.WriteMessage(websocket.TextMessage, uuidInstruction); err != nil {
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, protocol.Encode("sync", "0")); err != nil {
			return
		}

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			sent <- string(data)
		}
	}))
}

func TestWebSocketTunnel(t *testing.T) {
	sent := make(chan string, 16)
	server := startWebSocketServer(t, sent)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	tun := NewWebSocketTunnel(wsURL)

	instructions := make(chan protocol.Instruction, 16)
	states := make(chan State, 16)
	tun.SetOnInstruction(func(ins protocol.Instruction) { instructions <- ins })
	tun.SetOnStateChange(func(state State) { states <- state })

	if err := tun.Connect("token"); err != nil {
		t.Fatal(err)
	}
	defer tun.Disconnect()

	select {
	case state := <-states:
		if state != Open {
			t.Fatalf("expected OPEN, got %v", state)
		}
	case <-time.After(time.Second):
		t.Fatal("tunnel did not open")
	}

	select {
	case ins := <-instructions:
		if ins.Opcode != "sync" || ins.Args[0] != "0" {
			t.Fatalf("unexpected instruction %v", ins)
		}
	case <-time.After(time.Second):
		t.Fatal("instruction was not delivered")
	}

	// The internal-data instruction must have carried the UUID without
	// reaching the consumer.
	if uuid := tun.UUID(); uuid != testSessionUUID {
		t.Fatalf("expected UUID %q, got %q", testSessionUUID, uuid)
	}

	tun.SendMessage("key", "65", "1")
	select {
	case wire := <-sent:
		if wire != "3.key,2.65,1.1;" {
			t.Fatalf("unexpected wire data %q", wire)
		}
	case <-time.After(time.Second):
		t.Fatal("send did not reach the server")
	}
}

func TestWebSocketTunnelSendAfterClose(t *testing.T) {
	sent := make(chan string, 16)
	server := startWebSocketServer(t, sent)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	tun := NewWebSocketTunnel(wsURL)

	if err := tun.Connect("token"); err != nil {
		t.Fatal(err)
	}
	tun.Disconnect()

	if tun.State() != Closed {
		t.Fatal("tunnel must be closed after Disconnect")
	}

	// Must be silently ignored.
	tun.SendMessage("key", "65", "1")

	select {
	case wire := <-sent:
		t.Fatalf("send after close leaked %q", wire)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWebSocketTunnelConnectFailure(t *testing.T) {
	tun := NewWebSocketTunnel("ws://127.0.0.1:1") // nothing listens here

	closed := make(chan struct{})
	tun.SetOnStateChange(func(state State) {
		if state == Closed {
			close(closed)
		}
	})

	if err := tun.Connect(""); err == nil {
		t.Fatal("expected connect to fail")
	}

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("tunnel did not transition to CLOSED")
	}
}

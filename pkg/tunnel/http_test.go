// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tunnel

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glyptodon/guacamole-go/pkg/protocol"
	"github.com/glyptodon/guacamole-go/pkg/status"
)

// httpTunnelServer is a minimal long-poll endpoint: connect returns a UUID,
// the first read delivers a fixed payload terminated by a zero-length
// element, later reads block until the server closes, and writes are
// recorded.
type httpTunnelServer struct {
	mutex  sync.Mutex
	writes []string
}

func (server *httpTunnelServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.RawQuery

	switch {
	case query == "connect":
		_, _ = fmt.Fprint(w, testSessionUUID)

	case strings.HasPrefix(query, "read:"+testSessionUUID+":0"):
		_, _ = w.Write(protocol.Encode("sync", "0"))
		_, _ = w.Write([]byte("0.;"))

	case strings.HasPrefix(query, "read:"):
		// Long poll with nothing to say; park until the client goes away.
		<-r.Context().Done()

	case strings.HasPrefix(query, "write:"+testSessionUUID):
		body, _ := io.ReadAll(r.Body)
		server.mutex.Lock()
		server.writes = append(server.writes, string(body))
		server.mutex.Unlock()

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestHTTPTunnel(t *testing.T) {
	backend := &httpTunnelServer{}
	server := httptest.NewServer(backend)
	defer server.Close()

	tun := NewHTTPTunnel(server.URL)

	instructions := make(chan protocol.Instruction, 16)
	tun.SetOnInstruction(func(ins protocol.Instruction) { instructions <- ins })

	if err := tun.Connect("token"); err != nil {
		t.Fatal(err)
	}
	defer tun.Disconnect()

	if tun.State() != Open {
		t.Fatal("tunnel must be open after connect")
	}
	if uuid := tun.UUID(); uuid != testSessionUUID {
		t.Fatalf("expected UUID %q, got %q", testSessionUUID, uuid)
	}

	select {
	case ins := <-instructions:
		if ins.Opcode != "sync" || ins.Args[0] != "0" {
			t.Fatalf("unexpected instruction %v", ins)
		}
	case <-time.After(time.Second):
		t.Fatal("instruction was not delivered from the read response")
	}

	// Outbound data must be POSTed to the write endpoint.
	tun.SendMessage("key", "65", "1")

	deadline := time.Now().Add(time.Second)
	for {
		backend.mutex.Lock()
		writes := append([]string(nil), backend.writes...)
		backend.mutex.Unlock()

		if len(writes) > 0 {
			if !strings.Contains(strings.Join(writes, ""), "3.key,2.65,1.1;") {
				t.Fatalf("unexpected write payload %v", writes)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("write never reached the server")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// TestHTTPTunnelWriteCoalescing verifies that messages sent while a POST is
// in flight are batched into a single later POST.
func TestHTTPTunnelWriteCoalescing(t *testing.T) {
	release := make(chan struct{})
	var mutex sync.Mutex
	var writes []string
	first := true

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.RawQuery
		switch {
		case query == "connect":
			_, _ = fmt.Fprint(w, testSessionUUID)
		case strings.HasPrefix(query, "read:"):
			<-r.Context().Done()
		case strings.HasPrefix(query, "write:"):
			body, _ := io.ReadAll(r.Body)
			mutex.Lock()
			writes = append(writes, string(body))
			hold := first
			first = false
			mutex.Unlock()
			if hold {
				<-release
			}
		}
	}))
	defer server.Close()

	tun := NewHTTPTunnel(server.URL)
	if err := tun.Connect(""); err != nil {
		t.Fatal(err)
	}
	defer tun.Disconnect()

	tun.SendMessage("sync", "1")

	// Wait for the first POST to be in flight, then queue three more
	// messages behind it.
	deadline := time.Now().Add(time.Second)
	for {
		mutex.Lock()
		inFlight := len(writes) == 1
		mutex.Unlock()
		if inFlight {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first write never arrived")
		}
		time.Sleep(5 * time.Millisecond)
	}

	tun.SendMessage("sync", "2")
	tun.SendMessage("sync", "3")
	tun.SendMessage("sync", "4")
	close(release)

	deadline = time.Now().Add(time.Second)
	for {
		mutex.Lock()
		done := len(writes) >= 2
		coalesced := ""
		if done {
			coalesced = writes[1]
		}
		mutex.Unlock()

		if done {
			if coalesced != "4.sync,1.2;4.sync,1.3;4.sync,1.4;" {
				t.Fatalf("writes not coalesced into one POST: %q", coalesced)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("coalesced write never arrived")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestHTTPTunnelConnectFailure verifies that a failing connect surfaces the
// status synthesized from the Guacamole headers.
func TestHTTPTunnelConnectFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Guacamole-Status-Code", "771") // 0x0303
		w.Header().Set("Guacamole-Error-Message", "Permission denied")
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	tun := NewHTTPTunnel(server.URL)

	var errors []status.Status
	tun.SetOnError(func(err status.Status) { errors = append(errors, err) })

	if err := tun.Connect(""); err == nil {
		t.Fatal("expected connect to fail")
	}

	if len(errors) != 1 || errors[0].Code != status.ClientForbidden || errors[0].Message != "Permission denied" {
		t.Fatalf("expected CLIENT_FORBIDDEN from headers, got %v", errors)
	}
	if tun.State() != Closed {
		t.Fatal("tunnel must be closed after a failed connect")
	}
}

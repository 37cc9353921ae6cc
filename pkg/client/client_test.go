// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package client

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glyptodon/guacamole-go/pkg/audio"
	"github.com/glyptodon/guacamole-go/pkg/guactest"
	"github.com/glyptodon/guacamole-go/pkg/status"
	"github.com/glyptodon/guacamole-go/pkg/stream"
)

// settle waits until the client's runner has drained everything posted
// before it.
func settle(c *Client) {
	done := make(chan struct{})
	c.do(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}

func newTestClient(t *testing.T) (*Client, *guactest.MockTunnel) {
	t.Helper()

	mock := guactest.NewMockTunnel()
	c := New(mock, Config{DisplayWidth: 64, DisplayHeight: 64})

	if err := c.Connect("tok"); err != nil {
		t.Fatal(err)
	}
	mock.EmitOpen()

	if calls := mock.ConnectCalls(); len(calls) != 1 || calls[0] != "tok" {
		t.Fatalf("handshake data not passed through: %v", calls)
	}

	return c, mock
}

// TestClientHandshake follows the connect scenario: after the first server
// sync the client is CONNECTED and echoes the timestamp.
func TestClientHandshake(t *testing.T) {
	var statesMutex sync.Mutex
	var states []State

	mock := guactest.NewMockTunnel()
	c := New(mock, Config{DisplayWidth: 64, DisplayHeight: 64})
	c.OnStateChange = func(state State) {
		statesMutex.Lock()
		states = append(states, state)
		statesMutex.Unlock()
	}

	if err := c.Connect("tok"); err != nil {
		t.Fatal(err)
	}
	mock.EmitOpen()

	if c.State() != Waiting {
		t.Fatalf("expected WAITING after connect, got %v", c.State())
	}

	mock.EmitWire("4.sync,1.0;")
	settle(c)

	if c.State() != Connected {
		t.Fatalf("expected CONNECTED after first sync, got %v", c.State())
	}

	statesMutex.Lock()
	expected := []State{Connecting, Waiting, Connected}
	if !reflect.DeepEqual(states, expected) {
		t.Fatalf("expected states %v, got %v", expected, states)
	}
	statesMutex.Unlock()

	// The timestamp must be echoed back.
	sent := mock.WaitForSent(1, time.Second)
	if len(sent) == 0 || sent[0][0] != "sync" || sent[0][1] != "0" {
		t.Fatalf("expected sync echo, got %v", sent)
	}

	c.Disconnect()
}

// encodePNG returns the base64 PNG encoding of a 1x1 image.
func encodePNG(t *testing.T) string {
	t.Helper()

	var buffer bytes.Buffer
	if err := png.Encode(&buffer, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(buffer.Bytes())
}

// TestClientDrawAndSync queues two blocked image draws, then a sync: the
// sync echo must wait for both decodes.
func TestClientDrawAndSync(t *testing.T) {
	c, mock := newTestClient(t)
	defer c.Disconnect()

	synced := make(chan string, 1)
	c.OnSync = func(timestamp string) { synced <- timestamp }

	data := encodePNG(t)
	mock.EmitInstruction("png", "0", "0", "0", "0", data)
	mock.EmitInstruction("png", "0", "0", "0", "10", data)
	mock.EmitInstruction("sync", "10")

	select {
	case timestamp := <-synced:
		if timestamp != "10" {
			t.Fatalf("unexpected sync timestamp %q", timestamp)
		}
	case <-time.After(time.Second):
		t.Fatal("OnSync never fired")
	}

	// The echo happens once the flush completes, i.e., after both image
	// decodes unblocked their tasks.
	sent := mock.WaitForSent(1, time.Second)
	if len(sent) == 0 || sent[len(sent)-1][0] != "sync" || sent[len(sent)-1][1] != "10" {
		t.Fatalf("expected sync echo after flush, got %v", sent)
	}
}

// TestClientStreamLifecycle follows the file-stream scenario: file, blob,
// end, with the blob reader acknowledging the blob.
func TestClientStreamLifecycle(t *testing.T) {
	c, mock := newTestClient(t)
	defer c.Disconnect()

	type fileEvent struct {
		mimetype string
		filename string
	}
	files := make(chan fileEvent, 1)
	ended := make(chan struct{})

	var reader *stream.BlobReader
	c.OnFile = func(in *stream.InStream, mimetype, filename string) {
		reader = stream.NewBlobReader(in, mimetype)
		reader.OnEnd = func() { close(ended) }
		files <- fileEvent{mimetype, filename}
	}

	mock.EmitWire("4.file,1.1,10.text/plain,5.a.txt;")
	mock.EmitWire("4.blob,1.1,12.SGVsbG8sIGd1;")
	mock.EmitWire("3.end,1.1;")

	select {
	case event := <-files:
		if event.mimetype != "text/plain" || event.filename != "a.txt" {
			t.Fatalf("unexpected file event %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("OnFile never fired")
	}

	select {
	case <-ended:
	case <-time.After(time.Second):
		t.Fatal("stream never ended")
	}

	if string(reader.Blob()) != "Hello, gu" {
		t.Fatalf("blob corrupted: %q", reader.Blob())
	}

	sent := mock.WaitForSent(1, time.Second)
	if len(sent) == 0 || !reflect.DeepEqual(sent[0], []string{"ack", "1", "OK", "0"}) {
		t.Fatalf("expected blob ack, got %v", sent)
	}

	// The stream must be gone from the table.
	settle(c)
	c.tableMutex.Lock()
	_, live := c.inputStreams[1]
	c.tableMutex.Unlock()
	if live {
		t.Fatal("ended stream still in the table")
	}
}

// TestClientUnsupportedStreamsAreRefused verifies the unsupported-channel
// acks.
func TestClientUnsupportedStreamsAreRefused(t *testing.T) {
	c, mock := newTestClient(t)
	defer c.Disconnect()

	mock.EmitInstruction("clipboard", "2", "text/plain")
	sent := mock.WaitForSent(1, time.Second)
	if len(sent) != 1 || sent[0][0] != "ack" || sent[0][3] != "256" {
		t.Fatalf("expected UNSUPPORTED ack, got %v", sent)
	}

	// Audio without sink or handler is a bad type.
	mock.EmitInstruction("audio", "3", "audio/L16;rate=44100")
	sent = mock.WaitForSent(2, time.Second)
	if len(sent) != 2 || sent[1][0] != "ack" || sent[1][3] != "783" {
		t.Fatalf("expected BAD_TYPE ack, got %v", sent)
	}
}

// pcmSink counts PCM bytes handed to it.
type pcmSink struct {
	mutex sync.Mutex
	total int
}

func (sink *pcmSink) Play(pcm []byte, _ audio.Format) {
	sink.mutex.Lock()
	sink.total += len(pcm)
	sink.mutex.Unlock()
}

// TestClientBuiltinAudio attaches the built-in raw player through the
// audio opcode.
func TestClientBuiltinAudio(t *testing.T) {
	mock := guactest.NewMockTunnel()
	sink := &pcmSink{}
	c := New(mock, Config{DisplayWidth: 64, DisplayHeight: 64, AudioSink: sink})

	if err := c.Connect(""); err != nil {
		t.Fatal(err)
	}
	mock.EmitOpen()
	defer c.Disconnect()

	mock.EmitInstruction("audio", "0", "audio/L16;rate=8000")

	sent := mock.WaitForSent(1, time.Second)
	if len(sent) != 1 || !reflect.DeepEqual(sent[0], []string{"ack", "0", "OK", "0"}) {
		t.Fatalf("expected OK ack, got %v", sent)
	}

	payload := bytes.Repeat([]byte{0x00, 0x01}, 1000)
	mock.EmitInstruction("blob", "0", base64.StdEncoding.EncodeToString(payload))
	settle(c)

	sink.mutex.Lock()
	total := sink.total
	sink.mutex.Unlock()
	if total != 2000 {
		t.Fatalf("expected 2000 PCM bytes at the sink, got %d", total)
	}
}

// TestClientServerErrorIsFatal verifies the error opcode surfaces and ends
// the session.
func TestClientServerErrorIsFatal(t *testing.T) {
	c, mock := newTestClient(t)

	errors := make(chan status.Status, 1)
	c.OnError = func(err status.Status) { errors <- err }

	mock.EmitInstruction("error", "Upstream died", "514")

	select {
	case err := <-errors:
		if err.Code != status.UpstreamTimeout || err.Message != "Upstream died" {
			t.Fatalf("unexpected error %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("OnError never fired")
	}

	deadline := time.Now().Add(time.Second)
	for c.State() != Disconnected {
		if time.Now().After(deadline) {
			t.Fatalf("expected DISCONNECTED, got %v", c.State())
		}
		time.Sleep(time.Millisecond)
	}
}

// TestClientIgnoresUnknownOpcodes pins forward compatibility.
func TestClientIgnoresUnknownOpcodes(t *testing.T) {
	c, mock := newTestClient(t)
	defer c.Disconnect()

	mock.EmitInstruction("frobnicate", "1", "2", "3")
	settle(c)

	if c.State() != Waiting {
		t.Fatalf("unknown opcode disturbed the session: %v", c.State())
	}
}

// TestClientDisconnectReportsAbortedStreams verifies that Disconnect
// aggregates one error per output stream the application never ended, and
// that a clean session disconnects without errors.
func TestClientDisconnectReportsAbortedStreams(t *testing.T) {
	c, _ := newTestClient(t)

	c.CreateClipboardStream("text/plain")
	c.CreateFileStream("text/plain", "a.txt")

	err := c.Disconnect()
	if err == nil {
		t.Fatal("expected aborted streams to surface")
	}
	for _, fragment := range []string{"output stream 0", "output stream 1"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("error %q does not mention %q", err, fragment)
		}
	}

	clean, _ := newTestClient(t)
	if err := clean.Disconnect(); err != nil {
		t.Fatalf("clean disconnect errored: %v", err)
	}
}

// TestClientName delivers the session name.
func TestClientName(t *testing.T) {
	c, mock := newTestClient(t)
	defer c.Disconnect()

	names := make(chan string, 1)
	c.OnName = func(name string) { names <- name }

	mock.EmitWire("4.name,4.test;")

	select {
	case name := <-names:
		if name != "test" {
			t.Fatalf("unexpected name %q", name)
		}
	case <-time.After(time.Second):
		t.Fatal("OnName never fired")
	}
}

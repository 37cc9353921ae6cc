// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package stream

import (
	"bytes"
	"encoding/base64"
	"reflect"
	"testing"

	"github.com/glyptodon/guacamole-go/pkg/status"
)

// mockAcknowledger records acks sent by readers.
type mockAcknowledger struct {
	acks []struct {
		index   int
		message string
		code    status.Code
	}
}

func (m *mockAcknowledger) Ack(index int, message string, code status.Code) {
	m.acks = append(m.acks, struct {
		index   int
		message string
		code    status.Code
	}{index, message, code})
}

func TestBytesReader(t *testing.T) {
	in := NewInStream(3, &mockAcknowledger{})
	reader := NewBytesReader(in)

	var received []byte
	ended := false
	reader.OnData = func(data []byte) { received = append(received, data...) }
	reader.OnEnd = func() { ended = true }

	in.ReceiveBlob(base64.StdEncoding.EncodeToString([]byte("Hello")))
	in.ReceiveBlob(base64.StdEncoding.EncodeToString([]byte(", world")))
	in.ReceiveEnd()

	if string(received) != "Hello, world" {
		t.Fatalf("expected %q, got %q", "Hello, world", received)
	}
	if !ended {
		t.Fatal("OnEnd did not fire")
	}
}

// TestStringReaderSplitRune delivers a multi-byte character split across two
// blobs; the reader must reassemble it.
func TestStringReaderSplitRune(t *testing.T) {
	in := NewInStream(1, &mockAcknowledger{})
	reader := NewStringReader(in)

	var texts []string
	reader.OnText = func(text string) { texts = append(texts, text) }

	raw := []byte("a世b") // 0x61, 0xE4 0xB8 0x96, 0x62
	in.ReceiveBlob(base64.StdEncoding.EncodeToString(raw[:2]))
	in.ReceiveBlob(base64.StdEncoding.EncodeToString(raw[2:]))

	if !reflect.DeepEqual(texts, []string{"a", "世b"}) {
		t.Fatalf("expected [a 世b], got %v", texts)
	}
}

func TestBlobReaderAcksEveryBlob(t *testing.T) {
	ack := &mockAcknowledger{}
	in := NewInStream(7, ack)
	reader := NewBlobReader(in, "text/plain")

	ended := false
	reader.OnEnd = func() { ended = true }

	in.ReceiveBlob(base64.StdEncoding.EncodeToString([]byte("He")))
	in.ReceiveBlob(base64.StdEncoding.EncodeToString([]byte("llo")))
	in.ReceiveEnd()

	if !ended {
		t.Fatal("OnEnd did not fire")
	}
	if reader.Mimetype() != "text/plain" {
		t.Fatalf("mimetype lost: %q", reader.Mimetype())
	}
	if !bytes.Equal(reader.Blob(), []byte("Hello")) {
		t.Fatalf("expected blob %q, got %q", "Hello", reader.Blob())
	}

	if len(ack.acks) != 2 {
		t.Fatalf("expected one ack per blob, got %d", len(ack.acks))
	}
	for _, a := range ack.acks {
		if a.index != 7 || a.message != "OK" || a.code != status.Success {
			t.Fatalf("unexpected ack %+v", a)
		}
	}
}

func TestDataURIReader(t *testing.T) {
	in := NewInStream(2, &mockAcknowledger{})
	reader := NewDataURIReader(in, "image/png")

	in.ReceiveBlob("AAAA")
	in.ReceiveBlob("BBBB")
	in.ReceiveEnd()

	if uri := reader.URI(); uri != "data:image/png;base64,AAAABBBB" {
		t.Fatalf("unexpected URI %q", uri)
	}
}

func TestJSONReader(t *testing.T) {
	in := NewInStream(4, &mockAcknowledger{})
	reader := NewJSONReader(in)

	done := false
	reader.OnEnd = func() { done = true }

	doc := `{"README.txt": "text/plain", "in/": "application/vnd.glyptodon.guacamole.stream-index+json"}`
	in.ReceiveBlob(base64.StdEncoding.EncodeToString([]byte(doc)))
	in.ReceiveEnd()

	if !done {
		t.Fatal("OnEnd did not fire")
	}

	var index map[string]string
	if err := reader.Unmarshal(&index); err != nil {
		t.Fatal(err)
	}
	if index["README.txt"] != "text/plain" {
		t.Fatalf("unexpected index %v", index)
	}
}

// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package stream

import "github.com/glyptodon/guacamole-go/pkg/status"

// MaxBlobLength is the maximum amount of binary data carried by a single
// blob instruction. The base64 form of such a blob is 10752 bytes.
const MaxBlobLength = 8064

// Acknowledger sends "ack" instructions for input streams. The Client is
// the canonical implementation; tests substitute their own.
type Acknowledger interface {
	Ack(index int, message string, code status.Code)
}

// BlobSender sends "blob" and "end" instructions for output streams.
type BlobSender interface {
	SendBlob(index int, data string)
	SendEnd(index int)
}

// InStream is a server-to-client byte channel. Blob data arrives as base64
// text via ReceiveBlob; the end of the stream is signalled via ReceiveEnd.
// The consumer registers OnBlob and OnEnd, typically through one of the
// reader types, and acknowledges received blobs via SendAck.
type InStream struct {
	Index int

	// OnBlob receives the base64 text of each arriving blob.
	OnBlob func(data string)

	// OnEnd is fired once when the stream ends. No further callbacks occur.
	OnEnd func()

	acknowledger Acknowledger
}

// NewInStream creates an InStream acknowledging through the given
// Acknowledger.
func NewInStream(index int, acknowledger Acknowledger) *InStream {
	return &InStream{Index: index, acknowledger: acknowledger}
}

// ReceiveBlob delivers the base64 text of a received blob instruction.
func (stream *InStream) ReceiveBlob(data string) {
	if stream.OnBlob != nil {
		stream.OnBlob(data)
	}
}

// ReceiveEnd delivers the end-of-stream signal.
func (stream *InStream) ReceiveEnd() {
	if stream.OnEnd != nil {
		stream.OnEnd()
	}
}

// SendAck acknowledges the most recently received blob. An error-class code
// instructs the server to destroy the stream.
func (stream *InStream) SendAck(message string, code status.Code) {
	stream.acknowledger.Ack(stream.Index, message, code)
}

// OutStream is a client-to-server byte channel. Blob data is sent as base64
// text via SendBlob and the stream is terminated via SendEnd. Server
// acknowledgements arrive through OnAck; an error-class Status ends the
// stream's life.
type OutStream struct {
	Index int

	// OnAck receives the server's response to each sent blob and to the
	// final end.
	OnAck func(ack status.Status)

	sender BlobSender
}

// NewOutStream creates an OutStream sending through the given BlobSender.
func NewOutStream(index int, sender BlobSender) *OutStream {
	return &OutStream{Index: index, sender: sender}
}

// SendBlob sends one blob of base64 text. The caller is responsible for
// respecting MaxBlobLength; the writer types handle splitting.
func (stream *OutStream) SendBlob(data string) {
	stream.sender.SendBlob(stream.Index, data)
}

// SendEnd terminates the stream.
func (stream *OutStream) SendEnd() {
	stream.sender.SendEnd(stream.Index)
}

// ReceiveAck delivers a server acknowledgement.
func (stream *OutStream) ReceiveAck(ack status.Status) {
	if stream.OnAck != nil {
		stream.OnAck(ack)
	}
}

// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package stream

import (
	"encoding/base64"

	"github.com/glyptodon/guacamole-go/pkg/status"
)

// BytesWriter wraps an OutStream, encoding raw bytes as base64 blobs.
// Payloads beyond MaxBlobLength are split into successive blob instructions.
type BytesWriter struct {
	// OnAck receives the server's acknowledgements, forwarded from the
	// underlying stream.
	OnAck func(ack status.Status)

	stream *OutStream
}

// NewBytesWriter attaches a BytesWriter to the given OutStream, replacing
// its ack handler.
func NewBytesWriter(stream *OutStream) *BytesWriter {
	writer := &BytesWriter{stream: stream}

	stream.OnAck = func(ack status.Status) {
		if writer.OnAck != nil {
			writer.OnAck(ack)
		}
	}

	return writer
}

// SendData encodes and sends the given bytes, splitting them into blobs of
// at most MaxBlobLength binary bytes each.
func (writer *BytesWriter) SendData(data []byte) {
	for len(data) > 0 {
		chunk := data
		if len(chunk) > MaxBlobLength {
			chunk = chunk[:MaxBlobLength]
		}
		writer.stream.SendBlob(base64.StdEncoding.EncodeToString(chunk))
		data = data[len(chunk):]
	}
}

// SendEnd terminates the underlying stream.
func (writer *BytesWriter) SendEnd() {
	writer.stream.SendEnd()
}

// StringWriter wraps an OutStream, encoding text as UTF-8 within base64
// blobs.
type StringWriter struct {
	// OnAck receives the server's acknowledgements.
	OnAck func(ack status.Status)

	bytesWriter *BytesWriter
	encoder     UTF8Encoder
}

// NewStringWriter attaches a StringWriter to the given OutStream.
func NewStringWriter(stream *OutStream) *StringWriter {
	writer := &StringWriter{}

	writer.bytesWriter = NewBytesWriter(stream)
	writer.bytesWriter.OnAck = func(ack status.Status) {
		if writer.OnAck != nil {
			writer.OnAck(ack)
		}
	}

	return writer
}

// SendText encodes and sends the given text.
func (writer *StringWriter) SendText(text string) {
	writer.encoder.Encode(text)
	writer.bytesWriter.SendData(writer.encoder.Flush())
}

// SendEnd terminates the underlying stream.
func (writer *StringWriter) SendEnd() {
	writer.bytesWriter.SendEnd()
}

// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package stream

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/glyptodon/guacamole-go/pkg/status"
)

// BytesReader wraps an InStream, decoding each base64 blob into raw bytes.
type BytesReader struct {
	// OnData receives the decoded bytes of each blob.
	OnData func(data []byte)

	// OnEnd is fired once when the underlying stream ends.
	OnEnd func()
}

// NewBytesReader attaches a BytesReader to the given InStream, replacing its
// blob and end handlers.
func NewBytesReader(stream *InStream) *BytesReader {
	reader := &BytesReader{}

	stream.OnBlob = func(data string) {
		decoded, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			log.WithError(err).WithField("stream", stream.Index).Warn("Discarding malformed base64 blob")
			return
		}
		if reader.OnData != nil {
			reader.OnData(decoded)
		}
	}
	stream.OnEnd = func() {
		if reader.OnEnd != nil {
			reader.OnEnd()
		}
	}

	return reader
}

// StringReader wraps an InStream, decoding blobs into text. Multi-byte UTF-8
// sequences split across blob boundaries are reassembled.
type StringReader struct {
	// OnText receives the text decoded from each blob.
	OnText func(text string)

	// OnEnd is fired once when the underlying stream ends.
	OnEnd func()

	decoder UTF8Decoder
}

// NewStringReader attaches a StringReader to the given InStream.
func NewStringReader(stream *InStream) *StringReader {
	reader := &StringReader{}

	bytesReader := NewBytesReader(stream)
	bytesReader.OnData = func(data []byte) {
		if text := reader.decoder.Decode(data); text != "" && reader.OnText != nil {
			reader.OnText(text)
		}
	}
	bytesReader.OnEnd = func() {
		if reader.OnEnd != nil {
			reader.OnEnd()
		}
	}

	return reader
}

// BlobReader accumulates an entire stream into a single binary blob of a
// known mimetype, acknowledging each received blob so the server keeps
// sending.
type BlobReader struct {
	// OnEnd is fired once when the underlying stream ends and the blob is
	// complete.
	OnEnd func()

	// OnProgress receives the number of bytes added by each blob.
	OnProgress func(length int)

	mimetype string
	data     bytes.Buffer
}

// NewBlobReader attaches a BlobReader of the given mimetype to the given
// InStream.
func NewBlobReader(stream *InStream, mimetype string) *BlobReader {
	reader := &BlobReader{mimetype: mimetype}

	bytesReader := NewBytesReader(stream)
	bytesReader.OnData = func(data []byte) {
		reader.data.Write(data)
		if reader.OnProgress != nil {
			reader.OnProgress(len(data))
		}
		stream.SendAck("OK", status.Success)
	}
	bytesReader.OnEnd = func() {
		if reader.OnEnd != nil {
			reader.OnEnd()
		}
	}

	return reader
}

// Mimetype returns the blob's mimetype.
func (reader *BlobReader) Mimetype() string {
	return reader.mimetype
}

// Len returns the number of bytes accumulated so far.
func (reader *BlobReader) Len() int {
	return reader.data.Len()
}

// Blob returns the accumulated bytes.
func (reader *BlobReader) Blob() []byte {
	return reader.data.Bytes()
}

// DataURIReader accumulates a stream verbatim onto a base64 data URI. The
// sender must emit whole 3-byte groups per blob, except possibly within the
// final blob, as the base64 text is concatenated without re-encoding.
type DataURIReader struct {
	// OnEnd is fired once when the underlying stream ends and the URI is
	// complete.
	OnEnd func()

	uri strings.Builder
}

// NewDataURIReader attaches a DataURIReader of the given mimetype to the
// given InStream.
func NewDataURIReader(stream *InStream, mimetype string) *DataURIReader {
	reader := &DataURIReader{}
	reader.uri.WriteString("data:")
	reader.uri.WriteString(mimetype)
	reader.uri.WriteString(";base64,")

	stream.OnBlob = func(data string) {
		reader.uri.WriteString(data)
	}
	stream.OnEnd = func() {
		if reader.OnEnd != nil {
			reader.OnEnd()
		}
	}

	return reader
}

// URI returns the data URI accumulated so far.
func (reader *DataURIReader) URI() string {
	return reader.uri.String()
}

// JSONReader accumulates a stream of UTF-8 text and parses it as JSON once
// the stream ends.
type JSONReader struct {
	// OnEnd is fired once when the underlying stream ends. The accumulated
	// document is available via Unmarshal and Text.
	OnEnd func()

	text strings.Builder
}

// NewJSONReader attaches a JSONReader to the given InStream.
func NewJSONReader(stream *InStream) *JSONReader {
	reader := &JSONReader{}

	stringReader := NewStringReader(stream)
	stringReader.OnText = func(text string) {
		reader.text.WriteString(text)
	}
	stringReader.OnEnd = func() {
		if reader.OnEnd != nil {
			reader.OnEnd()
		}
	}

	return reader
}

// Text returns the raw JSON text received so far.
func (reader *JSONReader) Text() string {
	return reader.text.String()
}

// Unmarshal parses the accumulated document into v.
func (reader *JSONReader) Unmarshal(v interface{}) error {
	return json.Unmarshal([]byte(reader.text.String()), v)
}

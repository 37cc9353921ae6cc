// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package client

import (
	"strconv"

	"github.com/glyptodon/guacamole-go/pkg/status"
	"github.com/glyptodon/guacamole-go/pkg/stream"
)

// registerInputStream allocates the input stream of a server-assigned
// index, replacing any stale stream of the same index.
func (c *Client) registerInputStream(index int) *stream.InStream {
	in := stream.NewInStream(index, c)

	c.tableMutex.Lock()
	c.inputStreams[index] = in
	c.tableMutex.Unlock()

	return in
}

// dropInputStream removes an input stream from the table.
func (c *Client) dropInputStream(index int) {
	c.tableMutex.Lock()
	delete(c.inputStreams, index)
	c.tableMutex.Unlock()
}

// Ack acknowledges a blob of the given input stream. Implements
// stream.Acknowledger.
func (c *Client) Ack(index int, message string, code status.Code) {
	c.tunnel.SendMessage("ack", strconv.Itoa(index), message, strconv.Itoa(int(code)))
}

// SendBlob sends blob data on an output stream. Implements
// stream.BlobSender.
func (c *Client) SendBlob(index int, data string) {
	c.tunnel.SendMessage("blob", strconv.Itoa(index), data)
}

// SendEnd terminates an output stream, recycling its index. Implements
// stream.BlobSender.
func (c *Client) SendEnd(index int) {
	c.tunnel.SendMessage("end", strconv.Itoa(index))

	c.tableMutex.Lock()
	if _, live := c.outputStreams[index]; live {
		delete(c.outputStreams, index)
		c.pool.Free(index)
	}
	c.tableMutex.Unlock()
}

// createOutputStream allocates a fresh output stream.
func (c *Client) createOutputStream() *stream.OutStream {
	index := c.pool.Next()
	out := stream.NewOutStream(index, c)

	c.tableMutex.Lock()
	c.outputStreams[index] = out
	c.tableMutex.Unlock()

	return out
}

// CreateClipboardStream opens an output stream carrying clipboard data of
// the given mimetype.
func (c *Client) CreateClipboardStream(mimetype string) *stream.OutStream {
	out := c.createOutputStream()
	c.tunnel.SendMessage("clipboard", strconv.Itoa(out.Index), mimetype)
	return out
}

// CreateFileStream opens an output stream uploading the named file.
func (c *Client) CreateFileStream(mimetype, filename string) *stream.OutStream {
	out := c.createOutputStream()
	c.tunnel.SendMessage("file", strconv.Itoa(out.Index), mimetype, filename)
	return out
}

// CreatePipeStream opens an output stream into the named pipe.
func (c *Client) CreatePipeStream(mimetype, name string) *stream.OutStream {
	out := c.createOutputStream()
	c.tunnel.SendMessage("pipe", strconv.Itoa(out.Index), mimetype, name)
	return out
}

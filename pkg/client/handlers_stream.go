// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package client

import (
	log "github.com/sirupsen/logrus"

	"github.com/glyptodon/guacamole-go/pkg/audio"
	"github.com/glyptodon/guacamole-go/pkg/status"
	"github.com/glyptodon/guacamole-go/pkg/video"
)

// handleAck routes a server acknowledgement to its output stream. An
// error-class code ends the stream's life and recycles its index.
func (c *Client) handleAck(args []string) {
	if len(args) < 3 {
		return
	}
	index := atoi(args[0])
	ack := status.New(status.Code(atoi(args[2])), args[1])

	c.tableMutex.Lock()
	out, ok := c.outputStreams[index]
	c.tableMutex.Unlock()
	if !ok {
		return
	}

	out.ReceiveAck(ack)

	if ack.IsError() {
		c.tableMutex.Lock()
		if _, live := c.outputStreams[index]; live {
			delete(c.outputStreams, index)
			c.pool.Free(index)
		}
		c.tableMutex.Unlock()
	}
}

// handleBlob routes blob data to its input stream.
func (c *Client) handleBlob(args []string) {
	if len(args) < 2 {
		return
	}
	index := atoi(args[0])

	c.tableMutex.Lock()
	in, ok := c.inputStreams[index]
	c.tableMutex.Unlock()

	if ok {
		in.ReceiveBlob(args[1])
	}
}

// handleEnd ends an input stream and drops it from the table.
func (c *Client) handleEnd(args []string) {
	if len(args) < 1 {
		return
	}
	index := atoi(args[0])

	c.tableMutex.Lock()
	in, ok := c.inputStreams[index]
	delete(c.inputStreams, index)
	c.tableMutex.Unlock()

	if ok {
		in.ReceiveEnd()
	}
}

// handleAudio attaches an audio player to a server audio stream. The user
// hook wins; the built-in raw player is the fallback. Without any player
// the stream is refused as a bad type.
func (c *Client) handleAudio(args []string) {
	if len(args) < 2 {
		return
	}
	index := atoi(args[0])
	mimetype := args[1]

	in := c.registerInputStream(index)

	var player audio.Player
	if c.OnAudio != nil {
		player = c.OnAudio(in, mimetype)
	}
	if player == nil && c.audioSink != nil {
		raw, err := audio.NewRawPlayer(in, mimetype, c.audioSink)
		if err == nil {
			player = raw
		}
	}

	if player == nil {
		log.WithField("mimetype", mimetype).Warn("No audio player accepts this stream")
		c.dropInputStream(index)
		c.Ack(index, "BAD TYPE", status.ClientBadType)
		return
	}

	c.tableMutex.Lock()
	c.audioPlayers[index] = player
	c.tableMutex.Unlock()

	c.Ack(index, "OK", status.Success)
}

// handleVideo attaches a video player to a server video stream.
func (c *Client) handleVideo(args []string) {
	if len(args) < 3 {
		return
	}
	index := atoi(args[0])
	layerIndex := atoi(args[1])
	mimetype := args[2]

	in := c.registerInputStream(index)

	var player video.Player
	if c.OnVideo != nil {
		player = c.OnVideo(in, layerIndex, mimetype)
	}
	if player == nil {
		player = c.videoRegistry.Create(in, layerIndex, mimetype)
	}

	if player == nil {
		log.WithField("mimetype", mimetype).Warn("No video player accepts this stream")
		c.dropInputStream(index)
		c.Ack(index, "BAD TYPE", status.ClientBadType)
		return
	}

	c.tableMutex.Lock()
	c.videoPlayers[index] = player
	c.tableMutex.Unlock()

	c.Ack(index, "OK", status.Success)
}

// handleClipboard delivers a server clipboard stream to the user.
func (c *Client) handleClipboard(args []string) {
	if len(args) < 2 {
		return
	}
	index := atoi(args[0])
	mimetype := args[1]

	if c.OnClipboard == nil {
		c.Ack(index, "Clipboard unsupported", status.Unsupported)
		return
	}

	c.OnClipboard(c.registerInputStream(index), mimetype)
}

// handleFile delivers an inbound file transfer to the user.
func (c *Client) handleFile(args []string) {
	if len(args) < 3 {
		return
	}
	index := atoi(args[0])
	mimetype, filename := args[1], args[2]

	if c.OnFile == nil {
		c.Ack(index, "File transfer unsupported", status.Unsupported)
		return
	}

	c.OnFile(c.registerInputStream(index), mimetype, filename)
}

// handlePipe delivers a named pipe stream to the user.
func (c *Client) handlePipe(args []string) {
	if len(args) < 3 {
		return
	}
	index := atoi(args[0])
	mimetype, name := args[1], args[2]

	if c.OnPipe == nil {
		c.Ack(index, "Named pipes unsupported", status.Unsupported)
		return
	}

	c.OnPipe(c.registerInputStream(index), mimetype, name)
}

// handleArgv delivers a connection-parameter stream to the user.
func (c *Client) handleArgv(args []string) {
	if len(args) < 3 {
		return
	}
	index := atoi(args[0])
	mimetype, name := args[1], args[2]

	if c.OnArgv == nil {
		c.Ack(index, "Argument values unsupported", status.Unsupported)
		return
	}

	c.OnArgv(c.registerInputStream(index), mimetype, name)
}

// handleFilesystem exposes a server filesystem object.
func (c *Client) handleFilesystem(args []string) {
	if len(args) < 2 {
		return
	}
	index := atoi(args[0])
	name := args[1]

	object := newObject(c, index)

	c.tableMutex.Lock()
	c.objects[index] = object
	c.tableMutex.Unlock()

	if c.OnFilesystem != nil {
		c.OnFilesystem(object, name)
	}
}

// handleBody routes the body of a named object stream.
func (c *Client) handleBody(args []string) {
	if len(args) < 4 {
		return
	}
	objectIndex := atoi(args[0])
	streamIndex := atoi(args[1])
	mimetype, name := args[2], args[3]

	c.tableMutex.Lock()
	object, ok := c.objects[objectIndex]
	c.tableMutex.Unlock()
	if !ok {
		log.WithField("object", objectIndex).Warn("Body for unknown object")
		return
	}

	object.receiveBody(c.registerInputStream(streamIndex), mimetype, name)
}

// handleUndefine retracts a named object.
func (c *Client) handleUndefine(args []string) {
	if len(args) < 1 {
		return
	}
	index := atoi(args[0])

	c.tableMutex.Lock()
	object, ok := c.objects[index]
	delete(c.objects, index)
	c.tableMutex.Unlock()

	if ok {
		object.receiveUndefine()
	}
}

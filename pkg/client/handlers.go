// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package client

import (
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/glyptodon/guacamole-go/pkg/protocol"
	"github.com/glyptodon/guacamole-go/pkg/status"
)

// registerHandlers builds the opcode dispatch table.
func (c *Client) registerHandlers() {
	c.handlers = map[string]func(args []string){
		// Drawing.
		"arc":       c.handleArc,
		"cfill":     c.handleCfill,
		"clip":      c.handleClip,
		"close":     c.handleClose,
		"copy":      c.handleCopy,
		"cstroke":   c.handleCstroke,
		"cursor":    c.handleCursor,
		"curve":     c.handleCurve,
		"identity":  c.handleIdentity,
		"img":       c.handleImg,
		"jpeg":      c.handleJpeg,
		"lfill":     c.handleLfill,
		"line":      c.handleLine,
		"lstroke":   c.handleLstroke,
		"png":       c.handlePng,
		"pop":       c.handlePop,
		"push":      c.handlePush,
		"rect":      c.handleRect,
		"reset":     c.handleReset,
		"size":      c.handleSize,
		"start":     c.handleStart,
		"transfer":  c.handleTransfer,
		"transform": c.handleTransform,

		// Scene graph.
		"dispose": c.handleDispose,
		"distort": c.handleDistort,
		"move":    c.handleMove,
		"shade":   c.handleShade,
		"set":     c.handleSet,

		// Control.
		"disconnect": c.handleDisconnect,
		"error":      c.handleError,
		"mouse":      c.handleMouse,
		"name":       c.handleName,
		"nest":       c.handleNest,
		"sync":       c.handleSync,

		// Streams and objects.
		"ack":        c.handleAck,
		"argv":       c.handleArgv,
		"audio":      c.handleAudio,
		"blob":       c.handleBlob,
		"body":       c.handleBody,
		"clipboard":  c.handleClipboard,
		"end":        c.handleEnd,
		"file":       c.handleFile,
		"filesystem": c.handleFilesystem,
		"pipe":       c.handlePipe,
		"undefine":   c.handleUndefine,
		"video":      c.handleVideo,
	}
}

// atoi parses a decimal instruction argument, defaulting to 0 on garbage,
// which matches how lenient the protocol is about numeric noise.
func atoi(arg string) int {
	value, err := strconv.Atoi(arg)
	if err != nil {
		log.WithField("argument", arg).Debug("Malformed integer argument")
		return 0
	}
	return value
}

// atof parses a floating-point instruction argument.
func atof(arg string) float64 {
	value, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		log.WithField("argument", arg).Debug("Malformed float argument")
		return 0
	}
	return value
}

// handleName delivers the session name.
func (c *Client) handleName(args []string) {
	if len(args) < 1 {
		return
	}
	if c.OnName != nil {
		c.OnName(args[0])
	}
}

// handleError surfaces a server-reported session failure and ends the
// session.
func (c *Client) handleError(args []string) {
	if len(args) < 2 {
		return
	}

	err := status.New(status.Code(atoi(args[1])), args[0])
	if c.OnError != nil {
		c.OnError(err)
	}
	if disconnectErr := c.Disconnect(); disconnectErr != nil {
		log.WithError(disconnectErr).Warn("Disconnect after server error was not clean")
	}
}

// handleDisconnect honors a server-initiated disconnect.
func (c *Client) handleDisconnect([]string) {
	if err := c.Disconnect(); err != nil {
		log.WithError(err).Warn("Server-initiated disconnect was not clean")
	}
}

// handleSync flushes the display for the server frame boundary; once all
// drawing up to the boundary has run, audio is synchronized and the
// timestamp echoed.
func (c *Client) handleSync(args []string) {
	if len(args) < 1 {
		return
	}
	timestamp := args[0]

	c.display.Flush(func() {
		c.tableMutex.Lock()
		players := make([]interface{ Sync() }, 0, len(c.audioPlayers))
		for _, player := range c.audioPlayers {
			players = append(players, player)
		}
		c.tableMutex.Unlock()

		for _, player := range players {
			player.Sync()
		}

		if timestamp != c.currentTimestamp {
			c.tunnel.SendMessage("sync", timestamp)
			c.currentTimestamp = timestamp
		}
	})

	if c.OnSync != nil {
		c.OnSync(timestamp)
	}

	if c.State() == Waiting {
		c.setState(Connected)
	}
}

// handleMouse follows server-side cursor movement.
func (c *Client) handleMouse(args []string) {
	if len(args) < 2 {
		return
	}
	c.display.MoveCursor(atoi(args[0]), atoi(args[1]))
}

// handleNest feeds the data of a nested instruction stream through a
// per-index sub-parser into the same dispatch table.
func (c *Client) handleNest(args []string) {
	if len(args) < 2 {
		return
	}
	index := atoi(args[0])

	c.tableMutex.Lock()
	parser, ok := c.parsers[index]
	if !ok {
		parser = protocol.NewParser()
		parser.OnInstruction = c.dispatch
		c.parsers[index] = parser
	}
	c.tableMutex.Unlock()

	if err := parser.Append([]byte(args[1])); err != nil {
		c.fatal(status.New(status.ServerError, err.Error()))
	}
}

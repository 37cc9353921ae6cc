// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tunnel

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/websocket"

	"github.com/glyptodon/guacamole-go/pkg/protocol"
	"github.com/glyptodon/guacamole-go/pkg/status"
)

// wsSubprotocol is the WebSocket subprotocol spoken by guacd-compatible
// servers.
const wsSubprotocol = "guacamole"

// WebSocketTunnel carries the instruction stream over a single WebSocket
// connection.
type WebSocketTunnel struct {
	tunnelCore

	url  string
	conn *websocket.Conn

	writeMutex sync.Mutex
}

// NewWebSocketTunnel creates a WebSocketTunnel for the given ws:// or
// wss:// URL. The handshake data passed to Connect is appended to the URL as
// a query string.
func NewWebSocketTunnel(url string) *WebSocketTunnel {
	return &WebSocketTunnel{
		tunnelCore: newTunnelCore(),
		url:        url,
	}
}

func (tunnel *WebSocketTunnel) log() *log.Entry {
	return log.WithField("tunnel", "websocket").WithField("url", tunnel.url)
}

// Connect dials the WebSocket endpoint and starts reading instructions.
func (tunnel *WebSocketTunnel) Connect(data string) error {
	dialURL := tunnel.url
	if data != "" {
		dialURL += "?" + data
	}

	dialer := websocket.Dialer{
		Subprotocols:     []string{wsSubprotocol},
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.Dial(dialURL, nil)
	if err != nil {
		tunnel.log().WithError(err).Warn("WebSocket connect failed")
		tunnel.closeWithStatus(status.New(status.ServerError, err.Error()))
		return err
	}

	tunnel.mutex.Lock()
	tunnel.conn = conn
	tunnel.closeTransport = conn.Close
	tunnel.mutex.Unlock()

	tunnel.resetReceiveTimer()
	tunnel.setState(Open)

	go tunnel.readPump(conn)
	return nil
}

// readPump reads WebSocket messages and feeds them to the parser until the
// connection dies.
func (tunnel *WebSocketTunnel) readPump(conn *websocket.Conn) {
	parser := protocol.NewParser()
	parser.OnInstruction = tunnel.deliver

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			tunnel.handleReadError(err)
			return
		}

		tunnel.resetReceiveTimer()

		if parseErr := parser.Append(data); parseErr != nil {
			tunnel.log().WithError(parseErr).Error("Protocol violation")
			tunnel.closeWithStatus(status.New(status.ServerError, parseErr.Error()))
			return
		}
	}
}

// handleReadError translates a read failure into the tunnel's terminal
// status. Clean closes become SUCCESS; close frames map via their close
// code.
func (tunnel *WebSocketTunnel) handleReadError(err error) {
	if closeErr, ok := err.(*websocket.CloseError); ok {
		code := status.FromWebSocketCode(closeErr.Code)
		message := closeErr.Text
		if message == "" {
			message = code.String()
		}
		tunnel.closeWithStatus(status.New(code, message))
		return
	}

	if tunnel.State() == Closed {
		// Read failed because we tore the connection down ourselves.
		return
	}

	tunnel.log().WithError(err).Warn("WebSocket read errored")
	tunnel.closeWithStatus(status.New(status.ServerError, err.Error()))
}

// SendMessage sends one instruction. A no-op unless the tunnel is Open.
func (tunnel *WebSocketTunnel) SendMessage(elements ...string) {
	if tunnel.State() != Open {
		return
	}

	tunnel.writeMutex.Lock()
	defer tunnel.writeMutex.Unlock()

	if err := tunnel.conn.WriteMessage(websocket.TextMessage, protocol.Encode(elements...)); err != nil {
		tunnel.log().WithError(err).Warn("WebSocket write errored")
		tunnel.closeWithStatus(status.New(status.ServerError, err.Error()))
	}
}

// Disconnect closes the tunnel gracefully.
func (tunnel *WebSocketTunnel) Disconnect() error {
	return tunnel.closeWithStatus(status.New(status.Success))
}

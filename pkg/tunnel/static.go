// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tunnel

import (
	log "github.com/sirupsen/logrus"

	"github.com/glyptodon/guacamole-go/pkg/protocol"
	"github.com/glyptodon/guacamole-go/pkg/status"
)

// StaticTunnel replays a fixed instruction byte stream, e.g., a session
// recording, through the normal parsing and dispatch path. Sends are
// discarded and the handshake data is ignored.
type StaticTunnel struct {
	tunnelCore

	recording []byte
}

// NewStaticTunnel creates a StaticTunnel replaying the given bytes.
func NewStaticTunnel(recording []byte) *StaticTunnel {
	return &StaticTunnel{
		tunnelCore: newTunnelCore(),
		recording:  recording,
	}
}

// Connect opens the tunnel and replays the recording. The tunnel closes
// with SUCCESS once the recording is exhausted.
func (tunnel *StaticTunnel) Connect(string) error {
	tunnel.setState(Open)

	go func() {
		parser := protocol.NewParser()
		parser.OnInstruction = tunnel.deliver

		if err := parser.Append(tunnel.recording); err != nil {
			log.WithError(err).Error("Recording is malformed")
			tunnel.closeWithStatus(status.New(status.ServerError, err.Error()))
			return
		}

		tunnel.closeWithStatus(status.New(status.Success))
	}()

	return nil
}

// SendMessage discards the instruction; a recording cannot be written to.
func (tunnel *StaticTunnel) SendMessage(...string) {}

// Disconnect stops the replay.
func (tunnel *StaticTunnel) Disconnect() error {
	return tunnel.closeWithStatus(status.New(status.Success))
}

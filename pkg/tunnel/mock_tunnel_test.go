// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tunnel

import (
	"github.com/glyptodon/guacamole-go/pkg/protocol"
	"github.com/glyptodon/guacamole-go/pkg/status"
)

// mockTunnel is a scriptable Tunnel for testing the chained tunnel's
// failover logic. Tests drive it via the emit helpers.
type mockTunnel struct {
	tunnelCore

	connectCalls    int
	disconnectCalls int
	sent            [][]string
}

func newMockTunnel() *mockTunnel {
	return &mockTunnel{tunnelCore: newTunnelCore()}
}

func (m *mockTunnel) Connect(string) error {
	m.connectCalls++
	return nil
}

func (m *mockTunnel) Disconnect() error {
	m.disconnectCalls++
	return m.closeWithStatus(status.New(status.Success))
}

func (m *mockTunnel) SendMessage(elements ...string) {
	m.sent = append(m.sent, elements)
}

func (m *mockTunnel) emitOpen() {
	m.setState(Open)
}

func (m *mockTunnel) emitClosed() {
	m.setState(Closed)
}

func (m *mockTunnel) emitError(err status.Status) {
	m.fireError(err)
}

func (m *mockTunnel) emitInstruction(opcode string, args ...string) {
	m.deliver(protocol.NewInstruction(opcode, args...))
}

// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package guactest

import (
	"sync"
	"time"

	"github.com/glyptodon/guacamole-go/pkg/protocol"
	"github.com/glyptodon/guacamole-go/pkg/status"
	"github.com/glyptodon/guacamole-go/pkg/tunnel"
)

// MockTunnel is a scriptable tunnel.Tunnel. Tests drive the server side via
// the Emit methods and inspect everything the client sent via Sent.
type MockTunnel struct {
	mutex sync.Mutex

	state       tunnel.State
	uuid        string
	connectData []string
	sent        [][]string

	onStateChange func(tunnel.State)
	onError       func(status.Status)
	onInstruction func(protocol.Instruction)
}

// NewMockTunnel creates a MockTunnel in the Connecting state.
func NewMockTunnel() *MockTunnel {
	return &MockTunnel{state: tunnel.Connecting}
}

// Connect records the handshake data. The tunnel stays Connecting until
// EmitOpen.
func (m *MockTunnel) Connect(data string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.connectData = append(m.connectData, data)
	return nil
}

// ConnectCalls returns the handshake data of every Connect call.
func (m *MockTunnel) ConnectCalls() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]string(nil), m.connectData...)
}

// Disconnect closes the tunnel.
func (m *MockTunnel) Disconnect() error {
	m.EmitClosed()
	return nil
}

// SendMessage records the instruction sent by the client.
func (m *MockTunnel) SendMessage(elements ...string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.state != tunnel.Open {
		return
	}
	m.sent = append(m.sent, elements)
}

// Sent returns every instruction the client sent so far.
func (m *MockTunnel) Sent() [][]string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([][]string(nil), m.sent...)
}

// WaitForSent polls until the client has sent at least n instructions.
func (m *MockTunnel) WaitForSent(n int, timeout time.Duration) [][]string {
	deadline := time.Now().Add(timeout)
	for {
		if sent := m.Sent(); len(sent) >= n || time.Now().After(deadline) {
			return sent
		}
		time.Sleep(time.Millisecond)
	}
}

func (m *MockTunnel) State() tunnel.State {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.state
}

func (m *MockTunnel) UUID() string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.uuid
}

// SetUUID sets the UUID reported by the tunnel.
func (m *MockTunnel) SetUUID(uuid string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.uuid = uuid
}

func (m *MockTunnel) SetReceiveTimeout(time.Duration) {}

func (m *MockTunnel) SetOnStateChange(handler func(tunnel.State)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.onStateChange = handler
}

func (m *MockTunnel) SetOnError(handler func(status.Status)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.onError = handler
}

func (m *MockTunnel) SetOnInstruction(handler func(protocol.Instruction)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.onInstruction = handler
}

// EmitOpen transitions the tunnel to Open.
func (m *MockTunnel) EmitOpen() {
	m.setState(tunnel.Open)
}

// EmitClosed transitions the tunnel to Closed.
func (m *MockTunnel) EmitClosed() {
	m.setState(tunnel.Closed)
}

func (m *MockTunnel) setState(state tunnel.State) {
	m.mutex.Lock()
	if m.state == state || m.state == tunnel.Closed {
		m.mutex.Unlock()
		return
	}
	m.state = state
	handler := m.onStateChange
	m.mutex.Unlock()

	if handler != nil {
		handler(state)
	}
}

// EmitError fires the error callback.
func (m *MockTunnel) EmitError(err status.Status) {
	m.mutex.Lock()
	handler := m.onError
	m.mutex.Unlock()

	if handler != nil {
		handler(err)
	}
}

// EmitInstruction delivers one instruction to the consumer.
func (m *MockTunnel) EmitInstruction(opcode string, args ...string) {
	m.mutex.Lock()
	handler := m.onInstruction
	m.mutex.Unlock()

	if handler != nil {
		handler(protocol.NewInstruction(opcode, args...))
	}
}

// EmitWire parses literal wire bytes and delivers each contained
// instruction. Panics on malformed framing; tests feed known-good bytes.
func (m *MockTunnel) EmitWire(wire string) {
	parser := protocol.NewParser()
	parser.OnInstruction = func(instruction protocol.Instruction) {
		m.mutex.Lock()
		handler := m.onInstruction
		m.mutex.Unlock()

		if handler != nil {
			handler(instruction)
		}
	}
	if err := parser.Append([]byte(wire)); err != nil {
		panic(err)
	}
}

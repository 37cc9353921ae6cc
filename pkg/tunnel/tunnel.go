// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tunnel

import (
	"sync"
	"time"

	"github.com/glyptodon/guacamole-go/pkg/protocol"
	"github.com/glyptodon/guacamole-go/pkg/status"
)

// State is the lifecycle state of a Tunnel.
type State int

const (
	// Connecting is the initial state while the transport is being
	// established.
	Connecting State = iota

	// Open means instructions flow in both directions.
	Open

	// Closed is terminal. A closed tunnel never reopens and silently
	// ignores sends.
	Closed
)

func (state State) String() string {
	switch state {
	case Connecting:
		return "CONNECTING"
	case Open:
		return "OPEN"
	case Closed:
		return "CLOSED"
	default:
		return "INVALID"
	}
}

// DefaultReceiveTimeout is the default duration without received data after
// which a tunnel closes with UPSTREAM_TIMEOUT.
const DefaultReceiveTimeout = 15 * time.Second

// Tunnel is a bidirectional transport for Guacamole instructions.
type Tunnel interface {
	// Connect establishes the transport, passing the opaque handshake data
	// to the server. The tunnel transitions to Open on success or Closed
	// on failure; the returned error reflects synchronous failures only.
	Connect(data string) error

	// Disconnect closes the tunnel gracefully, returning whatever errors
	// tearing the transport down produced.
	Disconnect() error

	// SendMessage sends one instruction, the opcode being the first
	// element. Ignored unless the tunnel is Open.
	SendMessage(elements ...string)

	// State returns the tunnel's current state.
	State() State

	// UUID returns the session UUID assigned by the server, or "" while
	// unknown.
	UUID() string

	// SetReceiveTimeout replaces the receive timeout. The default is
	// DefaultReceiveTimeout.
	SetReceiveTimeout(timeout time.Duration)

	// Callback registration. Replacing a callback mid-session is allowed;
	// a nil callback disables it.
	SetOnStateChange(handler func(state State))
	SetOnError(handler func(err status.Status))
	SetOnInstruction(handler func(instruction protocol.Instruction))
}

// tunnelCore carries the state, callbacks and receive-timeout supervision
// shared by all tunnel variants.
type tunnelCore struct {
	mutex sync.Mutex

	state          State
	uuid           string
	receiveTimeout time.Duration
	receiveTimer   *time.Timer

	// closeTransport tears down the variant's transport so blocked reads
	// return. Set by the variant before the first timer arm.
	closeTransport func() error

	onStateChange func(state State)
	onError       func(err status.Status)
	onInstruction func(instruction protocol.Instruction)
}

func newTunnelCore() tunnelCore {
	return tunnelCore{
		state:          Connecting,
		receiveTimeout: DefaultReceiveTimeout,
	}
}

func (core *tunnelCore) State() State {
	core.mutex.Lock()
	defer core.mutex.Unlock()
	return core.state
}

func (core *tunnelCore) UUID() string {
	core.mutex.Lock()
	defer core.mutex.Unlock()
	return core.uuid
}

func (core *tunnelCore) setUUID(uuid string) {
	core.mutex.Lock()
	defer core.mutex.Unlock()
	core.uuid = uuid
}

func (core *tunnelCore) SetReceiveTimeout(timeout time.Duration) {
	core.mutex.Lock()
	defer core.mutex.Unlock()
	core.receiveTimeout = timeout
}

func (core *tunnelCore) SetOnStateChange(handler func(State)) {
	core.mutex.Lock()
	defer core.mutex.Unlock()
	core.onStateChange = handler
}

func (core *tunnelCore) SetOnError(handler func(status.Status)) {
	core.mutex.Lock()
	defer core.mutex.Unlock()
	core.onError = handler
}

func (core *tunnelCore) SetOnInstruction(handler func(protocol.Instruction)) {
	core.mutex.Lock()
	defer core.mutex.Unlock()
	core.onInstruction = handler
}

// setState transitions the tunnel, firing the state-change callback.
// Transitions out of Closed and transitions to the current state are
// ignored.
func (core *tunnelCore) setState(state State) {
	core.mutex.Lock()
	if core.state == state || core.state == Closed {
		core.mutex.Unlock()
		return
	}
	core.state = state
	handler := core.onStateChange
	core.mutex.Unlock()

	if handler != nil {
		handler(state)
	}
}

// fireError reports an error to the consumer without changing state.
func (core *tunnelCore) fireError(err status.Status) {
	core.mutex.Lock()
	handler := core.onError
	core.mutex.Unlock()

	if handler != nil {
		handler(err)
	}
}

// closeWithStatus stops supervision, tears down the transport and
// transitions to Closed, reporting the given status first if it is an
// error. Safe to call more than once; only the first call has any effect.
// The returned error is whatever the transport teardown produced.
func (core *tunnelCore) closeWithStatus(err status.Status) error {
	core.mutex.Lock()
	if core.state == Closed {
		core.mutex.Unlock()
		return nil
	}
	core.state = Closed
	if core.receiveTimer != nil {
		core.receiveTimer.Stop()
		core.receiveTimer = nil
	}
	closeTransport := core.closeTransport
	errHandler := core.onError
	stateHandler := core.onStateChange
	core.mutex.Unlock()

	var closeErr error
	if closeTransport != nil {
		closeErr = closeTransport()
	}
	if err.IsError() && errHandler != nil {
		errHandler(err)
	}
	if stateHandler != nil {
		stateHandler(Closed)
	}

	return closeErr
}

// resetReceiveTimer restarts the no-receive supervision window. Called on
// connect and on every received message.
func (core *tunnelCore) resetReceiveTimer() {
	core.mutex.Lock()
	if core.state == Closed {
		core.mutex.Unlock()
		return
	}
	if core.receiveTimer != nil {
		core.receiveTimer.Stop()
	}
	core.receiveTimer = time.AfterFunc(core.receiveTimeout, func() {
		core.closeWithStatus(status.New(status.UpstreamTimeout, "Server not responding"))
	})
	core.mutex.Unlock()
}

// deliver forwards a parsed instruction to the consumer. Internal-data
// instructions carry the session UUID and are consumed here.
func (core *tunnelCore) deliver(instruction protocol.Instruction) {
	if instruction.Opcode == protocol.InternalDataOpcode {
		core.mutex.Lock()
		if core.uuid == "" && len(instruction.Args) > 0 {
			core.uuid = instruction.Args[0]
		}
		core.mutex.Unlock()
		return
	}

	core.mutex.Lock()
	handler := core.onInstruction
	core.mutex.Unlock()

	if handler != nil {
		handler(instruction)
	}
}

// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tunnel

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/glyptodon/guacamole-go/pkg/protocol"
	"github.com/glyptodon/guacamole-go/pkg/status"
)

// ChainedTunnel tries an ordered list of tunnels until one works. A tunnel
// is committed once it reaches Open or delivers its first instruction; from
// then on all of its callbacks are forwarded verbatim and no further
// failover occurs. A tunnel failing before commit is detached and the next
// one is tried, except after UPSTREAM_TIMEOUT, which ends the whole chain:
// the server is reachable but dead, so another transport will not help.
type ChainedTunnel struct {
	mutex sync.Mutex

	state State

	data      string
	current   Tunnel
	remaining []Tunnel
	committed bool
	lastError status.Status

	receiveTimeout time.Duration
	hasTimeout     bool

	onStateChange func(State)
	onError       func(status.Status)
	onInstruction func(protocol.Instruction)
}

// NewChainedTunnel creates a ChainedTunnel over the given tunnels, tried in
// order.
func NewChainedTunnel(tunnels ...Tunnel) *ChainedTunnel {
	return &ChainedTunnel{
		state:     Connecting,
		remaining: tunnels,
		lastError: status.New(status.ServerError, "No tunnel could be connected"),
	}
}

// Connect starts trying the chain with the given handshake data.
func (chain *ChainedTunnel) Connect(data string) error {
	chain.mutex.Lock()
	chain.data = data
	chain.mutex.Unlock()

	chain.tryNext()
	return nil
}

// tryNext attaches and connects the next tunnel of the chain, or gives up
// when none remain.
func (chain *ChainedTunnel) tryNext() {
	for {
		chain.mutex.Lock()
		if chain.state == Closed {
			chain.mutex.Unlock()
			return
		}
		if len(chain.remaining) == 0 {
			finalError := chain.lastError
			chain.mutex.Unlock()
			chain.giveUp(finalError)
			return
		}
		next := chain.remaining[0]
		chain.remaining = chain.remaining[1:]
		chain.current = next
		data := chain.data
		if chain.hasTimeout {
			next.SetReceiveTimeout(chain.receiveTimeout)
		}
		chain.mutex.Unlock()

		log.WithField("tunnel", next).Debug("Trying next tunnel of chain")
		chain.attach(next)

		if err := next.Connect(data); err == nil {
			return
		}

		// Synchronous failure: the error callback may or may not have
		// fired. Detach and loop to the next candidate unless one of the
		// callbacks already handled it.
		chain.mutex.Lock()
		alreadyHandled := chain.committed || chain.current != next || chain.state == Closed
		if !alreadyHandled {
			chain.current = nil
		}
		chain.mutex.Unlock()

		if alreadyHandled {
			return
		}
		chain.detach(next)
	}
}

// attach wires the chain's callbacks into the given tunnel.
func (chain *ChainedTunnel) attach(tun Tunnel) {
	tun.SetOnInstruction(func(instruction protocol.Instruction) {
		chain.commit(tun)
		chain.forwardInstruction(tun, instruction)
	})

	tun.SetOnStateChange(func(state State) {
		switch state {
		case Open:
			chain.commit(tun)
			chain.setState(Open)

		case Closed:
			if chain.isCommitted(tun) {
				chain.setState(Closed)
			} else if chain.isCurrent(tun) {
				chain.mutex.Lock()
				chain.current = nil
				chain.mutex.Unlock()
				chain.detach(tun)
				chain.tryNext()
			}
		}
	})

	tun.SetOnError(func(err status.Status) {
		if chain.isCommitted(tun) {
			chain.forwardError(tun, err)
			return
		}
		if !chain.isCurrent(tun) {
			return
		}

		chain.mutex.Lock()
		chain.lastError = err
		timedOut := err.Code == status.UpstreamTimeout
		if timedOut {
			// A timeout poisons the whole chain.
			chain.remaining = nil
		}
		chain.current = nil
		chain.mutex.Unlock()

		chain.detach(tun)
		if timedOut {
			chain.giveUp(err)
		} else {
			chain.tryNext()
		}
	})
}

// detach disconnects the chain's callbacks from a rejected tunnel.
func (chain *ChainedTunnel) detach(tun Tunnel) {
	tun.SetOnInstruction(nil)
	tun.SetOnStateChange(nil)
	tun.SetOnError(nil)
}

// commit makes the given tunnel the chain's permanent transport.
func (chain *ChainedTunnel) commit(tun Tunnel) {
	chain.mutex.Lock()
	if !chain.committed && chain.current == tun {
		chain.committed = true
		chain.remaining = nil
	}
	chain.mutex.Unlock()
}

func (chain *ChainedTunnel) isCommitted(tun Tunnel) bool {
	chain.mutex.Lock()
	defer chain.mutex.Unlock()
	return chain.committed && chain.current == tun
}

func (chain *ChainedTunnel) isCurrent(tun Tunnel) bool {
	chain.mutex.Lock()
	defer chain.mutex.Unlock()
	return chain.current == tun
}

// giveUp reports the chain's final failure.
func (chain *ChainedTunnel) giveUp(err status.Status) {
	chain.mutex.Lock()
	if chain.state == Closed {
		chain.mutex.Unlock()
		return
	}
	errHandler := chain.onError
	chain.mutex.Unlock()

	if errHandler != nil {
		errHandler(err)
	}
	chain.setState(Closed)
}

func (chain *ChainedTunnel) setState(state State) {
	chain.mutex.Lock()
	if chain.state == state || chain.state == Closed {
		chain.mutex.Unlock()
		return
	}
	chain.state = state
	handler := chain.onStateChange
	chain.mutex.Unlock()

	if handler != nil {
		handler(state)
	}
}

func (chain *ChainedTunnel) forwardInstruction(tun Tunnel, instruction protocol.Instruction) {
	if !chain.isCommitted(tun) {
		return
	}

	chain.mutex.Lock()
	handler := chain.onInstruction
	chain.mutex.Unlock()

	if handler != nil {
		handler(instruction)
	}
}

func (chain *ChainedTunnel) forwardError(tun Tunnel, err status.Status) {
	chain.mutex.Lock()
	handler := chain.onError
	chain.mutex.Unlock()

	if handler != nil {
		handler(err)
	}
}

// Disconnect closes the active tunnel, if any, and the chain itself.
func (chain *ChainedTunnel) Disconnect() error {
	chain.mutex.Lock()
	current := chain.current
	chain.remaining = nil
	chain.mutex.Unlock()

	var err error
	if current != nil {
		err = current.Disconnect()
	}
	chain.setState(Closed)
	return err
}

// SendMessage forwards to the active tunnel.
func (chain *ChainedTunnel) SendMessage(elements ...string) {
	chain.mutex.Lock()
	current := chain.current
	chain.mutex.Unlock()

	if current != nil {
		current.SendMessage(elements...)
	}
}

// State returns the chain's state, which mirrors the committed tunnel once
// one exists.
func (chain *ChainedTunnel) State() State {
	chain.mutex.Lock()
	defer chain.mutex.Unlock()
	return chain.state
}

// UUID returns the session UUID of the active tunnel, or "".
func (chain *ChainedTunnel) UUID() string {
	chain.mutex.Lock()
	current := chain.current
	chain.mutex.Unlock()

	if current != nil {
		return current.UUID()
	}
	return ""
}

// SetReceiveTimeout applies the timeout to the active tunnel and every
// tunnel tried afterwards.
func (chain *ChainedTunnel) SetReceiveTimeout(timeout time.Duration) {
	chain.mutex.Lock()
	chain.receiveTimeout = timeout
	chain.hasTimeout = true
	current := chain.current
	chain.mutex.Unlock()

	if current != nil {
		current.SetReceiveTimeout(timeout)
	}
}

func (chain *ChainedTunnel) SetOnStateChange(handler func(State)) {
	chain.mutex.Lock()
	defer chain.mutex.Unlock()
	chain.onStateChange = handler
}

func (chain *ChainedTunnel) SetOnError(handler func(status.Status)) {
	chain.mutex.Lock()
	defer chain.mutex.Unlock()
	chain.onError = handler
}

func (chain *ChainedTunnel) SetOnInstruction(handler func(protocol.Instruction)) {
	chain.mutex.Lock()
	defer chain.mutex.Unlock()
	chain.onInstruction = handler
}

// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tunnel

import (
	"context"
	"crypto/tls"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hashicorp/go-multierror"
	"github.com/quic-go/quic-go"

	"github.com/glyptodon/guacamole-go/pkg/protocol"
	"github.com/glyptodon/guacamole-go/pkg/status"
)

// quicShutdown is the application error code sent on graceful disconnect.
const quicShutdown quic.ApplicationErrorCode = 0

// QUICTunnel carries the instruction stream over a single bidirectional
// QUIC stream. This transport has no upstream equivalent in the classic
// servlet stack; it targets native proxies terminating QUIC themselves.
//
// The opaque handshake data is framed as the first instruction of the
// stream under the internal empty opcode, mirroring how compatible servers
// announce the session UUID in the opposite direction.
type QUICTunnel struct {
	tunnelCore

	address    string
	connection quic.Connection
	stream     quic.Stream

	writeMutex sync.Mutex
}

// NewQUICTunnel creates a QUICTunnel for the given host:port address.
func NewQUICTunnel(address string) *QUICTunnel {
	return &QUICTunnel{
		tunnelCore: newTunnelCore(),
		address:    address,
	}
}

func (tunnel *QUICTunnel) log() *log.Entry {
	return log.WithField("tunnel", "quic").WithField("address", tunnel.address)
}

// quicDialerTLSConfig assumes a proxy with a self-signed certificate and
// does not verify it.
func quicDialerTLSConfig() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{wsSubprotocol},
	}
}

func quicConfig() *quic.Config {
	return &quic.Config{
		KeepAlivePeriod: 1 * time.Second,
		MaxIdleTimeout:  30 * time.Second,
	}
}

// Connect dials the proxy, opens the instruction stream and sends the
// handshake.
func (tunnel *QUICTunnel) Connect(data string) error {
	connection, err := quic.DialAddr(context.Background(), tunnel.address, quicDialerTLSConfig(), quicConfig())
	if err != nil {
		tunnel.log().WithError(err).Warn("QUIC connect failed")
		tunnel.closeWithStatus(status.New(status.ServerError, err.Error()))
		return err
	}

	stream, err := connection.OpenStreamSync(context.Background())
	if err != nil {
		_ = connection.CloseWithError(quicShutdown, "no stream")
		tunnel.closeWithStatus(status.New(status.ServerError, err.Error()))
		return err
	}

	tunnel.mutex.Lock()
	tunnel.connection = connection
	tunnel.stream = stream
	tunnel.closeTransport = func() error {
		var errs *multierror.Error
		errs = multierror.Append(errs, stream.Close())
		errs = multierror.Append(errs, connection.CloseWithError(quicShutdown, "disconnect"))
		return errs.ErrorOrNil()
	}
	tunnel.mutex.Unlock()

	if _, err := stream.Write(protocol.Encode(protocol.InternalDataOpcode, data)); err != nil {
		tunnel.closeWithStatus(status.New(status.ServerError, err.Error()))
		return err
	}

	tunnel.resetReceiveTimer()
	tunnel.setState(Open)

	go tunnel.readPump(stream)
	return nil
}

// readPump reads stream data and feeds it to the parser until the
// connection dies.
func (tunnel *QUICTunnel) readPump(stream quic.Stream) {
	parser := protocol.NewParser()
	parser.OnInstruction = tunnel.deliver

	chunk := make([]byte, 4096)
	for {
		n, err := stream.Read(chunk)
		if n > 0 {
			tunnel.resetReceiveTimer()

			if parseErr := parser.Append(chunk[:n]); parseErr != nil {
				tunnel.log().WithError(parseErr).Error("Protocol violation")
				tunnel.closeWithStatus(status.New(status.ServerError, parseErr.Error()))
				return
			}
		}
		if err != nil {
			tunnel.handleReadError(err)
			return
		}
	}
}

func (tunnel *QUICTunnel) handleReadError(err error) {
	if tunnel.State() == Closed {
		return
	}

	if _, ok := err.(*quic.IdleTimeoutError); ok {
		tunnel.closeWithStatus(status.New(status.UpstreamTimeout, "Server not responding"))
		return
	}

	tunnel.log().WithError(err).Warn("QUIC read errored")
	tunnel.closeWithStatus(status.New(status.ServerError, err.Error()))
}

// SendMessage sends one instruction. A no-op unless the tunnel is Open.
func (tunnel *QUICTunnel) SendMessage(elements ...string) {
	if tunnel.State() != Open {
		return
	}

	tunnel.writeMutex.Lock()
	defer tunnel.writeMutex.Unlock()

	if _, err := tunnel.stream.Write(protocol.Encode(elements...)); err != nil {
		tunnel.log().WithError(err).Warn("QUIC write errored")
		tunnel.closeWithStatus(status.New(status.ServerError, err.Error()))
	}
}

// Disconnect closes the tunnel gracefully, closing the instruction stream
// and the connection beneath it.
func (tunnel *QUICTunnel) Disconnect() error {
	return tunnel.closeWithStatus(status.New(status.Success))
}

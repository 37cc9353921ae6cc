// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package tunnel provides the bidirectional transports carrying the
// Guacamole instruction stream.
//
// All variants implement the Tunnel interface: WebSocketTunnel speaks the
// "guacamole" WebSocket subprotocol, HTTPTunnel implements the HTTP
// long-polling fallback, QUICTunnel carries the same stream over a single
// QUIC bidirectional stream, StaticTunnel replays a recorded session, and
// ChainedTunnel tries a list of tunnels in order until one works.
//
// Tunnels invoke their callbacks from internal goroutines. Consumers that
// require serialization, such as the client, must funnel callbacks onto
// their own runner.
package tunnel

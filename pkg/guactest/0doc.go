// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package guactest provides test doubles for the protocol stack: a
// scriptable in-memory tunnel and minimal guacd-style WebSocket and HTTP
// long-poll servers.
package guactest

// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package client implements the top of the Guacamole client stack: it owns
// a tunnel, a display, the stream and object tables, and the audio and
// video backends, dispatching every received instruction to the matching
// handler.
//
// All instruction dispatch, render-queue work and user callbacks execute on
// a single runner goroutine, preserving the order sensitivity of the
// instruction stream. Outbound APIs are safe to call from any goroutine.
package client

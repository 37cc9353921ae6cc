// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package stream implements the byte channels multiplexed over the
// Guacamole instruction stream: input streams receiving base64 blobs from
// the server, output streams sending blobs to it, and the reader and writer
// layers translating between blobs and bytes, text, JSON or data URIs.
package stream

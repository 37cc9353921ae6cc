// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package protocol implements the textual framing of the Guacamole
// protocol: length-prefixed UTF-8 elements grouped into instructions.
//
// Each element of an instruction is framed as its UTF-8 byte length in
// decimal, a dot, and the element's bytes. Elements are separated by commas
// and the final element of an instruction is terminated by a semicolon. The
// instruction
//
//	size 1024 768
//
// is thus framed as "4.size,4.1024,3.768;". The Parser consumes this framing
// incrementally from arbitrarily chunked byte input.
package protocol

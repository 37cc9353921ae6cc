// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package protocol

import (
	"bytes"
	"fmt"

	"github.com/glyptodon/guacamole-go/pkg/status"
)

// parserTruncateThreshold is the consumed-prefix size above which the
// Parser's internal buffer is rebased, keeping memory bounded on long
// sessions.
const parserTruncateThreshold = 4096

// ErrProtocol wraps a framing violation. The tunnel owning the Parser must
// treat any such error as fatal.
type ErrProtocol struct {
	Reason string
}

func (err *ErrProtocol) Error() string {
	return fmt.Sprintf("protocol violation: %s", err.Reason)
}

// Status returns the Status equivalent of this framing violation.
func (err *ErrProtocol) Status() status.Status {
	return status.New(status.ServerError, err.Reason)
}

// Parser incrementally decodes the Guacamole instruction framing. Bytes are
// fed in via Append in arbitrary chunks; each completely received
// instruction is passed to OnInstruction in wire order.
//
// A Parser must not be shared between goroutines.
type Parser struct {
	// OnInstruction receives each complete instruction. It must be set
	// before the first Append.
	OnInstruction func(instruction Instruction)

	buffer     []byte
	startIndex int
	elementEnd int
	elements   []string
}

// NewParser creates an empty Parser.
func NewParser() *Parser {
	return &Parser{elementEnd: -1}
}

// Append feeds the next chunk of wire data into the Parser, emitting every
// instruction completed by it. On a framing violation an *ErrProtocol is
// returned and the Parser must not be used any further.
func (parser *Parser) Append(data []byte) error {
	parser.buffer = append(parser.buffer, data...)

	for {
		// Shed the consumed prefix once it grows large. Rebasing is only
		// valid while both indices point into the live region.
		if parser.startIndex > parserTruncateThreshold && parser.elementEnd >= parser.startIndex {
			parser.buffer = append(parser.buffer[:0], parser.buffer[parser.startIndex:]...)
			parser.elementEnd -= parser.startIndex
			parser.startIndex = 0
		}

		if parser.elementEnd >= parser.startIndex {
			// The current element's body is [startIndex, elementEnd); the
			// byte at elementEnd is its terminator.
			if parser.elementEnd >= len(parser.buffer) {
				return nil
			}

			element := string(parser.buffer[parser.startIndex:parser.elementEnd])
			terminator := parser.buffer[parser.elementEnd]

			parser.startIndex = parser.elementEnd + 1
			parser.elements = append(parser.elements, element)

			switch terminator {
			case ';':
				instruction := Instruction{Opcode: parser.elements[0]}
				if len(parser.elements) > 1 {
					instruction.Args = parser.elements[1:]
				}
				parser.elements = nil
				if parser.OnInstruction != nil {
					parser.OnInstruction(instruction)
				}

			case ',':
				// Next element of the same instruction follows.

			default:
				return &ErrProtocol{Reason: fmt.Sprintf("illegal terminator %q", terminator)}
			}
		} else {
			// Between elements: the length prefix of the next element runs
			// from just past the last terminator up to the next dot.
			dot := bytes.IndexByte(parser.buffer[parser.startIndex:], '.')
			if dot < 0 {
				return nil
			}
			dot += parser.startIndex

			length, lengthErr := parseElementLength(parser.buffer[parser.elementEnd+1 : dot])
			if lengthErr != nil {
				return lengthErr
			}

			parser.startIndex = dot + 1
			parser.elementEnd = parser.startIndex + length
		}
	}
}

// parseElementLength parses the decimal length prefix of an element. Unlike
// strconv.Atoi it rejects signs, spaces and empty input outright, as the
// framing permits digits only.
func parseElementLength(digits []byte) (int, error) {
	if len(digits) == 0 {
		return 0, &ErrProtocol{Reason: "empty element length"}
	}

	length := 0
	for _, digit := range digits {
		if digit < '0' || digit > '9' {
			return 0, &ErrProtocol{Reason: fmt.Sprintf("non-digit %q in element length", digit)}
		}
		length = length*10 + int(digit-'0')
	}

	return length, nil
}

// BufferedLen returns the current size of the internal buffer. It exists for
// verification of the truncation behavior and carries no protocol meaning.
func (parser *Parser) BufferedLen() int {
	return len(parser.buffer)
}

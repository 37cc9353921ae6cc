// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package protocol

import (
	"strconv"
	"strings"
)

// InternalDataOpcode is the reserved empty opcode used for data internal to
// a tunnel implementation, e.g., the session UUID announced after connecting.
// Instructions with this opcode never reach the instruction consumer.
const InternalDataOpcode = ""

// Instruction is a single Guacamole instruction: an opcode and its ordered
// argument elements. Arguments are uninterpreted text; their meaning depends
// entirely on the opcode.
type Instruction struct {
	Opcode string
	Args   []string
}

// NewInstruction creates an Instruction from an opcode and its arguments.
func NewInstruction(opcode string, args ...string) Instruction {
	return Instruction{Opcode: opcode, Args: args}
}

// Encode returns the wire form of an instruction built from the given
// elements, the opcode being the first. Element lengths count UTF-8 bytes,
// not codepoints.
func Encode(elements ...string) []byte {
	var sb strings.Builder

	for i, element := range elements {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(len(element)))
		sb.WriteByte('.')
		sb.WriteString(element)
	}
	sb.WriteByte(';')

	return []byte(sb.String())
}

// Bytes returns the wire form of this Instruction.
func (instruction Instruction) Bytes() []byte {
	elements := make([]string, 0, len(instruction.Args)+1)
	elements = append(elements, instruction.Opcode)
	elements = append(elements, instruction.Args...)
	return Encode(elements...)
}

func (instruction Instruction) String() string {
	return string(instruction.Bytes())
}

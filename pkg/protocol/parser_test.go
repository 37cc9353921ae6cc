// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package protocol

import (
	"bytes"
	"math/rand"
	"reflect"
	"testing"
)

func collectInstructions(parser *Parser) *[]Instruction {
	var instructions []Instruction
	parser.OnInstruction = func(instruction Instruction) {
		instructions = append(instructions, instruction)
	}
	return &instructions
}

func TestEncode(t *testing.T) {
	tests := []struct {
		elements []string
		wire     string
	}{
		{[]string{"sync", "0"}, "4.sync,1.0;"},
		{[]string{"size", "1024", "768"}, "4.size,4.1024,3.768;"},
		{[]string{"blob", "1", ""}, "4.blob,1.1,0.;"},
		{[]string{"name", "世"}, "4.name,3.世;"},
	}

	for _, test := range tests {
		if wire := string(Encode(test.elements...)); wire != test.wire {
			t.Errorf("Encode(%v): expected %q, got %q", test.elements, test.wire, wire)
		}
	}
}

func TestParserRoundTrip(t *testing.T) {
	instructions := []Instruction{
		NewInstruction("sync", "12345"),
		NewInstruction("size", "0", "1024", "768"),
		NewInstruction("name", "Schreibtisch: 世界"),
		NewInstruction("blob", "7", ""),
		NewInstruction("nop"),
	}

	var wire bytes.Buffer
	for _, instruction := range instructions {
		wire.Write(instruction.Bytes())
	}

	parser := NewParser()
	parsed := collectInstructions(parser)

	if err := parser.Append(wire.Bytes()); err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(*parsed, instructions) {
		t.Fatalf("expected %v, got %v", instructions, *parsed)
	}
}

// TestParserUnicodeLength pins the length prefix to UTF-8 bytes, not
// codepoints: U+4E16 is a single codepoint of three bytes.
func TestParserUnicodeLength(t *testing.T) {
	wire := Encode("name", "世")
	if string(wire) != "4.name,3.世;" {
		t.Fatalf("expected byte-counted framing, got %q", wire)
	}

	parser := NewParser()
	parsed := collectInstructions(parser)
	if err := parser.Append(wire); err != nil {
		t.Fatal(err)
	}
	if len(*parsed) != 1 || (*parsed)[0].Args[0] != "世" {
		t.Fatalf("expected one instruction carrying %q, got %v", "世", *parsed)
	}
}

// TestParserIncrementality feeds the same wire data under random chunkings
// and expects an identical instruction sequence every time.
func TestParserIncrementality(t *testing.T) {
	var wire bytes.Buffer
	var expected []Instruction
	for i := 0; i < 64; i++ {
		instruction := NewInstruction("rect", "0", "10", "20", "30", "40")
		expected = append(expected, instruction)
		wire.Write(instruction.Bytes())
	}

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 32; trial++ {
		parser := NewParser()
		parsed := collectInstructions(parser)

		remaining := wire.Bytes()
		for len(remaining) > 0 {
			n := 1 + rng.Intn(len(remaining))
			if err := parser.Append(remaining[:n]); err != nil {
				t.Fatal(err)
			}
			remaining = remaining[n:]
		}

		if !reflect.DeepEqual(*parsed, expected) {
			t.Fatalf("trial %d: chunked parse diverged", trial)
		}
	}
}

// TestParserTruncation streams 10000 instructions one byte at a time. The
// internal buffer must stay bounded by the truncation threshold.
func TestParserTruncation(t *testing.T) {
	parser := NewParser()
	count := 0
	parser.OnInstruction = func(instruction Instruction) {
		if instruction.Opcode != "sync" || len(instruction.Args) != 1 || instruction.Args[0] != "0" {
			t.Fatalf("unexpected instruction %v", instruction)
		}
		count++
	}

	wire := []byte("4.sync,1.0;")
	for i := 0; i < 10000; i++ {
		for j := range wire {
			if err := parser.Append(wire[j : j+1]); err != nil {
				t.Fatal(err)
			}
		}
	}

	if count != 10000 {
		t.Fatalf("expected 10000 instructions, got %d", count)
	}
	if buffered := parser.BufferedLen(); buffered > parserTruncateThreshold+len(wire) {
		t.Fatalf("buffer not truncated, %d bytes retained", buffered)
	}
}

func TestParserProtocolErrors(t *testing.T) {
	tests := []string{
		"4.sync,1.0:",  // illegal terminator
		"x.sync;",      // non-digit length
		"4x.sync;",     // non-digit within length
		".sync;",       // empty length
		"4.sync,-1.0;", // sign is not a digit
	}

	for _, wire := range tests {
		parser := NewParser()
		parser.OnInstruction = func(Instruction) {}
		if err := parser.Append([]byte(wire)); err == nil {
			t.Errorf("%q: expected a protocol error", wire)
		} else if _, ok := err.(*ErrProtocol); !ok {
			t.Errorf("%q: expected *ErrProtocol, got %T", wire, err)
		}
	}
}

func FuzzParser(f *testing.F) {
	f.Add([]byte("4.sync,1.0;"))
	f.Add([]byte("4.size,4.1024,3.768;4.name,3.世;"))
	f.Add([]byte("0.;"))
	f.Add([]byte("9999999."))

	f.Fuzz(func(t *testing.T, data []byte) {
		parser := NewParser()
		parser.OnInstruction = func(Instruction) {}

		// Must never panic, under any chunking.
		for len(data) > 0 {
			n := 1
			if len(data) > 3 {
				n = 3
			}
			if err := parser.Append(data[:n]); err != nil {
				return
			}
			data = data[n:]
		}
	})
}

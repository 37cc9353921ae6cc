// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package raster

import (
	"image"
	"image/color"
	"testing"
)

func rgbaColor(r, g, b, a uint8) color.RGBA {
	return color.RGBA{R: r, G: g, B: b, A: a}
}

// recordingRaster records operation names for verifying Layer bookkeeping.
type recordingRaster struct {
	MemoryRaster
	ops []string
}

func (r *recordingRaster) record(op string) { r.ops = append(r.ops, op) }

func (r *recordingRaster) BeginPath()          { r.record("beginPath"); r.MemoryRaster.BeginPath() }
func (r *recordingRaster) MoveTo(x, y float64) { r.record("moveTo"); r.MemoryRaster.MoveTo(x, y) }
func (r *recordingRaster) FillColor(c RGBA)    { r.record("fill"); r.MemoryRaster.FillColor(c) }
func (r *recordingRaster) Push()               { r.record("push"); r.MemoryRaster.Push() }
func (r *recordingRaster) Pop()                { r.record("pop"); r.MemoryRaster.Pop() }
func (r *recordingRaster) SetCompositeOperation(op CompositeOp) {
	r.record("composite:" + string(op))
	r.MemoryRaster.SetCompositeOperation(op)
}

func TestLayerAutosizeGrowth(t *testing.T) {
	buffer := NewBuffer(NewMemoryRaster())

	if !buffer.Autosize() {
		t.Fatal("buffers must start with autosize enabled")
	}

	buffer.Put(NewLayer(64, 64, NewMemoryRaster()), 0, 0, 64, 64, 100, 200)
	if buffer.Width() != 164 || buffer.Height() != 264 {
		t.Fatalf("expected 164x264 after autosize, got %dx%d", buffer.Width(), buffer.Height())
	}

	// Explicit resize disables autosize.
	buffer.Resize(10, 10)
	if buffer.Autosize() {
		t.Fatal("explicit resize must disable autosize")
	}
	buffer.Put(NewLayer(64, 64, NewMemoryRaster()), 0, 0, 64, 64, 100, 200)
	if buffer.Width() != 10 || buffer.Height() != 10 {
		t.Fatalf("layer grew despite autosize off: %dx%d", buffer.Width(), buffer.Height())
	}
}

func TestLayerImplicitPath(t *testing.T) {
	target := &recordingRaster{MemoryRaster: *NewMemoryRaster()}
	layer := NewLayer(8, 8, target)
	target.ops = nil

	layer.MoveTo(1, 1)
	layer.FillColor(RGBA{R: 255, A: 255})
	layer.MoveTo(2, 2)

	// The first path op after a fill must begin a new path; the very first
	// op must not (the target's path is already empty).
	expected := []string{"moveTo", "fill", "beginPath", "moveTo"}
	if len(target.ops) != len(expected) {
		t.Fatalf("expected ops %v, got %v", expected, target.ops)
	}
	for i := range expected {
		if target.ops[i] != expected[i] {
			t.Fatalf("expected ops %v, got %v", expected, target.ops)
		}
	}
}

func TestLayerPopOnEmptyStack(t *testing.T) {
	target := &recordingRaster{MemoryRaster: *NewMemoryRaster()}
	layer := NewLayer(8, 8, target)
	target.ops = nil

	layer.Pop()
	if len(target.ops) != 0 {
		t.Fatalf("pop on empty stack must not reach the target, got %v", target.ops)
	}

	layer.Push()
	layer.Pop()
	layer.Pop()
	if got := len(target.ops); got != 2 {
		t.Fatalf("expected exactly push+pop to reach the target, got %v", target.ops)
	}
}

func TestLayerChannelMaskValidation(t *testing.T) {
	target := &recordingRaster{MemoryRaster: *NewMemoryRaster()}
	layer := NewLayer(8, 8, target)
	target.ops = nil

	for _, invalid := range []ChannelMask{0x0, 0x3, 0x5, 0x7, 0xD} {
		layer.SetChannelMask(invalid)
	}
	if len(target.ops) != 0 {
		t.Fatalf("invalid masks must be ignored, got %v", target.ops)
	}

	layer.SetChannelMask(MaskSrc)
	if len(target.ops) != 1 || target.ops[0] != "composite:copy" {
		t.Fatalf("expected composite:copy, got %v", target.ops)
	}
}

func TestTransferFunctions(t *testing.T) {
	tests := []struct {
		code     int
		src, dst uint8
		result   uint8
	}{
		{0x0, 0xAA, 0x55, 0x00}, // BLACK
		{0x1, 0xF0, 0xAA, 0xA0}, // AND
		{0x3, 0xF0, 0xAA, 0xF0}, // SRC
		{0x5, 0xF0, 0xAA, 0xAA}, // DEST
		{0x6, 0xF0, 0xAA, 0x5A}, // XOR
		{0x7, 0xF0, 0x0A, 0xFA}, // OR
		{0xA, 0x00, 0x0F, 0xF0}, // INVERT
		{0xC, 0xF0, 0x00, 0x0F}, // COPY_INVERTED
		{0xF, 0x12, 0x34, 0xFF}, // WHITE
	}

	for _, test := range tests {
		fn, ok := TransferFunction(test.code)
		if !ok {
			t.Fatalf("missing transfer function 0x%X", test.code)
		}
		if result := fn(test.src, test.dst); result != test.result {
			t.Errorf("fn 0x%X(%#x, %#x): expected %#x, got %#x",
				test.code, test.src, test.dst, test.result, result)
		}
	}

	if _, ok := TransferFunction(0x10); ok {
		t.Error("codes above 0xF must be rejected")
	}
}

func TestMemoryRasterTransferPreservesAlpha(t *testing.T) {
	dst := NewMemoryRaster()
	dst.Resize(2, 2)
	dst.img.SetRGBA(0, 0, rgbaColor(0x0F, 0x0F, 0x0F, 0x80))

	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	src.SetRGBA(0, 0, rgbaColor(0xF0, 0xF0, 0xF0, 0xFF))

	fn, _ := TransferFunction(0x7) // OR
	dst.Transfer(src, image.Rect(0, 0, 2, 2), 0, 0, fn)

	out := dst.img.RGBAAt(0, 0)
	if out.R != 0xFF || out.G != 0xFF || out.B != 0xFF {
		t.Errorf("expected RGB OR result 0xFF, got %#v", out)
	}
	if out.A != 0x80 {
		t.Errorf("alpha must come from the destination, got %#x", out.A)
	}
}

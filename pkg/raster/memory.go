// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package raster

import (
	"image"
	"image/draw"
)

// MemoryRaster is the reference Raster backed by an in-memory RGBA image.
//
// It fully implements the pixel operations (draw, put, copy, transfer,
// resize) and the drawing-state bookkeeping. Vector path painting requires a
// real 2-D rasterizer and is outside this package's scope; MemoryRaster
// records path state but fills and strokes paint nothing. The display's
// flatten and all raster-level instructions work against it unchanged.
type MemoryRaster struct {
	img *image.RGBA

	op         CompositeOp
	transform  Matrix
	miterLimit float64
	stack      []memoryState
}

type memoryState struct {
	op         CompositeOp
	transform  Matrix
	miterLimit float64
}

// NewMemoryRaster creates an empty MemoryRaster. The owning Layer resizes it
// before first use.
func NewMemoryRaster() *MemoryRaster {
	return &MemoryRaster{
		img:        image.NewRGBA(image.Rect(0, 0, 0, 0)),
		op:         OpSourceOver,
		transform:  Identity(),
		miterLimit: 10,
	}
}

// Resize reallocates the pixel buffer, redrawing the old content into the
// overlapping region. The composite operation survives the resize; the
// saved-state stack does not.
func (m *MemoryRaster) Resize(width, height int) {
	resized := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(resized, m.img.Bounds(), m.img, m.img.Bounds().Min, draw.Src)
	m.img = resized
	m.stack = nil
}

func (m *MemoryRaster) BeginPath()                       {}
func (m *MemoryRaster) MoveTo(x, y float64)              {}
func (m *MemoryRaster) LineTo(x, y float64)              {}
func (m *MemoryRaster) ClosePath()                       {}
func (m *MemoryRaster) Clip()                            {}
func (m *MemoryRaster) Rect(x, y, w, h float64)          {}
func (m *MemoryRaster) CurveTo(a, b, c, d, x, y float64) {}

func (m *MemoryRaster) Arc(x, y, radius, startAngle, endAngle float64, negative bool) {}

func (m *MemoryRaster) FillColor(c RGBA) {}

func (m *MemoryRaster) StrokeColor(cap CapStyle, join JoinStyle, thickness float64, c RGBA) {}

func (m *MemoryRaster) FillPattern(src image.Image) {}

func (m *MemoryRaster) StrokePattern(cap CapStyle, join JoinStyle, thickness float64, src image.Image) {
}

// DrawImage draws img at (x, y) through the active composite operation.
func (m *MemoryRaster) DrawImage(x, y int, img image.Image) {
	bounds := img.Bounds()
	dst := image.Rect(x, y, x+bounds.Dx(), y+bounds.Dy())
	draw.Draw(m.img, dst, img, bounds.Min, m.drawOp())
}

// Put replaces the destination rectangle with the source pixels outright.
func (m *MemoryRaster) Put(src image.Image, srcRect image.Rectangle, x, y int) {
	dst := image.Rect(x, y, x+srcRect.Dx(), y+srcRect.Dy())
	draw.Draw(m.img, dst, src, srcRect.Min, draw.Src)
}

// Copy blits the source rectangle through the active composite operation.
func (m *MemoryRaster) Copy(src image.Image, srcRect image.Rectangle, x, y int) {
	dst := image.Rect(x, y, x+srcRect.Dx(), y+srcRect.Dy())
	draw.Draw(m.img, dst, src, srcRect.Min, m.drawOp())
}

// Transfer combines source and destination per pixel via fn on the RGB
// channels, preserving the destination's alpha.
func (m *MemoryRaster) Transfer(src image.Image, srcRect image.Rectangle, x, y int, fn TransferFunc) {
	for dy := 0; dy < srcRect.Dy(); dy++ {
		for dx := 0; dx < srcRect.Dx(); dx++ {
			dstX, dstY := x+dx, y+dy
			if !(image.Point{X: dstX, Y: dstY}).In(m.img.Bounds()) {
				continue
			}

			sr, sg, sb, _ := src.At(srcRect.Min.X+dx, srcRect.Min.Y+dy).RGBA()
			dst := m.img.RGBAAt(dstX, dstY)

			dst.R = fn(uint8(sr>>8), dst.R)
			dst.G = fn(uint8(sg>>8), dst.G)
			dst.B = fn(uint8(sb>>8), dst.B)
			m.img.SetRGBA(dstX, dstY, dst)
		}
	}
}

func (m *MemoryRaster) Push() {
	m.stack = append(m.stack, memoryState{
		op:         m.op,
		transform:  m.transform,
		miterLimit: m.miterLimit,
	})
}

func (m *MemoryRaster) Pop() {
	if n := len(m.stack); n > 0 {
		state := m.stack[n-1]
		m.stack = m.stack[:n-1]
		m.op = state.op
		m.transform = state.transform
		m.miterLimit = state.miterLimit
	}
}

func (m *MemoryRaster) Reset() {
	m.stack = nil
	m.op = OpSourceOver
	m.transform = Identity()
	m.miterLimit = 10
}

func (m *MemoryRaster) SetTransform(mat Matrix) {
	m.transform = mat
}

func (m *MemoryRaster) Transform(mat Matrix) {
	m.transform = m.transform.Multiply(mat)
}

func (m *MemoryRaster) SetCompositeOperation(op CompositeOp) {
	m.op = op
}

func (m *MemoryRaster) SetMiterLimit(limit float64) {
	m.miterLimit = limit
}

// Image returns the live pixel buffer. Callers treat it as read-only.
func (m *MemoryRaster) Image() *image.RGBA {
	return m.img
}

// drawOp maps the composite operation onto the two modes image/draw offers.
// OpCopy replaces pixels; everything else composites over.
func (m *MemoryRaster) drawOp() draw.Op {
	if m.op == OpCopy {
		return draw.Src
	}
	return draw.Over
}

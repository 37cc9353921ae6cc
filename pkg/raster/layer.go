// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package raster

import "image"

// Layer is a drawing surface. It forwards every operation to its Raster
// target while tracking autosize growth, the saved-state stack depth, and
// whether the current path has been closed by a fill, stroke or clip.
type Layer struct {
	width  int
	height int

	// autosize grows the layer to contain any drawn rectangle. Buffers
	// start with autosize enabled until explicitly resized.
	autosize bool

	target     Raster
	stackSize  int
	pathClosed bool
}

// NewLayer creates a Layer of the given size over the given Raster target.
func NewLayer(width, height int, target Raster) *Layer {
	target.Resize(width, height)
	return &Layer{
		width:  width,
		height: height,
		target: target,
	}
}

// NewBuffer creates an off-screen Layer with autosize enabled, the initial
// state of negative-indexed layers.
func NewBuffer(target Raster) *Layer {
	layer := NewLayer(0, 0, target)
	layer.autosize = true
	return layer
}

// Width returns the layer's current width in pixels.
func (layer *Layer) Width() int { return layer.width }

// Height returns the layer's current height in pixels.
func (layer *Layer) Height() int { return layer.height }

// Autosize reports whether the layer grows to fit drawn content.
func (layer *Layer) Autosize() bool { return layer.autosize }

// Target returns the underlying Raster.
func (layer *Layer) Target() Raster { return layer.target }

// Resize sets the layer's size, disabling autosize. Previously drawn pixels
// within the overlapping region survive; the saved-state stack is reset.
func (layer *Layer) Resize(width, height int) {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}

	layer.autosize = false
	layer.resize(width, height)
}

func (layer *Layer) resize(width, height int) {
	layer.width = width
	layer.height = height
	layer.stackSize = 0
	layer.target.Resize(width, height)
}

// fitRect grows an autosizing layer to contain the given rectangle.
func (layer *Layer) fitRect(x, y, width, height int) {
	if !layer.autosize {
		return
	}

	opBoundX := x + width
	opBoundY := y + height

	resizeWidth := layer.width
	if opBoundX > resizeWidth {
		resizeWidth = opBoundX
	}
	resizeHeight := layer.height
	if opBoundY > resizeHeight {
		resizeHeight = opBoundY
	}

	if resizeWidth != layer.width || resizeHeight != layer.height {
		layer.resize(resizeWidth, resizeHeight)
	}
}

// beginPath starts a new path if the current one was closed by a fill,
// stroke or clip.
func (layer *Layer) beginPath() {
	if layer.pathClosed {
		layer.target.BeginPath()
		layer.pathClosed = false
	}
}

// closePath marks the current path closed, implicitly beginning a new path
// on the next path operation.
func (layer *Layer) closePath() {
	layer.pathClosed = true
}

// MoveTo starts a new subpath at (x, y).
func (layer *Layer) MoveTo(x, y float64) {
	layer.beginPath()
	layer.fitRect(int(x), int(y), 0, 0)
	layer.target.MoveTo(x, y)
}

// LineTo adds a line segment to (x, y).
func (layer *Layer) LineTo(x, y float64) {
	layer.beginPath()
	layer.fitRect(int(x), int(y), 0, 0)
	layer.target.LineTo(x, y)
}

// Arc adds an arc around (x, y) with the given radius between the two
// angles, counterclockwise if negative is set.
func (layer *Layer) Arc(x, y, radius, startAngle, endAngle float64, negative bool) {
	layer.beginPath()
	layer.fitRect(int(x+radius), int(y+radius), 0, 0)
	layer.target.Arc(x, y, radius, startAngle, endAngle, negative)
}

// CurveTo adds a cubic Bézier curve to (x, y).
func (layer *Layer) CurveTo(cp1x, cp1y, cp2x, cp2y, x, y float64) {
	layer.beginPath()
	layer.fitRect(int(cp1x), int(cp1y), 0, 0)
	layer.fitRect(int(cp2x), int(cp2y), 0, 0)
	layer.fitRect(int(x), int(y), 0, 0)
	layer.target.CurveTo(cp1x, cp1y, cp2x, cp2y, x, y)
}

// Rect adds a rectangular subpath.
func (layer *Layer) Rect(x, y, width, height float64) {
	layer.beginPath()
	layer.fitRect(int(x), int(y), int(width), int(height))
	layer.target.Rect(x, y, width, height)
}

// Close closes the current subpath.
func (layer *Layer) Close() {
	layer.closePath()
	layer.target.ClosePath()
}

// Clip replaces the clipping region with the current path.
func (layer *Layer) Clip() {
	layer.closePath()
	layer.target.Clip()
}

// FillColor fills the current path with a solid color.
func (layer *Layer) FillColor(c RGBA) {
	layer.closePath()
	layer.target.FillColor(c)
}

// FillLayer fills the current path with the content of another layer used
// as a tiled pattern.
func (layer *Layer) FillLayer(src *Layer) {
	layer.closePath()
	layer.target.FillPattern(src.target.Image())
}

// StrokeColor strokes the current path with a solid color.
func (layer *Layer) StrokeColor(cap CapStyle, join JoinStyle, thickness float64, c RGBA) {
	layer.closePath()
	layer.target.StrokeColor(cap, join, thickness, c)
}

// StrokeLayer strokes the current path with the content of another layer
// used as a tiled pattern.
func (layer *Layer) StrokeLayer(cap CapStyle, join JoinStyle, thickness float64, src *Layer) {
	layer.closePath()
	layer.target.StrokePattern(cap, join, thickness, src.target.Image())
}

// DrawImage draws a decoded image at (x, y).
func (layer *Layer) DrawImage(x, y int, img image.Image) {
	bounds := img.Bounds()
	layer.fitRect(x, y, bounds.Dx(), bounds.Dy())
	layer.target.DrawImage(x, y, img)
}

// Put copies a rectangle of src to (x, y), replacing the destination pixels
// outright.
func (layer *Layer) Put(src *Layer, srcX, srcY, srcWidth, srcHeight, x, y int) {
	snapshot := src.target.Image()
	layer.fitRect(x, y, srcWidth, srcHeight)
	layer.target.Put(snapshot, image.Rect(srcX, srcY, srcX+srcWidth, srcY+srcHeight), x, y)
}

// Copy blits a rectangle of src to (x, y) through the active composite
// operation, preserving alpha.
func (layer *Layer) Copy(src *Layer, srcX, srcY, srcWidth, srcHeight, x, y int) {
	snapshot := src.target.Image()
	layer.fitRect(x, y, srcWidth, srcHeight)
	layer.target.Copy(snapshot, image.Rect(srcX, srcY, srcX+srcWidth, srcY+srcHeight), x, y)
}

// Transfer combines a rectangle of src with the destination through the
// given per-channel transfer function.
func (layer *Layer) Transfer(src *Layer, srcX, srcY, srcWidth, srcHeight, x, y int, fn TransferFunc) {
	snapshot := src.target.Image()
	layer.fitRect(x, y, srcWidth, srcHeight)
	layer.target.Transfer(snapshot, image.Rect(srcX, srcY, srcX+srcWidth, srcY+srcHeight), x, y, fn)
}

// Push saves the current drawing state.
func (layer *Layer) Push() {
	layer.stackSize++
	layer.target.Push()
}

// Pop restores the last saved drawing state. Popping an empty stack is a
// no-op.
func (layer *Layer) Pop() {
	if layer.stackSize == 0 {
		return
	}
	layer.stackSize--
	layer.target.Pop()
}

// Reset discards all saved states, begins a new empty path and restores the
// initial drawing state.
func (layer *Layer) Reset() {
	layer.stackSize = 0
	layer.pathClosed = false
	layer.target.Reset()
	layer.target.BeginPath()
}

// SetTransform replaces the layer's affine transform.
func (layer *Layer) SetTransform(m Matrix) {
	layer.target.SetTransform(m)
}

// Transform multiplies the layer's affine transform by m.
func (layer *Layer) Transform(m Matrix) {
	layer.target.Transform(m)
}

// SetChannelMask sets the composite operation via the 4-bit channel mask.
// Masks without a composite equivalent are ignored.
func (layer *Layer) SetChannelMask(mask ChannelMask) {
	if op, ok := mask.Op(); ok {
		layer.target.SetCompositeOperation(op)
	}
}

// SetMiterLimit sets the miter joint limit for stroked paths.
func (layer *Layer) SetMiterLimit(limit float64) {
	layer.target.SetMiterLimit(limit)
}

// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package raster

import "image"

// CapStyle is the stroke line-cap style of the "cstroke" and "lstroke"
// instructions.
type CapStyle string

const (
	CapButt   CapStyle = "butt"
	CapRound  CapStyle = "round"
	CapSquare CapStyle = "square"
)

// JoinStyle is the stroke line-join style of the "cstroke" and "lstroke"
// instructions.
type JoinStyle string

const (
	JoinBevel JoinStyle = "bevel"
	JoinMiter JoinStyle = "miter"
	JoinRound JoinStyle = "round"
)

// RGBA is a non-premultiplied 8-bit color.
type RGBA struct {
	R, G, B, A uint8
}

// Raster is the opaque drawing target beneath a Layer. Implementations are
// canvas-like: they hold a current path, a saved-state stack, a transform
// and a composite operation. All coordinates are pixels.
//
// Raster implementations are driven exclusively from the display's task
// runner and need not be safe for concurrent use.
type Raster interface {
	// Resize changes the target's size, preserving the previously drawn
	// pixels of the overlapping region and the active composite operation.
	Resize(width, height int)

	// Path construction.
	BeginPath()
	MoveTo(x, y float64)
	LineTo(x, y float64)
	Arc(x, y, radius, startAngle, endAngle float64, negative bool)
	CurveTo(cp1x, cp1y, cp2x, cp2y, x, y float64)
	Rect(x, y, width, height float64)
	ClosePath()

	// Clip replaces the clipping region with the current path.
	Clip()

	// Painting of the current path.
	FillColor(c RGBA)
	StrokeColor(cap CapStyle, join JoinStyle, thickness float64, c RGBA)
	FillPattern(src image.Image)
	StrokePattern(cap CapStyle, join JoinStyle, thickness float64, src image.Image)

	// Pixel operations.
	DrawImage(x, y int, img image.Image)
	Put(src image.Image, srcRect image.Rectangle, x, y int)
	Copy(src image.Image, srcRect image.Rectangle, x, y int)
	Transfer(src image.Image, srcRect image.Rectangle, x, y int, fn TransferFunc)

	// Drawing state.
	Push()
	Pop()
	Reset()
	SetTransform(m Matrix)
	Transform(m Matrix)
	SetCompositeOperation(op CompositeOp)
	SetMiterLimit(limit float64)

	// Image returns the current pixel content, for use as the source of
	// copy, put, transfer and pattern operations on other targets.
	Image() *image.RGBA
}

// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package display maintains the scene graph of a Guacamole session: the
// default layer, its tree of visible child layers, off-screen buffers and
// the cursor layer. All drawing goes through the display's render queue, so
// the whole scene advances frame by frame; only cursor motion bypasses the
// queue for responsiveness.
package display

import (
	"image"
	"sort"

	"github.com/glyptodon/guacamole-go/pkg/raster"
	"github.com/glyptodon/guacamole-go/pkg/render"
)

// Display owns all layers of a session. Layers are addressed by signed
// integer indices: 0 is the default visible layer, positive indices are
// visible layers beneath it, negative indices are off-screen buffers.
type Display struct {
	// OnResize is fired when the default layer changes size.
	OnResize func(width, height int)

	// OnCursor is fired on cursor motion and cursor image changes.
	OnCursor func(x, y int)

	width  int
	height int

	queue     *render.Queue
	newRaster func() raster.Raster

	layers  map[int]*VisibleLayer
	buffers map[int]*raster.Layer

	// order increments with every layer creation or reparenting, breaking
	// z-order ties by most recent insertion.
	order int

	cursor         *raster.Layer
	cursorHotspotX int
	cursorHotspotY int
	cursorX        int
	cursorY        int
}

// New creates a Display of the given initial size. The factory supplies a
// fresh Raster target for every layer the session creates.
func New(width, height int, newRaster func() raster.Raster) *Display {
	display := &Display{
		width:     width,
		height:    height,
		queue:     render.NewQueue(),
		newRaster: newRaster,
		layers:    make(map[int]*VisibleLayer),
		buffers:   make(map[int]*raster.Layer),
	}

	display.layers[0] = newVisibleLayer(raster.NewLayer(width, height, newRaster()), 0)
	display.layers[0].parent = -1

	display.cursor = raster.NewBuffer(newRaster())
	display.cursor.SetChannelMask(raster.MaskSrc)

	return display
}

// Width returns the display's current width.
func (display *Display) Width() int { return display.width }

// Height returns the display's current height.
func (display *Display) Height() int { return display.height }

// DefaultLayer returns the root visible layer.
func (display *Display) DefaultLayer() *VisibleLayer { return display.layers[0] }

// Visible returns the visible layer of the given non-negative index,
// creating it beneath the default layer on first reference.
func (display *Display) Visible(index int) *VisibleLayer {
	if index < 0 {
		return nil
	}

	if layer, ok := display.layers[index]; ok {
		return layer
	}

	layer := newVisibleLayer(raster.NewLayer(display.width, display.height, display.newRaster()), index)
	display.order++
	layer.order = display.order
	display.layers[index] = layer
	return layer
}

// Buffer returns the off-screen buffer of the given negative index,
// creating it on first reference.
func (display *Display) Buffer(index int) *raster.Layer {
	if buffer, ok := display.buffers[index]; ok {
		return buffer
	}

	buffer := raster.NewBuffer(display.newRaster())
	display.buffers[index] = buffer
	return buffer
}

// Drawable resolves any layer index to its drawing surface, creating the
// layer on demand.
func (display *Display) Drawable(index int) *raster.Layer {
	if index < 0 {
		return display.Buffer(index)
	}
	return display.Visible(index).Layer
}

// Dispose drops the layer of the given index. The default layer cannot be
// disposed; disposing a positive index detaches that layer from the scene.
func (display *Display) Dispose(index int) {
	if index == 0 {
		return
	}
	if index < 0 {
		delete(display.buffers, index)
		return
	}
	delete(display.layers, index)
}

// Schedule appends a task to the current frame.
func (display *Display) Schedule(handler func()) *render.Task {
	return display.queue.Schedule(handler, false)
}

// ScheduleBlocked appends a blocked task to the current frame. The caller
// unblocks it once the task's asynchronous resource is ready.
func (display *Display) ScheduleBlocked(handler func()) *render.Task {
	return display.queue.Schedule(handler, true)
}

// Flush seals the current frame. The callback fires once the frame and all
// frames before it have run.
func (display *Display) Flush(callback func()) {
	display.queue.Flush(callback)
}

// Drop discards all pending drawing work. Used on disconnect.
func (display *Display) Drop() {
	display.queue.Drop()
}

// ResizeDefault schedules a resize of the default layer, updating the
// display dimensions and firing OnResize.
func (display *Display) ResizeDefault(width, height int) {
	display.Schedule(func() {
		display.DefaultLayer().Resize(width, height)
		display.width = width
		display.height = height
		if display.OnResize != nil {
			display.OnResize(width, height)
		}
	})
}

// SetCursor schedules replacing the cursor image with a rectangle of the
// given source layer.
func (display *Display) SetCursor(hotspotX, hotspotY int, src *raster.Layer, srcX, srcY, srcWidth, srcHeight int) {
	display.Schedule(func() {
		display.cursorHotspotX = hotspotX
		display.cursorHotspotY = hotspotY

		display.cursor.Resize(srcWidth, srcHeight)
		display.cursor.Put(src, srcX, srcY, srcWidth, srcHeight, 0, 0)

		if display.OnCursor != nil {
			display.OnCursor(display.cursorX, display.cursorY)
		}
	})
}

// MoveCursor moves the cursor immediately, bypassing the render queue.
func (display *Display) MoveCursor(x, y int) {
	display.cursorX = x
	display.cursorY = y
	if display.OnCursor != nil {
		display.OnCursor(x, y)
	}
}

// CursorPosition returns the cursor's position and hotspot.
func (display *Display) CursorPosition() (x, y, hotspotX, hotspotY int) {
	return display.cursorX, display.cursorY, display.cursorHotspotX, display.cursorHotspotY
}

// Cursor returns the cursor layer.
func (display *Display) Cursor() *raster.Layer {
	return display.cursor
}

// Move schedules reparenting and repositioning of a visible layer. The
// default layer and buffers cannot move.
func (display *Display) Move(index, parent, x, y, z int) {
	if index <= 0 || parent < 0 {
		return
	}

	display.Schedule(func() {
		layer := display.Visible(index)
		display.Visible(parent) // materialize the parent
		layer.parent = parent
		layer.x = x
		layer.y = y
		layer.z = z
		display.order++
		layer.order = display.order
	})
}

// Shade schedules an opacity change of a visible layer.
func (display *Display) Shade(index, alpha int) {
	if index < 0 {
		return
	}
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 255 {
		alpha = 255
	}

	display.Schedule(func() {
		display.Visible(index).alpha = uint8(alpha)
	})
}

// Distort schedules replacing the affine transform of a visible layer.
func (display *Display) Distort(index int, m raster.Matrix) {
	if index < 0 {
		return
	}

	display.Schedule(func() {
		display.Visible(index).matrix = m
	})
}

// children returns the visible layers parented to the given index, in
// compositing order.
func (display *Display) children(parent int) []*VisibleLayer {
	var result []*VisibleLayer
	for index, layer := range display.layers {
		if index != 0 && layer.parent == parent {
			result = append(result, layer)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].z != result[j].z {
			return result[i].z < result[j].z
		}
		return result[i].order < result[j].order
	})

	return result
}

// Flatten composites the entire scene graph, cursor included, into a single
// image.
func (display *Display) Flatten() *image.RGBA {
	flat := image.NewRGBA(image.Rect(0, 0, display.width, display.height))

	display.flattenLayer(flat, display.layers[0], raster.Identity())

	cursorImage := display.cursor.Target().Image()
	compose(flat, cursorImage, translation(
		float64(display.cursorX-display.cursorHotspotX),
		float64(display.cursorY-display.cursorHotspotY)), 255)

	return flat
}

// flattenLayer draws one layer and, recursively, its children.
func (display *Display) flattenLayer(dst *image.RGBA, layer *VisibleLayer, parent raster.Matrix) {
	m := parent.
		Multiply(translation(float64(layer.x), float64(layer.y))).
		Multiply(layer.matrix)

	compose(dst, layer.Layer.Target().Image(), m, layer.alpha)

	for _, child := range display.children(layer.index) {
		display.flattenLayer(dst, child, m)
	}
}

func translation(x, y float64) raster.Matrix {
	return raster.Matrix{A: 1, D: 1, E: x, F: y}
}

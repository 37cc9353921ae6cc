// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package client

import (
	"github.com/glyptodon/guacamole-go/pkg/raster"
)

// capStyles and joinStyles translate the numeric stroke style arguments.
var capStyles = []raster.CapStyle{raster.CapButt, raster.CapRound, raster.CapSquare}
var joinStyles = []raster.JoinStyle{raster.JoinBevel, raster.JoinMiter, raster.JoinRound}

func capStyle(arg string) raster.CapStyle {
	if index := atoi(arg); index >= 0 && index < len(capStyles) {
		return capStyles[index]
	}
	return raster.CapButt
}

func joinStyle(arg string) raster.JoinStyle {
	if index := atoi(arg); index >= 0 && index < len(joinStyles) {
		return joinStyles[index]
	}
	return raster.JoinBevel
}

func (c *Client) handleArc(args []string) {
	if len(args) < 7 {
		return
	}
	layer := c.display.Drawable(atoi(args[0]))
	x, y := atof(args[1]), atof(args[2])
	radius := atof(args[3])
	startAngle, endAngle := atof(args[4]), atof(args[5])
	negative := atoi(args[6]) != 0

	c.display.Schedule(func() {
		layer.Arc(x, y, radius, startAngle, endAngle, negative)
	})
}

func (c *Client) handleCfill(args []string) {
	if len(args) < 6 {
		return
	}
	mask := raster.ChannelMask(atoi(args[0]))
	layer := c.display.Drawable(atoi(args[1]))
	color := raster.RGBA{
		R: uint8(atoi(args[2])),
		G: uint8(atoi(args[3])),
		B: uint8(atoi(args[4])),
		A: uint8(atoi(args[5])),
	}

	c.display.Schedule(func() {
		layer.SetChannelMask(mask)
		layer.FillColor(color)
	})
}

func (c *Client) handleClip(args []string) {
	if len(args) < 1 {
		return
	}
	layer := c.display.Drawable(atoi(args[0]))

	c.display.Schedule(func() {
		layer.Clip()
	})
}

func (c *Client) handleClose(args []string) {
	if len(args) < 1 {
		return
	}
	layer := c.display.Drawable(atoi(args[0]))

	c.display.Schedule(func() {
		layer.Close()
	})
}

func (c *Client) handleCopy(args []string) {
	if len(args) < 9 {
		return
	}
	src := c.display.Drawable(atoi(args[0]))
	srcX, srcY := atoi(args[1]), atoi(args[2])
	srcWidth, srcHeight := atoi(args[3]), atoi(args[4])
	mask := raster.ChannelMask(atoi(args[5]))
	dst := c.display.Drawable(atoi(args[6]))
	dstX, dstY := atoi(args[7]), atoi(args[8])

	c.display.Schedule(func() {
		dst.SetChannelMask(mask)
		dst.Copy(src, srcX, srcY, srcWidth, srcHeight, dstX, dstY)
	})
}

func (c *Client) handleCstroke(args []string) {
	if len(args) < 9 {
		return
	}
	mask := raster.ChannelMask(atoi(args[0]))
	layer := c.display.Drawable(atoi(args[1]))
	cap, join := capStyle(args[2]), joinStyle(args[3])
	thickness := atof(args[4])
	color := raster.RGBA{
		R: uint8(atoi(args[5])),
		G: uint8(atoi(args[6])),
		B: uint8(atoi(args[7])),
		A: uint8(atoi(args[8])),
	}

	c.display.Schedule(func() {
		layer.SetChannelMask(mask)
		layer.StrokeColor(cap, join, thickness, color)
	})
}

func (c *Client) handleCursor(args []string) {
	if len(args) < 7 {
		return
	}
	hotspotX, hotspotY := atoi(args[0]), atoi(args[1])
	src := c.display.Drawable(atoi(args[2]))
	srcX, srcY := atoi(args[3]), atoi(args[4])
	srcWidth, srcHeight := atoi(args[5]), atoi(args[6])

	c.display.SetCursor(hotspotX, hotspotY, src, srcX, srcY, srcWidth, srcHeight)
}

func (c *Client) handleCurve(args []string) {
	if len(args) < 7 {
		return
	}
	layer := c.display.Drawable(atoi(args[0]))
	cp1x, cp1y := atof(args[1]), atof(args[2])
	cp2x, cp2y := atof(args[3]), atof(args[4])
	x, y := atof(args[5]), atof(args[6])

	c.display.Schedule(func() {
		layer.CurveTo(cp1x, cp1y, cp2x, cp2y, x, y)
	})
}

func (c *Client) handleIdentity(args []string) {
	if len(args) < 1 {
		return
	}
	layer := c.display.Drawable(atoi(args[0]))

	c.display.Schedule(func() {
		layer.SetTransform(raster.Identity())
	})
}

func (c *Client) handleLfill(args []string) {
	if len(args) < 3 {
		return
	}
	mask := raster.ChannelMask(atoi(args[0]))
	layer := c.display.Drawable(atoi(args[1]))
	src := c.display.Drawable(atoi(args[2]))

	c.display.Schedule(func() {
		layer.SetChannelMask(mask)
		layer.FillLayer(src)
	})
}

func (c *Client) handleLine(args []string) {
	if len(args) < 3 {
		return
	}
	layer := c.display.Drawable(atoi(args[0]))
	x, y := atof(args[1]), atof(args[2])

	c.display.Schedule(func() {
		layer.LineTo(x, y)
	})
}

func (c *Client) handleLstroke(args []string) {
	if len(args) < 6 {
		return
	}
	mask := raster.ChannelMask(atoi(args[0]))
	layer := c.display.Drawable(atoi(args[1]))
	cap, join := capStyle(args[2]), joinStyle(args[3])
	thickness := atof(args[4])
	src := c.display.Drawable(atoi(args[5]))

	c.display.Schedule(func() {
		layer.SetChannelMask(mask)
		layer.StrokeLayer(cap, join, thickness, src)
	})
}

func (c *Client) handlePop(args []string) {
	if len(args) < 1 {
		return
	}
	layer := c.display.Drawable(atoi(args[0]))

	c.display.Schedule(func() {
		layer.Pop()
	})
}

func (c *Client) handlePush(args []string) {
	if len(args) < 1 {
		return
	}
	layer := c.display.Drawable(atoi(args[0]))

	c.display.Schedule(func() {
		layer.Push()
	})
}

func (c *Client) handleRect(args []string) {
	if len(args) < 5 {
		return
	}
	layer := c.display.Drawable(atoi(args[0]))
	x, y := atof(args[1]), atof(args[2])
	width, height := atof(args[3]), atof(args[4])

	c.display.Schedule(func() {
		layer.Rect(x, y, width, height)
	})
}

func (c *Client) handleReset(args []string) {
	if len(args) < 1 {
		return
	}
	layer := c.display.Drawable(atoi(args[0]))

	c.display.Schedule(func() {
		layer.Reset()
	})
}

func (c *Client) handleSize(args []string) {
	if len(args) < 3 {
		return
	}
	index := atoi(args[0])
	width, height := atoi(args[1]), atoi(args[2])

	if index == 0 {
		c.display.ResizeDefault(width, height)
		return
	}

	layer := c.display.Drawable(index)
	c.display.Schedule(func() {
		layer.Resize(width, height)
	})
}

func (c *Client) handleStart(args []string) {
	if len(args) < 3 {
		return
	}
	layer := c.display.Drawable(atoi(args[0]))
	x, y := atof(args[1]), atof(args[2])

	c.display.Schedule(func() {
		layer.MoveTo(x, y)
	})
}

func (c *Client) handleTransfer(args []string) {
	if len(args) < 9 {
		return
	}
	src := c.display.Drawable(atoi(args[0]))
	srcX, srcY := atoi(args[1]), atoi(args[2])
	srcWidth, srcHeight := atoi(args[3]), atoi(args[4])
	code := atoi(args[5])
	dst := c.display.Drawable(atoi(args[6]))
	dstX, dstY := atoi(args[7]), atoi(args[8])

	switch code {
	case 0x3:
		// SRC is a plain put.
		c.display.Schedule(func() {
			dst.Put(src, srcX, srcY, srcWidth, srcHeight, dstX, dstY)
		})

	case 0x5:
		// DEST leaves the destination untouched.

	default:
		fn, ok := raster.TransferFunction(code)
		if !ok {
			return
		}
		c.display.Schedule(func() {
			dst.Transfer(src, srcX, srcY, srcWidth, srcHeight, dstX, dstY, fn)
		})
	}
}

func (c *Client) handleTransform(args []string) {
	if len(args) < 7 {
		return
	}
	layer := c.display.Drawable(atoi(args[0]))
	m := raster.Matrix{
		A: atof(args[1]), B: atof(args[2]),
		C: atof(args[3]), D: atof(args[4]),
		E: atof(args[5]), F: atof(args[6]),
	}

	c.display.Schedule(func() {
		layer.Transform(m)
	})
}

func (c *Client) handleDispose(args []string) {
	if len(args) < 1 {
		return
	}
	index := atoi(args[0])

	c.display.Schedule(func() {
		c.display.Dispose(index)
	})
}

func (c *Client) handleDistort(args []string) {
	if len(args) < 7 {
		return
	}
	index := atoi(args[0])
	if index < 0 {
		return
	}
	m := raster.Matrix{
		A: atof(args[1]), B: atof(args[2]),
		C: atof(args[3]), D: atof(args[4]),
		E: atof(args[5]), F: atof(args[6]),
	}

	c.display.Distort(index, m)
}

func (c *Client) handleMove(args []string) {
	if len(args) < 5 {
		return
	}
	index := atoi(args[0])
	parent := atoi(args[1])
	x, y, z := atoi(args[2]), atoi(args[3]), atoi(args[4])

	c.display.Move(index, parent, x, y, z)
}

func (c *Client) handleShade(args []string) {
	if len(args) < 2 {
		return
	}
	c.display.Shade(atoi(args[0]), atoi(args[1]))
}

func (c *Client) handleSet(args []string) {
	if len(args) < 3 {
		return
	}
	layer := c.display.Drawable(atoi(args[0]))
	property, value := args[1], args[2]

	switch property {
	case "miter-limit":
		limit := atof(value)
		c.display.Schedule(func() {
			layer.SetMiterLimit(limit)
		})
	}
}

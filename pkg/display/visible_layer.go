// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package display

import (
	"image"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/glyptodon/guacamole-go/pkg/raster"
)

// VisibleLayer is a layer participating in the scene graph. Its parent is a
// weak reference by layer index, resolved through the display's layer map,
// so disposing a parent simply detaches the subtree.
type VisibleLayer struct {
	*raster.Layer

	index  int
	parent int

	x, y  int
	z     int
	alpha uint8

	matrix raster.Matrix

	// order breaks z ties: the most recently inserted layer wins.
	order int
}

func newVisibleLayer(layer *raster.Layer, index int) *VisibleLayer {
	return &VisibleLayer{
		Layer:  layer,
		index:  index,
		alpha:  255,
		matrix: raster.Identity(),
	}
}

// Index returns the layer's index.
func (layer *VisibleLayer) Index() int { return layer.index }

// Parent returns the index of the layer's parent.
func (layer *VisibleLayer) Parent() int { return layer.parent }

// Position returns the layer's translation relative to its parent.
func (layer *VisibleLayer) Position() (x, y, z int) {
	return layer.x, layer.y, layer.z
}

// Alpha returns the layer's opacity, 0 to 255.
func (layer *VisibleLayer) Alpha() uint8 { return layer.alpha }

// Matrix returns the layer's affine transform.
func (layer *VisibleLayer) Matrix() raster.Matrix { return layer.matrix }

// compose draws src onto dst through the given transform and opacity.
// Identity transforms and pure translations take the plain draw path;
// everything else is resampled bilinearly.
func compose(dst *image.RGBA, src *image.RGBA, m raster.Matrix, alpha uint8) {
	if alpha == 0 || src.Bounds().Empty() {
		return
	}

	// Apply opacity by masking into a scratch image first.
	masked := src
	if alpha < 255 {
		masked = image.NewRGBA(src.Bounds())
		xdraw.DrawMask(masked, src.Bounds(), src, src.Bounds().Min,
			image.NewUniform(alphaColor(alpha)), image.Point{}, xdraw.Over)
	}

	if m.IsIdentity() {
		xdraw.Draw(dst, masked.Bounds(), masked, masked.Bounds().Min, xdraw.Over)
		return
	}

	if m.A == 1 && m.B == 0 && m.C == 0 && m.D == 1 {
		// Pure translation.
		offset := masked.Bounds().Add(image.Pt(int(m.E), int(m.F)))
		xdraw.Draw(dst, offset, masked, masked.Bounds().Min, xdraw.Over)
		return
	}

	xdraw.ApproxBiLinear.Transform(dst,
		f64.Aff3{m.A, m.C, m.E, m.B, m.D, m.F},
		masked, masked.Bounds(), xdraw.Over, nil)
}

// alphaColor is a uniform alpha mask color.
type alphaColor uint8

func (c alphaColor) RGBA() (r, g, b, a uint32) {
	a = uint32(c) * 0x101
	return a, a, a, a
}

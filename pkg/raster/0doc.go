// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package raster models the 2-D drawing surfaces of a Guacamole session.
//
// A Layer buffers drawing state (autosize, saved-state stack, current path,
// composite channel mask) on top of an opaque Raster target. Rasterization
// itself is an external concern: a backend supplies the Raster
// implementation, e.g., a GPU canvas or the in-memory reference target
// provided here.
package raster

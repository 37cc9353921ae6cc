// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package client

import (
	"bytes"
	"encoding/base64"
	"image"
	_ "image/jpeg" // registered for image.Decode
	_ "image/png"  // registered for image.Decode
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/glyptodon/guacamole-go/pkg/raster"
	"github.com/glyptodon/guacamole-go/pkg/stream"
)

// scheduleImageDraw queues a blocked draw task and decodes the image off
// the runner; the task unblocks once decoding finished. A decode failure
// unblocks with nothing to draw, so the frame is not wedged forever.
func (c *Client) scheduleImageDraw(mask raster.ChannelMask, layer *raster.Layer, x, y int, data []byte) {
	var decoded image.Image

	task := c.display.ScheduleBlocked(func() {
		if decoded == nil {
			return
		}
		layer.SetChannelMask(mask)
		layer.DrawImage(x, y, decoded)
	})

	go func() {
		img, format, err := image.Decode(bytes.NewReader(data))
		c.do(func() {
			if err != nil {
				log.WithError(err).Warn("Discarding undecodable image")
			} else {
				log.WithField("format", format).Debug("Image decoded")
				decoded = img
			}
			task.Unblock()
		})
	}()
}

// handlePng draws a base64-encoded PNG. The identical wire shape of "jpeg"
// makes the two handlers share everything but the opcode.
func (c *Client) handlePng(args []string) {
	c.handleEncodedImage(args)
}

func (c *Client) handleJpeg(args []string) {
	c.handleEncodedImage(args)
}

func (c *Client) handleEncodedImage(args []string) {
	if len(args) < 5 {
		return
	}
	mask := raster.ChannelMask(atoi(args[0]))
	layer := c.display.Drawable(atoi(args[1]))
	x, y := atoi(args[2]), atoi(args[3])

	data, err := base64.StdEncoding.DecodeString(args[4])
	if err != nil {
		log.WithError(err).Warn("Discarding malformed image data")
		return
	}

	c.scheduleImageDraw(mask, layer, x, y, data)
}

// handleImg receives an image as a stream, accumulating it into a data URI
// and drawing it once the stream ends.
func (c *Client) handleImg(args []string) {
	if len(args) < 6 {
		return
	}
	index := atoi(args[0])
	mask := raster.ChannelMask(atoi(args[1]))
	layer := c.display.Drawable(atoi(args[2]))
	mimetype := args[3]
	x, y := atoi(args[4]), atoi(args[5])

	in := c.registerInputStream(index)
	reader := stream.NewDataURIReader(in, mimetype)
	reader.OnEnd = func() {
		c.dropInputStream(index)

		uri := reader.URI()
		comma := strings.IndexByte(uri, ',')
		data, err := base64.StdEncoding.DecodeString(uri[comma+1:])
		if err != nil {
			log.WithError(err).Warn("Discarding malformed image stream")
			return
		}

		c.scheduleImageDraw(mask, layer, x, y, data)
	}
}

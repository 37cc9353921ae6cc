// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package client

import "strconv"

// Mouse button mask bits of the "mouse" instruction.
const (
	MouseLeft   = 1
	MouseMiddle = 2
	MouseRight  = 4
	MouseUp     = 8
	MouseDown   = 16
)

// MouseState is the complete state of the pointer: position plus the mask
// of pressed buttons.
type MouseState struct {
	X          int
	Y          int
	ButtonMask int
}

// SendMouseState reports the pointer state to the server.
func (c *Client) SendMouseState(state MouseState) {
	c.tunnel.SendMessage("mouse",
		strconv.Itoa(state.X), strconv.Itoa(state.Y), strconv.Itoa(state.ButtonMask))
}

// SendKeyEvent reports a key press or release. The keysym is an X11 keysym
// value.
func (c *Client) SendKeyEvent(keysym int, pressed bool) {
	pressedArg := "0"
	if pressed {
		pressedArg = "1"
	}
	c.tunnel.SendMessage("key", strconv.Itoa(keysym), pressedArg)
}

// SendSize requests a screen resize.
func (c *Client) SendSize(width, height int) {
	c.tunnel.SendMessage("size", strconv.Itoa(width), strconv.Itoa(height))
}

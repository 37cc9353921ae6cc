// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package video defines the contract for video backends. The client ships
// no built-in video decoder; applications register factories for the
// codecs they can play.
package video

import "github.com/glyptodon/guacamole-go/pkg/stream"

// Player is the contract every video backend honors. Sync marks a server
// frame boundary; the client's sync handling synchronizes audio players
// only and does not call it.
type Player interface {
	Sync()
}

// Factory creates a Player consuming the given input stream, or nil if the
// mimetype cannot be played. The layer index identifies the display layer
// the video renders into.
type Factory func(in *stream.InStream, layerIndex int, mimetype string) Player

// Registry maps mimetypes to player factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register installs a factory for the given mimetype, replacing any
// previous one.
func (registry *Registry) Register(mimetype string, factory Factory) {
	registry.factories[mimetype] = factory
}

// Create instantiates a player for the given stream, or nil if no factory
// accepts the mimetype.
func (registry *Registry) Create(in *stream.InStream, layerIndex int, mimetype string) Player {
	factory, ok := registry.factories[mimetype]
	if !ok {
		return nil
	}
	return factory(in, layerIndex, mimetype)
}

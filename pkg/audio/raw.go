// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package audio

import (
	log "github.com/sirupsen/logrus"

	"github.com/glyptodon/guacamole-go/pkg/stream"
)

// packetDurationMillis is the upper bound on the audio carried by one
// packet handed to the Sink. Large incoming blobs are split at this
// boundary so the sink can schedule playback smoothly.
const packetDurationMillis = 250

// RawPlayer consumes a raw PCM input stream, splitting it into
// frame-aligned packets for its Sink. Bytes not yet forming a whole frame
// are carried until the next blob.
type RawPlayer struct {
	format Format
	sink   Sink

	carry          []byte
	samplesQueued  int64
	syncsProcessed int64
}

// NewRawPlayer attaches a RawPlayer of the given mimetype to an input
// stream. The returned error is non-nil if the mimetype is not a supported
// raw PCM format.
func NewRawPlayer(in *stream.InStream, mimetype string, sink Sink) (*RawPlayer, error) {
	format, err := ParseFormat(mimetype)
	if err != nil {
		return nil, err
	}

	player := &RawPlayer{format: format, sink: sink}

	reader := stream.NewBytesReader(in)
	reader.OnData = player.receive
	reader.OnEnd = player.Sync

	log.WithFields(log.Fields{
		"rate":     format.Rate,
		"channels": format.Channels,
	}).Debug("Raw audio player attached")

	return player, nil
}

// Format returns the player's PCM format.
func (player *RawPlayer) Format() Format {
	return player.format
}

// SamplesQueued returns the total number of sample positions handed to the
// sink so far.
func (player *RawPlayer) SamplesQueued() int64 {
	return player.samplesQueued
}

// receive appends incoming PCM data and forwards all whole frames.
func (player *RawPlayer) receive(data []byte) {
	player.carry = append(player.carry, data...)

	frameSize := player.format.FrameSize()
	whole := len(player.carry) - len(player.carry)%frameSize
	if whole == 0 {
		return
	}

	pcm := player.carry[:whole]
	player.carry = append([]byte(nil), player.carry[whole:]...)

	packetSize := player.format.Rate * frameSize * packetDurationMillis / 1000
	if packetSize < frameSize {
		packetSize = frameSize
	}
	packetSize -= packetSize % frameSize

	for len(pcm) > 0 {
		packet := pcm
		if len(packet) > packetSize {
			packet = packet[:packetSize]
		}
		player.sink.Play(packet, player.format)
		player.samplesQueued += int64(len(packet) / frameSize)
		pcm = pcm[len(packet):]
	}
}

// Sync marks a frame boundary. Any trailing partial frame is dropped; the
// server never splits a sample across a sync.
func (player *RawPlayer) Sync() {
	player.carry = nil
	player.syncsProcessed++
}

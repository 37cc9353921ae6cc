// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package audio provides the client's built-in audio backend for raw signed
// PCM streams, mimetypes "audio/L8" and "audio/L16". Playback itself is
// delegated to a Sink supplied by the application; this package owns format
// parsing, the packet queue and the sync contract.
package audio

import (
	"fmt"
	"mime"
	"strconv"
	"strings"
)

// Player is the contract every audio backend honors: Sync is called
// whenever the server declares a frame boundary, promising that all audio
// received so far belongs to the past.
type Player interface {
	Sync()
}

// Sink receives PCM packets for playback. Implementations wrap a platform
// audio API; packets arrive pre-split into at most packetDurationMillis of audio
// and always contain whole frames.
type Sink interface {
	Play(pcm []byte, format Format)
}

// Format describes a raw PCM stream: signed samples, native endianness.
type Format struct {
	// Rate is the sample rate in Hz.
	Rate int

	// Channels is the number of interleaved channels.
	Channels int

	// BytesPerSample is 1 for audio/L8, 2 for audio/L16.
	BytesPerSample int
}

// FrameSize returns the byte size of one frame, i.e., one sample position
// across all channels.
func (format Format) FrameSize() int {
	return format.Channels * format.BytesPerSample
}

// ParseFormat parses an audio mimetype. The rate parameter is mandatory;
// channels defaults to 1. Parameters may be separated by commas, the
// Guacamole convention, or by semicolons.
func ParseFormat(mimetype string) (Format, error) {
	mediaType, params, err := mime.ParseMediaType(strings.ReplaceAll(mimetype, ",", ";"))
	if err != nil {
		return Format{}, fmt.Errorf("malformed audio mimetype %q: %w", mimetype, err)
	}

	var bytesPerSample int
	switch mediaType {
	case "audio/l8":
		bytesPerSample = 1
	case "audio/l16":
		bytesPerSample = 2
	default:
		return Format{}, fmt.Errorf("unsupported audio mimetype %q", mediaType)
	}

	rateParam, ok := params["rate"]
	if !ok {
		return Format{}, fmt.Errorf("audio mimetype %q lacks the mandatory rate parameter", mimetype)
	}
	rate, err := strconv.Atoi(rateParam)
	if err != nil || rate <= 0 {
		return Format{}, fmt.Errorf("illegal sample rate %q", rateParam)
	}

	channels := 1
	if channelsParam, ok := params["channels"]; ok {
		channels, err = strconv.Atoi(channelsParam)
		if err != nil || channels <= 0 {
			return Format{}, fmt.Errorf("illegal channel count %q", channelsParam)
		}
	}

	return Format{Rate: rate, Channels: channels, BytesPerSample: bytesPerSample}, nil
}

// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/glyptodon/guacamole-go/pkg/client"
	"github.com/glyptodon/guacamole-go/pkg/status"
	"github.com/glyptodon/guacamole-go/pkg/stream"
)

// sendClipboard for the "clipboard" CLI option.
func sendClipboard(args []string) {
	if len(args) != 2 {
		printUsage()
	}

	var text string
	if args[1] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			log.WithError(err).Fatal("Reading stdin errored")
		}
		text = string(data)
	} else {
		text = args[1]
	}

	config, tun, err := parseConfiguration(args[0])
	if err != nil {
		log.WithError(err).Fatal("Reading configuration errored")
	}

	c := client.New(tun, client.Config{
		DisplayWidth:  config.Session.Width,
		DisplayHeight: config.Session.Height,
	})

	connected := make(chan struct{})
	c.OnStateChange = func(state client.State) {
		if state == client.Connected {
			close(connected)
		}
	}

	if err := c.Connect(config.Session.Data); err != nil {
		log.WithError(err).Fatal("Connecting errored")
	}
	<-connected

	acked := make(chan status.Status, 1)
	out := c.CreateClipboardStream("text/plain")
	writer := stream.NewStringWriter(out)
	writer.OnAck = func(ack status.Status) { acked <- ack }

	writer.SendText(text)
	writer.SendEnd()

	if ack := <-acked; ack.IsError() {
		log.WithField("status", ack).Fatal("Clipboard transfer refused")
	}

	if err := c.Disconnect(); err != nil {
		log.WithError(err).Warn("Disconnecting was not clean")
	}
}

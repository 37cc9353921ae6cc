// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/glyptodon/guacamole-go/pkg/protocol"
	"github.com/glyptodon/guacamole-go/pkg/status"
	"github.com/glyptodon/guacamole-go/pkg/tunnel"
)

// dumpSession for the "dump" CLI option.
func dumpSession(args []string) {
	if len(args) != 1 {
		printUsage()
	}

	config, tun, err := parseConfiguration(args[0])
	if err != nil {
		log.WithError(err).Fatal("Reading configuration errored")
	}

	done := make(chan struct{})

	tun.SetOnInstruction(func(instruction protocol.Instruction) {
		fmt.Println(instruction.String())
	})
	tun.SetOnError(func(err status.Status) {
		log.WithField("status", err).Error("Session errored")
	})
	tun.SetOnStateChange(func(state tunnel.State) {
		log.WithField("state", state).Info("Tunnel state changed")
		if state == tunnel.Closed {
			close(done)
		}
	})

	if err := tun.Connect(config.Session.Data); err != nil {
		log.WithError(err).Fatal("Connecting errored")
	}

	<-done
}

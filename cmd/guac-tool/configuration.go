// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"

	"github.com/glyptodon/guacamole-go/pkg/tunnel"
)

// tomlConfig maps the guac-tool configuration file. Transports are tried in
// the order websocket, http, quic; empty entries are skipped.
type tomlConfig struct {
	Tunnel struct {
		Websocket      string `toml:"websocket"`
		HTTP           string `toml:"http"`
		QUIC           string `toml:"quic"`
		ReceiveTimeout string `toml:"receive_timeout"`
	} `toml:"tunnel"`

	Session struct {
		Data   string `toml:"data"`
		Width  int    `toml:"width"`
		Height int    `toml:"height"`
	} `toml:"session"`
}

// parseConfiguration reads the configuration file and builds the tunnel
// chain described by it.
func parseConfiguration(filename string) (config tomlConfig, tun tunnel.Tunnel, err error) {
	if _, err = toml.DecodeFile(filename, &config); err != nil {
		return
	}

	var tunnels []tunnel.Tunnel
	if config.Tunnel.Websocket != "" {
		tunnels = append(tunnels, tunnel.NewWebSocketTunnel(config.Tunnel.Websocket))
	}
	if config.Tunnel.HTTP != "" {
		tunnels = append(tunnels, tunnel.NewHTTPTunnel(config.Tunnel.HTTP))
	}
	if config.Tunnel.QUIC != "" {
		tunnels = append(tunnels, tunnel.NewQUICTunnel(config.Tunnel.QUIC))
	}
	if len(tunnels) == 0 {
		err = fmt.Errorf("configuration %s names no tunnel endpoint", filename)
		return
	}

	tun = tunnel.NewChainedTunnel(tunnels...)

	if config.Tunnel.ReceiveTimeout != "" {
		var timeout time.Duration
		if timeout, err = time.ParseDuration(config.Tunnel.ReceiveTimeout); err != nil {
			return
		}
		tun.SetReceiveTimeout(timeout)
	}

	log.WithField("tunnels", len(tunnels)).Debug("Tunnel chain configured")
	return
}

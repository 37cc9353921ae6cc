// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"mime"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/glyptodon/guacamole-go/pkg/client"
	"github.com/glyptodon/guacamole-go/pkg/status"
	"github.com/glyptodon/guacamole-go/pkg/stream"
)

// sendDir for the "send-dir" CLI option: watches a directory and uploads
// every new or changed file into the session.
func sendDir(args []string) {
	if len(args) != 2 {
		printUsage()
	}
	directory := args[1]

	config, tun, err := parseConfiguration(args[0])
	if err != nil {
		log.WithError(err).Fatal("Reading configuration errored")
	}

	c := client.New(tun, client.Config{
		DisplayWidth:  config.Session.Width,
		DisplayHeight: config.Session.Height,
	})

	connected := make(chan struct{})
	done := make(chan struct{})
	c.OnStateChange = func(state client.State) {
		switch state {
		case client.Connected:
			close(connected)
		case client.Disconnected:
			close(done)
		}
	}

	if err := c.Connect(config.Session.Data); err != nil {
		log.WithError(err).Fatal("Connecting errored")
	}
	<-connected

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.WithError(err).Fatal("Creating watcher errored")
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(directory); err != nil {
		log.WithError(err).Fatal("Watching directory errored")
	}
	log.WithField("directory", directory).Info("Watching for files to upload")

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			uploadFile(c, event.Name)

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.WithError(watchErr).Warn("Watcher errored")

		case <-done:
			return
		}
	}
}

// uploadFile sends one local file through a file stream.
func uploadFile(c *client.Client, path string) {
	logger := log.WithField("file", path)

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.WithError(err).Warn("Reading file errored")
		return
	}

	mimetype := mime.TypeByExtension(filepath.Ext(path))
	if mimetype == "" {
		mimetype = "application/octet-stream"
	}

	out := c.CreateFileStream(mimetype, filepath.Base(path))
	writer := stream.NewBytesWriter(out)
	writer.OnAck = func(ack status.Status) {
		if ack.IsError() {
			logger.WithField("status", ack).Warn("Upload refused")
		}
	}

	writer.SendData(data)
	writer.SendEnd()

	logger.WithField("bytes", len(data)).Info("File uploaded")
}

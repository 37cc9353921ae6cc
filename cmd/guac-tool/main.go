// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// guac-tool is a diagnostic companion for Guacamole deployments: it dumps
// the instruction traffic of a session, pushes clipboard data, and watches
// a directory to upload files into the remote session.
package main

import (
	"fmt"
	"os"
)

func printUsage() {
	_, _ = fmt.Fprintf(os.Stderr, "Usage of %s dump|clipboard|send-dir:\n\n", os.Args[0])

	_, _ = fmt.Fprintf(os.Stderr, "%s dump config.toml\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Connects using the given configuration and prints every received\n")
	_, _ = fmt.Fprintf(os.Stderr, "  instruction to stdout until the session ends.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s clipboard config.toml -|text\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Sends the stdin (-) or the given text as the remote clipboard.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s send-dir config.toml directory\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Watches the directory and uploads every new or changed file into\n")
	_, _ = fmt.Fprintf(os.Stderr, "  the remote session as a file transfer.\n\n")

	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
	}

	switch os.Args[1] {
	case "dump":
		dumpSession(os.Args[2:])
	case "clipboard":
		sendClipboard(os.Args[2:])
	case "send-dir":
		sendDir(os.Args[2:])
	default:
		printUsage()
	}
}

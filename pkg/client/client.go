// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package client

import (
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/hashicorp/go-multierror"

	"github.com/glyptodon/guacamole-go/pkg/audio"
	"github.com/glyptodon/guacamole-go/pkg/display"
	"github.com/glyptodon/guacamole-go/pkg/protocol"
	"github.com/glyptodon/guacamole-go/pkg/raster"
	"github.com/glyptodon/guacamole-go/pkg/status"
	"github.com/glyptodon/guacamole-go/pkg/stream"
	"github.com/glyptodon/guacamole-go/pkg/tunnel"
	"github.com/glyptodon/guacamole-go/pkg/util"
	"github.com/glyptodon/guacamole-go/pkg/video"
)

// State is the lifecycle state of a Client.
type State int

const (
	// Idle is the state before Connect.
	Idle State = iota

	// Connecting means the tunnel is being established.
	Connecting

	// Waiting means the tunnel is up but no server sync arrived yet.
	Waiting

	// Connected means the session is fully established.
	Connected

	// Disconnecting means Disconnect is in progress.
	Disconnecting

	// Disconnected is terminal.
	Disconnected
)

func (state State) String() string {
	switch state {
	case Idle:
		return "IDLE"
	case Connecting:
		return "CONNECTING"
	case Waiting:
		return "WAITING"
	case Connected:
		return "CONNECTED"
	case Disconnecting:
		return "DISCONNECTING"
	case Disconnected:
		return "DISCONNECTED"
	default:
		return "INVALID"
	}
}

// keepAlivePeriod is the interval of the client-side sync keep-alive.
const keepAlivePeriod = 5 * time.Second

// Config bundles the construction parameters of a Client.
type Config struct {
	// DisplayWidth and DisplayHeight size the default layer before the
	// server's first "size" instruction.
	DisplayWidth  int
	DisplayHeight int

	// NewRaster supplies a raster target per layer. Defaults to the
	// in-memory reference target.
	NewRaster func() raster.Raster

	// AudioSink, if set, enables the built-in raw PCM audio player.
	AudioSink audio.Sink
}

// Client is a Guacamole protocol client on top of an arbitrary tunnel.
type Client struct {
	// OnStateChange is fired on every client state transition.
	OnStateChange func(state State)

	// OnError is fired when the session fails. The tunnel is already
	// closed or closing when this fires.
	OnError func(err status.Status)

	// OnName receives the session's human-readable name.
	OnName func(name string)

	// OnSync is fired for every server frame boundary with the server
	// timestamp.
	OnSync func(timestamp string)

	// OnClipboard, OnFile, OnPipe and OnArgv receive server-initiated
	// streams. Leaving a handler nil rejects the stream as unsupported.
	OnClipboard func(in *stream.InStream, mimetype string)
	OnFile      func(in *stream.InStream, mimetype, filename string)
	OnPipe      func(in *stream.InStream, mimetype, name string)
	OnArgv      func(in *stream.InStream, mimetype, name string)

	// OnAudio may supply an audio player for a server audio stream.
	// Returning nil falls back to the built-in raw PCM player, if an
	// AudioSink was configured.
	OnAudio func(in *stream.InStream, mimetype string) audio.Player

	// OnVideo may supply a video player for a server video stream.
	// Returning nil falls back to the registered video factories.
	OnVideo func(in *stream.InStream, layerIndex int, mimetype string) video.Player

	// OnFilesystem receives exposed filesystem objects.
	OnFilesystem func(object *Object, name string)

	tunnel  tunnel.Tunnel
	display *display.Display

	run     chan func()
	stopSyn chan struct{}
	stopAck chan struct{}
	stop    sync.Once

	stateMutex sync.Mutex
	state      State

	handlers map[string]func(args []string)

	// tableMutex guards the stream, object, parser and player tables,
	// which outbound APIs touch from arbitrary goroutines.
	tableMutex    sync.Mutex
	inputStreams  map[int]*stream.InStream
	outputStreams map[int]*stream.OutStream
	objects       map[int]*Object
	parsers       map[int]*protocol.Parser
	audioPlayers  map[int]audio.Player
	videoPlayers  map[int]video.Player

	pool          *util.IndexPool
	videoRegistry *video.Registry
	audioSink     audio.Sink

	// currentTimestamp is the last server timestamp echoed back; the
	// keep-alive repeats it.
	currentTimestamp string
}

// New creates a Client over the given tunnel. The client takes ownership of
// the tunnel's callbacks.
func New(tun tunnel.Tunnel, config Config) *Client {
	if config.NewRaster == nil {
		config.NewRaster = func() raster.Raster { return raster.NewMemoryRaster() }
	}
	if config.DisplayWidth <= 0 {
		config.DisplayWidth = 1024
	}
	if config.DisplayHeight <= 0 {
		config.DisplayHeight = 768
	}

	c := &Client{
		tunnel:  tun,
		display: display.New(config.DisplayWidth, config.DisplayHeight, config.NewRaster),

		run:     make(chan func(), 64),
		stopSyn: make(chan struct{}),
		stopAck: make(chan struct{}),

		state: Idle,

		inputStreams:  make(map[int]*stream.InStream),
		outputStreams: make(map[int]*stream.OutStream),
		objects:       make(map[int]*Object),
		parsers:       make(map[int]*protocol.Parser),
		audioPlayers:  make(map[int]audio.Player),
		videoPlayers:  make(map[int]video.Player),

		pool:          util.NewIndexPool(),
		videoRegistry: video.NewRegistry(),
		audioSink:     config.AudioSink,

		currentTimestamp: "",
	}

	c.registerHandlers()

	go c.runLoop()

	return c
}

// Display returns the client's display.
func (c *Client) Display() *display.Display {
	return c.display
}

// VideoRegistry returns the registry consulted for server video streams
// when OnVideo yields no player.
func (c *Client) VideoRegistry() *video.Registry {
	return c.videoRegistry
}

// State returns the client's current state.
func (c *Client) State() State {
	c.stateMutex.Lock()
	defer c.stateMutex.Unlock()
	return c.state
}

func (c *Client) setState(state State) {
	c.stateMutex.Lock()
	if c.state == state {
		c.stateMutex.Unlock()
		return
	}
	c.state = state
	c.stateMutex.Unlock()

	log.WithField("state", state).Debug("Client state changed")

	if c.OnStateChange != nil {
		c.OnStateChange(state)
	}
}

// runLoop is the client's task runner. Everything order-sensitive runs
// here: instruction dispatch, render-queue work and resource completions.
func (c *Client) runLoop() {
	for {
		select {
		case fn := <-c.run:
			fn()
		case <-c.stopSyn:
			close(c.stopAck)
			return
		}
	}
}

// do posts work onto the runner. Dropped silently once the client stopped.
func (c *Client) do(fn func()) {
	select {
	case c.run <- fn:
	case <-c.stopSyn:
	}
}

// Connect establishes the session, passing the opaque handshake data to
// the tunnel.
func (c *Client) Connect(data string) error {
	c.setState(Connecting)

	c.tunnel.SetOnInstruction(func(instruction protocol.Instruction) {
		c.do(func() { c.dispatch(instruction) })
	})
	c.tunnel.SetOnError(func(err status.Status) {
		c.do(func() { c.handleTunnelError(err) })
	})
	c.tunnel.SetOnStateChange(func(state tunnel.State) {
		c.do(func() { c.handleTunnelState(state) })
	})

	if err := c.tunnel.Connect(data); err != nil {
		c.setState(Disconnected)
		return err
	}

	c.setState(Waiting)

	go c.keepAlive()

	return nil
}

// keepAlive repeats the last echoed timestamp every keepAlivePeriod so the
// server knows the client is alive.
func (c *Client) keepAlive() {
	ticker := time.NewTicker(keepAlivePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.do(func() {
				timestamp := c.currentTimestamp
				if timestamp == "" {
					timestamp = "0"
				}
				c.tunnel.SendMessage("sync", timestamp)
			})
		case <-c.stopSyn:
			return
		}
	}
}

// Disconnect ends the session: the disconnect instruction is sent, the
// tunnel is closed, and all pending frames are dropped without painting.
// Everything that failed to shut down cleanly is aggregated into the
// returned error: output streams the application never ended, and whatever
// the tunnel's transport teardown reported.
func (c *Client) Disconnect() error {
	c.setState(Disconnecting)

	var errs *multierror.Error

	c.tableMutex.Lock()
	aborted := make([]int, 0, len(c.outputStreams))
	for index := range c.outputStreams {
		aborted = append(aborted, index)
	}
	c.outputStreams = make(map[int]*stream.OutStream)
	c.tableMutex.Unlock()

	sort.Ints(aborted)
	for _, index := range aborted {
		errs = multierror.Append(errs, fmt.Errorf("output stream %d aborted by disconnect", index))
	}

	c.tunnel.SendMessage("disconnect")
	errs = multierror.Append(errs, c.tunnel.Disconnect())

	c.stop.Do(func() { close(c.stopSyn) })
	c.display.Drop()

	c.setState(Disconnected)

	return errs.ErrorOrNil()
}

// handleTunnelError surfaces a tunnel failure.
func (c *Client) handleTunnelError(err status.Status) {
	if c.OnError != nil {
		c.OnError(err)
	}
}

// handleTunnelState tracks the tunnel's lifecycle.
func (c *Client) handleTunnelState(state tunnel.State) {
	if state == tunnel.Closed {
		switch c.State() {
		case Disconnecting, Disconnected:
		default:
			c.stop.Do(func() { close(c.stopSyn) })
			c.setState(Disconnected)
		}
	}
}

// fatal tears the session down after an unrecoverable protocol violation.
func (c *Client) fatal(err status.Status) {
	log.WithField("status", err).Error("Fatal protocol error")
	if c.OnError != nil {
		c.OnError(err)
	}
	if disconnectErr := c.Disconnect(); disconnectErr != nil {
		log.WithError(disconnectErr).Warn("Disconnect after protocol error was not clean")
	}
}

// dispatch routes one instruction to its handler. Unknown opcodes are
// ignored for forward compatibility.
func (c *Client) dispatch(instruction protocol.Instruction) {
	handler, ok := c.handlers[instruction.Opcode]
	if !ok {
		log.WithField("opcode", instruction.Opcode).Debug("Ignoring unknown instruction")
		return
	}
	handler(instruction.Args)
}

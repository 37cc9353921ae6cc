// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tunnel

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/google/uuid"

	"github.com/glyptodon/guacamole-go/pkg/protocol"
	"github.com/glyptodon/guacamole-go/pkg/status"
)

const (
	// httpContentType is the request body type of the connect and write
	// endpoints.
	httpContentType = "application/x-www-form-urlencoded; charset=UTF-8"

	// httpPollingPeriod is the period of the parse-fallback ticker running
	// while a read response delivers no progress events.
	httpPollingPeriod = 30 * time.Millisecond
)

// HTTPTunnel carries the instruction stream over HTTP long-polling against
// three endpoints derived from a base URL: "?connect" establishes the
// session and returns its UUID, "?read:<uuid>:<seq>" long-polls for
// instruction data, and "?write:<uuid>" carries batched upstream
// instructions.
type HTTPTunnel struct {
	tunnelCore

	baseURL string
	client  *http.Client

	ctx    context.Context
	cancel context.CancelFunc

	parser *protocol.Parser

	// Element scanner state, persisting across read chunks. The scanner
	// watches for the zero-length element terminating a read response.
	scanState     int
	scanDigits    []byte
	scanLength    int
	scanRemaining int

	// Write side. pending accumulates outbound instruction bytes which a
	// single in-flight POST flushes wholesale.
	writeMutex   sync.Mutex
	pending      []byte
	postInFlight bool
}

const (
	scanStateLength = iota
	scanStateBody
	scanStateTerminator
)

// NewHTTPTunnel creates an HTTPTunnel for the given base URL, e.g.,
// "https://example.net/guacamole/tunnel".
func NewHTTPTunnel(baseURL string) *HTTPTunnel {
	ctx, cancel := context.WithCancel(context.Background())

	t := &HTTPTunnel{
		tunnelCore: newTunnelCore(),
		baseURL:    baseURL,
		client:     &http.Client{},
		ctx:        ctx,
		cancel:     cancel,
	}
	t.closeTransport = func() error {
		cancel()
		return nil
	}

	t.parser = protocol.NewParser()
	t.parser.OnInstruction = t.deliver

	return t
}

func (tunnel *HTTPTunnel) log() *log.Entry {
	return log.WithField("tunnel", "http").WithField("url", tunnel.baseURL)
}

// Connect establishes the session via the connect endpoint and starts the
// read loop.
func (tunnel *HTTPTunnel) Connect(data string) error {
	resp, err := tunnel.post(tunnel.baseURL+"?connect", strings.NewReader(data))
	if err != nil {
		tunnel.closeWithStatus(status.New(status.ServerError, err.Error()))
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		st := responseStatus(resp)
		tunnel.closeWithStatus(st)
		return st
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tunnel.closeWithStatus(status.New(status.ServerError, err.Error()))
		return err
	}

	sessionUUID, err := uuid.Parse(strings.TrimSpace(string(body)))
	if err != nil {
		st := status.New(status.ServerError, fmt.Sprintf("malformed session UUID %q", body))
		tunnel.closeWithStatus(st)
		return st
	}
	tunnel.setUUID(sessionUUID.String())

	tunnel.resetReceiveTimer()
	tunnel.setState(Open)

	go tunnel.readLoop()
	return nil
}

// pollResponse is the in-flight state of one read request.
type pollResponse struct {
	resp *http.Response
	err  error
	done chan struct{}
}

// startRead issues the read request for the given sequence number without
// waiting for it.
func (tunnel *HTTPTunnel) startRead(seq int) *pollResponse {
	pr := &pollResponse{done: make(chan struct{})}

	go func() {
		defer close(pr.done)

		url := fmt.Sprintf("%s?read:%s:%d", tunnel.baseURL, tunnel.UUID(), seq)
		req, err := http.NewRequestWithContext(tunnel.ctx, http.MethodGet, url, nil)
		if err != nil {
			pr.err = err
			return
		}
		pr.resp, pr.err = tunnel.client.Do(req)
	}()

	return pr
}

// readLoop drives successive long-poll reads. The next read is issued as
// soon as the current one responds successfully, so the server always has a
// request to answer into.
func (tunnel *HTTPTunnel) readLoop() {
	seq := 0
	current := tunnel.startRead(seq)
	seq++

	for {
		<-current.done

		if tunnel.State() == Closed {
			discardResponse(current)
			return
		}

		if current.err != nil {
			tunnel.closeWithStatus(status.New(status.ServerError, current.err.Error()))
			return
		}

		if current.resp.StatusCode != http.StatusOK {
			tunnel.handleReadFailure(current.resp)
			_ = current.resp.Body.Close()
			return
		}

		// This read is live. Pre-allocate the next one before consuming
		// the body.
		next := tunnel.startRead(seq)
		seq++

		tunnel.consumeResponse(current.resp)

		if tunnel.State() == Closed {
			discardResponse(next)
			return
		}

		current = next
	}
}

// discardResponse drains and closes an abandoned pre-allocated request.
func discardResponse(pr *pollResponse) {
	go func() {
		<-pr.done
		if pr.resp != nil {
			_ = pr.resp.Body.Close()
		}
	}()
}

// handleReadFailure applies the error policy for a non-200 read: while
// connecting every failure surfaces, while open RESOURCE_NOT_FOUND merely
// means the stream ended.
func (tunnel *HTTPTunnel) handleReadFailure(resp *http.Response) {
	st := responseStatus(resp)

	if tunnel.State() == Open && st.Code == status.ResourceNotFound {
		tunnel.closeWithStatus(status.New(status.Success))
		return
	}

	tunnel.closeWithStatus(st)
}

// consumeResponse parses one read response incrementally as its body
// arrives. A reader goroutine buffers raw bytes; parsing is driven by data
// notifications, with a short polling interval as fallback until the
// response proves it delivers progress events. Returns when the response is
// terminated by a zero-length element or exhausted.
func (tunnel *HTTPTunnel) consumeResponse(resp *http.Response) {
	defer func() { _ = resp.Body.Close() }()

	var bufferMutex sync.Mutex
	var buffered []byte
	dataReady := make(chan struct{}, 1)
	readDone := make(chan struct{})

	go func() {
		defer close(readDone)

		chunk := make([]byte, 4096)
		for {
			n, err := resp.Body.Read(chunk)
			if n > 0 {
				bufferMutex.Lock()
				buffered = append(buffered, chunk[:n]...)
				bufferMutex.Unlock()

				select {
				case dataReady <- struct{}{}:
				default:
				}
			}
			if err != nil {
				return
			}
		}
	}()

	// The polling fallback is always cleared when this read terminates,
	// and early once the response has delivered two progress events.
	interval := time.NewTicker(httpPollingPeriod)
	defer interval.Stop()

	progressEvents := 0
	finished := false

	for {
		select {
		case <-dataReady:
			progressEvents++
			if progressEvents == 2 {
				interval.Stop()
			}
		case <-interval.C:
		case <-readDone:
			finished = true
		}

		bufferMutex.Lock()
		pending := buffered
		buffered = nil
		bufferMutex.Unlock()

		if len(pending) > 0 {
			tunnel.resetReceiveTimer()

			terminated, err := tunnel.scan(pending)
			if err != nil {
				tunnel.log().WithError(err).Error("Protocol violation")
				tunnel.closeWithStatus(status.New(status.ServerError, err.Error()))
				return
			}
			if terminated {
				return
			}
		}

		if finished {
			return
		}
	}
}

// scan advances the element scanner over the next chunk, forwarding scanned
// bytes to the instruction parser. Returns true when a zero-length element
// terminated the read; the zero-length element itself is not forwarded.
func (tunnel *HTTPTunnel) scan(chunk []byte) (bool, error) {
	forward := make([]byte, 0, len(chunk))

	for i := 0; i < len(chunk); i++ {
		b := chunk[i]

		switch tunnel.scanState {
		case scanStateLength:
			switch {
			case b >= '0' && b <= '9':
				tunnel.scanDigits = append(tunnel.scanDigits, b)
				tunnel.scanLength = tunnel.scanLength*10 + int(b-'0')

			case b == '.':
				if len(tunnel.scanDigits) == 0 {
					return false, &protocol.ErrProtocol{Reason: "empty element length"}
				}
				if tunnel.scanLength == 0 {
					// Zero-length element: this read is done. Whatever was
					// scanned before it still counts; the scanner resets for
					// the next read response.
					tunnel.scanDigits = nil
					return true, tunnel.parser.Append(forward)
				}
				forward = append(forward, tunnel.scanDigits...)
				forward = append(forward, '.')
				tunnel.scanRemaining = tunnel.scanLength
				tunnel.scanDigits = nil
				tunnel.scanLength = 0
				tunnel.scanState = scanStateBody

			default:
				return false, &protocol.ErrProtocol{Reason: fmt.Sprintf("non-digit %q in element length", b)}
			}

		case scanStateBody:
			take := len(chunk) - i
			if take > tunnel.scanRemaining {
				take = tunnel.scanRemaining
			}
			forward = append(forward, chunk[i:i+take]...)
			tunnel.scanRemaining -= take
			i += take - 1
			if tunnel.scanRemaining == 0 {
				tunnel.scanState = scanStateTerminator
			}

		case scanStateTerminator:
			if b != ',' && b != ';' {
				return false, &protocol.ErrProtocol{Reason: fmt.Sprintf("illegal terminator %q", b)}
			}
			forward = append(forward, b)
			tunnel.scanState = scanStateLength
		}
	}

	return false, tunnel.parser.Append(forward)
}

// SendMessage queues one instruction for upstream delivery. Queued data is
// coalesced: a single POST carries everything accumulated while the
// previous POST was in flight.
func (tunnel *HTTPTunnel) SendMessage(elements ...string) {
	if tunnel.State() != Open {
		return
	}

	tunnel.writeMutex.Lock()
	tunnel.pending = append(tunnel.pending, protocol.Encode(elements...)...)
	start := !tunnel.postInFlight
	if start {
		tunnel.postInFlight = true
	}
	tunnel.writeMutex.Unlock()

	if start {
		go tunnel.flushPending()
	}
}

// flushPending POSTs the accumulated buffer, repeating as long as new data
// arrived while the previous POST was in flight.
func (tunnel *HTTPTunnel) flushPending() {
	for {
		tunnel.writeMutex.Lock()
		if len(tunnel.pending) == 0 || tunnel.State() == Closed {
			tunnel.postInFlight = false
			tunnel.writeMutex.Unlock()
			return
		}
		body := tunnel.pending
		tunnel.pending = nil
		tunnel.writeMutex.Unlock()

		resp, err := tunnel.post(tunnel.baseURL+"?write:"+tunnel.UUID(), bytes.NewReader(body))
		if err != nil {
			tunnel.closeWithStatus(status.New(status.ServerError, err.Error()))
			continue
		}

		if resp.StatusCode != http.StatusOK {
			st := responseStatus(resp)
			if tunnel.State() == Open && st.Code == status.ResourceNotFound {
				// The server already tore the stream down.
				tunnel.closeWithStatus(status.New(status.Success))
			} else {
				tunnel.closeWithStatus(st)
			}
		}
		_ = resp.Body.Close()
	}
}

// post issues a POST honoring the tunnel's context.
func (tunnel *HTTPTunnel) post(url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(tunnel.ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", httpContentType)
	return tunnel.client.Do(req)
}

// Disconnect closes the tunnel gracefully, aborting in-flight requests.
func (tunnel *HTTPTunnel) Disconnect() error {
	return tunnel.closeWithStatus(status.New(status.Success))
}

// responseStatus synthesizes a Status from a non-200 HTTP response,
// preferring the Guacamole-Status-Code and Guacamole-Error-Message headers.
func responseStatus(resp *http.Response) status.Status {
	if header := resp.Header.Get("Guacamole-Status-Code"); header != "" {
		if code, err := strconv.Atoi(header); err == nil {
			message := resp.Header.Get("Guacamole-Error-Message")
			if message == "" {
				message = status.Code(code).String()
			}
			return status.New(status.Code(code), message)
		}
	}

	return status.New(status.FromHTTPCode(resp.StatusCode))
}

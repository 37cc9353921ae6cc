// SPDX-FileCopyrightText: 2023 The guacamole-go authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package client

import (
	"strconv"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/glyptodon/guacamole-go/pkg/stream"
)

// StreamIndexMimetype is the mimetype of a named object's root stream,
// whose JSON body maps stream names to their mimetypes.
const StreamIndexMimetype = "application/vnd.glyptodon.guacamole.stream-index+json"

// RootStreamName is the name of a named object's root stream.
const RootStreamName = "/"

// Object is a named collection of streams exposed by the server, e.g., a
// filesystem. Individual streams are addressed by name: reading goes
// through RequestInputStream, writing through CreateOutputStream.
type Object struct {
	// OnBody, if set, receives every body stream of this object,
	// bypassing the per-request callbacks of RequestInputStream.
	OnBody func(in *stream.InStream, mimetype, name string)

	// OnUndefine is fired when the server retracts the object.
	OnUndefine func()

	client *Client
	index  int

	mutex sync.Mutex
	// bodyCallbacks queues the pending RequestInputStream callbacks per
	// stream name, answered in request order.
	bodyCallbacks map[string][]func(in *stream.InStream, mimetype string)
}

func newObject(client *Client, index int) *Object {
	return &Object{
		client:        client,
		index:         index,
		bodyCallbacks: make(map[string][]func(*stream.InStream, string)),
	}
}

// Index returns the object's index.
func (object *Object) Index() int {
	return object.index
}

// RequestInputStream requests the body of the named stream. The callback
// receives the stream once the server answers with the matching body.
func (object *Object) RequestInputStream(name string, callback func(in *stream.InStream, mimetype string)) {
	object.mutex.Lock()
	object.bodyCallbacks[name] = append(object.bodyCallbacks[name], callback)
	object.mutex.Unlock()

	object.client.tunnel.SendMessage("get", strconv.Itoa(object.index), name)
}

// CreateOutputStream opens an output stream writing to the named stream of
// this object.
func (object *Object) CreateOutputStream(mimetype, name string) *stream.OutStream {
	out := object.client.createOutputStream()
	object.client.tunnel.SendMessage("put",
		strconv.Itoa(object.index), strconv.Itoa(out.Index), mimetype, name)
	return out
}

// receiveBody answers a body instruction: the OnBody hook wins, otherwise
// the oldest pending request for the name is dequeued.
func (object *Object) receiveBody(in *stream.InStream, mimetype, name string) {
	if object.OnBody != nil {
		object.OnBody(in, mimetype, name)
		return
	}

	object.mutex.Lock()
	queue := object.bodyCallbacks[name]
	var callback func(*stream.InStream, string)
	if len(queue) > 0 {
		callback = queue[0]
		object.bodyCallbacks[name] = queue[1:]
	}
	object.mutex.Unlock()

	if callback == nil {
		log.WithField("name", name).Warn("Body for which nothing is waiting")
		return
	}
	callback(in, mimetype)
}

func (object *Object) receiveUndefine() {
	if object.OnUndefine != nil {
		object.OnUndefine()
	}
}

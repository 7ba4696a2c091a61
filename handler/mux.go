// Copyright 2024 tobyzxj
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package handler

import (
	"sync"

	"github.com/coapmesh/coapd/coapcore"
	"github.com/coapmesh/coapd/exchange"
	"github.com/coapmesh/coapd/message"
)

// Mux is a Uri-Path trie router: each path segment is one edge, and a
// node may carry a handler per method. A host registers routes once at
// startup and Mux dispatches every inbound request by walking the
// segments of its Uri-Path options.
type Mux struct {
	mu   sync.RWMutex
	root *muxNode
}

type muxNode struct {
	children map[string]*muxNode
	handlers map[coapcore.Code]Handler
}

func newMuxNode() *muxNode {
	return &muxNode{children: make(map[string]*muxNode), handlers: make(map[coapcore.Code]Handler)}
}

// NewMux returns an empty Mux.
func NewMux() *Mux {
	return &Mux{root: newMuxNode()}
}

// Handle registers h to answer method requests on path's exact Uri-Path
// segments (e.g. "/sensors/temp").
func (m *Mux) Handle(path string, method coapcore.Code, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	segments := splitPath(path)
	n := m.root
	for _, seg := range segments {
		child, ok := n.children[seg]
		if !ok {
			child = newMuxNode()
			n.children[seg] = child
		}
		n = child
	}
	n.handlers[method] = h
}

// HandleFunc is the HandlerFunc convenience form of Handle.
func (m *Mux) HandleFunc(path string, method coapcore.Code, f HandlerFunc) {
	m.Handle(path, method, f)
}

// ServeCOAP implements Handler, routing req by its Uri-Path segments
// and falling back to 4.04 Not Found or 4.05 Method Not Allowed.
func (m *Mux) ServeCOAP(req *message.Request, resp *message.Response, result chan<- exchange.HandlerResult) {
	m.mu.RLock()
	n := m.root
	found := true
	for _, seg := range req.Opts.Path() {
		child, ok := n.children[seg]
		if !ok {
			found = false
			break
		}
		n = child
	}
	var h Handler
	var methodKnown bool
	if found {
		h, methodKnown = n.handlers[req.Method]
	}
	m.mu.RUnlock()

	switch {
	case found && methodKnown:
		h.ServeCOAP(req, resp, result)
	case found:
		resp.WithCode(coapcore.MethodNotAllowed)
		result <- exchange.HandlerResult{Carry: exchange.PiggybackCarry(resp)}
	default:
		resp.WithCode(coapcore.NotFound)
		result <- exchange.HandlerResult{Carry: exchange.PiggybackCarry(resp)}
	}
}

func splitPath(path string) []string {
	var segs []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			if i > start {
				segs = append(segs, path[start:i])
			}
			start = i + 1
		}
	}
	return segs
}

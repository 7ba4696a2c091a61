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

// Package transport defines the datagram boundary the dispatcher polls
// and writes to (§6 "Transport"). One datagram in, one datagram out;
// the real implementation is UDP, the test implementation is an
// in-memory queue.
package transport

import (
	"net"
	"time"
)

// Datagram is one inbound packet and the peer it arrived from.
type Datagram struct {
	Peer net.Addr
	Data []byte
}

// Transport is the seam between the dispatcher's event loop and the
// network. Receive must return (Datagram{}, false, nil) on an ordinary
// read timeout so the dispatcher's loop can go on to poll exchanges
// and the outbound queue; it returns a non-nil error only for
// conditions the dispatcher cannot recover from.
type Transport interface {
	// Receive blocks up to the implementation's own poll interval and
	// returns the next datagram, or ok=false if none arrived.
	Receive() (dgram Datagram, ok bool, err error)
	// Send writes data to peer.
	Send(peer net.Addr, data []byte) error
	// Close releases the underlying socket.
	Close() error
}

// DefaultPollInterval bounds how long a Transport.Receive call may
// block before yielding control back to the dispatcher loop.
const DefaultPollInterval = 100 * time.Millisecond

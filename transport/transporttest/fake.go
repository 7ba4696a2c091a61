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

// Package transporttest is an in-memory transport.Transport for
// dispatcher and exchange tests: Receive drains a channel the test
// feeds directly, Send appends to a slice the test asserts against.
package transporttest

import (
	"net"
	"sync"

	"github.com/coapmesh/coapd/transport"
)

// Sent is one recorded outbound write.
type Sent struct {
	Peer net.Addr
	Data []byte
}

// Fake is a Transport double. Zero value is ready to use.
type Fake struct {
	mu     sync.Mutex
	inbox  []transport.Datagram
	Sent   []Sent
	closed bool
}

// Deliver queues a datagram to be returned by the next Receive call.
func (f *Fake) Deliver(peer net.Addr, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inbox = append(f.inbox, transport.Datagram{Peer: peer, Data: data})
}

// Receive implements transport.Transport.
func (f *Fake) Receive() (transport.Datagram, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inbox) == 0 {
		return transport.Datagram{}, false, nil
	}
	d := f.inbox[0]
	f.inbox = f.inbox[1:]
	return d, true, nil
}

// Send implements transport.Transport.
func (f *Fake) Send(peer net.Addr, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	f.Sent = append(f.Sent, Sent{Peer: peer, Data: cp})
	return nil
}

// Close implements transport.Transport.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// LastSent returns the most recent Send call's payload, or nil.
func (f *Fake) LastSent() *Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Sent) == 0 {
		return nil
	}
	return &f.Sent[len(f.Sent)-1]
}

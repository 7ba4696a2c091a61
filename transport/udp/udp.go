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

// Package udp is the production Transport: a single net.UDPConn shared
// between the dispatcher's read loop and its send path, grounded on
// the reference coap package's ListenAndServe/Serve/Transmit/Receive
// quartet.
package udp

import (
	"net"
	"time"

	"github.com/coapmesh/coapd/obslog"
	"github.com/coapmesh/coapd/transport"
)

const maxPacketLen = 1500

// Conn wraps a *net.UDPConn as a transport.Transport.
type Conn struct {
	conn *net.UDPConn
	buf  []byte
}

// Listen binds addr ("udp", "0.0.0.0:5683") and returns a ready Conn.
func Listen(network, addr string) (*Conn, error) {
	uaddr, err := net.ResolveUDPAddr(network, addr)
	if err != nil {
		return nil, err
	}
	l, err := net.ListenUDP(network, uaddr)
	if err != nil {
		return nil, err
	}
	return &Conn{conn: l, buf: make([]byte, maxPacketLen)}, nil
}

// Receive implements transport.Transport.
func (c *Conn) Receive() (transport.Datagram, bool, error) {
	c.conn.SetReadDeadline(time.Now().Add(transport.DefaultPollInterval))
	nr, addr, err := c.conn.ReadFromUDP(c.buf)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return transport.Datagram{}, false, nil
		}
		return transport.Datagram{}, false, err
	}
	data := make([]byte, nr)
	copy(data, c.buf[:nr])
	obslog.L.Debug("udp: recv %d bytes from %v", nr, addr)
	return transport.Datagram{Peer: addr, Data: data}, true, nil
}

// Send implements transport.Transport.
func (c *Conn) Send(peer net.Addr, data []byte) error {
	addr, ok := peer.(*net.UDPAddr)
	if !ok {
		return &net.AddrError{Err: "transport/udp: peer is not a *net.UDPAddr", Addr: peer.String()}
	}
	_, err := c.conn.WriteToUDP(data, addr)
	return err
}

// Close implements transport.Transport.
func (c *Conn) Close() error { return c.conn.Close() }

// LocalAddr returns the bound local address.
func (c *Conn) LocalAddr() net.Addr { return c.conn.LocalAddr() }

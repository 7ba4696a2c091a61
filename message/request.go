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

package message

import (
	"net"

	"github.com/coapmesh/coapd/coapcore"
	"github.com/coapmesh/coapd/option"
)

// Request is a semantic view over a decoded request Message and the
// peer it arrived from (§4.4).
type Request struct {
	Peer        net.Addr
	Method      coapcore.Code
	MessageID   coapcore.MessageID
	Reliability coapcore.Type // Confirmable or NonConfirmable
	Token       coapcore.Token
	Opts        option.Options
	Payload     []byte
}

// FromMessage derives a Request from msg and peer. It returns
// (nil, false) when msg is not a well-formed request — the decoder
// already surfaces malformed bodies as decode failures, so the only
// remaining reason this returns false is that msg.Kind is not
// KindRequest, or its reliability is neither CON nor NON.
func FromMessage(msg Message, peer net.Addr) (*Request, bool) {
	if msg.Kind != KindRequest || msg.Body == nil {
		return nil, false
	}
	if msg.Header.Type != coapcore.Confirmable && msg.Header.Type != coapcore.NonConfirmable {
		return nil, false
	}
	return &Request{
		Peer:        peer,
		Method:      msg.Header.Code,
		MessageID:   msg.Header.MessageID,
		Reliability: msg.Header.Type,
		Token:       msg.Body.Token,
		Opts:        msg.Body.Opts,
		Payload:     msg.Body.Payload,
	}, true
}

// IsConfirmable reports whether the inbound request demands an ACK.
func (r *Request) IsConfirmable() bool { return r.Reliability == coapcore.Confirmable }

// PathString returns the Uri-Path segments joined with "/".
func (r *Request) PathString() string { return r.Opts.PathString() }

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

// Package coder is the stateless CoAP wire transcoder: Encode renders
// one Message to bytes, Decode parses one datagram's worth of bytes
// into a DecodeResult (§4.1).
package coder

import (
	"github.com/coapmesh/coapd/coapcore"
	"github.com/coapmesh/coapd/message"
)

// Status classifies the outcome of a Decode call.
type Status uint8

const (
	// StatusValid means msg holds a fully decoded Message.
	StatusValid Status = iota
	// StatusNeedMore means the buffer is shorter than the 4-byte fixed
	// header; the caller has no complete datagram yet.
	StatusNeedMore
	// StatusReject means the header parsed but the body did not: a RST
	// carrying Header.MessageID may be sent back to the peer.
	StatusReject
	// StatusInvalid means even the header could not be parsed.
	StatusInvalid
)

// DecodeResult is the tagged outcome of Decode.
type DecodeResult struct {
	Status Status
	Msg    message.Message // valid iff Status == StatusValid
	Header coapcore.Header // recovered iff Status == StatusReject
	Err    error           // non-nil iff Status == StatusReject or StatusInvalid
}

func valid(msg message.Message) DecodeResult {
	return DecodeResult{Status: StatusValid, Msg: msg}
}

func needMore() DecodeResult {
	return DecodeResult{Status: StatusNeedMore}
}

func reject(h coapcore.Header, err error) DecodeResult {
	return DecodeResult{Status: StatusReject, Header: h, Err: err}
}

func invalid(err error) DecodeResult {
	return DecodeResult{Status: StatusInvalid, Err: err}
}

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

// Package message holds the CoAP data model: the Header, the four
// message kinds (Empty/Request/Response/Reserved), a runtime-checked
// Builder, and semantic Request/Response views over a decoded Message.
package message

import (
	"fmt"

	"github.com/coapmesh/coapd/coapcore"
	"github.com/coapmesh/coapd/option"
)

// Kind distinguishes the four CoAP message shapes (§3).
type Kind uint8

const (
	KindEmpty Kind = iota
	KindRequest
	KindResponse
	KindReserved
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "Empty"
	case KindRequest:
		return "Request"
	case KindResponse:
		return "Response"
	case KindReserved:
		return "Reserved"
	default:
		return "Kind(?)"
	}
}

// Body holds the token, options and payload that only non-Empty
// messages may carry.
type Body struct {
	Token   coapcore.Token
	Opts    option.Options
	Payload []byte
}

// Message is one decoded or to-be-encoded CoAP message.
type Message struct {
	Header coapcore.Header
	Kind   Kind
	Body   *Body // nil iff Kind == KindEmpty
}

// IsEmpty reports whether m is an Empty message.
func (m Message) IsEmpty() bool { return m.Kind == KindEmpty }

// IsPing reports whether m is an Empty Confirmable message (a CoAP ping).
func (m Message) IsPing() bool {
	return m.IsEmpty() && m.Header.Type == coapcore.Confirmable
}

// IsReset reports whether m is a Reset message.
func (m Message) IsReset() bool {
	return m.Header.Type == coapcore.Reset
}

// IsAck reports whether m is an Acknowledgement message.
func (m Message) IsAck() bool {
	return m.Header.Type == coapcore.Acknowledgement
}

// ClassOf derives a message's Kind from its code alone, per §3's
// Empty/Request/Response/Reserved split.
func ClassOf(code coapcore.Code) Kind {
	switch {
	case code == coapcore.Empty:
		return KindEmpty
	case coapcore.IsRequestCode(code):
		return KindRequest
	case coapcore.IsResponseCode(code):
		return KindResponse
	default:
		return KindReserved
	}
}

func (m Message) String() string {
	if m.Body == nil {
		return fmt.Sprintf("%s %s MID=%d", m.Kind, m.Header.Type, m.Header.MessageID)
	}
	return fmt.Sprintf("%s %s MID=%d Token=%s Code=%v Opts=%d Payload=%dB",
		m.Kind, m.Header.Type, m.Header.MessageID, m.Body.Token, m.Header.Code, len(m.Body.Opts), len(m.Body.Payload))
}

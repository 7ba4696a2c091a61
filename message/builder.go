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
	"fmt"

	"github.com/coapmesh/coapd/coapcore"
	"github.com/coapmesh/coapd/option"
	"github.com/hashicorp/go-multierror"
)

// Builder assembles a Message while enforcing the invariants of §4.3:
// Empty messages carry no body; requests/responses require
// type-compatible codes; message_id and type must be set before Build
// succeeds. The source implementation encodes this with compile-time
// phantom witnesses; here the same contract is enforced at runtime and
// Build aggregates every violated invariant instead of stopping at the
// first one.
type Builder struct {
	kind      Kind
	hasType   bool
	typ       coapcore.Type
	hasMID    bool
	mid       coapcore.MessageID
	code      coapcore.Code
	token     coapcore.Token
	opts      option.Options
	payload   []byte
}

// NewEmptyBuilder starts building an Empty message (ping, ACK, or RST).
func NewEmptyBuilder() *Builder {
	return &Builder{kind: KindEmpty}
}

// NewRequestBuilder starts building a request, defaulting to GET.
func NewRequestBuilder() *Builder {
	return &Builder{kind: KindRequest, code: coapcore.GET}
}

// NewResponseBuilder starts building a response, defaulting to 2.05 Content.
func NewResponseBuilder() *Builder {
	return &Builder{kind: KindResponse, code: coapcore.Content}
}

// Type sets the message type. It accepts any type, including
// NonConfirmable on an Empty builder (meaningless per §4.3); Build
// reports that instead, to keep this method chainable without an error
// return.
func (b *Builder) Type(t coapcore.Type) *Builder {
	b.typ = t
	b.hasType = true
	return b
}

// MessageID sets the 16-bit message ID.
func (b *Builder) MessageID(mid coapcore.MessageID) *Builder {
	b.mid = mid
	b.hasMID = true
	return b
}

// Code sets the request method or response code. No-op on Empty builders.
func (b *Builder) Code(c coapcore.Code) *Builder {
	if b.kind != KindEmpty {
		b.code = c
	}
	return b
}

// Token attaches a token. No-op on Empty builders.
func (b *Builder) Token(t coapcore.Token) *Builder {
	if b.kind != KindEmpty {
		b.token = t
	}
	return b
}

// AddOption appends an option. No-op on Empty builders.
func (b *Builder) AddOption(id option.ID, value interface{}) *Builder {
	if b.kind != KindEmpty {
		b.opts = b.opts.Add(id, value)
	}
	return b
}

// Payload sets the payload bytes. No-op on Empty builders.
func (b *Builder) Payload(p []byte) *Builder {
	if b.kind != KindEmpty {
		b.payload = p
	}
	return b
}

// Build validates every invariant of §4.3 and, if all hold, returns the
// assembled Message. Violations are aggregated with multierror so a
// caller sees the full list in one shot.
func (b *Builder) Build() (*Message, error) {
	var errs *multierror.Error

	if !b.hasMID {
		errs = multierror.Append(errs, errBuilder("message_id must be set before Build"))
	}
	if !b.hasType {
		errs = multierror.Append(errs, errBuilder("type must be set before Build"))
	}
	if len(b.token) > coapcore.MaxTokenSize {
		errs = multierror.Append(errs, errBuilder("token length %d exceeds max %d", len(b.token), coapcore.MaxTokenSize))
	}

	switch b.kind {
	case KindEmpty:
		if b.hasType && b.typ == coapcore.NonConfirmable {
			errs = multierror.Append(errs, errBuilder("Empty/NonConfirmable is meaningless and forbidden"))
		}
		if len(b.token) != 0 || len(b.opts) != 0 || len(b.payload) != 0 {
			errs = multierror.Append(errs, errBuilder("Empty messages may not carry token, options or payload"))
		}
	case KindRequest:
		if !coapcore.IsRequestCode(b.code) {
			errs = multierror.Append(errs, errBuilder("request code %v is not a valid method (class 0, detail 1-4)", b.code))
		}
		if b.hasType && b.typ != coapcore.Confirmable && b.typ != coapcore.NonConfirmable {
			errs = multierror.Append(errs, errBuilder("request type must be CON or NON, got %v", b.typ))
		}
	case KindResponse:
		if !coapcore.IsResponseCode(b.code) {
			errs = multierror.Append(errs, errBuilder("response code %v is not in class 2-5", b.code))
		}
		if b.hasType && b.typ != coapcore.Confirmable && b.typ != coapcore.NonConfirmable && b.typ != coapcore.Acknowledgement {
			errs = multierror.Append(errs, errBuilder("response type must be CON, NON or ACK, got %v", b.typ))
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	msg := &Message{
		Header: coapcore.Header{
			Ver:       coapcore.Version,
			Type:      b.typ,
			MessageID: b.mid,
		},
		Kind: b.kind,
	}
	if b.kind != KindEmpty {
		msg.Body = &Body{Token: b.token, Opts: b.opts, Payload: b.payload}
		msg.Header.Code = b.code
		msg.Header.TokenLen = uint8(len(b.token))
	}
	return msg, nil
}

// Ping builds an Empty Confirmable message (a CoAP ping) with mid.
func Ping(mid coapcore.MessageID) (*Message, error) {
	return NewEmptyBuilder().Type(coapcore.Confirmable).MessageID(mid).Build()
}

// ResetMsg builds an Empty Reset message with mid.
func ResetMsg(mid coapcore.MessageID) (*Message, error) {
	return NewEmptyBuilder().Type(coapcore.Reset).MessageID(mid).Build()
}

// AckMsg builds an Empty Acknowledgement message with mid (the "pong"
// reply to a recognized ping, or the empty ack preceding a separate
// response).
func AckMsg(mid coapcore.MessageID) (*Message, error) {
	return NewEmptyBuilder().Type(coapcore.Acknowledgement).MessageID(mid).Build()
}

func errBuilder(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

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

// Response is a mutable builder for the body of an eventual reply
// (§4.4). It is always created from a Request, which pre-populates its
// destination, token and correlating message ID.
type Response struct {
	Peer      net.Addr
	Token     coapcore.Token
	MessageID coapcore.MessageID // the request's MID, for piggyback correlation
	Code      coapcore.Code
	Opts      option.Options
	Payload   []byte
}

// NewResponseFromRequest pre-populates destination, token and
// correlation fields from req, defaulting to 2.05 Content with no
// payload, per §4.4.
func NewResponseFromRequest(req *Request) *Response {
	return &Response{
		Peer:      req.Peer,
		Token:     req.Token,
		MessageID: req.MessageID,
		Code:      coapcore.Content,
	}
}

// WithCode sets the response code and returns the Response for chaining.
func (r *Response) WithCode(c coapcore.Code) *Response {
	r.Code = c
	return r
}

// WithPayload sets the response payload.
func (r *Response) WithPayload(p []byte) *Response {
	r.Payload = p
	return r
}

// WithContentFormat sets the Content-Format option.
func (r *Response) WithContentFormat(format uint32) *Response {
	r.Opts = r.Opts.Set(option.ContentFormat, format)
	return r
}

// WithETag sets the ETag option.
func (r *Response) WithETag(etag []byte) *Response {
	r.Opts = r.Opts.Set(option.ETag, etag)
	return r
}

// WithLocationPath sets the Location-Path segments of a 2.01 Created response.
func (r *Response) WithLocationPath(segments ...string) *Response {
	r.Opts = r.Opts.Remove(option.LocationPath)
	for _, s := range segments {
		r.Opts = r.Opts.Add(option.LocationPath, s)
	}
	return r
}

// ToMessage assembles the wire Message this Response represents, given
// the message type and ID it will actually be sent with (piggyback
// reuses the request's MID; a separate response uses a freshly
// allocated one).
func (r *Response) ToMessage(typ coapcore.Type, mid coapcore.MessageID) (*Message, error) {
	return NewResponseBuilder().
		Type(typ).
		MessageID(mid).
		Code(r.Code).
		Token(r.Token).
		Payload(r.Payload).
		build(r.Opts)
}

// build lets ToMessage inject the accumulated option set without
// exposing a public per-option setter loop on Builder's call sites.
func (b *Builder) build(opts option.Options) (*Message, error) {
	b.opts = opts
	return b.Build()
}

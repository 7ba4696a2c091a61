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

package coder

import (
	"encoding/binary"

	"github.com/coapmesh/coapd/coapcore"
	"github.com/coapmesh/coapd/message"
	"github.com/coapmesh/coapd/option"
)

// Size returns the number of bytes Encode(m) would produce.
func Size(m message.Message) (int, error) {
	size := 4
	if m.Body == nil {
		return size, nil
	}
	if len(m.Body.Token) > coapcore.MaxTokenSize {
		return -1, coapcore.ErrInvalidTokenLen
	}
	size += len(m.Body.Token)

	optLen, err := m.Body.Opts.Marshal(nil)
	if err != nil && err != coapcore.ErrTooSmall {
		return -1, err
	}
	size += optLen

	if len(m.Body.Payload) > 0 {
		size += 1 + len(m.Body.Payload) // 0xFF marker + payload
	}
	return size, nil
}

// Encode renders m into buf per RFC 7252 §3 and returns the number of
// bytes written. It is a programmer error to call Encode with a token
// longer than 8 bytes or a buffer shorter than Size(m).
func Encode(m message.Message, buf []byte) (int, error) {
	size, err := Size(m)
	if err != nil {
		return -1, err
	}
	if len(buf) < size {
		return size, coapcore.ErrTooSmall
	}

	tkl := 0
	if m.Body != nil {
		tkl = len(m.Body.Token)
	}
	buf[0] = coapcore.Version<<6 | byte(m.Header.Type)<<4 | byte(tkl&0xf)
	buf[1] = byte(m.Header.Code)
	binary.BigEndian.PutUint16(buf[2:4], uint16(m.Header.MessageID))
	cursor := 4

	if m.Body == nil {
		return size, nil
	}

	copy(buf[cursor:], m.Body.Token)
	cursor += tkl

	optLen, err := m.Body.Opts.Marshal(buf[cursor:])
	if err != nil {
		return -1, err
	}
	cursor += optLen

	if len(m.Body.Payload) > 0 {
		buf[cursor] = 0xFF
		cursor++
		copy(buf[cursor:], m.Body.Payload)
		cursor += len(m.Body.Payload)
	}
	return cursor, nil
}

// Decode parses exactly one datagram's worth of bytes. It never reads
// past len(data): one datagram is one message, per §4.1's framing
// discipline.
func Decode(data []byte) DecodeResult {
	if len(data) < 4 {
		return needMore()
	}

	ver := data[0] >> 6
	if ver != coapcore.Version {
		return invalid(coapcore.ErrUnknownVersion)
	}

	header := coapcore.Header{
		Ver:       ver,
		Type:      coapcore.Type((data[0] >> 4) & 0x3),
		TokenLen:  data[0] & 0x0f,
		Code:      coapcore.Code(data[1]),
		MessageID: coapcore.MessageID(binary.BigEndian.Uint16(data[2:4])),
	}
	rest := data[4:]

	if !coapcore.ValidTokenLen(header.TokenLen) {
		return reject(header, coapcore.ErrInvalidTokenLen)
	}

	if header.Code == coapcore.Empty {
		if header.TokenLen != 0 || len(rest) != 0 {
			return reject(header, coapcore.ErrInvalidEmptyCode)
		}
		return valid(message.Message{Header: header, Kind: message.KindEmpty})
	}

	if int(header.TokenLen) > len(rest) {
		return reject(header, coapcore.ErrTokenLengthMismatch)
	}
	token := coapcore.Token(rest[:header.TokenLen])
	if len(token) == 0 {
		token = nil
	}
	rest = rest[header.TokenLen:]

	opts, consumed, err := option.Unmarshal(rest)
	if err != nil {
		return reject(header, err)
	}
	rest = rest[consumed:]

	var payload []byte
	if len(rest) > 0 {
		if rest[0] != 0xFF {
			return reject(header, coapcore.ErrInvalidOption)
		}
		rest = rest[1:]
		if len(rest) == 0 {
			return reject(header, coapcore.ErrUnexpectedPayloadMarker)
		}
		payload = rest
	}

	kind := message.ClassOf(header.Code)

	return valid(message.Message{
		Header: header,
		Kind:   kind,
		Body: &message.Body{
			Token:   token,
			Opts:    opts,
			Payload: payload,
		},
	})
}

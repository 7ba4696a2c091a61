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
	"encoding/hex"
	"strings"
	"testing"

	"github.com/coapmesh/coapd/coapcore"
	"github.com/coapmesh/coapd/message"
	"github.com/coapmesh/coapd/option"
	"github.com/stretchr/testify/require"
)

func hexBytes(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	require.NoError(t, err)
	return b
}

// S1 — piggyback GET.
func TestDecodeS1PiggybackGet(t *testing.T) {
	data := hexBytes(t, "40 01 00 01 B5 68 65 6C 6C 6F")
	res := Decode(data)
	require.Equal(t, StatusValid, res.Status)
	require.Equal(t, message.KindRequest, res.Msg.Kind)
	require.Equal(t, coapcore.Confirmable, res.Msg.Header.Type)
	require.Equal(t, coapcore.GET, res.Msg.Header.Code)
	require.Equal(t, coapcore.MessageID(1), res.Msg.Header.MessageID)
	require.Nil(t, res.Msg.Body.Token)
	require.Equal(t, []string{"hello"}, res.Msg.Body.Opts.Path())
}

// S2 — ping.
func TestDecodeS2Ping(t *testing.T) {
	data := hexBytes(t, "40 00 12 34")
	res := Decode(data)
	require.Equal(t, StatusValid, res.Status)
	require.True(t, res.Msg.IsPing())
	require.Equal(t, coapcore.MessageID(0x1234), res.Msg.Header.MessageID)
}

// S3 — malformed Empty with trailing byte.
func TestDecodeS3MalformedEmptyTrailingByte(t *testing.T) {
	data := hexBytes(t, "40 00 00 05 01")
	res := Decode(data)
	require.Equal(t, StatusReject, res.Status)
	require.ErrorIs(t, res.Err, coapcore.ErrInvalidEmptyCode)
	require.Equal(t, coapcore.MessageID(5), res.Header.MessageID)
}

func TestDecodeNeedMoreUnderFourBytes(t *testing.T) {
	res := Decode([]byte{0x40, 0x01, 0x00})
	require.Equal(t, StatusNeedMore, res.Status)
}

func TestDecodeInvalidVersion(t *testing.T) {
	data := hexBytes(t, "00 01 00 01")
	res := Decode(data)
	require.Equal(t, StatusInvalid, res.Status)
	require.ErrorIs(t, res.Err, coapcore.ErrUnknownVersion)
}

func TestDecodeInvalidTokenLengthIsRejectWithHeader(t *testing.T) {
	// tkl nibble = 9, reserved.
	data := []byte{0x49, 0x01, 0x00, 0x01}
	res := Decode(data)
	require.Equal(t, StatusReject, res.Status)
	require.ErrorIs(t, res.Err, coapcore.ErrInvalidTokenLen)
	require.Equal(t, coapcore.MessageID(1), res.Header.MessageID)
}

func TestDecodeLoneBytePayloadMarkerIsReject(t *testing.T) {
	data := []byte{0x40, 0x01, 0x00, 0x01, 0xFF}
	res := Decode(data)
	require.Equal(t, StatusReject, res.Status)
	require.ErrorIs(t, res.Err, coapcore.ErrUnexpectedPayloadMarker)
}

func TestEncodeDecodeRoundtrip(t *testing.T) {
	body := &message.Body{
		Token: coapcore.Token{0xAB, 0xCD},
		Opts: option.Options{
			{ID: option.URIPath, Value: "sensors"},
			{ID: option.URIPath, Value: "temp"},
			{ID: option.ContentFormat, Value: uint32(50)},
		},
		Payload: []byte("22.5"),
	}
	m := message.Message{
		Header: coapcore.Header{
			Ver:       coapcore.Version,
			Type:      coapcore.Confirmable,
			Code:      coapcore.GET,
			MessageID: 0x1234,
		},
		Kind: message.KindRequest,
		Body: body,
	}

	size, err := Size(m)
	require.NoError(t, err)
	buf := make([]byte, size)
	n, err := Encode(m, buf)
	require.NoError(t, err)
	require.Equal(t, size, n)

	res := Decode(buf)
	require.Equal(t, StatusValid, res.Status)
	require.Equal(t, m.Header, res.Msg.Header)
	require.Equal(t, m.Kind, res.Msg.Kind)
	require.Equal(t, m.Body.Token, res.Msg.Body.Token)
	require.Equal(t, m.Body.Payload, res.Msg.Body.Payload)
	require.Equal(t, m.Body.Opts.Path(), res.Msg.Body.Opts.Path())
}

func TestEncodeEmptyMessage(t *testing.T) {
	m := message.Message{
		Header: coapcore.Header{Ver: coapcore.Version, Type: coapcore.Reset, MessageID: 5},
		Kind:   message.KindEmpty,
	}
	buf := make([]byte, 4)
	n, err := Encode(m, buf)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, []byte{0x70, 0x00, 0x00, 0x05}, buf)
}

func TestDecodeReservedOptionNibblesAreInvalid(t *testing.T) {
	// option header byte 0xFD: delta nibble 15 (reserved).
	data := []byte{0x40, 0x01, 0x00, 0x01, 0xFD}
	res := Decode(data)
	require.Equal(t, StatusReject, res.Status)
	require.ErrorIs(t, res.Err, coapcore.ErrInvalidOptionDelta)
}

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
	"testing"

	"github.com/coapmesh/coapd/coapcore"
	"github.com/stretchr/testify/require"
)

func TestPingPresetIsEmptyConfirmable(t *testing.T) {
	m, err := Ping(1)
	require.NoError(t, err)
	require.True(t, m.IsPing())
	require.True(t, m.IsEmpty())
	require.Nil(t, m.Body)
}

func TestResetPreset(t *testing.T) {
	m, err := ResetMsg(42)
	require.NoError(t, err)
	require.True(t, m.IsReset())
	require.Equal(t, coapcore.MessageID(42), m.Header.MessageID)
}

func TestEmptyNonConfirmableIsForbidden(t *testing.T) {
	_, err := NewEmptyBuilder().Type(coapcore.NonConfirmable).MessageID(1).Build()
	require.Error(t, err)
}

func TestEmptyWithTokenIsRejected(t *testing.T) {
	_, err := NewEmptyBuilder().
		Type(coapcore.Confirmable).
		MessageID(1).
		Build()
	require.NoError(t, err)

	b := NewEmptyBuilder().Type(coapcore.Confirmable).MessageID(1)
	b.token = coapcore.Token{0x01} // force past the no-op setter to exercise Build's check
	_, err = b.Build()
	require.Error(t, err)
}

func TestRequestBuilderDefaultsToGet(t *testing.T) {
	m, err := NewRequestBuilder().Type(coapcore.Confirmable).MessageID(5).Build()
	require.NoError(t, err)
	require.Equal(t, coapcore.GET, m.Header.Code)
}

func TestRequestBuilderRejectsResponseCode(t *testing.T) {
	_, err := NewRequestBuilder().Type(coapcore.Confirmable).MessageID(5).Code(coapcore.Content).Build()
	require.Error(t, err)
}

func TestResponseBuilderRejectsResetType(t *testing.T) {
	_, err := NewResponseBuilder().Type(coapcore.Reset).MessageID(5).Build()
	require.Error(t, err)
}

func TestBuildAggregatesMultipleViolations(t *testing.T) {
	_, err := NewRequestBuilder().Code(coapcore.Content).Build()
	require.Error(t, err)
	// Missing MID, missing type, and a request/response code mismatch
	// should all be reported in one error.
	require.Contains(t, err.Error(), "message_id")
	require.Contains(t, err.Error(), "type must be set")
	require.Contains(t, err.Error(), "not a valid method")
}

func TestRequestResponseRoundTripViaFromMessage(t *testing.T) {
	opts := make([]struct{}, 0)
	_ = opts
	msg, err := NewRequestBuilder().
		Type(coapcore.Confirmable).
		MessageID(1).
		Token(coapcore.Token{0xAB}).
		Build()
	require.NoError(t, err)

	req, ok := FromMessage(*msg, nil)
	require.True(t, ok)
	require.Equal(t, coapcore.GET, req.Method)
	require.True(t, req.IsConfirmable())

	resp := NewResponseFromRequest(req).WithCode(coapcore.Content)
	out, err := resp.ToMessage(coapcore.Acknowledgement, req.MessageID)
	require.NoError(t, err)
	require.Equal(t, coapcore.Acknowledgement, out.Header.Type)
	require.Equal(t, req.MessageID, out.Header.MessageID)
	require.Equal(t, req.Token, out.Body.Token)
}

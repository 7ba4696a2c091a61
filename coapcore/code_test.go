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

package coapcore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodeClassDetail(t *testing.T) {
	tests := []struct {
		name   string
		code   Code
		class  uint8
		detail uint8
		str    string
	}{
		{name: "empty", code: Empty, class: 0, detail: 0, str: "0.00"},
		{name: "get", code: GET, class: 0, detail: 1, str: "GET"},
		{name: "content", code: Content, class: 2, detail: 5, str: "Content"},
		{name: "not-found", code: NotFound, class: 4, detail: 4, str: "NotFound"},
		{name: "internal-server-error", code: InternalServerError, class: 5, detail: 0, str: "InternalServerError"},
		{name: "unnamed-response", code: MakeCode(2, 31), class: 2, detail: 31, str: "2.31"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.class, tt.code.Class())
			require.Equal(t, tt.detail, tt.code.Detail())
			require.Equal(t, tt.str, tt.code.String())
		})
	}
}

func TestMakeCodeRoundtrip(t *testing.T) {
	for class := uint8(0); class <= 7; class++ {
		for detail := uint8(0); detail <= 31; detail++ {
			c := MakeCode(class, detail)
			require.Equal(t, class, c.Class())
			require.Equal(t, detail, c.Detail())
		}
	}
}

func TestIsRequestAndResponseCode(t *testing.T) {
	require.True(t, IsRequestCode(GET))
	require.True(t, IsRequestCode(DELETE))
	require.False(t, IsRequestCode(Empty))
	require.False(t, IsRequestCode(Content))

	require.True(t, IsResponseCode(Content))
	require.True(t, IsResponseCode(InternalServerError))
	require.False(t, IsResponseCode(GET))
	require.False(t, IsResponseCode(Empty))
}

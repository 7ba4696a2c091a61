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

func TestMIDGeneratorStartsAtZeroPerPeer(t *testing.T) {
	g := NewMIDGenerator()
	require.Equal(t, MessageID(0), g.Next("10.0.0.1"))
	require.Equal(t, MessageID(1), g.Next("10.0.0.1"))
	require.Equal(t, MessageID(0), g.Next("10.0.0.2"))
	require.Equal(t, MessageID(2), g.Next("10.0.0.1"))
}

func TestMIDGeneratorWraps(t *testing.T) {
	g := NewMIDGenerator()
	g.nextFor["peer"] = 65535
	require.Equal(t, MessageID(65535), g.Next("peer"))
	require.Equal(t, MessageID(0), g.Next("peer"))
}

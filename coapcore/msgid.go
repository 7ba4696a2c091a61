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
	"sync"
)

// MessageID is the 16-bit transport-level identifier used only for
// dedup and ACK/RST matching; it is unrelated to Token. Unlike the
// int32-with-sentinel convention the teacher's wire encoder validates
// at the encode boundary, this type is a native uint16: any MessageID
// value is already wire-representable, so there is no out-of-range
// state left to reject at runtime.
type MessageID uint16

// MIDGenerator hands out per-peer, monotonically increasing 16-bit
// message IDs, wrapping on overflow. It is consulted only for
// server-originated messages (separate responses): ACKs and piggyback
// responses always reuse the client's message ID.
//
// A fresh peer key starts at 0, per this spec; the first call for a new
// peer therefore returns 0 and the generator advances from there.
type MIDGenerator struct {
	mu      sync.Mutex
	nextFor map[string]uint16
}

// NewMIDGenerator returns an empty per-peer generator.
func NewMIDGenerator() *MIDGenerator {
	return &MIDGenerator{nextFor: make(map[string]uint16)}
}

// Next returns the next message ID for peerKey (typically the peer's
// IP, per §4.7) and advances that peer's counter, wrapping at 65536.
func (g *MIDGenerator) Next(peerKey string) MessageID {
	g.mu.Lock()
	defer g.mu.Unlock()

	mid := g.nextFor[peerKey]
	g.nextFor[peerKey] = mid + 1 // uint16 addition wraps on overflow
	return MessageID(mid)
}

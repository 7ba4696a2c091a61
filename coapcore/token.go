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
	"encoding/hex"
)

// MaxTokenSize is the largest token length the wire format allows
// (RFC 7252 §3: token length is a 4-bit nibble, values 9-15 reserved).
const MaxTokenSize = 8

// Token is the 0-8 byte opaque value correlating a request with its
// eventual response. It is distinct from the message ID.
type Token []byte

func (t Token) String() string {
	return hex.EncodeToString(t)
}

// Equal reports whether two tokens have identical contents.
func (t Token) Equal(o Token) bool {
	if len(t) != len(o) {
		return false
	}
	for i := range t {
		if t[i] != o[i] {
			return false
		}
	}
	return true
}

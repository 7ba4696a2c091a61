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

import "fmt"

// Header is the fixed 4-byte CoAP header shared by every message kind.
type Header struct {
	Ver       uint8
	Type      Type
	TokenLen  uint8
	Code      Code
	MessageID MessageID
}

func (h Header) String() string {
	return fmt.Sprintf("Ver:%d Type:%v TKL:%d Code:%v MID:%d", h.Ver, h.Type, h.TokenLen, h.Code, h.MessageID)
}

// ValidTokenLen reports whether tkl is in the legal [0,8] wire range;
// 9-15 are reserved and invalid per RFC 7252 §3.
func ValidTokenLen(tkl uint8) bool {
	return tkl <= MaxTokenSize
}

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

// Package option implements the CoAP option registry: typed accessors
// over delta-encoded options, their critical/elective, safe/unsafe and
// cache-key policies, and the wire marshal/unmarshal of one option.
package option

import (
	"errors"
	"fmt"
	"strconv"
)

// ID identifies an option by its registered wire number.
type ID uint16

/*
   +-----+----+---+---+---+----------------+--------+--------+
   | No. | C  | U | N | R | Name           | Format | Length |
   +-----+----+---+---+---+----------------+--------+--------+
   |   1 | x  |   |   | x | If-Match       | opaque | 0-8    |
   |   3 | x  | x | - |   | Uri-Host       | string | 1-255  |
   |   4 |    |   |   | x | ETag           | opaque | 1-8    |
   |   5 | x  |   |   |   | If-None-Match  | empty  | 0      |
   |   6 |    | x | - |   | Observe        | uint   | 0-3    |
   |   7 | x  | x | - |   | Uri-Port       | uint   | 0-2    |
   |   8 |    |   |   | x | Location-Path  | string | 0-255  |
   |  11 | x  | x | - | x | Uri-Path       | string | 0-255  |
   |  12 |    |   |   |   | Content-Format | uint   | 0-2    |
   |  14 |    | x | - |   | Max-Age        | uint   | 0-4    |
   |  15 | x  | x | - | x | Uri-Query      | string | 0-255  |
   |  17 | x  |   |   |   | Accept         | uint   | 0-2    |
   |  20 |    |   |   | x | Location-Query | string | 0-255  |
   |  35 | x  | x | - |   | Proxy-Uri      | string | 1-1034 |
   |  39 | x  | x | - |   | Proxy-Scheme   | string | 1-255  |
   |  60 |    |   | x |   | Size1          | uint   | 0-4    |
   | 284 |    |   | x |   | No-Response    | uint   | 0-1    |
   +-----+----+---+---+---+----------------+--------+--------+
   C=Critical, U=Unsafe, N=NoCacheKey, R=Repeatable
*/
const (
	IfMatch       ID = 1
	URIHost       ID = 3
	ETag          ID = 4
	IfNoneMatch   ID = 5
	Observe       ID = 6
	URIPort       ID = 7
	LocationPath  ID = 8
	URIPath       ID = 11
	ContentFormat ID = 12
	MaxAge        ID = 14
	URIQuery      ID = 15
	Accept        ID = 17
	LocationQuery ID = 20
	ProxyURI      ID = 35
	ProxyScheme   ID = 39
	Size1         ID = 60
	NoResponse    ID = 284
)

var idToString = map[ID]string{
	IfMatch:       "If-Match",
	URIHost:       "Uri-Host",
	ETag:          "ETag",
	IfNoneMatch:   "If-None-Match",
	Observe:       "Observe",
	URIPort:       "Uri-Port",
	LocationPath:  "Location-Path",
	URIPath:       "Uri-Path",
	ContentFormat: "Content-Format",
	MaxAge:        "Max-Age",
	URIQuery:      "Uri-Query",
	Accept:        "Accept",
	LocationQuery: "Location-Query",
	ProxyURI:      "Proxy-Uri",
	ProxyScheme:   "Proxy-Scheme",
	Size1:         "Size1",
	NoResponse:    "No-Response",
}

func (o ID) String() string {
	if s, ok := idToString[o]; ok {
		return s
	}
	return "Option(" + strconv.FormatUint(uint64(o), 10) + ")"
}

// ToID parses a registered option's mnemonic name back into an ID.
func ToID(v string) (ID, error) {
	for k, s := range idToString {
		if s == v {
			return k, nil
		}
	}
	return 0, errors.New("option: unknown name " + v)
}

// Format is the wire value format of a registered option.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatEmpty
	FormatOpaque
	FormatUint
	FormatString
)

// Def is a registered option's format and length bounds.
type Def struct {
	Format Format
	MinLen int
	MaxLen int
}

// Registry maps option numbers to their registered definitions.
var Registry = map[ID]Def{
	IfMatch:       {Format: FormatOpaque, MinLen: 0, MaxLen: 8},
	URIHost:       {Format: FormatString, MinLen: 1, MaxLen: 255},
	ETag:          {Format: FormatOpaque, MinLen: 1, MaxLen: 8},
	IfNoneMatch:   {Format: FormatEmpty, MinLen: 0, MaxLen: 0},
	Observe:       {Format: FormatUint, MinLen: 0, MaxLen: 3},
	URIPort:       {Format: FormatUint, MinLen: 0, MaxLen: 2},
	LocationPath:  {Format: FormatString, MinLen: 0, MaxLen: 255},
	URIPath:       {Format: FormatString, MinLen: 0, MaxLen: 255},
	ContentFormat: {Format: FormatUint, MinLen: 0, MaxLen: 2},
	MaxAge:        {Format: FormatUint, MinLen: 0, MaxLen: 4},
	URIQuery:      {Format: FormatString, MinLen: 0, MaxLen: 255},
	Accept:        {Format: FormatUint, MinLen: 0, MaxLen: 2},
	LocationQuery: {Format: FormatString, MinLen: 0, MaxLen: 255},
	ProxyURI:      {Format: FormatString, MinLen: 1, MaxLen: 1034},
	ProxyScheme:   {Format: FormatString, MinLen: 1, MaxLen: 255},
	Size1:         {Format: FormatUint, MinLen: 0, MaxLen: 4},
	NoResponse:    {Format: FormatUint, MinLen: 0, MaxLen: 1},
}

// IsCritical reports whether an unrecognized occurrence of this option
// number must cause the message to be rejected (bit 0 of the number).
func IsCritical(id ID) bool { return uint16(id)&1 == 1 }

// IsUnsafe reports whether a proxy forwarding the message must not
// blindly forward this option unprocessed (bit 1 of the number).
func IsUnsafe(id ID) bool { return uint16(id)&2 == 2 }

// IsNoCacheKey reports whether this (safe) option is excluded from a
// cache key, per the bits 2-4 == 0b111 convention of RFC 7252 §5.4.6.
// Unsafe options are never part of the NoCacheKey computation: a proxy
// that does not recognize them must not cache the response at all.
func IsNoCacheKey(id ID) bool {
	return uint16(id)&0x1e == 0x1c
}

// Lookup returns the registered definition for id, and whether it is
// registered at all. Unregistered numbers are valid on the wire (they
// are carried as raw opaque bytes) but have no typed accessor.
func Lookup(id ID) (Def, bool) {
	d, ok := Registry[id]
	return d, ok
}

// Option is one decoded option: its number and its typed-or-raw value.
// Value holds a string for FormatString, a uint32 for FormatUint, or
// []byte for FormatOpaque/FormatEmpty/unregistered numbers.
type Option struct {
	ID    ID
	Value interface{}
}

func (o Option) String() string {
	return fmt.Sprintf("%s(%d)=%v", o.ID, o.ID, o.Value)
}

// Bytes renders the option's value in wire form.
func (o Option) Bytes() []byte {
	switch v := o.Value.(type) {
	case string:
		return []byte(v)
	case []byte:
		return v
	case uint32:
		return encodeUint(v)
	case uint64:
		return encodeUint(uint32(v))
	case int:
		return encodeUint(uint32(v))
	case nil:
		return nil
	default:
		panic(fmt.Errorf("option: unsupported value type for %v: %T", o.ID, o.Value))
	}
}

// encodeUint renders v as the shortest big-endian byte sequence with
// leading zeros stripped (0 encodes to the empty value).
func encodeUint(v uint32) []byte {
	switch {
	case v == 0:
		return nil
	case v < 1<<8:
		return []byte{byte(v)}
	case v < 1<<16:
		return []byte{byte(v >> 8), byte(v)}
	case v < 1<<24:
		return []byte{byte(v >> 16), byte(v >> 8), byte(v)}
	default:
		return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
	}
}

// decodeUint parses a big-endian, leading-zero-stripped uint value.
func decodeUint(b []byte) uint32 {
	var v uint32
	for _, c := range b {
		v = v<<8 | uint32(c)
	}
	return v
}

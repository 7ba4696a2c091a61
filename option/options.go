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

package option

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"github.com/coapmesh/coapd/coapcore"
)

// Options is an ordered multiset of decoded options. Repeated options
// of the same number preserve insertion order. Unmarshal yields them in
// ascending wire order and Marshal always emits them in ascending wire
// order (RFC 7252 §3.1); Add and Set append, so a set built in memory
// is not itself kept sorted.
type Options []Option

// Get returns every value registered under id, in insertion order.
func (o Options) Get(id ID) []interface{} {
	var out []interface{}
	for _, opt := range o {
		if opt.ID == id {
			out = append(out, opt.Value)
		}
	}
	return out
}

// GetFirst returns the first value registered under id, if any.
func (o Options) GetFirst(id ID) (interface{}, bool) {
	for _, opt := range o {
		if opt.ID == id {
			return opt.Value, true
		}
	}
	return nil, false
}

// Add appends a new occurrence of id without removing existing ones.
func (o Options) Add(id ID, value interface{}) Options {
	return append(o, Option{ID: id, Value: value})
}

// Set removes any existing occurrences of id and adds exactly one.
func (o Options) Set(id ID, value interface{}) Options {
	return o.Remove(id).Add(id, value)
}

// Remove drops every occurrence of id.
func (o Options) Remove(id ID) Options {
	out := o[:0:0]
	for _, opt := range o {
		if opt.ID != id {
			out = append(out, opt)
		}
	}
	return out
}

// Path returns the Uri-Path segments, in order.
func (o Options) Path() []string {
	var segs []string
	for _, v := range o.Get(URIPath) {
		segs = append(segs, v.(string))
	}
	return segs
}

// PathString joins the Uri-Path segments with "/".
func (o Options) PathString() string {
	return strings.Join(o.Path(), "/")
}

// SetPathString splits s on "/" and replaces the Uri-Path options.
func (o Options) SetPathString(s string) Options {
	out := o.Remove(URIPath)
	for _, seg := range strings.Split(strings.TrimPrefix(s, "/"), "/") {
		if seg == "" {
			continue
		}
		out = out.Add(URIPath, seg)
	}
	return out
}

// FirstUnknownCritical returns the first option number in o that is
// both unregistered and critical, per RFC 7252 §5.4.1: a recipient
// that does not understand a critical option must reject the message
// (4.02 Bad Option on a request). Elective unknown options are simply
// ignored and never reported here.
func (o Options) FirstUnknownCritical() (ID, bool) {
	for _, opt := range o {
		if _, known := Lookup(opt.ID); known {
			continue
		}
		if IsCritical(opt.ID) {
			return opt.ID, true
		}
	}
	return 0, false
}

// ContentFormat returns the Content-Format value, if set.
func (o Options) ContentFormat() (uint32, bool) {
	v, ok := o.GetFirst(ContentFormat)
	if !ok {
		return 0, false
	}
	return v.(uint32), true
}

// Queries returns the Uri-Query values, in order.
func (o Options) Queries() []string {
	var qs []string
	for _, v := range o.Get(URIQuery) {
		qs = append(qs, v.(string))
	}
	return qs
}

// sortStable reorders options into ascending-number wire order while
// preserving the relative order of options sharing the same number,
// per RFC 7252 §3.1 and this spec's §3 ordering invariant.
func (o Options) sortStable() Options {
	out := make(Options, len(o))
	copy(out, o)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Marshal encodes the option set, delta-sorted ascending, into buf.
// Passing a nil buf computes the required size without writing.
func (o Options) Marshal(buf []byte) (int, error) {
	sorted := o.sortStable()
	size := 0
	prev := ID(0)
	for _, opt := range sorted {
		var n int
		var err error
		if buf == nil {
			n, err = marshalOne(nil, opt, prev)
		} else if size <= len(buf) {
			n, err = marshalOne(buf[size:], opt, prev)
		} else {
			n, err = marshalOne(nil, opt, prev)
		}
		if err != nil && err != coapcore.ErrTooSmall {
			return -1, err
		}
		size += n
		prev = opt.ID
	}
	if buf != nil && size > len(buf) {
		return size, coapcore.ErrTooSmall
	}
	return size, nil
}

func marshalOne(buf []byte, opt Option, prevID ID) (int, error) {
	value := opt.Bytes()
	delta := int(opt.ID) - int(prevID)
	length := len(value)

	headerLen, err := marshalOptionHeader(buf, delta, length)
	if err != nil && err != coapcore.ErrTooSmall {
		return -1, err
	}
	total := headerLen
	if buf == nil || headerLen > len(buf) {
		return total + length, coapcore.ErrTooSmall
	}
	copy(buf[headerLen:], value)
	total += length
	if total > len(buf) {
		return total, coapcore.ErrTooSmall
	}
	return total, nil
}

const (
	extByteCode   = 13
	extByteBase   = 13
	extWordCode   = 14
	extWordBase   = 269
	extReserved   = 15
)

// extend splits a raw delta or length into its wire nibble and the
// extended bytes that follow it, per RFC 7252 §3.1.
func extend(v int) (nibble int, ext int) {
	switch {
	case v >= extWordBase:
		return extWordCode, v - extWordBase
	case v >= extByteBase:
		return extByteCode, v - extByteBase
	default:
		return v, 0
	}
}

func marshalOptionHeader(buf []byte, delta, length int) (int, error) {
	dn, dext := extend(delta)
	ln, lext := extend(length)

	size := 1
	if len(buf) >= 1 {
		buf[0] = byte(dn<<4) | byte(ln)
	}

	n, err := marshalExt(atOffset(buf, size), dn, dext)
	size += n
	if err != nil && err != coapcore.ErrTooSmall {
		return -1, err
	}
	short := err == coapcore.ErrTooSmall

	n, err = marshalExt(atOffset(buf, size), ln, lext)
	size += n
	if err != nil && err != coapcore.ErrTooSmall {
		return -1, err
	}
	if short || err == coapcore.ErrTooSmall {
		return size, coapcore.ErrTooSmall
	}
	return size, nil
}

func atOffset(buf []byte, off int) []byte {
	if buf == nil || off > len(buf) {
		return nil
	}
	return buf[off:]
}

func marshalExt(buf []byte, nibble, ext int) (int, error) {
	switch nibble {
	case extByteCode:
		if len(buf) < 1 {
			return 1, coapcore.ErrTooSmall
		}
		buf[0] = byte(ext)
		return 1, nil
	case extWordCode:
		if len(buf) < 2 {
			return 2, coapcore.ErrTooSmall
		}
		binary.BigEndian.PutUint16(buf, uint16(ext))
		return 2, nil
	default:
		return 0, nil
	}
}

// Unmarshal decodes options from data until a payload marker (0xFF) or
// the end of data, starting the running option number at 0. It returns
// the number of bytes consumed (not including a consumed marker byte).
func Unmarshal(data []byte) (Options, int, error) {
	var out Options
	consumed := 0
	runningID := ID(0)

	for len(data) > 0 {
		if data[0] == 0xFF {
			return out, consumed, nil
		}

		deltaNibble := int(data[0] >> 4)
		lengthNibble := int(data[0] & 0x0f)
		if deltaNibble == extReserved || lengthNibble == extReserved {
			return nil, -1, coapcore.ErrInvalidOptionDelta
		}
		data = data[1:]
		consumed++

		delta, n, err := parseExt(data, deltaNibble)
		if err != nil {
			return nil, -1, coapcore.ErrInvalidOptionDelta
		}
		data = data[n:]
		consumed += n

		length, n, err := parseExt(data, lengthNibble)
		if err != nil {
			return nil, -1, coapcore.ErrInvalidOptionLength
		}
		data = data[n:]
		consumed += n

		if length > len(data) {
			return nil, -1, coapcore.ErrOptionLengthMismatch
		}
		value := data[:length]
		data = data[length:]
		consumed += length

		runningID += ID(delta)
		opt, err := decodeValue(runningID, value)
		if err != nil {
			return nil, -1, err
		}
		out = append(out, opt)
	}
	return out, consumed, nil
}

func parseExt(data []byte, nibble int) (value int, consumed int, err error) {
	switch nibble {
	case extByteCode:
		if len(data) < 1 {
			return 0, 0, coapcore.ErrOptionLengthMismatch
		}
		return int(data[0]) + extByteBase, 1, nil
	case extWordCode:
		if len(data) < 2 {
			return 0, 0, coapcore.ErrOptionLengthMismatch
		}
		return int(binary.BigEndian.Uint16(data[:2])) + extWordBase, 2, nil
	default:
		return nibble, 0, nil
	}
}

func decodeValue(id ID, value []byte) (Option, error) {
	def, known := Lookup(id)
	if !known {
		// Unknown numbers are stored as raw bytes, kept in order, and
		// re-emitted unchanged (§4.2); criticality is judged later by
		// the dispatcher, not here.
		return Option{ID: id, Value: value}, nil
	}
	if len(value) < def.MinLen || len(value) > def.MaxLen {
		return Option{}, fmt.Errorf("%w: option %v got %d bytes, want [%d,%d]",
			coapcore.ErrInvalidOptionValue, id, len(value), def.MinLen, def.MaxLen)
	}
	switch def.Format {
	case FormatUint:
		return Option{ID: id, Value: decodeUint(value)}, nil
	case FormatString:
		return Option{ID: id, Value: string(value)}, nil
	case FormatOpaque, FormatEmpty:
		return Option{ID: id, Value: value}, nil
	default:
		return Option{ID: id, Value: value}, nil
	}
}

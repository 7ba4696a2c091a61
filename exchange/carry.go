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

package exchange

import (
	"github.com/coapmesh/coapd/coapcore"
	"github.com/coapmesh/coapd/message"
)

// Carry is the handler's output kind (§4.5): either the response is
// ready now (Piggyback) or it will arrive later on Future, reliably
// (CON) or not (NON).
type Carry struct {
	// Piggyback is non-nil when the handler answered immediately.
	Piggyback *message.Response

	// Future is non-nil when the handler chose a separate response; it
	// receives exactly one SeparateResult.
	Future <-chan SeparateResult
	// Reliability is the type (CON or NON) the eventual separate
	// response must be sent with. Meaningful only when Future != nil.
	Reliability coapcore.Type
}

// PiggybackCarry wraps an immediate response.
func PiggybackCarry(resp *message.Response) Carry {
	return Carry{Piggyback: resp}
}

// SeparateCarry wraps a deferred response future and its reliability.
func SeparateCarry(future <-chan SeparateResult, rel coapcore.Type) Carry {
	return Carry{Future: future, Reliability: rel}
}

// IsSeparate reports whether this Carry deferred its response.
func (c Carry) IsSeparate() bool { return c.Future != nil }

// SeparateResult is delivered on a Carry's Future channel once the
// deferred handler work completes.
type SeparateResult struct {
	Response *message.Response
	Err      error
}

// HandlerResult is what a handler invocation goroutine delivers back
// to the Exchange's one-shot completion channel: either a Carry, or an
// error if the handler itself failed before producing one.
type HandlerResult struct {
	Carry Carry
	Err   error
}

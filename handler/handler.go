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

// Package handler holds the application-facing contract of §6
// ("Handler contract"): a callable taking a Request and a pre-filled
// Response and delivering a Carry (inside a HandlerResult) on a result
// channel, plus the default handler and a
// path-routing Mux built on top of it.
package handler

import (
	"github.com/coapmesh/coapd/coapcore"
	"github.com/coapmesh/coapd/exchange"
	"github.com/coapmesh/coapd/message"
)

// Handler answers one request. It must send exactly one HandlerResult
// on result, either synchronously (Piggyback) before returning, or
// later from a goroutine it spawns (Separate).
type Handler interface {
	ServeCOAP(req *message.Request, resp *message.Response, result chan<- exchange.HandlerResult)
}

// HandlerFunc adapts a plain function to Handler, mirroring the
// reference server's funcHandler/FuncHandler pair.
type HandlerFunc func(req *message.Request, resp *message.Response, result chan<- exchange.HandlerResult)

// ServeCOAP implements Handler.
func (f HandlerFunc) ServeCOAP(req *message.Request, resp *message.Response, result chan<- exchange.HandlerResult) {
	f(req, resp, result)
}

// Default answers every request with a 2.05 Content piggyback carrying
// an empty body, per §6 "A default handler returns Piggyback(...)".
var Default Handler = HandlerFunc(func(req *message.Request, resp *message.Response, result chan<- exchange.HandlerResult) {
	resp.WithCode(coapcore.Content)
	result <- exchange.HandlerResult{Carry: exchange.PiggybackCarry(resp)}
})

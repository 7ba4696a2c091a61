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
	"net"
	"time"

	"github.com/coapmesh/coapd/coapcore"
	"github.com/coapmesh/coapd/message"
)

// Exchange is the process-wide state of a single request-response,
// identified by (peer, request message ID) for dedup and by
// (peer, token) for response correlation (§3).
type Exchange struct {
	Peer        net.Addr
	PeerKey     string
	RequestMID  coapcore.MessageID
	Token       coapcore.Token
	Reliability coapcore.Type // the inbound request's CON/NON
	Method      coapcore.Code

	state  State
	params coapcore.TransmissionParams
	rand   coapcore.Rand

	completion chan HandlerResult // handler -> exchange, buffered 1
	future     <-chan SeparateResult

	pendingReliability coapcore.Type // reliability requested for the eventual separate response
	midSource          func() coapcore.MessageID

	responseMID coapcore.MessageID
	cached      *message.Message
	lastSent    *message.Message // most recent outbound, for dedup re-emission

	deadline       time.Time
	initialTimeout time.Duration
	retries        int

	err error
}

// New creates an Exchange in StateHandling for a freshly admitted
// request. The returned Exchange owns a one-shot completion channel
// the dispatcher must hand to the handler invocation.
func New(req *message.Request, params coapcore.TransmissionParams, rnd coapcore.Rand) *Exchange {
	return &Exchange{
		Peer:        req.Peer,
		RequestMID:  req.MessageID,
		Token:       req.Token,
		Reliability: req.Reliability,
		Method:      req.Method,
		state:       StateHandling,
		params:      params,
		rand:        rnd,
		completion:  make(chan HandlerResult, 1),
	}
}

// Completion returns the channel a handler invocation goroutine must
// send its HandlerResult to, exactly once.
func (e *Exchange) Completion() chan<- HandlerResult { return e.completion }

// State returns the Exchange's current state.
func (e *Exchange) State() State { return e.state }

// Err returns the terminal error, if the Exchange ended abnormally.
func (e *Exchange) Err() error { return e.err }

// LastResponse returns the most recently emitted non-empty response
// message, for re-emission on a deduplicated request retransmission
// (§4.5 "Dedup policy"). It is nil until a response has been computed.
func (e *Exchange) LastResponse() *message.Message { return e.lastSent }

// PollResult is what Poll asks the dispatcher to do: send zero or more
// messages, and (if Terminal) remove the Exchange from the table.
type PollResult struct {
	Outbound []*message.Message
	Terminal bool
}

// Poll advances the Exchange's state machine by one step: it drains
// any pending handler/future completion without blocking, and checks
// the retransmission deadline if Responding. now is injected so tests
// can drive retransmission timing deterministically.
func (e *Exchange) Poll(now time.Time) PollResult {
	switch e.state {
	case StateHandling:
		return e.pollHandling(now)
	case StateHandlingSep:
		return e.pollHandlingSep(now)
	case StateResponding:
		return e.pollResponding(now)
	default:
		return PollResult{Terminal: e.state.IsTerminal()}
	}
}

func (e *Exchange) pollHandling(now time.Time) PollResult {
	select {
	case res := <-e.completion:
		if res.Err != nil {
			return e.handlerFailed(res.Err)
		}
		return e.applyCarry(res.Carry, now)
	default:
		return PollResult{}
	}
}

func (e *Exchange) applyCarry(carry Carry, now time.Time) PollResult {
	if !carry.IsSeparate() {
		ack, err := carry.Piggyback.ToMessage(coapcore.Acknowledgement, e.RequestMID)
		if err != nil {
			return e.handlerFailed(err)
		}
		e.state = StateDone
		e.lastSent = ack
		return PollResult{Outbound: []*message.Message{ack}, Terminal: true}
	}

	e.future = carry.Future
	e.pendingReliability = carry.Reliability
	e.state = StateHandlingSep

	var outbound []*message.Message
	if e.Reliability == coapcore.Confirmable {
		ack, err := message.AckMsg(e.RequestMID)
		if err != nil {
			return e.handlerFailed(err)
		}
		outbound = append(outbound, ack)
	}
	return PollResult{Outbound: outbound}
}

func (e *Exchange) pollHandlingSep(now time.Time) PollResult {
	select {
	case res, ok := <-e.future:
		if !ok {
			return PollResult{}
		}
		if res.Err != nil {
			return e.handlerFailed(res.Err)
		}
		return e.startResponding(res.Response, now)
	default:
		return PollResult{}
	}
}

func (e *Exchange) startResponding(resp *message.Response, now time.Time) PollResult {
	rel := e.pendingReliability

	mid := e.nextServerMID()

	msg, err := resp.ToMessage(rel, mid)
	if err != nil {
		return e.handlerFailed(err)
	}
	e.lastSent = msg

	if rel != coapcore.Confirmable {
		e.state = StateDone
		return PollResult{Outbound: []*message.Message{msg}, Terminal: true}
	}

	e.responseMID = mid
	e.cached = msg
	e.initialTimeout = coapcore.JitteredTimeout(e.rand, e.params.ACKTimeout, e.params.ACKRandomFactor)
	e.deadline = now.Add(e.initialTimeout)
	e.retries = 0
	e.state = StateResponding
	return PollResult{Outbound: []*message.Message{msg}}
}

func (e *Exchange) pollResponding(now time.Time) PollResult {
	if now.Before(e.deadline) {
		return PollResult{}
	}
	if e.retries >= e.params.MaxRetransmit {
		e.state = StateTimedOut
		e.err = coapcore.ErrResponseTimeout
		return PollResult{Terminal: true}
	}
	e.retries++
	next := coapcore.RetransmitTimeout(e.params.ACKTimeout, e.retries)
	e.deadline = now.Add(next)
	return PollResult{Outbound: []*message.Message{e.cached}}
}

func (e *Exchange) handlerFailed(err error) PollResult {
	e.state = StateDone
	e.err = err
	internal := message.NewResponseFromRequest(&message.Request{
		Peer: e.Peer, Token: e.Token, MessageID: e.RequestMID,
	}).WithCode(coapcore.InternalServerError)
	msg, buildErr := internal.ToMessage(coapcore.Acknowledgement, e.RequestMID)
	if buildErr != nil {
		return PollResult{Terminal: true}
	}
	e.lastSent = msg
	return PollResult{Outbound: []*message.Message{msg}, Terminal: true}
}

// OnAck reports an inbound ACK for mid; it returns true if it
// terminated a Responding exchange.
func (e *Exchange) OnAck(mid coapcore.MessageID) bool {
	if e.state == StateResponding && mid == e.responseMID {
		e.state = StateDone
		return true
	}
	return false
}

// OnReset cancels the Exchange if mid matches whatever message ID is
// currently outstanding to the peer (the request's MID while
// Handling/HandlingSep, or the allocated response MID while
// Responding), per §4.5 "Cancellation".
func (e *Exchange) OnReset(mid coapcore.MessageID) bool {
	outstanding := e.RequestMID
	if e.state == StateResponding {
		outstanding = e.responseMID
	}
	if mid != outstanding {
		return false
	}
	switch e.state {
	case StateDone, StateCancelled, StateTimedOut:
		return false
	default:
		e.state = StateCancelled
		e.err = coapcore.ErrRequestCancelled
		return true
	}
}

// nextServerMID is overridden by the dispatcher via SetMIDSource before
// the Exchange reaches HandlingSep; it defaults to a panic so a
// miswired Exchange fails loudly instead of silently reusing MID 0.
func (e *Exchange) nextServerMID() coapcore.MessageID {
	if e.midSource == nil {
		panic("exchange: SetMIDSource was never called before a separate response")
	}
	return e.midSource()
}

// SetMIDSource wires the per-peer message-ID generator the dispatcher
// owns into this Exchange, consulted only for separate responses.
func (e *Exchange) SetMIDSource(src func() coapcore.MessageID) {
	e.midSource = src
}

// OutstandingMID is the message ID an ACK or RST from the peer must
// carry to correlate with this Exchange right now: the request's MID
// while Handling/HandlingSep, or the freshly allocated response MID
// once Responding. The dispatcher uses this to keep its correlation
// index current as an Exchange moves through separate-response states.
func (e *Exchange) OutstandingMID() coapcore.MessageID {
	if e.state == StateResponding {
		return e.responseMID
	}
	return e.RequestMID
}

// Abort force-terminates a non-terminal Exchange with err, for
// conditions the Exchange itself cannot observe (e.g. the dispatcher's
// outbound queue is full). It is a no-op if the Exchange already
// reached a terminal state.
func (e *Exchange) Abort(err error) {
	if e.state.IsTerminal() {
		return
	}
	e.state = StateDone
	e.err = err
}

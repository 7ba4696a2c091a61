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

// Package dispatcher owns the exchange table, the per-peer MessageID
// generator and the bounded outbound queue described in §4.6. It runs
// a single cooperative event loop: poll exchanges for progress, drain
// the outbound queue into the transport, poll the transport for
// inbound datagrams.
package dispatcher

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/coapmesh/coapd/coapcore"
	"github.com/coapmesh/coapd/coder"
	"github.com/coapmesh/coapd/exchange"
	"github.com/coapmesh/coapd/handler"
	"github.com/coapmesh/coapd/message"
	"github.com/coapmesh/coapd/obslog"
	"github.com/coapmesh/coapd/transport"
)

// outboundItem is one queued (message, peer) pair awaiting encoding
// and a transport write.
type outboundItem struct {
	msg  *message.Message
	peer net.Addr
}

// Dispatcher is the single owner of exchange state; nothing outside
// its event loop goroutine may read or write the exchange table.
type Dispatcher struct {
	transport transport.Transport
	handler   handler.Handler
	params    coapcore.TransmissionParams
	newRand   func() coapcore.Rand

	mids *coapcore.MIDGenerator

	// table dedups inbound requests by (peer, request mid).
	table map[string]*exchange.Exchange
	// correlate maps (peer, outstanding mid) -> exchange, kept in sync
	// with each Exchange's OutstandingMID as it advances through the
	// separate-response states.
	correlate map[string]*exchange.Exchange
	// retired holds (peer, request mid) -> exchange for exchanges that
	// have reached a terminal state, so a request retransmission
	// arriving within EXCHANGE_LIFETIME still finds its dedup entry and
	// replays the cached response instead of re-invoking the handler.
	retired map[string]retiredExchange

	outbound chan outboundItem

	probing *rate.Limiter
}

type retiredExchange struct {
	ex        *exchange.Exchange
	expiresAt time.Time
}

// Option configures a Dispatcher at construction.
type Option func(*Dispatcher)

// WithOutboundQueueSize overrides the default bounded outbound queue
// capacity (256).
func WithOutboundQueueSize(n int) Option {
	return func(d *Dispatcher) { d.outbound = make(chan outboundItem, n) }
}

// WithRand overrides the per-exchange jitter source factory, for tests.
func WithRand(f func() coapcore.Rand) Option {
	return func(d *Dispatcher) { d.newRand = f }
}

// New builds a Dispatcher over t, answering requests with h using
// params for retransmission timing. params.ProbingRate bounds the byte rate
// of server-initiated probing traffic (RFC 7252 §4.7), enforced with a
// token bucket.
func New(t transport.Transport, h handler.Handler, params coapcore.TransmissionParams, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		transport: t,
		handler:   h,
		params:    params,
		newRand:   coapcore.NewRand,
		mids:      coapcore.NewMIDGenerator(),
		table:     make(map[string]*exchange.Exchange),
		correlate: make(map[string]*exchange.Exchange),
		retired:   make(map[string]retiredExchange),
		outbound:  make(chan outboundItem, 256),
		probing:   rate.NewLimiter(rate.Limit(params.ProbingRate), int(params.ProbingRate)+64),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func peerKey(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}

func tableKey(peer net.Addr, mid coapcore.MessageID) string {
	return peerKey(peer) + "#" + strconv.Itoa(int(mid))
}

// Run drives the single cooperative event loop until ctx is cancelled,
// per §4.6 "Scheduling": poll exchanges, drain outbound, poll
// transport. On cancellation every live exchange is aborted and Run
// returns nil, per §5 "Graceful shutdown cancels all live exchanges" —
// ctx cancellation is the intended way to stop the loop, not a failure.
// A transport receive error is fatal: live exchanges are aborted and
// Run returns that error.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.shutdown()
			return nil
		default:
		}

		d.pollExchanges(time.Now())
		d.drainOutbound()

		dgram, ok, err := d.transport.Receive()
		if err != nil {
			obslog.L.Error("dispatcher: transport receive error: %v", err)
			d.shutdown()
			return err
		}
		if ok {
			d.handleInbound(dgram)
		}
	}
}

// pollOnce runs exactly one loop iteration — poll exchanges, drain
// outbound, drain every currently queued inbound datagram — without
// blocking on the transport's poll interval. It is exported within the
// package for deterministic tests; Run is the production entry point.
func (d *Dispatcher) pollOnce(now time.Time) {
	d.pollExchanges(now)
	d.drainOutbound()
	for {
		dgram, ok, err := d.transport.Receive()
		if err != nil || !ok {
			return
		}
		d.handleInbound(dgram)
	}
}

func (d *Dispatcher) shutdown() {
	for key, ex := range d.table {
		ex.Abort(coapcore.ErrRequestCancelled)
		delete(d.table, key)
	}
	for key := range d.correlate {
		delete(d.correlate, key)
	}
}

// sweepRetired drops dedup cache entries whose EXCHANGE_LIFETIME has
// elapsed, per §4.6 "Dedup policy".
func (d *Dispatcher) sweepRetired(now time.Time) {
	for key, r := range d.retired {
		if !now.Before(r.expiresAt) {
			delete(d.retired, key)
		}
	}
}

// pollExchanges advances every live exchange by one step, forwarding
// outbound messages to the queue and reaping terminal exchanges.
func (d *Dispatcher) pollExchanges(now time.Time) {
	d.sweepRetired(now)
	for key, ex := range d.table {
		before := d.correlationKeyFor(ex)
		res := ex.Poll(now)

		after := d.correlationKeyFor(ex)
		if before != after {
			if before != "" {
				delete(d.correlate, before)
			}
			if after != "" {
				d.correlate[after] = ex
			}
		}

		for _, msg := range res.Outbound {
			d.enqueueOutbound(ex, msg)
		}

		if res.Terminal {
			delete(d.table, key)
			if after != "" {
				delete(d.correlate, after)
			}
			if err := ex.Err(); err != nil {
				obslog.L.Debug("dispatcher: exchange %s terminated: %v", key, err)
			}
			d.retired[key] = retiredExchange{ex: ex, expiresAt: now.Add(d.params.ExchangeLifetime())}
		}
	}
}

func (d *Dispatcher) correlationKeyFor(ex *exchange.Exchange) string {
	if ex.State().IsTerminal() {
		return ""
	}
	return tableKey(ex.Peer, ex.OutstandingMID())
}

// enqueueOutbound tries a non-blocking send to the bounded outbound
// queue; a full queue surfaces as BrokenChannel to the exchange, per
// §4.6 "Outbound".
func (d *Dispatcher) enqueueOutbound(ex *exchange.Exchange, msg *message.Message) {
	select {
	case d.outbound <- outboundItem{msg: msg, peer: ex.Peer}:
	default:
		obslog.L.Warning("dispatcher: outbound queue full, aborting exchange for peer %v", ex.Peer)
		ex.Abort(coapcore.ErrBrokenChannel)
	}
}

// drainOutbound empties the outbound queue into the transport without
// blocking the rest of the loop on a slow peer.
func (d *Dispatcher) drainOutbound() {
	for {
		select {
		case item := <-d.outbound:
			d.send(item)
		default:
			return
		}
	}
}

func (d *Dispatcher) send(item outboundItem) {
	size, err := coder.Size(*item.msg)
	if err != nil {
		obslog.L.Error("dispatcher: cannot size outbound message: %v", err)
		return
	}
	buf := make([]byte, size)
	if _, err := coder.Encode(*item.msg, buf); err != nil {
		obslog.L.Error("dispatcher: cannot encode outbound message: %v", err)
		return
	}

	if item.msg.IsEmpty() && !d.probing.AllowN(time.Now(), size) {
		obslog.L.Warning("dispatcher: PROBING_RATE exceeded, dropping empty message to %v", item.peer)
		return
	}

	if err := d.transport.Send(item.peer, buf); err != nil {
		obslog.L.Error("dispatcher: transport send to %v failed: %v", item.peer, err)
	}
}

// handleInbound implements §4.6 "Inbound handling" for one decoded
// datagram.
func (d *Dispatcher) handleInbound(dgram transport.Datagram) {
	res := coder.Decode(dgram.Data)
	switch res.Status {
	case coder.StatusReject:
		d.sendReset(dgram.Peer, res.Header.MessageID)
		obslog.L.Debug("dispatcher: rejected datagram from %v: %v", dgram.Peer, res.Err)
	case coder.StatusInvalid:
		obslog.L.Debug("dispatcher: invalid datagram from %v: %v", dgram.Peer, res.Err)
	case coder.StatusNeedMore:
		obslog.L.Debug("dispatcher: truncated datagram from %v", dgram.Peer)
	case coder.StatusValid:
		d.handleValid(dgram.Peer, res.Msg)
	}
}

func (d *Dispatcher) sendReset(peer net.Addr, mid coapcore.MessageID) {
	msg, err := message.ResetMsg(mid)
	if err != nil {
		obslog.L.Error("dispatcher: cannot build reset: %v", err)
		return
	}
	select {
	case d.outbound <- outboundItem{msg: msg, peer: peer}:
	default:
		obslog.L.Warning("dispatcher: outbound queue full, dropping reset to %v", peer)
	}
}

func (d *Dispatcher) handleValid(peer net.Addr, msg message.Message) {
	switch {
	case msg.IsReset():
		d.handleResetMsg(peer, msg)
	case msg.IsPing():
		d.handlePing(peer, msg)
	case msg.IsEmpty() && msg.IsAck():
		// The peer acknowledging a separate CON response we sent it; a
		// client role (and so inbound class 2-5 response bodies) is out
		// of scope, so this is the only "ACK" this dispatcher ever sees.
		d.handleAckMsg(peer, msg)
	case msg.Kind == message.KindRequest:
		d.handleRequestMsg(peer, msg)
	default:
		obslog.L.Debug("dispatcher: dropping %v message from %v", msg.Kind, peer)
	}
}

func (d *Dispatcher) handleResetMsg(peer net.Addr, msg message.Message) {
	key := tableKey(peer, msg.Header.MessageID)
	ex, ok := d.correlate[key]
	if !ok {
		obslog.L.Debug("dispatcher: RST from %v for unknown mid %d", peer, msg.Header.MessageID)
		return
	}
	ex.OnReset(msg.Header.MessageID)
}

// handlePing answers an Empty CON (a ping) with an Empty RST, per
// RFC 7252 §4.2's "reject" pong: this server holds no per-peer context
// that would make any given ping "recognized", so every ping is
// answered uniformly.
func (d *Dispatcher) handlePing(peer net.Addr, msg message.Message) {
	d.sendReset(peer, msg.Header.MessageID)
}

func (d *Dispatcher) handleRequestMsg(peer net.Addr, msg message.Message) {
	req, ok := message.FromMessage(msg, peer)
	if !ok {
		obslog.L.Debug("dispatcher: malformed request from %v", peer)
		return
	}

	key := tableKey(peer, req.MessageID)
	if existing, dup := d.table[key]; dup {
		d.replayDedup(existing)
		return
	}
	if retired, dup := d.retired[key]; dup {
		d.replayDedup(retired.ex)
		return
	}

	ex := exchange.New(req, d.params, d.newRand())
	midKey := peerKey(peer)
	if host, _, err := net.SplitHostPort(midKey); err == nil {
		midKey = host
	}
	ex.SetMIDSource(func() coapcore.MessageID { return d.mids.Next(midKey) })
	d.table[key] = ex
	d.correlate[key] = ex

	resp := message.NewResponseFromRequest(req)

	// §4.2 / §5.4.1: an unregistered, critical option must reject the
	// request outright, before the handler ever sees it.
	if badID, bad := req.Opts.FirstUnknownCritical(); bad {
		obslog.L.Debug("dispatcher: %v from %v carries unknown critical option %v, rejecting", req.Method, peer, badID)
		resp.WithCode(coapcore.BadOption)
		ex.Completion() <- exchange.HandlerResult{Carry: exchange.PiggybackCarry(resp)}
		return
	}

	traceID := uuid.NewString()
	go func() {
		obslog.L.Debug("dispatcher: handler %s serving %v %s", traceID, req.Method, req.PathString())
		d.handler.ServeCOAP(req, resp, ex.Completion())
	}()
}

// replayDedup re-emits the most recently computed response for a
// retransmitted request, per §4.5 "Dedup policy"; if no response has
// been computed yet, the retransmission is silently dropped.
func (d *Dispatcher) replayDedup(ex *exchange.Exchange) {
	last := ex.LastResponse()
	if last == nil {
		return
	}
	d.enqueueOutbound(ex, last)
}

func (d *Dispatcher) handleAckMsg(peer net.Addr, msg message.Message) {
	key := tableKey(peer, msg.Header.MessageID)
	ex, ok := d.correlate[key]
	if !ok {
		obslog.L.Debug("dispatcher: unsolicited ACK from %v, mid %d", peer, msg.Header.MessageID)
		return
	}
	ex.OnAck(msg.Header.MessageID)
}

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

package dispatcher

import (
	"encoding/hex"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coapmesh/coapd/coapcore"
	"github.com/coapmesh/coapd/exchange"
	"github.com/coapmesh/coapd/handler"
	"github.com/coapmesh/coapd/message"
	"github.com/coapmesh/coapd/transport/transporttest"
)

func hexBytes(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	require.NoError(t, err)
	return b
}

func peer(t *testing.T) net.Addr {
	t.Helper()
	addr, err := net.ResolveUDPAddr("udp", "198.51.100.7:5683")
	require.NoError(t, err)
	return addr
}

type countingHandler struct {
	calls int32
}

func (h *countingHandler) ServeCOAP(req *message.Request, resp *message.Response, result chan<- exchange.HandlerResult) {
	atomic.AddInt32(&h.calls, 1)
	resp.WithPayload([]byte("hello"))
	result <- exchange.HandlerResult{Carry: exchange.PiggybackCarry(resp)}
}

// waitFor polls cond every tick until it returns true or timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %v", timeout)
}

// S1 — piggyback GET produces the ACK carrying the handler's response.
func TestS1PiggybackGet(t *testing.T) {
	fake := &transporttest.Fake{}
	h := &countingHandler{}
	d := New(fake, h, coapcore.DefaultTransmissionParams())

	p := peer(t)
	fake.Deliver(p, hexBytes(t, "40 01 00 01 B5 68 65 6C 6C 6F"))

	d.pollOnce(time.Now())
	waitFor(t, time.Second, func() bool { return atomic.LoadInt32(&h.calls) == 1 })
	d.pollOnce(time.Now())
	d.drainOutbound()

	sent := fake.LastSent()
	require.NotNil(t, sent)
	require.Equal(t, byte(0x60), sent.Data[0]) // ACK, tkl=0
	require.Equal(t, byte(0x45), sent.Data[1]) // 2.05 Content
}

// S4 — two copies of the same request on consecutive loop iterations:
// one handler invocation, two identical outbound responses (dedup replay).
func TestS4RetransmitDedup(t *testing.T) {
	fake := &transporttest.Fake{}
	h := &countingHandler{}
	d := New(fake, h, coapcore.DefaultTransmissionParams())

	p := peer(t)
	data := hexBytes(t, "40 01 00 01 B5 68 65 6C 6C 6F")
	fake.Deliver(p, data)

	d.pollOnce(time.Now())
	waitFor(t, time.Second, func() bool { return atomic.LoadInt32(&h.calls) == 1 })
	d.pollOnce(time.Now())
	d.drainOutbound()
	require.Len(t, fake.Sent, 1)

	fake.Deliver(p, data)
	d.pollOnce(time.Now())
	d.drainOutbound()

	require.Equal(t, int32(1), atomic.LoadInt32(&h.calls))
	require.Len(t, fake.Sent, 2)
	require.Equal(t, fake.Sent[0].Data, fake.Sent[1].Data)
}

func TestPingIsAnsweredWithReset(t *testing.T) {
	fake := &transporttest.Fake{}
	d := New(fake, handler.Default, coapcore.DefaultTransmissionParams())

	p := peer(t)
	fake.Deliver(p, hexBytes(t, "40 00 12 34"))
	d.pollOnce(time.Now())
	d.drainOutbound()

	sent := fake.LastSent()
	require.NotNil(t, sent)
	require.Equal(t, []byte{0x70, 0x00, 0x12, 0x34}, sent.Data)
}

func TestMalformedEmptyYieldsReset(t *testing.T) {
	fake := &transporttest.Fake{}
	d := New(fake, handler.Default, coapcore.DefaultTransmissionParams())

	p := peer(t)
	fake.Deliver(p, hexBytes(t, "40 00 00 05 01"))
	d.pollOnce(time.Now())
	d.drainOutbound()

	sent := fake.LastSent()
	require.NotNil(t, sent)
	require.Equal(t, []byte{0x70, 0x00, 0x00, 0x05}, sent.Data)
}

// A GET carrying unregistered critical option 9 must be rejected with
// 4.02 Bad Option without ever reaching the handler (§4.2 / §5.4.1).
func TestUnknownCriticalOptionIsBadOption(t *testing.T) {
	fake := &transporttest.Fake{}
	h := &countingHandler{}
	d := New(fake, h, coapcore.DefaultTransmissionParams())

	p := peer(t)
	// CON GET mid=1, one option: number 9 (delta 9, len 1), value 0x01.
	fake.Deliver(p, hexBytes(t, "40 01 00 01 91 01"))
	d.pollOnce(time.Now())
	d.pollOnce(time.Now())
	d.drainOutbound()

	require.Equal(t, int32(0), atomic.LoadInt32(&h.calls), "handler must never see a rejected request")

	sent := fake.LastSent()
	require.NotNil(t, sent)
	require.Equal(t, byte(0x60), sent.Data[0]) // ACK, tkl=0
	require.Equal(t, byte(0x82), sent.Data[1]) // 4.02 Bad Option
}

type separateHandler struct {
	ready chan struct{}
}

func (h *separateHandler) ServeCOAP(req *message.Request, resp *message.Response, result chan<- exchange.HandlerResult) {
	future := make(chan exchange.SeparateResult, 1)
	result <- exchange.HandlerResult{Carry: exchange.SeparateCarry(future, coapcore.Confirmable)}
	go func() {
		<-h.ready
		resp.WithPayload([]byte("22.5"))
		future <- exchange.SeparateResult{Response: resp}
	}()
}

// S5/S6 — separate CON response, then an inbound RST cancels it and
// stops further retransmission.
func TestS6RSTCancelsSeparateResponse(t *testing.T) {
	fake := &transporttest.Fake{}
	h := &separateHandler{ready: make(chan struct{})}
	d := New(fake, h, coapcore.DefaultTransmissionParams())

	p := peer(t)
	fake.Deliver(p, hexBytes(t, "40 01 00 01 B5 68 65 6C 6C 6F"))

	now := time.Now()
	d.pollOnce(now) // admits the request, spawns handler
	waitFor(t, time.Second, func() bool {
		d.pollOnce(now) // applies the handler's carry once it arrives
		return len(fake.Sent) == 1
	})
	d.pollOnce(now) // drains empty ack
	d.drainOutbound()
	require.Len(t, fake.Sent, 1) // empty ack

	close(h.ready) // let the handler complete the separate response
	waitFor(t, time.Second, func() bool {
		d.pollOnce(now) // the exchange only advances when polled
		for _, ex := range d.table {
			if ex.State() == exchange.StateResponding {
				return true
			}
		}
		return false
	})
	d.pollOnce(now)
	d.drainOutbound()
	require.Len(t, fake.Sent, 2) // separate CON response

	respMID := sentMessageID(t, fake.Sent[1].Data)
	rst := mustEncodeReset(t, respMID)
	fake.Deliver(p, rst)
	d.pollOnce(now) // processes the RST, marking the exchange Cancelled
	d.pollOnce(now) // reaps the now-terminal exchange out of the table

	require.Empty(t, d.table)
	sentBeforeWait := len(fake.Sent)
	time.Sleep(20 * time.Millisecond)
	d.pollOnce(now.Add(time.Minute)) // well past any retransmission deadline
	require.Equal(t, sentBeforeWait, len(fake.Sent), "a cancelled exchange must not retransmit")
}

func sentMessageID(t *testing.T, data []byte) coapcore.MessageID {
	t.Helper()
	require.True(t, len(data) >= 4)
	return coapcore.MessageID(uint16(data[2])<<8 | uint16(data[3]))
}

func mustEncodeReset(t *testing.T, mid coapcore.MessageID) []byte {
	t.Helper()
	return []byte{0x70, 0x00, byte(mid >> 8), byte(mid)}
}

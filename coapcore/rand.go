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
	"math/rand"
	"time"
)

// Rand is the seam an Exchange draws its retransmission jitter from.
// Production code uses NewRand (a process-wide, time-seeded source);
// tests inject a deterministic stub.
type Rand interface {
	// Float64 returns a pseudo-random number in [0.0, 1.0).
	Float64() float64
}

// NewRand returns a *rand.Rand seeded from the current time, suitable
// as the default jitter source for one Exchange.
func NewRand() Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// JitteredTimeout draws the first CON retransmission timeout uniformly
// from [ackTimeout, ackTimeout*ackRandomFactor), per RFC 7252 §4.8.
func JitteredTimeout(r Rand, ackTimeout time.Duration, ackRandomFactor float64) time.Duration {
	span := float64(ackTimeout) * (ackRandomFactor - 1)
	return ackTimeout + time.Duration(r.Float64()*span)
}

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

// Package config loads the host-tunable knobs a coapd deployment
// needs: the bind address and the RFC 7252 §4.8 transmission
// parameters, read from the environment with sane RFC defaults.
package config

import (
	"time"

	"github.com/caarlos0/env/v7"

	"github.com/coapmesh/coapd/coapcore"
)

// Config is every environment-tunable setting this server reads at
// startup. Durations are in milliseconds on the wire (env vars),
// matching RFC 7252 §4.8's own units.
type Config struct {
	BindNetwork string `env:"COAPD_NETWORK" envDefault:"udp"`
	BindAddr    string `env:"COAPD_ADDR" envDefault:"0.0.0.0:5683"`

	ACKTimeoutMS      int     `env:"COAPD_ACK_TIMEOUT_MS" envDefault:"2000"`
	ACKRandomFactor   float64 `env:"COAPD_ACK_RANDOM_FACTOR" envDefault:"1.5"`
	MaxRetransmit     int     `env:"COAPD_MAX_RETRANSMIT" envDefault:"4"`
	DefaultLeisureMS  int     `env:"COAPD_DEFAULT_LEISURE_MS" envDefault:"5000"`
	ProbingRate       float64 `env:"COAPD_PROBING_RATE" envDefault:"1.0"`
	MaxLatencyMS      int     `env:"COAPD_MAX_LATENCY_MS" envDefault:"100000"`
	OutboundQueueSize int     `env:"COAPD_OUTBOUND_QUEUE_SIZE" envDefault:"256"`

	LogLevel string `env:"COAPD_LOG_LEVEL" envDefault:"info"`
}

// Load reads Config from the process environment, applying the
// envDefault tags for anything unset.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// TransmissionParams converts the millisecond env fields into a
// coapcore.TransmissionParams.
func (c *Config) TransmissionParams() coapcore.TransmissionParams {
	return coapcore.TransmissionParams{
		ACKTimeout:      time.Duration(c.ACKTimeoutMS) * time.Millisecond,
		ACKRandomFactor: c.ACKRandomFactor,
		MaxRetransmit:   c.MaxRetransmit,
		DefaultLeisure:  time.Duration(c.DefaultLeisureMS) * time.Millisecond,
		ProbingRate:     c.ProbingRate,
		MaxLatency:      time.Duration(c.MaxLatencyMS) * time.Millisecond,
	}
}

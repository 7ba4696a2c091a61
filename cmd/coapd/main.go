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

// Command coapd is the standalone CoAP/UDP server: it wires a udp.Conn
// transport, a routing handler.Mux, and a dispatcher.Dispatcher event
// loop together, then runs until SIGINT/SIGTERM.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/coapmesh/coapd/config"
	"github.com/coapmesh/coapd/coapcore"
	"github.com/coapmesh/coapd/dispatcher"
	"github.com/coapmesh/coapd/exchange"
	"github.com/coapmesh/coapd/handler"
	"github.com/coapmesh/coapd/message"
	"github.com/coapmesh/coapd/obslog"
	"github.com/coapmesh/coapd/transport/udp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		obslog.L.Critical("coapd: failed to load config: %v", err)
		os.Exit(1)
	}

	conn, err := udp.Listen(cfg.BindNetwork, cfg.BindAddr)
	if err != nil {
		obslog.L.Critical("coapd: failed to bind %s %s: %v", cfg.BindNetwork, cfg.BindAddr, err)
		os.Exit(1)
	}
	defer conn.Close()

	mux := routes()

	d := dispatcher.New(conn, mux, cfg.TransmissionParams(),
		dispatcher.WithOutboundQueueSize(cfg.OutboundQueueSize),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		obslog.L.Info("coapd: received shutdown signal, draining exchanges")
		cancel()
	}()

	obslog.L.Info("coapd: listening on %s %s", cfg.BindNetwork, cfg.BindAddr)
	if err := d.Run(ctx); err != nil {
		obslog.L.Critical("coapd: dispatcher exited: %v", err)
		os.Exit(1)
	}
	obslog.L.Info("coapd: stopped")
}

// routes wires the static demo resource tree this server exposes.
// Resource discovery (.well-known/core) is an explicit non-goal, so
// every path is hand-registered; an unregistered path falls through
// to handler.Mux's own 4.04.
func routes() *handler.Mux {
	mux := handler.NewMux()
	mux.HandleFunc("/sensors/temp", coapcore.GET, func(req *message.Request, resp *message.Response, result chan<- exchange.HandlerResult) {
		resp.WithPayload([]byte("22.5"))
		result <- exchange.HandlerResult{Carry: exchange.PiggybackCarry(resp)}
	})
	return mux
}

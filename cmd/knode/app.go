// go-knode
// Copyright (c) 2026 The go-knode Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-knode.
//
// go-knode is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-knode is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-knode; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kasmnode/go-knode"
	"github.com/kasmnode/go-knode/internal/config"
	"github.com/kasmnode/go-knode/internal/journal"
	"github.com/kasmnode/go-knode/pipeline"
	"github.com/kasmnode/go-knode/transport"
	"github.com/kasmnode/go-knode/transport/udp"
)

// app holds everything one node run opens so it can be released in reverse
// order.
type app struct {
	listener   *udp.Listener
	node       *pipeline.Node
	dispatcher *knode.Dispatcher
	journal    *journal.Journal
	transports []knode.Transport
}

// setup opens the channels, the socket and the event sinks, and builds the
// node. Nothing is started. On error every resource opened so far is closed.
func setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (a *app, err error) {
	a = &app{}
	defer func() {
		if err != nil {
			_ = a.close()
		}
	}()

	channels := make([]pipeline.Channel, 0, len(cfg.Channels))
	for i := range cfg.Channels {
		ch := &cfg.Channels[i]
		t, openErr := transport.Open(ctx, ch)
		if openErr != nil {
			return nil, fmt.Errorf("channel %d (%s): %w", i, ch.Name, openErr)
		}
		a.transports = append(a.transports, t)
		channels = append(channels, pipeline.Channel{Name: ch.Name, Transport: t})
		knode.Debugf("knode: channel %d %s on %s %s", i, ch.Name, ch.Transport, ch.Device)
	}

	a.listener, err = udp.Listen(udp.Config{Host: cfg.Listen.Host, Port: cfg.Listen.Port, Echo: cfg.Listen.Echo})
	if err != nil {
		return nil, err
	}

	sinks := []knode.Reporter{knode.NewSlogReporter(logger, cfg.ChannelNames()...)}
	if cfg.Journal.Path != "" {
		a.journal, err = journal.Open(cfg.Journal.Path, logger)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, a.journal)
		logger.Info("event journal", slog.String("path", cfg.Journal.Path), slog.String("run", a.journal.RunID()))
	}
	a.dispatcher = knode.NewDispatcher(cfg.Events.Queue, sinks...)

	opts := []pipeline.Option{
		pipeline.WithPeriod(cfg.Period),
		pipeline.WithCRC(cfg.CRCParams()),
		pipeline.WithVerify(cfg.VerifyCRC),
		pipeline.WithReporter(a.dispatcher),
	}
	if cfg.Realtime.Enabled {
		opts = append(opts,
			pipeline.WithPriorityInheritance(cfg.Realtime.PriorityInheritance),
			pipeline.WithThreadSetup(threadSetup(cfg.Realtime)))
	}

	a.node, err = pipeline.NewNode(a.listener, channels, opts...)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// serve starts the node, waits for ctx to end and stops it.
func (a *app) serve(ctx context.Context) error {
	if err := a.node.Start(ctx); err != nil {
		return fmt.Errorf("failed to start node: %w", err)
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return a.node.Stop(stopCtx)
}

// close releases resources in reverse order of setup. The dispatcher drains
// before the journal closes so late events are still persisted.
func (a *app) close() error {
	var errs []error
	if a.listener != nil {
		errs = append(errs, a.listener.Close())
	}
	for _, t := range a.transports {
		errs = append(errs, t.Close())
	}
	if a.dispatcher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		errs = append(errs, a.dispatcher.Close(ctx))
		cancel()
		if dropped := a.dispatcher.Dropped(); dropped > 0 {
			knode.Debugf("knode: %d events dropped", dropped)
		}
	}
	if a.journal != nil {
		errs = append(errs, a.journal.Close())
	}
	return errors.Join(errs...)
}

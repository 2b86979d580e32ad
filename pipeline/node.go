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

// Package pipeline is the real-time delivery path: one periodic ingress
// worker fanning command frames out to per-channel slots, and one reactive
// egress worker per channel draining its slot onto a peripheral.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kasmnode/go-knode"
	"github.com/kasmnode/go-knode/internal/syncutil"
)

// Node owns the slots and workers of one delivery pipeline. A Node runs once:
// after Stop it cannot be started again.
type Node struct {
	ingress   *Ingress
	stopWatch func() bool
	egress    []*Egress
	slots     []*Slot
	opts      options
	wg        sync.WaitGroup
	stop      atomic.Bool
	started   atomic.Bool
	stopOnce  sync.Once
}

// NewNode builds a node with one slot and egress worker per channel.
func NewNode(rx Receiver, channels []Channel, opts ...Option) (*Node, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if rx == nil {
		return nil, fmt.Errorf("%w: nil receiver", knode.ErrInvalidConfig)
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("%w: no channels", knode.ErrInvalidConfig)
	}
	if o.period <= 0 {
		return nil, fmt.Errorf("%w: period must be positive, got %v", knode.ErrInvalidConfig, o.period)
	}
	if o.reporter == nil {
		o.reporter = knode.Discard
	}

	n := &Node{opts: o}
	for i, ch := range channels {
		if ch.Transport == nil {
			return nil, fmt.Errorf("%w: channel %d (%s) has no transport", knode.ErrInvalidConfig, i, ch.Name)
		}
		mu, err := syncutil.NewLocker(o.pi)
		if err != nil {
			return nil, knode.NewInitError("slot lock", ch.Name, err)
		}
		slot := NewSlot(mu)
		n.slots = append(n.slots, slot)
		n.egress = append(n.egress, newEgress(i, ch, slot, &n.opts))
	}
	n.ingress = newIngress(rx, n.slots, &n.opts)
	return n, nil
}

// Start launches every egress worker and the ingress worker, each on its own
// goroutine, and runs the thread setup hook on each. If any setup fails, all
// workers are stopped and the joined errors are returned. Cancelling ctx after
// a successful Start has the same effect as calling Stop without waiting.
func (n *Node) Start(ctx context.Context) error {
	if !n.started.CompareAndSwap(false, true) {
		return knode.ErrAlreadyRunning
	}

	workers := len(n.egress) + 1
	results := make(chan error, workers)
	begin := make(chan struct{})

	for i, e := range n.egress {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			if !n.prepare(RoleEgress, i, results, begin) {
				return
			}
			e.run()
		}()
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if !n.prepare(RoleIngress, -1, results, begin) {
			return
		}
		n.ingress.run(&n.stop)
	}()

	var errs []error
	for range workers {
		if err := <-results; err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		n.shutdown()
		close(begin)
		n.wg.Wait()
		return errors.Join(errs...)
	}

	close(begin)
	n.stopWatch = context.AfterFunc(ctx, n.shutdown)
	knode.Debugf("pipeline: %d egress workers and ingress running, period %v", len(n.egress), n.opts.period)
	return nil
}

// prepare runs the setup hook, reports its result and waits until every
// worker is ready. It returns false if the worker should exit instead.
func (n *Node) prepare(role Role, channel int, results chan<- error, begin <-chan struct{}) bool {
	var err error
	if n.opts.setup != nil {
		err = n.opts.setup(role, channel)
	}
	if err != nil {
		name := role.String()
		if channel >= 0 {
			name = fmt.Sprintf("%s %d (%s)", name, channel, n.egress[channel].channel.Name)
		}
		results <- fmt.Errorf("%s thread setup: %w", name, err)
		return false
	}
	results <- nil
	<-begin
	return !n.stop.Load()
}

// shutdown sets the stop flag for the ingress loop and closes every slot so
// blocked egress workers return.
func (n *Node) shutdown() {
	n.stopOnce.Do(func() {
		n.stop.Store(true)
		for _, s := range n.slots {
			s.Close()
		}
	})
}

// Stop signals every worker and waits for them to return or for ctx to end.
// An egress worker inside a transfer returns when that transfer does.
func (n *Node) Stop(ctx context.Context) error {
	if !n.started.Load() {
		return nil
	}
	if n.stopWatch != nil {
		n.stopWatch()
	}
	n.shutdown()

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pipeline stop: %w", ctx.Err())
	}
}

// Stats returns a snapshot of all counters.
func (n *Node) Stats() Stats {
	st := Stats{
		Ingress:  n.ingress.Stats(),
		Channels: make([]ChannelStats, len(n.egress)),
	}
	for i, e := range n.egress {
		st.Channels[i] = e.Stats()
	}
	return st
}

// Slot returns the slot of channel i.
func (n *Node) Slot(i int) *Slot {
	return n.slots[i]
}

// Ingress returns the ingress worker. Poll may be driven directly when the
// node is not started.
func (n *Node) Ingress() *Ingress {
	return n.ingress
}

// Egress returns the egress worker of channel i. Next may be driven directly
// when the node is not started.
func (n *Node) Egress(i int) *Egress {
	return n.egress[i]
}

// Channels returns the number of channels.
func (n *Node) Channels() int {
	return len(n.egress)
}

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

package pipeline

import (
	"time"

	"github.com/kasmnode/go-knode"
	"github.com/kasmnode/go-knode/clock"
)

// Channel is the static configuration of one peripheral channel.
type Channel struct {
	Transport knode.Transport
	Name      string
}

// Egress is the reactive worker of one channel. It sleeps on its slot until a
// frame is ready, takes a private copy, and performs the transfer with no lock
// held, so a stalled bus delays only its own channel.
type Egress struct {
	slot     *Slot
	clock    clock.Clock
	reporter knode.Reporter
	channel  Channel
	stats    egressCounters
	index    int
	crc      knode.CRCParams
	verify   bool
	local    knode.Frame
	wire     [knode.FrameSize]byte
}

func newEgress(index int, ch Channel, slot *Slot, o *options) *Egress {
	return &Egress{
		index:    index,
		channel:  ch,
		slot:     slot,
		crc:      o.crc,
		verify:   o.verify,
		clock:    o.clock,
		reporter: o.reporter,
	}
}

// Next waits for one frame and transfers it. Failures are reported and do not
// stop the worker. Next returns false once the slot is closed.
func (e *Egress) Next() bool {
	if !e.slot.Take(&e.local) {
		return false
	}

	if e.verify {
		if err := e.crc.Check(&e.local); err != nil {
			e.stats.crcFailures.Add(1)
			e.reporter.Report(knode.Event{
				Kind:    knode.EventCRCFailure,
				At:      time.Now(),
				Channel: e.index,
				CRC:     e.local.CRC(),
				Err:     err,
			})
			return true
		}
	}

	e.local.MarshalNative(&e.wire)
	start := e.clock.Now()
	_, err := e.channel.Transport.Transfer(e.wire[:])
	latency := e.clock.Now().Sub(start)
	e.stats.recordLatency(latency)

	if err != nil {
		e.stats.failures.Add(1)
		e.reporter.Report(knode.Event{
			Kind:    knode.EventTransferFailed,
			At:      time.Now(),
			Channel: e.index,
			Size:    len(e.wire),
			Latency: latency,
			Err:     err,
		})
		return true
	}

	e.stats.transfers.Add(1)
	e.reporter.Report(knode.Event{
		Kind:    knode.EventTransferDone,
		At:      time.Now(),
		Channel: e.index,
		Size:    len(e.wire),
		Latency: latency,
		CRC:     e.local.CRC(),
	})
	return true
}

func (e *Egress) run() {
	for e.Next() {
	}
}

// Stats returns the channel counters, including those of its slot.
func (e *Egress) Stats() ChannelStats {
	slot := e.slot.Stats()
	return ChannelStats{
		Name:        e.channel.Name,
		Transfers:   e.stats.transfers.Load(),
		Failures:    e.stats.failures.Load(),
		CRCFailures: e.stats.crcFailures.Load(),
		Published:   slot.Published,
		Overwrites:  slot.Overwrites,
		LastLatency: time.Duration(e.stats.lastLatency.Load()),
		MaxLatency:  time.Duration(e.stats.maxLatency.Load()),
	}
}

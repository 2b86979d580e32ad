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
	"sync/atomic"
	"time"
)

// IngressStats are the ingress worker counters.
type IngressStats struct {
	Iterations      uint64        // periods elapsed
	Frames          uint64        // exact-size datagrams fanned out
	NoData          uint64        // periods with nothing pending
	ReceiveErrors   uint64        // failed receive attempts
	SizeMismatches  uint64        // datagrams discarded for their length
	MissedDeadlines uint64        // deadlines that had already elapsed
	LastOverrun     time.Duration // overrun of the most recent miss
	MaxOverrun      time.Duration // worst overrun seen
}

// ChannelStats are the counters of one channel, combining the egress worker
// and its slot.
type ChannelStats struct {
	Name        string
	Transfers   uint64        // successful peripheral transfers
	Failures    uint64        // failed peripheral transfers
	CRCFailures uint64        // frames discarded by verification
	Published   uint64        // frames written into the slot
	Overwrites  uint64        // frames replaced before being taken
	LastLatency time.Duration // duration of the most recent transfer
	MaxLatency  time.Duration // worst transfer duration
}

// Stats is a point-in-time view of a node.
type Stats struct {
	Channels []ChannelStats
	Ingress  IngressStats
}

// ingressCounters are written only by the ingress worker and read by Stats.
type ingressCounters struct {
	iterations      atomic.Uint64
	frames          atomic.Uint64
	noData          atomic.Uint64
	receiveErrors   atomic.Uint64
	sizeMismatches  atomic.Uint64
	missedDeadlines atomic.Uint64
	lastOverrun     atomic.Int64
	maxOverrun      atomic.Int64
}

func (c *ingressCounters) recordMiss(overrun time.Duration) {
	c.missedDeadlines.Add(1)
	c.lastOverrun.Store(int64(overrun))
	if int64(overrun) > c.maxOverrun.Load() {
		c.maxOverrun.Store(int64(overrun))
	}
}

func (c *ingressCounters) snapshot() IngressStats {
	return IngressStats{
		Iterations:      c.iterations.Load(),
		Frames:          c.frames.Load(),
		NoData:          c.noData.Load(),
		ReceiveErrors:   c.receiveErrors.Load(),
		SizeMismatches:  c.sizeMismatches.Load(),
		MissedDeadlines: c.missedDeadlines.Load(),
		LastOverrun:     time.Duration(c.lastOverrun.Load()),
		MaxOverrun:      time.Duration(c.maxOverrun.Load()),
	}
}

// egressCounters are written only by one egress worker.
type egressCounters struct {
	transfers   atomic.Uint64
	failures    atomic.Uint64
	crcFailures atomic.Uint64
	lastLatency atomic.Int64
	maxLatency  atomic.Int64
}

func (c *egressCounters) recordLatency(d time.Duration) {
	c.lastLatency.Store(int64(d))
	if int64(d) > c.maxLatency.Load() {
		c.maxLatency.Store(int64(d))
	}
}

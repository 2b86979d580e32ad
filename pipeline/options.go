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

// Role identifies which kind of worker a thread runs.
type Role int

const (
	// RoleIngress is the single periodic receive and fan-out worker.
	RoleIngress Role = iota
	// RoleEgress is one per-channel transfer worker.
	RoleEgress
)

func (r Role) String() string {
	if r == RoleIngress {
		return "ingress"
	}
	return "egress"
}

// ThreadSetup runs on a worker's goroutine before its loop starts. It is the
// hook for pinning the goroutine to an OS thread and raising its scheduling
// priority. channel is -1 for the ingress worker. A non-nil error aborts Start.
type ThreadSetup func(role Role, channel int) error

type options struct {
	clock    clock.Clock
	reporter knode.Reporter
	setup    ThreadSetup
	crc      knode.CRCParams
	period   time.Duration
	pi       bool
	verify   bool
}

func defaultOptions() options {
	return options{
		clock:    clock.System(),
		reporter: knode.Discard,
		crc:      knode.CRC16DNP,
		period:   clock.DefaultPeriod,
		verify:   true,
	}
}

// Option configures a Node.
type Option func(*options)

// WithPeriod sets the ingress period.
func WithPeriod(d time.Duration) Option {
	return func(o *options) { o.period = d }
}

// WithCRC sets the CRC polynomial and initial value.
func WithCRC(p knode.CRCParams) Option {
	return func(o *options) { o.crc = p }
}

// WithClock replaces the system monotonic clock.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithReporter sets the sink for worker events. It must not block.
func WithReporter(r knode.Reporter) Option {
	return func(o *options) { o.reporter = r }
}

// WithPriorityInheritance backs every slot with a priority inheritance lock.
func WithPriorityInheritance(enabled bool) Option {
	return func(o *options) { o.pi = enabled }
}

// WithThreadSetup installs a per-worker setup hook.
func WithThreadSetup(fn ThreadSetup) Option {
	return func(o *options) { o.setup = fn }
}

// WithVerify controls CRC verification of each frame before transfer.
func WithVerify(enabled bool) Option {
	return func(o *options) { o.verify = enabled }
}

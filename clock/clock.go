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

// Package clock provides the monotonic time base and the absolute-deadline
// schedule used by the ingress worker.
package clock

import (
	"fmt"
	"time"
)

// DefaultPeriod is the ingress polling period.
const DefaultPeriod = 400 * time.Microsecond

// Instant is a point on the monotonic clock in nanoseconds. It is unrelated to
// wall time and only meaningful relative to other Instants from the same Clock.
type Instant int64

// Add returns i+d.
func (i Instant) Add(d time.Duration) Instant {
	return i + Instant(d)
}

// Sub returns i-j.
func (i Instant) Sub(j Instant) time.Duration {
	return time.Duration(i - j)
}

// Before reports whether i is strictly earlier than j.
func (i Instant) Before(j Instant) bool {
	return i < j
}

// After reports whether i is strictly later than j.
func (i Instant) After(j Instant) bool {
	return i > j
}

// Split returns whole seconds and the nanosecond remainder in [0, 1e9).
func (i Instant) Split() (sec, nsec int64) {
	const nsPerSec = int64(time.Second)
	sec, nsec = int64(i)/nsPerSec, int64(i)%nsPerSec
	if nsec < 0 {
		sec--
		nsec += nsPerSec
	}
	return sec, nsec
}

// FromParts builds an Instant from seconds and nanoseconds. nsec may exceed a
// second; the carry is folded into the result.
func FromParts(sec, nsec int64) Instant {
	return Instant(sec*int64(time.Second) + nsec)
}

func (i Instant) String() string {
	sec, nsec := i.Split()
	return fmt.Sprintf("%d.%09d", sec, nsec)
}

// Clock reads the monotonic clock and sleeps until absolute instants.
type Clock interface {
	// Now returns the current monotonic instant.
	Now() Instant
	// SleepUntil blocks until the clock reaches deadline. It returns at once
	// when deadline is not in the future.
	SleepUntil(deadline Instant)
}

// NextDeadline advances a deadline by one period with nanosecond carry into
// seconds.
func NextDeadline(cur Instant, period time.Duration) Instant {
	return cur.Add(period)
}

// Miss describes a wakeup that happened after its deadline.
type Miss struct {
	Deadline Instant       // the deadline that had already elapsed
	Overrun  time.Duration // how far past it the worker observed the clock
}

// Schedule owns the absolute wake time of a periodic loop. Each deadline is the
// previous deadline plus the period, never now plus the period, so wakeup
// jitter does not accumulate. When a computed deadline has already elapsed the
// schedule resynchronizes to now+period instead of catching up.
type Schedule struct {
	prev   Instant
	period time.Duration
	misses uint64
}

// NewSchedule starts a schedule anchored at start; the first deadline
// Advance returns is start+period.
func NewSchedule(start Instant, period time.Duration) *Schedule {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Schedule{prev: start, period: period}
}

// Deadline returns the most recent deadline handed out, or the anchor before
// the first Advance.
func (s *Schedule) Deadline() Instant {
	return s.prev
}

// Period returns the schedule period.
func (s *Schedule) Period() time.Duration {
	return s.period
}

// Misses returns how many deadlines were missed so far.
func (s *Schedule) Misses() uint64 {
	return s.misses
}

// Advance computes the next deadline from the previous one and compares it to
// now. On a miss the returned deadline is now+period and the elapsed deadline
// is described by the Miss.
func (s *Schedule) Advance(now Instant) (Instant, Miss, bool) {
	next := NextDeadline(s.prev, s.period)
	if !now.After(next) {
		s.prev = next
		return next, Miss{}, false
	}
	miss := Miss{Deadline: next, Overrun: now.Sub(next)}
	s.prev = NextDeadline(now, s.period)
	s.misses++
	return s.prev, miss, true
}

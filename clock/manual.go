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

package clock

import (
	"sync"
	"time"
)

// Manual is a Clock driven by the caller. SleepUntil advances the clock to the
// deadline immediately and records it, plus any configured oversleep.
type Manual struct {
	sleeps    []Instant
	now       Instant
	oversleep time.Duration
	mu        sync.Mutex
}

// NewManual returns a manual clock reading start.
func NewManual(start Instant) *Manual {
	return &Manual{now: start}
}

// Now implements Clock.
func (m *Manual) Now() Instant {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// SleepUntil implements Clock.
func (m *Manual) SleepUntil(deadline Instant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sleeps = append(m.sleeps, deadline)
	if deadline.After(m.now) {
		m.now = deadline
	}
	m.now = m.now.Add(m.oversleep)
}

// Advance moves the clock forward by d, as if work took that long.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// SetOversleep makes every later SleepUntil wake d past its deadline.
func (m *Manual) SetOversleep(d time.Duration) {
	m.mu.Lock()
	m.oversleep = d
	m.mu.Unlock()
}

// Sleeps returns every deadline passed to SleepUntil, in order.
func (m *Manual) Sleeps() []Instant {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Instant(nil), m.sleeps...)
}

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
	"sync"

	"github.com/kasmnode/go-knode"
)

// SlotState is the observable state of a Slot.
type SlotState int

const (
	// SlotEmpty means no unconsumed frame is waiting.
	SlotEmpty SlotState = iota
	// SlotReady means a frame is waiting for the egress worker.
	SlotReady
	// SlotClosed means the node is shutting down; Take returns false.
	SlotClosed
)

func (s SlotState) String() string {
	switch s {
	case SlotEmpty:
		return "empty"
	case SlotReady:
		return "ready"
	case SlotClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SlotStats are the counters a Slot keeps under its own lock.
type SlotStats struct {
	Published  uint64 // frames written by the ingress worker
	Overwrites uint64 // publishes that replaced an unconsumed frame
	Taken      uint64 // frames consumed by the egress worker
}

// Slot is the single-frame mailbox between the ingress worker and one egress
// worker. Every field is guarded by mu. The critical sections are a frame copy,
// a CRC fold and a state update; nothing blocks or does I/O while mu is held.
type Slot struct {
	mu    sync.Locker
	cond  *sync.Cond
	buf   knode.Frame
	stats SlotStats
	state SlotState
}

// NewSlot builds a slot around mu, which may be a priority inheritance lock.
func NewSlot(mu sync.Locker) *Slot {
	s := &Slot{mu: mu}
	s.cond = sync.NewCond(mu)
	return s
}

// Publish copies the command values of src into the slot, appends a fresh CRC
// computed with crc, marks the slot ready and wakes the egress worker.
// overwrote reports that the previous frame was never taken. ok is false once
// the slot is closed, in which case nothing is written.
func (s *Slot) Publish(src *knode.Frame, crc knode.CRCParams) (overwrote, ok bool) {
	s.mu.Lock()
	if s.state == SlotClosed {
		s.mu.Unlock()
		return false, false
	}
	overwrote = s.state == SlotReady
	s.buf.CopyFields(src)
	crc.Append(&s.buf)
	s.state = SlotReady
	s.stats.Published++
	if overwrote {
		s.stats.Overwrites++
	}
	s.cond.Signal()
	s.mu.Unlock()
	return overwrote, true
}

// Take blocks until a frame is ready, copies it into dst and clears the ready
// flag. It returns false without touching dst once the slot is closed.
// Spurious wakeups re-check the predicate and wait again.
func (s *Slot) Take(dst *knode.Frame) bool {
	s.mu.Lock()
	for s.state == SlotEmpty {
		s.cond.Wait()
	}
	if s.state == SlotClosed {
		s.mu.Unlock()
		return false
	}
	*dst = s.buf
	s.state = SlotEmpty
	s.stats.Taken++
	s.mu.Unlock()
	return true
}

// Close marks the slot closed and wakes every waiter. A frame that was ready
// but not taken is abandoned. Close is idempotent.
func (s *Slot) Close() {
	s.mu.Lock()
	s.state = SlotClosed
	s.cond.Broadcast()
	s.mu.Unlock()
}

// State returns the current slot state.
func (s *Slot) State() SlotState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a copy of the slot counters.
func (s *Slot) Stats() SlotStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

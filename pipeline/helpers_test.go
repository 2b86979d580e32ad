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
	"testing"

	"github.com/kasmnode/go-knode"
)

// eventLog collects reported events for assertions.
type eventLog struct {
	events []knode.Event
	mu     sync.Mutex
}

func (l *eventLog) Report(ev knode.Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) count(kind knode.EventKind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (l *eventLog) last(kind knode.EventKind) (knode.Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.events) - 1; i >= 0; i-- {
		if l.events[i].Kind == kind {
			return l.events[i], true
		}
	}
	return knode.Event{}, false
}

// queueReceiver serves datagrams from a slice, then ErrNoData.
type queueReceiver struct {
	datagrams [][]byte
}

func (q *queueReceiver) Receive(buf []byte) (int, error) {
	if len(q.datagrams) == 0 {
		return 0, ErrNoData
	}
	d := q.datagrams[0]
	q.datagrams = q.datagrams[1:]
	return copy(buf, d), nil
}

func payloadOf(t *testing.T, f *knode.Frame) []byte {
	t.Helper()
	var p [knode.PayloadSize]byte
	f.MarshalPayload(&p)
	return p[:]
}

func newTestSlots(t *testing.T, n int) []*Slot {
	t.Helper()
	slots := make([]*Slot, n)
	for i := range slots {
		slots[i] = NewSlot(&sync.Mutex{})
	}
	return slots
}

func rampFrame(base int16) knode.Frame {
	var f knode.Frame
	for i := range knode.FieldCount {
		f[i] = base + int16(i)
	}
	return f
}

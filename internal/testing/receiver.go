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

package testing

import (
	"sync"

	"github.com/kasmnode/go-knode"
	"github.com/kasmnode/go-knode/pipeline"
)

// ScriptedReceiver is a pipeline.Receiver that hands out queued datagrams one
// per Receive call and reports no data once the queue is empty.
type ScriptedReceiver struct {
	queue    []scripted
	received int
	mu       sync.Mutex
}

type scripted struct {
	err  error
	data []byte
	// size overrides len(data) as the reported datagram length.
	size int
}

// NewScriptedReceiver returns an empty receiver.
func NewScriptedReceiver() *ScriptedReceiver {
	return &ScriptedReceiver{}
}

// Push queues a raw datagram.
func (r *ScriptedReceiver) Push(data []byte) {
	r.mu.Lock()
	r.queue = append(r.queue, scripted{data: append([]byte(nil), data...), size: len(data)})
	r.mu.Unlock()
}

// PushFrame queues the command values of f as a network payload.
func (r *ScriptedReceiver) PushFrame(f *knode.Frame) {
	var payload [knode.PayloadSize]byte
	f.MarshalPayload(&payload)
	r.Push(payload[:])
}

// PushOversized queues a datagram whose reported length is size although only
// the first len(buf) bytes fit, as a truncating socket read reports it.
func (r *ScriptedReceiver) PushOversized(size int) {
	r.mu.Lock()
	r.queue = append(r.queue, scripted{data: make([]byte, size), size: size})
	r.mu.Unlock()
}

// PushError queues a receive failure.
func (r *ScriptedReceiver) PushError(err error) {
	r.mu.Lock()
	r.queue = append(r.queue, scripted{err: err})
	r.mu.Unlock()
}

// Receive implements pipeline.Receiver.
func (r *ScriptedReceiver) Receive(buf []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return 0, pipeline.ErrNoData
	}
	next := r.queue[0]
	r.queue = r.queue[1:]
	r.received++
	if next.err != nil {
		return 0, next.err
	}
	copy(buf, next.data)
	return next.size, nil
}

// Pending returns how many scripted entries are left.
func (r *ScriptedReceiver) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

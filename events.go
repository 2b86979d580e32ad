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

package knode

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// EventKind identifies what a worker observed.
type EventKind int

const (
	// EventFrameReceived is a valid datagram fanned out to every slot.
	EventFrameReceived EventKind = iota
	// EventDeadlineMissed is a wakeup that came after its deadline.
	EventDeadlineMissed
	// EventReceiveError is a socket read failure.
	EventReceiveError
	// EventSizeMismatch is a datagram that was not exactly one payload.
	EventSizeMismatch
	// EventTransferFailed is a peripheral transfer error.
	EventTransferFailed
	// EventCRCFailure is a slot frame that failed verification before transfer.
	EventCRCFailure
	// EventSlotOverwrite is a publish that replaced a frame nobody consumed.
	EventSlotOverwrite
	// EventTransferDone is a completed peripheral transfer.
	EventTransferDone
)

func (k EventKind) String() string {
	switch k {
	case EventFrameReceived:
		return "frame_received"
	case EventDeadlineMissed:
		return "deadline_missed"
	case EventReceiveError:
		return "receive_error"
	case EventSizeMismatch:
		return "size_mismatch"
	case EventTransferFailed:
		return "transfer_failed"
	case EventCRCFailure:
		return "crc_failure"
	case EventSlotOverwrite:
		return "slot_overwrite"
	case EventTransferDone:
		return "transfer_done"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Level is the log level the event is emitted at.
func (k EventKind) Level() slog.Level {
	switch k {
	case EventFrameReceived, EventTransferDone:
		return slog.LevelDebug
	case EventSlotOverwrite:
		return slog.LevelInfo
	case EventDeadlineMissed, EventReceiveError, EventTransferFailed:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// Event is a value describing one diagnostic occurrence. Workers build events
// on the stack and hand them to a Reporter outside of any slot lock.
//
// At is wall-clock time, stamped with time.Now so events line up with log
// lines and journal rows. Worker scheduling runs on a monotonic clock.Instant
// and never reads At; durations such as Overrun and Latency come from that
// clock.
type Event struct {
	Err     error
	At      time.Time
	Kind    EventKind
	Channel int           // slot index, -1 for the ingress worker
	Size    int           // datagram or transfer size in bytes
	Overrun time.Duration // how late the wakeup was
	Latency time.Duration // transfer duration
	CRC     uint16
}

// Reporter receives worker events. Report is called from real-time threads
// and must not block.
type Reporter interface {
	Report(ev Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ev Event)

// Report implements Reporter.
func (f ReporterFunc) Report(ev Event) { f(ev) }

// Discard drops every event.
var Discard Reporter = ReporterFunc(func(Event) {})

// Dispatcher decouples real-time workers from slow sinks. Report never blocks:
// when the queue is full the event is counted and dropped. A single goroutine
// drains the queue into every sink in order.
type Dispatcher struct {
	queue   chan Event
	quit    chan struct{}
	done    chan struct{}
	sinks   []Reporter
	dropped atomic.Uint64
	sent    atomic.Uint64
	closed  atomic.Bool
	once    sync.Once
}

// DefaultEventQueue is the dispatcher queue depth used when none is configured.
const DefaultEventQueue = 1024

// NewDispatcher starts a dispatcher with the given queue depth.
func NewDispatcher(depth int, sinks ...Reporter) *Dispatcher {
	if depth <= 0 {
		depth = DefaultEventQueue
	}
	d := &Dispatcher{
		queue: make(chan Event, depth),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
		sinks: sinks,
	}
	go d.drain()
	return d
}

// Report implements Reporter.
func (d *Dispatcher) Report(ev Event) {
	if d.closed.Load() {
		d.dropped.Add(1)
		return
	}
	select {
	case d.queue <- ev:
		d.sent.Add(1)
	default:
		d.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded because the queue was full
// or the dispatcher was closed.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Queued returns how many events were accepted.
func (d *Dispatcher) Queued() uint64 {
	return d.sent.Load()
}

func (d *Dispatcher) drain() {
	defer close(d.done)
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.quit:
			// Flush whatever was accepted before Close.
			for {
				select {
				case ev := <-d.queue:
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ev Event) {
	for _, s := range d.sinks {
		s.Report(ev)
	}
}

// Close stops accepting events and waits for the queue to drain or ctx to end.
// The queue channel is never closed so a late Report cannot panic.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.quit)
	})
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event dispatcher drain: %w", ctx.Err())
	}
}

// SlogReporter writes events as structured log records.
type SlogReporter struct {
	Logger *slog.Logger
	// Names maps channel indices to configured names for log output.
	Names []string
}

// NewSlogReporter returns a reporter that logs through logger, or
// slog.Default() when logger is nil.
func NewSlogReporter(logger *slog.Logger, names ...string) *SlogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogReporter{Logger: logger, Names: names}
}

// Report implements Reporter.
func (r *SlogReporter) Report(ev Event) {
	level := ev.Kind.Level()
	ctx := context.Background()
	if !r.Logger.Enabled(ctx, level) {
		return
	}

	attrs := make([]slog.Attr, 0, 6)
	attrs = append(attrs, slog.String("event", ev.Kind.String()))
	if ev.Channel >= 0 {
		attrs = append(attrs, slog.Int("channel", ev.Channel))
		if ev.Channel < len(r.Names) {
			attrs = append(attrs, slog.String("name", r.Names[ev.Channel]))
		}
	}

	switch ev.Kind {
	case EventFrameReceived, EventSizeMismatch:
		attrs = append(attrs, slog.Int("size", ev.Size))
	case EventDeadlineMissed:
		attrs = append(attrs, slog.Duration("overrun", ev.Overrun))
	case EventTransferDone:
		attrs = append(attrs, slog.Int("size", ev.Size), slog.Duration("latency", ev.Latency))
	case EventCRCFailure:
		attrs = append(attrs, slog.String("crc", fmt.Sprintf("0x%04X", ev.CRC)))
	case EventReceiveError, EventTransferFailed, EventSlotOverwrite:
	}
	if ev.Err != nil {
		attrs = append(attrs, slog.Any("error", ev.Err))
	}

	r.Logger.LogAttrs(ctx, level, "knode: "+ev.Kind.String(), attrs...)
}

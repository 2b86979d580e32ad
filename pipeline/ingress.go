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
	"errors"
	"sync/atomic"
	"time"

	"github.com/kasmnode/go-knode"
	"github.com/kasmnode/go-knode/clock"
	"github.com/kasmnode/go-knode/internal/frame"
)

// Outcome is the result of one ingress receive attempt.
type Outcome int

const (
	// OutcomeNoData means nothing was pending this period.
	OutcomeNoData Outcome = iota
	// OutcomeFrame means an exact-size frame was fanned out to every slot.
	OutcomeFrame
	// OutcomeSizeMismatch means a datagram was discarded for its length.
	OutcomeSizeMismatch
	// OutcomeError means the receive attempt failed.
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoData:
		return "no_data"
	case OutcomeFrame:
		return "frame"
	case OutcomeSizeMismatch:
		return "size_mismatch"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// Ingress is the periodic worker that receives command frames and fans them
// out to every slot. It is single-threaded: one goroutine owns all of its
// buffers and the schedule.
type Ingress struct {
	rx        Receiver
	clock     clock.Clock
	reporter  knode.Reporter
	slots     []*Slot
	overwrote []bool
	stats     ingressCounters
	crc       knode.CRCParams
	period    time.Duration
	frame     knode.Frame
	buf       [frame.MaxDatagram]byte
}

func newIngress(rx Receiver, slots []*Slot, o *options) *Ingress {
	return &Ingress{
		rx:        rx,
		slots:     slots,
		overwrote: make([]bool, len(slots)),
		crc:       o.crc,
		clock:     o.clock,
		reporter:  o.reporter,
		period:    o.period,
	}
}

// Poll performs one non-blocking receive and, on an exact-size datagram,
// publishes it into every slot in channel order. Events are reported after all
// slot locks have been released.
func (in *Ingress) Poll() Outcome {
	n, err := in.rx.Receive(in.buf[:])
	switch {
	case errors.Is(err, ErrNoData):
		in.stats.noData.Add(1)
		return OutcomeNoData
	case err != nil:
		in.stats.receiveErrors.Add(1)
		in.reporter.Report(knode.Event{
			Kind:    knode.EventReceiveError,
			At:      time.Now(),
			Channel: -1,
			Err:     errors.Join(knode.ErrReceiveFailed, err),
		})
		return OutcomeError
	case !frame.ValidPayloadLength(n):
		return in.sizeMismatch(n, &knode.SizeError{Got: n, Want: knode.PayloadSize})
	}

	if err := in.frame.UnmarshalPayload(in.buf[:n]); err != nil {
		return in.sizeMismatch(n, err)
	}

	for k, s := range in.slots {
		overwrote, ok := s.Publish(&in.frame, in.crc)
		in.overwrote[k] = overwrote && ok
	}
	in.stats.frames.Add(1)

	now := time.Now()
	in.reporter.Report(knode.Event{Kind: knode.EventFrameReceived, At: now, Channel: -1, Size: n})
	for k, overwrote := range in.overwrote {
		if overwrote {
			in.reporter.Report(knode.Event{Kind: knode.EventSlotOverwrite, At: now, Channel: k})
		}
	}
	return OutcomeFrame
}

func (in *Ingress) sizeMismatch(n int, err error) Outcome {
	in.stats.sizeMismatches.Add(1)
	in.reporter.Report(knode.Event{
		Kind:    knode.EventSizeMismatch,
		At:      time.Now(),
		Channel: -1,
		Size:    n,
		Err:     err,
	})
	return OutcomeSizeMismatch
}

// run executes Poll once per period until stop is set. Deadlines come from the
// previous deadline, not from the time Poll finished; a missed deadline is
// reported and the schedule resynchronized.
func (in *Ingress) run(stop *atomic.Bool) {
	sched := clock.NewSchedule(in.clock.Now(), in.period)
	for !stop.Load() {
		in.Poll()
		in.stats.iterations.Add(1)

		deadline, miss, missed := sched.Advance(in.clock.Now())
		if missed {
			in.stats.recordMiss(miss.Overrun)
			in.reporter.Report(knode.Event{
				Kind:    knode.EventDeadlineMissed,
				At:      time.Now(),
				Channel: -1,
				Overrun: miss.Overrun,
				Err:     knode.ErrDeadlineMissed,
			})
		}
		in.clock.SleepUntil(deadline)
	}
}

// Stats returns the ingress counters.
func (in *Ingress) Stats() IngressStats {
	return in.stats.snapshot()
}

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
	"testing"
	"time"

	"github.com/kasmnode/go-knode"
	"github.com/kasmnode/go-knode/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIngress(rx Receiver, slots []*Slot, log knode.Reporter, c clock.Clock) *Ingress {
	o := defaultOptions()
	o.reporter = log
	if c != nil {
		o.clock = c
	}
	return newIngress(rx, slots, &o)
}

func TestIngress_FanOutReachesEverySlot(t *testing.T) {
	t.Parallel()

	const channels = 4
	src := rampFrame(-13)
	rx := &queueReceiver{datagrams: [][]byte{payloadOf(t, &src)}}
	slots := newTestSlots(t, channels)
	log := &eventLog{}
	in := newTestIngress(rx, slots, log, nil)

	require.Equal(t, OutcomeFrame, in.Poll())

	for k, s := range slots {
		require.Equal(t, SlotReady, s.State(), "slot %d", k)
		var got knode.Frame
		require.True(t, s.Take(&got))
		assert.True(t, got.SameFields(&src), "slot %d", k)
		assert.Zero(t, knode.CRC16DNP.Verify(&got), "slot %d", k)
	}
	assert.Equal(t, 1, log.count(knode.EventFrameReceived))
	assert.Zero(t, log.count(knode.EventSlotOverwrite))
	assert.Equal(t, uint64(1), in.Stats().Frames)
}

func TestIngress_RejectsMalformedLengths(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		size int
	}{
		{name: "empty", size: 0},
		{name: "one short", size: knode.PayloadSize - 1},
		{name: "one long", size: knode.PayloadSize + 1},
		{name: "native frame with crc", size: knode.FrameSize},
		{name: "oversized", size: 4096},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			size := tt.size
			rx := ReceiverFunc(func(buf []byte) (int, error) {
				for i := range min(size, len(buf)) {
					buf[i] = 0xA5
				}
				return size, nil
			})
			slots := newTestSlots(t, 2)
			log := &eventLog{}
			in := newTestIngress(rx, slots, log, nil)

			assert.Equal(t, OutcomeSizeMismatch, in.Poll())
			for _, s := range slots {
				assert.Equal(t, SlotEmpty, s.State())
				assert.Zero(t, s.Stats().Published)
			}

			ev, ok := log.last(knode.EventSizeMismatch)
			require.True(t, ok)
			assert.Equal(t, size, ev.Size)
			assert.Equal(t, -1, ev.Channel)
			assert.ErrorIs(t, ev.Err, knode.ErrSizeMismatch)
			assert.Equal(t, uint64(1), in.Stats().SizeMismatches)
		})
	}
}

func TestIngress_ReceiveErrorIsReportedAndSurvived(t *testing.T) {
	t.Parallel()

	src := rampFrame(7)
	calls := 0
	rx := ReceiverFunc(func(buf []byte) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("connection refused")
		}
		var p [knode.PayloadSize]byte
		src.MarshalPayload(&p)
		return copy(buf, p[:]), nil
	})
	slots := newTestSlots(t, 1)
	log := &eventLog{}
	in := newTestIngress(rx, slots, log, nil)

	assert.Equal(t, OutcomeError, in.Poll())
	ev, ok := log.last(knode.EventReceiveError)
	require.True(t, ok)
	assert.ErrorIs(t, ev.Err, knode.ErrReceiveFailed)
	assert.Contains(t, ev.Err.Error(), "connection refused")

	assert.Equal(t, OutcomeFrame, in.Poll())
	assert.Equal(t, SlotReady, slots[0].State())

	st := in.Stats()
	assert.Equal(t, uint64(1), st.ReceiveErrors)
	assert.Equal(t, uint64(1), st.Frames)
}

func TestIngress_NoDataLeavesSlotsAlone(t *testing.T) {
	t.Parallel()

	slots := newTestSlots(t, 3)
	log := &eventLog{}
	in := newTestIngress(&queueReceiver{}, slots, log, nil)

	for range 5 {
		assert.Equal(t, OutcomeNoData, in.Poll())
	}
	for _, s := range slots {
		assert.Equal(t, SlotEmpty, s.State())
	}
	assert.Empty(t, log.events)
	assert.Equal(t, uint64(5), in.Stats().NoData)
}

func TestIngress_ReportsOverwritePerChannel(t *testing.T) {
	t.Parallel()

	a, b := rampFrame(1), rampFrame(2)
	rx := &queueReceiver{datagrams: [][]byte{payloadOf(t, &a), payloadOf(t, &b)}}
	slots := newTestSlots(t, 3)
	log := &eventLog{}
	in := newTestIngress(rx, slots, log, nil)

	require.Equal(t, OutcomeFrame, in.Poll())
	var drained knode.Frame
	require.True(t, slots[1].Take(&drained))

	require.Equal(t, OutcomeFrame, in.Poll())
	assert.Equal(t, 2, log.count(knode.EventSlotOverwrite))

	var channels []int
	for _, ev := range log.events {
		if ev.Kind == knode.EventSlotOverwrite {
			channels = append(channels, ev.Channel)
		}
	}
	assert.Equal(t, []int{0, 2}, channels)

	var got knode.Frame
	require.True(t, slots[0].Take(&got))
	assert.True(t, got.SameFields(&b), "latest frame wins")
}

func TestIngress_DecodesBigEndianPayload(t *testing.T) {
	t.Parallel()

	payload := make([]byte, knode.PayloadSize)
	payload[0], payload[1] = 0xFF, 0x38 // -200
	payload[2], payload[3] = 0x01, 0x2C // 300
	rx := &queueReceiver{datagrams: [][]byte{payload}}
	slots := newTestSlots(t, 1)
	in := newTestIngress(rx, slots, knode.Discard, nil)

	require.Equal(t, OutcomeFrame, in.Poll())
	var got knode.Frame
	require.True(t, slots[0].Take(&got))
	assert.Equal(t, int16(-200), got[0])
	assert.Equal(t, int16(300), got[1])
}

func TestIngress_RunKeepsAbsoluteScheduleAndResyncsOnMiss(t *testing.T) {
	t.Parallel()

	const period = 400 * time.Microsecond
	mc := clock.NewManual(0)
	var stop atomic.Bool
	calls := 0
	rx := ReceiverFunc(func([]byte) (int, error) {
		calls++
		switch calls {
		case 3:
			mc.Advance(time.Millisecond)
		case 5:
			stop.Store(true)
		}
		return 0, ErrNoData
	})

	o := defaultOptions()
	log := &eventLog{}
	o.reporter = log
	o.clock = mc
	o.period = period
	in := newIngress(rx, nil, &o)
	in.run(&stop)

	us := func(n int64) clock.Instant { return clock.Instant(n * int64(time.Microsecond)) }
	// 400 and 800 follow the previous deadline. The third poll ends at 1800,
	// past the 1200 deadline, so the schedule restarts at 1800+400.
	assert.Equal(t, []clock.Instant{us(400), us(800), us(2200), us(2600), us(3000)}, mc.Sleeps())

	st := in.Stats()
	assert.Equal(t, uint64(5), st.Iterations)
	assert.Equal(t, uint64(1), st.MissedDeadlines)
	assert.Equal(t, 600*time.Microsecond, st.LastOverrun)
	assert.Equal(t, 600*time.Microsecond, st.MaxOverrun)

	ev, ok := log.last(knode.EventDeadlineMissed)
	require.True(t, ok)
	assert.Equal(t, 600*time.Microsecond, ev.Overrun)
	assert.ErrorIs(t, ev.Err, knode.ErrDeadlineMissed)
}

// Events carry wall-clock time even when the schedule runs on a manual clock
// sitting at instant zero.
func TestIngress_EventTimeIsWallClock(t *testing.T) {
	t.Parallel()

	mc := clock.NewManual(0)
	log := &eventLog{}
	slots := newTestSlots(t, 1)
	f := rampFrame(10)
	rx := &queueReceiver{datagrams: [][]byte{payloadOf(t, &f)}}
	in := newTestIngress(rx, slots, log, mc)

	before := time.Now()
	require.Equal(t, OutcomeFrame, in.Poll())
	after := time.Now()

	ev, ok := log.last(knode.EventFrameReceived)
	require.True(t, ok)
	assert.False(t, ev.At.Before(before), "At %v before %v", ev.At, before)
	assert.False(t, ev.At.After(after), "At %v after %v", ev.At, after)
	assert.Equal(t, clock.Instant(0), mc.Now(), "polling must not move the schedule clock")
}

func TestIngress_OversleepDoesNotAccumulate(t *testing.T) {
	t.Parallel()

	const period = 400 * time.Microsecond
	mc := clock.NewManual(0)
	mc.SetOversleep(50 * time.Microsecond)
	var stop atomic.Bool
	calls := 0
	rx := ReceiverFunc(func([]byte) (int, error) {
		calls++
		if calls == 10 {
			stop.Store(true)
		}
		return 0, ErrNoData
	})

	o := defaultOptions()
	o.clock = mc
	o.period = period
	in := newIngress(rx, nil, &o)
	in.run(&stop)

	sleeps := mc.Sleeps()
	require.Len(t, sleeps, 10)
	for i, d := range sleeps {
		assert.Equal(t, clock.Instant(int64(i+1)*int64(period)), d, "deadline %d", i)
	}
	assert.Zero(t, in.Stats().MissedDeadlines)
}

func TestOutcome_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "no_data", OutcomeNoData.String())
	assert.Equal(t, "frame", OutcomeFrame.String())
	assert.Equal(t, "size_mismatch", OutcomeSizeMismatch.String())
	assert.Equal(t, "error", OutcomeError.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}

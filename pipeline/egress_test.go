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
	"sync"
	"testing"
	"time"

	"github.com/kasmnode/go-knode"
	"github.com/kasmnode/go-knode/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEgress(t *testing.T, tr knode.Transport, log knode.Reporter, c clock.Clock) (*Egress, *Slot) {
	t.Helper()
	o := defaultOptions()
	o.reporter = log
	if c != nil {
		o.clock = c
	}
	slot := NewSlot(&sync.Mutex{})
	return newEgress(2, Channel{Transport: tr, Name: "joint"}, slot, &o), slot
}

func TestEgress_TransfersNativeFrameWithCRC(t *testing.T) {
	t.Parallel()

	mock := knode.NewMockTransport()
	log := &eventLog{}
	e, slot := newTestEgress(t, mock, log, nil)

	src := rampFrame(-5)
	_, _ = slot.Publish(&src, knode.CRC16DNP)
	require.True(t, e.Next())

	require.Equal(t, 1, mock.TransferCount())
	assert.Len(t, mock.Transfers()[0], knode.FrameSize)
	got, ok := mock.LastFrame()
	require.True(t, ok)
	assert.True(t, got.SameFields(&src))
	assert.Zero(t, knode.CRC16DNP.Verify(&got))

	ev, ok := log.last(knode.EventTransferDone)
	require.True(t, ok)
	assert.Equal(t, 2, ev.Channel)
	assert.Equal(t, knode.FrameSize, ev.Size)
	assert.Equal(t, got.CRC(), ev.CRC)

	st := e.Stats()
	assert.Equal(t, "joint", st.Name)
	assert.Equal(t, uint64(1), st.Transfers)
	assert.Equal(t, uint64(1), st.Published)
}

func TestEgress_CorruptFrameIsDiscarded(t *testing.T) {
	t.Parallel()

	mock := knode.NewMockTransport()
	log := &eventLog{}
	e, slot := newTestEgress(t, mock, log, nil)

	src := rampFrame(3)
	_, _ = slot.Publish(&src, knode.CRC16DNP)
	slot.mu.Lock()
	slot.buf[4] ^= 0x0100
	slot.mu.Unlock()

	require.True(t, e.Next(), "a bad frame does not stop the worker")
	assert.Zero(t, mock.TransferCount())

	ev, ok := log.last(knode.EventCRCFailure)
	require.True(t, ok)
	assert.ErrorIs(t, ev.Err, knode.ErrCRCMismatch)
	assert.Equal(t, uint64(1), e.Stats().CRCFailures)

	_, _ = slot.Publish(&src, knode.CRC16DNP)
	require.True(t, e.Next())
	assert.Equal(t, 1, mock.TransferCount())
}

func TestEgress_VerifyDisabledSendsAsIs(t *testing.T) {
	t.Parallel()

	mock := knode.NewMockTransport()
	o := defaultOptions()
	o.verify = false
	slot := NewSlot(&sync.Mutex{})
	e := newEgress(0, Channel{Transport: mock}, slot, &o)

	src := rampFrame(3)
	_, _ = slot.Publish(&src, knode.CRC16DNP)
	slot.mu.Lock()
	slot.buf[0] ^= 1
	slot.mu.Unlock()

	require.True(t, e.Next())
	assert.Equal(t, 1, mock.TransferCount())
	assert.Zero(t, e.Stats().CRCFailures)
}

func TestEgress_TransferFailureIsReportedAndSurvived(t *testing.T) {
	t.Parallel()

	mock := knode.NewMockTransport()
	mock.SetError(knode.NewTransferError("Tx", "mock", errors.New("bus fault")))
	log := &eventLog{}
	e, slot := newTestEgress(t, mock, log, nil)

	src := rampFrame(0)
	_, _ = slot.Publish(&src, knode.CRC16DNP)
	require.True(t, e.Next())

	ev, ok := log.last(knode.EventTransferFailed)
	require.True(t, ok)
	assert.ErrorIs(t, ev.Err, knode.ErrTransferFailed)
	assert.Equal(t, 2, ev.Channel)

	mock.SetError(nil)
	_, _ = slot.Publish(&src, knode.CRC16DNP)
	require.True(t, e.Next())

	st := e.Stats()
	assert.Equal(t, uint64(1), st.Failures)
	assert.Equal(t, uint64(1), st.Transfers)
}

func TestEgress_MeasuresLatencyOnWorkerClock(t *testing.T) {
	t.Parallel()

	mc := clock.NewManual(0)
	mock := knode.NewMockTransport()
	busTimes := []time.Duration{30 * time.Microsecond, 90 * time.Microsecond, 10 * time.Microsecond}
	calls := 0
	mock.SetReply(func(tx []byte) ([]byte, error) {
		mc.Advance(busTimes[calls])
		calls++
		return tx, nil
	})
	e, slot := newTestEgress(t, mock, knode.Discard, mc)

	src := rampFrame(1)
	for range busTimes {
		_, _ = slot.Publish(&src, knode.CRC16DNP)
		require.True(t, e.Next())
	}

	st := e.Stats()
	assert.Equal(t, 10*time.Microsecond, st.LastLatency)
	assert.Equal(t, 90*time.Microsecond, st.MaxLatency)
}

func TestEgress_NextReturnsFalseAfterClose(t *testing.T) {
	t.Parallel()

	e, slot := newTestEgress(t, knode.NewMockTransport(), knode.Discard, nil)
	done := make(chan struct{})
	go func() {
		e.run()
		close(done)
	}()

	slot.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("egress worker did not exit after close")
	}
	assert.False(t, e.Next())
}

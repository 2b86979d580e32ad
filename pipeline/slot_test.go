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
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/kasmnode/go-knode"
	"github.com/kasmnode/go-knode/internal/syncutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlot_PublishTake(t *testing.T) {
	t.Parallel()

	s := NewSlot(&sync.Mutex{})
	assert.Equal(t, SlotEmpty, s.State())

	src := rampFrame(10)
	overwrote, ok := s.Publish(&src, knode.CRC16DNP)
	require.True(t, ok)
	assert.False(t, overwrote)
	assert.Equal(t, SlotReady, s.State())

	var got knode.Frame
	require.True(t, s.Take(&got))
	assert.Equal(t, SlotEmpty, s.State())
	assert.True(t, got.SameFields(&src))
	assert.Zero(t, knode.CRC16DNP.Verify(&got))
	assert.Equal(t, SlotStats{Published: 1, Taken: 1}, s.Stats())
}

func TestSlot_OverwriteKeepsNewest(t *testing.T) {
	t.Parallel()

	s := NewSlot(&sync.Mutex{})
	first, second := rampFrame(1), rampFrame(100)

	_, _ = s.Publish(&first, knode.CRC16DNP)
	overwrote, ok := s.Publish(&second, knode.CRC16DNP)
	require.True(t, ok)
	assert.True(t, overwrote)

	var got knode.Frame
	require.True(t, s.Take(&got))
	assert.True(t, got.SameFields(&second))
	assert.Equal(t, uint64(1), s.Stats().Overwrites)
}

func TestSlot_TakeBlocksUntilPublish(t *testing.T) {
	t.Parallel()

	s := NewSlot(&sync.Mutex{})
	got := make(chan knode.Frame, 1)
	go func() {
		var f knode.Frame
		if s.Take(&f) {
			got <- f
		}
	}()

	select {
	case <-got:
		t.Fatal("Take returned before any publish")
	case <-time.After(20 * time.Millisecond):
	}

	src := rampFrame(5)
	_, _ = s.Publish(&src, knode.CRC16DNP)
	select {
	case f := <-got:
		assert.True(t, f.SameFields(&src))
	case <-time.After(2 * time.Second):
		t.Fatal("Take never woke")
	}
}

func TestSlot_SpuriousWakeupReblocks(t *testing.T) {
	t.Parallel()

	s := NewSlot(&sync.Mutex{})
	returned := make(chan bool, 1)
	go func() {
		var f knode.Frame
		returned <- s.Take(&f)
	}()

	time.Sleep(10 * time.Millisecond)
	for range 5 {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	}

	select {
	case <-returned:
		t.Fatal("Take returned on a wakeup without data")
	case <-time.After(20 * time.Millisecond):
	}
	assert.Equal(t, SlotEmpty, s.State())

	s.Close()
	assert.False(t, <-returned)
}

func TestSlot_CloseWakesWaiterAndRejectsPublish(t *testing.T) {
	t.Parallel()

	s := NewSlot(&sync.Mutex{})
	returned := make(chan bool, 1)
	go func() {
		var f knode.Frame
		returned <- s.Take(&f)
	}()
	time.Sleep(5 * time.Millisecond)

	s.Close()
	s.Close()
	select {
	case ok := <-returned:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not wake the waiter")
	}

	src := rampFrame(1)
	overwrote, ok := s.Publish(&src, knode.CRC16DNP)
	assert.False(t, ok)
	assert.False(t, overwrote)
	assert.Equal(t, SlotClosed, s.State())
	assert.Zero(t, s.Stats().Published)
}

func TestSlot_CloseAbandonsReadyFrame(t *testing.T) {
	t.Parallel()

	s := NewSlot(&sync.Mutex{})
	src := rampFrame(1)
	_, _ = s.Publish(&src, knode.CRC16DNP)
	s.Close()

	var f knode.Frame
	assert.False(t, s.Take(&f))
	assert.Equal(t, knode.Frame{}, f, "dst untouched after close")
}

// Every published frame has all fields equal to one value. A consumer that ever
// sees mixed fields or a bad CRC has read a half-written buffer.
func TestSlot_NoTornReadsUnderContention(t *testing.T) {
	t.Parallel()
	stressSlot(t, NewSlot(&sync.Mutex{}), 20000)
}

func TestSlot_NoTornReadsWithPriorityInheritance(t *testing.T) {
	t.Parallel()
	if runtime.GOOS != "linux" {
		t.Skip("PI futexes are linux only")
	}

	mu, err := syncutil.NewLocker(true)
	require.NoError(t, err)
	stressSlot(t, NewSlot(mu), 20000)
}

// stressSlot publishes frames whose fields all carry the publish index while
// the test goroutine takes them, then checks every taken frame is whole,
// verified and in order.
func stressSlot(t *testing.T, s *Slot, publishes int) {
	t.Helper()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		var f knode.Frame
		for v := range publishes {
			for i := range knode.FieldCount {
				f[i] = int16(v) //nolint:gosec // publishes fits int16
			}
			_, _ = s.Publish(&f, knode.CRC16DNP)
		}
		s.Close()
	}()

	taken := 0
	var last int16 = -1
	var f knode.Frame
	for s.Take(&f) {
		taken++
		for i := 1; i < knode.FieldCount; i++ {
			require.Equal(t, f[0], f[i], "torn frame: %v", f)
		}
		require.Zero(t, knode.CRC16DNP.Verify(&f))
		require.Greater(t, f[0], last, "frames must arrive in publish order")
		last = f[0]
	}
	wg.Wait()

	st := s.Stats()
	assert.Equal(t, uint64(publishes), st.Published)
	assert.Equal(t, uint64(taken), st.Taken)
	// Each publish was taken, overwritten, or still pending when the slot closed.
	pending := st.Published - st.Taken - st.Overwrites
	assert.LessOrEqual(t, pending, uint64(1))
}

func TestSlotState_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "empty", SlotEmpty.String())
	assert.Equal(t, "ready", SlotReady.String())
	assert.Equal(t, "closed", SlotClosed.String())
	assert.Equal(t, "unknown", SlotState(9).String())
}

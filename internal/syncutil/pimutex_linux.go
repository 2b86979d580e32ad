//go:build linux

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

package syncutil

import (
	"errors"
	"runtime"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	futexLockPI   = 6
	futexUnlockPI = 7
	futexPrivate  = 128
)

// PIMutex is a priority-inheritance mutex on a Linux PI futex. The futex word
// holds the owner's thread id, so the holding goroutine is pinned to its OS
// thread from Lock to Unlock. Pinning nests with runtime.LockOSThread, so a
// worker that already owns its thread keeps it after Unlock.
//
// PIMutex satisfies sync.Locker and may back a sync.Cond.
type PIMutex struct {
	state uint32
	// handoff is bumped by every Unlock and read after every acquire. A
	// kernel-side handoff never touches state from Go, so this pair is what
	// orders one holder's writes before the next holder's reads for the race
	// detector.
	handoff atomic.Uint32
}

// NewPIMutex returns an unlocked PIMutex.
func NewPIMutex() (*PIMutex, error) {
	return &PIMutex{}, nil
}

// Lock acquires the mutex.
func (m *PIMutex) Lock() {
	runtime.LockOSThread()
	tid := uint32(unix.Gettid()) //nolint:gosec // thread ids fit the futex word
	if atomic.CompareAndSwapUint32(&m.state, 0, tid) {
		m.handoff.Load()
		return
	}
	for {
		_, _, errno := unix.Syscall6(unix.SYS_FUTEX, uintptr(unsafe.Pointer(&m.state)),
			futexLockPI|futexPrivate, 0, 0, 0, 0)
		switch {
		case errno == 0:
			m.handoff.Load()
			return
		case errors.Is(errno, unix.EINTR), errors.Is(errno, unix.EAGAIN):
			continue
		default:
			runtime.UnlockOSThread()
			panic("syncutil: FUTEX_LOCK_PI: " + errno.Error())
		}
	}
}

// Unlock releases the mutex. It must be called by the goroutine that locked it.
func (m *PIMutex) Unlock() {
	tid := uint32(unix.Gettid()) //nolint:gosec // thread ids fit the futex word
	m.handoff.Add(1)
	if !atomic.CompareAndSwapUint32(&m.state, tid, 0) {
		// Waiters bit set: the kernel hands the lock to the top waiter.
		_, _, errno := unix.Syscall6(unix.SYS_FUTEX, uintptr(unsafe.Pointer(&m.state)),
			futexUnlockPI|futexPrivate, 0, 0, 0, 0)
		if errno != 0 {
			panic("syncutil: FUTEX_UNLOCK_PI: " + errno.Error())
		}
	}
	runtime.UnlockOSThread()
}

// TryLock acquires the mutex if it is free.
func (m *PIMutex) TryLock() bool {
	runtime.LockOSThread()
	tid := uint32(unix.Gettid()) //nolint:gosec // thread ids fit the futex word
	if atomic.CompareAndSwapUint32(&m.state, 0, tid) {
		m.handoff.Load()
		return true
	}
	runtime.UnlockOSThread()
	return false
}

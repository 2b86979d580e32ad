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

package rt

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// LockMemory locks current and future pages of the process into RAM so a page
// fault cannot stall a deadline-bound section.
func LockMemory() error {
	if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
		return fmt.Errorf("rt: mlockall: %w", err)
	}
	return nil
}

// UnlockMemory undoes LockMemory.
func UnlockMemory() error {
	if err := unix.Munlockall(); err != nil {
		return fmt.Errorf("rt: munlockall: %w", err)
	}
	return nil
}

// EnterRealtime pins the calling goroutine to its OS thread and moves that
// thread to SCHED_FIFO at priority. The thread is never released: when the
// goroutine returns, the runtime discards the thread instead of reusing it at
// real-time priority for unrelated work.
func EnterRealtime(priority int) error {
	if err := ValidatePriority(priority); err != nil {
		return err
	}
	runtime.LockOSThread()
	attr := unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: uint32(priority), //nolint:gosec // validated above
	}
	if err := unix.SchedSetAttr(0, &attr, 0); err != nil {
		return fmt.Errorf("rt: sched_setattr SCHED_FIFO %d: %w", priority, err)
	}
	return nil
}

// Current reports the calling thread's scheduling policy and priority.
func Current() (ThreadInfo, error) {
	attr, err := unix.SchedGetAttr(0, 0)
	if err != nil {
		return ThreadInfo{}, fmt.Errorf("rt: sched_getattr: %w", err)
	}
	return ThreadInfo{
		TID:      unix.Gettid(),
		Policy:   policyName(attr.Policy),
		Priority: int(attr.Priority),
	}, nil
}

func policyName(p uint32) string {
	switch p {
	case unix.SCHED_NORMAL:
		return "SCHED_OTHER"
	case unix.SCHED_FIFO:
		return "SCHED_FIFO"
	case unix.SCHED_RR:
		return "SCHED_RR"
	case unix.SCHED_BATCH:
		return "SCHED_BATCH"
	case unix.SCHED_IDLE:
		return "SCHED_IDLE"
	case unix.SCHED_DEADLINE:
		return "SCHED_DEADLINE"
	default:
		return fmt.Sprintf("policy(%d)", p)
	}
}

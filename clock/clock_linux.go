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

package clock

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Monotonic is CLOCK_MONOTONIC with TIMER_ABSTIME sleeps, so a late start to
// one sleep never shifts later deadlines.
type Monotonic struct{}

// System returns the platform monotonic clock.
func System() Clock {
	return Monotonic{}
}

// Now implements Clock.
func (Monotonic) Now() Instant {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		panic("clock: CLOCK_MONOTONIC unavailable: " + err.Error())
	}
	return Instant(ts.Nano())
}

// SleepUntil implements Clock.
func (Monotonic) SleepUntil(deadline Instant) {
	ts := unix.NsecToTimespec(int64(deadline))
	for {
		err := unix.ClockNanosleep(unix.CLOCK_MONOTONIC, unix.TIMER_ABSTIME, &ts, nil)
		if !errors.Is(err, unix.EINTR) {
			return
		}
	}
}

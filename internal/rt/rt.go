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

// Package rt configures the process and worker threads for real-time
// operation: locked memory and a fixed-priority scheduling class.
package rt

import (
	"errors"
	"fmt"
)

// ErrNotSupported is returned on platforms without SCHED_FIFO and mlockall.
var ErrNotSupported = errors.New("rt: real-time scheduling not supported on this platform")

// Priority limits for SCHED_FIFO on Linux.
const (
	MinPriority = 1
	MaxPriority = 99
)

// ThreadInfo describes the calling thread's scheduling state.
type ThreadInfo struct {
	Policy   string
	TID      int
	Priority int
}

func (i ThreadInfo) String() string {
	return fmt.Sprintf("tid=%d policy=%s priority=%d", i.TID, i.Policy, i.Priority)
}

// ValidatePriority checks p against the SCHED_FIFO range.
func ValidatePriority(p int) error {
	if p < MinPriority || p > MaxPriority {
		return fmt.Errorf("rt: priority %d outside [%d, %d]", p, MinPriority, MaxPriority)
	}
	return nil
}

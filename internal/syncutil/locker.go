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
	"sync"
)

// ErrPINotSupported is returned where priority inheritance locks are unavailable.
var ErrPINotSupported = errors.New("syncutil: priority inheritance mutex requires linux")

// NewLocker returns the lock guarding one channel slot. With pi set the lock
// propagates the priority of a blocked waiter to the holder, so a low priority
// holder cannot be preempted indefinitely by medium priority work while the
// ingress thread waits. It fails where that is not available.
func NewLocker(pi bool) (sync.Locker, error) {
	if !pi {
		return newPlainLocker(), nil
	}
	m, err := NewPIMutex()
	if err != nil {
		return nil, err
	}
	return m, nil
}

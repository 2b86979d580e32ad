//go:build !linux

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

// LockMemory is unsupported on this platform.
func LockMemory() error { return ErrNotSupported }

// UnlockMemory is unsupported on this platform.
func UnlockMemory() error { return ErrNotSupported }

// EnterRealtime is unsupported on this platform.
func EnterRealtime(priority int) error {
	if err := ValidatePriority(priority); err != nil {
		return err
	}
	return ErrNotSupported
}

// Current is unsupported on this platform.
func Current() (ThreadInfo, error) { return ThreadInfo{}, ErrNotSupported }

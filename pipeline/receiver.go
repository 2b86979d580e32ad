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

import "errors"

// ErrNoData is returned by a Receiver when no datagram is pending.
var ErrNoData = errors.New("no datagram pending")

// Receiver is the ingress side of the network. Receive makes one non-blocking
// attempt to read a single datagram into buf.
//
// It returns ErrNoData when nothing is pending. Otherwise n is the full length
// of the datagram, which may exceed len(buf) when it was truncated; callers
// use n to reject oversized input.
type Receiver interface {
	Receive(buf []byte) (n int, err error)
}

// ReceiverFunc adapts a function to Receiver.
type ReceiverFunc func(buf []byte) (int, error)

// Receive implements Receiver.
func (f ReceiverFunc) Receive(buf []byte) (int, error) { return f(buf) }

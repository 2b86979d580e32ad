//go:build !linux && !darwin && !dragonfly && !freebsd && !netbsd && !openbsd && !solaris

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

package udp

import (
	"errors"
	"net"
	"os"
	"time"

	"github.com/kasmnode/go-knode"
	"github.com/kasmnode/go-knode/pipeline"
)

// pollWindow bounds how long one receive may wait when nothing is queued. A
// deadline at or before now fails the read before the socket is checked, so
// the window must be positive.
const pollWindow = 50 * time.Microsecond

// receiver polls through the net package with a short read deadline. The
// datagram length cannot exceed len(buf) here, so buf must be larger than any
// valid payload.
type receiver struct {
	conn *net.UDPConn
}

func newReceiver(conn *net.UDPConn) (receiver, error) {
	return receiver{conn: conn}, nil
}

func (r receiver) receive(buf []byte, echo bool) (int, error) {
	if err := r.conn.SetReadDeadline(time.Now().Add(pollWindow)); err != nil {
		return 0, err
	}
	n, from, err := r.conn.ReadFromUDP(buf)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return 0, pipeline.ErrNoData
	}
	if err != nil {
		return 0, err
	}
	if echo && n == knode.PayloadSize && from != nil {
		_ = r.conn.SetWriteDeadline(time.Now().Add(time.Millisecond))
		_, _ = r.conn.WriteToUDP(buf[:n], from)
	}
	return n, nil
}

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
	"syscall"

	"github.com/kasmnode/go-knode"
	"github.com/kasmnode/go-knode/pipeline"
	"golang.org/x/sys/unix"
)

// receiver reads straight from the socket descriptor. MSG_TRUNC makes the
// kernel report the real datagram length even when buf is too small, so an
// oversized datagram can never pass as an exact-size one.
type receiver struct {
	raw syscall.RawConn
}

func newReceiver(conn *net.UDPConn) (receiver, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return receiver{}, err
	}
	return receiver{raw: raw}, nil
}

func (r receiver) receive(buf []byte, echo bool) (int, error) {
	var (
		n    int
		from unix.Sockaddr
		rerr error
	)
	err := r.raw.Read(func(fd uintptr) bool {
		n, from, rerr = unix.Recvfrom(int(fd), buf, unix.MSG_DONTWAIT|unix.MSG_TRUNC)
		return true
	})
	if err != nil {
		return 0, err
	}
	switch {
	case errors.Is(rerr, unix.EAGAIN), errors.Is(rerr, unix.EINTR):
		return 0, pipeline.ErrNoData
	case rerr != nil:
		return 0, rerr
	}

	if echo && n == knode.PayloadSize && n <= len(buf) && from != nil {
		r.echo(buf[:n], from)
	}
	return n, nil
}

// echo is best effort: a full socket buffer drops the reply.
func (r receiver) echo(b []byte, to unix.Sockaddr) {
	_ = r.raw.Write(func(fd uintptr) bool {
		_ = unix.Sendto(int(fd), b, unix.MSG_DONTWAIT, to)
		return true
	})
}

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

// Package udp is the network side of the node: a non-blocking datagram
// listener the ingress worker polls once per period, and a sender for
// generating command traffic.
package udp

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/kasmnode/go-knode"
)

// DefaultPort is the UDP port the node listens on.
const DefaultPort = 2345

// Config configures a Listener.
type Config struct {
	// Host is the local address to bind; empty binds every interface.
	Host string
	Port int
	// Echo sends every exact-size datagram back to its sender.
	Echo bool
}

// Listener is a bound UDP socket polled without blocking. It implements
// pipeline.Receiver. Receive is called from a single goroutine.
type Listener struct {
	conn   *net.UDPConn
	recv   receiver
	echoed atomic.Uint64
	echo   bool
	closed atomic.Bool
}

// Listen binds the socket.
func Listen(cfg Config) (*Listener, error) {
	addr := &net.UDPAddr{IP: net.ParseIP(cfg.Host), Port: cfg.Port}
	if cfg.Host != "" && addr.IP == nil {
		return nil, knode.NewInitError("Listen", cfg.Host,
			fmt.Errorf("%w: invalid listen address %q", knode.ErrInvalidConfig, cfg.Host))
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, knode.NewInitError("Listen", addr.String(), err)
	}
	recv, err := newReceiver(conn)
	if err != nil {
		_ = conn.Close()
		return nil, knode.NewInitError("Listen", addr.String(), err)
	}
	knode.Debugf("udp: listening on %s (echo %v)", conn.LocalAddr(), cfg.Echo)
	return &Listener{conn: conn, recv: recv, echo: cfg.Echo}, nil
}

// Receive makes one non-blocking attempt to read a datagram into buf. It
// returns pipeline.ErrNoData when nothing is pending. n is the datagram's
// full length where the platform reports it, which may exceed len(buf).
func (l *Listener) Receive(buf []byte) (int, error) {
	if l.closed.Load() {
		return 0, knode.NewClosedError("Receive", l.conn.LocalAddr().String())
	}
	n, err := l.recv.receive(buf, l.echo)
	if err != nil {
		return 0, err
	}
	if l.echo && n == knode.PayloadSize {
		l.echoed.Add(1)
	}
	return n, nil
}

// Echoed returns how many datagrams were echoed back.
func (l *Listener) Echoed() uint64 {
	return l.echoed.Load()
}

// Addr returns the bound address.
func (l *Listener) Addr() *net.UDPAddr {
	addr, _ := l.conn.LocalAddr().(*net.UDPAddr)
	return addr
}

// Close closes the socket.
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := l.conn.Close(); err != nil {
		return fmt.Errorf("udp close failed: %w", err)
	}
	return nil
}

// Sender transmits command frames to a node.
type Sender struct {
	conn    *net.UDPConn
	payload [knode.PayloadSize]byte
}

// Dial resolves addr ("host:port") and connects a sender to it.
func Dial(addr string) (*Sender, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, knode.NewInitError("Dial", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, knode.NewInitError("Dial", addr, err)
	}
	return &Sender{conn: conn}, nil
}

// Send writes the command values of f as one big-endian datagram.
func (s *Sender) Send(f *knode.Frame) error {
	f.MarshalPayload(&s.payload)
	return s.SendRaw(s.payload[:])
}

// SendRaw writes b as one datagram.
func (s *Sender) SendRaw(b []byte) error {
	if _, err := s.conn.Write(b); err != nil {
		return knode.NewTransportError("Send", s.conn.RemoteAddr().String(), err, knode.ErrorTypeTransient)
	}
	return nil
}

// ReadEcho waits up to timeout for a datagram from the node.
func (s *Sender) ReadEcho(buf []byte, timeout time.Duration) (int, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, fmt.Errorf("set read deadline: %w", err)
	}
	n, err := s.conn.Read(buf)
	if err != nil {
		return n, knode.NewTransportError("ReadEcho", s.conn.RemoteAddr().String(), err, knode.ErrorTypeTransient)
	}
	return n, nil
}

// LocalAddr returns the sender's local address.
func (s *Sender) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Close closes the sender.
func (s *Sender) Close() error {
	return s.conn.Close()
}

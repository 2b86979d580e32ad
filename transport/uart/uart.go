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

// Package uart provides the serial peripheral transport for a channel. The
// board echoes every frame it receives, so a transfer writes the frame and
// reads back the same number of bytes.
package uart

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kasmnode/go-knode"
	"go.bug.st/serial"
)

const (
	// DefaultBaud is the line rate of the motor board UART.
	DefaultBaud = 115200

	// pollInterval is the serial read timeout. Transfer loops over short
	// reads until the reply is complete or the transfer timeout expires.
	pollInterval = time.Millisecond
)

// Config selects and configures one serial device.
type Config struct {
	Port    string
	Baud    int
	Timeout time.Duration // whole-transfer deadline; 0 picks the platform default
}

// Transport is a serial channel with echo reply.
type Transport struct {
	port     serial.Port
	rx       []byte
	portName string
	timeout  time.Duration
	mu       sync.Mutex
	closed   atomic.Bool
}

// isWindows returns true if running on Windows
func isWindows() bool {
	return runtime.GOOS == "windows"
}

// defaultTimeout is a little over one frame time at DefaultBaud on Linux and
// macOS. Windows USB serial drivers deliver replies in larger, later chunks.
func defaultTimeout() time.Duration {
	if isWindows() {
		return 100 * time.Millisecond
	}
	return 20 * time.Millisecond
}

// New opens the serial port at 8N1.
func New(cfg Config) (*Transport, error) {
	baud := cfg.Baud
	if baud == 0 {
		baud = DefaultBaud
	}
	port, err := serial.Open(cfg.Port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, knode.NewInitError("Open", cfg.Port, err)
	}

	t, err := NewFromPort(port, cfg)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	knode.Debugf("uart: opened %s at %d baud, timeout %v", cfg.Port, baud, t.timeout)
	return t, nil
}

// NewFromPort wraps an already opened port. The transport takes ownership of
// port and closes it on Close.
func NewFromPort(port serial.Port, cfg Config) (*Transport, error) {
	if err := port.SetReadTimeout(pollInterval); err != nil {
		return nil, knode.NewInitError("SetReadTimeout", cfg.Port, err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout()
	}
	return &Transport{
		port:     port,
		portName: cfg.Port,
		timeout:  timeout,
		rx:       make([]byte, knode.FrameSize),
	}, nil
}

// Transfer implements knode.Transport. Stale input is discarded first so the
// reply always lines up with tx. The returned slice is reused by the next
// Transfer.
func (t *Transport) Transfer(tx []byte) ([]byte, error) {
	if t.closed.Load() {
		return nil, knode.NewClosedError("Transfer", t.portName)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.port.ResetInputBuffer(); err != nil {
		return nil, t.fail("ResetInputBuffer", err, tx, nil)
	}
	if err := t.writeAll(tx); err != nil {
		return nil, t.fail("Write", err, tx, nil)
	}
	if err := t.drainWithRetry(); err != nil {
		return nil, t.fail("Drain", err, tx, nil)
	}

	if cap(t.rx) < len(tx) {
		t.rx = make([]byte, len(tx))
	}
	rx := t.rx[:len(tx)]
	got, err := t.readFull(rx)
	if err != nil {
		return nil, t.fail("Read", err, tx, rx[:got])
	}
	if got < len(rx) {
		var cause error
		if got == 0 {
			cause = knode.NewTimeoutError("Read", t.portName)
		} else {
			cause = knode.NewTransportError("Read", t.portName,
				fmt.Errorf("%w: %d of %d bytes", knode.ErrShortTransfer, got, len(rx)), knode.ErrorTypeTransient)
		}
		return nil, knode.WithTrace(cause, "UART", t.portName, tx, rx[:got])
	}
	return rx, nil
}

func (t *Transport) fail(op string, err error, tx, rx []byte) error {
	return knode.WithTrace(knode.NewTransferError(op, t.portName, err), "UART", t.portName, tx, rx)
}

func (t *Transport) writeAll(tx []byte) error {
	for off := 0; off < len(tx); {
		n, err := t.port.Write(tx[off:])
		if err != nil {
			return err
		}
		if n == 0 {
			return knode.ErrShortTransfer
		}
		off += n
	}
	return nil
}

// readFull reads until buf is full or the transfer timeout expires and returns
// how many bytes arrived.
func (t *Transport) readFull(buf []byte) (int, error) {
	deadline := time.Now().Add(t.timeout)
	got := 0
	for got < len(buf) {
		n, err := t.port.Read(buf[got:])
		if err != nil {
			return got, err
		}
		got += n
		if n == 0 && !time.Now().Before(deadline) {
			break
		}
	}
	return got, nil
}

// isInterruptedSystemCall checks if an error is caused by an interrupted system call
func isInterruptedSystemCall(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "interrupted system call") ||
		strings.Contains(errStr, "eintr")
}

// drainWithRetry waits for the write to leave the UART, retrying when a
// signal interrupts tcdrain.
func (t *Transport) drainWithRetry() error {
	const maxRetries = 3
	var err error
	for range maxRetries {
		if err = t.port.Drain(); err == nil || !isInterruptedSystemCall(err) {
			return err
		}
	}
	return fmt.Errorf("drain failed after %d retries: %w", maxRetries, err)
}

// Close closes the serial port.
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("UART close failed: %w", err)
	}
	return nil
}

// IsConnected returns true until Close is called.
func (t *Transport) IsConnected() bool {
	return !t.closed.Load()
}

// Type returns the transport type
func (*Transport) Type() knode.TransportType {
	return knode.TransportUART
}

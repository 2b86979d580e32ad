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

// Package spi provides the SPI peripheral transport for a channel.
package spi

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kasmnode/go-knode"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	// DefaultSpeed is the SCLK frequency the motor board is clocked at.
	DefaultSpeed = 5 * physic.MegaHertz
	// DefaultMode is CPOL=0, CPHA=0.
	DefaultMode = spi.Mode0
	// DefaultBits is the word size of one transfer unit.
	DefaultBits = 8
)

// Config selects and configures one SPI device.
type Config struct {
	// Port is a periph registry name such as "/dev/spidev0.0" or "SPI0.0".
	Port  string
	Speed physic.Frequency
	Mode  spi.Mode
	Bits  int
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Speed == 0 {
		out.Speed = DefaultSpeed
	}
	if out.Bits == 0 {
		out.Bits = DefaultBits
	}
	return out
}

// Transport is a full-duplex SPI channel. Every Transfer clocks the frame out
// and captures the bytes the board shifts back in the same exchange.
type Transport struct {
	port     spi.PortCloser
	conn     spi.Conn
	rx       []byte
	portName string
	mu       sync.Mutex
	closed   atomic.Bool
}

// New initializes the periph host drivers and opens the SPI port.
func New(cfg Config) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, knode.NewInitError("host.Init", cfg.Port, err)
	}

	port, err := spireg.Open(cfg.Port)
	if err != nil {
		return nil, knode.NewInitError("Open", cfg.Port, err)
	}

	t, err := NewFromPort(port, cfg)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	knode.Debugf("spi: opened %s at %v mode %d", port, t.conn, cfg.Mode)
	return t, nil
}

// NewFromPort connects an already opened port. The transport takes ownership
// of port and closes it on Close.
func NewFromPort(port spi.PortCloser, cfg Config) (*Transport, error) {
	c := cfg.withDefaults()
	if c.Mode < spi.Mode0 || c.Mode > spi.Mode3 {
		return nil, knode.NewInitError("Connect", c.Port,
			fmt.Errorf("%w: spi mode %d", knode.ErrInvalidConfig, c.Mode))
	}

	conn, err := port.Connect(c.Speed, c.Mode, c.Bits)
	if err != nil {
		return nil, knode.NewInitError("Connect", c.Port, err)
	}

	name := c.Port
	if name == "" {
		name = port.String()
	}
	return &Transport{
		port:     port,
		conn:     conn,
		portName: name,
		rx:       make([]byte, knode.FrameSize),
	}, nil
}

// Transfer implements knode.Transport. The returned slice is reused by the
// next Transfer.
func (t *Transport) Transfer(tx []byte) ([]byte, error) {
	if t.closed.Load() {
		return nil, knode.NewClosedError("Transfer", t.portName)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if cap(t.rx) < len(tx) {
		t.rx = make([]byte, len(tx))
	}
	rx := t.rx[:len(tx)]
	if err := t.conn.Tx(tx, rx); err != nil {
		return nil, knode.WithTrace(knode.NewTransferError("Tx", t.portName, err), "SPI", t.portName, tx, nil)
	}
	return rx, nil
}

// Close releases the SPI port.
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("SPI close failed: %w", err)
	}
	return nil
}

// IsConnected returns true until Close is called.
func (t *Transport) IsConnected() bool {
	return !t.closed.Load()
}

// Type returns the transport type
func (*Transport) Type() knode.TransportType {
	return knode.TransportSPI
}

// String returns the port name.
func (t *Transport) String() string {
	return t.portName
}

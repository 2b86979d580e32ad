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

// Package i2c provides the I2C peripheral transport for a channel.
package i2c

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/kasmnode/go-knode"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const (
	// DefaultAddress is the 7-bit address of the motor board.
	DefaultAddress = 0x24

	// DefaultSpeed is I2C fast mode.
	DefaultSpeed = 400 * physic.KiloHertz
)

// Config selects one device on an I2C bus.
type Config struct {
	// Bus is a periph registry name such as "/dev/i2c-1" or "1". The detection
	// form "/dev/i2c-1:0x24" is accepted and its address used when Address is 0.
	Bus     string
	Address uint16
	Speed   physic.Frequency
}

// Transport is an I2C channel. A transfer writes the frame and reads the
// board's echo back in one combined transaction with a repeated start.
type Transport struct {
	dev     *i2c.Dev
	bus     i2c.BusCloser // held so Close can release the OS file descriptor
	rx      []byte
	busName string
	mu      sync.Mutex
	closed  atomic.Bool
}

// ParsePath splits a detection path into bus name and address. A bare bus
// name yields address 0.
func ParsePath(path string) (bus string, addr uint16, err error) {
	bus, suffix, found := strings.Cut(path, ":")
	if !found {
		return bus, 0, nil
	}
	v, err := strconv.ParseUint(suffix, 0, 7)
	if err != nil {
		return "", 0, fmt.Errorf("%w: i2c address %q: %w", knode.ErrInvalidConfig, suffix, err)
	}
	return bus, uint16(v), nil
}

// New initializes the periph host drivers and opens the bus.
func New(cfg Config) (*Transport, error) {
	busName, addr, err := ParsePath(cfg.Bus)
	if err != nil {
		return nil, knode.NewInitError("Open", cfg.Bus, err)
	}
	if cfg.Address != 0 {
		addr = cfg.Address
	}

	if _, err := host.Init(); err != nil {
		return nil, knode.NewInitError("host.Init", cfg.Bus, err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, knode.NewInitError("Open", cfg.Bus, err)
	}

	t, err := NewFromBus(bus, Config{Bus: busName, Address: addr, Speed: cfg.Speed})
	if err != nil {
		_ = bus.Close()
		return nil, err
	}
	knode.Debugf("i2c: opened %s address 0x%02X", busName, t.dev.Addr)
	return t, nil
}

// NewFromBus binds an already opened bus. The transport takes ownership of
// bus and closes it on Close.
func NewFromBus(bus i2c.BusCloser, cfg Config) (*Transport, error) {
	addr := cfg.Address
	if addr == 0 {
		addr = DefaultAddress
	}
	if addr > 0x7F {
		return nil, knode.NewInitError("Open", cfg.Bus,
			fmt.Errorf("%w: i2c address 0x%X is not 7-bit", knode.ErrInvalidConfig, addr))
	}
	speed := cfg.Speed
	if speed == 0 {
		speed = DefaultSpeed
	}
	// Not every adapter lets userspace set the clock; keep its default.
	if err := bus.SetSpeed(speed); err != nil {
		knode.Debugf("i2c: %s keeps default speed: %v", cfg.Bus, err)
	}

	name := cfg.Bus
	if name == "" {
		name = bus.String()
	}
	return &Transport{
		dev:     &i2c.Dev{Addr: addr, Bus: bus},
		bus:     bus,
		busName: name,
		rx:      make([]byte, knode.FrameSize),
	}, nil
}

// Transfer implements knode.Transport. The returned slice is reused by the
// next Transfer.
func (t *Transport) Transfer(tx []byte) ([]byte, error) {
	if t.closed.Load() {
		return nil, knode.NewClosedError("Transfer", t.busName)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if cap(t.rx) < len(tx) {
		t.rx = make([]byte, len(tx))
	}
	rx := t.rx[:len(tx)]
	if err := t.dev.Tx(tx, rx); err != nil {
		return nil, knode.WithTrace(knode.NewTransferError("Tx", t.busName, err), "I2C", t.busName, tx, nil)
	}
	return rx, nil
}

// Close releases the bus.
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := t.bus.Close(); err != nil {
		return fmt.Errorf("I2C close failed: %w", err)
	}
	return nil
}

// IsConnected returns true until Close is called.
func (t *Transport) IsConnected() bool {
	return !t.closed.Load()
}

// Type returns the transport type
func (*Transport) Type() knode.TransportType {
	return knode.TransportI2C
}

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

// Package testing provides simulated network and peripheral endpoints for
// exercising the pipeline without hardware.
package testing

import (
	"sync"

	"github.com/kasmnode/go-knode"
)

// VirtualBoard simulates the KASM motor board at the far end of a peripheral
// channel. It decodes every transfer as a native-order frame, verifies its CRC
// and echoes the bytes back the way the board's SPI slave does.
type VirtualBoard struct {
	frames  []knode.Frame
	crc     knode.CRCParams
	corrupt int
	mu      sync.Mutex
	closed  bool
}

// NewVirtualBoard returns a board checking CRCs with crc.
func NewVirtualBoard(crc knode.CRCParams) *VirtualBoard {
	return &VirtualBoard{crc: crc}
}

// Transfer implements knode.Transport.
func (b *VirtualBoard) Transfer(tx []byte) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, knode.NewClosedError("Transfer", "board")
	}
	f, err := knode.UnmarshalNative(tx)
	if err != nil {
		return nil, knode.NewTransferError("Transfer", "board", err)
	}
	if b.crc.Verify(&f) != 0 {
		b.corrupt++
	}
	b.frames = append(b.frames, f)
	return append([]byte(nil), tx...), nil
}

// Close implements knode.Transport.
func (b *VirtualBoard) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

// IsConnected implements knode.Transport.
func (b *VirtualBoard) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed
}

// Type implements knode.Transport.
func (*VirtualBoard) Type() knode.TransportType {
	return knode.TransportMock
}

// Frames returns every frame the board accepted, in order.
func (b *VirtualBoard) Frames() []knode.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]knode.Frame(nil), b.frames...)
}

// Count returns how many frames arrived.
func (b *VirtualBoard) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

// Corrupt returns how many arrived frames failed CRC verification.
func (b *VirtualBoard) Corrupt() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.corrupt
}

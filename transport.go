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

package knode

import (
	"fmt"
	"sync"
	"time"
)

// Transport is one peripheral link. Each egress worker owns exactly one
// Transport, so implementations need not be safe for concurrent Transfer
// calls, but Close may race with an in-flight Transfer.
type Transport interface {
	// Transfer clocks tx out and returns whatever the peripheral clocked back
	// in the same exchange. For full-duplex buses the reply has len(tx) bytes.
	Transfer(tx []byte) ([]byte, error)

	// Close releases the underlying device.
	Close() error

	// IsConnected returns true while the device is open.
	IsConnected() bool

	// Type returns the transport type.
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportUART represents UART/serial transport.
	TransportUART TransportType = "uart"
	// TransportI2C represents I2C bus transport.
	TransportI2C TransportType = "i2c"
	// TransportSPI represents SPI bus transport.
	TransportSPI TransportType = "spi"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// ParseTransportType maps a configuration string onto a TransportType.
func ParseTransportType(s string) (TransportType, error) {
	switch t := TransportType(s); t {
	case TransportSPI, TransportUART, TransportI2C, TransportMock:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown transport type %q", ErrInvalidConfig, s)
	}
}

// MockTransport is an in-memory Transport for tests. It records a copy of every
// frame it is handed and echoes the input back unless a reply func is set.
type MockTransport struct {
	reply     func(tx []byte) ([]byte, error)
	err       error
	transfers [][]byte
	delay     time.Duration
	mu        sync.RWMutex
	connected bool
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{connected: true}
}

// Transfer implements Transport.
func (m *MockTransport) Transfer(tx []byte) ([]byte, error) {
	m.mu.RLock()
	connected := m.connected
	delay := m.delay
	m.mu.RUnlock()

	if !connected {
		return nil, NewClosedError("Transfer", "mock")
	}

	// Simulate bus time if configured
	if delay > 0 {
		time.Sleep(delay)
	}

	m.mu.Lock()
	m.transfers = append(m.transfers, append([]byte(nil), tx...))
	err := m.err
	reply := m.reply
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if reply != nil {
		return reply(tx)
	}
	return append([]byte(nil), tx...), nil
}

// Close implements Transport.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	return nil
}

// IsConnected implements Transport.
func (m *MockTransport) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Type implements Transport.
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// Test helper methods

// SetReply replaces the default echo behavior.
func (m *MockTransport) SetReply(reply func(tx []byte) ([]byte, error)) {
	m.mu.Lock()
	m.reply = reply
	m.mu.Unlock()
}

// SetError makes every subsequent Transfer fail with err. Pass nil to clear.
func (m *MockTransport) SetError(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// SetDelay configures a delay to simulate bus time.
func (m *MockTransport) SetDelay(delay time.Duration) {
	m.mu.Lock()
	m.delay = delay
	m.mu.Unlock()
}

// TransferCount returns how many transfers were attempted.
func (m *MockTransport) TransferCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.transfers)
}

// Transfers returns copies of every buffer handed to Transfer, in order.
func (m *MockTransport) Transfers() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]byte, len(m.transfers))
	for i, tx := range m.transfers {
		out[i] = append([]byte(nil), tx...)
	}
	return out
}

// LastFrame decodes the most recent transfer as a native-order frame.
func (m *MockTransport) LastFrame() (Frame, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.transfers) == 0 {
		return Frame{}, false
	}
	f, err := UnmarshalNative(m.transfers[len(m.transfers)-1])
	return f, err == nil
}

// Reset clears recorded transfers and reconnects.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	m.transfers = nil
	m.err = nil
	m.connected = true
	m.mu.Unlock()
}

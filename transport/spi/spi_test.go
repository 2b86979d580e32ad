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

package spi

import (
	"errors"
	"sync"
	"syscall"
	"testing"

	"github.com/kasmnode/go-knode"
	virt "github.com/kasmnode/go-knode/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// mockConn implements spi.Conn. It hands every write to a virtual board and
// clocks the board's reply back into r, the way a full-duplex bus does.
type mockConn struct {
	board *virt.VirtualBoard
	err   error
	mu    sync.Mutex
	txs   int
}

func (m *mockConn) Tx(w, r []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs++
	if m.err != nil {
		return m.err
	}
	reply, err := m.board.Transfer(w)
	if err != nil {
		return err
	}
	copy(r, reply)
	return nil
}

func (m *mockConn) TxPackets(p []spi.Packet) error {
	for _, pkt := range p {
		if err := m.Tx(pkt.W, pkt.R); err != nil {
			return err
		}
	}
	return nil
}

func (*mockConn) Duplex() conn.Duplex { return conn.Full }
func (*mockConn) String() string { return "mock://spi" }

// mockPort implements spi.PortCloser.
type mockPort struct {
	conn    *mockConn
	freq    physic.Frequency
	mode    spi.Mode
	bits    int
	closed  int
	connErr error
}

func (p *mockPort) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	if p.connErr != nil {
		return nil, p.connErr
	}
	p.freq, p.mode, p.bits = f, mode, bits
	return p.conn, nil
}

func (p *mockPort) Close() error { p.closed++; return nil }
func (*mockPort) String() string { return "mock://spi" }
func (*mockPort) LimitSpeed(_ physic.Frequency) error { return nil }

var (
	_ spi.Conn       = (*mockConn)(nil)
	_ spi.PortCloser = (*mockPort)(nil)
)

func newTestTransport(t *testing.T) (*Transport, *mockPort, *virt.VirtualBoard) {
	t.Helper()
	board := virt.NewVirtualBoard(knode.CRC16DNP)
	port := &mockPort{conn: &mockConn{board: board}}
	tr, err := NewFromPort(port, Config{Port: "SPI0.0"})
	require.NoError(t, err)
	return tr, port, board
}

func TestNewFromPort_AppliesDefaults(t *testing.T) {
	t.Parallel()

	tr, port, _ := newTestTransport(t)
	assert.Equal(t, DefaultSpeed, port.freq)
	assert.Equal(t, DefaultMode, port.mode)
	assert.Equal(t, DefaultBits, port.bits)
	assert.Equal(t, "SPI0.0", tr.String())
	assert.Equal(t, knode.TransportSPI, tr.Type())
	assert.True(t, tr.IsConnected())
}

func TestNewFromPort_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewFromPort(&mockPort{conn: &mockConn{}}, Config{Mode: spi.Mode(7)})
	require.ErrorIs(t, err, knode.ErrInvalidConfig)
	require.ErrorIs(t, err, knode.ErrInitFailed)

	_, err = NewFromPort(&mockPort{connErr: errors.New("unsupported speed")}, Config{Port: "SPI1.0"})
	require.ErrorIs(t, err, knode.ErrInitFailed)
	assert.Contains(t, err.Error(), "unsupported speed")
}

func TestTransport_TransferEchoesFrame(t *testing.T) {
	t.Parallel()

	tr, _, board := newTestTransport(t)

	var f knode.Frame
	for i := range knode.FieldCount {
		f[i] = int16(100 * i)
	}
	knode.CRC16DNP.Append(&f)
	var wire [knode.FrameSize]byte
	f.MarshalNative(&wire)

	rx, err := tr.Transfer(wire[:])
	require.NoError(t, err)
	assert.Equal(t, wire[:], rx)
	assert.Equal(t, 1, board.Count())
	assert.Zero(t, board.Corrupt())
}

func TestTransport_TransferErrorCarriesTrace(t *testing.T) {
	t.Parallel()

	tr, port, _ := newTestTransport(t)
	port.conn.err = syscall.ENODEV

	_, err := tr.Transfer([]byte{0x01, 0x02})
	require.ErrorIs(t, err, knode.ErrTransferFailed)
	assert.True(t, knode.IsFatal(err), "a vanished device is permanent")

	trace := knode.GetTrace(err)
	require.NotNil(t, trace)
	assert.Equal(t, []byte{0x01, 0x02}, trace.TX)
}

func TestTransport_Close(t *testing.T) {
	t.Parallel()

	tr, port, _ := newTestTransport(t)
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	assert.Equal(t, 1, port.closed)
	assert.False(t, tr.IsConnected())

	_, err := tr.Transfer(make([]byte, knode.FrameSize))
	require.ErrorIs(t, err, knode.ErrTransportClosed)
	assert.Zero(t, port.conn.txs)
}

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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTransportType(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    TransportType
		wantErr bool
	}{
		{in: "spi", want: TransportSPI},
		{in: "uart", want: TransportUART},
		{in: "i2c", want: TransportI2C},
		{in: "mock", want: TransportMock},
		{in: "SPI", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseTransportType(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMockTransport_RecordsAndEchoes(t *testing.T) {
	t.Parallel()

	m := NewMockTransport()
	var f Frame
	f[0], f[CRCIndex] = 7, 0x1234
	var buf [FrameSize]byte
	f.MarshalNative(&buf)

	rx, err := m.Transfer(buf[:])
	require.NoError(t, err)
	assert.Equal(t, buf[:], rx)

	buf[0] = 0xFF // recorded copy must not alias the caller's buffer
	last, ok := m.LastFrame()
	require.True(t, ok)
	assert.Equal(t, f, last)
	assert.Equal(t, 1, m.TransferCount())
	assert.Equal(t, TransportMock, m.Type())
}

func TestMockTransport_ErrorAndReply(t *testing.T) {
	t.Parallel()

	m := NewMockTransport()
	boom := errors.New("bus fault")
	m.SetError(boom)
	_, err := m.Transfer([]byte{1})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, m.TransferCount(), "failed transfers are still recorded")

	m.SetError(nil)
	m.SetReply(func(tx []byte) ([]byte, error) { return []byte{0xAA}, nil })
	rx, err := m.Transfer([]byte{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA}, rx)
}

func TestMockTransport_Closed(t *testing.T) {
	t.Parallel()

	m := NewMockTransport()
	require.NoError(t, m.Close())
	assert.False(t, m.IsConnected())

	_, err := m.Transfer([]byte{1})
	require.ErrorIs(t, err, ErrTransportClosed)
	assert.True(t, IsFatal(err))

	m.Reset()
	assert.True(t, m.IsConnected())
	assert.Zero(t, m.TransferCount())
	_, ok := m.LastFrame()
	assert.False(t, ok)
}

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
	"fmt"
	"io"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "transport timeout retryable", err: ErrTransportTimeout, want: true},
		{name: "receive failure retryable", err: ErrReceiveFailed, want: true},
		{name: "transfer failure retryable", err: ErrTransferFailed, want: true},
		{name: "short transfer retryable", err: ErrShortTransfer, want: true},
		{name: "wrapped timeout retryable", err: fmt.Errorf("spi0: %w", ErrTransportTimeout), want: true},
		{name: "size mismatch not retryable", err: &SizeError{Got: 3, Want: PayloadSize}, want: false},
		{name: "crc mismatch not retryable", err: &CRCError{Residue: 1}, want: false},
		{name: "closed not retryable", err: ErrTransportClosed, want: false},
		{name: "invalid config not retryable", err: ErrInvalidConfig, want: false},
		{name: "generic error not retryable", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := IsRetryable(tt.err)
			if got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "closed", err: ErrTransportClosed, want: true},
		{name: "init failed", err: ErrInitFailed, want: true},
		{name: "not supported", err: ErrNotSupported, want: true},
		{name: "eof", err: io.EOF, want: true},
		{name: "eio", err: syscall.EIO, want: true},
		{name: "enodev wrapped", err: fmt.Errorf("spidev: %w", syscall.ENODEV), want: true},
		{name: "eagain", err: syscall.EAGAIN, want: false},
		{name: "timeout", err: ErrTransportTimeout, want: false},
		{name: "permanent transport error", err: NewClosedError("Transfer", "spi0"), want: true},
		{name: "transient transport error", err: NewTimeoutError("Transfer", "spi0"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsFatal(tt.err))
		})
	}
}

func TestGetErrorType(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err  error
		name string
		want ErrorType
	}{
		{name: "size", err: &SizeError{Got: 1, Want: PayloadSize}, want: ErrorTypeProtocol},
		{name: "crc", err: fmt.Errorf("ch0: %w", &CRCError{Residue: 0xBEEF}), want: ErrorTypeProtocol},
		{name: "deadline", err: ErrDeadlineMissed, want: ErrorTypeTiming},
		{name: "device gone", err: syscall.ENXIO, want: ErrorTypePermanent},
		{name: "transport error keeps its type", err: NewTransportError("op", "p", io.EOF, ErrorTypeTiming), want: ErrorTypeTiming},
		{name: "unknown is transient", err: errors.New("flaky"), want: ErrorTypeTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, GetErrorType(tt.err))
		})
	}
}

func TestErrorType_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "transient", ErrorTypeTransient.String())
	assert.Equal(t, "protocol", ErrorTypeProtocol.String())
	assert.Equal(t, "timing", ErrorTypeTiming.String())
	assert.Equal(t, "permanent", ErrorTypePermanent.String())
	assert.Equal(t, "ErrorType(42)", ErrorType(42).String())
}

func TestTransportError_Error(t *testing.T) {
	t.Parallel()

	withPort := NewTimeoutError("Transfer", "/dev/spidev0.0")
	assert.Equal(t, "Transfer /dev/spidev0.0: transport timeout", withPort.Error())
	assert.True(t, withPort.Retryable)

	noPort := &TransportError{Op: "Open", Err: ErrTransportNotReady}
	assert.Equal(t, "Open: transport not ready", noPort.Error())
	assert.ErrorIs(t, noPort, ErrTransportNotReady)
}

func TestNewTransferError(t *testing.T) {
	t.Parallel()

	transient := NewTransferError("Tx", "SPI0.0", syscall.EAGAIN)
	require.ErrorIs(t, transient, ErrTransferFailed)
	require.ErrorIs(t, transient, syscall.EAGAIN)
	assert.Equal(t, ErrorTypeTransient, transient.Type)
	assert.True(t, IsRetryable(transient))

	gone := NewTransferError("Tx", "SPI0.0", syscall.ENODEV)
	assert.Equal(t, ErrorTypePermanent, gone.Type)
	assert.False(t, IsRetryable(gone))
	assert.True(t, IsFatal(gone))
}

func TestNewInitError(t *testing.T) {
	t.Parallel()

	busy := NewInitError("Open", "/dev/ttyUSB0", syscall.EBUSY)
	require.ErrorIs(t, busy, ErrInitFailed)
	assert.True(t, busy.Retryable, "a busy device may free up during startup")

	bad := NewInitError("Open", "spi9", fmt.Errorf("%w: mode 7", ErrInvalidConfig))
	require.ErrorIs(t, bad, ErrInvalidConfig)
	assert.False(t, bad.Retryable)
}

func TestSizeAndCRCErrors(t *testing.T) {
	t.Parallel()

	size := &SizeError{Got: 51, Want: PayloadSize}
	assert.ErrorIs(t, size, ErrSizeMismatch)
	assert.Contains(t, size.Error(), "got 51 bytes, want 52")

	crc := &CRCError{Residue: 0x00FF}
	assert.ErrorIs(t, crc, ErrCRCMismatch)
	assert.Contains(t, crc.Error(), "0x00FF")
}

func TestWithTrace(t *testing.T) {
	t.Parallel()

	assert.NoError(t, WithTrace(nil, "spi", "SPI0.0", []byte{1}, nil))

	tx := []byte{0x01, 0xAB}
	err := WithTrace(ErrShortTransfer, "spi", "SPI0.0", tx, []byte{0xFF})
	tx[0] = 0x99 // trace must hold its own copy

	require.ErrorIs(t, err, ErrShortTransfer)
	trace := GetTrace(fmt.Errorf("egress: %w", err))
	require.NotNil(t, trace)
	assert.Equal(t, []byte{0x01, 0xAB}, trace.TX)
	assert.Equal(t, ErrShortTransfer.Error(), trace.Error())

	out := trace.FormatTrace()
	assert.True(t, strings.HasPrefix(out, "spi SPI0.0 at "))
	assert.Contains(t, out, "TX: 01 AB")
	assert.Contains(t, out, "RX: FF")

	assert.Nil(t, GetTrace(errors.New("plain")))
}

func TestFormatHexBytes_EmptyData(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "(empty)", formatHexBytes(nil))
	assert.Equal(t, "00 7F", formatHexBytes([]byte{0x00, 0x7F}))
}

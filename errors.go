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
	"time"
)

// Error categories, grouped the way the workers handle them.
var (
	// Transient I/O errors - reported, iteration abandoned, worker continues
	ErrReceiveFailed     = errors.New("datagram receive failed")
	ErrTransferFailed    = errors.New("peripheral transfer failed")
	ErrTransportTimeout  = errors.New("transport timeout")
	ErrTransportClosed   = errors.New("transport is closed")
	ErrShortTransfer     = errors.New("short peripheral transfer")
	ErrTransportNotReady = errors.New("transport not ready")

	// Protocol violations - frame discarded
	ErrSizeMismatch = errors.New("datagram size mismatch")
	ErrCRCMismatch  = errors.New("crc verification failed")

	// Timing violations - schedule resynchronized
	ErrDeadlineMissed = errors.New("deadline missed")

	// Initialization failures - fatal
	ErrInitFailed     = errors.New("initialization failed")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrNotSupported   = errors.New("not supported on this platform")
	ErrAlreadyRunning = errors.New("already running")
)

// ErrorType represents the category of an error
type ErrorType int

const (
	// ErrorTypeTransient indicates an I/O error contained within one iteration
	ErrorTypeTransient ErrorType = iota
	// ErrorTypeProtocol indicates malformed or corrupted data
	ErrorTypeProtocol
	// ErrorTypeTiming indicates a missed deadline
	ErrorTypeTiming
	// ErrorTypePermanent indicates the device or socket is unusable
	ErrorTypePermanent
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeProtocol:
		return "protocol"
	case ErrorTypeTiming:
		return "timing"
	case ErrorTypePermanent:
		return "permanent"
	default:
		return fmt.Sprintf("ErrorType(%d)", int(t))
	}
}

// TransportError wraps transport-level errors with additional context
type TransportError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Port      string    // Port or device identifier
	Type      ErrorType // Error category
	Retryable bool      // Whether opening/transferring again may succeed
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// SizeError describes a datagram whose length is not the payload size
type SizeError struct {
	Got  int
	Want int
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("%v: got %d bytes, want %d", ErrSizeMismatch, e.Got, e.Want)
}

func (*SizeError) Unwrap() error {
	return ErrSizeMismatch
}

// CRCError describes a frame that failed verification
type CRCError struct {
	Residue uint16 // nonzero fold result
}

func (e *CRCError) Error() string {
	return fmt.Sprintf("%v: residue 0x%04X", ErrCRCMismatch, e.Residue)
}

func (*CRCError) Unwrap() error {
	return ErrCRCMismatch
}

// IsRetryable returns true if the error is potentially retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	switch {
	case errors.Is(err, ErrTransportTimeout),
		errors.Is(err, ErrTransportNotReady),
		errors.Is(err, ErrReceiveFailed),
		errors.Is(err, ErrTransferFailed),
		errors.Is(err, ErrShortTransfer):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error means the device or socket is gone.
// Workers never stop on a fatal per-iteration error; the node reports it and
// leaves the decision to the operator.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type == ErrorTypePermanent
	}

	if isDeviceGoneError(err) {
		return true
	}

	switch {
	case errors.Is(err, ErrTransportClosed),
		errors.Is(err, ErrInitFailed),
		errors.Is(err, ErrNotSupported),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// GetErrorType classifies an error into the node's error taxonomy
func GetErrorType(err error) ErrorType {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Type
	}

	switch {
	case errors.Is(err, ErrSizeMismatch), errors.Is(err, ErrCRCMismatch):
		return ErrorTypeProtocol
	case errors.Is(err, ErrDeadlineMissed):
		return ErrorTypeTiming
	case IsFatal(err):
		return ErrorTypePermanent
	default:
		return ErrorTypeTransient
	}
}

// isDeviceGoneError checks for OS-level errors indicating the peripheral vanished.
func isDeviceGoneError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
		switch errno {
		case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
			return true
		}
	}
	return false
}

// NewTransportError creates a standard transport error with consistent formatting
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient,
	}
}

// NewTimeoutError creates a timeout error for transport operations
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportTimeout, ErrorTypeTransient)
}

// NewTransferError wraps a failed peripheral transfer (transient)
func NewTransferError(op, port string, cause error) *TransportError {
	errType := ErrorTypeTransient
	if isDeviceGoneError(cause) {
		errType = ErrorTypePermanent
	}
	return NewTransportError(op, port, fmt.Errorf("%w: %w", ErrTransferFailed, cause), errType)
}

// NewClosedError reports use of a closed transport (permanent)
func NewClosedError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportClosed, ErrorTypePermanent)
}

// NewInitError wraps a failure to open a socket or peripheral. Callers may
// retry it during startup; after that it is fatal.
func NewInitError(op, port string, cause error) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       fmt.Errorf("%w: %w", ErrInitFailed, cause),
		Type:      ErrorTypePermanent,
		Retryable: !errors.Is(cause, ErrInvalidConfig),
	}
}

// =============================================================================
// Wire Trace
// =============================================================================
// A TraceableError carries the bytes that were on the wire when a transfer
// failed. Traces are only built on the error path.

// TraceableError embeds the failed transaction in the error value
type TraceableError struct {
	Err       error
	Timestamp time.Time
	Transport string
	Port      string
	TX        []byte
	RX        []byte
}

func (e *TraceableError) Error() string {
	return e.Err.Error()
}

func (e *TraceableError) Unwrap() error {
	return e.Err
}

// FormatTrace returns the captured transaction for display
func (e *TraceableError) FormatTrace() string {
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "%s %s at %s\n", e.Transport, e.Port, e.Timestamp.Format("15:04:05.000000"))
	_, _ = fmt.Fprintf(&sb, "  TX: %s\n", formatHexBytes(e.TX))
	if len(e.RX) > 0 {
		_, _ = fmt.Fprintf(&sb, "  RX: %s\n", formatHexBytes(e.RX))
	}
	return sb.String()
}

// WithTrace attaches a copy of the transaction bytes to err.
func WithTrace(err error, transport, port string, tx, rx []byte) error {
	if err == nil {
		return nil
	}
	return &TraceableError{
		Err:       err,
		Timestamp: time.Now(),
		Transport: transport,
		Port:      port,
		TX:        append([]byte(nil), tx...),
		RX:        append([]byte(nil), rx...),
	}
}

// GetTrace extracts the wire trace from an error chain, if present
func GetTrace(err error) *TraceableError {
	var te *TraceableError
	if errors.As(err, &te) {
		return te
	}
	return nil
}

func formatHexBytes(data []byte) string {
	if len(data) == 0 {
		return "(empty)"
	}
	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		_, _ = fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

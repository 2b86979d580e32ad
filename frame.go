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
	"github.com/kasmnode/go-knode/internal/frame"
)

// Frame geometry re-exported for callers outside the module.
const (
	FieldCount  = frame.FieldCount
	FrameWords  = frame.Words
	CRCIndex    = frame.CRCIndex
	PayloadSize = frame.PayloadSize
	FrameSize   = frame.Size
)

// Command value limits accepted by the KASM board.
const (
	MinCommandValue = -24000
	MaxCommandValue = 24000
)

// Frame is one command frame: FieldCount command values followed by the CRC
// word at CRCIndex. A Frame is a value; copying it copies the data.
type Frame [FrameWords]int16

// Fields returns the command values, excluding the CRC word.
func (f *Frame) Fields() []int16 {
	return f[:FieldCount]
}

// CRC returns the CRC word.
func (f *Frame) CRC() uint16 {
	return uint16(f[CRCIndex])
}

// CopyFields copies the command values of src into f, leaving f's CRC word alone.
func (f *Frame) CopyFields(src *Frame) {
	copy(f[:FieldCount], src[:FieldCount])
}

// SameFields reports whether two frames carry identical command values.
func (f *Frame) SameFields(other *Frame) bool {
	return [FieldCount]int16(f[:FieldCount]) == [FieldCount]int16(other[:FieldCount])
}

// ParsePayload decodes a big-endian network payload. The CRC word of the
// result is zero. Any length other than PayloadSize yields a *SizeError.
func ParsePayload(b []byte) (Frame, error) {
	var f Frame
	if err := f.UnmarshalPayload(b); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// UnmarshalPayload decodes a big-endian network payload into f's command
// values. f is unchanged on error.
func (f *Frame) UnmarshalPayload(b []byte) error {
	if !frame.DecodeNetwork(f[:], b) {
		return &SizeError{Got: len(b), Want: PayloadSize}
	}
	return nil
}

// MarshalPayload writes f's command values as a big-endian network payload.
func (f *Frame) MarshalPayload(dst *[PayloadSize]byte) {
	frame.EncodeNetwork(dst[:], f[:])
}

// MarshalNative writes the whole frame, CRC included, in host byte order for
// the peripheral leg.
func (f *Frame) MarshalNative(dst *[FrameSize]byte) {
	frame.EncodeNative(dst[:], f[:])
}

// UnmarshalNative decodes a peripheral buffer, CRC included.
func UnmarshalNative(b []byte) (Frame, error) {
	var f Frame
	if !frame.DecodeNative(f[:], b) {
		return Frame{}, &SizeError{Got: len(b), Want: FrameSize}
	}
	return f, nil
}

// ClampCommand limits v to the accepted command range.
func ClampCommand(v int) int16 {
	switch {
	case v < MinCommandValue:
		return MinCommandValue
	case v > MaxCommandValue:
		return MaxCommandValue
	default:
		return int16(v)
	}
}

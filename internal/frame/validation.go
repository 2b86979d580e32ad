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

package frame

import "encoding/binary"

// ValidPayloadLength reports whether a received datagram length is exactly one
// network payload. n may exceed the receive buffer when the socket reports the
// untruncated datagram length.
func ValidPayloadLength(n int) bool {
	return n == PayloadSize
}

// DecodeNetwork converts a big-endian payload into host-order fields.
// It returns false and leaves dst untouched unless src is exactly PayloadSize
// bytes and dst holds at least FieldCount values.
func DecodeNetwork(dst []int16, src []byte) bool {
	if len(src) != PayloadSize || len(dst) < FieldCount {
		return false
	}
	for i := range FieldCount {
		dst[i] = int16(binary.BigEndian.Uint16(src[2*i:]))
	}
	return true
}

// EncodeNetwork writes the first FieldCount values of src as a big-endian
// payload. dst must hold PayloadSize bytes.
func EncodeNetwork(dst []byte, src []int16) {
	_ = dst[PayloadSize-1]
	for i := range FieldCount {
		binary.BigEndian.PutUint16(dst[2*i:], uint16(src[i]))
	}
}

// EncodeNative writes all Words values of src in host byte order, which is the
// layout the peripheral expects. dst must hold Size bytes.
func EncodeNative(dst []byte, src []int16) {
	_ = dst[Size-1]
	for i := range Words {
		binary.NativeEndian.PutUint16(dst[2*i:], uint16(src[i]))
	}
}

// DecodeNative is the inverse of EncodeNative. It returns false unless src is
// exactly Size bytes.
func DecodeNative(dst []int16, src []byte) bool {
	if len(src) != Size || len(dst) < Words {
		return false
	}
	for i := range Words {
		dst[i] = int16(binary.NativeEndian.Uint16(src[2*i:]))
	}
	return true
}

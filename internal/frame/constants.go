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

// Frame geometry. A frame is FieldCount signed 16-bit command values followed
// by one CRC word.
const (
	FieldCount = 26             // command values per frame
	Words      = FieldCount + 1 // command values plus CRC word
	CRCIndex   = FieldCount     // position of the CRC word
)

// Wire sizes
const (
	PayloadSize = FieldCount * 2 // network leg, big-endian, no CRC
	Size        = Words * 2      // peripheral leg, native order, CRC included

	// MaxDatagram sizes the receive buffer. It is larger than PayloadSize so an
	// oversized datagram shows up as a length mismatch instead of being
	// silently truncated to a valid-looking payload.
	MaxDatagram = 500
)

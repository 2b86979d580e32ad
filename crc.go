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

// CRCParams selects the CRC16 polynomial and initial accumulator. The node uses
// CRC-16-DNP but both values are configuration, not constants baked into the
// codec.
type CRCParams struct {
	Polynomial uint16
	Init       uint16
}

// CRC16DNP is the protocol default: x^16+x^13+x^12+x^11+x^10+x^8+x^6+x^5+x^2+1.
var CRC16DNP = CRCParams{Polynomial: 0x3D65, Init: 0xFFFF}

// CRC16Step performs one round of bit-serial polynomial division over a
// 16-bit word.
func CRC16Step(acc, data, poly uint16) uint16 {
	crc := acc ^ data
	for range 16 {
		if crc&0x8000 != 0 {
			crc = crc<<1 ^ poly
		} else {
			crc <<= 1
		}
	}
	return crc
}

// Checksum folds CRC16Step over words starting from p.Init.
func (p CRCParams) Checksum(words []int16) uint16 {
	crc := p.Init
	for _, w := range words {
		crc = CRC16Step(crc, uint16(w), p.Polynomial)
	}
	return crc
}

// Append computes the CRC over the command values and stores it in the CRC
// word. It returns the stored value.
func (p CRCParams) Append(f *Frame) uint16 {
	crc := p.Checksum(f[:FieldCount])
	f[CRCIndex] = int16(crc)
	return crc
}

// Verify folds over the whole frame, CRC word included. The result is zero
// exactly when the frame is intact.
func (p CRCParams) Verify(f *Frame) uint16 {
	return p.Checksum(f[:])
}

// Check is Verify as an error: nil for an intact frame, *CRCError otherwise.
func (p CRCParams) Check(f *Frame) error {
	if residue := p.Verify(f); residue != 0 {
		return &CRCError{Residue: residue}
	}
	return nil
}

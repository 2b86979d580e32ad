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

package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeVIDPID(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{in: "1a86:7523", want: "1A86:7523"},
		{in: " 403:6001 ", want: "0403:6001"},
		{in: "10C4:EA60", want: "10C4:EA60"},
		{in: "", want: ""},
		{in: "1A86", want: ""},
		{in: "12345:1", want: ""},
		{in: "zz:01", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizeVIDPID(tt.in))
		})
	}
}

func TestIsBlocked(t *testing.T) {
	t.Parallel()

	list := []string{"0403:6001", "10c4:ea60"}
	assert.True(t, IsBlocked("403:6001", list))
	assert.True(t, IsBlocked("10C4:EA60", list))
	assert.False(t, IsBlocked("1A86:7523", list))
	assert.False(t, IsBlocked("", list))
	assert.False(t, IsBlocked("0403:6001", nil))
}

func TestIsPathIgnored(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		path   string
		ignore []string
		want   bool
	}{
		{name: "exact", path: "/dev/ttyAMA0", ignore: []string{"/dev/ttyAMA0"}, want: true},
		{name: "unclean path", path: "/dev/./ttyS0", ignore: []string{"/dev/ttyS0"}, want: true},
		{name: "windows case", path: "COM3", ignore: []string{"com3"}, want: true},
		{name: "different", path: "/dev/ttyUSB0", ignore: []string{"/dev/ttyUSB1"}, want: false},
		{name: "empty entries", path: "/dev/ttyUSB0", ignore: []string{""}, want: false},
		{name: "empty path", path: "", ignore: []string{""}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsPathIgnored(tt.path, tt.ignore))
		})
	}
}

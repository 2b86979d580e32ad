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
	"path/filepath"
	"strings"
)

// NormalizeVIDPID returns "VVVV:PPPP" in upper case, or "" when s is not a
// pair of 1-4 digit hex numbers.
func NormalizeVIDPID(s string) string {
	vid, pid, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || !isHex(vid) || !isHex(pid) || len(vid) > 4 || len(pid) > 4 {
		return ""
	}
	pad := func(h string) string { return strings.Repeat("0", 4-len(h)) + strings.ToUpper(h) }
	return pad(vid) + ":" + pad(pid)
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'A' || r > 'F') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

// IsBlocked reports whether vidpid appears in blocklist.
func IsBlocked(vidpid string, blocklist []string) bool {
	v := NormalizeVIDPID(vidpid)
	if v == "" {
		return false
	}
	for _, b := range blocklist {
		if NormalizeVIDPID(b) == v {
			return true
		}
	}
	return false
}

// IsPathIgnored reports whether path matches an ignore entry after cleaning.
// Comparison is case-insensitive so COM ports match on Windows.
func IsPathIgnored(path string, ignore []string) bool {
	if path == "" {
		return false
	}
	p := normalizePath(path)
	for _, ig := range ignore {
		if ig != "" && normalizePath(ig) == p {
			return true
		}
	}
	return false
}

func normalizePath(path string) string {
	return strings.ToLower(filepath.Clean(path))
}

// Filter drops ignored and blocklisted devices.
func Filter(devices []DeviceInfo, opts *Options) []DeviceInfo {
	if len(opts.IgnorePaths) == 0 && len(opts.Blocklist) == 0 {
		return devices
	}
	var out []DeviceInfo
	for _, d := range devices {
		if IsPathIgnored(d.Path, opts.IgnorePaths) {
			continue
		}
		if IsBlocked(d.Metadata["vidpid"], opts.Blocklist) {
			continue
		}
		out = append(out, d)
	}
	return out
}

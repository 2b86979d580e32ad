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
	"fmt"
	"maps"
	"time"

	"github.com/kasmnode/go-knode"
	"github.com/kasmnode/go-knode/internal/syncutil"
)

type cacheEntry struct {
	stored  time.Time
	devices []DeviceInfo
}

var cache = struct {
	entries map[string]cacheEntry
	mu      syncutil.RWMutex
}{entries: make(map[string]cacheEntry)}

// Passive and probed results differ in confidence, so they are cached apart.
func cacheKey(t knode.TransportType, mode Mode) string {
	return fmt.Sprintf("%s/%d", t, mode)
}

func getCached(key string, ttl time.Duration) ([]DeviceInfo, bool) {
	cache.mu.RLock()
	defer cache.mu.RUnlock()

	entry, ok := cache.entries[key]
	if !ok || time.Since(entry.stored) > ttl {
		return nil, false
	}
	return cloneDevices(entry.devices), true
}

func setCached(key string, devices []DeviceInfo) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.entries[key] = cacheEntry{devices: cloneDevices(devices), stored: time.Now()}
}

func clearCache() {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.entries = make(map[string]cacheEntry)
}

func clearCacheFor(key string) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	delete(cache.entries, key)
}

func cloneDevices(in []DeviceInfo) []DeviceInfo {
	out := make([]DeviceInfo, len(in))
	for i, d := range in {
		d.Metadata = maps.Clone(d.Metadata)
		out[i] = d
	}
	return out
}

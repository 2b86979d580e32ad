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

// Package detection enumerates the peripheral ports a channel can be bound
// to. Transport-specific detectors register themselves from their own
// packages; import them for side effects:
//
//	import (
//		_ "github.com/kasmnode/go-knode/detection/spi"
//		_ "github.com/kasmnode/go-knode/detection/uart"
//	)
package detection

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/kasmnode/go-knode"
	"github.com/kasmnode/go-knode/internal/syncutil"
)

// Mode is how much a detector may touch a port.
type Mode int

const (
	// Passive only lists what the OS reports.
	Passive Mode = iota
	// Probe also opens and closes each port to prove it is usable. No bytes
	// are transferred.
	Probe
)

// Confidence is how sure a detector is that a port can carry a channel.
type Confidence int

const (
	// Low means the port is listed but was not opened.
	Low Confidence = iota
	// Medium means the port is a known USB-serial bridge.
	Medium
	// High means the port was opened successfully.
	High
)

func (c Confidence) String() string {
	switch c {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// DeviceInfo is one port a channel could be configured with.
type DeviceInfo struct {
	// Metadata such as "vidpid", "aliases" or "probe_error".
	Metadata map[string]string
	// Transport is the channel transport that drives this port.
	Transport knode.TransportType
	// Path is the value to put in a channel's device setting.
	Path string
	Name string
	// Confidence is how usable the port looked.
	Confidence Confidence
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s device at %s (confidence: %s)", d.Transport, d.Path, d.Confidence)
}

// Options configures detection.
type Options struct {
	// Blocklist holds USB VID:PID pairs never to open.
	Blocklist []string
	// IgnorePaths holds device paths to leave out, such as the console UART.
	IgnorePaths []string
	// Transports limits detection to these transports. Empty means all.
	Transports []knode.TransportType
	CacheTTL   time.Duration
	// Timeout bounds the whole detection run.
	Timeout     time.Duration
	Mode        Mode
	EnableCache bool
}

// DefaultOptions lists ports passively with a short cache.
func DefaultOptions() Options {
	return Options{
		Mode:        Passive,
		Timeout:     5 * time.Second,
		EnableCache: true,
		CacheTTL:    30 * time.Second,
	}
}

// Detector lists the ports of one transport.
type Detector interface {
	Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error)
	Transport() knode.TransportType
}

var (
	// ErrNoDevicesFound indicates no ports were found.
	ErrNoDevicesFound = errors.New("no peripheral ports found")
	// ErrDetectionTimeout indicates detection did not finish in time.
	ErrDetectionTimeout = errors.New("detection timeout")
	// ErrUnsupportedPlatform indicates the platform has no such bus.
	ErrUnsupportedPlatform = errors.New("platform not supported")
	// ErrNoDetectors indicates no detector is registered for the requested
	// transports.
	ErrNoDetectors = errors.New("no detectors available for specified transports")
)

var (
	registryMu syncutil.RWMutex
	registry   []Detector
)

// RegisterDetector adds a detector. Detector packages call it from init.
func RegisterDetector(d Detector) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = append(registry, d)
}

// Registered returns the transports that have a detector.
func Registered() []knode.TransportType {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]knode.TransportType, 0, len(registry))
	for _, d := range registry {
		out = append(out, d.Transport())
	}
	return out
}

func detectorsFor(transports []knode.TransportType) []Detector {
	registryMu.RLock()
	defer registryMu.RUnlock()
	var out []Detector
	for _, d := range registry {
		if len(transports) == 0 || slices.Contains(transports, d.Transport()) {
			out = append(out, d)
		}
	}
	return out
}

// DetectAll runs every matching detector concurrently. Devices are returned in
// registration order. A detector that fails does not hide the devices of the
// others; its error is returned only when nothing was found at all.
func DetectAll(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	detectors := detectorsFor(opts.Transports)
	if len(detectors) == 0 {
		return nil, ErrNoDetectors
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	found := make([][]DeviceInfo, len(detectors))
	errs := make([]error, len(detectors))
	var wg sync.WaitGroup
	for i, d := range detectors {
		wg.Add(1)
		go func() {
			defer wg.Done()
			found[i], errs[i] = detectOne(ctx, d, opts)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return nil, ErrDetectionTimeout
	}

	var devices []DeviceInfo
	for _, f := range found {
		devices = append(devices, f...)
	}
	if len(devices) > 0 {
		return devices, nil
	}
	for _, err := range errs {
		if err != nil && !errors.Is(err, ErrNoDevicesFound) && !errors.Is(err, ErrUnsupportedPlatform) {
			return nil, err
		}
	}
	return nil, ErrNoDevicesFound
}

func detectOne(ctx context.Context, d Detector, opts *Options) ([]DeviceInfo, error) {
	key := cacheKey(d.Transport(), opts.Mode)
	if opts.EnableCache {
		if cached, ok := getCached(key, opts.CacheTTL); ok {
			return Filter(cached, opts), nil
		}
	}

	devices, err := d.Detect(ctx, opts)
	if err != nil && !errors.Is(err, ErrNoDevicesFound) {
		return nil, fmt.Errorf("%s detection: %w", d.Transport(), err)
	}

	if opts.EnableCache {
		if len(devices) > 0 {
			setCached(key, devices)
		} else {
			// A port that vanished must not linger until the TTL expires.
			clearCacheFor(key)
		}
	}
	return Filter(devices, opts), nil
}

// ClearCache drops every cached detection result.
func ClearCache() {
	clearCache()
}

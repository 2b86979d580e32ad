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

// Package uart lists serial ports through go.bug.st/serial.
package uart

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/kasmnode/go-knode"
	"github.com/kasmnode/go-knode/detection"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// usbBridges are USB-serial chips commonly wired to motor boards.
var usbBridges = []string{
	"0403:6001", // FTDI FT232R
	"0403:6015", // FTDI FT231X
	"10C4:EA60", // Silicon Labs CP210x
	"1A86:7523", // QinHeng CH340
	"067B:2303", // Prolific PL2303
}

// Swapped in tests.
var (
	listDetailed = enumerator.GetDetailedPortsList
	listPlain    = serial.GetPortsList
	probePort    = func(path string) error {
		p, err := serial.Open(path, &serial.Mode{BaudRate: 115200})
		if err != nil {
			return err
		}
		return p.Close()
	}
)

type detector struct{}

// New returns the UART detector.
func New() detection.Detector {
	return &detector{}
}

func init() {
	detection.RegisterDetector(New())
}

func (*detector) Transport() knode.TransportType {
	return knode.TransportUART
}

type serialPort struct {
	Path         string
	VIDPID       string
	Product      string
	SerialNumber string
	USB          bool
}

// Detect lists serial ports with USB metadata where the platform provides it.
// Blocklisted and ignored ports are never opened.
func (*detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	ports, err := enumerate()
	if err != nil {
		return nil, err
	}

	var devices []detection.DeviceInfo
	for _, p := range ports {
		if ctx.Err() != nil {
			return devices, detection.ErrDetectionTimeout
		}
		if detection.IsPathIgnored(p.Path, opts.IgnorePaths) || detection.IsBlocked(p.VIDPID, opts.Blocklist) {
			continue
		}

		dev := detection.DeviceInfo{
			Transport:  knode.TransportUART,
			Path:       p.Path,
			Name:       p.Path,
			Confidence: detection.Low,
			Metadata:   map[string]string{},
		}
		if p.USB {
			dev.Metadata["vidpid"] = p.VIDPID
			if p.Product != "" {
				dev.Name = p.Product
				dev.Metadata["product"] = p.Product
			}
			if p.SerialNumber != "" {
				dev.Metadata["serial"] = p.SerialNumber
			}
			if slices.Contains(usbBridges, p.VIDPID) {
				dev.Confidence = detection.Medium
			}
		}

		if opts.Mode == detection.Probe {
			if err := probeWithTimeout(ctx, p.Path); err != nil {
				dev.Metadata["probe_error"] = err.Error()
			} else {
				dev.Confidence = detection.High
			}
		}
		devices = append(devices, dev)
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

// enumerate prefers the detailed list and falls back to bare names on
// platforms where USB properties are unavailable.
func enumerate() ([]serialPort, error) {
	detailed, err := listDetailed()
	if err == nil && len(detailed) > 0 {
		ports := make([]serialPort, 0, len(detailed))
		for _, d := range detailed {
			p := serialPort{Path: d.Name, USB: d.IsUSB, Product: d.Product, SerialNumber: d.SerialNumber}
			if d.IsUSB {
				p.VIDPID = detection.NormalizeVIDPID(d.VID + ":" + d.PID)
			}
			ports = append(ports, p)
		}
		return ports, nil
	}

	names, err := listPlain()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	ports := make([]serialPort, 0, len(names))
	for _, n := range names {
		ports = append(ports, serialPort{Path: n})
	}
	return ports, nil
}

// probeWithTimeout opens and closes the port once. Some drivers block in open
// while a modem line settles, so the attempt is abandoned after two seconds.
func probeWithTimeout(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- probePort(path) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("open %s: %w", path, detection.ErrDetectionTimeout)
	}
}

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

// Package spi lists the SPI ports periph.io knows about on this host.
package spi

import (
	"context"
	"strconv"
	"strings"

	"github.com/kasmnode/go-knode"
	"github.com/kasmnode/go-knode/detection"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// Swapped in tests.
var (
	hostInit = func() error {
		_, err := host.Init()
		return err
	}
	listRefs = spireg.All
)

type detector struct{}

// New returns the SPI detector.
func New() detection.Detector {
	return &detector{}
}

func init() {
	detection.RegisterDetector(New())
}

func (*detector) Transport() knode.TransportType {
	return knode.TransportSPI
}

// Detect lists registered SPI ports. In Probe mode each port is opened and
// closed again; a port that fails to open stays listed at Low confidence with
// the error in its metadata.
func (*detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	if err := hostInit(); err != nil {
		return nil, err
	}

	var devices []detection.DeviceInfo
	for _, ref := range listRefs() {
		if ctx.Err() != nil {
			return devices, detection.ErrDetectionTimeout
		}
		dev := detection.DeviceInfo{
			Transport:  knode.TransportSPI,
			Path:       ref.Name,
			Name:       "SPI port " + ref.Name,
			Confidence: detection.Low,
			Metadata:   map[string]string{},
		}
		if ref.Number >= 0 {
			dev.Metadata["number"] = strconv.Itoa(ref.Number)
		}
		if len(ref.Aliases) > 0 {
			dev.Metadata["aliases"] = strings.Join(ref.Aliases, ",")
		}
		if opts.Mode == detection.Probe && ref.Open != nil {
			if port, err := ref.Open(); err != nil {
				dev.Metadata["probe_error"] = err.Error()
			} else {
				_ = port.Close()
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

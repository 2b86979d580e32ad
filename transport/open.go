// Copyright 2026 The go-knode Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package transport opens the peripheral transport a channel is configured
// with. The implementations live in the spi, uart and i2c subpackages.
package transport

import (
	"context"
	"fmt"
	"strings"

	"github.com/kasmnode/go-knode"
	"github.com/kasmnode/go-knode/internal/config"
	"github.com/kasmnode/go-knode/transport/i2c"
	"github.com/kasmnode/go-knode/transport/spi"
	"github.com/kasmnode/go-knode/transport/uart"
	"periph.io/x/conn/v3/physic"
	periphspi "periph.io/x/conn/v3/spi"
)

// Open opens the transport of one configured channel, retrying while the
// device reports a transient failure such as EBUSY.
func Open(ctx context.Context, ch *config.ChannelConfig) (knode.Transport, error) {
	t, err := knode.ParseTransportType(ch.Transport)
	if err != nil {
		return nil, err
	}
	return knode.OpenWithRetry(ctx, knode.DefaultRetryConfig(), ch.Name, func() (knode.Transport, error) {
		return newTransport(t, ch)
	})
}

func newTransport(t knode.TransportType, ch *config.ChannelConfig) (knode.Transport, error) {
	switch t {
	case knode.TransportSPI:
		transport, err := spi.New(spi.Config{
			Port:  SPIPortName(ch.Device, ch.Address),
			Speed: physic.Frequency(ch.SpeedHz) * physic.Hertz,
			Mode:  periphspi.Mode(ch.Mode),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create SPI transport: %w", err)
		}
		return transport, nil
	case knode.TransportUART:
		transport, err := uart.New(uart.Config{Port: ch.Device, Baud: ch.Baud, Timeout: ch.Timeout})
		if err != nil {
			return nil, fmt.Errorf("failed to create UART transport: %w", err)
		}
		return transport, nil
	case knode.TransportI2C:
		transport, err := i2c.New(i2c.Config{
			Bus:     ch.Device,
			Address: uint16(ch.Address), //nolint:gosec // validated to 7 bits
			Speed:   physic.Frequency(ch.SpeedHz) * physic.Hertz,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create I2C transport: %w", err)
		}
		return transport, nil
	case knode.TransportMock:
		return knode.NewMockTransport(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported transport type: %s", knode.ErrInvalidConfig, t)
	}
}

// SPIPortName appends the chip select to a bus name that has none, so "SPI0"
// with chip select 1 opens "SPI0.1". Full names are returned unchanged.
func SPIPortName(device string, cs int) string {
	if strings.Contains(device, ".") {
		return device
	}
	return fmt.Sprintf("%s.%d", device, cs)
}

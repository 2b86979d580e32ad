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

package config

import (
	"errors"
	"fmt"

	"github.com/kasmnode/go-knode"
	"github.com/kasmnode/go-knode/internal/rt"
)

// Validate checks the configuration. Every problem is reported, not just the
// first, and each wraps knode.ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{knode.ErrInvalidConfig}, args...)...))
	}

	if c.Listen.Port < 1 || c.Listen.Port > 65535 {
		add("listen.port %d outside [1, 65535]", c.Listen.Port)
	}
	if c.Period <= 0 {
		add("period must be > 0, got %v", c.Period)
	}
	if c.CRC.Polynomial == 0 {
		add("crc.polynomial must be non-zero")
	}
	if c.Events.Queue < 0 {
		add("events.queue must be >= 0, got %d", c.Events.Queue)
	}

	if c.Realtime.Enabled {
		if err := rt.ValidatePriority(c.Realtime.IngressPriority); err != nil {
			add("realtime.ingress_priority: %v", err)
		}
		if err := rt.ValidatePriority(c.Realtime.EgressPriority); err != nil {
			add("realtime.egress_priority: %v", err)
		}
		if c.Realtime.IngressPriority <= c.Realtime.EgressPriority {
			add("realtime.ingress_priority %d must be above egress_priority %d",
				c.Realtime.IngressPriority, c.Realtime.EgressPriority)
		}
	}

	if len(c.Channels) == 0 {
		add("at least one channel is required")
	}
	seen := make(map[string]int, len(c.Channels))
	for i := range c.Channels {
		ch := &c.Channels[i]
		if prev, dup := seen[ch.Name]; dup {
			add("channels[%d]: name %q already used by channels[%d]", i, ch.Name, prev)
		}
		seen[ch.Name] = i
		if err := ch.validate(); err != nil {
			errs = append(errs, fmt.Errorf("channels[%d] (%s): %w", i, ch.Name, err))
		}
	}

	return errors.Join(errs...)
}

func (ch *ChannelConfig) validate() error {
	t, err := knode.ParseTransportType(ch.Transport)
	if err != nil {
		return err
	}
	if ch.Device == "" && t != knode.TransportMock {
		return fmt.Errorf("%w: device is required", knode.ErrInvalidConfig)
	}
	if ch.Timeout < 0 {
		return fmt.Errorf("%w: timeout must be >= 0, got %v", knode.ErrInvalidConfig, ch.Timeout)
	}

	switch t {
	case knode.TransportSPI:
		if ch.Mode < 0 || ch.Mode > 3 {
			return fmt.Errorf("%w: spi mode %d outside [0, 3]", knode.ErrInvalidConfig, ch.Mode)
		}
		if ch.SpeedHz <= 0 {
			return fmt.Errorf("%w: speed_hz must be > 0", knode.ErrInvalidConfig)
		}
	case knode.TransportUART:
		if ch.Baud <= 0 {
			return fmt.Errorf("%w: baud must be > 0", knode.ErrInvalidConfig)
		}
	case knode.TransportI2C:
		if ch.Address < 1 || ch.Address > 0x7F {
			return fmt.Errorf("%w: i2c address 0x%02X outside 7-bit range", knode.ErrInvalidConfig, ch.Address)
		}
	case knode.TransportMock:
	}
	return nil
}

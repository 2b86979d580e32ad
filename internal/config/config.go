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

// Package config loads the node configuration from YAML.
package config

import (
	"fmt"
	"net"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/kasmnode/go-knode"
	"github.com/kasmnode/go-knode/clock"
	"gopkg.in/yaml.v3"
)

// Defaults applied by Default and to every channel that leaves a field unset.
const (
	DefaultListenPort      = 2345
	DefaultIngressPriority = 81
	DefaultEgressPriority  = 80
	DefaultSPISpeed        = 5_000_000
	DefaultBaud            = 115200
	DefaultI2CAddress      = 0x24
)

// Config is the complete node configuration.
type Config struct {
	Journal   JournalConfig   `yaml:"journal"`
	Listen    ListenConfig    `yaml:"listen"`
	Channels  []ChannelConfig `yaml:"channels"`
	Realtime  RealtimeConfig  `yaml:"realtime"`
	Events    EventsConfig    `yaml:"events"`
	Period    time.Duration   `yaml:"period"`
	CRC       CRCConfig       `yaml:"crc"`
	VerifyCRC bool            `yaml:"verify_crc"`
}

// ListenConfig is the inbound datagram socket.
type ListenConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Echo bool   `yaml:"echo"`
}

// CRCConfig selects the checksum parameters.
type CRCConfig struct {
	Polynomial uint16 `yaml:"polynomial"`
	Init       uint16 `yaml:"init"`
}

// RealtimeConfig controls memory locking and worker thread priorities.
type RealtimeConfig struct {
	IngressPriority     int  `yaml:"ingress_priority"`
	EgressPriority      int  `yaml:"egress_priority"`
	Enabled             bool `yaml:"enabled"`
	LockMemory          bool `yaml:"lock_memory"`
	// PriorityInheritance backs the slots with PI futexes. It defaults to on
	// where the platform has them, since the ingress and egress workers run
	// at different priorities.
	PriorityInheritance bool `yaml:"priority_inheritance"`
}

// ChannelConfig describes one peripheral channel.
type ChannelConfig struct {
	Name      string        `yaml:"name"`
	Transport string        `yaml:"transport"` // spi, uart or i2c
	Device    string        `yaml:"device"`
	Address   int           `yaml:"address"` // SPI chip select or I2C address
	SpeedHz   int64         `yaml:"speed_hz"`
	Mode      int           `yaml:"mode"`
	Baud      int           `yaml:"baud"`
	Timeout   time.Duration `yaml:"timeout"`
}

// JournalConfig enables the SQLite event journal when Path is set.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// EventsConfig sizes the diagnostic event queue.
type EventsConfig struct {
	Queue int `yaml:"queue"`
}

// Default returns the configuration used when no file is given. It has no
// channels; at least one must be configured before the node can start.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: DefaultListenPort},
		Period: clock.DefaultPeriod,
		CRC: CRCConfig{
			Polynomial: knode.CRC16DNP.Polynomial,
			Init:       knode.CRC16DNP.Init,
		},
		Realtime: RealtimeConfig{
			Enabled:             true,
			LockMemory:          true,
			IngressPriority:     DefaultIngressPriority,
			EgressPriority:      DefaultEgressPriority,
			PriorityInheritance: runtime.GOOS == "linux",
		},
		VerifyCRC: true,
		Events:    EventsConfig{Queue: knode.DefaultEventQueue},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyChannelDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyChannelDefaults() {
	for i := range c.Channels {
		ch := &c.Channels[i]
		if ch.Name == "" {
			ch.Name = fmt.Sprintf("ch%d", i)
		}
		switch knode.TransportType(ch.Transport) {
		case knode.TransportSPI:
			if ch.SpeedHz == 0 {
				ch.SpeedHz = DefaultSPISpeed
			}
		case knode.TransportUART:
			if ch.Baud == 0 {
				ch.Baud = DefaultBaud
			}
		case knode.TransportI2C:
			if ch.Address == 0 {
				ch.Address = DefaultI2CAddress
			}
		case knode.TransportMock:
		}
	}
}

// ListenAddr returns the host:port the node binds.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Listen.Host, strconv.Itoa(c.Listen.Port))
}

// CRCParams returns the checksum parameters.
func (c *Config) CRCParams() knode.CRCParams {
	return knode.CRCParams{Polynomial: c.CRC.Polynomial, Init: c.CRC.Init}
}

// ChannelNames returns the channel names in configuration order.
func (c *Config) ChannelNames() []string {
	names := make([]string, len(c.Channels))
	for i, ch := range c.Channels {
		names[i] = ch.Name
	}
	return names
}

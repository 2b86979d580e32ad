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

package testing

import (
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/kasmnode/go-knode"
)

// JitterConfig configures JitteryTransport and JitteryConnection.
type JitterConfig struct {
	// MaxLatency is the upper bound of the random delay added to each call.
	MaxLatency time.Duration
	// FailureRate is the probability in [0, 1] that a transfer fails.
	FailureRate float64
	// StallAfter makes the transfer with this 1-based index block for
	// StallDuration. Zero disables the stall.
	StallAfter    int
	StallDuration time.Duration
	// FragmentMinBytes is the smallest read a JitteryConnection returns.
	FragmentMinBytes int
	Seed             uint64
	FragmentReads    bool
}

func newRand(seed uint64) *rand.Rand {
	if seed != 0 {
		return rand.New(rand.NewPCG(seed, seed^0xDEADBEEF)) //nolint:gosec // Test code, not crypto
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) //nolint:gosec // Test code, not crypto
}

// JitteryTransport wraps a knode.Transport to simulate a bus with variable
// transfer time, occasional failures and one long stall.
type JitteryTransport struct {
	backend knode.Transport
	rng     *rand.Rand
	config  JitterConfig
	calls   int
	failed  int
	mu      sync.Mutex
}

// NewJitteryTransport wraps backend with jitter simulation.
func NewJitteryTransport(backend knode.Transport, config JitterConfig) *JitteryTransport {
	return &JitteryTransport{backend: backend, config: config, rng: newRand(config.Seed)}
}

// Transfer implements knode.Transport.
func (j *JitteryTransport) Transfer(tx []byte) ([]byte, error) {
	j.mu.Lock()
	j.calls++
	var delay time.Duration
	if j.config.MaxLatency > 0 {
		delay = time.Duration(j.rng.Int64N(int64(j.config.MaxLatency) + 1))
	}
	if j.config.StallAfter > 0 && j.calls == j.config.StallAfter {
		delay += j.config.StallDuration
	}
	fail := j.config.FailureRate > 0 && j.rng.Float64() < j.config.FailureRate
	if fail {
		j.failed++
	}
	j.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		return nil, knode.NewTransferError("Transfer", "jittery", io.ErrUnexpectedEOF)
	}
	return j.backend.Transfer(tx) //nolint:wrapcheck // Pass-through wrapper
}

// Close implements knode.Transport.
func (j *JitteryTransport) Close() error {
	return j.backend.Close() //nolint:wrapcheck // Pass-through wrapper
}

// IsConnected implements knode.Transport.
func (j *JitteryTransport) IsConnected() bool {
	return j.backend.IsConnected()
}

// Type implements knode.Transport.
func (j *JitteryTransport) Type() knode.TransportType {
	return j.backend.Type()
}

// Injected returns how many transfers were failed on purpose.
func (j *JitteryTransport) Injected() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.failed
}

// JitteryConnection wraps an io.ReadWriter to simulate a USB-UART bridge that
// delivers replies late and in fragments. It buffers backend reads so
// fragmentation never loses data.
type JitteryConnection struct {
	backend io.ReadWriter
	rng     *rand.Rand
	readBuf []byte
	config  JitterConfig
}

// NewJitteryConnection wraps backend with jitter simulation.
func NewJitteryConnection(backend io.ReadWriter, config JitterConfig) *JitteryConnection {
	if config.FragmentMinBytes < 1 {
		config.FragmentMinBytes = 1
	}
	return &JitteryConnection{
		backend: backend,
		config:  config,
		rng:     newRand(config.Seed),
		readBuf: make([]byte, 0, 256),
	}
}

// Write passes writes through to the backend without modification.
func (j *JitteryConnection) Write(data []byte) (int, error) {
	return j.backend.Write(data) //nolint:wrapcheck // Pass-through wrapper
}

// Read returns a random-length prefix of what the backend has produced.
func (j *JitteryConnection) Read(buf []byte) (int, error) {
	if j.config.MaxLatency > 0 {
		time.Sleep(time.Duration(j.rng.Int64N(int64(j.config.MaxLatency) + 1)))
	}

	if len(j.readBuf) == 0 {
		tmp := make([]byte, 256)
		n, err := j.backend.Read(tmp)
		if err != nil {
			return 0, err //nolint:wrapcheck // Pass-through wrapper
		}
		j.readBuf = append(j.readBuf, tmp[:n]...)
	}
	if len(j.readBuf) == 0 {
		return 0, nil
	}

	n := min(len(j.readBuf), len(buf))
	if j.config.FragmentReads && n > j.config.FragmentMinBytes {
		n = j.config.FragmentMinBytes + j.rng.IntN(n-j.config.FragmentMinBytes+1)
	}
	copy(buf, j.readBuf[:n])
	j.readBuf = j.readBuf[n:]
	return n, nil
}

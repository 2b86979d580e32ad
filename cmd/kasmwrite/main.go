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

// Command kasmwrite sends one command frame straight to a peripheral, bypassing
// the node, and reports whether the bytes clocked back match what was sent.
// Every field holds a small random value except the one selected by -index.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"time"

	"github.com/kasmnode/go-knode"
	"github.com/kasmnode/go-knode/internal/config"
	"github.com/kasmnode/go-knode/transport"
)

// errEchoMismatch is returned when the reply differs from the frame sent.
var errEchoMismatch = errors.New("echo does not match transmitted frame")

type options struct {
	channel config.ChannelConfig
	index   int
	value   int
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	o := &options{}
	var speed int64
	fs := flag.NewFlagSet("kasmwrite", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVar(&o.index, "index", 0, fmt.Sprintf("Command field to set (0-%d)", knode.FrameWords-2))
	fs.IntVar(&o.value, "value", 0, fmt.Sprintf("Command value (%d to %d)", knode.MinCommandValue, knode.MaxCommandValue))
	fs.StringVar(&o.channel.Transport, "transport", string(knode.TransportSPI), "Transport type (spi, uart, i2c)")
	fs.StringVar(&o.channel.Device, "device", "SPI1.2", "Device path or periph port name")
	fs.IntVar(&o.channel.Address, "address", config.DefaultI2CAddress, "I2C address")
	fs.Int64Var(&speed, "speed", config.DefaultSPISpeed, "SPI or I2C clock in Hz")
	fs.IntVar(&o.channel.Mode, "mode", 0, "SPI mode")
	fs.IntVar(&o.channel.Baud, "baud", config.DefaultBaud, "UART baud rate")
	fs.BoolFunc("debug", "Enable debug output", func(string) error {
		knode.SetDebugEnabled(true)
		return nil
	})
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	o.channel.Name = "kasmwrite"
	o.channel.SpeedHz = speed

	if o.index < 0 || o.index > knode.FrameWords-2 {
		return nil, fmt.Errorf("%w: index %d must be between 0 and %d",
			knode.ErrInvalidConfig, o.index, knode.FrameWords-2)
	}
	if o.value < knode.MinCommandValue || o.value > knode.MaxCommandValue {
		return nil, fmt.Errorf("%w: value %d must be between %d and %d",
			knode.ErrInvalidConfig, o.value, knode.MinCommandValue, knode.MaxCommandValue)
	}
	return o, nil
}

// buildFrame fills every command field with a small random value, sets field
// index to value and appends the CRC.
func buildFrame(rng *rand.Rand, crc knode.CRCParams, index, value int) knode.Frame {
	var f knode.Frame
	for i := range knode.FrameWords - 1 {
		f[i] = int16(rng.IntN(256)) //nolint:gosec // bounded above
	}
	f[index] = knode.ClampCommand(value)
	crc.Append(&f)
	return f
}

// writeFrame performs one transfer of f in native order and compares the reply.
func writeFrame(t knode.Transport, f *knode.Frame) (reply []byte, err error) {
	var tx [knode.FrameSize]byte
	f.MarshalNative(&tx)
	rx, err := t.Transfer(tx[:])
	if err != nil {
		return nil, err
	}
	reply = append([]byte(nil), rx...)
	if string(reply) != string(tx[:]) {
		return reply, errEchoMismatch
	}
	return reply, nil
}

func main() {
	os.Exit(mainWithExitCode(os.Args[1:], os.Stdout, os.Stderr))
}

func mainWithExitCode(args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), knode.OpenRetryTimeout)
	defer cancel()
	t, err := transport.Open(ctx, &o.channel)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer func() { _ = t.Close() }()

	now := uint64(time.Now().UnixNano()) //nolint:gosec // seed only
	rng := rand.New(rand.NewPCG(now, now>>32))
	return run(t, rng, o.index, o.value, stdout, stderr)
}

func run(t knode.Transport, rng *rand.Rand, index, value int, stdout, stderr io.Writer) int {
	f := buildFrame(rng, knode.CRC16DNP, index, value)
	_, _ = fmt.Fprintln(stdout, "TX:", f.Fields())

	reply, err := writeFrame(t, &f)
	if reply != nil {
		_, _ = fmt.Fprintf(stdout, "RX: % x\n", reply)
	}
	switch {
	case errors.Is(err, errEchoMismatch):
		_, _ = fmt.Fprintln(stdout, "Echo: mismatch")
		return 1
	case err != nil:
		if trace := knode.GetTrace(err); trace != nil {
			_, _ = fmt.Fprintln(stderr, trace.FormatTrace())
		}
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(stdout, "Echo: ok")
	return 0
}

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

// Command rtcsim stands in for the real-time controller: it sends a command
// frame of small random values to a node on a fixed absolute schedule and
// counts the deadlines it missed itself.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kasmnode/go-knode"
	"github.com/kasmnode/go-knode/clock"
	"github.com/kasmnode/go-knode/internal/rt"
	"github.com/kasmnode/go-knode/transport/udp"
)

const (
	defaultAddr     = "127.0.0.1:2345"
	defaultPeriod   = time.Millisecond
	defaultPriority = 81
)

type options struct {
	addr       string
	period     time.Duration
	count      uint64
	priority   int
	noRealtime bool
}

// sender is the part of udp.Sender the loop needs.
type sender interface {
	Send(f *knode.Frame) error
}

type stats struct {
	Sent       uint64
	Failed     uint64
	Missed     uint64
	MaxOverrun time.Duration
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("rtcsim", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.addr, "addr", defaultAddr, "Node address (host:port)")
	fs.DurationVar(&o.period, "period", defaultPeriod, "Send period")
	fs.Uint64Var(&o.count, "count", 0, "Frames to send (0 runs until interrupted)")
	fs.IntVar(&o.priority, "priority", defaultPriority, "SCHED_FIFO priority of the sending thread")
	fs.BoolVar(&o.noRealtime, "no-realtime", false, "Run without memory locking or real-time priority")
	fs.BoolFunc("debug", "Enable debug output", func(string) error {
		knode.SetDebugEnabled(true)
		return nil
	})
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.period <= 0 {
		return nil, fmt.Errorf("%w: period must be > 0, got %v", knode.ErrInvalidConfig, o.period)
	}
	if !o.noRealtime {
		if err := rt.ValidatePriority(o.priority); err != nil {
			return nil, fmt.Errorf("%w: %w", knode.ErrInvalidConfig, err)
		}
	}
	return o, nil
}

// fillRandom sets every command field to a value in [0, 256).
func fillRandom(rng *rand.Rand, f *knode.Frame) {
	for i := range knode.FrameWords - 1 {
		f[i] = int16(rng.IntN(256)) //nolint:gosec // bounded above
	}
}

// simulate sends one frame per period until ctx ends or count frames have
// been sent. Send failures are counted and the schedule continues.
func simulate(ctx context.Context, s sender, clk clock.Clock, rng *rand.Rand, period time.Duration, count uint64, logger *slog.Logger) stats {
	var st stats
	var f knode.Frame
	sched := clock.NewSchedule(clk.Now(), period)

	for count == 0 || st.Sent+st.Failed < count {
		if ctx.Err() != nil {
			break
		}
		fillRandom(rng, &f)
		if err := s.Send(&f); err != nil {
			st.Failed++
			logger.Warn("send failed", slog.Any("error", err))
		} else {
			st.Sent++
		}

		deadline, miss, missed := sched.Advance(clk.Now())
		if missed {
			st.Missed++
			st.MaxOverrun = max(st.MaxOverrun, miss.Overrun)
			logger.Debug("deadline missed", slog.Duration("overrun", miss.Overrun))
		}
		clk.SleepUntil(deadline)
	}
	return st
}

func main() {
	os.Exit(mainWithExitCode(os.Args[1:]))
}

func mainWithExitCode(args []string) int {
	o, err := parseFlags(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	level := slog.LevelInfo
	if knode.DebugEnabled() {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := udp.Dial(o.addr)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer func() { _ = s.Close() }()

	_, _ = fmt.Printf("Starting RTC simulation to %s every %v\n", o.addr, o.period)

	done := make(chan stats, 1)
	setupErr := make(chan error, 1)
	go func() {
		if !o.noRealtime {
			if err := enterRealtime(o.priority); err != nil {
				setupErr <- err
				return
			}
		}
		setupErr <- nil
		now := uint64(time.Now().UnixNano()) //nolint:gosec // seed only
		done <- simulate(ctx, s, clock.System(), rand.New(rand.NewPCG(now, now>>32)), o.period, o.count, logger)
	}()
	if err := <-setupErr; err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v (run with -no-realtime)\n", err)
		return 1
	}

	st := <-done
	_, _ = fmt.Printf("sent=%d failed=%d missed=%d max_overrun=%v\n", st.Sent, st.Failed, st.Missed, st.MaxOverrun)
	return 0
}

// enterRealtime locks memory and raises the calling thread to SCHED_FIFO.
func enterRealtime(priority int) error {
	if err := rt.LockMemory(); err != nil {
		return err
	}
	if err := rt.EnterRealtime(priority); err != nil {
		return err
	}
	if info, err := rt.Current(); err == nil {
		knode.Debugf("rtcsim: %s", info)
	}
	return nil
}

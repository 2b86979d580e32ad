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

// Command knode runs the real-time control node: it polls a UDP socket for
// command frames on a fixed period and delivers each one to every configured
// peripheral channel.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kasmnode/go-knode"
	"github.com/kasmnode/go-knode/internal/config"
	"github.com/kasmnode/go-knode/internal/syncutil"
)

const stopTimeout = 2 * time.Second

type flags struct {
	configPath  string
	sessionLog  string
	period      time.Duration
	lockTimeout time.Duration
	port        int
	debug       bool
	listDevices bool
	noRealtime  bool
}

func parseFlags(args []string, stderr io.Writer) (*flags, error) {
	f := &flags{}
	fs := flag.NewFlagSet("knode", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.configPath, "config", "", "YAML configuration file")
	fs.IntVar(&f.port, "port", 0, "UDP listen port (overrides listen.port)")
	fs.DurationVar(&f.period, "period", 0, "Ingress period (overrides period)")
	fs.BoolVar(&f.debug, "debug", false, "Enable debug output")
	fs.StringVar(&f.sessionLog, "session-log", "", "Directory for a timestamped session log")
	fs.BoolVar(&f.listDevices, "list-devices", false, "List detected SPI, I2C and serial ports and exit")
	fs.BoolVar(&f.noRealtime, "no-realtime", false, "Run without memory locking or real-time priorities")
	fs.DurationVar(&f.lockTimeout, "lock-timeout", 0,
		"Report slot locks held longer than this (builds with -tags=deadlock only)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if f.lockTimeout < 0 {
		err := fmt.Errorf("-lock-timeout must be >= 0, got %v", f.lockTimeout)
		_, _ = fmt.Fprintln(stderr, err)
		return nil, err
	}
	return f, nil
}

// loadConfig reads the configuration file, applies flag overrides and
// validates the result.
func loadConfig(f *flags) (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if f.port != 0 {
		cfg.Listen.Port = f.port
	}
	if f.period != 0 {
		cfg.Period = f.period
	}
	if f.noRealtime {
		cfg.Realtime.Enabled = false
		cfg.Realtime.LockMemory = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func main() {
	os.Exit(mainWithExitCode(os.Args[1:]))
}

func mainWithExitCode(args []string) int {
	f, err := parseFlags(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if f.debug {
		knode.SetDebugEnabled(true)
	}
	if f.lockTimeout > 0 {
		if !syncutil.DeadlockDetection {
			_, _ = fmt.Fprintln(os.Stderr, "Warning: -lock-timeout has no effect without -tags=deadlock")
		}
		syncutil.SetLockTimeout(f.lockTimeout)
	}
	if f.sessionLog != "" {
		path, logErr := knode.InitSessionLog(f.sessionLog)
		if logErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", logErr)
			return 1
		}
		_, _ = fmt.Fprintf(os.Stderr, "Session log: %s\n", path)
		defer func() { _ = knode.CloseSessionLog() }()
	}

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if f.listDevices {
		if err := listDevices(ctx, os.Stdout); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	cfg, err := loadConfig(f)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logger := newLogger(os.Stderr, f.debug)
	if err := run(ctx, cfg, logger, os.Stdout); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	if cfg.Realtime.Enabled && cfg.Realtime.LockMemory {
		if err := lockMemory(); err != nil {
			return err
		}
	}

	a, err := setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.close(); closeErr != nil {
			logger.Warn("shutdown", slog.Any("error", closeErr))
		}
	}()

	logger.Info("knode running",
		slog.String("listen", a.listener.Addr().String()),
		slog.Int("channels", len(cfg.Channels)),
		slog.Duration("period", cfg.Period))

	if err := a.serve(ctx); err != nil {
		return err
	}
	printStats(out, a.node.Stats())
	return nil
}

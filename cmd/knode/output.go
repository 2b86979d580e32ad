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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/kasmnode/go-knode/detection"
	_ "github.com/kasmnode/go-knode/detection/i2c"
	_ "github.com/kasmnode/go-knode/detection/spi"
	_ "github.com/kasmnode/go-knode/detection/uart"
	"github.com/kasmnode/go-knode/pipeline"
)

func listDevices(ctx context.Context, out io.Writer) error {
	opts := detection.DefaultOptions()
	devices, err := detection.DetectAll(ctx, &opts)
	if errors.Is(err, detection.ErrNoDevicesFound) {
		_, _ = fmt.Fprintln(out, "No devices found")
		return nil
	}
	if err != nil {
		return fmt.Errorf("device detection: %w", err)
	}
	printDevices(out, devices)
	return nil
}

func printDevices(out io.Writer, devices []detection.DeviceInfo) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TRANSPORT\tPATH\tNAME\tCONFIDENCE")
	for _, d := range devices {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Transport, d.Path, d.Name, d.Confidence)
	}
	_ = tw.Flush()
}

func printStats(out io.Writer, st pipeline.Stats) {
	in := st.Ingress
	_, _ = fmt.Fprintf(out, "ingress: iterations=%d frames=%d missed=%d max_overrun=%v receive_errors=%d size_mismatches=%d\n",
		in.Iterations, in.Frames, in.MissedDeadlines, in.MaxOverrun, in.ReceiveErrors, in.SizeMismatches)
	for i, ch := range st.Channels {
		_, _ = fmt.Fprintf(out, "channel %d (%s): transfers=%d failures=%d crc_failures=%d overwrites=%d max_latency=%v\n",
			i, ch.Name, ch.Transfers, ch.Failures, ch.CRCFailures, ch.Overwrites, ch.MaxLatency)
	}
}

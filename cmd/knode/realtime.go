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
	"errors"
	"fmt"

	"github.com/kasmnode/go-knode"
	"github.com/kasmnode/go-knode/internal/config"
	"github.com/kasmnode/go-knode/internal/rt"
	"github.com/kasmnode/go-knode/pipeline"
)

func lockMemory() error {
	if err := rt.LockMemory(); err != nil {
		if errors.Is(err, rt.ErrNotSupported) {
			return fmt.Errorf("%w (run with -no-realtime)", err)
		}
		return knode.NewInitError("mlockall", "", err)
	}
	knode.Debugln("knode: memory locked")
	return nil
}

// threadSetup moves each worker onto its own OS thread at the configured
// SCHED_FIFO priority. The ingress worker runs above every egress worker.
func threadSetup(rc config.RealtimeConfig) pipeline.ThreadSetup {
	return func(role pipeline.Role, channel int) error {
		priority := rc.EgressPriority
		if role == pipeline.RoleIngress {
			priority = rc.IngressPriority
		}
		if err := rt.EnterRealtime(priority); err != nil {
			return err
		}
		if knode.DebugEnabled() {
			if info, err := rt.Current(); err == nil {
				knode.Debugf("knode: %s %d: %s", role, channel, info)
			}
		}
		return nil
	}
}

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

package knode

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Debug output is for setup and shutdown paths. Worker loops report through
// a Reporter instead, since these functions take a mutex and do I/O.
var (
	debugMu      sync.Mutex
	debugEnabled = os.Getenv("KNODE_DEBUG") != "" || os.Getenv("DEBUG") != ""
	debugConsole io.Writer = os.Stderr
)

// Debugf prints debug information.
// Always writes to the session log file (if initialized) with a timestamp.
// Only prints to the console when debug mode is enabled.
func Debugf(format string, args ...any) {
	writeDebug(fmt.Sprintf(format, args...))
}

// Debugln is Debugf with fmt.Sprint formatting.
func Debugln(args ...any) {
	writeDebug(fmt.Sprint(args...))
}

func writeDebug(message string) {
	debugMu.Lock()
	defer debugMu.Unlock()

	if sessionLogWriter != nil {
		timestamp := time.Now().Format("15:04:05.000")
		_, _ = fmt.Fprintf(sessionLogWriter, "%s DEBUG: %s\n", timestamp, message)
	}
	if debugEnabled {
		_, _ = fmt.Fprintf(debugConsole, "DEBUG: %s\n", message)
	}
}

// SetDebugEnabled allows programmatic control of debug logging
func SetDebugEnabled(enabled bool) {
	debugMu.Lock()
	debugEnabled = enabled
	debugMu.Unlock()
}

// DebugEnabled reports whether console debug output is on.
func DebugEnabled() bool {
	debugMu.Lock()
	defer debugMu.Unlock()
	return debugEnabled
}

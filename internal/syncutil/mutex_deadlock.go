//go:build deadlock

// Package syncutil provides the lock types shared by the workers. Slot locks
// are either plain mutexes, optionally deadlock-checked, or priority
// inheriting futex locks on Linux.
// This file is compiled when building with -tags=deadlock.
package syncutil

import (
	"sync"
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

// DeadlockDetection reports whether this build checks lock ordering.
const DeadlockDetection = true

// Mutex wraps deadlock.Mutex for deadlock detection.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex wraps deadlock.RWMutex for deadlock detection.
type RWMutex struct {
	deadlock.RWMutex
}

// SetLockTimeout sets how long a lock may be waited on before the detector
// reports a probable deadlock. Slot locks are held for a copy and a CRC, so
// anything near a millisecond is already suspicious.
func SetLockTimeout(d time.Duration) {
	deadlock.Opts.DeadlockTimeout = d
}

func newPlainLocker() sync.Locker {
	return &Mutex{}
}

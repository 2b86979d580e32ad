//go:build !deadlock

// Package syncutil provides the lock types shared by the workers. Slot locks
// are either plain mutexes, optionally deadlock-checked, or priority
// inheriting futex locks on Linux.
// By default, standard sync.Mutex and sync.RWMutex are used with zero overhead.
// Build with -tags=deadlock to enable deadlock detection via github.com/sasha-s/go-deadlock.
package syncutil

import (
	"sync"
	"time"
)

// DeadlockDetection reports whether this build checks lock ordering.
const DeadlockDetection = false

// Mutex wraps sync.Mutex. Build with -tags=deadlock for deadlock detection.
//
//nolint:gocritic // Intentionally embedding sync.Mutex to expose its interface
type Mutex struct {
	sync.Mutex
}

// RWMutex wraps sync.RWMutex. Build with -tags=deadlock for deadlock detection.
//
//nolint:gocritic // Intentionally embedding sync.RWMutex to expose its interface
type RWMutex struct {
	sync.RWMutex
}

// SetLockTimeout is a no-op without the deadlock build tag.
func SetLockTimeout(time.Duration) {}

func newPlainLocker() sync.Locker {
	return &Mutex{}
}

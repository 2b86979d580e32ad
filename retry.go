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
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// Peripheral open retry defaults. Only startup retries; once the workers are
// running a failed iteration is reported and the next deadline is the retry.
const (
	// DefaultOpenAttempts is the number of attempts to open a device.
	DefaultOpenAttempts = 3
	// OpenInitialBackoff is the delay after the first failed open.
	OpenInitialBackoff = 100 * time.Millisecond
	// OpenMaxBackoff caps the delay between open attempts.
	OpenMaxBackoff = 500 * time.Millisecond
	// OpenBackoffMultiplier is the exponential backoff multiplier.
	OpenBackoffMultiplier = 2.0
	// OpenJitter is the random jitter factor (0.0-1.0).
	OpenJitter = 0.1
	// OpenRetryTimeout bounds all attempts together.
	OpenRetryTimeout = 10 * time.Second
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (0 = single attempt)
	MaxAttempts int
	// InitialBackoff is the initial backoff duration
	InitialBackoff time.Duration
	// MaxBackoff is the maximum backoff duration
	MaxBackoff time.Duration
	// BackoffMultiplier is the factor by which the backoff increases
	BackoffMultiplier float64
	// Jitter adds randomness to backoff so several channels opening the same
	// bus do not retry in lockstep
	Jitter float64
	// RetryTimeout is the overall timeout for all retry attempts
	RetryTimeout time.Duration
}

// DefaultRetryConfig returns the startup open policy.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       DefaultOpenAttempts,
		InitialBackoff:    OpenInitialBackoff,
		MaxBackoff:        OpenMaxBackoff,
		BackoffMultiplier: OpenBackoffMultiplier,
		Jitter:            OpenJitter,
		RetryTimeout:      OpenRetryTimeout,
	}
}

// OpenWithRetry calls open until it succeeds, returns a non-retryable error,
// or the policy is exhausted. name is used for debug output only.
func OpenWithRetry[T any](ctx context.Context, config *RetryConfig, name string, open func() (T, error)) (T, error) {
	var result T
	err := RetryWithConfig(ctx, config, name, func() error {
		v, err := open()
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

// RetryWithConfig executes fn with retry logic. Only errors for which
// IsRetryable is true are retried.
func RetryWithConfig(ctx context.Context, config *RetryConfig, name string, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.MaxAttempts <= 0 {
		return fn()
	}

	if config.RetryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.RetryTimeout)
		defer cancel()
	}

	var lastErr error
	backoff := config.InitialBackoff
	for attempt := range config.MaxAttempts {
		if ctx.Err() != nil {
			if lastErr != nil {
				return lastErr
			}
			return fmt.Errorf("retry context cancelled: %w", ctx.Err())
		}

		err := fn()
		if err == nil {
			if attempt > 0 {
				Debugf("%s: succeeded on attempt %d", name, attempt+1)
			}
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		lastErr = err

		if attempt == config.MaxAttempts-1 {
			break
		}
		sleep := jittered(backoff, config.Jitter)
		Debugf("%s: attempt %d failed (retrying after %v): %v", name, attempt+1, sleep, err)
		if !sleepContext(ctx, sleep) {
			return lastErr
		}
		backoff = nextBackoff(backoff, config)
	}

	return lastErr
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextBackoff(backoff time.Duration, config *RetryConfig) time.Duration {
	next := time.Duration(float64(backoff) * config.BackoffMultiplier)
	if config.MaxBackoff > 0 && next > config.MaxBackoff {
		return config.MaxBackoff
	}
	return next
}

func jittered(base time.Duration, factor float64) time.Duration {
	if factor <= 0 {
		return base
	}
	return base + time.Duration(rand.Float64()*factor*float64(base)) //nolint:gosec // Jitter, not crypto
}

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

package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/kasmnode/go-knode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "events.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestOpen_EmptyPath(t *testing.T) {
	t.Parallel()
	_, err := Open("", nil)
	require.ErrorIs(t, err, knode.ErrInvalidConfig)
}

func TestJournal_PersistsDiagnosticEvents(t *testing.T) {
	t.Parallel()

	j := openTemp(t)
	assert.Len(t, j.RunID(), 36)

	j.Report(knode.Event{Kind: knode.EventDeadlineMissed, Channel: -1, Overrun: 250 * time.Microsecond})
	j.Report(knode.Event{Kind: knode.EventCRCFailure, Channel: 2, CRC: 0x1234})
	j.Report(knode.Event{Kind: knode.EventTransferFailed, Channel: 1, Err: errors.New("bus fault")})
	j.Report(knode.Event{Kind: knode.EventDeadlineMissed, Channel: -1, Overrun: time.Millisecond})

	n, err := j.Count(knode.EventDeadlineMissed)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	recs, err := j.Recent(10)
	require.NoError(t, err)
	require.Len(t, recs, 4)
	assert.Equal(t, "deadline_missed", recs[0].Kind)
	assert.Equal(t, time.Millisecond, recs[0].Overrun())
	assert.Equal(t, "bus fault", recs[1].Error)
	assert.Equal(t, 1, recs[1].Channel)
	assert.Equal(t, uint16(0x1234), recs[2].CRC)
	assert.False(t, recs[3].At.IsZero())
	assert.Zero(t, j.Failed())
}

func TestJournal_SkipsPerFrameEvents(t *testing.T) {
	t.Parallel()

	j := openTemp(t)
	j.Report(knode.Event{Kind: knode.EventFrameReceived, Size: knode.PayloadSize})
	j.Report(knode.Event{Kind: knode.EventTransferDone, Latency: time.Microsecond})

	recs, err := j.Recent(5)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestJournal_RunsAreSeparate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "events.db")
	first, err := Open(path, nil)
	require.NoError(t, err)
	first.Report(knode.Event{Kind: knode.EventSizeMismatch, Size: 3})
	require.NoError(t, first.Close())

	second, err := Open(path, nil)
	require.NoError(t, err)
	defer second.Close()
	assert.NotEqual(t, first.RunID(), second.RunID())

	n, err := second.Count(knode.EventSizeMismatch)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestJournal_BehindDispatcher(t *testing.T) {
	t.Parallel()

	j := openTemp(t)
	d := knode.NewDispatcher(8, j)
	for range 5 {
		d.Report(knode.Event{Kind: knode.EventSlotOverwrite, Channel: 0})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))

	n, err := j.Count(knode.EventSlotOverwrite)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestJournal_ReportAfterClose(t *testing.T) {
	t.Parallel()

	j := openTemp(t)
	require.NoError(t, j.Close())
	require.NoError(t, j.Close())

	j.Report(knode.Event{Kind: knode.EventReceiveError})
	assert.Equal(t, uint64(1), j.Failed())

	recs, err := j.Recent(0)
	require.NoError(t, err)
	assert.Nil(t, recs)
}

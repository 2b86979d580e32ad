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

// Package journal persists node diagnostic events to SQLite.
package journal

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kasmnode/go-knode"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite" // pure Go driver registered as "sqlite"
)

// Record is one persisted event.
type Record struct {
	At        time.Time `gorm:"index"`
	RunID     string    `gorm:"size:36;index"`
	Kind      string    `gorm:"size:32;index"`
	Error     string
	ID        uint `gorm:"primaryKey"`
	Channel   int
	Size      int
	OverrunNS int64
	LatencyNS int64
	CRC       uint16
}

// TableName keeps the table name stable across struct renames.
func (Record) TableName() string { return "events" }

// Overrun returns the stored overrun.
func (r *Record) Overrun() time.Duration { return time.Duration(r.OverrunNS) }

// Latency returns the stored transfer latency.
func (r *Record) Latency() time.Duration { return time.Duration(r.LatencyNS) }

// Journal is a knode.Reporter writing to SQLite. Report performs a blocking
// insert, so it belongs behind a knode.Dispatcher and never on a worker
// thread directly. Per-frame kinds (frame received, transfer done) are not
// persisted.
type Journal struct {
	db     *gorm.DB
	runID  string
	failed atomic.Uint64
	closed atomic.Bool
}

// Open creates or opens the database at path and starts a new run. log
// receives gorm warnings; nil silences them.
func Open(path string, log *slog.Logger) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: journal path is empty", knode.ErrInvalidConfig)
	}

	gormLog := logger.Default.LogMode(logger.Silent)
	if log != nil {
		gormLog = logger.New(
			slog.NewLogLogger(log.Handler(), slog.LevelWarn),
			logger.Config{
				LogLevel:                  logger.Warn,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		)
	}

	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: path}, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	// A single writer connection: inserts only ever come from the dispatcher.
	sqlDB.SetMaxOpenConns(1)

	if err := configureSQLite(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}

	j := &Journal{db: db, runID: uuid.NewString()}
	knode.Debugf("journal: %s run %s", path, j.runID)
	return j, nil
}

func configureSQLite(sqlDB *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=memory",
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			return fmt.Errorf("journal: %s: %w", p, err)
		}
	}
	return nil
}

// RunID identifies the events written by this Journal.
func (j *Journal) RunID() string {
	return j.runID
}

// Failed returns how many inserts failed.
func (j *Journal) Failed() uint64 {
	return j.failed.Load()
}

// Report implements knode.Reporter.
func (j *Journal) Report(ev knode.Event) {
	if ev.Kind == knode.EventFrameReceived || ev.Kind == knode.EventTransferDone {
		return
	}
	if j.closed.Load() {
		j.failed.Add(1)
		return
	}

	rec := Record{
		RunID:     j.runID,
		At:        ev.At,
		Kind:      ev.Kind.String(),
		Channel:   ev.Channel,
		Size:      ev.Size,
		OverrunNS: int64(ev.Overrun),
		LatencyNS: int64(ev.Latency),
		CRC:       ev.CRC,
	}
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	if ev.Err != nil {
		rec.Error = ev.Err.Error()
	}
	if err := j.db.Create(&rec).Error; err != nil {
		j.failed.Add(1)
		knode.Debugf("journal: insert %s: %v", rec.Kind, err)
	}
}

// Count returns how many events of kind this run recorded.
func (j *Journal) Count(kind knode.EventKind) (int64, error) {
	var n int64
	err := j.db.Model(&Record{}).
		Where("run_id = ? AND kind = ?", j.runID, kind.String()).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("journal: count %s: %w", kind, err)
	}
	return n, nil
}

// Recent returns up to n events of this run, newest first.
func (j *Journal) Recent(n int) ([]Record, error) {
	if n <= 0 {
		return nil, nil
	}
	var recs []Record
	err := j.db.Where("run_id = ?", j.runID).Order("id DESC").Limit(n).Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	return recs, nil
}

// Close closes the database. Events reported afterwards are counted as failed.
func (j *Journal) Close() error {
	if !j.closed.CompareAndSwap(false, true) {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	return sqlDB.Close()
}

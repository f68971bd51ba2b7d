// Copyright (c) Facebook, Inc. and its affiliates.
// SPDX-License-Identifier: Apache-2.0

// Package audit records what the agent did to the host (workloads
// created and removed, balloon resizes, sweep outcomes) in a local
// SQLite database for post-hoc inspection.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/arvisha16/resctl-demo/internal/config"
)

// Auditor defines the contract for recording execution audit data.
type Auditor interface {
	// StartExecution creates an audit_log row and returns its ID and
	// generated run UUID.
	StartExecution(ctx context.Context, cmd string, cfg *config.Config) (executionID int64, runID string, err error)
	// CompleteExecution finalises the audit_log row with status and an
	// optional error summary.
	CompleteExecution(ctx context.Context, id int64, status string, errSummary string) error

	// RecordWorkload inserts a workload_details row.
	RecordWorkload(ctx context.Context, executionID int64, w WorkloadRecord) error
	// RecordWorkloadRemoval stamps removed_at on the open row for the
	// named workload of the given kind.
	RecordWorkloadRemoval(ctx context.Context, executionID int64, name, kind string) error

	// RecordEvent inserts an events row.
	RecordEvent(ctx context.Context, executionID int64, e EventRecord) error

	// Close releases database resources.
	Close() error
}

// SQLiteAuditor implements Auditor backed by a SQLite database.
type SQLiteAuditor struct {
	db *sql.DB
}

// NewSQLiteAuditor opens (or creates) the SQLite database at dbPath and
// ensures the schema is applied.
func NewSQLiteAuditor(dbPath string) (*SQLiteAuditor, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating audit db directory: %w", err)
		}
	}

	dsn := dbPath + "?_journal_mode=WAL&_foreign_keys=on"
	if dbPath == ":memory:" {
		dsn = "file::memory:?mode=memory&cache=shared&_foreign_keys=on"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening audit db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying audit schema: %w", err)
	}

	return &SQLiteAuditor{db: db}, nil
}

// DB exposes the underlying handle for tests.
func (a *SQLiteAuditor) DB() *sql.DB {
	return a.db
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func (a *SQLiteAuditor) StartExecution(ctx context.Context, cmd string, cfg *config.Config) (int64, string, error) {
	runID := uuid.New().String()

	res, err := a.db.ExecContext(ctx, `
		INSERT INTO audit_log (run_id, command, top_path, scratch_dev, interval_seconds, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		runID, cmd, cfg.TopPath, cfg.ScratchDev, cfg.IntervalSeconds, now())
	if err != nil {
		return 0, "", fmt.Errorf("inserting audit_log row: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, "", fmt.Errorf("reading audit_log row id: %w", err)
	}
	return id, runID, nil
}

func (a *SQLiteAuditor) CompleteExecution(ctx context.Context, id int64, status, errSummary string) error {
	_, err := a.db.ExecContext(ctx, `
		UPDATE audit_log SET status = ?, completed_at = ?, error_summary = ?
		WHERE id = ?`,
		status, now(), errSummary, id)
	if err != nil {
		return fmt.Errorf("completing audit_log row %d: %w", id, err)
	}
	return nil
}

func (a *SQLiteAuditor) RecordWorkload(ctx context.Context, executionID int64, w WorkloadRecord) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO workload_details (execution_id, workload_name, kind, catalog_id, unit_name, scratch_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		executionID, w.Name, w.Kind, w.CatalogID, w.UnitName, w.ScratchPath, now())
	if err != nil {
		return fmt.Errorf("inserting workload_details row: %w", err)
	}
	return nil
}

func (a *SQLiteAuditor) RecordWorkloadRemoval(ctx context.Context, executionID int64, name, kind string) error {
	_, err := a.db.ExecContext(ctx, `
		UPDATE workload_details SET removed_at = ?
		WHERE execution_id = ? AND workload_name = ? AND kind = ? AND removed_at IS NULL`,
		now(), executionID, name, kind)
	if err != nil {
		return fmt.Errorf("recording removal of %s %q: %w", kind, name, err)
	}
	return nil
}

func (a *SQLiteAuditor) RecordEvent(ctx context.Context, executionID int64, e EventRecord) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO events (execution_id, event_type, message, error_detail, occurred_at)
		VALUES (?, ?, ?, ?, ?)`,
		executionID, e.EventType, e.Message, e.ErrorDetail, now())
	if err != nil {
		return fmt.Errorf("inserting events row: %w", err)
	}
	return nil
}

func (a *SQLiteAuditor) Close() error {
	return a.db.Close()
}

// NopAuditor discards everything; used when auditing is disabled.
type NopAuditor struct{}

func (NopAuditor) StartExecution(context.Context, string, *config.Config) (int64, string, error) {
	return 0, "", nil
}
func (NopAuditor) CompleteExecution(context.Context, int64, string, string) error { return nil }
func (NopAuditor) RecordWorkload(context.Context, int64, WorkloadRecord) error    { return nil }
func (NopAuditor) RecordWorkloadRemoval(context.Context, int64, string, string) error {
	return nil
}
func (NopAuditor) RecordEvent(context.Context, int64, EventRecord) error { return nil }
func (NopAuditor) Close() error                                          { return nil }

// Copyright (c) Facebook, Inc. and its affiliates.
// SPDX-License-Identifier: Apache-2.0

package audit

// schemaSQL contains the DDL for the audit database. Timestamps are
// stored as ISO 8601 TEXT for SQLite compatibility.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS audit_log (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id           TEXT    NOT NULL UNIQUE,
	command          TEXT    NOT NULL,
	status           TEXT    NOT NULL DEFAULT 'in_progress',
	top_path         TEXT,
	scratch_dev      TEXT,
	interval_seconds INTEGER,
	started_at       TEXT    NOT NULL,
	completed_at     TEXT,
	error_summary    TEXT
);

CREATE TABLE IF NOT EXISTS workload_details (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	execution_id  INTEGER NOT NULL REFERENCES audit_log(id),
	workload_name TEXT    NOT NULL,
	kind          TEXT    NOT NULL,
	catalog_id    TEXT,
	unit_name     TEXT,
	scratch_path  TEXT,
	created_at    TEXT    NOT NULL,
	removed_at    TEXT
);

CREATE TABLE IF NOT EXISTS events (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	execution_id INTEGER NOT NULL REFERENCES audit_log(id),
	event_type   TEXT    NOT NULL,
	message      TEXT,
	error_detail TEXT,
	occurred_at  TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_log_started_at ON audit_log(started_at);
CREATE INDEX IF NOT EXISTS idx_audit_log_status ON audit_log(status);
CREATE INDEX IF NOT EXISTS idx_audit_log_run_id ON audit_log(run_id);
CREATE INDEX IF NOT EXISTS idx_workload_details_execution_id ON workload_details(execution_id);
CREATE INDEX IF NOT EXISTS idx_workload_details_name ON workload_details(workload_name);
CREATE INDEX IF NOT EXISTS idx_events_execution_id ON events(execution_id);
CREATE INDEX IF NOT EXISTS idx_events_event_type ON events(event_type);
CREATE INDEX IF NOT EXISTS idx_events_occurred_at ON events(occurred_at);
`

package sqlite

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS instructors (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		email      TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rooms (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		location   TEXT NOT NULL,
		capacity   INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS classes (
		id            TEXT PRIMARY KEY,
		title         TEXT NOT NULL,
		description   TEXT NOT NULL DEFAULT '',
		instructor_id TEXT NOT NULL REFERENCES instructors(id),
		room_id       TEXT NOT NULL REFERENCES rooms(id),
		kind          TEXT NOT NULL,
		series_start  TEXT NOT NULL,
		series_end    TEXT,
		interval_unit INTEGER NOT NULL DEFAULT 1,
		weekdays      TEXT NOT NULL DEFAULT '',
		month_days    TEXT NOT NULL DEFAULT '',
		manual_dates  TEXT NOT NULL DEFAULT '',
		time_slots    TEXT NOT NULL DEFAULT '[]',
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS class_sessions (
		id         TEXT PRIMARY KEY,
		class_id   TEXT NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
		start_time TEXT NOT NULL,
		end_time   TEXT NOT NULL,
		position   INTEGER NOT NULL DEFAULT 0,
		CHECK (end_time > start_time)
	)`,
	`CREATE TABLE IF NOT EXISTS class_exceptions (
		id         TEXT PRIMARY KEY,
		class_id   TEXT NOT NULL REFERENCES classes(id) ON DELETE CASCADE,
		anchor     TEXT NOT NULL,
		status     TEXT NOT NULL CHECK (status IN ('modified', 'cancelled')),
		reason     TEXT NOT NULL DEFAULT '',
		new_start  TEXT,
		new_end    TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_class_sessions_class ON class_sessions(class_id, position)`,
	`CREATE INDEX IF NOT EXISTS idx_class_sessions_range ON class_sessions(start_time, end_time)`,
	`CREATE INDEX IF NOT EXISTS idx_classes_room ON classes(room_id)`,
	`CREATE INDEX IF NOT EXISTS idx_classes_instructor ON classes(instructor_id)`,
	`CREATE INDEX IF NOT EXISTS idx_class_exceptions_class ON class_exceptions(class_id)`,
}

// Migrate applies the schema. Statements are idempotent, so Migrate is safe
// to run on every startup.
func (cp *ConnectionPool) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := cp.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}

package database

import (
	"context"
	"fmt"
)

// schema holds the DDL for all tables. Statements are idempotent so the
// server can run them on every start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		level TEXT NOT NULL,
		target_level TEXT NOT NULL,
		goals JSONB NOT NULL DEFAULT '[]',
		active BOOLEAN NOT NULL DEFAULT true,
		streak INTEGER NOT NULL DEFAULT 0,
		total_sessions INTEGER NOT NULL DEFAULT 0,
		last_lesson_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS progress_records (
		user_id UUID NOT NULL REFERENCES users(id),
		topic_name TEXT NOT NULL,
		capability TEXT NOT NULL,
		mastery DOUBLE PRECISION NOT NULL DEFAULT 0,
		last_reviewed TIMESTAMPTZ NOT NULL,
		next_due TIMESTAMPTZ NOT NULL,
		streak INTEGER NOT NULL DEFAULT 0,
		archived BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, topic_name, capability)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_progress_due ON progress_records (user_id, next_due) WHERE archived = false`,
}

// Migrate applies the schema
func Migrate(ctx context.Context, db *DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

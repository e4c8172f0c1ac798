package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration is one schema migration step.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the document-table migrations for the principal
// store. The quiz and answer tables are owned by the surrounding system;
// only the scans in SQLActivityLog depend on their shape.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users document table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id TEXT PRIMARY KEY,
					data JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_users_roles ON users USING GIN ((data->'roles'));
				CREATE INDEX IF NOT EXISTS idx_users_memberships ON users USING GIN ((data->'class_memberships'));
			`,
		},
		{
			Version:     2,
			Description: "Create schema_migrations tracking table",
			SQL: `
				CREATE TABLE IF NOT EXISTS schema_migrations (
					version INTEGER PRIMARY KEY,
					description TEXT NOT NULL,
					applied_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
			`,
		},
	}
}

// RunMigrations applies all pending migrations in order. Each step is
// idempotent so re-running against an up-to-date database is safe.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	for _, m := range GetMigrations() {
		if _, err := db.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
	}
	return nil
}

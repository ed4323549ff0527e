package sqlstore

import (
	"context"
	"fmt"
)

// schema returns the DDL statements for a dialect, in order.
//
// For a project this size, CREATE ... IF NOT EXISTS at startup is enough;
// there is no migration history table.
func schema(dialect Dialect) []string {
	if dialect == Postgres {
		return []string{
			`CREATE TABLE IF NOT EXISTS users (
				id            TEXT PRIMARY KEY,
				email         TEXT NOT NULL UNIQUE,
				username      TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				is_active     BOOLEAN NOT NULL DEFAULT TRUE,
				is_superuser  BOOLEAN NOT NULL DEFAULT FALSE,
				created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE TABLE IF NOT EXISTS food_items (
				id              TEXT PRIMARY KEY,
				owner_id        TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				name            TEXT NOT NULL,
				barcode         TEXT,
				category        TEXT,
				quantity        INTEGER NOT NULL DEFAULT 1,
				expiration_date DATE,
				image_url       TEXT,
				source          TEXT NOT NULL CHECK (source IN ('manual', 'barcode', 'vision')),
				added_at        TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_food_items_owner ON food_items(owner_id, added_at)`,
			`CREATE INDEX IF NOT EXISTS idx_food_items_expiration ON food_items(owner_id, expiration_date)`,
			`CREATE INDEX IF NOT EXISTS idx_food_items_barcode ON food_items(barcode)`,
		}
	}

	// SQLite keeps expiration dates as "YYYY-MM-DD" TEXT, which compares in
	// date order.
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			username      TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			is_active     INTEGER NOT NULL DEFAULT 1,
			is_superuser  INTEGER NOT NULL DEFAULT 0,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS food_items (
			id              TEXT PRIMARY KEY,
			owner_id        TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name            TEXT NOT NULL,
			barcode         TEXT,
			category        TEXT,
			quantity        INTEGER NOT NULL DEFAULT 1,
			expiration_date TEXT,
			image_url       TEXT,
			source          TEXT NOT NULL CHECK (source IN ('manual', 'barcode', 'vision')),
			added_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_food_items_owner ON food_items(owner_id, added_at)`,
		`CREATE INDEX IF NOT EXISTS idx_food_items_expiration ON food_items(owner_id, expiration_date)`,
		`CREATE INDEX IF NOT EXISTS idx_food_items_barcode ON food_items(barcode)`,
	}
}

func (db *DB) migrate(ctx context.Context) error {
	for i, stmt := range schema(db.dialect) {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("statement %d: %w", i+1, err)
		}
	}
	return nil
}

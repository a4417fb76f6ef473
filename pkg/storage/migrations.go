package storage

import (
	"database/sql"
	"fmt"
)

var migrations = []string{
	// 1: budgets and generation log
	`CREATE TABLE IF NOT EXISTS budgets (
		id                  TEXT PRIMARY KEY,
		organization_id     TEXT NOT NULL UNIQUE,
		daily_token_limit   INTEGER NOT NULL CHECK(daily_token_limit > 0),
		daily_cost_limit    REAL NOT NULL CHECK(daily_cost_limit > 0),
		current_period_date TEXT NOT NULL,
		tokens_used_today   INTEGER NOT NULL DEFAULT 0 CHECK(tokens_used_today >= 0),
		cost_used_today     REAL NOT NULL DEFAULT 0.0 CHECK(cost_used_today >= 0),
		active              INTEGER NOT NULL DEFAULT 1,
		created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS generation_log (
		id              TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL DEFAULT '',
		task            TEXT NOT NULL,
		provider        TEXT NOT NULL,
		input_tokens    INTEGER NOT NULL DEFAULT 0,
		output_tokens   INTEGER NOT NULL DEFAULT 0,
		cost_usd        REAL NOT NULL DEFAULT 0.0,
		duration_ms     INTEGER NOT NULL DEFAULT 0,
		timestamp       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_log_org ON generation_log(organization_id);
	CREATE INDEX IF NOT EXISTS idx_log_provider ON generation_log(provider);
	CREATE INDEX IF NOT EXISTS idx_log_timestamp ON generation_log(timestamp);`,

	// 2: keep the policy decision next to each logged generation
	`ALTER TABLE generation_log ADD COLUMN policy_reason TEXT NOT NULL DEFAULT '';`,
}

// runMigrations applies pending schema migrations.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create migration table: %w", err)
	}

	var currentVersion int
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("check migration version: %w", err)
	}

	for i := currentVersion; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec(migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("run migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", i+1); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", i+1, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}

	return nil
}

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial run ledger",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS runs (
					id TEXT PRIMARY KEY,
					input_dir TEXT NOT NULL,
					status TEXT NOT NULL,
					categories_forecast INTEGER DEFAULT 0,
					categories_skipped INTEGER DEFAULT 0,
					categories_failed INTEGER DEFAULT 0,
					forecast_rows INTEGER DEFAULT 0,
					error TEXT,
					started_at DATETIME NOT NULL,
					finished_at DATETIME
				)`,
				`CREATE INDEX idx_runs_started_at ON runs(started_at)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Track per-category forecast outcomes",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS run_categories (
					run_id TEXT NOT NULL,
					category TEXT NOT NULL,
					outcome TEXT NOT NULL,
					observations INTEGER NOT NULL,
					forecast_rows INTEGER NOT NULL,
					error TEXT,
					PRIMARY KEY (run_id, category),
					FOREIGN KEY (run_id) REFERENCES runs(id)
				)
			`)
			return err
		},
	},
	{
		Version:     3,
		Description: "Record exported tables per run",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS exported_tables (
					run_id TEXT NOT NULL,
					table_name TEXT NOT NULL,
					row_count INTEGER NOT NULL,
					column_count INTEGER NOT NULL,
					exported_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (run_id, table_name),
					FOREIGN KEY (run_id) REFERENCES runs(id)
				)`,
				`CREATE INDEX IF NOT EXISTS idx_exported_tables_name ON exported_tables(table_name)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// SchemaVersion returns the version recorded in the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Veraticus/demandflow/internal/dataset"
	"github.com/Veraticus/demandflow/internal/export"
	"github.com/Veraticus/demandflow/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage keeps the run ledger and exported tables in a SQLite database.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

var _ service.Ledger = (*SQLiteStorage)(nil)

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// TableSink returns an export sink that replaces each table and records it against runID.
func (s *SQLiteStorage) TableSink(runID string) export.Sink {
	return &tableSink{storage: s, runID: runID}
}

type tableSink struct {
	storage *SQLiteStorage
	runID   string
}

func (t *tableSink) Name() string { return "sqlite" }

func (t *tableSink) WriteTables(ctx context.Context, tables []dataset.Table) error {
	for _, table := range tables {
		if err := t.storage.SaveTable(ctx, t.runID, table); err != nil {
			return err
		}
	}
	return nil
}

// SaveTable replaces the table in the database and records the export in the ledger.
func (s *SQLiteStorage) SaveTable(ctx context.Context, runID string, table dataset.Table) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(table.Name, "table name"); err != nil {
		return err
	}

	if err := export.WriteTable(ctx, s.db, export.SQLite, table); err != nil {
		return err
	}

	if runID == "" {
		return nil
	}
	rows, cols := table.Frame.Dims()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exported_tables (run_id, table_name, row_count, column_count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, table_name) DO UPDATE SET
			row_count = excluded.row_count,
			column_count = excluded.column_count,
			exported_at = CURRENT_TIMESTAMP
	`, runID, table.Name, rows, cols)
	if err != nil {
		return fmt.Errorf("failed to record export of %s: %w", table.Name, err)
	}
	return nil
}

// TableRowCount returns the number of rows currently stored in an exported table.
func (s *SQLiteStorage) TableRowCount(ctx context.Context, table string) (int, error) {
	if err := validateString(table, "table"); err != nil {
		return 0, err
	}
	var n int
	query := "SELECT COUNT(*) FROM " + export.QuoteIdent(table)
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows of %s: %w", table, err)
	}
	return n, nil
}

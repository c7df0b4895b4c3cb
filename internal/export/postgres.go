package export

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Veraticus/demandflow/internal/dataset"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const postgresDriver = "pgx"

var sqlOpen = sql.Open

// PostgresSink recreates one table per export in a Postgres database.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink opens and pings the database at dsn.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}
	db, err := sqlOpen(postgresDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresSink{db: db}, nil
}

// Name implements Sink.
func (s *PostgresSink) Name() string { return "postgres" }

// Close releases the connection pool.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}

// WriteTables implements Sink. Each table is dropped, recreated and filled in one transaction.
func (s *PostgresSink) WriteTables(ctx context.Context, tables []dataset.Table) error {
	for _, t := range tables {
		if err := WriteTable(ctx, s.db, Postgres, t); err != nil {
			return err
		}
	}
	return nil
}

// WriteTable replaces t in db using dialect d.
func WriteTable(ctx context.Context, db *sql.DB, d Dialect, t dataset.Table) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", t.Name, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, d.DropTableSQL(t)); err != nil {
		return fmt.Errorf("drop %s: %w", t.Name, err)
	}
	if _, err = tx.ExecContext(ctx, d.CreateTableSQL(t)); err != nil {
		return fmt.Errorf("create %s: %w", t.Name, err)
	}

	stmt, err := tx.PrepareContext(ctx, d.InsertSQL(t))
	if err != nil {
		return fmt.Errorf("prepare insert into %s: %w", t.Name, err)
	}
	defer func() { _ = stmt.Close() }()

	for _, row := range dataset.Values(t.Frame) {
		if _, err = stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("insert into %s: %w", t.Name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", t.Name, err)
	}
	return nil
}

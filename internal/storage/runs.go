package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/demandflow/internal/model"
	"github.com/google/uuid"
)

// StartRun inserts a running entry into the ledger, assigning an ID when the run has none.
func (s *SQLiteStorage) StartRun(ctx context.Context, run *model.Run) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if run != nil && run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run != nil && run.Status == "" {
		run.Status = model.RunStatusRunning
	}
	if err := validateRun(run); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, input_dir, status, started_at)
		VALUES (?, ?, ?, ?)
	`, run.ID, run.InputDir, string(run.Status), run.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	return nil
}

// FinishRun stores the final status and counters of a run. runErr is kept when non-nil.
func (s *SQLiteStorage) FinishRun(ctx context.Context, run *model.Run, runErr error) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRun(run); err != nil {
		return err
	}
	if err := validateString(run.ID, "run id"); err != nil {
		return err
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}

	var message sql.NullString
	if runErr != nil {
		message = sql.NullString{String: runErr.Error(), Valid: true}
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE runs SET
			status = ?,
			categories_forecast = ?,
			categories_skipped = ?,
			categories_failed = ?,
			forecast_rows = ?,
			error = ?,
			finished_at = ?
		WHERE id = ?
	`, string(run.Status), run.CategoriesForecast, run.CategoriesSkipped, run.CategoriesFailed,
		run.ForecastRows, message, run.FinishedAt.UTC(), run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check run update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	return nil
}

// SaveCategoryResults records the forecasting outcome of every category of a run.
func (s *SQLiteStorage) SaveCategoryResults(ctx context.Context, runID string, results []model.CategoryResult) (err error) {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(runID, "run id"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO run_categories (run_id, category, outcome, observations, forecast_rows, error)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range results {
		var message sql.NullString
		if r.Err != nil {
			message = sql.NullString{String: r.Err.Error(), Valid: true}
		}
		if _, err = stmt.ExecContext(ctx, runID, r.Category, string(r.Outcome), r.Observations, len(r.Rows), message); err != nil {
			return fmt.Errorf("failed to save result for %s: %w", r.Category, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit category results: %w", err)
	}
	return nil
}

// GetRun loads a run from the ledger.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*model.Run, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, runSelect+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// ListRuns returns the most recent runs first.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, runSelect+` ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// CategoryOutcomes counts the recorded categories of a run by outcome.
func (s *SQLiteStorage) CategoryOutcomes(ctx context.Context, runID string) (map[model.CategoryOutcome]int, error) {
	if err := validateString(runID, "run id"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT outcome, COUNT(*) FROM run_categories WHERE run_id = ? GROUP BY outcome
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query category outcomes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[model.CategoryOutcome]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan category outcome: %w", err)
		}
		out[model.CategoryOutcome(outcome)] = n
	}
	return out, rows.Err()
}

const runSelect = `
	SELECT id, input_dir, status, categories_forecast, categories_skipped,
		categories_failed, forecast_rows, started_at, finished_at
	FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*model.Run, error) {
	var run model.Run
	var status string
	var finished sql.NullTime
	err := row.Scan(&run.ID, &run.InputDir, &status, &run.CategoriesForecast, &run.CategoriesSkipped,
		&run.CategoriesFailed, &run.ForecastRows, &run.StartedAt, &finished)
	if err != nil {
		return nil, err
	}
	run.Status = model.RunStatus(status)
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	return &run, nil
}

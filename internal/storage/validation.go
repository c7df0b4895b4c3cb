// Package storage keeps pipeline runs and exported tables in SQLite.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/demandflow/internal/model"
)

// Validation errors.
var (
	ErrNilContext   = errors.New("context cannot be nil")
	ErrEmptyString  = errors.New("string parameter cannot be empty")
	ErrNilParameter = errors.New("parameter cannot be nil")
	ErrInvalidRun   = errors.New("invalid run")
	ErrRunNotFound  = errors.New("run not found")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateRun checks the fields every ledger row needs.
func validateRun(run *model.Run) error {
	if run == nil {
		return fmt.Errorf("%w: run", ErrNilParameter)
	}
	if run.StartedAt.IsZero() {
		return fmt.Errorf("%w: missing start time", ErrInvalidRun)
	}
	if strings.TrimSpace(run.InputDir) == "" {
		return fmt.Errorf("%w: missing input directory", ErrInvalidRun)
	}

	switch run.Status {
	case model.RunStatusRunning, model.RunStatusSucceeded, model.RunStatusFailed:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidRun, run.Status)
	}

	if !run.FinishedAt.IsZero() && run.FinishedAt.Before(run.StartedAt) {
		return fmt.Errorf("%w: finished before it started", ErrInvalidRun)
	}
	return nil
}

// Package service defines the interfaces between the pipeline and the services backing it.
package service

import (
	"context"

	"github.com/Veraticus/demandflow/internal/export"
	"github.com/Veraticus/demandflow/internal/model"
)

// RunLedger records pipeline runs and the per-category outcome of each.
type RunLedger interface {
	// Run lifecycle
	StartRun(ctx context.Context, run *model.Run) error
	FinishRun(ctx context.Context, run *model.Run, runErr error) error

	// Forecast outcomes
	SaveCategoryResults(ctx context.Context, runID string, results []model.CategoryResult) error

	// TableSink persists exported tables against runID.
	TableSink(runID string) export.Sink
}

// RunHistory reads back recorded runs.
type RunHistory interface {
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)
	CategoryOutcomes(ctx context.Context, runID string) (map[model.CategoryOutcome]int, error)
}

// Ledger is a run ledger that can also be queried.
type Ledger interface {
	RunLedger
	RunHistory
	Migrate(ctx context.Context) error
	SchemaVersion(ctx context.Context) (int, error)
	Close() error
}

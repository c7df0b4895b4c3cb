package model

import "time"

// RunStatus tracks a pipeline run in the run ledger.
type RunStatus string

const (
	// RunStatusRunning is set when a run starts.
	RunStatusRunning RunStatus = "running"
	// RunStatusSucceeded is set when every stage completed.
	RunStatusSucceeded RunStatus = "succeeded"
	// RunStatusFailed is set when a fatal error stopped the run.
	RunStatusFailed RunStatus = "failed"
)

// Run describes one execution of the pipeline.
type Run struct {
	StartedAt          time.Time
	FinishedAt         time.Time
	ID                 string
	InputDir           string
	Status             RunStatus
	CategoriesForecast int
	CategoriesSkipped  int
	CategoriesFailed   int
	ForecastRows       int
}

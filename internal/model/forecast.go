package model

import (
	"time"
)

// DemandPoint is one observation of a monthly category series.
type DemandPoint struct {
	Timestamp time.Time
	Category  string
	Value     float64
}

// ForecastRow is one predicted period of a category.
type ForecastRow struct {
	Timestamp     time.Time
	Category      string
	PointEstimate float64
	LowerBound    float64
	UpperBound    float64
}

// ForecastColumns is the header of the combined forecast table.
var ForecastColumns = []string{"category", "timestamp", "point_estimate", "lower_bound", "upper_bound"}

// CategoryOutcome records what happened to a single category during forecasting.
type CategoryOutcome string

const (
	// OutcomeForecast means rows were produced.
	OutcomeForecast CategoryOutcome = "forecast"
	// OutcomeSkipped means the series was too short.
	OutcomeSkipped CategoryOutcome = "skipped"
	// OutcomeFailed means the model could not be fit.
	OutcomeFailed CategoryOutcome = "failed"
)

// CategoryResult is the per-category result of the forecaster.
type CategoryResult struct {
	Err          error
	Category     string
	Outcome      CategoryOutcome
	Rows         []ForecastRow
	History      []DemandPoint
	Observations int
}

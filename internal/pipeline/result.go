package pipeline

import (
	"github.com/Veraticus/demandflow/internal/blob"
	"github.com/Veraticus/demandflow/internal/cleaning"
	"github.com/Veraticus/demandflow/internal/dataset"
	"github.com/Veraticus/demandflow/internal/model"
)

// Result is everything a run produced.
type Result struct {
	Run        model.Run
	Profiles   []cleaning.Profile
	Reports    []cleaning.Report
	Tables     []dataset.Table
	Categories []model.CategoryResult
	Forecast   []model.ForecastRow
	Plots      []blob.Info
	Sinks      []string
}

// Table returns the exported table called name.
func (r *Result) Table(name string) (dataset.Table, bool) {
	for _, t := range r.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return dataset.Table{}, false
}

// Outcome returns the forecasting result of category.
func (r *Result) Outcome(category string) (model.CategoryResult, bool) {
	for _, c := range r.Categories {
		if c.Category == category {
			return c, true
		}
	}
	return model.CategoryResult{}, false
}

// Inspection is the data-quality view of the sources before and after cleaning.
type Inspection struct {
	Profiles []cleaning.Profile
	Cleaned  []cleaning.Profile
	Reports  []cleaning.Report
}

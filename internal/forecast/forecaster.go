package forecast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/demandflow/internal/common"
	"github.com/Veraticus/demandflow/internal/demand"
	"github.com/Veraticus/demandflow/internal/model"
	"golang.org/x/sync/errgroup"
)

// Config controls the per-category loop.
type Config struct {
	Model      Options `mapstructure:",squash"`
	Workers    int     `mapstructure:"workers" validate:"min=1"`
	MinHistory int     `mapstructure:"min_history" validate:"min=2"`
	Horizon    int     `mapstructure:"horizon" validate:"min=1"`
}

// DefaultConfig returns a sequential loop needing 6 observations and forecasting 6 months.
func DefaultConfig() Config {
	return Config{
		Model:      DefaultOptions(),
		Workers:    1,
		MinHistory: 6,
		Horizon:    6,
	}
}

// Progress receives one tick per finished category.
type Progress interface {
	Add(num int) error
}

// Forecaster runs the model over every category series.
type Forecaster struct {
	progress Progress
	cfg      Config
}

// NewForecaster creates a forecaster. Zero values in cfg fall back to DefaultConfig.
func NewForecaster(cfg Config) *Forecaster {
	def := DefaultConfig()
	if cfg.Workers < 1 {
		cfg.Workers = def.Workers
	}
	if cfg.MinHistory < 1 {
		cfg.MinHistory = def.MinHistory
	}
	if cfg.Horizon < 1 {
		cfg.Horizon = def.Horizon
	}
	if cfg.Model == (Options{}) {
		cfg.Model = def.Model
	}
	return &Forecaster{cfg: cfg}
}

// WithProgress reports each finished category to p.
func (f *Forecaster) WithProgress(p Progress) *Forecaster {
	f.progress = p
	return f
}

// Run forecasts every category found in points. Results follow sorted category order
// regardless of the worker count. Only context cancellation returns an error; model
// failures are recorded on the category result.
func (f *Forecaster) Run(ctx context.Context, points []model.DemandPoint) ([]model.CategoryResult, error) {
	categories := demand.Categories(points)
	results := make([]model.CategoryResult, len(categories))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Workers)

	for i, category := range categories {
		history := demand.SeriesFor(points, category)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = f.Category(category, history)
			f.tick()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("forecast interrupted: %w", err)
	}

	var forecast, skipped, failed int
	for _, r := range results {
		switch r.Outcome {
		case model.OutcomeForecast:
			forecast++
		case model.OutcomeSkipped:
			skipped++
		case model.OutcomeFailed:
			failed++
		}
	}
	common.LogInfo("Forecast complete", common.Fields{
		"categories": len(categories),
		"forecast":   forecast,
		"skipped":    skipped,
		"failed":     failed,
	})
	return results, nil
}

// Category forecasts a single category history.
func (f *Forecaster) Category(category string, history []model.DemandPoint) model.CategoryResult {
	res := model.CategoryResult{
		Category:     category,
		History:      history,
		Observations: len(history),
	}

	if len(history) < f.cfg.MinHistory {
		res.Outcome = model.OutcomeSkipped
		res.Err = fmt.Errorf("%w: %s has %d of %d observations",
			common.ErrInsufficientHistory, category, len(history), f.cfg.MinHistory)
		common.LogInfo("Skipping category with short history", common.Fields{
			"category":     category,
			"observations": len(history),
			"required":     f.cfg.MinHistory,
		})
		return res
	}

	rows, err := f.predict(category, history)
	if err != nil {
		res.Outcome = model.OutcomeFailed
		res.Err = err
		common.LogError(err, "Model fit failed", common.Fields{"category": category})
		return res
	}

	res.Outcome = model.OutcomeForecast
	res.Rows = rows
	common.LogDebug("Category forecast", common.Fields{"category": category, "rows": len(rows)})
	return res
}

func (f *Forecaster) predict(category string, history []model.DemandPoint) ([]model.ForecastRow, error) {
	times := make([]time.Time, len(history))
	values := make([]float64, len(history))
	for i, p := range history {
		times[i] = p.Timestamp
		values[i] = p.Value
	}

	m, err := Fit(times, values, f.cfg.Model)
	if err != nil {
		return nil, err
	}

	preds, err := m.Predict(FutureTimeline(times, f.cfg.Horizon))
	if err != nil {
		return nil, err
	}

	rows := make([]model.ForecastRow, len(preds))
	for i, p := range preds {
		rows[i] = model.ForecastRow{
			Category:      category,
			Timestamp:     p.Timestamp,
			PointEstimate: p.Yhat,
			LowerBound:    p.Lower,
			UpperBound:    p.Upper,
		}
	}
	return rows, nil
}

func (f *Forecaster) tick() {
	if f.progress == nil {
		return
	}
	if err := f.progress.Add(1); err != nil {
		common.LogWarn("Failed to update progress bar", common.Fields{"error": err})
	}
}

// FutureTimeline returns history followed by horizon month-end timestamps after its last entry.
func FutureTimeline(history []time.Time, horizon int) []time.Time {
	out := make([]time.Time, 0, len(history)+horizon)
	out = append(out, history...)
	if len(history) == 0 {
		return out
	}

	last := history[0]
	for _, t := range history {
		if t.After(last) {
			last = t
		}
	}
	for i := 1; i <= horizon; i++ {
		first := time.Date(last.Year(), last.Month()+time.Month(i), 1, 0, 0, 0, 0, time.UTC)
		out = append(out, demand.MonthEnd(first))
	}
	return out
}

// Combine concatenates the rows of every forecast category, in result order.
func Combine(results []model.CategoryResult) []model.ForecastRow {
	var rows []model.ForecastRow
	for _, r := range results {
		rows = append(rows, r.Rows...)
	}
	return rows
}

// Failures returns the errors of categories whose model could not be fit.
func Failures(results []model.CategoryResult) error {
	var errs []error
	for _, r := range results {
		if r.Outcome == model.OutcomeFailed {
			errs = append(errs, fmt.Errorf("%s: %w", r.Category, r.Err))
		}
	}
	return errors.Join(errs...)
}

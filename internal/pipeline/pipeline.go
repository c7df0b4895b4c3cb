// Package pipeline runs the demand stages in order: load, clean, join, aggregate,
// forecast and export.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Veraticus/demandflow/internal/blob"
	"github.com/Veraticus/demandflow/internal/chart"
	"github.com/Veraticus/demandflow/internal/cleaning"
	"github.com/Veraticus/demandflow/internal/common"
	"github.com/Veraticus/demandflow/internal/config"
	"github.com/Veraticus/demandflow/internal/dataset"
	"github.com/Veraticus/demandflow/internal/demand"
	"github.com/Veraticus/demandflow/internal/export"
	"github.com/Veraticus/demandflow/internal/forecast"
	"github.com/Veraticus/demandflow/internal/join"
	"github.com/Veraticus/demandflow/internal/metrics"
	"github.com/Veraticus/demandflow/internal/model"
	"github.com/Veraticus/demandflow/internal/service"
	"github.com/Veraticus/demandflow/internal/sheets"
	"github.com/Veraticus/demandflow/internal/storage"
	"github.com/google/uuid"
)

// Stage names used for logging and metrics.
const (
	StageLoad      = "load"
	StageClean     = "clean"
	StageJoin      = "join"
	StageAggregate = "aggregate"
	StageForecast  = "forecast"
	StageExport    = "export"
	StagePlots     = "plots"
)

// ProgressFactory creates the progress reporter for a forecast over total categories.
type ProgressFactory func(total int) forecast.Progress

// Pipeline wires the stages to their sinks.
type Pipeline struct {
	cfg        *config.Config
	loader     *dataset.Loader
	cleaner    *cleaning.Cleaner
	joiner     *join.Joiner
	aggregator *demand.Aggregator
	store      blob.Store
	ledger     service.RunLedger
	recorder   *metrics.Recorder
	progress   ProgressFactory
	now        func() time.Time
	sinks      []export.Sink
	closers    []io.Closer
	sinksSet   bool
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithStore sets the artifact store instead of opening the configured one.
func WithStore(store blob.Store) Option {
	return func(p *Pipeline) { p.store = store }
}

// WithSinks replaces the configured table sinks.
func WithSinks(sinks ...export.Sink) Option {
	return func(p *Pipeline) {
		p.sinks = sinks
		p.sinksSet = true
	}
}

// WithLedger records runs in ledger instead of the configured SQLite database.
func WithLedger(ledger service.RunLedger) Option {
	return func(p *Pipeline) { p.ledger = ledger }
}

// WithProgress reports forecast progress through factory.
func WithProgress(factory ProgressFactory) Option {
	return func(p *Pipeline) { p.progress = factory }
}

// WithMetrics records run metrics on recorder.
func WithMetrics(recorder *metrics.Recorder) Option {
	return func(p *Pipeline) { p.recorder = recorder }
}

// WithClock overrides the time source used to stamp runs.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a pipeline for cfg without opening anything.
func New(cfg *config.Config, opts ...Option) *Pipeline {
	loader := dataset.NewLoader()
	loader.Sheet = cfg.Input.Sheet

	p := &Pipeline{
		cfg:        cfg,
		loader:     loader,
		cleaner:    cleaning.NewCleaner(),
		joiner:     join.NewJoiner(),
		aggregator: demand.NewAggregator(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.recorder == nil {
		p.recorder = metrics.NewRecorder()
	}
	return p
}

// Open creates a pipeline and opens the artifact store, the sinks and the run ledger
// that cfg enables and opts did not provide. Close releases them.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Pipeline, error) {
	p := New(cfg, opts...)
	if err := p.open(ctx); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) open(ctx context.Context) error {
	cfg := p.cfg
	if p.store == nil {
		store, err := blob.Open(ctx, cfg.Output)
		if err != nil {
			return fmt.Errorf("failed to open artifact store: %w", err)
		}
		p.store = store
	}

	if p.ledger == nil && cfg.Export.SQLite.Path != "" {
		db, err := storage.NewSQLiteStorage(cfg.Export.SQLite.Path)
		if err != nil {
			return err
		}
		p.closers = append(p.closers, db)
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		p.ledger = db
	}

	if !p.sinksSet {
		return p.openSinks(ctx)
	}
	return nil
}

func (p *Pipeline) openSinks(ctx context.Context) error {
	cfg := p.cfg
	if cfg.Export.CSV {
		p.sinks = append(p.sinks, export.NewCSVSink(p.store))
	}
	if cfg.Export.XLSX.Path != "" {
		p.sinks = append(p.sinks, export.NewXLSXSink(cfg.Export.XLSX.Path))
	}
	if cfg.Export.Postgres.DSN != "" {
		pg, err := export.NewPostgresSink(ctx, cfg.Export.Postgres.DSN)
		if err != nil {
			return err
		}
		p.closers = append(p.closers, pg)
		p.sinks = append(p.sinks, pg)
	}
	if cfg.Export.Sheets {
		w, err := sheets.NewWriter(ctx, cfg.Sheets, slog.Default())
		if err != nil {
			return fmt.Errorf("failed to create sheets writer: %w", err)
		}
		p.sinks = append(p.sinks, w)
	}
	return nil
}

// Close releases the databases opened by Open.
func (p *Pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

// Store returns the artifact store.
func (p *Pipeline) Store() blob.Store { return p.store }

// Metrics returns the run metrics recorder.
func (p *Pipeline) Metrics() *metrics.Recorder { return p.recorder }

// Inspect loads and cleans the sources without joining or exporting anything.
func (p *Pipeline) Inspect(ctx context.Context) (*Inspection, error) {
	raw, err := p.loader.Load(ctx, p.cfg.Sources())
	if err != nil {
		return nil, err
	}
	profiles := cleaning.ProfileAll(raw)

	cleaned, reports, err := p.cleaner.Clean(ctx, raw)
	if err != nil {
		return nil, err
	}
	return &Inspection{
		Profiles: profiles,
		Cleaned:  cleaning.ProfileAll(cleaned),
		Reports:  reports,
	}, nil
}

// Run executes every stage once. A returned error means the run failed; the ledger
// and metrics still record it.
func (p *Pipeline) Run(ctx context.Context) (res *Result, err error) {
	run := &model.Run{
		ID:        uuid.NewString(),
		InputDir:  p.cfg.Input.Dir,
		Status:    model.RunStatusRunning,
		StartedAt: p.now(),
	}
	if p.ledger != nil {
		if err := p.ledger.StartRun(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to record run start: %w", err)
		}
	}
	common.LogInfo("Starting pipeline run", common.Fields{"run_id": run.ID, "input_dir": run.InputDir})

	res = &Result{}
	defer func() {
		p.finish(ctx, run, err)
		res.Run = *run
	}()

	if err = p.execute(ctx, run, res); err != nil {
		return res, err
	}
	return res, nil
}

func (p *Pipeline) execute(ctx context.Context, run *model.Run, res *Result) error {
	stop := p.recorder.StartStage(StageLoad)
	raw, err := p.loader.Load(ctx, p.cfg.Sources())
	stop()
	if err != nil {
		return err
	}
	res.Profiles = cleaning.ProfileAll(raw)

	stop = p.recorder.StartStage(StageClean)
	cleaned, reports, err := p.cleaner.Clean(ctx, raw)
	stop()
	if err != nil {
		return err
	}
	res.Reports = reports

	stop = p.recorder.StartStage(StageJoin)
	merged, err := p.joiner.Join(ctx, cleaned)
	stop()
	if err != nil {
		return err
	}

	stop = p.recorder.StartStage(StageAggregate)
	agg, err := p.aggregator.Aggregate(merged.Sales)
	stop()
	if err != nil {
		return err
	}

	stop = p.recorder.StartStage(StageForecast)
	f := forecast.NewForecaster(p.cfg.Forecast)
	if p.progress != nil {
		if bar := p.progress(len(demand.Categories(agg.Series))); bar != nil {
			f.WithProgress(bar)
		}
	}
	results, err := f.Run(ctx, agg.Series)
	stop()
	if err != nil {
		return err
	}
	res.Categories = results
	res.Forecast = forecast.Combine(results)
	countOutcomes(run, results)
	p.recorder.ObserveOutcomes(results)

	res.Tables = append(merged.Named(),
		dataset.Table{Name: model.TableForecast, Frame: export.ForecastFrame(res.Forecast)},
		dataset.Table{Name: model.TableDailyDemand, Frame: agg.Daily},
		dataset.Table{Name: model.TableMonthlyDemand, Frame: agg.Monthly},
	)

	sinks := p.sinks
	if p.ledger != nil {
		sinks = append(append([]export.Sink(nil), sinks...), p.ledger.TableSink(run.ID))
	}
	exporter := export.NewExporter(p.store, sinks...)
	res.Sinks = exporter.Sinks()

	stop = p.recorder.StartStage(StageExport)
	err = exporter.ExportTables(ctx, res.Tables)
	stop()
	if err != nil {
		return err
	}
	for _, t := range res.Tables {
		p.recorder.ObserveTable(t.Name, t.Frame.Nrow())
	}

	if p.cfg.Plots {
		stop = p.recorder.StartStage(StagePlots)
		res.Plots, err = p.plots(ctx, exporter, results)
		stop()
		if err != nil {
			return err
		}
	}

	if p.ledger != nil {
		if err := p.ledger.SaveCategoryResults(ctx, run.ID, results); err != nil {
			return fmt.Errorf("failed to record category results: %w", err)
		}
	}
	return nil
}

// plots renders one chart per forecast category. A chart that cannot be drawn is
// logged and skipped; a chart that cannot be stored fails the run.
func (p *Pipeline) plots(ctx context.Context, exporter *export.Exporter, results []model.CategoryResult) ([]blob.Info, error) {
	var infos []blob.Info
	for _, r := range results {
		if r.Outcome != model.OutcomeForecast {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		png, err := chart.Render(r.Category, r.History, r.Rows)
		if err != nil {
			common.LogError(err, "Failed to render forecast plot", common.Fields{"category": r.Category})
			continue
		}
		info, err := exporter.PutArtifact(ctx, chart.PlotFileName(r.Category), png, blob.ContentTypePNG)
		if err != nil {
			return nil, err
		}
		p.recorder.ObserveArtifact()
		infos = append(infos, info)
	}
	common.LogInfo("Saved forecast plots", common.Fields{"plots": len(infos)})
	return infos, nil
}

// finish closes the run in the ledger and metrics. It runs after cancellation too.
func (p *Pipeline) finish(ctx context.Context, run *model.Run, runErr error) {
	run.FinishedAt = p.now()
	run.Status = model.RunStatusSucceeded
	if runErr != nil {
		run.Status = model.RunStatusFailed
	}

	ctx = context.WithoutCancel(ctx)
	if p.ledger != nil {
		if err := p.ledger.FinishRun(ctx, run, runErr); err != nil {
			common.LogError(err, "Failed to record run result", common.Fields{"run_id": run.ID})
		}
	}

	p.recorder.Finish(run.FinishedAt, runErr)
	if path := p.cfg.Metrics.Textfile; path != "" {
		if err := p.recorder.WriteTextfile(path); err != nil {
			common.LogError(err, "Failed to write metrics", common.Fields{"path": path})
		}
	}

	fields := common.Fields{
		"run_id":   run.ID,
		"status":   run.Status,
		"duration": run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond),
	}
	if runErr != nil {
		common.LogError(runErr, "Pipeline run failed", fields)
		return
	}
	common.LogInfo("Pipeline run complete", fields)
}

func countOutcomes(run *model.Run, results []model.CategoryResult) {
	for _, r := range results {
		switch r.Outcome {
		case model.OutcomeForecast:
			run.CategoriesForecast++
			run.ForecastRows += len(r.Rows)
		case model.OutcomeSkipped:
			run.CategoriesSkipped++
		case model.OutcomeFailed:
			run.CategoriesFailed++
		}
	}
}

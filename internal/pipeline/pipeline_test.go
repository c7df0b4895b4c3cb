package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/demandflow/internal/blob"
	"github.com/Veraticus/demandflow/internal/common"
	"github.com/Veraticus/demandflow/internal/config"
	"github.com/Veraticus/demandflow/internal/forecast"
	"github.com/Veraticus/demandflow/internal/model"
	"github.com/Veraticus/demandflow/internal/sheets"
	"github.com/Veraticus/demandflow/internal/storage"
	"github.com/Veraticus/demandflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, fx testutil.Fixture) *config.Config {
	t.Helper()

	in := t.TempDir()
	testutil.WriteFixture(t, in, fx)

	return &config.Config{
		Input:    config.InputConfig{Dir: in},
		Output:   blob.Config{Dir: t.TempDir()},
		Export:   config.ExportConfig{CSV: true},
		Forecast: forecast.DefaultConfig(),
		Plots:    true,
	}
}

func openPipeline(t *testing.T, cfg *config.Config, opts ...Option) *Pipeline {
	t.Helper()
	p, err := Open(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestRun_SingleSale(t *testing.T) {
	cfg := testConfig(t, testutil.SingleSaleFixture())
	ledger := testutil.SetupTestDB(t)
	p := openPipeline(t, cfg, WithLedger(ledger))

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	daily, ok := res.Table(model.TableDailyDemand)
	require.True(t, ok)
	require.Equal(t, 1, daily.Frame.Nrow())
	assert.Equal(t, "2024-01-05", daily.Frame.Col(model.ColOrderDate).Elem(0).String())
	assert.Equal(t, "Milk", daily.Frame.Col(model.ColProductName).Elem(0).String())
	assert.InDelta(t, 3, daily.Frame.Col(model.ColQuantity).Elem(0).Float(), 0)

	dairy, ok := res.Outcome("Dairy")
	require.True(t, ok)
	assert.Equal(t, model.OutcomeSkipped, dairy.Outcome)
	assert.Empty(t, res.Forecast)
	assert.Empty(t, res.Plots)

	data, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "combined_category_forecast.csv")) // #nosec G304 -- test path
	require.NoError(t, err)
	assert.Equal(t, "category,timestamp,point_estimate,lower_bound,upper_bound", strings.TrimSpace(string(data)))

	for _, name := range []string{model.TableSales, model.TableCustomerOrders, model.TableDeliveryAnalysis, model.TableFeedbackData} {
		assert.FileExists(t, filepath.Join(cfg.Output.Dir, name+".csv"))
	}

	run, err := ledger.GetRun(context.Background(), res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSucceeded, run.Status)
	assert.Equal(t, 1, run.CategoriesSkipped)
	assert.Equal(t, 0, run.ForecastRows)
	assert.Equal(t, []string{"csv", "sqlite"}, res.Sinks)
}

func TestRun_HistoryThreshold(t *testing.T) {
	cfg := testConfig(t, testutil.CategoryMonthsFixture(map[string]int{"Snacks": 6, "Bakery": 5}))
	cfg.Metrics.Textfile = filepath.Join(t.TempDir(), "demandflow.prom")
	ledger := testutil.SetupTestDB(t)
	p := openPipeline(t, cfg, WithLedger(ledger))

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	bakery, ok := res.Outcome("Bakery")
	require.True(t, ok)
	assert.Equal(t, model.OutcomeSkipped, bakery.Outcome)
	assert.Equal(t, 5, bakery.Observations)

	snacks, ok := res.Outcome("Snacks")
	require.True(t, ok)
	require.Equal(t, model.OutcomeForecast, snacks.Outcome)

	// every history month plus the horizon
	require.Len(t, res.Forecast, len(snacks.History)+cfg.Forecast.Horizon)
	last := snacks.History[len(snacks.History)-1].Timestamp
	for i, row := range res.Forecast {
		assert.Equal(t, "Snacks", row.Category)
		if i < len(snacks.History) {
			assert.Equal(t, snacks.History[i].Timestamp, row.Timestamp)
		} else {
			assert.True(t, row.Timestamp.After(last))
		}
		assert.LessOrEqual(t, row.LowerBound, row.PointEstimate)
		assert.LessOrEqual(t, row.PointEstimate, row.UpperBound)
	}

	require.Len(t, res.Plots, 1)
	assert.FileExists(t, filepath.Join(cfg.Output.Dir, "forecast_plot_Snacks.png"))
	assert.NoFileExists(t, filepath.Join(cfg.Output.Dir, "forecast_plot_Bakery.png"))

	outcomes, err := ledger.CategoryOutcomes(context.Background(), res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, outcomes[model.OutcomeForecast])
	assert.Equal(t, 1, outcomes[model.OutcomeSkipped])

	rows, err := ledger.TableRowCount(context.Background(), model.TableForecast)
	require.NoError(t, err)
	assert.Equal(t, 12, rows)

	metrics, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `demandflow_categories{outcome="forecast"} 1`)
	assert.Contains(t, string(metrics), "demandflow_last_run_success 1")
}

func TestRun_NoPlots(t *testing.T) {
	cfg := testConfig(t, testutil.CategoryMonthsFixture(map[string]int{"Snacks": 6}))
	cfg.Plots = false
	p := openPipeline(t, cfg)

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Forecast, 12)
	assert.Empty(t, res.Plots)
	assert.NoFileExists(t, filepath.Join(cfg.Output.Dir, "forecast_plot_Snacks.png"))
}

func TestRun_MissingSource(t *testing.T) {
	cfg := testConfig(t, testutil.SingleSaleFixture())
	require.NoError(t, os.Remove(filepath.Join(cfg.Input.Dir, model.DefaultFileNames[model.Feedback])))
	ledger := testutil.SetupTestDB(t)
	p := openPipeline(t, cfg, WithLedger(ledger))

	res, err := p.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMissingSource)
	assert.NoFileExists(t, filepath.Join(cfg.Output.Dir, "combined_category_forecast.csv"))

	run, err := ledger.GetRun(context.Background(), res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, run.Status)
}

func TestRun_SinkFailure(t *testing.T) {
	cfg := testConfig(t, testutil.SingleSaleFixture())
	mock := sheets.NewMockWriter()
	mock.SetWriteError(errors.New("quota exceeded"))
	p := openPipeline(t, cfg, WithSinks(mock))

	res, err := p.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrExportFailed)
	assert.Contains(t, err.Error(), "sheets")
	assert.Equal(t, model.RunStatusFailed, res.Run.Status)
	assert.Equal(t, 1, mock.WriteCallCount)
}

func TestRun_ExportsEveryTable(t *testing.T) {
	cfg := testConfig(t, testutil.SingleSaleFixture())
	mock := sheets.NewMockWriter()
	p := openPipeline(t, cfg, WithSinks(mock))

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	calls := mock.GetWriteCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{
		model.TableSales,
		model.TableCustomerOrders,
		model.TableDeliveryAnalysis,
		model.TableFeedbackData,
		model.TableForecast,
		model.TableDailyDemand,
		model.TableMonthlyDemand,
	}, calls[0].Tables)
}

type countingProgress struct {
	total int
	ticks int
	mu    sync.Mutex
}

func (c *countingProgress) Add(n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks += n
	return nil
}

func TestRun_Progress(t *testing.T) {
	cfg := testConfig(t, testutil.CategoryMonthsFixture(map[string]int{"Snacks": 6, "Bakery": 2, "Dairy": 3}))
	cfg.Forecast.Workers = 2
	cfg.Plots = false

	progress := &countingProgress{}
	p := openPipeline(t, cfg, WithProgress(func(total int) forecast.Progress {
		progress.total = total
		return progress
	}))

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, progress.total)
	assert.Equal(t, 3, progress.ticks)

	categories := make([]string, len(res.Categories))
	for i, c := range res.Categories {
		categories[i] = c.Category
	}
	assert.Equal(t, []string{"Bakery", "Dairy", "Snacks"}, categories)
}

func TestRun_Canceled(t *testing.T) {
	cfg := testConfig(t, testutil.SingleSaleFixture())
	p := openPipeline(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := p.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.RunStatusFailed, res.Run.Status)
}

func TestRun_StampsRun(t *testing.T) {
	cfg := testConfig(t, testutil.SingleSaleFixture())
	at := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	p := openPipeline(t, cfg, WithClock(func() time.Time { return at }))

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, res.Run.ID)
	assert.Equal(t, at, res.Run.StartedAt)
	assert.Equal(t, at, res.Run.FinishedAt)
	assert.Equal(t, cfg.Input.Dir, res.Run.InputDir)
}

func TestOpen_ConfiguredSinks(t *testing.T) {
	cfg := testConfig(t, testutil.SingleSaleFixture())
	out := t.TempDir()
	cfg.Export.XLSX.Path = filepath.Join(out, "demand.xlsx")
	cfg.Export.SQLite.Path = filepath.Join(out, "demand.db")

	p := openPipeline(t, cfg)
	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"csv", "xlsx", "sqlite"}, res.Sinks)
	assert.FileExists(t, cfg.Export.XLSX.Path)
	assert.FileExists(t, cfg.Export.SQLite.Path)
	assert.Equal(t, cfg.Output.Dir, p.Store().Location())
}

func TestOpen_InvalidSheetsConfig(t *testing.T) {
	cfg := testConfig(t, testutil.SingleSaleFixture())
	cfg.Export.Sheets = true
	cfg.Sheets = sheets.Config{}

	_, err := Open(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sheets writer")
}

func TestOpen_ReleasesLedgerOnError(t *testing.T) {
	cfg := testConfig(t, testutil.SingleSaleFixture())
	cfg.Export.SQLite.Path = filepath.Join(t.TempDir(), "demand.db")
	cfg.Export.Sheets = true
	cfg.Sheets = sheets.Config{}

	var (
		p   *Pipeline
		err error
	)
	require.NotPanics(t, func() {
		p, err = Open(context.Background(), cfg)
	})
	require.Error(t, err)
	assert.Nil(t, p)

	// the ledger was migrated before the sink failed, then closed
	db, err := storage.NewSQLiteStorage(cfg.Export.SQLite.Path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	version, err := db.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, storage.ExpectedSchemaVersion, version)
}

func TestOpen_BadStore(t *testing.T) {
	cfg := testConfig(t, testutil.SingleSaleFixture())
	cfg.Output = blob.Config{}

	p, err := Open(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, p)
	assert.Contains(t, err.Error(), "artifact store")
}

func TestInspect(t *testing.T) {
	fx := testutil.SingleSaleFixture()
	fx[model.Orders] = append(fx[model.Orders],
		[]string{"1", "10", "2024-01-05 10:15:00", "7", "On Time"},
		[]string{"", "11", "2024-01-06 09:00:00", "7", "On Time"},
	)
	cfg := testConfig(t, fx)
	p := New(cfg)

	insp, err := p.Inspect(context.Background())
	require.NoError(t, err)
	require.Len(t, insp.Profiles, len(model.AllDatasets))

	orders := insp.Profiles[0]
	assert.Equal(t, model.Orders, orders.Dataset)
	assert.Equal(t, 3, orders.Rows)
	assert.Equal(t, 1, orders.Duplicates)

	cleaned := insp.Cleaned[0]
	assert.Equal(t, 1, cleaned.Rows)
	assert.Zero(t, cleaned.TotalMissing())

	require.NotEmpty(t, insp.Reports)
	assert.Equal(t, 1, insp.Reports[0].DroppedMissingIDs)
	assert.Equal(t, 1, insp.Reports[0].Duplicates)

	assert.NoFileExists(t, filepath.Join(cfg.Output.Dir, "combined_category_forecast.csv"))
}

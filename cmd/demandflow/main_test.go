package main

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/Veraticus/demandflow/internal/model"
	"github.com/Veraticus/demandflow/internal/storage"
	"github.com/Veraticus/demandflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "demandflow "+version)
}

func TestRunCmd(t *testing.T) {
	in := t.TempDir()
	testutil.WriteFixture(t, in, testutil.CategoryMonthsFixture(map[string]int{"Snacks": 6, "Bakery": 2}))
	outDir := t.TempDir()

	out, err := executeCommand(t, "run",
		"--input-dir", in,
		"--output-dir", outDir,
		"--no-plots",
		"--report",
	)
	require.NoError(t, err)

	assert.Contains(t, out, "Demand forecast complete")
	assert.Contains(t, out, "1 forecast, 1 skipped, 0 failed")
	assert.Contains(t, out, "order_items")
	assert.FileExists(t, filepath.Join(outDir, model.TableForecast+".csv"))
	assert.NoFileExists(t, filepath.Join(outDir, "forecast_plot_Snacks.png"))
}

func TestRunCmd_InvalidHorizon(t *testing.T) {
	in := t.TempDir()
	testutil.WriteFixture(t, in, testutil.SingleSaleFixture())

	_, err := executeCommand(t, "run", "--input-dir", in, "--output-dir", t.TempDir(), "--horizon", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forecast.horizon must be at least 1")

	// Later tests share the root command; restore a valid horizon
	run, _, err := rootCmd.Find([]string{"run"})
	require.NoError(t, err)
	require.NoError(t, run.Flags().Set("horizon", "6"))
}

func TestMigrateCmd(t *testing.T) {
	db := filepath.Join(t.TempDir(), "demandflow.db")

	out, err := executeCommand(t, "migrate", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Database migrations completed")

	out, err = executeCommand(t, "migrate", "--db", db, "--status")
	require.NoError(t, err)
	want := fmt.Sprintf("Schema version %d of %d", storage.ExpectedSchemaVersion, storage.ExpectedSchemaVersion)
	assert.Contains(t, out, want)
}

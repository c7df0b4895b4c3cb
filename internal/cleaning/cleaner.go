// Package cleaning normalizes the loaded tables: date coercion, dropping rows
// without identifiers, median imputation, categorical normalization and
// duplicate removal.
package cleaning

import (
	"context"
	"fmt"
	"strings"

	"github.com/Veraticus/demandflow/internal/common"
	"github.com/Veraticus/demandflow/internal/dataset"
	"github.com/Veraticus/demandflow/internal/model"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Report summarizes what cleaning changed in one table.
type Report struct {
	Imputed           map[string]int
	Filled            map[string]int
	Dataset           model.DatasetName
	RowsIn            int
	RowsOut           int
	DroppedMissingIDs int
	InvalidDates      int
	Duplicates        int
}

// Cleaner applies the dataset schemas to loaded tables.
type Cleaner struct {
	schemas map[model.DatasetName]model.Schema
}

// NewCleaner creates a cleaner using the built-in dataset schemas.
func NewCleaner() *Cleaner {
	return &Cleaner{schemas: model.Schemas}
}

// Clean cleans every table in ds and returns new tables; ds is not modified.
func (c *Cleaner) Clean(ctx context.Context, ds dataset.Datasets) (dataset.Datasets, []Report, error) {
	out := make(dataset.Datasets, len(ds))
	reports := make([]Report, 0, len(ds))

	for _, name := range model.AllDatasets {
		df, ok := ds[name]
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		schema, ok := c.schemas[name]
		if !ok {
			schema = model.Schema{Name: name}
		}

		cleaned, report, err := c.CleanTable(schema, df)
		if err != nil {
			return nil, nil, fmt.Errorf("clean %s: %w", name, err)
		}

		common.LogInfo("Cleaned dataset", common.Fields{
			"dataset":             name,
			"rows_in":             report.RowsIn,
			"rows_out":            report.RowsOut,
			"dropped_missing_ids": report.DroppedMissingIDs,
			"duplicates":          report.Duplicates,
			"invalid_dates":       report.InvalidDates,
		})

		out[name] = cleaned
		reports = append(reports, report)
	}
	return out, reports, nil
}

// CleanTable applies one schema. Columns named by the schema but absent from df are skipped.
func (c *Cleaner) CleanTable(schema model.Schema, df dataframe.DataFrame) (dataframe.DataFrame, Report, error) {
	report := Report{
		Dataset: schema.Name,
		RowsIn:  df.Nrow(),
		Imputed: map[string]int{},
		Filled:  map[string]int{},
	}

	for _, col := range schema.Dates {
		if !dataset.HasColumn(df, col) {
			skipped(schema.Name, "coerce dates", col)
			continue
		}
		var invalid int
		df, invalid = CoerceDates(df, col)
		report.InvalidDates += invalid
	}

	if ids := presentColumns(df, schema.RequiredIDs); len(ids) > 0 {
		before := df.Nrow()
		df = DropMissing(df, ids...)
		report.DroppedMissingIDs = before - df.Nrow()
	}

	for _, col := range schema.Numeric {
		if !dataset.HasColumn(df, col) {
			skipped(schema.Name, "impute median", col)
			continue
		}
		var n int
		df, n = ImputeMedian(df, col)
		report.Imputed[col] = n
	}

	for _, col := range schema.Categorical {
		if !dataset.HasColumn(df, col) {
			skipped(schema.Name, "normalize categorical", col)
			continue
		}
		var n int
		df, n = FillCategorical(df, col, model.DefaultCategory)
		report.Filled[col] = n
	}

	before := df.Nrow()
	df = Deduplicate(df)
	report.Duplicates = before - df.Nrow()

	if df.Err != nil {
		return dataframe.DataFrame{}, report, df.Err
	}
	report.RowsOut = df.Nrow()
	return df, report, nil
}

// DropMissing removes rows that are missing a value in any of cols.
func DropMissing(df dataframe.DataFrame, cols ...string) dataframe.DataFrame {
	cols = presentColumns(df, cols)
	if len(cols) == 0 {
		return df
	}

	missing := make([]bool, df.Nrow())
	for _, col := range cols {
		for i, na := range df.Col(col).IsNaN() {
			if na {
				missing[i] = true
			}
		}
	}

	keep := make([]int, 0, df.Nrow())
	for i, m := range missing {
		if !m {
			keep = append(keep, i)
		}
	}
	if len(keep) == df.Nrow() {
		return df
	}
	return df.Subset(keep)
}

// ImputeMedian replaces missing values of col with the median of its present values.
// Columns with missing values are converted to floats first. A column with no present
// values is returned unchanged.
func ImputeMedian(df dataframe.DataFrame, col string) (dataframe.DataFrame, int) {
	s := df.Col(col)
	if s.Type() != series.Float && s.Type() != series.Int {
		s = series.New(s, series.Float, col)
	}

	var present, missing []int
	for i, na := range s.IsNaN() {
		if na {
			missing = append(missing, i)
		} else {
			present = append(present, i)
		}
	}
	if len(missing) == 0 {
		return df, 0
	}
	if len(present) == 0 {
		common.LogWarn("Column has no values to take a median from", common.Fields{"column": col})
		return df, 0
	}

	median := s.Subset(present).Median()
	filled := series.New(s, series.Float, col)
	fill := make([]float64, len(missing))
	for i := range fill {
		fill[i] = median
	}
	filled = filled.Set(missing, series.Floats(fill))

	return df.Mutate(filled), len(missing)
}

// FillCategorical replaces missing values of col with fill, then trims and title-cases every value.
func FillCategorical(df dataframe.DataFrame, col, fill string) (dataframe.DataFrame, int) {
	s := df.Col(col)
	values := make([]string, s.Len())
	filled := 0
	for i := 0; i < s.Len(); i++ {
		e := s.Elem(i)
		if e.IsNA() {
			values[i] = NormalizeLabel(fill)
			filled++
			continue
		}
		v, _ := dataset.KeyString(e)
		values[i] = NormalizeLabel(v)
	}
	return df.Mutate(series.New(values, series.String, col)), filled
}

// Deduplicate removes rows identical in every column, keeping the first occurrence.
func Deduplicate(df dataframe.DataFrame) dataframe.DataFrame {
	keep := make([]int, 0, df.Nrow())
	seen := make(map[string]struct{}, df.Nrow())
	for i, key := range rowKeys(df) {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keep = append(keep, i)
	}
	if len(keep) == df.Nrow() {
		return df
	}
	return df.Subset(keep)
}

// CountDuplicates returns how many rows repeat an earlier row exactly.
func CountDuplicates(df dataframe.DataFrame) int {
	seen := make(map[string]struct{}, df.Nrow())
	dups := 0
	for _, key := range rowKeys(df) {
		if _, dup := seen[key]; dup {
			dups++
			continue
		}
		seen[key] = struct{}{}
	}
	return dups
}

// rowKeys renders each row as a single comparable string at full float precision.
// Missing cells render distinctly from any value.
func rowKeys(df dataframe.DataFrame) []string {
	names := df.Names()
	cols := make([]series.Series, len(names))
	for i, n := range names {
		cols[i] = df.Col(n)
	}

	keys := make([]string, df.Nrow())
	var b strings.Builder
	for r := range keys {
		b.Reset()
		for c, s := range cols {
			if c > 0 {
				b.WriteByte(0x1f)
			}
			key, ok := dataset.KeyString(s.Elem(r))
			if !ok {
				b.WriteByte(0x00)
				continue
			}
			b.WriteString(key)
		}
		keys[r] = b.String()
	}
	return keys
}

func presentColumns(df dataframe.DataFrame, cols []string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if dataset.HasColumn(df, c) {
			out = append(out, c)
		}
	}
	return out
}

func skipped(name model.DatasetName, step, col string) {
	common.LogDebug("Column absent, skipping step", common.Fields{
		"dataset": name,
		"step":    step,
		"column":  col,
	})
}

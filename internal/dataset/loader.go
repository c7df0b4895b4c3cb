// Package dataset loads the source tables into data frames and provides
// helpers for reading cells back out of them.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/demandflow/internal/common"
	"github.com/Veraticus/demandflow/internal/model"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"
)

// MissingValues are the cell contents read as missing.
var MissingValues = []string{"", "NA", "N/A", "n/a", "NaN", "nan", "null", "NULL", "None", "<NA>", "<nil>", "#N/A"}

// Sources maps each dataset to the file it is read from.
type Sources map[model.DatasetName]string

// SourcesFromDir resolves the default file names against dir.
// Overrides replace individual entries; relative overrides are resolved against dir too.
func SourcesFromDir(dir string, overrides map[model.DatasetName]string) Sources {
	src := make(Sources, len(model.AllDatasets))
	for _, name := range model.AllDatasets {
		file := model.DefaultFileNames[name]
		if o, ok := overrides[name]; ok && o != "" {
			file = o
		}
		if !filepath.IsAbs(file) {
			file = filepath.Join(dir, file)
		}
		src[name] = file
	}
	return src
}

// Datasets holds the loaded tables keyed by dataset.
type Datasets map[model.DatasetName]dataframe.DataFrame

// Loader reads CSV and XLSX sources.
type Loader struct {
	// Sheet selects the worksheet of XLSX sources. Empty means the first sheet.
	Sheet string
}

// NewLoader creates a loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads every dataset in src. Any missing or malformed source is fatal.
func (l *Loader) Load(ctx context.Context, src Sources) (Datasets, error) {
	out := make(Datasets, len(src))
	for _, name := range model.AllDatasets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path, ok := src[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s: no source configured", common.ErrMissingSource, name)
		}

		df, err := l.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s (%s): %v", common.ErrMissingSource, name, path, err)
		}

		rows, cols := df.Dims()
		slog.Info("Loaded dataset", "dataset", name, "path", path, "rows", rows, "columns", cols)
		out[name] = df
	}
	return out, nil
}

// LoadFile reads a single source, choosing the reader from the file extension.
func (l *Loader) LoadFile(path string) (dataframe.DataFrame, error) {
	var records [][]string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		records, err = l.readXLSX(path)
	default:
		records, err = readCSV(path)
	}
	if err != nil {
		return dataframe.DataFrame{}, err
	}

	return FromRecords(records)
}

// FromRecords builds a frame from a header row followed by data rows.
// Column types are detected; values in MissingValues become missing.
func FromRecords(records [][]string) (dataframe.DataFrame, error) {
	if len(records) == 0 || len(records[0]) == 0 {
		return dataframe.DataFrame{}, errors.New("no header row")
	}

	header := records[0]
	header[0] = strings.TrimPrefix(header[0], "\ufeff")
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	if len(records) == 1 {
		return Empty(header...), nil
	}

	for i, row := range records[1:] {
		if len(row) != len(header) {
			return dataframe.DataFrame{}, fmt.Errorf("row %d has %d fields, header has %d", i+2, len(row), len(header))
		}
	}

	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(MissingValues),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, df.Err
	}
	return df, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path) // #nosec G304 -- paths come from configuration
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var records [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (l *Loader) readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheet := l.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	// GetRows drops trailing empty cells; pad to the header width and skip blank rows.
	width := len(rows[0])
	records := make([][]string, 0, len(rows))
	records = append(records, rows[0])
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		if len(row) < width {
			padded := make([]string, width)
			copy(padded, row)
			row = padded
		}
		records = append(records, row[:width])
	}
	return records, nil
}

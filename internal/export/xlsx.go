package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Veraticus/demandflow/internal/dataset"
	"github.com/xuri/excelize/v2"
)

const (
	defaultSheet  = "Sheet1"
	maxSheetName  = 31
	headerFillHex = "#D9E1F2"
)

// XLSXSink writes every table to its own sheet of one workbook.
type XLSXSink struct {
	path string
}

// NewXLSXSink creates a workbook sink writing to path.
func NewXLSXSink(path string) *XLSXSink {
	return &XLSXSink{path: path}
}

// Name implements Sink.
func (s *XLSXSink) Name() string { return "xlsx" }

// WriteTables implements Sink.
func (s *XLSXSink) WriteTables(ctx context.Context, tables []dataset.Table) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{headerFillHex}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, t := range tables {
		if err := ctx.Err(); err != nil {
			return err
		}
		sheet := SheetName(t.Name)
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, sheet); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet, err)
		}
		if err := writeSheet(f, sheet, t); err != nil {
			return fmt.Errorf("write sheet %s: %w", sheet, err)
		}
		if err := f.SetRowStyle(sheet, 1, 1, header); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return err
	}
	return f.SaveAs(s.path)
}

func writeSheet(f *excelize.File, sheet string, t dataset.Table) error {
	names := t.Frame.Names()
	headerRow := make([]any, len(names))
	for i, n := range names {
		headerRow[i] = n
	}
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return err
	}

	for r, row := range dataset.Values(t.Frame) {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

// SheetName trims a table name to the workbook sheet name limit.
func SheetName(table string) string {
	if len(table) > maxSheetName {
		return table[:maxSheetName]
	}
	return table
}

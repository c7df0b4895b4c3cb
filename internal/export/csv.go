package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"

	"github.com/Veraticus/demandflow/internal/blob"
	"github.com/Veraticus/demandflow/internal/dataset"
	"github.com/go-gota/gota/dataframe"
)

// CSVSink writes each table as <name>.csv into a blob store.
type CSVSink struct {
	store blob.Store
}

// NewCSVSink creates a CSV sink over store.
func NewCSVSink(store blob.Store) *CSVSink {
	return &CSVSink{store: store}
}

// Name implements Sink.
func (s *CSVSink) Name() string { return "csv" }

// WriteTables implements Sink.
func (s *CSVSink) WriteTables(ctx context.Context, tables []dataset.Table) error {
	for _, t := range tables {
		data, err := EncodeCSV(t.Frame)
		if err != nil {
			return fmt.Errorf("encode %s: %w", t.Name, err)
		}
		if _, err := s.store.Put(ctx, FileName(t.Name), bytes.NewReader(data), blob.ContentTypeCSV); err != nil {
			return err
		}
	}
	return nil
}

// FileName is the CSV artifact name of a table.
func FileName(table string) string {
	return table + ".csv"
}

// EncodeCSV renders df with a header row and no index column. Missing values are empty fields.
func EncodeCSV(df dataframe.DataFrame) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(dataset.Rows(df)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Package export writes the pipeline's tables and artifacts to the configured sinks.
package export

import (
	"bytes"
	"context"
	"fmt"

	"github.com/Veraticus/demandflow/internal/blob"
	"github.com/Veraticus/demandflow/internal/common"
	"github.com/Veraticus/demandflow/internal/dataset"
)

// Sink persists a set of tables.
type Sink interface {
	Name() string
	WriteTables(ctx context.Context, tables []dataset.Table) error
}

// Exporter fans tables out to every sink and writes artifacts to the blob store.
type Exporter struct {
	store blob.Store
	sinks []Sink
}

// NewExporter creates an exporter writing artifacts to store.
func NewExporter(store blob.Store, sinks ...Sink) *Exporter {
	return &Exporter{store: store, sinks: sinks}
}

// Sinks returns the names of the configured sinks, in write order.
func (e *Exporter) Sinks() []string {
	names := make([]string, len(e.sinks))
	for i, s := range e.sinks {
		names[i] = s.Name()
	}
	return names
}

// ExportTables writes tables to each sink in turn. The first failing sink stops the export.
func (e *Exporter) ExportTables(ctx context.Context, tables []dataset.Table) error {
	for _, s := range e.sinks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.WriteTables(ctx, tables); err != nil {
			return fmt.Errorf("%w: %s sink: %w", common.ErrExportFailed, s.Name(), err)
		}
		common.LogInfo("Exported tables", common.Fields{"sink": s.Name(), "tables": len(tables)})
	}
	return nil
}

// PutArtifact stores an opaque artifact such as a rendered plot.
func (e *Exporter) PutArtifact(ctx context.Context, key string, data []byte, contentType string) (blob.Info, error) {
	if e.store == nil {
		return blob.Info{}, fmt.Errorf("%w: no artifact store configured", common.ErrExportFailed)
	}
	info, err := e.store.Put(ctx, key, bytes.NewReader(data), contentType)
	if err != nil {
		return blob.Info{}, fmt.Errorf("%w: artifact %s: %w", common.ErrExportFailed, key, err)
	}
	common.LogDebug("Stored artifact", common.Fields{"key": key, "location": info.Location})
	return info, nil
}

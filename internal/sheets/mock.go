package sheets

import (
	"context"
	"sync"

	"github.com/Veraticus/demandflow/internal/dataset"
)

// MockWriter is a mock sink for testing code that publishes to Sheets.
type MockWriter struct {
	WriteFunc      func(ctx context.Context, tables []dataset.Table) error
	WriteCalls     []WriteCall
	WriteCallCount int
	mu             sync.Mutex
}

// WriteCall represents a single call to WriteTables.
type WriteCall struct {
	Error  error
	Tables []string
}

// NewMockWriter creates a new mock writer.
func NewMockWriter() *MockWriter {
	return &MockWriter{
		WriteCalls: make([]WriteCall, 0),
	}
}

// Name implements export.Sink.
func (m *MockWriter) Name() string { return "sheets" }

// WriteTables records the call and returns the configured error, if any.
func (m *MockWriter) WriteTables(ctx context.Context, tables []dataset.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCallCount++

	var err error
	if m.WriteFunc != nil {
		err = m.WriteFunc(ctx, tables)
	}

	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	m.WriteCalls = append(m.WriteCalls, WriteCall{Tables: names, Error: err})

	return err
}

// Reset clears all recorded calls.
func (m *MockWriter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCallCount = 0
	m.WriteCalls = make([]WriteCall, 0)
}

// GetWriteCalls returns a copy of all write calls.
func (m *MockWriter) GetWriteCalls() []WriteCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]WriteCall, len(m.WriteCalls))
	copy(calls, m.WriteCalls)
	return calls
}

// SetWriteError configures the mock to return err from every WriteTables call.
func (m *MockWriter) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteFunc = func(_ context.Context, _ []dataset.Table) error {
		return err
	}
}

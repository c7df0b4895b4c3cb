package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// syncBuffer provides thread-safe access to a bytes.Buffer.
type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (s *syncBuffer) Write(p []byte) (n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestNewInterruptHandler(t *testing.T) {
	tests := []struct {
		writer io.Writer
		name   string
	}{
		{
			name:   "with custom writer",
			writer: &bytes.Buffer{},
		},
		{
			name:   "with nil writer",
			writer: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewInterruptHandler(tt.writer)
			assert.NotNil(t, handler)
			assert.NotNil(t, handler.writer)
			assert.False(t, handler.WasInterrupted())
		})
	}
}

func TestHandleInterrupts(t *testing.T) {
	output := &syncBuffer{}
	handler := NewInterruptHandler(output)
	handler.SetHint("Partial output left in /tmp/out")

	ctx := handler.HandleInterrupts(context.Background())

	// Context should not be canceled initially
	select {
	case <-ctx.Done():
		t.Fatal("Context should not be canceled initially")
	default:
	}

	handler.interrupt()

	<-ctx.Done()
	assert.True(t, handler.WasInterrupted())
	outputStr := output.String()
	assert.Contains(t, outputStr, "Pipeline interrupted!")
	assert.Contains(t, outputStr, "Partial output left in /tmp/out")
}

func TestHandleInterrupts_ParentCanceled(t *testing.T) {
	output := &syncBuffer{}
	handler := NewInterruptHandler(output)

	parent, cancel := context.WithCancel(context.Background())
	ctx := handler.HandleInterrupts(parent)
	cancel()

	<-ctx.Done()
	assert.False(t, handler.WasInterrupted(), "parent cancellation is not an interrupt")
	assert.Empty(t, output.String())
}

func TestMultipleInterrupts(t *testing.T) {
	output := &syncBuffer{}
	handler := NewInterruptHandler(output)
	_ = handler.HandleInterrupts(context.Background())

	handler.interrupt()
	handler.interrupt()

	// Message should only be shown once
	count := strings.Count(output.String(), "Pipeline interrupted!")
	assert.Equal(t, 1, count, "Interrupt message should only be shown once")
}

func TestShowInterruptMessage(t *testing.T) {
	tests := []struct {
		name        string
		hint        string
		expected    []string
		notExpected []string
	}{
		{
			name: "with hint",
			hint: "Partial output left in output/",
			expected: []string{
				"Pipeline interrupted!",
				"Partial output left in output/",
				"Nothing was recorded as a successful run.",
			},
		},
		{
			name: "without hint",
			expected: []string{
				"Pipeline interrupted!",
			},
			notExpected: []string{
				"Partial output",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var output bytes.Buffer
			handler := &InterruptHandler{
				writer: &output,
				hint:   tt.hint,
			}

			handler.showInterruptMessage()

			outputStr := output.String()
			for _, expected := range tt.expected {
				assert.Contains(t, outputStr, expected)
			}
			for _, notExpected := range tt.notExpected {
				assert.NotContains(t, outputStr, notExpected)
			}
		})
	}
}

// Package memory is an in-process export writer used in tests and when no
// spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"tally/internal/export"
)

type Writer struct {
	mu   sync.Mutex
	rows []export.Row
}

func New() *Writer {
	return &Writer{}
}

func (w *Writer) Append(_ context.Context, row export.Row) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = append(w.rows, row)
	return fmt.Sprintf("row-%d", len(w.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (w *Writer) Rows() []export.Row {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]export.Row, len(w.rows))
	copy(out, w.rows)
	return out
}

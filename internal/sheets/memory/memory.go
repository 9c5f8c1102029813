// Package memory is an in-process sheets writer for development and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"timetrack/internal/report"
	ports "timetrack/internal/sheets"
)

type Writer struct {
	mu      sync.Mutex
	entries []report.Row
	report  []report.Row
	reports int
}

var _ ports.Writer = (*Writer)(nil)

func New() *Writer {
	return &Writer{}
}

// AppendEntryRow stores the row, replacing one with the same entry id, and
// returns a synthetic row reference.
func (w *Writer) AppendEntryRow(_ context.Context, row report.Row) (string, error) {
	if row.EntryID == "" {
		return "", errors.New("row has no entry id")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.entries {
		if w.entries[i].EntryID == row.EntryID {
			w.entries[i] = row
			return fmt.Sprintf("mem:%d", i+1), nil
		}
	}
	w.entries = append(w.entries, row)
	return fmt.Sprintf("mem:%d", len(w.entries)), nil
}

func (w *Writer) WriteReport(_ context.Context, rows []report.Row) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.report = append([]report.Row(nil), rows...)
	w.reports++
	return nil
}

// Entries returns a copy of the entry rows in write order.
func (w *Writer) Entries() []report.Row {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]report.Row(nil), w.entries...)
}

// Report returns the last written report and how many reports were written.
func (w *Writer) Report() ([]report.Row, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]report.Row(nil), w.report...), w.reports
}

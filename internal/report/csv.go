// Package report flattens grouped time entries into export rows and writes
// them as CSV.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"timetrack/internal/core"
)

// TimestampLayout is ISO-8601 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Header is always the first record of an export.
var Header = []string{"Project", "Task", "Start", "End", "Duration (HH:MM)"}

// Row is one exported time entry.
type Row struct {
	EntryID  string `json:"entryId" yaml:"entryId"`
	Project  string `json:"project" yaml:"project"`
	Task     string `json:"task" yaml:"task"`
	Start    string `json:"start" yaml:"start"`
	End      string `json:"end" yaml:"end"`
	Duration string `json:"duration" yaml:"duration"`
}

// Record returns the row in Header order.
func (r Row) Record() []string {
	return []string{r.Project, r.Task, r.Start, r.End, r.Duration}
}

// FormatTimestamp renders t for export, or "" for a zero time.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}

// NewRow builds the export row of a single entry. Running entries have an
// empty end and a 00:00 duration.
func NewRow(projectName string, e core.TimeEntry) Row {
	row := Row{
		EntryID:  e.ID,
		Project:  projectName,
		Task:     e.Notes,
		Start:    FormatTimestamp(e.StartedAt),
		Duration: core.FormatMinutes(core.EntryMinutes(e)),
	}
	if e.EndedAt != nil {
		row.End = FormatTimestamp(*e.EndedAt)
	}
	return row
}

// Flatten turns groups back into one row per entry, group by group, keeping
// each group's entry order.
func Flatten(groups []core.GroupedRow) []Row {
	n := 0
	for _, g := range groups {
		n += len(g.Entries)
	}
	rows := make([]Row, 0, n)
	for _, g := range groups {
		for _, e := range g.Entries {
			rows = append(rows, NewRow(g.ProjectName, e))
		}
	}
	return rows
}

// WriteCSV writes the header and the flattened rows of groups to w using
// CRLF record separators.
func WriteCSV(w io.Writer, groups []core.GroupedRow) error {
	return WriteRows(w, Flatten(groups))
}

// WriteRows writes the header followed by rows.
func WriteRows(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.Record()); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.EntryID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Values converts rows to the [][]interface{} shape used by spreadsheet
// writers, header first.
func Values(rows []Row) [][]interface{} {
	out := make([][]interface{}, 0, len(rows)+1)
	out = append(out, toValues(Header))
	for _, r := range rows {
		out = append(out, toValues(r.Record()))
	}
	return out
}

func toValues(fields []string) []interface{} {
	vals := make([]interface{}, len(fields))
	for i, f := range fields {
		vals[i] = f
	}
	return vals
}

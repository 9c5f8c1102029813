package sheets

import (
	"context"

	"timetrack/internal/report"
)

// Ports for outbound adapters.
type (
	// EntryWriter mirrors finished time entries into a spreadsheet tab.
	EntryWriter interface {
		// AppendEntryRow writes row, replacing an earlier row for the same
		// entry, and returns a reference to the written range.
		AppendEntryRow(ctx context.Context, row report.Row) (rowRef string, err error)
	}

	// ReportWriter publishes a full period report.
	ReportWriter interface {
		// WriteReport replaces the report tab with the header followed by rows.
		WriteReport(ctx context.Context, rows []report.Row) error
	}

	Writer interface {
		EntryWriter
		ReportWriter
	}
)

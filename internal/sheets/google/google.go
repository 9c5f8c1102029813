package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"timetrack/internal/report"
	ports "timetrack/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// entryIDHeader labels the key column appended after the export columns.
const entryIDHeader = "Entry ID"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	entriesSheet  string
	reportSheet   string
}

var _ ports.Writer = (*Client)(nil)

// Options configures New. Exactly one of CredentialsJSON or CredentialsFile
// is used, JSON first.
type Options struct {
	SpreadsheetID   string
	EntriesSheet    string
	ReportSheet     string
	CredentialsJSON string
	CredentialsFile string
}

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Credentials: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
// Optional tab names: GOOGLE_SHEET_NAME (default "Entries"),
// REPORT_SHEET_NAME (default "Report").
func NewFromEnv(ctx context.Context) (*Client, error) {
	return New(ctx, Options{
		SpreadsheetID:   os.Getenv("GOOGLE_SPREADSHEET_ID"),
		EntriesSheet:    os.Getenv("GOOGLE_SHEET_NAME"),
		ReportSheet:     os.Getenv("REPORT_SHEET_NAME"),
		CredentialsJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		CredentialsFile: os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
	})
}

func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	entries := strings.TrimSpace(opts.EntriesSheet)
	if entries == "" {
		entries = "Entries"
	}
	reportSheet := strings.TrimSpace(opts.ReportSheet)
	if reportSheet == "" {
		reportSheet = "Report"
	}

	creds, err := loadCredentials(ctx, opts)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created",
		"spreadsheet_id", spreadsheetID,
		"entries_sheet", entries,
		"report_sheet", reportSheet)

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		entriesSheet:  entries,
		reportSheet:   reportSheet,
	}, nil
}

// loadCredentials returns service account JSON from opts, falling back to
// GOOGLE_APPLICATION_CREDENTIALS.
func loadCredentials(ctx context.Context, opts Options) ([]byte, error) {
	inline := strings.TrimSpace(opts.CredentialsJSON)
	file := strings.TrimSpace(opts.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.DebugContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		slog.DebugContext(ctx, "Reading service account credentials", "path", file)
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// AppendEntryRow writes row to the entries tab. A row already holding the
// same entry id is overwritten so redelivered events stay idempotent.
func (c *Client) AppendEntryRow(ctx context.Context, row report.Row) (string, error) {
	if row.EntryID == "" {
		return "", errors.New("row has no entry id")
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:F", c.entriesSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", rng, err)
	}

	values := [][]interface{}{entryRecord(row)}
	rowNum, found := locateRow(resp.Values, row.EntryID)
	if len(resp.Values) == 0 {
		// Empty tab: header goes in row 1
		values = [][]interface{}{entryHeader(), entryRecord(row)}
		rowNum = 1
	}

	target := fmt.Sprintf("%s!A%d:F%d", c.entriesSheet, rowNum, rowNum+len(values)-1)
	vr := &gsheet.ValueRange{Values: values}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, target, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to update %s: %w", target, err)
	}

	slog.DebugContext(ctx, "Entry row written",
		"entry_id", row.EntryID,
		"range", target,
		"replaced", found)

	last := rowNum + len(values) - 1
	return fmt.Sprintf("%s!A%d:F%d", c.entriesSheet, last, last), nil
}

// WriteReport clears the report tab and writes the header and rows from A1.
func (c *Client) WriteReport(ctx context.Context, rows []report.Row) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	clearRange := fmt.Sprintf("%s!A:E", c.reportSheet)
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to clear %s: %w", clearRange, err)
	}

	target := fmt.Sprintf("%s!A1", c.reportSheet)
	vr := &gsheet.ValueRange{Values: report.Values(rows)}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, target, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to write report to %s: %w", c.reportSheet, err)
	}
	return nil
}

func entryHeader() []interface{} {
	out := make([]interface{}, 0, len(report.Header)+1)
	for _, h := range report.Header {
		out = append(out, h)
	}
	return append(out, entryIDHeader)
}

func entryRecord(row report.Row) []interface{} {
	rec := row.Record()
	out := make([]interface{}, 0, len(rec)+1)
	for _, v := range rec {
		out = append(out, v)
	}
	return append(out, row.EntryID)
}

// locateRow returns the 1-based row holding entryID in column F, or the
// first free row after values when none does.
func locateRow(values [][]interface{}, entryID string) (int, bool) {
	for i, row := range values {
		if len(row) < 6 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[5])) == entryID {
			return i + 1, true
		}
	}
	return len(values) + 1, false
}

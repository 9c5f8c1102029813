package google

import (
	"context"
	"strings"
	"testing"

	"timetrack/internal/report"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{CredentialsJSON: "{}"})
	if err == nil {
		t.Fatal("expected error for missing GOOGLE_SPREADSHEET_ID")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), Options{SpreadsheetID: "sheet-id"})
	if err == nil {
		t.Fatal("expected error without credentials")
	}
	if !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Options{
		SpreadsheetID:   "sheet-id",
		CredentialsFile: t.TempDir() + "/missing.json",
	})
	if err == nil {
		t.Fatal("expected error for missing credentials file")
	}
	if !strings.Contains(err.Error(), "read service account file") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")

	if _, err := NewFromEnv(context.Background()); err == nil {
		t.Fatal("expected error for missing GOOGLE_SPREADSHEET_ID")
	}
}

func TestClient_UninitializedService(t *testing.T) {
	c := &Client{spreadsheetID: "test", entriesSheet: "Entries", reportSheet: "Report"}

	if _, err := c.AppendEntryRow(context.Background(), report.Row{EntryID: "e1"}); err == nil {
		t.Error("AppendEntryRow should fail without a service")
	}
	if err := c.WriteReport(context.Background(), nil); err == nil {
		t.Error("WriteReport should fail without a service")
	}
}

func TestClient_AppendEntryRowRequiresID(t *testing.T) {
	c := &Client{spreadsheetID: "test"}

	_, err := c.AppendEntryRow(context.Background(), report.Row{Project: "Work"})
	if err == nil || !strings.Contains(err.Error(), "no entry id") {
		t.Errorf("expected missing id error, got %v", err)
	}
}

func TestLocateRow(t *testing.T) {
	values := [][]interface{}{
		{"Project", "Task", "Start", "End", "Duration (HH:MM)", "Entry ID"},
		{"Work", "Review", "s", "e", "01:00", "e1"},
		{"Home"},
		{"Work", "Deploy", "s", "e", "00:30", " e2 "},
	}

	tests := []struct {
		name      string
		values    [][]interface{}
		id        string
		wantRow   int
		wantFound bool
	}{
		{"existing entry", values, "e1", 2, true},
		{"trimmed id", values, "e2", 4, true},
		{"new entry goes after last row", values, "e3", 5, false},
		{"empty tab", nil, "e1", 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, found := locateRow(tt.values, tt.id)
			if row != tt.wantRow || found != tt.wantFound {
				t.Errorf("locateRow() = (%d, %v), want (%d, %v)", row, found, tt.wantRow, tt.wantFound)
			}
		})
	}
}

func TestEntryRecordLayout(t *testing.T) {
	row := report.Row{
		EntryID:  "e1",
		Project:  "Work",
		Task:     "Review",
		Start:    "2024-01-15T09:00:00.000Z",
		End:      "2024-01-15T10:30:00.000Z",
		Duration: "01:30",
	}

	rec := entryRecord(row)
	header := entryHeader()

	if len(rec) != 6 || len(header) != 6 {
		t.Fatalf("record len = %d, header len = %d, want 6", len(rec), len(header))
	}
	if header[5] != entryIDHeader || rec[5] != "e1" {
		t.Errorf("key column = %v / %v", header[5], rec[5])
	}
	if rec[0] != "Work" || rec[4] != "01:30" {
		t.Errorf("record = %v", rec)
	}
}

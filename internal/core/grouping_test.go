package core

import (
	"testing"
	"time"
)

func entryFor(id, project string, start time.Time, minutes float64) TimeEntry {
	end := start.Add(time.Duration(minutes * float64(time.Minute)))
	return TimeEntry{ID: id, ProjectID: project, StartedAt: start, EndedAt: &end}
}

func TestGroupByProjectOrdersByTotal(t *testing.T) {
	base := at(2024, time.January, 1, 9, 0)
	entries := []TimeEntry{
		entryFor("1", "A", base, 10),
		entryFor("2", "B", base.Add(time.Hour), 30),
		entryFor("3", "A", base.Add(2*time.Hour), 5),
	}
	projects := []Project{
		{ID: "A", Name: "Alpha", Color: "#f00"},
		{ID: "B", Name: "Beta", Color: "#0f0"},
	}

	rows := GroupByProject(entries, projects)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].ProjectID != "B" || rows[0].TotalMinutes != 30 {
		t.Fatalf("first row = %s(%v), want B(30)", rows[0].ProjectID, rows[0].TotalMinutes)
	}
	if rows[1].ProjectID != "A" || rows[1].TotalMinutes != 15 {
		t.Fatalf("second row = %s(%v), want A(15)", rows[1].ProjectID, rows[1].TotalMinutes)
	}
	if rows[1].Entries[0].ID != "1" || rows[1].Entries[1].ID != "3" {
		t.Fatalf("entries out of order: %+v", rows[1].Entries)
	}
	if rows[0].ProjectName != "Beta" || rows[0].Color != "#0f0" {
		t.Fatalf("project not resolved: %+v", rows[0])
	}
}

func TestGroupByProjectTieKeepsFirstSeen(t *testing.T) {
	base := at(2024, time.January, 1, 9, 0)
	entries := []TimeEntry{
		entryFor("1", "C", base, 20),
		entryFor("2", "A", base, 20),
		entryFor("3", "B", base, 20),
	}
	rows := GroupByProject(entries, nil)
	want := []string{"C", "A", "B"}
	for i, id := range want {
		if rows[i].ProjectID != id {
			t.Fatalf("row %d = %s, want %s", i, rows[i].ProjectID, id)
		}
	}
}

func TestGroupByProjectSkipsAndFallbacks(t *testing.T) {
	base := at(2024, time.January, 1, 9, 0)
	entries := []TimeEntry{
		entryFor("1", "", base, 45),
		{ID: "2", ProjectID: "ghost", StartedAt: base},
		entryFor("3", "ghost", base, 0.5),
	}
	rows := GroupByProject(entries, []Project{{ID: "other", Name: "Other"}})
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	r := rows[0]
	if r.ProjectName != UnknownProjectName || r.Color != "" {
		t.Fatalf("expected fallback name, got %+v", r)
	}
	if len(r.Entries) != 2 {
		t.Fatalf("running entry should still be grouped, got %d entries", len(r.Entries))
	}
	if r.TotalMinutes != 0.5 {
		t.Fatalf("TotalMinutes = %v, want 0.5", r.TotalMinutes)
	}
}

func TestGroupByProjectDoesNotFloorDuringAccumulation(t *testing.T) {
	base := at(2024, time.January, 1, 9, 0)
	var entries []TimeEntry
	for i := 0; i < 4; i++ {
		entries = append(entries, entryFor("e", "A", base, 0.75))
	}
	rows := GroupByProject(entries, nil)
	if rows[0].TotalMinutes != 3 {
		t.Fatalf("TotalMinutes = %v, want 3", rows[0].TotalMinutes)
	}
	if got := FormatMinutes(rows[0].TotalMinutes); got != "00:03" {
		t.Fatalf("FormatMinutes = %s, want 00:03", got)
	}
	if got := TotalMinutes(rows); got != 3 {
		t.Fatalf("TotalMinutes(rows) = %v", got)
	}
}

func TestGroupByProjectEmpty(t *testing.T) {
	rows := GroupByProject(nil, nil)
	if rows == nil || len(rows) != 0 {
		t.Fatalf("expected empty rows, got %#v", rows)
	}
}

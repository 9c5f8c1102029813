package core

import (
	"sort"
	"time"
)

// UnknownProjectName labels rows whose project record is missing.
const UnknownProjectName = "Unknown Project"

// GroupedRow aggregates the entries of one project. TotalMinutes keeps its
// fractional part; floor it only for display.
type GroupedRow struct {
	ProjectID    string      `json:"projectId"`
	ProjectName  string      `json:"projectName"`
	Color        string      `json:"color,omitempty"`
	Entries      []TimeEntry `json:"entries"`
	TotalMinutes float64     `json:"totalMinutes"`
}

// EntryMinutes is max(0, end-start) in fractional minutes, or 0 when either
// bound is missing.
func EntryMinutes(e TimeEntry) float64 {
	d, ok := e.Duration()
	if !ok {
		return 0
	}
	return d.Minutes()
}

// GroupByProject partitions entries by project and sorts the groups by
// descending total. Ties keep the order in which projects were first seen.
func GroupByProject(entries []TimeEntry, projects []Project) []GroupedRow {
	byID := make(map[string]Project, len(projects))
	for _, p := range projects {
		byID[p.ID] = p
	}

	index := make(map[string]int)
	rows := make([]GroupedRow, 0)
	for _, e := range entries {
		if e.ProjectID == "" {
			continue
		}
		i, ok := index[e.ProjectID]
		if !ok {
			row := GroupedRow{ProjectID: e.ProjectID, ProjectName: UnknownProjectName}
			if p, found := byID[e.ProjectID]; found {
				row.ProjectName = p.Name
				row.Color = p.Color
			}
			rows = append(rows, row)
			i = len(rows) - 1
			index[e.ProjectID] = i
		}
		rows[i].Entries = append(rows[i].Entries, e)
		rows[i].TotalMinutes += EntryMinutes(e)
	}

	sort.SliceStable(rows, func(a, b int) bool {
		return rows[a].TotalMinutes > rows[b].TotalMinutes
	})
	return rows
}

// TotalMinutes sums the row totals.
func TotalMinutes(rows []GroupedRow) float64 {
	var total float64
	for _, r := range rows {
		total += r.TotalMinutes
	}
	return total
}

// Minutes converts fractional minutes back into a duration.
func Minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}

package core

import "time"

type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// ParsePeriod maps a query keyword to a Period. Unknown or empty values
// fall back to PeriodDay.
func ParsePeriod(s string) Period {
	switch Period(s) {
	case PeriodWeek:
		return PeriodWeek
	case PeriodMonth:
		return PeriodMonth
	default:
		return PeriodDay
	}
}

func (p Period) String() string {
	return string(p)
}

// StartOfDay returns midnight of t's date in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WeekStart returns the Monday 00:00 anchor of t's week. Sunday belongs to
// the week that started six days earlier.
func WeekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, t.Location())
}

// PeriodRange returns the half-open window [from, to) of p around ref.
func PeriodRange(p Period, ref time.Time) (from, to time.Time) {
	switch p {
	case PeriodWeek:
		from = WeekStart(ref)
		to = from.AddDate(0, 0, 7)
	case PeriodMonth:
		y, m, _ := ref.Date()
		from = time.Date(y, m, 1, 0, 0, 0, 0, ref.Location())
		to = from.AddDate(0, 1, 0)
	default:
		from = StartOfDay(ref)
		to = from.AddDate(0, 0, 1)
	}
	return from, to
}

// InPeriod reports whether start falls in the same day, Monday-based week or
// month as ref, evaluated in ref's location. A zero start never matches.
func InPeriod(start time.Time, p Period, ref time.Time) bool {
	if start.IsZero() {
		return false
	}
	s := start.In(ref.Location())
	switch p {
	case PeriodWeek:
		return WeekStart(s).Equal(WeekStart(ref))
	case PeriodMonth:
		sy, sm, _ := s.Date()
		ry, rm, _ := ref.Date()
		return sy == ry && sm == rm
	default:
		sy, sm, sd := s.Date()
		ry, rm, rd := ref.Date()
		return sy == ry && sm == rm && sd == rd
	}
}

// FilterByPeriod returns the entries whose start is in p relative to ref,
// preserving order. The input slice is left untouched.
func FilterByPeriod(entries []TimeEntry, p Period, ref time.Time) []TimeEntry {
	out := make([]TimeEntry, 0, len(entries))
	for _, e := range entries {
		if InPeriod(e.StartedAt, p, ref) {
			out = append(out, e)
		}
	}
	return out
}

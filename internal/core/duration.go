package core

import (
	"fmt"
	"time"
)

// FormatHHMM renders d floored to whole minutes as zero-padded HH:MM. Hours
// are not wrapped at 24. Negative durations render as 00:00.
func FormatHHMM(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int64(d / time.Minute)
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// FormatMinutes is FormatHHMM for a fractional minute count.
func FormatMinutes(m float64) string {
	return FormatHHMM(Minutes(m))
}

// Clock is the wall-clock source consumed by services.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads time.Now in the local zone.
var SystemClock Clock = ClockFunc(time.Now)

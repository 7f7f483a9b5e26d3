// Package schedule computes when the next day's assignments are released.
package schedule

import (
	"fmt"
	"time"
)

// Clock is a time of day.
type Clock struct {
	Hour   int
	Minute int
	Second int
}

// DefaultRelease is the time students see new assignments.
var DefaultRelease = Clock{Hour: 8}

// ParseClock parses "HH:MM" or "HH:MM:SS".
func ParseClock(s string) (Clock, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return Clock{}, fmt.Errorf("invalid time of day %q: want HH:MM", s)
}

// String formats the clock as HH:MM:SS.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// on returns the clock's instant on t's date, in t's location.
func (c Clock) on(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), c.Hour, c.Minute, c.Second, 0, t.Location())
}

// weekday indexes Monday as 0 and Sunday as 6.
func weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// NextRelease returns the release instant governing "tomorrow's" work.
//
// Monday through Thursday after the release time roll to the next day.
// Friday after the release time and any time on the weekend roll to the
// following Monday. At or before the release time on a weekday the current
// date is kept. "After" is strict: exactly the release time keeps the day.
//
// The result is in now's location with the time of day set to release.
// Days are added on the calendar, not as 24h durations.
func NextRelease(now time.Time, release Clock) time.Time {
	wd := weekday(now)
	past := now.After(release.on(now))

	days := 0
	switch {
	case wd < 4 && past:
		days = 1
	case wd > 4 || (wd == 4 && past):
		days = 1 + (6 - wd)
	}

	return time.Date(now.Year(), now.Month(), now.Day()+days,
		release.Hour, release.Minute, release.Second, 0, now.Location())
}

// WeekdayName returns the English day name used in assignment titles.
func WeekdayName(t time.Time) string {
	return t.Weekday().String()
}

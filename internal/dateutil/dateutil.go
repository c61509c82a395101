// Package dateutil holds the calendar arithmetic shared by the month grid,
// the appointment form, and the daily check-in board.
package dateutil

import "time"

// DaysInMonth returns the number of days in t's month. Day 0 of the next
// month normalizes to the last day of this one, so leap years fall out of
// the rollover for free.
func DaysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// FirstWeekdayOfMonth returns the weekday index (0=Sunday .. 6=Saturday)
// of the first day of t's month.
func FirstWeekdayOfMonth(t time.Time) int {
	return int(time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).Weekday())
}

// SameDay reports whether a and b fall on the same calendar day,
// ignoring time of day. Both are compared in a's location.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// DayBounds returns the inclusive start and end of t's calendar day,
// [00:00:00, 23:59:59.999999999].
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	end := start.Add(24*time.Hour - time.Nanosecond)
	return start, end
}

// NextSlot returns the default start for a new appointment: now plus a
// ten-minute lead, rounded up to the next quarter hour.
func NextSlot(now time.Time) time.Time {
	t := now.Add(10 * time.Minute)
	t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
	if rem := t.Minute() % 15; rem != 0 {
		t = t.Add(time.Duration(15-rem) * time.Minute)
	}
	return t
}

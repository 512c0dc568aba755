package duty

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Day returns the civil date y-m-d as a time.Time at 00:00 UTC.
// All dates handled by this package use that representation.
func Day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateOf converts an instant into the civil date it falls on in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return Day(y, m, d)
}

// DateKey is the ISO key used by the override ledger and the task table.
func DateKey(d time.Time) string { return d.Format(dateLayout) }

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q (want YYYY-MM-DD)", ErrInvalidDateFormat, s)
	}
	return t, nil
}

// workingDaysPerWeek is the number of working days in any 7-day span.
const workingDaysPerWeek = 6

// Calendar classifies dates into working days and the single weekly rest day.
type Calendar struct {
	Rest time.Weekday
}

// DefaultCalendar rests on Sunday.
var DefaultCalendar = Calendar{Rest: time.Sunday}

var weekdayCodes = [...]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// WeekdayCode returns the short code ("mon".."sun") for d's weekday.
func WeekdayCode(d time.Time) string { return weekdayCodes[d.Weekday()] }

// ParseWeekday accepts a short code ("sun") or an English name ("Sunday").
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, c := range weekdayCodes {
		if s == c || s == strings.ToLower(time.Weekday(i).String()) {
			return time.Weekday(i), nil
		}
	}
	return time.Sunday, fmt.Errorf("invalid weekday %q", s)
}

func (c Calendar) IsWorkingDay(d time.Time) bool { return d.Weekday() != c.Rest }

// WorkingDaysBetween counts working days in (start, end]. It returns 0 when
// end is not after start.
func (c Calendar) WorkingDaysBetween(start, end time.Time) int {
	if !end.After(start) {
		return 0
	}
	days := daysBetween(start, end)
	weeks, rest := days/7, days%7
	n := weeks * workingDaysPerWeek
	d := start.AddDate(0, 0, weeks*7)
	for i := 0; i < rest; i++ {
		d = d.AddDate(0, 0, 1)
		if c.IsWorkingDay(d) {
			n++
		}
	}
	return n
}

// NextWorkingDay returns the first working day strictly after d.
func (c Calendar) NextWorkingDay(d time.Time) time.Time {
	for {
		d = d.AddDate(0, 0, 1)
		if c.IsWorkingDay(d) {
			return d
		}
	}
}

// PrevWorkingDay returns the last working day strictly before d.
func (c Calendar) PrevWorkingDay(d time.Time) time.Time {
	for {
		d = d.AddDate(0, 0, -1)
		if c.IsWorkingDay(d) {
			return d
		}
	}
}

// daysBetween is the whole number of calendar days from a to b.
// Both are civil dates, so DST never applies.
func daysBetween(a, b time.Time) int {
	a = Day(a.Date())
	b = Day(b.Date())
	return int(b.Sub(a).Hours() / 24)
}

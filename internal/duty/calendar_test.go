package duty

import (
	"errors"
	"testing"
	"time"
)

func naiveWorkingDays(c Calendar, start, end time.Time) int {
	n := 0
	for d := start.AddDate(0, 0, 1); !d.After(end); d = d.AddDate(0, 0, 1) {
		if c.IsWorkingDay(d) {
			n++
		}
	}
	return n
}

func TestWorkingDaysBetweenMatchesNaive(t *testing.T) {
	t.Parallel()
	cals := []Calendar{DefaultCalendar, {Rest: time.Saturday}, {Rest: time.Wednesday}}
	for _, c := range cals {
		// one start per weekday
		for s := 0; s < 7; s++ {
			start := Day(2024, time.January, 1+s)
			for span := -3; span <= 420; span++ {
				end := start.AddDate(0, 0, span)
				got := c.WorkingDaysBetween(start, end)
				want := naiveWorkingDays(c, start, end)
				if got != want {
					t.Fatalf("rest=%v start=%s span=%d: got %d, want %d", c.Rest, DateKey(start), span, got, want)
				}
			}
		}
	}
}

func TestWorkingDaysBetweenScenario(t *testing.T) {
	t.Parallel()
	anchor := Day(2024, time.January, 1) // Monday
	if got := DefaultCalendar.WorkingDaysBetween(anchor, Day(2024, time.January, 8)); got != 6 {
		t.Fatalf("WorkingDaysBetween = %d, want 6", got)
	}
	if got := DefaultCalendar.WorkingDaysBetween(anchor, anchor); got != 0 {
		t.Fatalf("same day = %d, want 0", got)
	}
	if got := DefaultCalendar.WorkingDaysBetween(anchor, Day(2023, time.December, 1)); got != 0 {
		t.Fatalf("negative span = %d, want 0", got)
	}
	// Saturday -> Sunday crosses only the rest day.
	if got := DefaultCalendar.WorkingDaysBetween(Day(2024, time.January, 6), Day(2024, time.January, 7)); got != 0 {
		t.Fatalf("sat->sun = %d, want 0", got)
	}
}

func TestNextPrevWorkingDay(t *testing.T) {
	t.Parallel()
	c := DefaultCalendar
	for i := 0; i < 60; i++ {
		d := Day(2024, time.February, 1).AddDate(0, 0, i)
		next, prev := c.NextWorkingDay(d), c.PrevWorkingDay(d)
		if !c.IsWorkingDay(next) || !c.IsWorkingDay(prev) {
			t.Fatalf("%s: got rest day (next=%s prev=%s)", DateKey(d), DateKey(next), DateKey(prev))
		}
		if !next.After(d) || !prev.Before(d) {
			t.Fatalf("%s: next=%s prev=%s not strictly after/before", DateKey(d), DateKey(next), DateKey(prev))
		}
		if c.IsWorkingDay(d) {
			if got := c.PrevWorkingDay(next); !got.Equal(d) {
				t.Fatalf("prev(next(%s)) = %s", DateKey(d), DateKey(got))
			}
			if got := c.NextWorkingDay(prev); !got.Equal(d) {
				t.Fatalf("next(prev(%s)) = %s", DateKey(d), DateKey(got))
			}
		}
	}

	sat := Day(2024, time.January, 6)
	if got := c.NextWorkingDay(sat); DateKey(got) != "2024-01-08" {
		t.Fatalf("next(sat) = %s, want 2024-01-08", DateKey(got))
	}
	if got := c.PrevWorkingDay(Day(2024, time.January, 8)); DateKey(got) != "2024-01-06" {
		t.Fatalf("prev(mon) = %s, want 2024-01-06", DateKey(got))
	}
}

func TestParseDate(t *testing.T) {
	t.Parallel()
	d, err := ParseDate(" 2024-03-05 ")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if !d.Equal(Day(2024, time.March, 5)) {
		t.Fatalf("ParseDate = %v", d)
	}
	for _, bad := range []string{"", "05.03.2024", "2024-13-01", "tomorrow"} {
		if _, err := ParseDate(bad); !errors.Is(err, ErrInvalidDateFormat) {
			t.Fatalf("ParseDate(%q) err = %v, want ErrInvalidDateFormat", bad, err)
		}
	}
}

func TestParseWeekday(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want time.Weekday
	}{
		{"sun", time.Sunday},
		{"Sunday", time.Sunday},
		{" SAT ", time.Saturday},
		{"mon", time.Monday},
	}
	for _, tt := range tests {
		got, err := ParseWeekday(tt.in)
		if err != nil || got != tt.want {
			t.Fatalf("ParseWeekday(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseWeekday("funday"); err == nil {
		t.Fatal("expected error for invalid weekday")
	}
}

func TestDateOf(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC+5", 5*60*60)
	instant := time.Date(2024, time.January, 1, 22, 0, 0, 0, time.UTC)
	if got := DateOf(instant, loc); DateKey(got) != "2024-01-02" {
		t.Fatalf("DateOf = %s, want 2024-01-02", DateKey(got))
	}
	if got := DateOf(instant, nil); DateKey(got) != "2024-01-01" {
		t.Fatalf("DateOf(nil loc) = %s, want 2024-01-01", DateKey(got))
	}
}

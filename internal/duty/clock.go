package duty

import "time"

// SimClock optionally overrides "today". The zero value is unset and means
// the real current date.
type SimClock struct {
	Date time.Time
}

func (s SimClock) IsSet() bool { return !s.Date.IsZero() }

// Today returns the simulated date, or real when unset.
func (s SimClock) Today(real time.Time) time.Time {
	if s.IsSet() {
		return s.Date
	}
	return real
}

// Advance moves the clock to the working day after its current date.
func (c Calendar) Advance(s SimClock, real time.Time) SimClock {
	return SimClock{Date: c.NextWorkingDay(s.Today(real))}
}

// Retreat moves the clock to the working day before its current date.
func (c Calendar) Retreat(s SimClock, real time.Time) SimClock {
	return SimClock{Date: c.PrevWorkingDay(s.Today(real))}
}

package app

import (
	"sync/atomic"
	"time"

	"dutybot/internal/duty"
)

// Clock turns wall time into the civil "today" of the configured timezone.
// The location can be swapped on config reload.
type Clock struct {
	now func() time.Time
	loc atomic.Pointer[time.Location]
}

func NewClock(loc *time.Location, now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	c := &Clock{now: now}
	c.SetLocation(loc)
	return c
}

func (c *Clock) SetLocation(loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}
	c.loc.Store(loc)
}

func (c *Clock) Location() *time.Location { return c.loc.Load() }

// Today is the real civil date, ignoring any simulated clock.
func (c *Clock) Today() time.Time { return duty.DateOf(c.now(), c.loc.Load()) }

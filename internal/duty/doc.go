// Package duty computes who is on duty for a calendar date.
//
// A roster of names is walked two at a time over working days counted from an
// anchor date; one weekday per week is a rest day and does not advance the
// rotation. Per-date overrides take precedence over the rotation. Everything
// here is pure: callers own persistence and serialization of State.
package duty

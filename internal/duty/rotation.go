package duty

import "time"

// Pair is an ordered pair of roster names on duty for one date.
type Pair [2]string

// Unknown is returned for an empty roster.
var Unknown = Pair{"?", "?"}

func (p Pair) IsUnknown() bool { return p == Unknown }

// CycleLength is the number of working-day steps after which the pairing
// sequence repeats: ceil(n/2).
func CycleLength(n int) int { return (n + 1) / 2 }

// PairIndexFor returns the position in the pairing cycle for date. Dates on or
// before the anchor map to index 0.
func (c Calendar) PairIndexFor(date time.Time, n int, anchor time.Time) int {
	cl := CycleLength(n)
	if cl == 0 {
		return 0
	}
	return c.WorkingDaysBetween(anchor, date) % cl
}

// BasePair computes the rotation pair for date without consulting overrides.
// Consecutive pair indices advance two roster positions; an odd roster wraps
// its last member together with the first.
func (c Calendar) BasePair(date time.Time, roster Roster, anchor time.Time) Pair {
	n := len(roster)
	if n == 0 {
		return Unknown
	}
	i := (2 * c.PairIndexFor(date, n, anchor)) % n
	j := (i + 1) % n
	return Pair{roster[i], roster[j]}
}

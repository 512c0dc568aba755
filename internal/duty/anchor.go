package duty

import "time"

// ShiftAnchor moves the rotation anchor by n working days. A positive n moves
// it back, so every later date sees the rotation n steps further along; a
// negative n moves it forward. The walk goes one calendar day at a time and
// only counts working days, so the result is the n-th working day crossed.
func (c Calendar) ShiftAnchor(anchor time.Time, n int) time.Time {
	step := 1
	if n > 0 {
		step = -1
	}
	k := n
	if k < 0 {
		k = -k
	}
	d := anchor
	for k > 0 {
		d = d.AddDate(0, 0, step)
		if c.IsWorkingDay(d) {
			k--
		}
	}
	return d
}

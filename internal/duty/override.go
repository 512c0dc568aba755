package duty

import (
	"fmt"
	"strings"
	"time"
)

// Overrides pins duty pairs to specific dates, keyed by ISO date.
type Overrides map[string]Pair

func (o Overrides) Lookup(date time.Time) (Pair, bool) {
	p, ok := o[DateKey(date)]
	return p, ok
}

// Set replaces any existing entry for date.
func (o Overrides) Set(date time.Time, p Pair) { o[DateKey(date)] = p }

// Clear removes the entry for date and reports whether one existed.
func (o Overrides) Clear(date time.Time) bool {
	k := DateKey(date)
	_, ok := o[k]
	delete(o, k)
	return ok
}

// ParseOverridePayload splits "Name One;Name Two" into its two raw names.
func ParseOverridePayload(s string) (string, string, error) {
	a, b, ok := strings.Cut(s, ";")
	if !ok {
		return "", "", fmt.Errorf("%w: want \"NAME1;NAME2\"", ErrMalformedOverridePayload)
	}
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" || strings.Contains(b, ";") {
		return "", "", fmt.Errorf("%w: want exactly two names", ErrMalformedOverridePayload)
	}
	return a, b, nil
}

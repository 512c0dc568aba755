package duty

import (
	"errors"
	"fmt"
)

var (
	ErrNameNotFound             = errors.New("name not found")
	ErrInvalidDateFormat        = errors.New("invalid date format")
	ErrMalformedOverridePayload = errors.New("malformed override payload")
	ErrMalformedScheduleData    = errors.New("malformed schedule data")
	ErrDistinctPair             = errors.New("override pair must name two different people")
)

// NameNotFoundError identifies the free-text input that could not be resolved
// to a single roster entry.
type NameNotFoundError struct {
	Input string
	// Candidates is the number of surname matches (0 = absent, >1 = ambiguous).
	Candidates int
}

func (e *NameNotFoundError) Error() string {
	if e.Candidates > 1 {
		return fmt.Sprintf("name not found: %q is ambiguous (%d matches)", e.Input, e.Candidates)
	}
	return fmt.Sprintf("name not found: %q", e.Input)
}

func (e *NameNotFoundError) Is(target error) bool { return target == ErrNameNotFound }

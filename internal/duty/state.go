package duty

import (
	"fmt"
	"strings"
	"time"
)

// State is the complete persisted duty state. Hosts load it, call the
// methods below and store it back; the methods themselves do no I/O.
//
// The zero Calendar rests on Sunday.
type State struct {
	Calendar Calendar

	Roster    Roster
	Anchor    time.Time
	Overrides Overrides
	Tasks     TaskTable
	Clock     SimClock
	Debtors   []string
}

// NewState returns an empty state anchored at anchor.
func NewState(anchor time.Time) *State {
	return &State{
		Anchor:    anchor,
		Overrides: Overrides{},
		Tasks:     DefaultTaskTable(),
	}
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	cp := *s
	cp.Roster = append(Roster(nil), s.Roster...)
	cp.Overrides = make(Overrides, len(s.Overrides))
	for k, v := range s.Overrides {
		cp.Overrides[k] = v
	}
	cp.Tasks = make(TaskTable, len(s.Tasks))
	for k, v := range s.Tasks {
		cp.Tasks[k] = append([]string(nil), v...)
	}
	cp.Debtors = append([]string(nil), s.Debtors...)
	return &cp
}

// ResolvedPair is the duty pair for date: a pinned override if present,
// otherwise the rotation pair.
func (s *State) ResolvedPair(date time.Time) Pair {
	p, _ := s.resolve(date)
	return p
}

func (s *State) resolve(date time.Time) (Pair, bool) {
	if p, ok := s.Overrides.Lookup(date); ok {
		return p, true
	}
	return s.Calendar.BasePair(date, s.Roster, s.Anchor), false
}

func (s *State) TasksFor(date time.Time) []string { return s.Tasks.TasksFor(date) }

// Report combines the duty pair and task list for date.
func (s *State) Report(date time.Time) Report {
	p, overridden := s.resolve(date)
	return Report{
		Date:       date,
		Pair:       p,
		Tasks:      s.TasksFor(date),
		Overridden: overridden,
		RestDay:    !s.Calendar.IsWorkingDay(date),
	}
}

// Today is the simulated date if the clock is set, real otherwise.
func (s *State) Today(real time.Time) time.Time { return s.Clock.Today(real) }

// ShiftAnchor moves the anchor by n working days and returns the new anchor.
func (s *State) ShiftAnchor(n int) time.Time {
	s.Anchor = s.Calendar.ShiftAnchor(s.Anchor, n)
	return s.Anchor
}

// SetOverride resolves two free-text names against the roster and pins them
// for date, replacing any previous entry.
func (s *State) SetOverride(date time.Time, name1, name2 string) (Pair, error) {
	a, err := ResolveName(name1, s.Roster)
	if err != nil {
		return Pair{}, err
	}
	b, err := ResolveName(name2, s.Roster)
	if err != nil {
		return Pair{}, err
	}
	if a == b {
		return Pair{}, fmt.Errorf("%w: %q", ErrDistinctPair, a)
	}
	if s.Overrides == nil {
		s.Overrides = Overrides{}
	}
	p := Pair{a, b}
	s.Overrides.Set(date, p)
	return p, nil
}

// SeedOverride is SetOverride for a "NAME1;NAME2" payload.
func (s *State) SeedOverride(date time.Time, payload string) (Pair, error) {
	a, b, err := ParseOverridePayload(payload)
	if err != nil {
		return Pair{}, err
	}
	return s.SetOverride(date, a, b)
}

func (s *State) ClearOverride(date time.Time) bool {
	if s.Overrides == nil {
		return false
	}
	return s.Overrides.Clear(date)
}

// AdvanceClock steps the simulated date to the next working day.
func (s *State) AdvanceClock(real time.Time) time.Time {
	s.Clock = s.Calendar.Advance(s.Clock, real)
	return s.Clock.Date
}

// RetreatClock steps the simulated date to the previous working day.
func (s *State) RetreatClock(real time.Time) time.Time {
	s.Clock = s.Calendar.Retreat(s.Clock, real)
	return s.Clock.Date
}

func (s *State) ClearClock() { s.Clock = SimClock{} }

// Reset re-anchors the rotation at today and drops overrides, debtors and
// the simulated clock. Roster and tasks are kept.
func (s *State) Reset(today time.Time) {
	s.Anchor = today
	s.Overrides = Overrides{}
	s.Debtors = nil
	s.Clock = SimClock{}
}

func (s *State) AddDebtor(entry string) bool {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return false
	}
	s.Debtors = append(s.Debtors, entry)
	return true
}

// RemoveDebtor deletes the first entry equal to entry under NormalizeKey.
func (s *State) RemoveDebtor(entry string) bool {
	k := NormalizeKey(strings.TrimSpace(entry))
	for i, d := range s.Debtors {
		if NormalizeKey(d) == k {
			s.Debtors = append(s.Debtors[:i], s.Debtors[i+1:]...)
			return true
		}
	}
	return false
}

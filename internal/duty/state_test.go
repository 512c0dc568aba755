package duty

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func testState() *State {
	s := NewState(Day(2024, time.January, 1))
	s.Roster = Roster{"Алексеев Антон", "Борисова Вера", "Власов Глеб", "Гусева Дарья", "Егоров Женя"}
	return s
}

func TestOverridePrecedence(t *testing.T) {
	t.Parallel()
	s := testState()
	d := Day(2024, time.January, 3)
	base := s.ResolvedPair(d)

	p, err := s.SetOverride(d, "Егоров", "Алексеев Антон")
	if err != nil {
		t.Fatalf("SetOverride: %v", err)
	}
	want := Pair{"Егоров Женя", "Алексеев Антон"}
	if p != want {
		t.Fatalf("SetOverride = %v, want %v", p, want)
	}
	if got := s.ResolvedPair(d); got != want {
		t.Fatalf("ResolvedPair = %v, want %v (base was %v)", got, want, base)
	}
	if r := s.Report(d); !r.Overridden {
		t.Fatal("report should be marked overridden")
	}
	// other dates are untouched
	if got, wantBase := s.ResolvedPair(d.AddDate(0, 0, 1)), s.Calendar.BasePair(d.AddDate(0, 0, 1), s.Roster, s.Anchor); got != wantBase {
		t.Fatalf("neighbour date = %v, want %v", got, wantBase)
	}

	// overwrite silently
	if _, err := s.SetOverride(d, "Власов", "Гусева"); err != nil {
		t.Fatalf("SetOverride overwrite: %v", err)
	}
	if got := s.ResolvedPair(d); got != (Pair{"Власов Глеб", "Гусева Дарья"}) {
		t.Fatalf("after overwrite = %v", got)
	}

	if !s.ClearOverride(d) {
		t.Fatal("ClearOverride reported no entry")
	}
	if got := s.ResolvedPair(d); got != base {
		t.Fatalf("after clear = %v, want %v", got, base)
	}
}

func TestSetOverrideErrors(t *testing.T) {
	t.Parallel()
	s := testState()
	d := Day(2024, time.January, 3)

	if _, err := s.SetOverride(d, "Нетакого", "Власов"); !errors.Is(err, ErrNameNotFound) {
		t.Fatalf("unknown name err = %v", err)
	}
	if _, err := s.SetOverride(d, "Власов", "Власов Глеб"); !errors.Is(err, ErrDistinctPair) {
		t.Fatalf("same person err = %v", err)
	}
	if _, err := s.SeedOverride(d, "Власов Гусева"); !errors.Is(err, ErrMalformedOverridePayload) {
		t.Fatalf("missing separator err = %v", err)
	}
	if len(s.Overrides) != 0 {
		t.Fatalf("failed calls must not write overrides: %v", s.Overrides)
	}
}

func TestParseOverridePayload(t *testing.T) {
	t.Parallel()
	a, b, err := ParseOverridePayload(" Власов Глеб ; Гусева ")
	if err != nil || a != "Власов Глеб" || b != "Гусева" {
		t.Fatalf("ParseOverridePayload = %q, %q, %v", a, b, err)
	}
	for _, bad := range []string{"", "Власов", "Власов;", ";Гусева", "A;B;C"} {
		if _, _, err := ParseOverridePayload(bad); !errors.Is(err, ErrMalformedOverridePayload) {
			t.Fatalf("ParseOverridePayload(%q) err = %v", bad, err)
		}
	}
}

func TestResolvedPairIdempotent(t *testing.T) {
	t.Parallel()
	s := testState()
	d := Day(2024, time.May, 17)
	first := s.ResolvedPair(d)
	for i := 0; i < 10; i++ {
		if got := s.ResolvedPair(d); got != first {
			t.Fatalf("call %d: %v != %v", i, got, first)
		}
	}
}

func TestStateClockAndShift(t *testing.T) {
	t.Parallel()
	s := testState()
	real := Day(2024, time.January, 6) // Saturday

	if got := s.Today(real); !got.Equal(real) {
		t.Fatalf("unset clock Today = %s", DateKey(got))
	}
	if got := s.AdvanceClock(real); DateKey(got) != "2024-01-08" {
		t.Fatalf("AdvanceClock = %s, want 2024-01-08", DateKey(got))
	}
	if got := s.AdvanceClock(real); DateKey(got) != "2024-01-09" {
		t.Fatalf("second AdvanceClock = %s, want 2024-01-09", DateKey(got))
	}
	if got := s.RetreatClock(real); DateKey(got) != "2024-01-08" {
		t.Fatalf("RetreatClock = %s, want 2024-01-08", DateKey(got))
	}
	if got := s.Today(real); DateKey(got) != "2024-01-08" {
		t.Fatalf("Today = %s", DateKey(got))
	}
	s.ClearClock()
	if s.Clock.IsSet() {
		t.Fatal("clock still set after ClearClock")
	}

	d := Day(2024, time.January, 10)
	before := s.Calendar.PairIndexFor(d, len(s.Roster), s.Anchor)
	s.ShiftAnchor(1)
	after := s.Calendar.PairIndexFor(d, len(s.Roster), s.Anchor)
	if after != (before+1)%CycleLength(len(s.Roster)) {
		t.Fatalf("shift 1: index %d -> %d", before, after)
	}
}

func TestStateResetAndDebtors(t *testing.T) {
	t.Parallel()
	s := testState()
	today := Day(2024, time.February, 12)
	_, _ = s.SetOverride(today, "Власов", "Гусева")
	s.AdvanceClock(today)
	s.AddDebtor("Власов — 2 дежурства")
	s.AddDebtor("  ")
	s.AddDebtor("Гусева")

	if diff := cmp.Diff([]string{"Власов — 2 дежурства", "Гусева"}, s.Debtors); diff != "" {
		t.Fatalf("debtors (-want +got):\n%s", diff)
	}
	if !s.RemoveDebtor("гусева") || s.RemoveDebtor("гусева") {
		t.Fatal("RemoveDebtor should succeed exactly once")
	}

	clone := s.Clone()
	s.Reset(today)
	if !s.Anchor.Equal(today) || len(s.Overrides) != 0 || len(s.Debtors) != 0 || s.Clock.IsSet() {
		t.Fatalf("Reset left state: %+v", s)
	}
	if len(s.Roster) != 5 {
		t.Fatal("Reset must keep the roster")
	}
	if len(clone.Overrides) != 1 || len(clone.Debtors) != 1 || !clone.Clock.IsSet() {
		t.Fatalf("clone shares state with original: %+v", clone)
	}
}

func TestShiftAnchor(t *testing.T) {
	t.Parallel()
	c := DefaultCalendar
	mon := Day(2024, time.January, 8)
	tests := []struct {
		n    int
		want string
	}{
		{0, "2024-01-08"},
		{1, "2024-01-06"},  // back over sunday
		{2, "2024-01-05"},
		{-1, "2024-01-09"},
		{-6, "2024-01-15"}, // a full working week forward
		{6, "2024-01-01"},
	}
	for _, tt := range tests {
		if got := c.ShiftAnchor(mon, tt.n); DateKey(got) != tt.want {
			t.Fatalf("ShiftAnchor(%d) = %s, want %s", tt.n, DateKey(got), tt.want)
		}
	}
	if got := c.ShiftAnchor(c.ShiftAnchor(mon, 4), -4); !got.Equal(mon) {
		t.Fatalf("shift 4 then -4 = %s", DateKey(got))
	}
}

func TestReportText(t *testing.T) {
	t.Parallel()
	r := Report{Date: Day(2024, time.January, 9), Pair: Pair{"A", "B"}, Tasks: []string{"Математика", "Физика"}}
	want := "📅 Сегодня 09.01.2024\n🧹 Дежурные: A и B\n\n📚 Расписание:\n• Математика\n• Физика"
	if got := r.Text(); got != want {
		t.Fatalf("Text():\n%s\nwant:\n%s", got, want)
	}
	r.Tasks = nil
	if got := RenderTasks(r.Tasks); got != "—" {
		t.Fatalf("empty tasks = %q", got)
	}
}

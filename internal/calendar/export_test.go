package calendar

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"

	"dutybot/internal/duty"
)

func testState() *duty.State {
	st := duty.NewState(duty.Day(2024, time.March, 4)) // Monday
	st.Roster = duty.Roster{"Иванов Пётр", "Петров Иван", "Сидоров Олег", "Кузнецов Илья"}
	st.Tasks = duty.TaskTable{"mon": {"Полить цветы"}}
	st.Overrides.Set(duty.Day(2024, time.March, 6), duty.Pair{"Кузнецов Илья", "Иванов Пётр"})
	return st
}

func TestExportSkipsRestDaysAndUsesOverrides(t *testing.T) {
	t.Parallel()
	st := testState()
	stamp := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

	out, err := Export(st, duty.Day(2024, time.March, 4), 7, Options{Name: "Дежурства", Stamp: stamp})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("ParseCalendar: %v", err)
	}
	events := cal.Events()
	if len(events) != 6 {
		t.Fatalf("events=%d want 6 (Sunday skipped)", len(events))
	}

	byUID := map[string]*ical.VEvent{}
	for _, ev := range events {
		byUID[ev.GetProperty(ical.ComponentPropertyUniqueId).Value] = ev
	}
	if _, ok := byUID["duty-20240310@dutybot"]; ok {
		t.Fatalf("rest day exported")
	}
	mon := byUID["duty-20240304@dutybot"]
	if mon == nil {
		t.Fatalf("monday missing; uids=%v", byUID)
	}
	if got := mon.GetProperty(ical.ComponentPropertySummary).Value; got != "Дежурные: Иванов Пётр, Петров Иван" {
		t.Fatalf("monday summary=%q", got)
	}
	if got := mon.GetProperty(ical.ComponentPropertyDescription).Value; !strings.Contains(got, "Полить цветы") {
		t.Fatalf("monday description=%q", got)
	}
	wed := byUID["duty-20240306@dutybot"]
	if got := wed.GetProperty(ical.ComponentPropertySummary).Value; !strings.Contains(got, "(замена)") {
		t.Fatalf("override not marked: %q", got)
	}
}

func TestExportIsStable(t *testing.T) {
	t.Parallel()
	st := testState()
	opt := Options{Stamp: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)}
	a, err := Export(st, duty.Day(2024, time.March, 4), 14, opt)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	b, _ := Export(st, duty.Day(2024, time.March, 4), 14, opt)
	if !bytes.Equal(a, b) {
		t.Fatalf("export not deterministic")
	}
}

func TestExportRange(t *testing.T) {
	t.Parallel()
	for _, days := range []int{0, -1, MaxDays + 1} {
		if _, err := Export(testState(), duty.Day(2024, 1, 1), days, Options{}); !errors.Is(err, ErrRange) {
			t.Fatalf("days=%d err=%v", days, err)
		}
	}
}

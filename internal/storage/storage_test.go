package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"dutybot/internal/duty"
	logx "dutybot/pkg/logx"
)

var fixedToday = duty.Day(2024, time.March, 4)

func openBoth(t *testing.T) map[string]Store {
	t.Helper()
	out := map[string]Store{}
	for _, driver := range []string{"file", "sqlite"} {
		path := filepath.Join(t.TempDir(), "data")
		if driver == "sqlite" {
			path = filepath.Join(t.TempDir(), "duty.db")
		}
		st, err := Open(Config{
			Driver:   driver,
			Path:     path,
			Calendar: duty.DefaultCalendar,
			Today:    func() time.Time { return fixedToday },
		}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%s): %v", driver, err)
		}
		t.Cleanup(func() { _ = st.Close() })
		out[driver] = st
	}
	return out
}

func TestEmptyStoreDefaults(t *testing.T) {
	t.Parallel()
	for driver, st := range openBoth(t) {
		s, err := st.Load(context.Background())
		if err != nil {
			t.Fatalf("%s: Load: %v", driver, err)
		}
		if !s.Anchor.Equal(fixedToday) || len(s.Roster) != 0 || len(s.Overrides) != 0 || s.Clock.IsSet() {
			t.Fatalf("%s: defaults = %+v", driver, s)
		}
		if diff := cmp.Diff(duty.DefaultTaskTable(), s.Tasks); diff != "" {
			t.Fatalf("%s: tasks (-want +got):\n%s", driver, diff)
		}
	}
}

func TestUpdateRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for driver, st := range openBoth(t) {
		_, err := st.Update(ctx, func(s *duty.State) error {
			s.Roster = duty.ParseRoster("Алексеев Антон\nБорисова Вера\nВласов Глеб")
			s.Anchor = duty.Day(2024, time.January, 1)
			if _, err := s.SetOverride(duty.Day(2024, time.January, 3), "Власов", "Алексеев"); err != nil {
				return err
			}
			s.Tasks["mon"] = []string{"Алгебра"}
			s.AdvanceClock(fixedToday)
			s.AddDebtor("Борисова")
			return nil
		})
		if err != nil {
			t.Fatalf("%s: Update: %v", driver, err)
		}

		got, err := st.Load(ctx)
		if err != nil {
			t.Fatalf("%s: Load: %v", driver, err)
		}
		if duty.DateKey(got.Anchor) != "2024-01-01" || duty.DateKey(got.Clock.Date) != "2024-03-05" {
			t.Fatalf("%s: anchor/clock = %s/%s", driver, duty.DateKey(got.Anchor), duty.DateKey(got.Clock.Date))
		}
		if diff := cmp.Diff(duty.Overrides{"2024-01-03": {"Власов Глеб", "Алексеев Антон"}}, got.Overrides); diff != "" {
			t.Fatalf("%s: overrides (-want +got):\n%s", driver, diff)
		}
		if diff := cmp.Diff([]string{"Алгебра"}, got.Tasks["mon"]); diff != "" {
			t.Fatalf("%s: tasks (-want +got):\n%s", driver, diff)
		}
		if len(got.Roster) != 3 || len(got.Debtors) != 1 {
			t.Fatalf("%s: roster/debtors = %v/%v", driver, got.Roster, got.Debtors)
		}

		// clearing the clock removes the key
		if _, err := st.Update(ctx, func(s *duty.State) error { s.ClearClock(); return nil }); err != nil {
			t.Fatalf("%s: Update clear: %v", driver, err)
		}
		got, _ = st.Load(ctx)
		if got.Clock.IsSet() {
			t.Fatalf("%s: clock still set", driver)
		}
	}
}

func TestUpdateFailureWritesNothing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	boom := errors.New("boom")
	for driver, st := range openBoth(t) {
		_, err := st.Update(ctx, func(s *duty.State) error {
			s.Roster = duty.Roster{"X"}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("%s: err = %v", driver, err)
		}
		got, _ := st.Load(ctx)
		if len(got.Roster) != 0 {
			t.Fatalf("%s: failed update persisted roster %v", driver, got.Roster)
		}
	}
}

func TestAudit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for driver, st := range openBoth(t) {
		base := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
		for i, action := range []string{"seed", "next", "post"} {
			if err := st.AppendAudit(ctx, AuditEntry{At: base.Add(time.Duration(i) * time.Minute), Source: "cli", Action: action}); err != nil {
				t.Fatalf("%s: AppendAudit: %v", driver, err)
			}
		}
		got, err := st.RecentAudit(ctx, 2)
		if err != nil {
			t.Fatalf("%s: RecentAudit: %v", driver, err)
		}
		if len(got) != 2 || got[0].Action != "post" || got[1].Action != "next" {
			t.Fatalf("%s: RecentAudit = %+v", driver, got)
		}
		if got[0].ID == "" || got[0].ID == got[1].ID {
			t.Fatalf("%s: audit ids not assigned: %q %q", driver, got[0].ID, got[1].ID)
		}
	}
}

func TestFileLayoutCompatible(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	files := map[string]string{
		"students.txt":    "Алексеев Антон\nБорисова Вера\n",
		"start_date.txt":  "2024-01-01\n",
		"exceptions.json": `{"2024-01-02": ["Борисова Вера", "Алексеев Антон"]}`,
		"schedule.json":   `{"mon": ["Алгебра"], "2024-01-02": ["Экскурсия"]}`,
		"sim_date.txt":    "2024-01-02",
		"debtors.json":    `["Власов"]`,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	st, err := Open(Config{Driver: "file", Path: dir}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()
	s, err := st.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	today := s.Today(fixedToday)
	r := s.Report(today)
	if r.Pair != (duty.Pair{"Борисова Вера", "Алексеев Антон"}) || !r.Overridden {
		t.Fatalf("report pair = %v (overridden=%v)", r.Pair, r.Overridden)
	}
	if diff := cmp.Diff([]string{"Экскурсия"}, r.Tasks); diff != "" {
		t.Fatalf("tasks (-want +got):\n%s", diff)
	}
}

func TestCorruptFileIsReported(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name, body string
	}{
		{"not json", "{not json"},
		{"bad date key", `{"02.01.2024": ["A", "B"]}`},
		{"one name", `{"2024-01-02": ["A"]}`},
		{"three names", `{"2024-01-03": ["A", "B", "C"]}`},
		{"blank name", `{"2024-01-04": ["A", " "]}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, "exceptions.json"), []byte(tt.body), 0o644); err != nil {
				t.Fatal(err)
			}
			st, err := Open(Config{Path: dir}, logx.Nop())
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer st.Close()
			if _, err := st.Load(context.Background()); !errors.Is(err, ErrCorrupt) {
				t.Fatalf("Load err = %v, want ErrCorrupt", err)
			}
		})
	}
}

package duty

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestTasksFor(t *testing.T) {
	t.Parallel()
	table := TaskTable{
		"mon":        {"Алгебра", "История"},
		"tue":        {},
		"2024-01-08": {"Экскурсия"},
	}
	tests := []struct {
		name string
		date time.Time
		want []string
	}{
		{name: "weekday", date: Day(2024, time.January, 15), want: []string{"Алгебра", "История"}},
		{name: "date wins", date: Day(2024, time.January, 8), want: []string{"Экскурсия"}},
		{name: "empty weekday", date: Day(2024, time.January, 9), want: []string{}},
		{name: "missing weekday", date: Day(2024, time.January, 10), want: []string{}},
		{name: "rest day", date: Day(2024, time.January, 7), want: []string{}},
	}
	for _, tt := range tests {
		got := table.TasksFor(tt.date)
		if got == nil {
			t.Fatalf("%s: got nil slice", tt.name)
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Fatalf("%s (-want +got):\n%s", tt.name, diff)
		}
	}

	// callers must not be able to mutate the table through the result
	got := table.TasksFor(Day(2024, time.January, 15))
	got[0] = "changed"
	if table["mon"][0] != "Алгебра" {
		t.Fatal("TasksFor leaked the underlying slice")
	}
}

func TestParseTaskTable(t *testing.T) {
	t.Parallel()
	jsonIn := []byte(`{"mon": ["A", "B"], "SAT": [], "2024-09-01": ["Линейка"], "fri": null}`)
	got, err := ParseTaskTable(jsonIn)
	if err != nil {
		t.Fatalf("ParseTaskTable(json): %v", err)
	}
	want := TaskTable{"mon": {"A", "B"}, "sat": {}, "2024-09-01": {"Линейка"}, "fri": {}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("json (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"mon", "fri", "sat", "2024-09-01"}, got.Keys()); diff != "" {
		t.Fatalf("Keys (-want +got):\n%s", diff)
	}

	yamlIn := []byte("mon:\n  - A\ntue: []\n")
	got, err = ParseTaskTable(yamlIn)
	if err != nil {
		t.Fatalf("ParseTaskTable(yaml): %v", err)
	}
	if diff := cmp.Diff(TaskTable{"mon": {"A"}, "tue": {}}, got); diff != "" {
		t.Fatalf("yaml (-want +got):\n%s", diff)
	}

	for _, bad := range []string{`{"mon": "A"}`, `{"mon": [`, `{"someday": []}`, "- a\n- b\n"} {
		if _, err := ParseTaskTable([]byte(bad)); !errors.Is(err, ErrMalformedScheduleData) {
			t.Fatalf("ParseTaskTable(%q) err = %v, want ErrMalformedScheduleData", bad, err)
		}
	}
}

func TestParseRoster(t *testing.T) {
	t.Parallel()
	in := "  Иванов Петр \r\n\nПетров Иван\nиванов петр\nЁжиков Лев\nЕжиков лев\n"
	got := ParseRoster(in)
	want := Roster{"Иванов Петр", "Петров Иван", "Ёжиков Лев"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ParseRoster (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, ParseRoster(got.Text())); diff != "" {
		t.Fatalf("Text round trip (-want +got):\n%s", diff)
	}
	if len(ParseRoster("\n \n")) != 0 {
		t.Fatal("blank input should yield empty roster")
	}
}

package duty

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// TaskTable maps an ISO date or a weekday code ("mon".."sat") to task lines.
type TaskTable map[string][]string

// DefaultTaskTable has an empty entry for every working weekday.
func DefaultTaskTable() TaskTable {
	return TaskTable{"mon": {}, "tue": {}, "wed": {}, "thu": {}, "fri": {}, "sat": {}}
}

// TasksFor returns the tasks for date. A date-specific entry wins over the
// weekday entry; a missing entry yields an empty list.
func (t TaskTable) TasksFor(date time.Time) []string {
	if v, ok := t[DateKey(date)]; ok {
		return append([]string{}, v...)
	}
	if v, ok := t[WeekdayCode(date)]; ok {
		return append([]string{}, v...)
	}
	return []string{}
}

// ParseTaskTable decodes a JSON object of key -> list of strings. YAML is
// accepted as well when the payload does not start with '{'.
func ParseTaskTable(data []byte) (TaskTable, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return TaskTable{}, nil
	}
	var raw map[string][]string
	var err error
	if trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		err = dec.Decode(&raw)
	} else {
		err = yaml.Unmarshal(trimmed, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedScheduleData, err)
	}
	out := make(TaskTable, len(raw))
	for k, v := range raw {
		key := strings.ToLower(strings.TrimSpace(k))
		if !isTaskKey(key) {
			return nil, fmt.Errorf("%w: unknown key %q (want YYYY-MM-DD or mon..sun)", ErrMalformedScheduleData, k)
		}
		if v == nil {
			v = []string{}
		}
		out[key] = v
	}
	return out, nil
}

func isTaskKey(k string) bool {
	for _, c := range weekdayCodes {
		if k == c {
			return true
		}
	}
	_, err := ParseDate(k)
	return err == nil
}

// JSON renders the table as indented JSON (keys sorted).
func (t TaskTable) JSON() []byte {
	b, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return []byte("{}")
	}
	return b
}

// Keys lists weekday codes in week order followed by dated keys ascending.
func (t TaskTable) Keys() []string {
	var out []string
	for _, c := range []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"} {
		if _, ok := t[c]; ok {
			out = append(out, c)
		}
	}
	var dated []string
	for k := range t {
		if len(k) == len(dateLayout) {
			dated = append(dated, k)
		}
	}
	sort.Strings(dated)
	return append(out, dated...)
}

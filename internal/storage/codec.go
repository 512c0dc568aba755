package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"dutybot/internal/duty"
)

// Keys of the persisted layout. The file driver uses them as file names.
const (
	keyRoster    = "students.txt"
	keyAnchor    = "start_date.txt"
	keyOverrides = "exceptions.json"
	keyTasks     = "schedule.json"
	keyClock     = "sim_date.txt"
	keyDebtors   = "debtors.json"
)

var stateKeys = []string{keyRoster, keyAnchor, keyOverrides, keyTasks, keyClock, keyDebtors}

// encodeState renders st as key -> content. A nil value means the key is
// absent (an unset clock deletes sim_date.txt).
func encodeState(st *duty.State) (map[string][]byte, error) {
	out := make(map[string][]byte, len(stateKeys))
	out[keyRoster] = []byte(st.Roster.Text())
	out[keyAnchor] = []byte(duty.DateKey(st.Anchor))

	ov := st.Overrides
	if ov == nil {
		ov = duty.Overrides{}
	}
	b, err := json.MarshalIndent(ov, "", "  ")
	if err != nil {
		return nil, err
	}
	out[keyOverrides] = b

	tasks := st.Tasks
	if tasks == nil {
		tasks = duty.DefaultTaskTable()
	}
	out[keyTasks] = tasks.JSON()

	if st.Clock.IsSet() {
		out[keyClock] = []byte(duty.DateKey(st.Clock.Date))
	} else {
		out[keyClock] = nil
	}

	debtors := st.Debtors
	if debtors == nil {
		debtors = []string{}
	}
	if out[keyDebtors], err = json.MarshalIndent(debtors, "", "  "); err != nil {
		return nil, err
	}
	return out, nil
}

// decodeState builds a state from raw values; get reports whether a key exists.
// Missing keys take their defaults: empty roster, anchor = today, no
// overrides, default task table, unset clock, no debtors.
func decodeState(get func(key string) ([]byte, bool), cfg Config) (*duty.State, error) {
	st := duty.NewState(time.Time{})
	st.Calendar = cfg.Calendar

	if b, ok := get(keyRoster); ok {
		st.Roster = duty.ParseRoster(string(b))
	}

	st.Anchor = today(cfg)
	if b, ok := get(keyAnchor); ok && strings.TrimSpace(string(b)) != "" {
		d, err := duty.ParseDate(string(b))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, keyAnchor, err)
		}
		st.Anchor = d
	}

	if b, ok := get(keyOverrides); ok && len(strings.TrimSpace(string(b))) > 0 {
		ov, err := decodeOverrides(b)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, keyOverrides, err)
		}
		if ov != nil {
			st.Overrides = ov
		}
	}

	if b, ok := get(keyTasks); ok && len(strings.TrimSpace(string(b))) > 0 {
		tasks, err := duty.ParseTaskTable(b)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, keyTasks, err)
		}
		st.Tasks = tasks
	}

	if b, ok := get(keyClock); ok && strings.TrimSpace(string(b)) != "" {
		d, err := duty.ParseDate(string(b))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, keyClock, err)
		}
		st.Clock = duty.SimClock{Date: d}
	}

	if b, ok := get(keyDebtors); ok && len(strings.TrimSpace(string(b))) > 0 {
		if err := json.Unmarshal(b, &st.Debtors); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, keyDebtors, err)
		}
	}
	return st, nil
}

// decodeOverrides requires every entry to be a date key with exactly two
// non-empty names; a [2]string target would pad or truncate silently.
func decodeOverrides(b []byte) (duty.Overrides, error) {
	var raw map[string][]string
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	ov := make(duty.Overrides, len(raw))
	for k, names := range raw {
		if _, err := duty.ParseDate(k); err != nil {
			return nil, err
		}
		if len(names) != 2 || strings.TrimSpace(names[0]) == "" || strings.TrimSpace(names[1]) == "" {
			return nil, fmt.Errorf("%s: want two names, got %q", k, names)
		}
		ov[k] = duty.Pair{names[0], names[1]}
	}
	return ov, nil
}

func today(cfg Config) time.Time {
	if cfg.Today != nil {
		return cfg.Today()
	}
	return duty.DateOf(time.Now(), time.UTC)
}

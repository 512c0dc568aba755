package logx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// telegramWriter is a zerolog LevelWriter that queues records for the
// Telegram worker. It never blocks the caller.
type telegramWriter struct{ svc *Service }

func (w *telegramWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.InfoLevel, p)
}

func (w *telegramWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	s := w.svc
	s.mu.Lock()
	to := s.target
	lim := s.limiter
	min := s.minLevel
	s.mu.Unlock()

	if to.ChatID == 0 || lim == nil || level < min {
		return len(p), nil
	}
	if !lim.Allow() {
		s.tgDrops.Add(1)
		return len(p), nil
	}
	msg := formatRecord(p)
	if msg == "" {
		return len(p), nil
	}
	select {
	case s.tgQueue <- telegramItem{to: to, msg: msg}:
	default:
		s.tgDrops.Add(1)
	}
	return len(p), nil
}

// formatRecord renders a zerolog JSON line as "[LEVEL] message" followed by
// one "- key=value" line per field, keys sorted.
func formatRecord(p []byte) string {
	p = bytes.TrimSpace(p)
	var m map[string]any
	if err := json.Unmarshal(p, &m); err != nil {
		return truncate(string(p), 3500)
	}

	var b strings.Builder
	if lvl, _ := m[zerolog.LevelFieldName].(string); lvl != "" {
		b.WriteString("[" + strings.ToUpper(lvl) + "] ")
	}
	msg, _ := m[zerolog.MessageFieldName].(string)
	b.WriteString(msg)

	keys := make([]string, 0, len(m))
	for k := range m {
		switch k {
		case zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		limit := 600
		if k == "stack" {
			limit = 900
		}
		fmt.Fprintf(&b, "\n- %s=%s", k, truncate(fmt.Sprint(m[k]), limit))
	}
	return truncate(b.String(), 3500)
}

func truncate(s string, maxN int) string {
	if maxN <= 0 || len(s) <= maxN {
		return s
	}
	if maxN < 10 {
		return s[:maxN]
	}
	// cutting mid-rune would make Telegram reject the message
	return strings.ToValidUTF8(s[:maxN-3], "") + "..."
}

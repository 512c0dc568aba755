package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SpecKind describes the normalized kind of a schedule string.
type SpecKind int

const (
	SpecCron SpecKind = iota
	SpecDaily
	SpecInterval
)

// ParsedSpec is a schedule string normalized to a cron expression.
//
// Supported forms:
//   - Daily wall-clock time: "07:30", "7:05"
//   - Cron: "30 7 * * 1-6", "0 30 7 * * *", "@daily"
//   - Interval: "every:55m", "interval:2h"
//
// The "cron:" prefix forces cron parsing.
type ParsedSpec struct {
	Kind   SpecKind
	Cron   string
	Hour   int
	Minute int
	Every  time.Duration
	Source string // "cron" | "hhmm" | "interval"
}

var reHHMM = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})\s*$`)

// ParseSchedule parses a schedule string. The cron expression itself is
// validated when the job is added.
func ParseSchedule(raw string) (ParsedSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParsedSpec{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	for _, p := range []string{"every:", "interval:"} {
		if strings.HasPrefix(low, p) {
			d, err := time.ParseDuration(strings.TrimSpace(s[len(p):]))
			if err != nil || d <= 0 {
				return ParsedSpec{}, fmt.Errorf("invalid interval %q (use a Go duration like '55m')", s)
			}
			return ParsedSpec{Kind: SpecInterval, Cron: "@every " + d.String(), Every: d, Source: "interval"}, nil
		}
	}
	if strings.HasPrefix(low, "cron:") {
		expr := strings.TrimSpace(s[len("cron:"):])
		if expr == "" {
			return ParsedSpec{}, fmt.Errorf("cron schedule required after 'cron:'")
		}
		return ParsedSpec{Kind: SpecCron, Cron: expr, Source: "cron"}, nil
	}

	if reHHMM.MatchString(s) {
		h, m, err := parseHHMM(s)
		if err != nil {
			return ParsedSpec{}, err
		}
		return ParsedSpec{Kind: SpecDaily, Cron: fmt.Sprintf("%d %d * * *", m, h), Hour: h, Minute: m, Source: "hhmm"}, nil
	}

	if strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@") {
		return ParsedSpec{Kind: SpecCron, Cron: s, Source: "cron"}, nil
	}

	return ParsedSpec{}, fmt.Errorf("invalid schedule %q (use HH:MM like '07:30' or cron like '30 7 * * 1-6')", raw)
}

// parseHHMM parses a 24h wall-clock time.
func parseHHMM(v string) (int, int, error) {
	m := reHHMM.FindStringSubmatch(v)
	if len(m) != 3 {
		return 0, 0, fmt.Errorf("invalid HH:MM %q", v)
	}
	hh, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if hh > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", v)
	}
	if mm > 59 {
		return 0, 0, fmt.Errorf("invalid minutes in %q", v)
	}
	return hh, mm, nil
}

package router

import (
	"regexp"
	"strings"
	"unicode"
)

var reNumber = regexp.MustCompile(`^-\d+$`)

// tokenizeCommandLine splits command text into tokens while supporting quotes.
// Examples:
//
//	/seed "Иванов Пётр;Петров Иван" 2024-09-02
func tokenizeCommandLine(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var (
		out   []string
		buf   strings.Builder
		inQ   bool
		qChar rune
		esc   bool
	)
	flush := func() {
		if buf.Len() > 0 {
			out = append(out, buf.String())
			buf.Reset()
		}
	}
	for _, ch := range s {
		switch {
		case esc:
			buf.WriteRune(ch)
			esc = false
		case ch == '\\':
			esc = true
		case inQ && ch == qChar:
			inQ = false
		case inQ:
			buf.WriteRune(ch)
		case ch == '"' || ch == '\'':
			inQ, qChar = true, ch
		case unicode.IsSpace(ch):
			flush()
		default:
			buf.WriteRune(ch)
		}
	}
	flush()
	return out
}

// parseFlags splits raw args into positionals and flags.
//
// Supported:
//
//	--k=v, --k v, --flag (bool)
//	-k=v, -k v, -abc (bool flags a,b,c)
//
// Negative numbers ("-3") stay positional.
func parseFlags(args []string) (pos []string, flags map[string]string, bools map[string]bool) {
	flags = map[string]string{}
	bools = map[string]bool{}
	isFlag := func(a string) bool {
		return strings.HasPrefix(a, "-") && len(a) > 1 && !reNumber.MatchString(a)
	}
	for i := 0; i < len(args); i++ {
		a := args[i]
		if !isFlag(a) {
			pos = append(pos, a)
			continue
		}
		long := strings.HasPrefix(a, "--")
		key := strings.TrimLeft(a, "-")
		if k, v, ok := strings.Cut(key, "="); ok {
			flags[k] = v
			continue
		}
		if long || len(key) == 1 {
			if i+1 < len(args) && !isFlag(args[i+1]) {
				flags[key] = args[i+1]
				i++
				continue
			}
			bools[key] = true
			continue
		}
		for _, r := range key {
			bools[string(r)] = true
		}
	}
	return pos, flags, bools
}

// commandTail returns text with the leading "/word" and n further
// whitespace-separated tokens removed, keeping line breaks in the rest.
func commandTail(text string, n int) string {
	rest := strings.TrimSpace(text)
	for i := 0; i <= n && rest != ""; i++ {
		end := strings.IndexFunc(rest, unicode.IsSpace)
		if end < 0 {
			return ""
		}
		rest = strings.TrimLeftFunc(rest[end:], unicode.IsSpace)
	}
	return strings.TrimRightFunc(rest, unicode.IsSpace)
}

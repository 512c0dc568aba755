package duty

import "strings"

// Roster is the ordered list of participants. Order defines pairing adjacency.
type Roster []string

// NormalizeKey folds a name for comparisons: lowercase, with "ё" folded to "е".
func NormalizeKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), "ё", "е")
}

// ParseRoster reads one name per line. Blank lines are skipped and later
// duplicates (by NormalizeKey) are dropped; the first spelling wins.
func ParseRoster(text string) Roster {
	var out Roster
	seen := map[string]struct{}{}
	for _, line := range strings.Split(text, "\n") {
		s := strings.TrimSpace(line)
		if s == "" {
			continue
		}
		k := NormalizeKey(s)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Text renders the roster in the line format accepted by ParseRoster.
func (r Roster) Text() string {
	if len(r) == 0 {
		return ""
	}
	return strings.Join(r, "\n") + "\n"
}

func (r Roster) Contains(name string) bool {
	k := NormalizeKey(name)
	for _, n := range r {
		if NormalizeKey(n) == k {
			return true
		}
	}
	return false
}

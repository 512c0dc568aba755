package duty

import "strings"

// ResolveName maps free-text admin input to a canonical roster entry.
//
// The first two words (surname + given name) must match exactly after
// NormalizeKey; failing that, the surname alone must match exactly one entry.
func ResolveName(input string, roster Roster) (string, error) {
	want := firstWords(input, 2)
	if want == "" {
		return "", &NameNotFoundError{Input: input}
	}
	for _, name := range roster {
		if firstWords(name, 2) == want {
			return name, nil
		}
	}

	surname := firstWords(input, 1)
	var (
		match string
		count int
	)
	for _, name := range roster {
		if firstWords(name, 1) == surname {
			match = name
			count++
		}
	}
	if count == 1 {
		return match, nil
	}
	return "", &NameNotFoundError{Input: input, Candidates: count}
}

func firstWords(s string, n int) string {
	f := strings.Fields(s)
	if len(f) > n {
		f = f[:n]
	}
	return NormalizeKey(strings.Join(f, " "))
}

package router

import (
	"sort"
	"strings"
	"unicode"

	kit "dutybot/internal/transport"
)

// sanitizeTelegramCommand converts a route or alias into a Telegram command
// name, which is restricted to [a-z0-9_]{1,32}.
func sanitizeTelegramCommand(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		case r == '_' || r == '-' || r == '/' || unicode.IsSpace(r):
			if b.Len() > 0 && !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "cmd_" + out
	}
	if len(out) > 32 {
		out = strings.TrimRight(out[:32], "_")
	}
	return out
}

// buildMenu lists top-level commands first, then "/group_sub" shortcuts
// for multi-token routes.
func buildMenu(root *cmdNode) []kit.BotCommand {
	type entry struct {
		cmd, desc string
		prio      int
	}
	byCmd := map[string]entry{}
	add := func(cmd, desc string, lock bool, prio int) {
		if cmd = sanitizeTelegramCommand(cmd); cmd == "" {
			return
		}
		desc = strings.ReplaceAll(strings.TrimSpace(desc), "\n", " ")
		if desc == "" {
			desc = cmd
		}
		if lock {
			desc = "🔒 " + desc
		}
		if cur, ok := byCmd[cmd]; ok && cur.prio <= prio {
			return
		}
		byCmd[cmd] = entry{cmd: cmd, desc: desc, prio: prio}
	}

	for _, name := range root.childNames() {
		n := root.children[name]
		add(name, nodeDesc(n), nodeOwnerOnly(n), 0)
	}
	root.walk(func(c *Command) {
		route := splitRoute(c.Route)
		if len(route) < 2 {
			return
		}
		add(strings.Join(route, "_"), c.Description, c.Access == AccessOwnerOnly, 1)
	})

	entries := make([]entry, 0, len(byCmd))
	for _, e := range byCmd {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].prio != entries[j].prio {
			return entries[i].prio < entries[j].prio
		}
		return entries[i].cmd < entries[j].cmd
	})
	out := make([]kit.BotCommand, 0, len(entries))
	for _, e := range entries {
		out = append(out, kit.BotCommand{Command: e.cmd, Description: e.desc})
		if len(out) >= 100 {
			break
		}
	}
	return out
}

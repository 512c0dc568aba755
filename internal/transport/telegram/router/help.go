package router

import (
	"sort"
	"strings"

	"dutybot/pkg/tgui"
)

// helpText renders help in HTML parse mode for the given path (empty for
// the top-level list).
func (r *Router) helpText(path []string) string {
	r.mu.RLock()
	root, alias := r.root, r.alias
	r.mu.RUnlock()

	if len(path) == 0 {
		return helpTop(root)
	}
	cur := root
	full := make([]string, 0, len(path))
	for _, p := range path {
		n, ok := cur.child(p)
		if !ok {
			if leaf, hit := alias[strings.ToLower(p)]; hit && leaf.cmd != nil && len(full) == 0 {
				return helpNode(leaf, splitRoute(leaf.cmd.Route))
			}
			return tgui.Lines("❓ "+tgui.B("Неизвестная команда"), "Список команд: "+tgui.Cmd("help"))
		}
		cur = n
		full = append(full, n.name)
	}
	return helpNode(cur, full)
}

func helpTop(root *cmdNode) string {
	type row struct {
		name, desc string
		lock       bool
	}
	var rows []row
	for _, name := range root.childNames() {
		n := root.children[name]
		rows = append(rows, row{name: name, desc: nodeDesc(n), lock: nodeOwnerOnly(n)})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].lock != rows[j].lock {
			return !rows[i].lock
		}
		return rows[i].name < rows[j].name
	})

	lines := []tgui.H{"📚 " + tgui.B("Команды"), "Подробнее: " + tgui.Cmd("help <команда>"), ""}
	for _, r := range rows {
		prefix := tgui.H("• ")
		if r.lock {
			prefix = "• 🔒 "
		}
		lines = append(lines, prefix+tgui.JoinH(": ", tgui.Cmd(r.name), tgui.Esc(r.desc)))
	}
	return tgui.Lines(lines...)
}

func helpNode(cur *cmdNode, full []string) string {
	lines := []tgui.H{"📚 " + tgui.Cmd(strings.Join(full, " "))}
	if c := cur.cmd; c != nil {
		if d := strings.TrimSpace(c.Description); d != "" {
			lines = append(lines, tgui.Esc(d))
		}
		if c.Access == AccessOwnerOnly {
			lines = append(lines, "🔒 "+tgui.I("только для администраторов"))
		}
		if u := strings.TrimSpace(c.Usage); u != "" {
			lines = append(lines, "", tgui.B("Использование"), tgui.Code(u))
		}
		if short := shortcuts(*c); len(short) > 0 {
			lines = append(lines, "", tgui.B("Короткие формы"))
			for _, s := range short {
				lines = append(lines, "• "+tgui.Cmd(s))
			}
		}
	}
	if len(cur.children) > 0 {
		lines = append(lines, "", tgui.B("Подкоманды"))
		for _, name := range cur.childNames() {
			sub := strings.Join(append(append([]string(nil), full...), name), " ")
			lines = append(lines, "• "+tgui.JoinH(": ", tgui.Cmd(sub), tgui.Esc(nodeDesc(cur.children[name]))))
		}
	}
	return tgui.Lines(lines...)
}

// nodeDesc is the command description, or a hint listing subcommands for
// bare groups.
func nodeDesc(n *cmdNode) string {
	if n.cmd != nil {
		if d := strings.TrimSpace(n.cmd.Description); d != "" {
			return d
		}
	}
	kids := n.childNames()
	if len(kids) == 0 {
		return ""
	}
	k := min(len(kids), 3)
	s := strings.Join(kids[:k], ", ")
	if len(kids) > k {
		s += ", …"
	}
	return "подкоманды: " + s
}

// nodeOwnerOnly reports whether every command in the subtree is owner-only.
func nodeOwnerOnly(n *cmdNode) bool {
	owner := true
	n.walk(func(c *Command) {
		if c.Access == AccessEveryone {
			owner = false
		}
	})
	return owner
}

func shortcuts(c Command) []string {
	seen := map[string]bool{}
	var out []string
	if route := splitRoute(c.Route); len(route) > 1 {
		if name := sanitizeTelegramCommand(strings.Join(route, "_")); name != "" {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, a := range c.Aliases {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

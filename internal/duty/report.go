package duty

import (
	"strings"
	"time"
)

// Report is the rendered duty information for one date.
type Report struct {
	Date       time.Time
	Pair       Pair
	Tasks      []string
	Overridden bool
	RestDay    bool
}

// Text renders the daily group post.
func (r Report) Text() string {
	var b strings.Builder
	b.WriteString("📅 Сегодня ")
	b.WriteString(r.Date.Format("02.01.2006"))
	b.WriteString("\n🧹 Дежурные: ")
	b.WriteString(r.Pair[0])
	b.WriteString(" и ")
	b.WriteString(r.Pair[1])
	b.WriteString("\n\n📚 Расписание:\n")
	b.WriteString(RenderTasks(r.Tasks))
	return b.String()
}

// RenderTasks renders task lines as bullets, or a dash when empty.
func RenderTasks(lines []string) string {
	if len(lines) == 0 {
		return "—"
	}
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("• ")
		b.WriteString(l)
	}
	return b.String()
}

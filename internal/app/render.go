package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"dutybot/internal/duty"
	"dutybot/internal/notifier"
	"dutybot/internal/storage"
	"dutybot/pkg/tgui"
)

const humanDate = "02.01.2006"

var weekdayNames = map[string]string{
	"mon": "Понедельник", "tue": "Вторник", "wed": "Среда", "thu": "Четверг",
	"fri": "Пятница", "sat": "Суббота", "sun": "Воскресенье",
}

// ReportText is Report.Text plus markers for rest days and overrides.
func ReportText(r duty.Report) string {
	var b strings.Builder
	b.WriteString(r.Text())
	if r.Overridden {
		b.WriteString("\n\n✏️ Пара назначена вручную")
	}
	if r.RestDay {
		b.WriteString("\n\n💤 Выходной день")
	}
	return b.String()
}

func FormatStatus(s Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📆 Сегодня: %s", s.RealToday.Format(humanDate))
	if s.Simulated {
		fmt.Fprintf(&b, "\n🕒 Бот считает, что сегодня: %s", s.Today.Format(humanDate))
	}
	fmt.Fprintf(&b, "\n🔁 Начало ротации: %s", s.Anchor.Format(humanDate))
	fmt.Fprintf(&b, "\n👥 В списке: %d", s.Roster)
	fmt.Fprintf(&b, "\n🧹 Дежурные: %s и %s", s.Report.Pair[0], s.Report.Pair[1])
	if len(s.Upcoming) > 0 {
		b.WriteString("\n\n✏️ Замены:")
		for _, o := range s.Upcoming {
			fmt.Fprintf(&b, "\n• %s: %s и %s", o.Date.Format(humanDate), o.Pair[0], o.Pair[1])
		}
	}
	if len(s.Debtors) > 0 {
		b.WriteString("\n\n📝 Должники:\n")
		b.WriteString(FormatList(s.Debtors))
	}
	return b.String()
}

// FormatList renders numbered lines, or a dash when empty.
func FormatList(items []string) string {
	if len(items) == 0 {
		return "—"
	}
	var b strings.Builder
	for i, it := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, it)
	}
	return b.String()
}

func FormatTasks(t duty.TaskTable) string {
	keys := t.Keys()
	if len(keys) == 0 {
		return "—"
	}
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString("\n\n")
		}
		title := weekdayNames[k]
		if title == "" {
			if d, err := duty.ParseDate(k); err == nil {
				title = d.Format(humanDate)
			} else {
				title = k
			}
		}
		b.WriteString(title)
		b.WriteString(":\n")
		b.WriteString(duty.RenderTasks(t[k]))
	}
	return b.String()
}

const auditFieldRunes = 80

func FormatAudit(entries []storage.AuditEntry, loc *time.Location) string {
	if len(entries) == 0 {
		return "—"
	}
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		who := e.Source
		if e.ActorUsername != "" {
			who += " @" + e.ActorUsername
		} else if e.ActorID != 0 {
			who += fmt.Sprintf(" %d", e.ActorID)
		}
		fmt.Fprintf(&b, "%s %s %s", e.At.In(loc).Format("02.01 15:04"), who, e.Action)
		if e.Target != "" {
			b.WriteString(" " + tgui.TruncRunes(e.Target, auditFieldRunes))
		}
		if e.Error != "" {
			b.WriteString(" ❌ " + tgui.TruncRunes(e.Error, auditFieldRunes))
		}
	}
	return b.String()
}

// explain maps domain errors to messages for operators; other errors pass
// through unchanged.
func explain(err error) error {
	var nf *duty.NameNotFoundError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &nf):
		if nf.Candidates > 1 {
			return fmt.Errorf("«%s» подходит нескольким людям, уточните имя", nf.Input)
		}
		return fmt.Errorf("не нашёл в списке: %s", nf.Input)
	case errors.Is(err, duty.ErrInvalidDateFormat):
		return errors.New("формат даты: YYYY-MM-DD")
	case errors.Is(err, duty.ErrMalformedOverridePayload):
		return errors.New("нужно ФИО1;ФИО2")
	case errors.Is(err, duty.ErrDistinctPair):
		return errors.New("нужны два разных человека")
	case errors.Is(err, duty.ErrMalformedScheduleData):
		return fmt.Errorf("ошибка в расписании: %v", err)
	case errors.Is(err, ErrEmptyRoster):
		return errors.New("список пуст: одно ФИО на строку")
	case errors.Is(err, ErrEmptyText):
		return errors.New("пустой текст")
	case errors.Is(err, ErrNoPublisher), errors.Is(err, notifier.ErrNoTarget):
		return errors.New("telegram не настроен")
	case errors.Is(err, storage.ErrCorrupt):
		return fmt.Errorf("данные повреждены: %v", err)
	}
	return err
}

package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"dutybot/internal/duty"
	"dutybot/internal/scheduler"
	"dutybot/internal/transport/telegram/router"
)

// commands builds the bot command set on top of d.
func commands(d *Duty, sched *scheduler.Service) []router.Command {
	return []router.Command{
		{
			Route:       "duty",
			Description: "кто дежурит сегодня или в указанный день",
			Usage:       "/duty [YYYY-MM-DD]",
			Handle: func(ctx context.Context, req *router.Request) error {
				date, err := optionalDate(req.Args)
				if err != nil {
					return explain(err)
				}
				r, err := d.Report(ctx, date)
				if err != nil {
					return explain(err)
				}
				return req.Reply(ctx, ReportText(r))
			},
		},
		{
			Route:       "post",
			Description: "опубликовать и закрепить отчёт",
			Usage:       "/post [YYYY-MM-DD]",
			Access:      router.AccessOwnerOnly,
			Handle: func(ctx context.Context, req *router.Request) error {
				date, err := optionalDate(req.Args)
				if err != nil {
					return explain(err)
				}
				r, err := d.Post(ctx, actorOf(req), date)
				if err != nil {
					return explain(err)
				}
				return req.Reply(ctx, "✅ Опубликовано: "+r.Date.Format(humanDate))
			},
		},
		{
			Route:       "next",
			Description: "следующий рабочий день (симуляция) и публикация",
			Access:      router.AccessOwnerOnly,
			Handle: func(ctx context.Context, req *router.Request) error {
				r, err := d.Next(ctx, actorOf(req))
				if err != nil {
					return explain(err)
				}
				return req.Reply(ctx, "⏭ Бот считает, что сегодня "+r.Date.Format(humanDate))
			},
		},
		{
			Route:       "prev",
			Description: "предыдущий рабочий день (симуляция) и публикация",
			Access:      router.AccessOwnerOnly,
			Handle: func(ctx context.Context, req *router.Request) error {
				r, err := d.Prev(ctx, actorOf(req))
				if err != nil {
					return explain(err)
				}
				return req.Reply(ctx, "⏮ Бот считает, что сегодня "+r.Date.Format(humanDate))
			},
		},
		{
			Route:       "clock reset",
			Description: "вернуться к реальной дате",
			Access:      router.AccessOwnerOnly,
			Handle: func(ctx context.Context, req *router.Request) error {
				if err := d.ClockReset(ctx, actorOf(req)); err != nil {
					return explain(err)
				}
				return req.Reply(ctx, "🕒 Симуляция даты выключена")
			},
		},
		{
			Route:       "shift",
			Description: "сдвинуть ротацию на N рабочих дней (N<0 назад)",
			Usage:       "/shift N",
			Access:      router.AccessOwnerOnly,
			Handle: func(ctx context.Context, req *router.Request) error {
				if len(req.Args) != 1 {
					return errors.New("укажите целое число рабочих дней")
				}
				n, err := strconv.Atoi(req.Args[0])
				if err != nil {
					return errors.New("укажите целое число рабочих дней")
				}
				anchor, err := d.Shift(ctx, actorOf(req), n)
				if err != nil {
					return explain(err)
				}
				return req.Reply(ctx, "🔁 Начало ротации: "+anchor.Format(humanDate))
			},
		},
		{
			Route:       "seed",
			Description: "назначить пару на день и опубликовать",
			Usage:       "/seed ФИО1;ФИО2 [YYYY-MM-DD]",
			Access:      router.AccessOwnerOnly,
			Handle: func(ctx context.Context, req *router.Request) error {
				payload, date, err := splitSeedArgs(req.Text)
				if err != nil {
					return explain(err)
				}
				r, err := d.Seed(ctx, actorOf(req), payload, date)
				if err != nil {
					return explain(err)
				}
				return req.Reply(ctx, fmt.Sprintf("✏️ %s: %s и %s", r.Date.Format(humanDate), r.Pair[0], r.Pair[1]))
			},
		},
		{
			Route:       "unseed",
			Description: "убрать ручное назначение",
			Usage:       "/unseed [YYYY-MM-DD]",
			Access:      router.AccessOwnerOnly,
			Handle: func(ctx context.Context, req *router.Request) error {
				date, err := optionalDate(req.Args)
				if err != nil {
					return explain(err)
				}
				removed, err := d.Unseed(ctx, actorOf(req), date)
				if err != nil {
					return explain(err)
				}
				if !removed {
					return req.Reply(ctx, "Замены на этот день нет")
				}
				return req.Reply(ctx, "🗑 Замена удалена")
			},
		},
		{
			Route:       "roster",
			Description: "список дежурных",
			Handle: func(ctx context.Context, req *router.Request) error {
				roster, err := d.Roster(ctx)
				if err != nil {
					return explain(err)
				}
				return req.Reply(ctx, "👥 Список:\n"+FormatList(roster))
			},
		},
		{
			Route:       "roster set",
			Description: "заменить список (одно ФИО на строку)",
			Usage:       "/roster set\nИванов Пётр\nПетров Иван",
			Access:      router.AccessOwnerOnly,
			Handle: func(ctx context.Context, req *router.Request) error {
				roster, err := d.SetRoster(ctx, actorOf(req), req.Text)
				if err != nil {
					return explain(err)
				}
				return req.Reply(ctx, fmt.Sprintf("✅ Список сохранён: %d чел.", len(roster)))
			},
		},
		{
			Route:       "schedule",
			Description: "расписание задач по дням",
			Handle: func(ctx context.Context, req *router.Request) error {
				tasks, err := d.Tasks(ctx)
				if err != nil {
					return explain(err)
				}
				return req.Reply(ctx, "📚 Расписание\n\n"+FormatTasks(tasks))
			},
		},
		{
			Route:       "schedule set",
			Description: "заменить расписание (JSON или YAML)",
			Usage:       `/schedule set {"mon": ["Математика"], "tue": []}`,
			Access:      router.AccessOwnerOnly,
			Handle: func(ctx context.Context, req *router.Request) error {
				tasks, err := d.SetTasks(ctx, actorOf(req), []byte(req.Text))
				if err != nil {
					return explain(err)
				}
				return req.Reply(ctx, fmt.Sprintf("✅ Расписание сохранено: %d дн.", len(tasks)))
			},
		},
		{
			Route:       "debtors",
			Description: "список должников",
			Access:      router.AccessOwnerOnly,
			Handle: func(ctx context.Context, req *router.Request) error {
				list, err := d.Debtors(ctx)
				if err != nil {
					return explain(err)
				}
				return req.Reply(ctx, "📝 Должники:\n"+FormatList(list))
			},
		},
		{
			Route:       "debtors add",
			Description: "добавить должника",
			Usage:       "/debtors add текст",
			Access:      router.AccessOwnerOnly,
			Handle: func(ctx context.Context, req *router.Request) error {
				added, err := d.AddDebtor(ctx, actorOf(req), req.Text)
				if err != nil {
					return explain(err)
				}
				if !added {
					return explain(ErrEmptyText)
				}
				return req.Reply(ctx, "✅ Добавлено")
			},
		},
		{
			Route:       "debtors rm",
			Description: "убрать должника",
			Usage:       "/debtors rm текст",
			Access:      router.AccessOwnerOnly,
			Handle: func(ctx context.Context, req *router.Request) error {
				removed, err := d.RemoveDebtor(ctx, actorOf(req), req.Text)
				if err != nil {
					return explain(err)
				}
				if !removed {
					return req.Reply(ctx, "Такой записи нет")
				}
				return req.Reply(ctx, "🗑 Удалено")
			},
		},
		{
			Route:       "say",
			Description: "отправить текст в группу",
			Usage:       "/say текст",
			Access:      router.AccessOwnerOnly,
			Handle: func(ctx context.Context, req *router.Request) error {
				if err := d.Say(ctx, actorOf(req), req.Text); err != nil {
					return explain(err)
				}
				return req.Reply(ctx, "✅ Отправлено")
			},
		},
		{
			Route:       "reset",
			Description: "сбросить ротацию, замены, должников и симуляцию",
			Usage:       "/reset confirm",
			Access:      router.AccessOwnerOnly,
			Handle: func(ctx context.Context, req *router.Request) error {
				if len(req.Args) != 1 || !strings.EqualFold(req.Args[0], "confirm") {
					return req.Reply(ctx, "Это удалит все замены и должников. Подтвердите: /reset confirm")
				}
				anchor, err := d.Reset(ctx, actorOf(req))
				if err != nil {
					return explain(err)
				}
				return req.Reply(ctx, "♻️ Сброшено. Начало ротации: "+anchor.Format(humanDate))
			},
		},
		{
			Route:       "status",
			Description: "состояние бота",
			Access:      router.AccessOwnerOnly,
			Handle: func(ctx context.Context, req *router.Request) error {
				s, err := d.Status(ctx)
				if err != nil {
					return explain(err)
				}
				text := FormatStatus(s)
				if sched != nil {
					for _, j := range sched.Snapshot() {
						text += "\n\n⏰ " + j.Name + ": " + formatNext(j.Next, sched.Location())
						if j.LastErr != "" {
							text += "\n❌ " + j.LastErr
						}
					}
				}
				return req.Reply(ctx, text)
			},
		},
		{
			Route:       "audit",
			Description: "последние действия администраторов",
			Usage:       "/audit [N]",
			Access:      router.AccessOwnerOnly,
			Handle: func(ctx context.Context, req *router.Request) error {
				limit := 10
				if len(req.Args) > 0 {
					n, err := strconv.Atoi(req.Args[0])
					if err != nil || n <= 0 {
						return errors.New("N должно быть положительным числом")
					}
					limit = min(n, 100)
				}
				entries, err := d.Audit(ctx, limit)
				if err != nil {
					return explain(err)
				}
				return req.Reply(ctx, "🧾 Журнал:\n"+FormatAudit(entries, d.clock.Location()))
			},
		},
	}
}

func actorOf(req *router.Request) Actor {
	return Actor{Source: "telegram", ID: req.FromID, Username: req.From}
}

// optionalDate parses an optional first argument as YYYY-MM-DD; zero means today.
func optionalDate(args []string) (time.Time, error) {
	if len(args) == 0 {
		return time.Time{}, nil
	}
	return duty.ParseDate(args[0])
}

// splitSeedArgs splits "NAME1;NAME2 [YYYY-MM-DD]"; names may contain spaces.
func splitSeedArgs(text string) (string, time.Time, error) {
	text = strings.TrimSpace(text)
	if i := strings.LastIndexFunc(text, isSpace); i >= 0 {
		if last := text[i+1:]; last != "" && last[0] >= '0' && last[0] <= '9' {
			d, err := duty.ParseDate(last)
			if err != nil {
				return "", time.Time{}, err
			}
			text = unquote(strings.TrimSpace(text[:i]))
			if _, _, err := duty.ParseOverridePayload(text); err != nil {
				return "", time.Time{}, err
			}
			return text, d, nil
		}
	}
	text = unquote(text)
	if _, _, err := duty.ParseOverridePayload(text); err != nil {
		return "", time.Time{}, err
	}
	return text, time.Time{}, nil
}

// unquote strips one pair of matching outer quotes.
func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

func isSpace(r rune) bool { return r == ' ' || r == '\t' || r == '\n' }

func formatNext(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "не запланировано"
	}
	return "следующий запуск " + t.In(loc).Format("02.01.2006 15:04")
}

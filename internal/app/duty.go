package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"dutybot/internal/calendar"
	"dutybot/internal/duty"
	"dutybot/internal/storage"
	kit "dutybot/internal/transport"
	logx "dutybot/pkg/logx"
)

var (
	ErrNoPublisher = errors.New("telegram is not configured")
	ErrEmptyRoster = errors.New("roster is empty")
	ErrEmptyText   = errors.New("text is empty")
)

// Publisher delivers reports and free text to the duty group.
type Publisher interface {
	PublishAndPin(ctx context.Context, r duty.Report, pin bool) (kit.MessageRef, error)
	SendText(ctx context.Context, text string) (kit.MessageRef, error)
}

// Actor identifies who triggered an operation, for the audit log.
type Actor struct {
	Source   string // telegram|cli|cron
	ID       int64
	Username string
}

var cronActor = Actor{Source: "cron"}

// Duty runs every operation on the persisted duty state: load, apply, store,
// and publish when the operation posts. Each mutating call is audited.
type Duty struct {
	store storage.Store
	pub   Publisher
	clock *Clock
	log   logx.Logger
	pin   atomic.Bool
}

func NewDuty(store storage.Store, pub Publisher, clock *Clock, log logx.Logger) *Duty {
	if log.IsZero() {
		log = logx.Nop()
	}
	d := &Duty{store: store, pub: pub, clock: clock, log: log}
	d.pin.Store(true)
	return d
}

// SetPin toggles pinning of published reports.
func (d *Duty) SetPin(v bool) { d.pin.Store(v) }

// Status is a read-only summary of the current state.
type Status struct {
	RealToday time.Time
	Today     time.Time
	Simulated bool
	Anchor    time.Time
	Roster    int
	Upcoming  []OverrideView // overrides from Today on
	Debtors   []string
	Report    duty.Report
}

type OverrideView struct {
	Date time.Time
	Pair duty.Pair
}

// EnsureAnchor persists the default anchor on a fresh store so the rotation
// does not drift with the calendar.
func (d *Duty) EnsureAnchor(ctx context.Context) error {
	_, err := d.store.Update(ctx, func(*duty.State) error { return nil })
	return err
}

func (d *Duty) load(ctx context.Context) (*duty.State, time.Time, error) {
	st, err := d.store.Load(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}
	return st, st.Today(d.clock.Today()), nil
}

func (d *Duty) Status(ctx context.Context) (Status, error) {
	st, today, err := d.load(ctx)
	if err != nil {
		return Status{}, err
	}
	s := Status{
		RealToday: d.clock.Today(),
		Today:     today,
		Simulated: st.Clock.IsSet(),
		Anchor:    st.Anchor,
		Roster:    len(st.Roster),
		Debtors:   st.Debtors,
		Report:    st.Report(today),
	}
	from := duty.DateKey(today)
	for k, p := range st.Overrides {
		if k < from {
			continue
		}
		if date, err := duty.ParseDate(k); err == nil {
			s.Upcoming = append(s.Upcoming, OverrideView{Date: date, Pair: p})
		}
	}
	slices.SortFunc(s.Upcoming, func(a, b OverrideView) int { return a.Date.Compare(b.Date) })
	return s, nil
}

// Report returns the report for date, or for today when date is zero.
func (d *Duty) Report(ctx context.Context, date time.Time) (duty.Report, error) {
	st, today, err := d.load(ctx)
	if err != nil {
		return duty.Report{}, err
	}
	if date.IsZero() {
		date = today
	}
	return st.Report(date), nil
}

// Post publishes and pins the report for date (today when zero).
func (d *Duty) Post(ctx context.Context, a Actor, date time.Time) (r duty.Report, err error) {
	defer d.audit(ctx, a, "post", func() string { return duty.DateKey(r.Date) }, time.Now(), &err)
	if r, err = d.Report(ctx, date); err != nil {
		return r, err
	}
	return r, d.publish(ctx, r)
}

// Next advances the simulated clock one working day and posts the new day.
func (d *Duty) Next(ctx context.Context, a Actor) (duty.Report, error) {
	return d.step(ctx, a, "next", (*duty.State).AdvanceClock)
}

// Prev moves the simulated clock back one working day and posts that day.
func (d *Duty) Prev(ctx context.Context, a Actor) (duty.Report, error) {
	return d.step(ctx, a, "prev", (*duty.State).RetreatClock)
}

func (d *Duty) step(ctx context.Context, a Actor, action string, move func(*duty.State, time.Time) time.Time) (r duty.Report, err error) {
	defer d.audit(ctx, a, action, func() string { return duty.DateKey(r.Date) }, time.Now(), &err)
	realToday := d.clock.Today()
	var date time.Time
	st, err := d.store.Update(ctx, func(st *duty.State) error {
		date = move(st, realToday)
		return nil
	})
	if err != nil {
		return r, err
	}
	r = st.Report(date)
	return r, d.publish(ctx, r)
}

// ClockReset returns the bot to the real date.
func (d *Duty) ClockReset(ctx context.Context, a Actor) (err error) {
	defer d.audit(ctx, a, "clock.reset", nil, time.Now(), &err)
	_, err = d.store.Update(ctx, func(st *duty.State) error {
		st.ClearClock()
		return nil
	})
	return err
}

// Shift moves the anchor by n working days and returns the new anchor.
func (d *Duty) Shift(ctx context.Context, a Actor, n int) (anchor time.Time, err error) {
	defer d.audit(ctx, a, "shift", func() string { return fmt.Sprintf("%+d", n) }, time.Now(), &err)
	_, err = d.store.Update(ctx, func(st *duty.State) error {
		anchor = st.ShiftAnchor(n)
		return nil
	})
	return anchor, err
}

// Seed pins an override from a "NAME1;NAME2" payload for date (today when
// zero), then posts that date's report.
func (d *Duty) Seed(ctx context.Context, a Actor, payload string, date time.Time) (r duty.Report, err error) {
	defer d.audit(ctx, a, "seed", func() string { return duty.DateKey(r.Date) + " " + payload }, time.Now(), &err)
	realToday := d.clock.Today()
	st, err := d.store.Update(ctx, func(st *duty.State) error {
		if date.IsZero() {
			date = st.Today(realToday)
		}
		_, err := st.SeedOverride(date, payload)
		return err
	})
	if err != nil {
		return duty.Report{Date: date}, err
	}
	r = st.Report(date)
	return r, d.publish(ctx, r)
}

// Unseed drops the override for date (today when zero).
func (d *Duty) Unseed(ctx context.Context, a Actor, date time.Time) (removed bool, err error) {
	defer d.audit(ctx, a, "unseed", func() string { return duty.DateKey(date) }, time.Now(), &err)
	realToday := d.clock.Today()
	_, err = d.store.Update(ctx, func(st *duty.State) error {
		if date.IsZero() {
			date = st.Today(realToday)
		}
		removed = st.ClearOverride(date)
		return nil
	})
	return removed, err
}

func (d *Duty) Roster(ctx context.Context) (duty.Roster, error) {
	st, err := d.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return st.Roster, nil
}

// SetRoster replaces the roster with the names in text, one per line.
func (d *Duty) SetRoster(ctx context.Context, a Actor, text string) (roster duty.Roster, err error) {
	defer d.audit(ctx, a, "roster.set", func() string { return fmt.Sprintf("%d names", len(roster)) }, time.Now(), &err)
	roster = duty.ParseRoster(text)
	if len(roster) == 0 {
		return nil, ErrEmptyRoster
	}
	_, err = d.store.Update(ctx, func(st *duty.State) error {
		st.Roster = roster
		return nil
	})
	return roster, err
}

func (d *Duty) Tasks(ctx context.Context) (duty.TaskTable, error) {
	st, err := d.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return st.Tasks, nil
}

// SetTasks replaces the task table with a JSON or YAML document.
func (d *Duty) SetTasks(ctx context.Context, a Actor, data []byte) (tasks duty.TaskTable, err error) {
	defer d.audit(ctx, a, "schedule.set", func() string { return fmt.Sprintf("%d keys", len(tasks)) }, time.Now(), &err)
	tasks, err = duty.ParseTaskTable(data)
	if err != nil {
		return nil, err
	}
	_, err = d.store.Update(ctx, func(st *duty.State) error {
		st.Tasks = tasks
		return nil
	})
	return tasks, err
}

func (d *Duty) Debtors(ctx context.Context) ([]string, error) {
	st, err := d.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return st.Debtors, nil
}

// AddDebtor appends entry; it reports false for a blank entry.
func (d *Duty) AddDebtor(ctx context.Context, a Actor, entry string) (added bool, err error) {
	defer d.audit(ctx, a, "debtors.add", func() string { return entry }, time.Now(), &err)
	_, err = d.store.Update(ctx, func(st *duty.State) error {
		added = st.AddDebtor(entry)
		return nil
	})
	return added, err
}

func (d *Duty) RemoveDebtor(ctx context.Context, a Actor, entry string) (removed bool, err error) {
	defer d.audit(ctx, a, "debtors.rm", func() string { return entry }, time.Now(), &err)
	_, err = d.store.Update(ctx, func(st *duty.State) error {
		removed = st.RemoveDebtor(entry)
		return nil
	})
	return removed, err
}

// Say sends free text to the group.
func (d *Duty) Say(ctx context.Context, a Actor, text string) (err error) {
	defer d.audit(ctx, a, "say", nil, time.Now(), &err)
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	if d.pub == nil {
		return ErrNoPublisher
	}
	_, err = d.pub.SendText(ctx, text)
	return err
}

// Reset re-anchors the rotation at the real today and clears overrides,
// debtors and the simulated clock.
func (d *Duty) Reset(ctx context.Context, a Actor) (anchor time.Time, err error) {
	defer d.audit(ctx, a, "reset", nil, time.Now(), &err)
	anchor = d.clock.Today()
	_, err = d.store.Update(ctx, func(st *duty.State) error {
		st.Reset(anchor)
		return nil
	})
	return anchor, err
}

// DailyPost is the scheduled job: post and pin today's report unless today
// is the rest day.
func (d *Duty) DailyPost(ctx context.Context) (err error) {
	st, today, err := d.load(ctx)
	if err != nil {
		return err
	}
	r := st.Report(today)
	if r.RestDay {
		d.log.Info("rest day; daily post skipped", logx.Date("date", today))
		return nil
	}
	defer d.audit(ctx, cronActor, "post", func() string { return duty.DateKey(today) }, time.Now(), &err)
	return d.publish(ctx, r)
}

// ExportICS renders days days of the rotation starting at from (today when
// zero) as iCalendar.
func (d *Duty) ExportICS(ctx context.Context, from time.Time, days int) ([]byte, error) {
	st, today, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	if from.IsZero() {
		from = today
	}
	return calendar.Export(st, from, days, calendar.Options{Name: "Дежурства"})
}

func (d *Duty) Audit(ctx context.Context, limit int) ([]storage.AuditEntry, error) {
	return d.store.RecentAudit(ctx, limit)
}

func (d *Duty) publish(ctx context.Context, r duty.Report) error {
	if d.pub == nil {
		return ErrNoPublisher
	}
	_, err := d.pub.PublishAndPin(ctx, r, d.pin.Load())
	return err
}

// audit is deferred by mutating operations; target is evaluated after the
// operation so it can mention results.
func (d *Duty) audit(ctx context.Context, a Actor, action string, target func() string, start time.Time, errp *error) {
	e := storage.AuditEntry{
		Source:        a.Source,
		ActorID:       a.ID,
		ActorUsername: a.Username,
		Action:        action,
		TookMS:        time.Since(start).Milliseconds(),
	}
	if target != nil {
		e.Target = target()
	}
	if errp != nil && *errp != nil {
		e.Error = (*errp).Error()
	}
	if err := d.store.AppendAudit(context.WithoutCancel(ctx), e); err != nil {
		d.log.Warn("audit append failed", logx.String("action", action), logx.Err(err))
	}
}

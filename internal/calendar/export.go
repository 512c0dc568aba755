// Package calendar exports the duty rotation as an iCalendar feed.
package calendar

import (
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"dutybot/internal/duty"
)

const (
	productID = "-//dutybot//duty roster//RU"
	uidDomain = "dutybot"
	// MaxDays bounds a single export.
	MaxDays = 366
)

var ErrRange = errors.New("calendar: days must be between 1 and 366")

// Options tunes an export. Stamp is written as DTSTAMP on every event; a
// zero Stamp uses time.Now.
type Options struct {
	Name  string
	Stamp time.Time
}

// Export renders one all-day event per working day in [from, from+days).
// UIDs depend only on the date, so re-importing an export updates events
// in place instead of duplicating them.
func Export(st *duty.State, from time.Time, days int, opt Options) ([]byte, error) {
	if days <= 0 || days > MaxDays {
		return nil, ErrRange
	}
	stamp := opt.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}
	stamp = stamp.UTC()

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if opt.Name != "" {
		cal.SetXWRCalName(opt.Name)
	}

	for i := 0; i < days; i++ {
		d := from.AddDate(0, 0, i)
		if !st.Calendar.IsWorkingDay(d) {
			continue
		}
		r := st.Report(d)
		ev := cal.AddEvent(eventUID(d))
		ev.SetDtStampTime(stamp)
		ev.SetAllDayStartAt(d)
		ev.SetAllDayEndAt(d.AddDate(0, 0, 1))
		ev.SetSummary(summary(r))
		ev.SetDescription(duty.RenderTasks(r.Tasks))
	}
	return []byte(cal.Serialize()), nil
}

func eventUID(d time.Time) string {
	return "duty-" + d.Format("20060102") + "@" + uidDomain
}

func summary(r duty.Report) string {
	var b strings.Builder
	b.WriteString("Дежурные: ")
	b.WriteString(r.Pair[0])
	b.WriteString(", ")
	b.WriteString(r.Pair[1])
	if r.Overridden {
		b.WriteString(" (замена)")
	}
	return b.String()
}

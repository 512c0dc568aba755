package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"dutybot/internal/duty"
	kit "dutybot/internal/transport"
	"dutybot/internal/transport/telegram/router"
	logx "dutybot/pkg/logx"
)

func TestSplitSeedArgs(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in      string
		payload string
		date    time.Time
		err     error
	}{
		{in: "Иванов Пётр;Петров Иван", payload: "Иванов Пётр;Петров Иван"},
		{in: "Иванов;Петров 2024-09-02", payload: "Иванов;Петров", date: duty.Day(2024, time.September, 2)},
		{in: `"Иванов Пётр;Петров Иван" 2024-09-02`, payload: "Иванов Пётр;Петров Иван", date: duty.Day(2024, time.September, 2)},
		{in: `'Иванов;Петров'`, payload: "Иванов;Петров"},
		{in: "Иванов;Петров 2024-13-02", err: duty.ErrInvalidDateFormat},
		{in: "Иванов Петров", err: duty.ErrMalformedOverridePayload},
		{in: "Иванов 2024-09-02", err: duty.ErrMalformedOverridePayload},
	}
	for _, tc := range cases {
		payload, date, err := splitSeedArgs(tc.in)
		if tc.err != nil {
			if !errors.Is(err, tc.err) {
				t.Fatalf("%q: err=%v want %v", tc.in, err, tc.err)
			}
			continue
		}
		if err != nil || payload != tc.payload || !date.Equal(tc.date) {
			t.Fatalf("%q: got (%q, %s, %v)", tc.in, payload, duty.DateKey(date), err)
		}
	}
}

func TestExplain(t *testing.T) {
	t.Parallel()
	_, err := duty.ResolveName("Никто", duty.Roster{"Иванов Пётр"})
	if got := explain(err).Error(); !strings.Contains(got, "Никто") {
		t.Fatalf("explain(name)=%q", got)
	}
	if got := explain(ErrNoPublisher).Error(); got != "telegram не настроен" {
		t.Fatalf("explain(publisher)=%q", got)
	}
	other := errors.New("boom")
	if explain(other) != other {
		t.Fatalf("unknown errors must pass through")
	}
}

type chatSender struct {
	mu   sync.Mutex
	sent []string
	ch   chan string
}

func (c *chatSender) SendText(_ context.Context, _ kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	c.mu.Lock()
	c.sent = append(c.sent, text)
	c.mu.Unlock()
	c.ch <- text
	return kit.MessageRef{MessageID: 1}, nil
}

func (c *chatSender) Pin(context.Context, kit.MessageRef, bool) error { return nil }

func TestCommandsEndToEnd(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	pub := &fakePublisher{}
	d := newTestDuty(t, pub, &now)

	cs := &chatSender{ch: make(chan string, 16)}
	rt := router.New(logx.Nop(), cs, []int64{42}, router.WithWorkers(1))
	rt.SetCommands(commands(d, nil))

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan kit.Update, 8)
	done := make(chan struct{})
	go func() {
		_ = rt.Dispatch(ctx, updates)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	say := func(from int64, text string) string {
		t.Helper()
		updates <- kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: -1, FromID: from, Text: text}}
		select {
		case reply := <-cs.ch:
			return reply
		case <-time.After(3 * time.Second):
			t.Fatalf("no reply to %q", text)
			return ""
		}
	}

	if got := say(7, "/duty"); !strings.Contains(got, "Иванов Пётр и Петров Иван") {
		t.Fatalf("/duty reply=%q", got)
	}
	if got := say(7, "/shift 1"); !strings.Contains(got, "администратор") {
		t.Fatalf("non-owner /shift reply=%q", got)
	}
	if got := say(42, "/seed Сидоров;Кузнецов 2024-03-05"); !strings.Contains(got, "05.03.2024") {
		t.Fatalf("/seed reply=%q", got)
	}
	if len(pub.reports) != 1 || pub.reports[0].Pair != (duty.Pair{"Сидоров Олег", "Кузнецов Илья"}) {
		t.Fatalf("seed published=%+v", pub.reports)
	}
	if got := say(42, `/seed "Петров Иван;Иванов Пётр" 2024-03-06`); !strings.Contains(got, "06.03.2024: Петров Иван и Иванов Пётр") {
		t.Fatalf("quoted /seed reply=%q", got)
	}
	if got := say(42, "/seed Никто;Иванов"); !strings.Contains(got, "не нашёл в списке: Никто") {
		t.Fatalf("bad /seed reply=%q", got)
	}
	if got := say(42, "/roster set\nАлексеев Антон\nБорисов Борис"); !strings.Contains(got, "2 чел.") {
		t.Fatalf("/roster set reply=%q", got)
	}
	if got := say(7, "/roster"); !strings.Contains(got, "1. Алексеев Антон\n2. Борисов Борис") {
		t.Fatalf("/roster reply=%q", got)
	}
	if got := say(42, "/reset"); !strings.Contains(got, "/reset confirm") {
		t.Fatalf("/reset reply=%q", got)
	}
	if got := say(42, "/schedule_set {\"mon\": [\"Математика\"]}"); !strings.Contains(got, "1 дн.") {
		t.Fatalf("/schedule_set reply=%q", got)
	}
	if got := say(7, "/schedule"); !strings.Contains(got, "Понедельник:\n• Математика") {
		t.Fatalf("/schedule reply=%q", got)
	}
}

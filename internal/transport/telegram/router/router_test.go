package router

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	kit "dutybot/internal/transport"
	logx "dutybot/pkg/logx"
)

type fakeSender struct {
	mu    sync.Mutex
	sent  []string
	menus [][]kit.BotCommand
}

func (f *fakeSender) SendText(_ context.Context, _ kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return kit.MessageRef{MessageID: len(f.sent)}, nil
}

func (f *fakeSender) Pin(context.Context, kit.MessageRef, bool) error { return nil }

func (f *fakeSender) UpdateMenuCommands(_ context.Context, cmds []kit.BotCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.menus = append(f.menus, cmds)
	return nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func TestTokenizeCommandLine(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"/duty", []string{"/duty"}},
		{"/seed  \"Иванов Пётр;Петров Иван\"  2024-09-02", []string{"/seed", "Иванов Пётр;Петров Иван", "2024-09-02"}},
		{`/say it\'s`, []string{"/say", "it's"}},
		{"/roster set\nА\nБ", []string{"/roster", "set", "А", "Б"}},
	}
	for _, tc := range cases {
		if diff := cmp.Diff(tc.want, tokenizeCommandLine(tc.in)); diff != "" {
			t.Fatalf("tokenize(%q) mismatch (-want +got):\n%s", tc.in, diff)
		}
	}
}

func TestParseFlags(t *testing.T) {
	t.Parallel()
	pos, flags, bools := parseFlags([]string{"-3", "--date=2024-09-02", "-v", "--yes", "x"})
	if diff := cmp.Diff([]string{"-3"}, pos); diff != "" {
		t.Fatalf("pos mismatch (-want +got):\n%s", diff)
	}
	if flags["date"] != "2024-09-02" {
		t.Fatalf("flags=%v", flags)
	}
	// "-v" consumes nothing because the next token is a flag; "--yes" takes "x".
	if !bools["v"] || flags["yes"] != "x" {
		t.Fatalf("bools=%v flags=%v", bools, flags)
	}
}

func TestCommandTail(t *testing.T) {
	t.Parallel()
	cases := []struct {
		text string
		n    int
		want string
	}{
		{"/roster set\nИванов Пётр\nПетров Иван\n", 1, "Иванов Пётр\nПетров Иван"},
		{"/say  hello   world", 0, "hello   world"},
		{"/duty", 0, ""},
		{"/roster set", 1, ""},
	}
	for _, tc := range cases {
		if got := commandTail(tc.text, tc.n); got != tc.want {
			t.Fatalf("commandTail(%q,%d)=%q want %q", tc.text, tc.n, got, tc.want)
		}
	}
}

func TestSanitizeTelegramCommand(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"roster set":  "roster_set",
		"Clock-Reset": "clock_reset",
		"1day":        "cmd_1day",
		"дежурство":   "",
	}
	for in, want := range cases {
		if got := sanitizeTelegramCommand(in); got != want {
			t.Fatalf("sanitize(%q)=%q want %q", in, got, want)
		}
	}
}

func newTestRouter(t *testing.T, owners []int64) (*Router, *fakeSender, chan kit.Update, chan *Request) {
	t.Helper()
	fs := &fakeSender{}
	r := New(logx.Nop(), fs, owners, WithWorkers(1))
	got := make(chan *Request, 4)
	handle := func(_ context.Context, req *Request) error {
		got <- req
		return nil
	}
	r.SetCommands([]Command{
		{Route: "duty", Description: "кто дежурит", Handle: handle},
		{Route: "roster", Description: "список", Handle: handle},
		{Route: "roster set", Description: "заменить список", Access: AccessOwnerOnly, Handle: handle},
		{Route: "shift", Aliases: []string{"move"}, Access: AccessOwnerOnly, Handle: handle},
	})

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan kit.Update, 4)
	done := make(chan struct{})
	go func() {
		_ = r.Dispatch(ctx, updates)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return r, fs, updates, got
}

func msg(from int64, text string) kit.Update {
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: -100, FromID: from, Text: text}}
}

func waitReq(t *testing.T, ch chan *Request) *Request {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatalf("handler not called")
		return nil
	}
}

func TestRouterDispatch(t *testing.T) {
	t.Parallel()
	_, _, updates, got := newTestRouter(t, []int64{42})

	updates <- msg(7, "/duty@dutybot 2024-09-02")
	req := waitReq(t, got)
	if req.Command != "duty" || len(req.Args) != 1 || req.Args[0] != "2024-09-02" {
		t.Fatalf("req=%+v", req)
	}
	if req.ReqID == "" {
		t.Fatalf("missing request id")
	}

	updates <- msg(42, "/roster set\nИванов Пётр\nПетров Иван")
	req = waitReq(t, got)
	if req.Command != "roster set" || req.Text != "Иванов Пётр\nПетров Иван" {
		t.Fatalf("req=%+v", req)
	}

	updates <- msg(42, "/roster_set Сидоров")
	req = waitReq(t, got)
	if req.Command != "roster set" || req.Text != "Сидоров" {
		t.Fatalf("alias req=%+v", req)
	}

	updates <- msg(42, "/move -2")
	req = waitReq(t, got)
	if req.Command != "shift" || len(req.Args) != 1 || req.Args[0] != "-2" {
		t.Fatalf("shift req=%+v", req)
	}
}

func TestRouterOwnerOnly(t *testing.T) {
	t.Parallel()
	r, fs, updates, got := newTestRouter(t, []int64{42})

	updates <- msg(7, "/shift 1")
	deadline := time.Now().Add(2 * time.Second)
	for len(fs.texts()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if texts := fs.texts(); len(texts) != 1 || !strings.Contains(texts[0], "администратор") {
		t.Fatalf("texts=%v", texts)
	}
	select {
	case req := <-got:
		t.Fatalf("handler ran for non-owner: %+v", req)
	default:
	}

	r.SetOwners([]int64{7})
	updates <- msg(7, "/shift 1")
	if req := waitReq(t, got); req.Command != "shift" {
		t.Fatalf("req=%+v", req)
	}
}

func TestRouterIgnoresUnknownAndPlainText(t *testing.T) {
	t.Parallel()
	_, fs, updates, got := newTestRouter(t, nil)

	updates <- msg(1, "hello")
	updates <- msg(1, "/otherbot_cmd")
	updates <- msg(1, "/duty")
	waitReq(t, got)
	if texts := fs.texts(); len(texts) != 0 {
		t.Fatalf("unexpected replies: %v", texts)
	}
}

func TestHelpAndMenu(t *testing.T) {
	t.Parallel()
	r, fs, _, _ := newTestRouter(t, nil)

	top := r.helpText(nil)
	for _, want := range []string{"/duty", "/roster", "/help", "🔒 <code>/shift</code>"} {
		if !strings.Contains(top, want) {
			t.Fatalf("help missing %q:\n%s", want, top)
		}
	}
	node := r.helpText([]string{"roster"})
	if !strings.Contains(node, "/roster set") {
		t.Fatalf("roster help missing subcommand:\n%s", node)
	}
	if alias := r.helpText([]string{"move"}); !strings.Contains(alias, "/shift") {
		t.Fatalf("alias help=%s", alias)
	}

	if err := r.PublishMenu(context.Background()); err != nil {
		t.Fatalf("PublishMenu: %v", err)
	}
	var names []string
	for _, c := range fs.menus[0] {
		names = append(names, c.Command)
	}
	want := []string{"duty", "help", "roster", "shift", "roster_set"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("menu mismatch (-want +got):\n%s", diff)
	}
}

package router

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	rtsup "dutybot/internal/runtime/supervisor"
	kit "dutybot/internal/transport"
	logx "dutybot/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Command struct {
	// Route is a space-separated command path, e.g. "duty" or "roster set".
	Route       string
	Aliases     []string // root-level aliases, e.g. ["roster_set"]
	Description string
	Usage       string
	Access      Access
	Timeout     time.Duration // optional per-command override
	Handle      HandlerFunc
}

type Request struct {
	Update  kit.Update
	Chat    kit.ChatTarget
	FromID  int64
	From    string
	Path    []string // matched command path tokens
	Command string
	Args    []string // positionals after the path
	// Text is everything after the matched path, line breaks kept
	// (multi-line payloads such as a roster).
	Text string

	RawArgs   []string
	Flags     map[string]string
	BoolFlags map[string]bool
	ReqID     string

	Sender kit.Sender
	Logger logx.Logger
}

// Reply sends plain text back to the chat the command came from.
func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Sender.SendText(ctx, r.Chat, text, &kit.SendOptions{DisablePreview: true})
	return err
}

// ReplyHTML is Reply with HTML parse mode.
func (r *Request) ReplyHTML(ctx context.Context, text string) error {
	_, err := r.Sender.SendText(ctx, r.Chat, text, &kit.SendOptions{DisablePreview: true, ParseMode: "HTML"})
	return err
}

// Router parses incoming messages into commands and runs them on a small
// worker pool.
type Router struct {
	mu    sync.RWMutex
	root  *cmdNode
	alias map[string]*cmdNode

	owners []int64

	log     logx.Logger
	sender  kit.Sender
	workers int
	timeout time.Duration

	jobs chan func()
}

type Option func(*Router)

// WithWorkers sets the size of the handler pool (default 2).
func WithWorkers(n int) Option { return func(r *Router) { r.workers = max(n, 1) } }

// WithDefaultTimeout bounds handlers that set no Timeout (default 30s).
func WithDefaultTimeout(d time.Duration) Option { return func(r *Router) { r.timeout = d } }

func New(log logx.Logger, sender kit.Sender, owners []int64, opts ...Option) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Router{
		root:    newRoot(),
		alias:   map[string]*cmdNode{},
		owners:  append([]int64(nil), owners...),
		log:     log.With(logx.String("comp", "telegram.router")),
		sender:  sender,
		workers: 2,
		timeout: 30 * time.Second,
		jobs:    make(chan func(), 64),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// SetOwners updates the owner list used for AccessOwnerOnly checks.
// Safe to call during hot-reload.
func (r *Router) SetOwners(owners []int64) {
	cp := append([]int64(nil), owners...)
	r.mu.Lock()
	r.owners = cp
	r.mu.Unlock()
}

func (r *Router) isOwner(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Contains(r.owners, id)
}

// SetCommands replaces the registry. /help is always added.
func (r *Router) SetCommands(cmds []Command) {
	cmds = append(cmds, Command{
		Route:       "help",
		Aliases:     []string{"start"},
		Description: "список команд",
		Usage:       "/help [команда]",
		Handle: func(ctx context.Context, req *Request) error {
			return req.ReplyHTML(ctx, r.helpText(req.Args))
		},
	})

	root := newRoot()
	alias := map[string]*cmdNode{}
	for _, c := range cmds {
		route := splitRoute(c.Route)
		if len(route) == 0 || c.Handle == nil {
			continue
		}
		root.add(route, c)
		leaf := root.find(route)
		// Multi-token routes also get a Telegram-safe single-token alias
		// ("roster set" -> "roster_set") for the command menu.
		if len(route) > 1 {
			if name := sanitizeTelegramCommand(strings.Join(route, "_")); name != "" {
				if _, exists := alias[name]; !exists {
					alias[name] = leaf
				}
			}
		}
		for _, a := range c.Aliases {
			if a = strings.ToLower(strings.TrimSpace(a)); a != "" && !strings.Contains(a, " ") {
				alias[a] = leaf
			}
		}
	}

	r.mu.Lock()
	r.root = root
	r.alias = alias
	r.mu.Unlock()
}

// Menu returns the command list for the Telegram menu.
func (r *Router) Menu() []kit.BotCommand {
	r.mu.RLock()
	root := r.root
	r.mu.RUnlock()
	return buildMenu(root)
}

// Dispatch consumes updates until ctx is done or updates is closed.
func (r *Router) Dispatch(ctx context.Context, updates <-chan kit.Update) error {
	sup := rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(r.log),
		rtsup.WithCancelOnError(false),
	)
	for i := 0; i < r.workers; i++ {
		sup.GoRestart("command.worker", func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job := <-r.jobs:
					job()
				}
			}
		}, rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second))
	}
	r.log.Info("command dispatcher started", logx.Int("workers", r.workers))

	defer func() {
		sup.Cancel()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		r.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			if up.Kind == kit.UpdateMessage && up.Message != nil {
				r.routeMessage(ctx, up)
			}
		}
	}
}

// match resolves a message to a command. ok is false for plain text and
// unknown commands (the group may host other bots); a nil cmd with ok set
// means a command group without a handler of its own.
func (r *Router) match(text string) (cmd *Command, path, args []string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return nil, nil, nil, false
	}
	parts := tokenizeCommandLine(text)
	if len(parts) == 0 {
		return nil, nil, nil, false
	}
	word := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	if at := strings.IndexByte(word, '@'); at >= 0 {
		word = word[:at]
	}
	args = parts[1:]

	r.mu.RLock()
	root, alias := r.root, r.alias
	r.mu.RUnlock()

	if leaf, hit := alias[word]; hit && leaf.cmd != nil {
		return leaf.cmd, []string{word}, args, true
	}
	cur, hit := root.child(word)
	if !hit {
		return nil, nil, nil, false
	}
	path = []string{word}
	for len(args) > 0 {
		child, hit := cur.child(args[0])
		if !hit {
			break
		}
		cur = child
		path = append(path, strings.ToLower(args[0]))
		args = args[1:]
	}
	return cur.cmd, path, args, true
}

func (r *Router) routeMessage(ctx context.Context, up kit.Update) {
	msg := up.Message
	chat := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
	cmd, path, args, ok := r.match(msg.Text)
	if !ok {
		return
	}
	if cmd == nil {
		text := r.helpText(path)
		_, _ = r.sender.SendText(ctx, chat, text, &kit.SendOptions{DisablePreview: true, ParseMode: "HTML"})
		return
	}
	if cmd.Access == AccessOwnerOnly && !r.isOwner(msg.FromID) {
		r.log.Warn("unauthorized command", logx.Int64("from_id", msg.FromID), logx.String("cmd", cmd.Route))
		_, _ = r.sender.SendText(ctx, chat, "⛔ Команда доступна только администраторам.", nil)
		return
	}

	pos, flags, bools := parseFlags(args)
	rid := newReqID()
	req := &Request{
		Update:    up,
		Chat:      chat,
		FromID:    msg.FromID,
		From:      msg.FromUsername,
		Path:      path,
		Command:   cmd.Route,
		Args:      pos,
		Text:      commandTail(msg.Text, len(path)-1),
		RawArgs:   args,
		Flags:     flags,
		BoolFlags: bools,
		ReqID:     rid,
		Sender:    r.sender,
		Logger: r.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", cmd.Route),
		),
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}
	final := Chain(cmd.Handle,
		MWPanicRecover(r.log),
		MWRequestLog(r.log),
		MWTimeout(timeout),
	)

	select {
	case r.jobs <- func() { _ = final(ctx, req) }:
	default:
		_, _ = r.sender.SendText(ctx, chat, "⏳ Бот занят, повторите позже.", nil)
	}
}

// PublishMenu pushes Menu to the platform when the sender supports it.
func (r *Router) PublishMenu(ctx context.Context) error {
	mu, ok := r.sender.(kit.CommandMenuUpdater)
	if !ok {
		return nil
	}
	return mu.UpdateMenuCommands(ctx, r.Menu())
}

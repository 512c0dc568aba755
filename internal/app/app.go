package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dutybot/internal/config"
	"dutybot/internal/notifier"
	"dutybot/internal/observability/pprof"
	"dutybot/internal/runtime/supervisor"
	"dutybot/internal/scheduler"
	"dutybot/internal/storage"
	kit "dutybot/internal/transport"
	telegram "dutybot/internal/transport/telegram/adapter"
	"dutybot/internal/transport/telegram/router"
	logx "dutybot/pkg/logx"
	"dutybot/pkg/systemd"
)

const dailyJob = "daily_post"

type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	clock *Clock
	store storage.Store

	adapter kit.Adapter
	notif   *notifier.Service
	sched   *scheduler.Service
	router  *router.Router
	duty    *Duty
	pprof   *pprof.Service

	updates chan kit.Update
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireTelegram(); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(cfg.Logx())
	loc, _ := cfg.Duty.Location() // validated by Load
	clock := NewClock(loc, nil)

	ad, err := telegram.New(mapAdapterConfig(cfg, false), log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}
	logSvc.SetSender(ad)

	sc, err := mapStorageConfig(cfg, clock)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log)
	if err != nil {
		return nil, err
	}
	log.Info("storage opened", logx.String("driver", sc.Driver), logx.String("path", sc.Path))

	notif := notifier.New(mapNotifierConfig(cfg), ad, log.With(logx.String("comp", "notifier")))
	d := NewDuty(store, notif, clock, log.With(logx.String("comp", "duty")))
	d.SetPin(cfg.Duty.PinEnabled())

	sched := scheduler.New(loc, log.With(logx.String("comp", "scheduler")))
	rt := router.New(log, ad, cfg.Telegram.OwnerUserIDs)
	rt.SetCommands(commands(d, sched))

	return &App{
		cfgm:    cfgm,
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		clock:   clock,
		store:   store,
		adapter: ad,
		notif:   notif,
		sched:   sched,
		router:  rt,
		duty:    d,
		pprof:   pprof.New(log),
		updates: make(chan kit.Update, 256),
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.NewSupervisor(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if err := cfg.RequireTelegram(); err != nil {
			return err
		}
		if _, err := a.sched.Validate(cfg.Duty.PostAt); err != nil {
			return fmt.Errorf("duty.post_at: %w", err)
		}
		return nil
	})

	if err := a.duty.EnsureAnchor(ctx); err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if err := a.applyDailyJob(a.cfgm.Get()); err != nil {
		return err
	}
	a.sched.Start(a.sup.Context())
	a.pprof.Apply(ctx, mapPprofConfig(a.cfgm.Get()))

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	mctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := a.router.PublishMenu(mctx); err != nil {
		a.log.Warn("menu commands update failed", logx.Err(err))
	}
	cancel()

	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.router.Dispatch(c, a.updates)
	})
	a.sup.Go0("config.reload", a.reloadLoop)
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})
	a.sup.Go0("systemd.watchdog", func(c context.Context) {
		systemd.Watchdog(c, a.log, func() bool { return a.sup.Err() == nil })
	})

	if ok, err := systemd.Ready(); err != nil {
		a.log.Warn("systemd notify failed", logx.Err(err))
	} else if ok {
		a.log.Debug("systemd notified: ready")
	}
	a.log.Info("app started")
	return nil
}

// applyDailyJob registers or removes the daily post according to cfg.
func (a *App) applyDailyJob(cfg *config.Config) error {
	if !cfg.Duty.DailyPostEnabled() {
		if err := a.sched.Remove(dailyJob); err == nil {
			a.log.Info("daily post disabled")
		}
		return nil
	}
	return a.sched.Add(dailyJob, cfg.Duty.PostAt, 2*time.Minute, a.duty.DailyPost)
}

func (a *App) reloadLoop(c context.Context) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-c.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			_, _ = systemd.Reloading()
			a.apply(lastApplied, newCfg)
			lastApplied = newCfg
			_, _ = systemd.Ready()
		}
	}
}

func (a *App) apply(oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	a.logs.Apply(newCfg.Logx())
	a.router.SetOwners(newCfg.Telegram.OwnerUserIDs)
	a.notif.Apply(mapNotifierConfig(newCfg))
	a.duty.SetPin(newCfg.Duty.PinEnabled())
	a.pprof.Apply(a.sup.Context(), mapPprofConfig(newCfg))

	if loc, err := newCfg.Duty.Location(); err == nil {
		a.clock.SetLocation(loc)
		a.sched.SetLocation(loc)
	}
	if err := a.applyDailyJob(newCfg); err != nil {
		a.log.Warn("daily post schedule rejected; keeping previous", logx.Err(err))
	}

	var restart []string
	if oldCfg.Storage != newCfg.Storage {
		restart = append(restart, "storage")
	}
	if oldCfg.Duty.RestDay != newCfg.Duty.RestDay {
		restart = append(restart, "duty.rest_day")
	}
	if oldCfg.Telegram.Token != newCfg.Telegram.Token || oldCfg.Telegram.PollTimeout != newCfg.Telegram.PollTimeout {
		restart = append(restart, "telegram")
	}
	if len(restart) > 0 {
		a.log.Warn("restart required for changes to take effect", logx.Strings("sections", restart))
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = systemd.Stopping()

	// First, cancel the app run context so background loops start unwinding immediately.
	a.sup.Cancel()

	var errs []error
	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		if err := a.stopStep(ctx, name, limit, fn); err != nil {
			errs = append(errs, err)
		}
	}
	step("scheduler", 3*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("pprof", time.Second, func(c context.Context) error { a.pprof.Stop(c); return nil })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	_ = a.logs.Close()
	return errors.Join(errs...)
}

// stopStep runs one shutdown step bounded by limit so a stuck component
// cannot stall the whole stop. The caller's deadline is never extended.
func (a *App) stopStep(ctx context.Context, name string, limit time.Duration, fn func(context.Context) error) error {
	start := time.Now()
	if dl, ok := ctx.Deadline(); ok {
		limit = min(limit, time.Until(dl))
	}
	if limit <= 0 {
		a.log.Warn("stop step skipped (no time left)", logx.String("name", name))
		return nil
	}
	stepCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		took := time.Since(start)
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			return fmt.Errorf("%s: %w", name, err)
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
		return nil
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
		return nil
	}
}

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	logx "dutybot/pkg/logx"
)

var ErrUnknownJob = errors.New("scheduler: unknown job")

// JobFunc runs one trigger. The context carries the job timeout.
type JobFunc func(ctx context.Context) error

type jobDef struct {
	name    string
	spec    ParsedSpec
	timeout time.Duration
	fn      JobFunc
	entryID cron.EntryID

	running atomic.Bool
	runs    atomic.Uint64
	skipped atomic.Uint64

	mu      sync.Mutex
	lastRun time.Time
	lastErr string
	took    time.Duration
}

// Service owns one cron instance and the registered jobs. Jobs survive a
// timezone change: SetLocation rebuilds the cron and re-adds them.
type Service struct {
	mu     sync.Mutex
	log    logx.Logger
	parser cron.Parser
	loc    *time.Location
	c      *cron.Cron
	jobs   map[string]*jobDef

	baseCtx context.Context
	cancel  context.CancelFunc
}

func New(loc *time.Location, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		log: log,
		loc: loc,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		jobs:   map[string]*jobDef{},
	}
}

// Validate reports whether raw parses into a schedule cron accepts.
func (s *Service) Validate(raw string) (ParsedSpec, error) {
	ps, err := ParseSchedule(raw)
	if err != nil {
		return ps, err
	}
	if _, err := s.parser.Parse(ps.Cron); err != nil {
		return ps, fmt.Errorf("invalid cron %q: %w", ps.Cron, err)
	}
	return ps, nil
}

// Add registers (or replaces) the job name. It is triggered once Start ran.
func (s *Service) Add(name, schedule string, timeout time.Duration, fn JobFunc) error {
	if fn == nil {
		return errors.New("scheduler: nil job")
	}
	ps, err := s.Validate(schedule)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.jobs[name]; ok && s.c != nil {
		s.c.Remove(old.entryID)
	}
	d := &jobDef{name: name, spec: ps, timeout: timeout, fn: fn}
	s.jobs[name] = d
	if s.c != nil {
		if err := s.addCronLocked(d); err != nil {
			delete(s.jobs, name)
			return err
		}
	}
	s.log.Info("job scheduled", logx.String("job", name), logx.String("spec", ps.Cron))
	return nil
}

// AddDaily is Add for an "HH:MM" wall-clock time.
func (s *Service) AddDaily(name, hhmm string, timeout time.Duration, fn JobFunc) error {
	h, m, err := parseHHMM(hhmm)
	if err != nil {
		return err
	}
	return s.Add(name, fmt.Sprintf("cron:%d %d * * *", m, h), timeout, fn)
}

func (s *Service) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if s.c != nil {
		s.c.Remove(d.entryID)
	}
	delete(s.jobs, name)
	return nil
}

// RunNow triggers name synchronously, outside its schedule.
func (s *Service) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	d, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, d)
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.baseCtx, s.cancel = context.WithCancel(ctx)
	s.startLocked()
	s.log.Info("service started", logx.String("tz", s.loc.String()), logx.Int("jobs", len(s.jobs)))
}

func (s *Service) startLocked() {
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))
	for _, d := range s.jobs {
		if err := s.addCronLocked(d); err != nil {
			s.log.Error("job re-add failed", logx.String("job", d.name), logx.Err(err))
		}
	}
	s.c.Start()
}

func (s *Service) addCronLocked(d *jobDef) error {
	ctx := s.baseCtx
	id, err := s.c.AddFunc(d.spec.Cron, func() {
		if ctx.Err() != nil {
			return
		}
		_ = s.run(ctx, d)
	})
	if err != nil {
		return fmt.Errorf("add %s: %w", d.name, err)
	}
	d.entryID = id
	return nil
}

// SetLocation switches the timezone schedules are evaluated in.
func (s *Service) SetLocation(loc *time.Location) {
	if loc == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loc.String() == loc.String() {
		return
	}
	s.loc = loc
	if s.c == nil {
		return
	}
	<-s.c.Stop().Done()
	s.startLocked()
	s.log.Info("timezone changed; jobs rescheduled", logx.String("tz", loc.String()))
}

// Stop stops triggering and waits for running jobs until ctx is done.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	cancel := s.cancel
	s.mu.Unlock()
	if c == nil {
		return
	}
	done := c.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		// best-effort: let running jobs see cancellation
	}
	if cancel != nil {
		cancel()
	}
	s.log.Info("service stopped")
}

// run executes d once; an already-running job is skipped.
func (s *Service) run(ctx context.Context, d *jobDef) (err error) {
	if !d.running.CompareAndSwap(false, true) {
		d.skipped.Add(1)
		s.log.Warn("job still running; trigger skipped", logx.String("job", d.name))
		return nil
	}
	defer d.running.Store(false)

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("job panicked", logx.String("job", d.name), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			err = fmt.Errorf("panic: %v", r)
		}
		took := time.Since(start)
		d.runs.Add(1)
		d.mu.Lock()
		d.lastRun = start
		d.took = took
		d.lastErr = ""
		if err != nil {
			d.lastErr = err.Error()
		}
		d.mu.Unlock()
		if err != nil {
			s.log.Error("job failed", logx.String("job", d.name), logx.Duration("took", took), logx.Err(err))
		} else {
			s.log.Debug("job done", logx.String("job", d.name), logx.Duration("took", took))
		}
	}()
	return d.fn(ctx)
}

// JobInfo is a point-in-time view of one job.
type JobInfo struct {
	Name    string
	Spec    string
	Next    time.Time
	Prev    time.Time
	LastRun time.Time
	LastErr string
	Took    time.Duration
	Runs    uint64
	Skipped uint64
	Running bool
}

// Snapshot lists jobs sorted by name.
func (s *Service) Snapshot() []JobInfo {
	s.mu.Lock()
	c := s.c
	defs := make([]*jobDef, 0, len(s.jobs))
	for _, d := range s.jobs {
		defs = append(defs, d)
	}
	s.mu.Unlock()

	out := make([]JobInfo, 0, len(defs))
	for _, d := range defs {
		it := JobInfo{
			Name:    d.name,
			Spec:    d.spec.Cron,
			Runs:    d.runs.Load(),
			Skipped: d.skipped.Load(),
			Running: d.running.Load(),
		}
		if c != nil && d.entryID != 0 {
			e := c.Entry(d.entryID)
			it.Next, it.Prev = e.Next, e.Prev
		}
		d.mu.Lock()
		it.LastRun, it.LastErr, it.Took = d.lastRun, d.lastErr, d.took
		d.mu.Unlock()
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Location is the timezone schedules are evaluated in.
func (s *Service) Location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc
}

package notifier

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"dutybot/internal/duty"
	kit "dutybot/internal/transport"
	logx "dutybot/pkg/logx"
)

var (
	ErrNoTarget   = errors.New("notifier: no target chat configured")
	ErrNothingPub = errors.New("notifier: nothing published yet")
	ErrEmptyText  = errors.New("notifier: empty text")
)

const historySize = 20

// Service sends to the configured group. It is safe for concurrent use.
type Service struct {
	mu      sync.Mutex
	log     logx.Logger
	sender  kit.Sender
	cfg     Config
	limiter *rate.Limiter

	last    kit.MessageRef
	history []HistoryItem

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(cfg Config, sender kit.Sender, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{log: log, sender: sender, sleep: sleepCtx}
	s.Apply(cfg)
	return s
}

// Apply swaps the delivery settings; in-flight sends keep the old ones.
func (s *Service) Apply(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	s.mu.Lock()
	s.cfg = cfg
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	s.mu.Unlock()
}

// Publish sends the rendered report for r.Date and remembers its ref for PinLast.
func (s *Service) Publish(ctx context.Context, r duty.Report) (kit.MessageRef, error) {
	ref, err := s.send(ctx, r.Text())
	if err != nil {
		return ref, fmt.Errorf("publish report %s: %w", duty.DateKey(r.Date), err)
	}
	s.mu.Lock()
	s.last = ref
	s.record(HistoryItem{At: time.Now(), Kind: "report", Date: duty.DateKey(r.Date), Ref: ref})
	s.mu.Unlock()
	s.log.Info("report published", logx.Date("date", r.Date), logx.Int("msg_id", ref.MessageID), logx.Bool("overridden", r.Overridden))
	return ref, nil
}

// PinLast pins the last published report without notifying members.
func (s *Service) PinLast(ctx context.Context) error {
	s.mu.Lock()
	ref := s.last
	s.mu.Unlock()
	return s.pin(ctx, ref)
}

func (s *Service) pin(ctx context.Context, ref kit.MessageRef) error {
	if ref.MessageID == 0 {
		return ErrNothingPub
	}
	err := s.retry(ctx, "pin", func(cctx context.Context) error {
		return s.sender.Pin(cctx, ref, true)
	})
	if err != nil {
		return fmt.Errorf("pin message %d: %w", ref.MessageID, err)
	}
	s.mu.Lock()
	for i := range s.history {
		if s.history[i].Ref == ref {
			s.history[i].Pinned = true
		}
	}
	s.mu.Unlock()
	return nil
}

// PublishAndPin publishes r and, when pin is set, pins that same message. A
// pin failure is returned but the message stays posted.
func (s *Service) PublishAndPin(ctx context.Context, r duty.Report, pin bool) (kit.MessageRef, error) {
	ref, err := s.Publish(ctx, r)
	if err != nil || !pin {
		return ref, err
	}
	return ref, s.pin(ctx, ref)
}

// SendText sends free text to the group.
func (s *Service) SendText(ctx context.Context, text string) (kit.MessageRef, error) {
	if strings.TrimSpace(text) == "" {
		return kit.MessageRef{}, ErrEmptyText
	}
	ref, err := s.send(ctx, text)
	if err != nil {
		return ref, err
	}
	s.mu.Lock()
	s.record(HistoryItem{At: time.Now(), Kind: "text", Ref: ref})
	s.mu.Unlock()
	return ref, nil
}

// History returns recent deliveries, oldest first.
func (s *Service) History() []HistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}

func (s *Service) record(it HistoryItem) {
	s.history = append(s.history, it)
	if len(s.history) > historySize {
		s.history = append(s.history[:0], s.history[len(s.history)-historySize:]...)
	}
}

func (s *Service) send(ctx context.Context, text string) (kit.MessageRef, error) {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()
	if cfg.Target.ChatID == 0 {
		return kit.MessageRef{}, ErrNoTarget
	}
	var ref kit.MessageRef
	err := s.retry(ctx, "send", func(cctx context.Context) error {
		var err error
		ref, err = s.sender.SendText(cctx, cfg.Target, text, &kit.SendOptions{ParseMode: cfg.ParseMode, DisablePreview: true})
		return err
	})
	return ref, err
}

// retry runs op under the rate limiter with a per-call timeout, retrying up
// to RetryMax times. Errors marked kit.ErrPermanent are returned at once.
func (s *Service) retry(ctx context.Context, what string, op func(context.Context) error) error {
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	s.mu.Unlock()

	attempts := 1 + max(cfg.RetryMax, 0)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := lim.Wait(ctx); err != nil {
			return err
		}
		cctx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
		err := op(cctx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil || attempt == attempts || errors.Is(err, kit.ErrPermanent) {
			break
		}
		delay := retryDelay(cfg, attempt)
		s.log.Warn("telegram call failed; retrying", logx.String("op", what), logx.Int("attempt", attempt), logx.Duration("backoff", delay), logx.Err(err))
		if err := s.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retryDelay is the wait before attempt+1: base * 2^(attempt-1) with
// 0.7..1.3 jitter, capped at RetryMaxDelay.
func retryDelay(cfg Config, attempt int) time.Duration {
	base := cfg.RetryBase
	if base <= 0 {
		base = time.Second
	}
	maxD := cfg.RetryMaxDelay
	if maxD <= 0 {
		maxD = 30 * time.Second
	}
	d := base
	for i := 1; i < attempt && d < maxD; i++ {
		d *= 2
	}
	d = time.Duration(float64(d) * (0.7 + rand.Float64()*0.6))
	return min(d, maxD)
}

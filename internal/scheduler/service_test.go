package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	logx "dutybot/pkg/logx"
)

func TestAddValidatesAndSnapshots(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("MSK", 3*3600)
	s := New(loc, logx.Nop())
	noop := func(context.Context) error { return nil }

	if err := s.Add("bad", "61 * * * *", 0, noop); err == nil {
		t.Fatal("expected cron validation error")
	}
	if err := s.AddDaily("daily-post", "07:30", time.Minute, noop); err != nil {
		t.Fatalf("AddDaily: %v", err)
	}
	if err := s.Add("every", "every:1h", 0, noop); err != nil {
		t.Fatalf("Add interval: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(context.Background())

	snap := s.Snapshot()
	if len(snap) != 2 || snap[0].Name != "daily-post" || snap[0].Spec != "30 7 * * *" {
		t.Fatalf("snapshot = %+v", snap)
	}
	next := snap[0].Next.In(loc)
	if next.Hour() != 7 || next.Minute() != 30 {
		t.Fatalf("next run %s is not 07:30 MSK", next)
	}

	if err := s.Remove("every"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Remove("every"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("second Remove = %v", err)
	}
}

func TestRunNowRecordsOutcome(t *testing.T) {
	t.Parallel()
	s := New(time.UTC, logx.Nop())
	var calls atomic.Int32
	boom := errors.New("boom")
	if err := s.AddDaily("job", "03:00", time.Second, func(ctx context.Context) error {
		calls.Add(1)
		if _, ok := ctx.Deadline(); !ok {
			t.Error("job context has no deadline")
		}
		return boom
	}); err != nil {
		t.Fatalf("AddDaily: %v", err)
	}
	if err := s.RunNow(context.Background(), "job"); !errors.Is(err, boom) {
		t.Fatalf("RunNow = %v", err)
	}
	snap := s.Snapshot()
	if calls.Load() != 1 || snap[0].Runs != 1 || snap[0].LastErr != "boom" {
		t.Fatalf("calls=%d snapshot=%+v", calls.Load(), snap[0])
	}
	if err := s.RunNow(context.Background(), "missing"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("RunNow(missing) = %v", err)
	}
}

func TestRunRecoversPanic(t *testing.T) {
	t.Parallel()
	s := New(time.UTC, logx.Nop())
	_ = s.AddDaily("panics", "03:00", 0, func(context.Context) error { panic("kaboom") })
	if err := s.RunNow(context.Background(), "panics"); err == nil {
		t.Fatal("expected error from panicking job")
	}
	if s.Snapshot()[0].Running {
		t.Fatal("job still marked running after panic")
	}
}

func TestOverlappingRunSkipped(t *testing.T) {
	t.Parallel()
	s := New(time.UTC, logx.Nop())
	release := make(chan struct{})
	started := make(chan struct{})
	_ = s.AddDaily("slow", "03:00", 0, func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	done := make(chan error, 1)
	go func() { done <- s.RunNow(context.Background(), "slow") }()
	<-started
	if err := s.RunNow(context.Background(), "slow"); err != nil {
		t.Fatalf("overlapping RunNow = %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first RunNow = %v", err)
	}
	if got := s.Snapshot()[0]; got.Runs != 1 || got.Skipped != 1 {
		t.Fatalf("runs=%d skipped=%d", got.Runs, got.Skipped)
	}
}

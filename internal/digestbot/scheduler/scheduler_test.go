package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestNextRun_BeforeTimeIsToday(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 10, 15, 8, 0, 0, 0, loc)
	got := NextRun(now, TimeOfDay{Hour: 8, Minute: 45, Location: loc})

	want := time.Date(2026, 10, 15, 8, 45, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestNextRun_AfterTimeIsTomorrow(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, loc)
	got := NextRun(now, TimeOfDay{Hour: 8, Minute: 45, Location: loc})

	want := time.Date(2026, 10, 16, 8, 45, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestNextRun_ExactlyNowRollsOver(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 10, 15, 8, 45, 0, 0, loc)
	got := NextRun(now, TimeOfDay{Hour: 8, Minute: 45, Location: loc})
	if !got.After(now) {
		t.Fatalf("expected next run strictly after now, got %s", got)
	}
	if got.Day() != 16 {
		t.Fatalf("expected tomorrow, got %s", got)
	}
}

func TestNextRun_MonthBoundary(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 12, 31, 23, 0, 0, 0, loc)
	got := NextRun(now, TimeOfDay{Hour: 8, Minute: 0, Location: loc})

	want := time.Date(2027, 1, 1, 8, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestNextRun_OtherLocation(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*3600)
	// 00:30 UTC is 08:30 in UTC+8, before 08:45 there.
	now := time.Date(2026, 10, 15, 0, 30, 0, 0, time.UTC)
	got := NextRun(now, TimeOfDay{Hour: 8, Minute: 45, Location: shanghai})

	if got.Sub(now) != 15*time.Minute {
		t.Fatalf("expected 15m delay, got %s", got.Sub(now))
	}
}

func TestParseTimeOfDay(t *testing.T) {
	at, err := ParseTimeOfDay("08:45", time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if at.Hour != 8 || at.Minute != 45 || at.String() != "08:45" {
		t.Fatalf("unexpected time of day: %+v", at)
	}
	if _, err := ParseTimeOfDay("8.45am", nil); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestRunOnce_ContinuesAfterFailure(t *testing.T) {
	s := NewScheduler()
	var order []string
	boom := errors.New("boom")
	s.Add(Job{Name: "a", Fn: func(context.Context) error { order = append(order, "a"); return boom }})
	s.Add(Job{Name: "b", Fn: func(context.Context) error { order = append(order, "b"); return nil }})

	if err := s.RunOnce(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected first error, got %v", err)
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("expected jobs run in order, got %v", order)
	}
}

func TestStart_FiresRepeatedlyUntilCancelled(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int32
	fired := make(chan struct{}, 10)
	s.Add(Job{Name: "digest", Fn: func(context.Context) error {
		runs.Add(1)
		fired <- struct{}{}
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx, time.Millisecond, 5*time.Millisecond)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		select {
		case <-fired:
		case <-time.After(2 * time.Second):
			t.Fatalf("job did not fire (run %d)", i+1)
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	if runs.Load() < 3 {
		t.Fatalf("expected at least 3 runs, got %d", runs.Load())
	}
}

func TestStop_BeforeFirstFire(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int32
	s.Add(Job{Name: "digest", Fn: func(context.Context) error { runs.Add(1); return nil }})

	done := make(chan struct{})
	go func() {
		s.Start(context.Background(), time.Hour, Day)
		close(done)
	}()
	s.Stop()
	s.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	if runs.Load() != 0 {
		t.Fatalf("expected no runs, got %d", runs.Load())
	}
}

func TestStartDaily_UsesClock(t *testing.T) {
	s := NewScheduler()
	loc := time.UTC
	// One millisecond before 08:45.
	s.now = func() time.Time { return time.Date(2026, 10, 15, 8, 44, 59, int(999*time.Millisecond), loc) }

	fired := make(chan struct{}, 1)
	s.Add(Job{Name: "digest", Fn: func(context.Context) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.StartDaily(ctx, TimeOfDay{Hour: 8, Minute: 45, Location: loc})

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("expected daily job to fire after the computed delay")
	}
}

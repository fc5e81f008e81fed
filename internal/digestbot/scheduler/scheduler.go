// Package scheduler runs the digest jobs once a day at a fixed wall-clock time.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Day is the repeat interval of the daily schedule.
const Day = 24 * time.Hour

// Job represents a scheduled task.
type Job struct {
	Name string
	Fn   func(ctx context.Context) error
}

// TimeOfDay is a wall-clock time in a given location.
type TimeOfDay struct {
	Hour     int
	Minute   int
	Location *time.Location
}

// ParseTimeOfDay parses "HH:MM" in loc (time.Local if nil).
func ParseTimeOfDay(s string, loc *time.Location) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	if loc == nil {
		loc = time.Local
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Location: loc}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// NextRun returns the next moment strictly after now at which the clock in
// at.Location reads at.Hour:at.Minute.
func NextRun(now time.Time, at TimeOfDay) time.Time {
	loc := at.Location
	if loc == nil {
		loc = now.Location()
	}
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), at.Hour, at.Minute, 0, 0, loc)
	if !next.After(now) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, at.Hour, at.Minute, 0, 0, loc)
	}
	return next
}

// Scheduler runs its jobs sequentially each time it fires.
type Scheduler struct {
	jobs     []Job
	logger   *slog.Logger
	now      func() time.Time
	done     chan struct{}
	stopOnce sync.Once
}

// NewScheduler creates a new scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		logger: slog.Default(),
		now:    time.Now,
		done:   make(chan struct{}),
	}
}

// Add registers a job with the scheduler.
func (s *Scheduler) Add(job Job) {
	s.jobs = append(s.jobs, job)
}

// RunOnce executes all registered jobs once, in order. A failing job is
// logged and does not stop the jobs after it; the first error is returned.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var firstErr error
	for _, job := range s.jobs {
		s.logger.Info("running job", "name", job.Name)
		start := time.Now()
		if err := job.Fn(ctx); err != nil {
			s.logger.Error("job failed", "name", job.Name, "error", err, "duration", time.Since(start))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.logger.Info("job completed", "name", job.Name, "duration", time.Since(start))
	}
	return firstErr
}

// StartDaily arms the scheduler: the first run happens at the next
// occurrence of at, then every 24 hours. It blocks until ctx is cancelled or
// Stop is called.
func (s *Scheduler) StartDaily(ctx context.Context, at TimeOfDay) {
	now := s.now()
	next := NextRun(now, at)
	s.logger.Info("daily schedule armed", "at", at.String(), "next_run", next, "delay", next.Sub(now))
	s.Start(ctx, next.Sub(now), Day)
}

// Start runs the jobs after first, then every interval.
func (s *Scheduler) Start(ctx context.Context, first, interval time.Duration) {
	s.logger.Info("scheduler started", "first", first, "interval", interval, "jobs", len(s.jobs))

	timer := time.NewTimer(first)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		s.logger.Info("scheduler stopped")
		return
	case <-s.done:
		s.logger.Info("scheduler stopped")
		return
	case <-timer.C:
		s.RunOnce(ctx)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-s.done:
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// Stop stops the scheduler. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

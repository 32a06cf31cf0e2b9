// Package scheduler triggers pipeline runs at configured times of day and
// tracks process-wide run state: at most one run is in flight, whether it
// was started by the clock or by an operator.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron"

	"github.com/kendricksin/feed-scanner/internal/pipeline"
)

// ErrRunInProgress is returned when a run is requested while one is active.
var ErrRunInProgress = errors.New("scheduler: a pipeline run is already in progress")

// Scheduler owns the cron timetable and the single-run gate.
type Scheduler struct {
	orch        *pipeline.Orchestrator
	cron        *cron.Cron
	departments map[string]bool
	log         *slog.Logger

	mu      sync.Mutex
	running bool
	last    *pipeline.Summary
	wg      sync.WaitGroup
}

// New creates a Scheduler that fires the orchestrator at each "HH:MM" time
// in scheduleTimes, local time. departments is the set RunNow validates
// against.
func New(orch *pipeline.Orchestrator, scheduleTimes []string, departments []string, log *slog.Logger) (*Scheduler, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Scheduler{
		orch:        orch,
		cron:        cron.New(),
		departments: make(map[string]bool, len(departments)),
		log:         log.With("component", "scheduler"),
	}
	for _, d := range departments {
		s.departments[d] = true
	}

	for _, at := range scheduleTimes {
		spec, err := cronSpec(at)
		if err != nil {
			return nil, err
		}
		if err := s.cron.AddFunc(spec, s.runScheduled); err != nil {
			return nil, fmt.Errorf("scheduler: add %q: %w", at, err)
		}
	}
	return s, nil
}

// Start begins firing scheduled runs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", "next_run", s.NextRun())
}

// Stop suppresses future scheduled runs and waits for an in-flight run to
// finish. Departments already running are not cancelled.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

// ValidateDepartments rejects any department id outside the configured set.
// An empty list is valid and means all configured departments.
func (s *Scheduler) ValidateDepartments(deptIDs []string) error {
	for _, d := range deptIDs {
		if !s.departments[d] {
			return fmt.Errorf("scheduler: unknown department %q", d)
		}
	}
	return nil
}

// RunNow executes a pipeline run synchronously for the given departments
// (all configured departments when empty). It rejects unknown departments
// and refuses to overlap an active run.
func (s *Scheduler) RunNow(ctx context.Context, deptIDs []string) (*pipeline.Summary, error) {
	if err := s.ValidateDepartments(deptIDs); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrRunInProgress
	}
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		s.wg.Done()
	}()

	summary := s.orch.Run(ctx, deptIDs)

	s.mu.Lock()
	s.last = summary
	s.mu.Unlock()
	return summary, nil
}

// Running reports whether a run is in flight.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastSummary returns the most recent run summary, nil before the first run.
func (s *Scheduler) LastSummary() *pipeline.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// NextRun returns the earliest upcoming scheduled fire time, zero when the
// scheduler is not started or has no entries.
func (s *Scheduler) NextRun() time.Time {
	var next time.Time
	for _, e := range s.cron.Entries() {
		if e.Next.IsZero() {
			continue
		}
		if next.IsZero() || e.Next.Before(next) {
			next = e.Next
		}
	}
	return next
}

func (s *Scheduler) runScheduled() {
	summary, err := s.RunNow(context.Background(), nil)
	if err != nil {
		s.log.Warn("scheduled run not started", "error", err)
		return
	}
	s.log.Info("scheduled run finished", "run_id", summary.RunID, "status", summary.Status)
}

// cronSpec converts "HH:MM" to a seconds-first cron expression.
func cronSpec(at string) (string, error) {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return "", fmt.Errorf("scheduler: bad schedule time %q (want HH:MM): %w", at, err)
	}
	return fmt.Sprintf("0 %d %d * * *", t.Minute(), t.Hour()), nil
}

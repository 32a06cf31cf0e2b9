package scheduler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kendricksin/feed-scanner/internal/pipeline"
	"github.com/kendricksin/feed-scanner/internal/scheduler"
)

type stubStage struct {
	name string
	run  func(ctx context.Context, deptID string) (*pipeline.StageResult, error)
}

func (s *stubStage) Name() string { return s.name }
func (s *stubStage) Run(ctx context.Context, deptID string) (*pipeline.StageResult, error) {
	return s.run(ctx, deptID)
}

func newOrchestrator(run func(ctx context.Context, deptID string) (*pipeline.StageResult, error)) *pipeline.Orchestrator {
	stage := &stubStage{name: "feed", run: run}
	return pipeline.NewOrchestrator([]pipeline.Stage{stage}, []string{"0307"}, nil)
}

func instantOrchestrator() *pipeline.Orchestrator {
	return newOrchestrator(func(ctx context.Context, deptID string) (*pipeline.StageResult, error) {
		return &pipeline.StageResult{Status: pipeline.StageCompleted}, nil
	})
}

func TestRunNow(t *testing.T) {
	s, err := scheduler.New(instantOrchestrator(), nil, []string{"0307"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	summary, err := s.RunNow(context.Background(), []string{"0307"})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Status != pipeline.StageCompleted {
		t.Errorf("status = %q", summary.Status)
	}
	if s.LastSummary() != summary {
		t.Error("LastSummary should return the finished run")
	}
	if s.Running() {
		t.Error("run flag must clear after a synchronous run")
	}
}

func TestRunNowRejectsUnknownDepartment(t *testing.T) {
	s, err := scheduler.New(instantOrchestrator(), nil, []string{"0307"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.RunNow(context.Background(), []string{"9999"}); err == nil {
		t.Fatal("expected error for unknown department")
	}
}

func TestRunNowRejectsOverlap(t *testing.T) {
	// WHAT: A second RunNow while one is active returns ErrRunInProgress.
	// WHY: Two concurrent runs would double-process the same pending rows.
	release := make(chan struct{})
	started := make(chan struct{})
	orch := newOrchestrator(func(ctx context.Context, deptID string) (*pipeline.StageResult, error) {
		close(started)
		<-release
		return &pipeline.StageResult{Status: pipeline.StageCompleted}, nil
	})

	s, err := scheduler.New(orch, nil, []string{"0307"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := s.RunNow(context.Background(), nil); err != nil {
			t.Errorf("first run failed: %v", err)
		}
	}()

	<-started
	if !s.Running() {
		t.Error("Running() should report the in-flight run")
	}
	if _, err := s.RunNow(context.Background(), nil); !errors.Is(err, scheduler.ErrRunInProgress) {
		t.Errorf("overlapping run error = %v, want ErrRunInProgress", err)
	}

	close(release)
	<-done
}

func TestNextRunAfterStart(t *testing.T) {
	s, err := scheduler.New(instantOrchestrator(), []string{"08:30", "17:30"}, []string{"0307"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Start()
	defer s.Stop()

	next := s.NextRun()
	if next.IsZero() {
		t.Fatal("expected a next fire time after Start")
	}
	if next.Before(time.Now().Add(-time.Minute)) {
		t.Errorf("next fire time %v is in the past", next)
	}
}

func TestNewRejectsBadScheduleTime(t *testing.T) {
	if _, err := scheduler.New(instantOrchestrator(), []string{"25:99"}, []string{"0307"}, nil); err == nil {
		t.Fatal("expected error for invalid schedule time")
	}
	if _, err := scheduler.New(instantOrchestrator(), []string{"0830"}, []string{"0307"}, nil); err == nil {
		t.Fatal("expected error for malformed schedule time")
	}
}

func TestStopWaitsForInflightRun(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	orch := newOrchestrator(func(ctx context.Context, deptID string) (*pipeline.StageResult, error) {
		close(started)
		<-release
		return &pipeline.StageResult{Status: pipeline.StageCompleted}, nil
	})

	s, err := scheduler.New(orch, nil, []string{"0307"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		s.RunNow(context.Background(), nil)
	}()
	<-started

	stopDone := make(chan struct{})
	go func() {
		defer close(stopDone)
		s.Stop()
	}()

	select {
	case <-stopDone:
		t.Fatal("Stop returned while a run was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-runDone
	select {
	case <-stopDone:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the run finished")
	}
}

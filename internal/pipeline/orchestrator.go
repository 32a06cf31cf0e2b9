package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
)

// Summary is the outcome of one orchestrated run across departments.
type Summary struct {
	RunID       string                    `json:"run_id"`
	Status      string                    `json:"status"`
	Departments map[string][]*StageResult `json:"departments"`
	Totals      map[string]map[string]int `json:"totals"`
	StartedAt   time.Time                 `json:"started_at"`
	EndedAt     time.Time                 `json:"ended_at"`
	ElapsedSec  float64                   `json:"elapsed_seconds"`
}

// Orchestrator runs the stage sequence for each department concurrently.
// Departments are isolated: a failure in one never touches another's run.
type Orchestrator struct {
	stages      []Stage
	departments []string
	log         *slog.Logger
}

// NewOrchestrator creates an orchestrator. stages run in order within each
// department; departments is the default set when Run gets none.
func NewOrchestrator(stages []Stage, departments []string, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{stages: stages, departments: departments, log: log.With("component", "orchestrator")}
}

// Run executes all stages for the given departments (default set when
// empty), one goroutine per department. Within a department later stages are
// skipped once a stage errors; a skipped feed (soft failure) does not stop
// document processing.
func (o *Orchestrator) Run(ctx context.Context, deptIDs []string) *Summary {
	if len(deptIDs) == 0 {
		deptIDs = o.departments
	}

	summary := &Summary{
		RunID:       ksuid.New().String(),
		Departments: make(map[string][]*StageResult, len(deptIDs)),
		Totals:      make(map[string]map[string]int),
		StartedAt:   time.Now(),
	}
	log := o.log.With("run_id", summary.RunID)
	log.Info("run started", "departments", deptIDs)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, deptID := range deptIDs {
		wg.Add(1)
		go func(deptID string) {
			defer wg.Done()
			results := o.runDepartment(ctx, log, deptID)
			mu.Lock()
			summary.Departments[deptID] = results
			mu.Unlock()
		}(deptID)
	}
	wg.Wait()

	summary.EndedAt = time.Now()
	summary.ElapsedSec = summary.EndedAt.Sub(summary.StartedAt).Seconds()
	summary.Status = StageCompleted
	for _, results := range summary.Departments {
		for _, r := range results {
			if r.Status == StageFailed {
				summary.Status = StageFailed
			}
			for k, v := range r.Counts {
				if summary.Totals[r.Stage] == nil {
					summary.Totals[r.Stage] = make(map[string]int)
				}
				summary.Totals[r.Stage][k] += v
			}
		}
	}

	log.Info("run finished",
		"status", summary.Status,
		"elapsed_seconds", summary.ElapsedSec)
	return summary
}

func (o *Orchestrator) runDepartment(ctx context.Context, log *slog.Logger, deptID string) []*StageResult {
	results := make([]*StageResult, 0, len(o.stages))
	for _, s := range o.stages {
		res, err := runStage(ctx, s, deptID)
		results = append(results, res)
		if err != nil {
			log.Error("stage failed, remaining stages skipped",
				"dept_id", deptID, "stage", s.Name(), "error", err)
			break
		}
	}
	return results
}

// Package pipeline runs the two-stage ingestion for each department: feed
// polling (discover announcements) followed by document processing (acquire,
// extract, persist enrichment). An Orchestrator fans the stage sequence out
// across departments.
package pipeline

import (
	"context"
	"time"
)

// Stage statuses.
const (
	StageCompleted = "completed"
	StageFailed    = "failed"
	StageSkipped   = "skipped"
)

// Stage is one unit of per-department work.
type Stage interface {
	Name() string
	Run(ctx context.Context, deptID string) (*StageResult, error)
}

// StageResult captures the outcome of one stage run for one department.
type StageResult struct {
	Stage     string         `json:"stage"`
	DeptID    string         `json:"dept_id"`
	Status    string         `json:"status"`
	Counts    map[string]int `json:"counts,omitempty"`
	Note      string         `json:"note,omitempty"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   time.Time      `json:"ended_at"`
}

// Duration is the stage's wall-clock run time.
func (r *StageResult) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// runStage executes a stage with timing. A stage error is converted into a
// failed StageResult so the summary always has an entry per attempted stage.
func runStage(ctx context.Context, s Stage, deptID string) (*StageResult, error) {
	started := time.Now()
	res, err := s.Run(ctx, deptID)
	if res == nil {
		res = &StageResult{Stage: s.Name(), DeptID: deptID}
	}
	res.Stage = s.Name()
	res.DeptID = deptID
	res.StartedAt = started
	res.EndedAt = time.Now()
	if err != nil {
		res.Status = StageFailed
		if res.Note == "" {
			res.Note = err.Error()
		}
	} else if res.Status == "" {
		res.Status = StageCompleted
	}
	return res, err
}

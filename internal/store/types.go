// Package store is the data access layer for procurement announcements.
//
// It owns the schema, all row-to-struct conversion, and the write
// serialization discipline: every mutation passes through one in-process
// writer gate and is retried on SQLITE_BUSY with a bounded backoff policy.
// No other package parses raw rows.
package store

import "time"

// Announcement statuses. "processing" is accepted on read for statistics
// over historical data but is never written by this codebase: in-flight work
// is tracked by the run that claimed it, not durably.
const (
	StatusPending    = "pending"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusProcessing = "processing"
)

// Announcement is one procurement notice, keyed by ProjectID.
// Enrichment fields are nil until a document extraction succeeds; a failed
// extraction leaves them nil and sets Status to failed.
type Announcement struct {
	ID          int64  `json:"id"`
	ProjectID   string `json:"project_id"`
	DeptID      string `json:"dept_id"`
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description"`
	Status      string `json:"status"`

	BudgetAmount   *float64   `json:"budget_amount,omitempty"`
	Quantity       *int64     `json:"quantity,omitempty"`
	DurationYears  *int64     `json:"duration_years,omitempty"`
	DurationMonths *int64     `json:"duration_months,omitempty"`
	SubmissionDate *time.Time `json:"submission_date,omitempty"`
	ContactPhone   *string    `json:"contact_phone,omitempty"`
	ContactEmail   *string    `json:"contact_email,omitempty"`
	DocumentPath   *string    `json:"document_path,omitempty"`

	CreatedAt int64 `json:"created_at"` // unix milli, immutable after insert
	UpdatedAt int64 `json:"updated_at"` // unix milli, bumped on every mutation
}

// Enrichment carries the fields extracted from an announcement's document.
// Nil members are stored as NULL, never as zero.
type Enrichment struct {
	BudgetAmount   *float64
	Quantity       *int64
	DurationYears  *int64
	DurationMonths *int64
	SubmissionDate *time.Time
	ContactPhone   *string
	ContactEmail   *string
	DocumentPath   *string
}

// Filter narrows List queries. Zero values mean "no constraint".
type Filter struct {
	DeptID string
	Status string
	Days   int // created within the last N days
	Limit  int
}

// Stats aggregates announcement counters over a creation-time window.
type Stats struct {
	Total       int `json:"total"`
	Pending     int `json:"pending"`
	Processing  int `json:"processing"`
	Completed   int `json:"completed"`
	Failed      int `json:"failed"`
	Departments int `json:"departments"`
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/kendricksin/feed-scanner/internal/dbopen"
)

// ErrNotFound is returned by targeted updates whose project id matches no row.
var ErrNotFound = errors.New("store: announcement not found")

const dateLayout = "2006-01-02"

const announcementCols = `id, project_id, dept_id, title, link, description, status,
	budget_amount, quantity, duration_years, duration_months, submission_date,
	contact_phone, contact_email, document_path, created_at, updated_at`

// Store wraps the announcements database.
//
// All writes funnel through a single in-process mutex, because the embedded
// store rejects concurrent writers rather than queuing them. The retry policy
// covers contention from other connections (a second process, a CLI tool).
// Reads are unserialized; read-committed visibility is acceptable here.
type Store struct {
	db    *sql.DB
	mu    sync.Mutex
	retry dbopen.RetryPolicy
}

// New creates a Store over an already-opened database using the default
// retry policy.
func New(db *sql.DB) *Store {
	return NewWithRetry(db, dbopen.DefaultRetry)
}

// NewWithRetry creates a Store with an explicit write-retry policy.
func NewWithRetry(db *sql.DB, policy dbopen.RetryPolicy) *Store {
	return &Store{db: db, retry: policy}
}

// DB exposes the underlying handle for read-only collaborators.
func (s *Store) DB() *sql.DB { return s.db }

// GetByProjectID returns the announcement with the given project id, or
// (nil, nil) when absent.
func (s *Store) GetByProjectID(ctx context.Context, projectID string) (*Announcement, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+announcementCols+` FROM announcements WHERE project_id = ?`, projectID)
	a, err := scanAnnouncement(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Upsert inserts the announcement if its project id is unseen, otherwise
// refreshes the provenance fields (dept, title, link, description) of the
// existing row. Status and enrichment are deliberately untouched on update:
// re-sighting an announcement in a feed never rewinds its lifecycle.
// CreatedAt is preserved; UpdatedAt is refreshed. Returns the re-read row so
// callers observe storage-assigned identity and timestamps.
func (s *Store) Upsert(ctx context.Context, a *Announcement) (*Announcement, error) {
	if a.ProjectID == "" {
		return nil, fmt.Errorf("store: upsert: empty project_id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	existing, err := s.GetByProjectID(ctx, a.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("store: upsert lookup %s: %w", a.ProjectID, err)
	}

	if existing == nil {
		status := a.Status
		if status == "" {
			status = StatusPending
		}
		_, err = s.retry.Exec(ctx, s.db,
			`INSERT INTO announcements
			(project_id, dept_id, title, link, description, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ProjectID, a.DeptID, a.Title, a.Link, a.Description, status, now, now)
		if err != nil {
			return nil, fmt.Errorf("store: insert %s: %w", a.ProjectID, err)
		}
	} else {
		_, err = s.retry.Exec(ctx, s.db,
			`UPDATE announcements
			SET dept_id = ?, title = ?, link = ?, description = ?, updated_at = ?
			WHERE project_id = ?`,
			a.DeptID, a.Title, a.Link, a.Description, now, a.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("store: update %s: %w", a.ProjectID, err)
		}
	}

	return s.GetByProjectID(ctx, a.ProjectID)
}

// ListPendingEnrichment returns announcements awaiting document processing,
// oldest first for fair pickup. deptID "" lists across all departments.
func (s *Store) ListPendingEnrichment(ctx context.Context, deptID string) ([]*Announcement, error) {
	q := sq.Select(announcementCols).
		From("announcements").
		Where(sq.Eq{"status": StatusPending}).
		OrderBy("created_at ASC")
	if deptID != "" {
		q = q.Where(sq.Eq{"dept_id": deptID})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build pending query: %w", err)
	}
	return s.queryAnnouncements(ctx, query, args...)
}

// UpdateStatus sets the status for a project and refreshes updated_at.
func (s *Store) UpdateStatus(ctx context.Context, projectID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.retry.Exec(ctx, s.db,
		`UPDATE announcements SET status = ?, updated_at = ? WHERE project_id = ?`,
		status, time.Now().UnixMilli(), projectID)
	if err != nil {
		return fmt.Errorf("store: update status %s: %w", projectID, err)
	}
	return requireRow(res, projectID)
}

// UpdateEnrichment writes one coherent extraction result and the resulting
// status in a single statement. Absent fields are stored as NULL.
func (s *Store) UpdateEnrichment(ctx context.Context, projectID string, e Enrichment, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var submission any
	if e.SubmissionDate != nil {
		submission = e.SubmissionDate.Format(dateLayout)
	}

	res, err := s.retry.Exec(ctx, s.db,
		`UPDATE announcements
		SET budget_amount = ?, quantity = ?, duration_years = ?, duration_months = ?,
		    submission_date = ?, contact_phone = ?, contact_email = ?, document_path = ?,
		    status = ?, updated_at = ?
		WHERE project_id = ?`,
		nullable(e.BudgetAmount), nullable(e.Quantity),
		nullable(e.DurationYears), nullable(e.DurationMonths),
		submission, nullable(e.ContactPhone), nullable(e.ContactEmail),
		nullable(e.DocumentPath),
		status, time.Now().UnixMilli(), projectID)
	if err != nil {
		return fmt.Errorf("store: update enrichment %s: %w", projectID, err)
	}
	return requireRow(res, projectID)
}

// requireRow turns a zero-row targeted update into ErrNotFound so a mistyped
// project id cannot pass for a successful write.
func requireRow(res sql.Result, projectID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected %s: %w", projectID, err)
	}
	if n == 0 {
		return fmt.Errorf("store: %s: %w", projectID, ErrNotFound)
	}
	return nil
}

// List returns announcements matching the filter, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]*Announcement, error) {
	q := sq.Select(announcementCols).
		From("announcements").
		OrderBy("created_at DESC")

	if f.DeptID != "" {
		q = q.Where(sq.Eq{"dept_id": f.DeptID})
	}
	if f.Status != "" {
		q = q.Where(sq.Eq{"status": f.Status})
	}
	if f.Days > 0 {
		cutoff := time.Now().AddDate(0, 0, -f.Days).UnixMilli()
		q = q.Where(sq.GtOrEq{"created_at": cutoff})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build list query: %w", err)
	}
	return s.queryAnnouncements(ctx, query, args...)
}

// Statistics aggregates per-status counts and distinct departments over a
// creation-time window of windowDays days.
func (s *Store) Statistics(ctx context.Context, windowDays int) (*Stats, error) {
	if windowDays <= 0 {
		windowDays = 7
	}
	cutoff := time.Now().AddDate(0, 0, -windowDays).UnixMilli()

	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COUNT(DISTINCT dept_id)
		FROM announcements
		WHERE created_at >= ?`,
		StatusPending, StatusProcessing, StatusCompleted, StatusFailed, cutoff).
		Scan(&st.Total, &st.Pending, &st.Processing, &st.Completed, &st.Failed, &st.Departments)
	if err != nil {
		return nil, fmt.Errorf("store: statistics: %w", err)
	}
	return &st, nil
}

func (s *Store) queryAnnouncements(ctx context.Context, query string, args ...any) ([]*Announcement, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Announcement
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// scanner matches both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAnnouncement(row scanner) (*Announcement, error) {
	var (
		a          Announcement
		budget     sql.NullFloat64
		quantity   sql.NullInt64
		years      sql.NullInt64
		months     sql.NullInt64
		submission sql.NullString
		phone      sql.NullString
		email      sql.NullString
		docPath    sql.NullString
	)

	err := row.Scan(
		&a.ID, &a.ProjectID, &a.DeptID, &a.Title, &a.Link, &a.Description, &a.Status,
		&budget, &quantity, &years, &months, &submission,
		&phone, &email, &docPath, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan announcement: %w", err)
	}

	if budget.Valid {
		a.BudgetAmount = &budget.Float64
	}
	if quantity.Valid {
		a.Quantity = &quantity.Int64
	}
	if years.Valid {
		a.DurationYears = &years.Int64
	}
	if months.Valid {
		a.DurationMonths = &months.Int64
	}
	if submission.Valid {
		if d, perr := time.Parse(dateLayout, submission.String); perr == nil {
			a.SubmissionDate = &d
		}
	}
	if phone.Valid {
		a.ContactPhone = &phone.String
	}
	if email.Valid {
		a.ContactEmail = &email.String
	}
	if docPath.Valid {
		a.DocumentPath = &docPath.String
	}
	return &a, nil
}

// nullable converts a typed pointer to a driver value, mapping nil to NULL.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

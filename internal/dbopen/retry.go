package dbopen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// RetryPolicy bounds in-process retries of writes rejected with SQLITE_BUSY.
// The embedded store refuses concurrent writers instead of queuing them, so
// a bounded backoff loop stands in for a write queue.
type RetryPolicy struct {
	MaxAttempts int           // total attempts including the first
	BaseDelay   time.Duration // delay before the second attempt
	Multiplier  int           // delay factor applied per subsequent attempt
}

// DefaultRetry is the policy used by the announcement store: three attempts,
// 100ms base delay, doubling.
var DefaultRetry = RetryPolicy{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, Multiplier: 2}

func (p RetryPolicy) normalize() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultRetry.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultRetry.BaseDelay
	}
	if p.Multiplier <= 0 {
		p.Multiplier = DefaultRetry.Multiplier
	}
	return p
}

// IsBusy reports whether err indicates an SQLite BUSY condition.
// It checks for SQLITE_BUSY, "database is locked", and "database table is locked".
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// Do runs fn, retrying on BUSY errors according to the policy.
// A non-BUSY error returns immediately; exhausting the attempts returns the
// last BUSY error wrapped.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	p = p.normalize()
	delay := p.BaseDelay
	var err error
	for i := 0; i < p.MaxAttempts; i++ {
		if i > 0 {
			if serr := sleepCtx(ctx, delay); serr != nil {
				return fmt.Errorf("dbopen: context cancelled during retry: %w", serr)
			}
			delay *= time.Duration(p.Multiplier)
		}
		err = fn()
		if err == nil {
			return nil
		}
		if !IsBusy(err) {
			return err
		}
	}
	return fmt.Errorf("dbopen: retries exhausted after %d attempts: %w", p.MaxAttempts, err)
}

// Exec executes a statement with BUSY retry under the policy.
func (p RetryPolicy) Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	var result sql.Result
	err := p.Do(ctx, func() error {
		var execErr error
		result, execErr = db.ExecContext(ctx, query, args...)
		return execErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RunTx executes fn inside a transaction with BUSY retry under the policy.
func (p RetryPolicy) RunTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	return p.Do(ctx, func() error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("dbopen: begin tx: %w", err)
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("dbopen: commit: %w", err)
		}
		return nil
	})
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

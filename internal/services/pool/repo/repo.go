// Package repo persists pool entries with lease-protected state transitions
package repo

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"time"

	"dragoman/internal/core/modes"
	"dragoman/internal/modkit/repokit"
	"dragoman/internal/services/pool/domain"
)

// Repo is the pool persistence surface
type Repo interface {
	Upsert(ctx context.Context, e domain.Entry) error
	Delete(ctx context.Context, bookingID int64) error

	// MarkReady flips pending entries whose readiness moment or deadline
	// override window has arrived; returns how many moved
	MarkReady(ctx context.Context, now time.Time, overrideWindow time.Duration) (int, error)

	// ReclaimExpired returns processing entries with expired leases to ready
	ReclaimExpired(ctx context.Context, now time.Time) (int, error)

	// Requeue returns failed entries with attempts left to ready once their
	// backoff delay has elapsed
	Requeue(ctx context.Context, now time.Time, maxAttempts int, baseDelay time.Duration) (int, error)

	// Lease claims up to limit ready rows for owner under SKIP LOCKED
	Lease(ctx context.Context, owner string, limit int, ttl time.Duration, now time.Time) ([]domain.Entry, error)

	// ToPending releases a leased entry without counting an attempt
	ToPending(ctx context.Context, bookingID int64, reason string) error

	// ToFailed marks a leased entry failed and counts the attempt
	ToFailed(ctx context.Context, bookingID int64, reason string) error

	ListState(ctx context.Context, state domain.State) ([]domain.Entry, error)
	ListExhausted(ctx context.Context, maxAttempts int) ([]domain.Entry, error)
	Stats(ctx context.Context, now time.Time) (domain.Stats, error)
}

type (
	// PG is a Postgres implementation of the pool repo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a binder for the Postgres implementation
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind attaches a Queryer to the Postgres implementation
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

func toInterval(d time.Duration) string {
	return fmt.Sprintf("%d seconds", int64(d/time.Second))
}

// Upsert inserts the entry, ignoring re-adds of a booking already pooled
func (r *queries) Upsert(ctx context.Context, e domain.Entry) error {
	const sqlq = `
		INSERT INTO pool_entries (
			booking_id, meeting_type, time_start, time_end, mode,
			threshold_days, ready_at, deadline_time, entered_at, priority,
			batch_id, attempts, state, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, $12, now())
		ON CONFLICT (booking_id) DO NOTHING
	`
	_, err := r.q.Exec(ctx, sqlq,
		e.BookingID, e.MeetingType.String(), e.TimeStart, e.TimeEnd, e.Mode.String(),
		e.ThresholdDays, e.ReadyAt, e.DeadlineTime, e.EnteredAt, e.Priority,
		e.BatchID, string(e.State),
	)
	return err
}

// Delete removes the entry after a terminal decision
func (r *queries) Delete(ctx context.Context, bookingID int64) error {
	const sqlq = `DELETE FROM pool_entries WHERE booking_id = $1`
	_, err := r.q.Exec(ctx, sqlq, bookingID)
	return err
}

// MarkReady flips due pending entries to ready
func (r *queries) MarkReady(ctx context.Context, now time.Time, overrideWindow time.Duration) (int, error) {
	const sqlq = `
		UPDATE pool_entries
		   SET state = 'ready', updated_at = now()
		 WHERE state = 'pending'
		   AND (ready_at <= $1 OR time_start <= $1 + ($2)::interval)
	`
	ct, err := r.q.Exec(ctx, sqlq, now, toInterval(overrideWindow))
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}

// ReclaimExpired returns processing rows with expired leases to ready
func (r *queries) ReclaimExpired(ctx context.Context, now time.Time) (int, error) {
	const sqlq = `
		UPDATE pool_entries
		   SET state = 'ready', lease_owner = NULL, lease_expires_at = NULL,
		       updated_at = now()
		 WHERE state = 'processing'
		   AND lease_expires_at <= $1
	`
	ct, err := r.q.Exec(ctx, sqlq, now)
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}

// Requeue moves failed rows back to ready once their exponential delay has
// elapsed; rows out of attempts stay failed for escalation
func (r *queries) Requeue(ctx context.Context, now time.Time, maxAttempts int, baseDelay time.Duration) (int, error) {
	const sqlq = `
		UPDATE pool_entries
		   SET state = 'ready', updated_at = now()
		 WHERE state = 'failed'
		   AND attempts < $2
		   AND updated_at + ($3)::interval * power(2, greatest(attempts - 1, 0)) <= $1
	`
	ct, err := r.q.Exec(ctx, sqlq, now, maxAttempts, toInterval(baseDelay))
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}

const entryCols = `
	booking_id, meeting_type, time_start, time_end, mode,
	threshold_days, ready_at, deadline_time, entered_at, priority,
	batch_id, attempts, state,
	COALESCE(lease_owner, ''), lease_expires_at, COALESCE(last_error, '')`

func scanEntry(row repokit.Row, e *domain.Entry) error {
	var mt, mode, state string
	if err := row.Scan(
		&e.BookingID, &mt, &e.TimeStart, &e.TimeEnd, &mode,
		&e.ThresholdDays, &e.ReadyAt, &e.DeadlineTime, &e.EnteredAt, &e.Priority,
		&e.BatchID, &e.Attempts, &state,
		&e.LeaseOwner, &e.LeaseExpires, &e.LastError,
	); err != nil {
		return err
	}
	e.MeetingType = modes.MeetingType(mt)
	e.Mode = modes.Mode(mode)
	e.State = domain.State(state)
	return nil
}

// Lease claims up to limit ready rows for owner, highest priority and
// oldest deadline first, skipping rows other workers hold locked
func (r *queries) Lease(
	ctx context.Context,
	owner string,
	limit int,
	ttl time.Duration,
	now time.Time,
) ([]domain.Entry, error) {
	const sqlq = `
		WITH due AS (
			SELECT booking_id
			  FROM pool_entries
			 WHERE state = 'ready'
			 ORDER BY priority ASC, deadline_time ASC, booking_id ASC
			 LIMIT $1
			 FOR UPDATE SKIP LOCKED
		), claimed AS (
			UPDATE pool_entries p
			   SET state = 'processing',
			       lease_owner = $2,
			       lease_expires_at = $4 + ($3)::interval,
			       updated_at = now()
			 WHERE p.booking_id IN (SELECT booking_id FROM due)
			RETURNING ` + entryCols + `
		)
		SELECT * FROM claimed ORDER BY priority ASC, deadline_time ASC, booking_id ASC
	`
	rows, err := r.q.Query(ctx, sqlq, limit, owner, toInterval(ttl), now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Entry
	for rows.Next() {
		var e domain.Entry
		if err := scanEntry(rows, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ToPending releases a leased entry without burning an attempt
func (r *queries) ToPending(ctx context.Context, bookingID int64, reason string) error {
	const sqlq = `
		UPDATE pool_entries
		   SET state = 'pending', lease_owner = NULL, lease_expires_at = NULL,
		       last_error = NULLIF($2, ''), updated_at = now()
		 WHERE booking_id = $1
	`
	_, err := r.q.Exec(ctx, sqlq, bookingID, reason)
	return err
}

// ToFailed marks a leased entry failed and counts the attempt
func (r *queries) ToFailed(ctx context.Context, bookingID int64, reason string) error {
	const sqlq = `
		UPDATE pool_entries
		   SET state = 'failed', attempts = attempts + 1,
		       lease_owner = NULL, lease_expires_at = NULL,
		       last_error = NULLIF($2, ''), updated_at = now()
		 WHERE booking_id = $1
	`
	_, err := r.q.Exec(ctx, sqlq, bookingID, reason)
	return err
}

// ListState returns every entry in the given state, deadline-ascending
func (r *queries) ListState(ctx context.Context, state domain.State) ([]domain.Entry, error) {
	const sqlq = `
		SELECT ` + entryCols + `
		  FROM pool_entries
		 WHERE state = $1
		 ORDER BY priority ASC, deadline_time ASC, booking_id ASC
	`
	return r.list(ctx, sqlq, string(state))
}

// ListExhausted returns failed entries out of retry attempts
func (r *queries) ListExhausted(ctx context.Context, maxAttempts int) ([]domain.Entry, error) {
	const sqlq = `
		SELECT ` + entryCols + `
		  FROM pool_entries
		 WHERE state = 'failed'
		   AND attempts >= $1
		 ORDER BY deadline_time ASC, booking_id ASC
	`
	return r.list(ctx, sqlq, maxAttempts)
}

func (r *queries) list(ctx context.Context, sqlq string, args ...any) ([]domain.Entry, error) {
	rows, err := r.q.Query(ctx, sqlq, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Entry
	for rows.Next() {
		var e domain.Entry
		if err := scanEntry(rows, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats aggregates per-state counts plus readiness ages
func (r *queries) Stats(ctx context.Context, now time.Time) (domain.Stats, error) {
	const sqlq = `
		SELECT
			COUNT(*) FILTER (WHERE state = 'pending'),
			COUNT(*) FILTER (WHERE state = 'ready'),
			COUNT(*) FILTER (WHERE state = 'processing'),
			COUNT(*) FILTER (WHERE state = 'failed'),
			MIN(updated_at) FILTER (WHERE state = 'ready'),
			MIN(ready_at) FILTER (WHERE state = 'pending')
		  FROM pool_entries
	`
	var (
		s           domain.Stats
		oldestReady *time.Time
		nextReady   *time.Time
	)
	err := r.q.QueryRow(ctx, sqlq).Scan(
		&s.Pending, &s.Ready, &s.Processing, &s.Failed, &oldestReady, &nextReady,
	)
	if err != nil && !errors.Is(err, stdsql.ErrNoRows) {
		return domain.Stats{}, err
	}
	if oldestReady != nil {
		s.OldestReadyAge = now.Sub(*oldestReady)
	}
	s.NextReadyAt = nextReady
	return s, nil
}

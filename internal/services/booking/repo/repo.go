// Package repo provides the booking repository over Postgres
package repo

import (
	"context"
	stdsql "database/sql"
	"errors"
	"time"

	"dragoman/internal/core/modes"
	"dragoman/internal/modkit/repokit"
	perr "dragoman/internal/platform/errors"
	"dragoman/internal/services/booking/domain"
)

// Repo is the booking persistence surface. Lock and WriteAssignment are
// meant to run inside a transaction alongside the overlap re-check
type Repo interface {
	Get(ctx context.Context, id int64) (domain.Booking, error)
	ActiveInterpreters(ctx context.Context) ([]domain.Interpreter, error)
	Overlapping(ctx context.Context, empCode string, from, to time.Time, statuses []domain.Status) ([]domain.Conflict, error)
	ApprovedInWindow(ctx context.Context, from, to time.Time) ([]domain.Booking, error)
	LastDR(ctx context.Context, q domain.DRQuery) (domain.LastDR, error)
	DaysSinceLast(ctx context.Context, empCode string, now time.Time) (float64, bool, error)
	SetStatus(ctx context.Context, id int64, status domain.Status) error

	// Roster snapshot bookkeeping for the dynamic-pool adjuster
	RosterSnapshot(ctx context.Context) ([]string, error)
	RecordRoster(ctx context.Context, empCodes []string, at time.Time) error
	PurgeDeparted(ctx context.Context, empCodes []string) error

	// LockInterpreter takes the per-interpreter row lock serialising
	// conflicting writers for the rest of the transaction
	LockInterpreter(ctx context.Context, empCode string) error

	// WriteAssignment stamps the interpreter and approves the booking.
	// Guarded on the waiting status: a booking approved or cancelled by a
	// concurrent writer is left untouched and stamped=false comes back
	WriteAssignment(ctx context.Context, id int64, empCode string) (bool, error)
}

type (
	// PG is a Postgres implementation of the booking repo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a binder for the Postgres implementation
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind attaches a Queryer to the Postgres implementation
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

const bookingCols = `
	id, meeting_type, COALESCE(dr_type, ''), time_start, time_end,
	room, owner_id, created_at, status, COALESCE(interpreter_emp_code, '')`

func scanBooking(row repokit.Row, b *domain.Booking) error {
	var mt, status string
	if err := row.Scan(
		&b.ID, &mt, &b.DRType, &b.TimeStart, &b.TimeEnd,
		&b.Room, &b.OwnerID, &b.CreatedAt, &status, &b.Interpreter,
	); err != nil {
		return err
	}
	b.MeetingType = modes.MeetingType(mt)
	b.Status = domain.Status(status)
	return nil
}

// Get fetches one booking by id
func (r *queries) Get(ctx context.Context, id int64) (domain.Booking, error) {
	const sqlq = `SELECT` + bookingCols + ` FROM bookings WHERE id = $1`

	var b domain.Booking
	if err := scanBooking(r.q.QueryRow(ctx, sqlq, id), &b); err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return domain.Booking{}, perr.NotFoundf("booking %d", id)
		}
		return domain.Booking{}, err
	}
	return b, nil
}

// SetStatus transitions a booking's lifecycle state
func (r *queries) SetStatus(ctx context.Context, id int64, status domain.Status) error {
	const sqlq = `UPDATE bookings SET status = $2 WHERE id = $1`
	ct, err := r.q.Exec(ctx, sqlq, id, string(status))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return perr.NotFoundf("booking %d", id)
	}
	return nil
}

// LockInterpreter takes the interpreter row lock for the transaction
func (r *queries) LockInterpreter(ctx context.Context, empCode string) error {
	const sqlq = `SELECT emp_code FROM interpreters WHERE emp_code = $1 FOR UPDATE`
	var code string
	if err := r.q.QueryRow(ctx, sqlq, empCode).Scan(&code); err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return perr.NotFoundf("interpreter %s", empCode)
		}
		return err
	}
	return nil
}

// WriteAssignment stamps the interpreter and approves the booking. The
// status guard keeps approved rows immutable: losing the race surfaces as
// stamped=false, never as a silent overwrite
func (r *queries) WriteAssignment(ctx context.Context, id int64, empCode string) (bool, error) {
	const sqlq = `
		UPDATE bookings
		   SET interpreter_emp_code = $2,
		       status = 'approve'
		 WHERE id = $1
		   AND status = 'waiting'
	`
	ct, err := r.q.Exec(ctx, sqlq, id, empCode)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

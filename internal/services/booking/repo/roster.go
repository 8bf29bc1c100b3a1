package repo

import (
	"context"
	stdsql "database/sql"
	"errors"
	"time"

	"dragoman/internal/services/booking/domain"
)

// ActiveInterpreters lists the assignable roster
func (r *queries) ActiveInterpreters(ctx context.Context) ([]domain.Interpreter, error) {
	const sqlq = `
		SELECT emp_code, active, joined_at
		  FROM interpreters
		 WHERE active
		 ORDER BY emp_code
	`
	rows, err := r.q.Query(ctx, sqlq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Interpreter
	for rows.Next() {
		var it domain.Interpreter
		if err := rows.Scan(&it.EmpCode, &it.Active, &it.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Overlapping returns empCode's bookings crossing [from, to) in the given
// statuses, half-open on both sides
func (r *queries) Overlapping(
	ctx context.Context,
	empCode string,
	from, to time.Time,
	statuses []domain.Status,
) ([]domain.Conflict, error) {
	const sqlq = `
		SELECT id, time_start, time_end, status
		  FROM bookings
		 WHERE interpreter_emp_code = $1
		   AND status = ANY($2)
		   AND time_start < $4
		   AND time_end > $3
		 ORDER BY time_start
	`
	set := make([]string, 0, len(statuses))
	for _, s := range statuses {
		set = append(set, string(s))
	}
	rows, err := r.q.Query(ctx, sqlq, empCode, set, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Conflict
	for rows.Next() {
		var c domain.Conflict
		var status string
		if err := rows.Scan(&c.BookingID, &c.TimeStart, &c.TimeEnd, &status); err != nil {
			return nil, err
		}
		c.Status = domain.Status(status)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ApprovedInWindow returns approved bookings starting inside [from, to)
func (r *queries) ApprovedInWindow(ctx context.Context, from, to time.Time) ([]domain.Booking, error) {
	const sqlq = `
		SELECT` + bookingCols + `
		  FROM bookings
		 WHERE status = 'approve'
		   AND interpreter_emp_code IS NOT NULL
		   AND time_start >= $1
		   AND time_start < $2
		 ORDER BY time_start
	`
	rows, err := r.q.Query(ctx, sqlq, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := scanBooking(rows, &b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// RosterSnapshot lists the emp codes recorded by the previous adjuster run
func (r *queries) RosterSnapshot(ctx context.Context) ([]string, error) {
	const sqlq = `SELECT emp_code FROM roster_snapshots ORDER BY emp_code`
	rows, err := r.q.Query(ctx, sqlq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		out = append(out, code)
	}
	return out, rows.Err()
}

// RecordRoster upserts the current roster into the snapshot table
func (r *queries) RecordRoster(ctx context.Context, empCodes []string, at time.Time) error {
	const sqlq = `
		INSERT INTO roster_snapshots (emp_code, first_seen)
		SELECT unnest($1::text[]), $2
		ON CONFLICT (emp_code) DO NOTHING
	`
	_, err := r.q.Exec(ctx, sqlq, empCodes, at)
	return err
}

// PurgeDeparted drops snapshot rows for interpreters no longer on the roster
func (r *queries) PurgeDeparted(ctx context.Context, empCodes []string) error {
	if len(empCodes) == 0 {
		return nil
	}
	const sqlq = `DELETE FROM roster_snapshots WHERE emp_code = ANY($1)`
	_, err := r.q.Exec(ctx, sqlq, empCodes)
	return err
}

// DaysSinceLast reports days between now and empCode's latest approved
// booking start; ever is false when none exists
func (r *queries) DaysSinceLast(ctx context.Context, empCode string, now time.Time) (float64, bool, error) {
	const sqlq = `
		SELECT EXTRACT(EPOCH FROM ($2::timestamptz - MAX(time_start))) / 86400.0
		  FROM bookings
		 WHERE interpreter_emp_code = $1
		   AND status = 'approve'
		   AND time_start < $2
	`
	var days *float64
	if err := r.q.QueryRow(ctx, sqlq, empCode, now).Scan(&days); err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if days == nil {
		return 0, false, nil
	}
	return *days, true, nil
}

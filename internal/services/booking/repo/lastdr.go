package repo

import (
	"context"
	stdsql "database/sql"
	"errors"

	"dragoman/internal/services/booking/domain"
)

// LastDR finds the most recent DR booking starting before the query point.
// Scope narrowing and the pending-inclusion knob arrive pre-resolved on the
// query; unassigned rows never count as a previous holder
func (r *queries) LastDR(ctx context.Context, q domain.DRQuery) (domain.LastDR, error) {
	const sqlq = `
		SELECT id, interpreter_emp_code, time_start
		  FROM bookings
		 WHERE meeting_type = 'DR'
		   AND time_start < $1
		   AND interpreter_emp_code IS NOT NULL
		   AND (status = 'approve' OR ($2 AND status = 'waiting'))
		   AND ($3 = '' OR dr_type = $3)
		 ORDER BY time_start DESC
		 LIMIT 1
	`
	var last domain.LastDR
	err := r.q.QueryRow(ctx, sqlq, q.Before, q.IncludePending, q.DRType).
		Scan(&last.BookingID, &last.Interpreter, &last.TimeStart)
	if err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return domain.LastDR{}, nil
		}
		return domain.LastDR{}, err
	}
	last.Found = true
	return last, nil
}

package domain

import (
	"context"
	"time"
)

// ReaderPort is the read surface the engine gathers scoring inputs from
type ReaderPort interface {
	Get(ctx context.Context, id int64) (Booking, error)
	ActiveInterpreters(ctx context.Context) ([]Interpreter, error)

	// Overlapping returns bookings for empCode crossing [from, to) whose
	// status is in statuses (half-open overlap)
	Overlapping(ctx context.Context, empCode string, from, to time.Time, statuses []Status) ([]Conflict, error)

	// ApprovedInWindow returns approved bookings starting inside [from, to);
	// the engine folds these into per-interpreter hour totals
	ApprovedInWindow(ctx context.Context, from, to time.Time) ([]Booking, error)

	LastDR(ctx context.Context, q DRQuery) (LastDR, error)

	// DaysSinceLast reports the days between now and empCode's most recent
	// approved booking; ever is false when none exists
	DaysSinceLast(ctx context.Context, empCode string, now time.Time) (days float64, ever bool, err error)
}

// RosterPort tracks the interpreter roster snapshot between adjuster runs
type RosterPort interface {
	RosterSnapshot(ctx context.Context) ([]string, error)
	RecordRoster(ctx context.Context, empCodes []string, at time.Time) error
	PurgeDeparted(ctx context.Context, empCodes []string) error
}

// WriterPort is the narrow mutation surface the engine holds on bookings
type WriterPort interface {
	SetStatus(ctx context.Context, id int64, status Status) error

	// CommitAssignment is the single atomic write: inside one transaction it
	// serialises on the interpreter row, re-checks the half-open overlap
	// against hardBlock statuses, and stamps interpreter + approve. committed
	// is false when another writer took the slot first
	CommitAssignment(ctx context.Context, id int64, empCode string, from, to time.Time, hardBlock []Status) (committed bool, err error)
}

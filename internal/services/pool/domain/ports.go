package domain

import "context"

// ManagerPort is the pool surface the engine and admin API consume
type ManagerPort interface {
	// Add is idempotent by booking id; re-adding an existing entry is a no-op
	Add(ctx context.Context, e Entry) error

	// Remove drops the entry after a terminal decision
	Remove(ctx context.Context, bookingID int64) error

	// Lease atomically claims up to limit ready entries for owner, oldest
	// deadline first. Only the lease holder may write the terminal state
	Lease(ctx context.Context, owner string, limit int) ([]Entry, error)

	// Release returns a leased entry to pending (timeout, store trouble)
	Release(ctx context.Context, bookingID int64, reason string) error

	// Fail marks a leased entry failed and counts the attempt
	Fail(ctx context.Context, bookingID int64, reason string) error

	ListReady(ctx context.Context) ([]Entry, error)
	Stats(ctx context.Context) (Stats, error)
}

// SweeperPort advances entry states on a schedule
type SweeperPort interface {
	// Tick marks due entries ready, reclaims expired leases, requeues
	// failed entries with attempts left, and surfaces the exhausted ones
	Tick(ctx context.Context) (SweepReport, error)
}

package domain

import (
	"context"

	"dragoman/internal/core/rosterdiff"
)

// RunnerPort is the top-level engine entry
type RunnerPort interface {
	// Assign decides one booking: assigned, escalated, or pooled. Decision
	// failures surface as escalations, never as errors
	Assign(ctx context.Context, bookingID int64) Outcome
}

// DrainerPort processes due pool entries
type DrainerPort interface {
	// Drain leases ready entries and decides them, batching under BALANCE
	// mode. Returns the outcomes of this pass
	Drain(ctx context.Context) ([]Outcome, error)

	// EscalateExhausted terminally escalates pool entries whose retries
	// are spent; the sweeper feeds it from its tick report
	EscalateExhausted(ctx context.Context, bookingIDs []int64) []Outcome
}

// AdjusterPort reconciles the interpreter roster between runs
type AdjusterPort interface {
	// AdjustRoster diffs the active roster against the stored snapshot,
	// purges departed interpreters, and records the current roster.
	// Idempotent; safe before every run
	AdjustRoster(ctx context.Context) (rosterdiff.Diff, error)
}

package domain

import (
	"context"

	"dragoman/internal/core/modes"
)

// ReaderPort serves the effective policy and per-(meeting type, mode)
// scoring profiles. Implementations cache; reads are hot-path
type ReaderPort interface {
	Policy(ctx context.Context) (Policy, error)
	Resolve(ctx context.Context, mt modes.MeetingType, mode modes.Mode) (Resolved, error)
}

// WriterPort applies admin policy patches
type WriterPort interface {
	// Write validates and merges patch, bumps the generation counter, and
	// returns the sanitised row now in force
	Write(ctx context.Context, patch Patch) (Policy, error)
}

package service

import (
	"context"

	"dragoman/internal/core/rosterdiff"
	"dragoman/internal/platform/logger"
)

// AdjustRoster implements domain.AdjusterPort: diff the active roster
// against the recorded snapshot, purge departed interpreters, and record
// the roster as seen now. Idempotent
func (s *Service) AdjustRoster(ctx context.Context) (rosterdiff.Diff, error) {
	now := s.Clock.Now()

	roster, err := s.Bookings.ActiveInterpreters(ctx)
	if err != nil {
		return rosterdiff.Diff{}, err
	}
	prior, err := s.Roster.RosterSnapshot(ctx)
	if err != nil {
		return rosterdiff.Diff{}, err
	}

	p, err := s.Policy.Policy(ctx)
	if err != nil {
		return rosterdiff.Diff{}, err
	}
	windowStart := now.AddDate(0, 0, -p.FairnessWindowDays)
	approved, err := s.Bookings.ApprovedInWindow(ctx, windowStart, now)
	if err != nil {
		return rosterdiff.Diff{}, err
	}

	ids := make([]string, 0, len(roster))
	assigned := make(map[string]bool, len(roster))
	for _, it := range roster {
		ids = append(ids, it.EmpCode)
	}
	for _, b := range approved {
		assigned[b.Interpreter] = true
	}

	diff := rosterdiff.Compute(rosterdiff.Input{
		Roster:           ids,
		Snapshot:         prior,
		AssignedInWindow: assigned,
	})

	if len(diff.Departed) > 0 {
		if err := s.Roster.PurgeDeparted(ctx, diff.Departed); err != nil {
			return rosterdiff.Diff{}, err
		}
	}
	if err := s.Roster.RecordRoster(ctx, ids, now); err != nil {
		return rosterdiff.Diff{}, err
	}

	if len(diff.Newcomers) > 0 || len(diff.Departed) > 0 {
		logger.C(ctx).Info().
			Strs("newcomers", diff.Newcomers).
			Strs("departed", diff.Departed).
			Float64("factor", diff.Factor).
			Msg("roster adjusted")
	}
	return diff, nil
}

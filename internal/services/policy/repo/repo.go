// Package repo persists the assignment policy and threshold rows
package repo

import (
	"context"
	stdsql "database/sql"
	"errors"

	"dragoman/internal/core/drpolicy"
	"dragoman/internal/core/modes"
	"dragoman/internal/modkit/repokit"
	"dragoman/internal/services/policy/domain"
)

// Repo is the policy persistence surface
type Repo interface {
	// GetPolicy reads the single policy row; found is false before the
	// first admin write
	GetPolicy(ctx context.Context) (p domain.Policy, found bool, err error)

	// PutPolicy writes the row and bumps the generation counter, returning
	// the generation now in force
	PutPolicy(ctx context.Context, p domain.Policy) (generation int64, err error)

	// Generation reads the current counter; zero before the first write
	Generation(ctx context.Context) (int64, error)

	// GetThresholds reads the (meeting type, mode) row, falling back to the
	// meeting type's DEFAULT row; found is false when neither exists
	GetThresholds(ctx context.Context, mt modes.MeetingType, mode modes.Mode) (t modes.Thresholds, priority int, found bool, err error)
}

type (
	// PG is a Postgres implementation of the policy repo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a binder for the Postgres implementation
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind attaches a Queryer to the Postgres implementation
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

// GetPolicy reads the single policy row
func (r *queries) GetPolicy(ctx context.Context) (domain.Policy, bool, error) {
	const sqlq = `
		SELECT mode, auto_assign_enabled, fairness_window_days, max_gap_hours,
		       min_advance_days, custom_threshold_days,
		       w_fair, w_urgency, w_lrs, dr_consecutive_penalty,
		       dr_scope, dr_forbid_consecutive, dr_consecutive_penalty_override,
		       dr_include_pending, generation, updated_at
		  FROM assignment_policy
		 WHERE id = 1
	`
	var (
		p            domain.Policy
		mode, scope  string
		penaltyOverr *float64
	)
	err := r.q.QueryRow(ctx, sqlq).Scan(
		&mode, &p.AutoAssignEnabled, &p.FairnessWindowDays, &p.MaxGapHours,
		&p.MinAdvanceDays, &p.CustomThresholdDays,
		&p.WFair, &p.WUrgency, &p.WLRS, &p.DRConsecutivePenalty,
		&scope, &p.DR.ForbidConsecutive, &penaltyOverr,
		&p.DR.IncludePendingInGlobal, &p.Generation, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return domain.Policy{}, false, nil
		}
		return domain.Policy{}, false, err
	}
	p.Mode = modes.Mode(mode)
	p.DR.Scope = drpolicy.Scope(scope)
	p.DR.ConsecutivePenalty = penaltyOverr
	return p, true, nil
}

// PutPolicy upserts the row and bumps the generation counter
func (r *queries) PutPolicy(ctx context.Context, p domain.Policy) (int64, error) {
	const sqlq = `
		INSERT INTO assignment_policy (
			id, mode, auto_assign_enabled, fairness_window_days, max_gap_hours,
			min_advance_days, custom_threshold_days,
			w_fair, w_urgency, w_lrs, dr_consecutive_penalty,
			dr_scope, dr_forbid_consecutive, dr_consecutive_penalty_override,
			dr_include_pending, generation, updated_at
		) VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 1, now())
		ON CONFLICT (id) DO UPDATE SET
			mode = EXCLUDED.mode,
			auto_assign_enabled = EXCLUDED.auto_assign_enabled,
			fairness_window_days = EXCLUDED.fairness_window_days,
			max_gap_hours = EXCLUDED.max_gap_hours,
			min_advance_days = EXCLUDED.min_advance_days,
			custom_threshold_days = EXCLUDED.custom_threshold_days,
			w_fair = EXCLUDED.w_fair,
			w_urgency = EXCLUDED.w_urgency,
			w_lrs = EXCLUDED.w_lrs,
			dr_consecutive_penalty = EXCLUDED.dr_consecutive_penalty,
			dr_scope = EXCLUDED.dr_scope,
			dr_forbid_consecutive = EXCLUDED.dr_forbid_consecutive,
			dr_consecutive_penalty_override = EXCLUDED.dr_consecutive_penalty_override,
			dr_include_pending = EXCLUDED.dr_include_pending,
			generation = assignment_policy.generation + 1,
			updated_at = now()
		RETURNING generation
	`
	var gen int64
	err := r.q.QueryRow(ctx, sqlq,
		p.Mode.String(), p.AutoAssignEnabled, p.FairnessWindowDays, p.MaxGapHours,
		p.MinAdvanceDays, p.CustomThresholdDays,
		p.WFair, p.WUrgency, p.WLRS, p.DRConsecutivePenalty,
		string(p.DR.Scope), p.DR.ForbidConsecutive, p.DR.ConsecutivePenalty,
		p.DR.IncludePendingInGlobal,
	).Scan(&gen)
	return gen, err
}

// Generation reads the current counter
func (r *queries) Generation(ctx context.Context) (int64, error) {
	const sqlq = `SELECT generation FROM assignment_policy WHERE id = 1`
	var gen int64
	if err := r.q.QueryRow(ctx, sqlq).Scan(&gen); err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return gen, nil
}

// GetThresholds reads the (meeting type, mode) threshold row, preferring the
// exact mode over the meeting type's DEFAULT row
func (r *queries) GetThresholds(
	ctx context.Context,
	mt modes.MeetingType,
	mode modes.Mode,
) (modes.Thresholds, int, bool, error) {
	const sqlq = `
		SELECT urgent_threshold_days, general_threshold_days, priority_value
		  FROM meeting_type_modes
		 WHERE meeting_type = $1
		   AND mode IN ($2, 'DEFAULT')
		 ORDER BY CASE WHEN mode = $2 THEN 0 ELSE 1 END
		 LIMIT 1
	`
	var (
		t        modes.Thresholds
		priority int
	)
	err := r.q.QueryRow(ctx, sqlq, mt.String(), mode.String()).
		Scan(&t.UrgentDays, &t.GeneralDays, &priority)
	if err != nil {
		if errors.Is(err, stdsql.ErrNoRows) {
			return modes.Thresholds{}, 0, false, nil
		}
		return modes.Thresholds{}, 0, false, err
	}
	return t, priority, true, nil
}

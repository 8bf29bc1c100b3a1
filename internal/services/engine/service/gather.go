package service

import (
	"context"

	"dragoman/internal/core/drpolicy"
	"dragoman/internal/core/fairness"
	"dragoman/internal/core/modes"
	"dragoman/internal/core/rosterdiff"
	"dragoman/internal/core/scoring"
	auditdom "dragoman/internal/services/audit/domain"
	bookingdom "dragoman/internal/services/booking/domain"
	dom "dragoman/internal/services/engine/domain"
	policydom "dragoman/internal/services/policy/domain"
)

// snapshot is the frozen scoring input for one decision: everything below
// here is pure in-memory work with no suspension points
type snapshot struct {
	booking  bookingdom.Booking
	policy   policydom.Policy
	resolved policydom.Resolved
	roster   []bookingdom.Interpreter
	hours    map[string]float64 // every roster member, zeros included
	idle     map[string]idleState
	diff     rosterdiff.Diff
	lastDR   bookingdom.LastDR
	conflict map[string]bool // roster members overlapping the window
}

type idleState struct {
	days float64
	ever bool
}

// gather reads everything one decision needs from the stores. Each read
// retries under bounded backoff; the first terminal failure aborts
func (s *Service) gather(ctx context.Context, b bookingdom.Booking, p policydom.Policy) (*snapshot, error) {
	now := s.Clock.Now()
	snap := &snapshot{booking: b, policy: p}

	if err := s.retryStore(ctx, func() error {
		var err error
		snap.resolved, err = s.Policy.Resolve(ctx, b.MeetingType, p.Mode)
		return err
	}); err != nil {
		return nil, err
	}

	if err := s.retryStore(ctx, func() error {
		var err error
		snap.roster, err = s.Bookings.ActiveInterpreters(ctx)
		return err
	}); err != nil {
		return nil, err
	}

	windowStart := now.AddDate(0, 0, -p.FairnessWindowDays)
	var approved []bookingdom.Booking
	if err := s.retryStore(ctx, func() error {
		var err error
		approved, err = s.Bookings.ApprovedInWindow(ctx, windowStart, now)
		return err
	}); err != nil {
		return nil, err
	}

	snap.hours = make(map[string]float64, len(snap.roster))
	onRoster := make(map[string]bool, len(snap.roster))
	for _, it := range snap.roster {
		snap.hours[it.EmpCode] = 0
		onRoster[it.EmpCode] = true
	}
	for _, ab := range approved {
		if onRoster[ab.Interpreter] {
			snap.hours[ab.Interpreter] += ab.DurationHours()
		}
	}

	var prior []string
	if err := s.retryStore(ctx, func() error {
		var err error
		prior, err = s.Roster.RosterSnapshot(ctx)
		return err
	}); err != nil {
		return nil, err
	}
	assigned := make(map[string]bool, len(snap.hours))
	rosterIDs := make([]string, 0, len(snap.roster))
	for _, it := range snap.roster {
		rosterIDs = append(rosterIDs, it.EmpCode)
		assigned[it.EmpCode] = snap.hours[it.EmpCode] > 0
	}
	snap.diff = rosterdiff.Compute(rosterdiff.Input{
		Roster:           rosterIDs,
		Snapshot:         prior,
		AssignedInWindow: assigned,
	})

	snap.idle = make(map[string]idleState, len(snap.roster))
	snap.conflict = make(map[string]bool, len(snap.roster))
	hardBlock := s.hardBlock()
	for _, it := range snap.roster {
		id := it.EmpCode
		if err := s.retryStore(ctx, func() error {
			days, ever, err := s.Bookings.DaysSinceLast(ctx, id, now)
			if err != nil {
				return err
			}
			snap.idle[id] = idleState{days: days, ever: ever}
			return nil
		}); err != nil {
			return nil, err
		}
		if err := s.retryStore(ctx, func() error {
			conflicts, err := s.Bookings.Overlapping(ctx, id, b.TimeStart, b.TimeEnd, hardBlock)
			if err != nil {
				return err
			}
			snap.conflict[id] = len(conflicts) > 0
			return nil
		}); err != nil {
			return nil, err
		}
	}

	if b.MeetingType == modes.MeetingDR {
		q := bookingdom.DRQuery{
			Before:         b.TimeStart,
			IncludePending: p.DR.IncludePendingInGlobal,
		}
		if p.DR.Scope == drpolicy.ScopeByType {
			q.DRType = b.DRType
		}
		if err := s.retryStore(ctx, func() error {
			var err error
			snap.lastDR, err = s.Bookings.LastDR(ctx, q)
			return err
		}); err != nil {
			return nil, err
		}
	}

	return snap, nil
}

// evaluation is the pure scoring pass over a snapshot
type evaluation struct {
	ranked    []scoring.Scored
	breakdown []auditdom.Candidate
	urgency   float64
	// overrideApplied ids took the DR penalty through the
	// no-alternatives override
	overrideApplied map[string]bool
}

// evaluate runs the candidate pipeline: conflict filter, DR rule, max-gap
// bound, then scoring. When every otherwise-eligible candidate is blocked
// by the consecutive-DR rule, the override converts the block into the
// penalty (critical coverage)
func (s *Service) evaluate(snap *snapshot, daysUntilStart float64) evaluation {
	p := snap.policy
	b := snap.booking
	isDR := b.MeetingType == modes.MeetingDR
	duration := b.DurationHours()

	urgency := scoring.Urgency(daysUntilStart, snap.resolved.Thresholds.UrgentDays, snap.resolved.Thresholds.GeneralDays)
	ev := evaluation{urgency: urgency, overrideApplied: map[string]bool{}}

	build := func(id string, drEval drpolicy.Evaluation) (scoring.Candidate, bool, string) {
		if snap.conflict[id] {
			return scoring.Candidate{}, false, dom.IneligibleConflict
		}
		if drEval.Blocked {
			return scoring.Candidate{}, false, drpolicy.ReasonConsecutive
		}
		if fairness.WouldExceedMaxGap(snap.hours, id, duration, p.MaxGapHours) {
			return scoring.Candidate{}, false, dom.IneligibleMaxGap
		}
		f := fairness.Score(fairness.Gap(snap.hours, id), p.MaxGapHours)
		if snap.diff.IsNewcomer(id) {
			f = fairness.AdjustNewcomer(f, snap.diff.Factor)
		}
		idle := snap.idle[id]
		return scoring.Candidate{
			ID:            id,
			Hours:         snap.hours[id],
			DaysSinceLast: idle.days,
			EverAssigned:  idle.ever,
			Fairness:      f,
			Penalty:       drEval.Penalty,
		}, true, ""
	}

	drEvalFor := func(id string, override bool) drpolicy.Evaluation {
		if !isDR {
			return drpolicy.Evaluation{}
		}
		return drpolicy.Evaluate(p.DR, drpolicy.Input{
			Candidate:     id,
			Last:          drpolicy.Last{Interpreter: snap.lastDR.Interpreter, Found: snap.lastDR.Found},
			PolicyPenalty: p.DRConsecutivePenalty,
			Override:      override,
			NewcomerGrace: snap.diff.GraceApplies(id),
		})
	}

	var (
		eligible []scoring.Candidate
		dropped  = map[string]string{}
		blocked  []string // DR-blocked but otherwise eligible
	)
	for _, it := range snap.roster {
		id := it.EmpCode
		c, ok, reason := build(id, drEvalFor(id, false))
		if ok {
			eligible = append(eligible, c)
			continue
		}
		dropped[id] = reason
		if reason == drpolicy.ReasonConsecutive {
			blocked = append(blocked, id)
		}
	}

	// No alternatives: re-admit DR-blocked candidates under the override
	if len(eligible) == 0 && len(blocked) > 0 {
		for _, id := range blocked {
			c, ok, reason := build(id, drEvalFor(id, true))
			if !ok {
				dropped[id] = reason
				continue
			}
			delete(dropped, id)
			ev.overrideApplied[id] = true
			eligible = append(eligible, c)
		}
	}

	ev.ranked = scoring.RankAll(p.Weights(), eligible, urgency, p.FairnessWindowDays)

	for _, sc := range ev.ranked {
		ev.breakdown = append(ev.breakdown, auditdom.Candidate{
			Interpreter:     sc.ID,
			Eligible:        true,
			Score:           sc.Base,
			Fairness:        sc.Fairness,
			Urgency:         sc.Urgency,
			LRS:             sc.LRS,
			Penalty:         sc.Penalty,
			OverrideApplied: ev.overrideApplied[sc.ID],
		})
	}
	for _, it := range snap.roster {
		if reason, ok := dropped[it.EmpCode]; ok {
			ev.breakdown = append(ev.breakdown, auditdom.Candidate{
				Interpreter: it.EmpCode,
				Eligible:    false,
				Reason:      reason,
			})
		}
	}
	return ev
}

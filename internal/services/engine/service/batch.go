package service

import (
	"context"

	"dragoman/internal/core/batchplan"
	"dragoman/internal/core/fairness"
	"dragoman/internal/core/modes"
	"dragoman/internal/platform/logger"
	auditdom "dragoman/internal/services/audit/domain"
	bookingdom "dragoman/internal/services/booking/domain"
	dom "dragoman/internal/services/engine/domain"
	policydom "dragoman/internal/services/policy/domain"
	pooldom "dragoman/internal/services/pool/domain"

	"github.com/google/uuid"
)

// Drain implements domain.DrainerPort: lease due entries and decide them.
// BALANCE mode batches the leased set through the greedy optimiser; other
// modes decide each entry independently
func (s *Service) Drain(ctx context.Context) ([]dom.Outcome, error) {
	var p policydom.Policy
	if err := s.retryStore(ctx, func() error {
		var err error
		p, err = s.Policy.Policy(ctx)
		return err
	}); err != nil {
		return nil, err
	}

	ready, err := s.Pool.ListReady(ctx)
	if err != nil {
		return nil, err
	}
	if len(ready) == 0 {
		return nil, nil
	}

	now := s.Clock.Now()
	anyWithin24h := false
	for _, e := range ready {
		if modes.DeadlineOverride(now, e.TimeStart) {
			anyWithin24h = true
			break
		}
	}
	size := s.Cfg.BatchSize
	if size <= 0 {
		size = batchplan.Size(anyWithin24h)
	}

	leased, err := s.Pool.Lease(ctx, s.Cfg.WorkerID, size)
	if err != nil {
		return nil, err
	}
	if len(leased) == 0 {
		return nil, nil
	}

	if p.Mode != modes.ModeBalance {
		out := make([]dom.Outcome, 0, len(leased))
		for _, e := range leased {
			out = append(out, s.decideLeased(ctx, e.BookingID, p))
		}
		return out, nil
	}
	return s.drainBatch(ctx, p, leased)
}

// EscalateExhausted implements domain.DrainerPort for entries out of
// retry attempts. Terminal: the pool rows are dropped with the escalation
func (s *Service) EscalateExhausted(ctx context.Context, bookingIDs []int64) []dom.Outcome {
	if len(bookingIDs) == 0 {
		return nil
	}
	var pp *policydom.Policy
	if p, err := s.Policy.Policy(ctx); err == nil {
		pp = &p
	}
	out := make([]dom.Outcome, 0, len(bookingIDs))
	for _, id := range bookingIDs {
		out = append(out, s.escalate(ctx, id, dom.ReasonRetryExhausted, nil, pp, uuid.NewString(), true))
	}
	return out
}

// decideLeased runs the direct path for one leased entry
func (s *Service) decideLeased(ctx context.Context, bookingID int64, p policydom.Policy) dom.Outcome {
	corr := uuid.NewString()
	var b bookingdom.Booking
	if err := s.retryStore(ctx, func() error {
		var err error
		b, err = s.Bookings.Get(ctx, bookingID)
		return err
	}); err != nil {
		reason := storeFailureReason(ctx, err)
		s.failPool(ctx, bookingID, reason)
		return s.escalate(ctx, bookingID, reason, nil, &p, corr, false)
	}
	if b.Assigned() {
		// Decided by another writer while pooled; just drop the entry
		if err := s.Pool.Remove(ctx, bookingID); err != nil {
			logger.C(ctx).Warn().Err(err).Int64("booking_id", bookingID).Msg("pool entry removal failed")
		}
		return dom.Outcome{BookingID: b.ID, Kind: dom.KindAssigned, Interpreter: b.Interpreter, CorrelationID: corr}
	}
	if b.Status == bookingdom.StatusCancel || b.Status == bookingdom.StatusComplete {
		return s.escalate(ctx, b.ID, dom.ReasonCancelled, nil, &p, corr, true)
	}
	return s.decide(ctx, b, p, corr, nil)
}

// drainBatch is the balance-mode path: emergency-process overdue entries,
// then trade top-K candidates across the rest to minimise projected spread
func (s *Service) drainBatch(ctx context.Context, p policydom.Policy, leased []pooldom.Entry) ([]dom.Outcome, error) {
	log := logger.C(ctx)
	batchID := uuid.New()
	now := s.Clock.Now()
	var outcomes []dom.Outcome

	// Deadline-crossed entries short-circuit through the direct path
	var batchable []pooldom.Entry
	for _, e := range leased {
		if modes.DeadlineOverride(now, e.TimeStart) {
			outcomes = append(outcomes, s.decideLeased(ctx, e.BookingID, p))
			continue
		}
		batchable = append(batchable, e)
	}
	if len(batchable) == 0 {
		return outcomes, nil
	}

	type prepared struct {
		booking bookingdom.Booking
		snap    *snapshot
		ev      evaluation
	}
	byID := make(map[int64]prepared, len(batchable))
	var (
		hours   map[string]float64
		entries []batchplan.Entry
	)
	for _, e := range batchable {
		var b bookingdom.Booking
		if err := s.retryStore(ctx, func() error {
			var err error
			b, err = s.Bookings.Get(ctx, e.BookingID)
			return err
		}); err != nil {
			reason := storeFailureReason(ctx, err)
			s.failPool(ctx, e.BookingID, reason)
			outcomes = append(outcomes, s.escalate(ctx, e.BookingID, reason, nil, &p, uuid.NewString(), false))
			continue
		}
		if b.Assigned() {
			if err := s.Pool.Remove(ctx, b.ID); err != nil {
				log.Warn().Err(err).Int64("booking_id", b.ID).Msg("pool entry removal failed")
			}
			continue
		}
		snap, err := s.gather(ctx, b, p)
		if err != nil {
			reason := storeFailureReason(ctx, err)
			s.failPool(ctx, e.BookingID, reason)
			outcomes = append(outcomes, s.escalate(ctx, e.BookingID, reason, nil, &p, uuid.NewString(), false))
			continue
		}
		ev := s.evaluate(snap, b.TimeStart.Sub(now).Hours()/24)
		byID[b.ID] = prepared{booking: b, snap: snap, ev: ev}
		if hours == nil {
			hours = snap.hours
		}

		topK := make([]batchplan.Candidate, 0, batchplan.TopK)
		for i, sc := range ev.ranked {
			if i == batchplan.TopK {
				break
			}
			topK = append(topK, batchplan.Candidate{ID: sc.ID, Score: sc.Base})
		}
		entries = append(entries, batchplan.Entry{
			BookingID: b.ID,
			Start:     b.TimeStart,
			End:       b.TimeEnd,
			Deadline:  e.DeadlineTime,
			Duration:  b.DurationHours(),
			TopK:      topK,
		})
	}
	if len(entries) == 0 {
		return outcomes, nil
	}

	plan := batchplan.Build(hours, entries)

	for _, pick := range plan.Picks {
		prep := byID[pick.BookingID]
		outcomes = append(outcomes, s.commitPick(ctx, prep.booking, p, prep.snap, prep.ev, pick.Interpreter, &batchID))
	}
	// Entries the planner could not place without an intra-batch conflict
	// fall back to the direct path against the now-committed state
	for _, id := range plan.Unplanned {
		prep := byID[id]
		outcomes = append(outcomes, s.decide(ctx, prep.booking, p, uuid.NewString(), &batchID))
	}

	batchImprovement.Observe(plan.Improvement)
	s.Audit.Append(ctx, auditdom.Entry{
		Outcome:           auditdom.OutcomeBatchSummary,
		Score:             plan.Improvement,
		PreHours:          map[string]float64{"spread_before": plan.SpreadBefore},
		PostHours:         map[string]float64{"spread_after": plan.SpreadAfter, "spread_top1": plan.SpreadTop1},
		PolicyFingerprint: fingerprint(p),
		CorrelationID:     batchID.String(),
		BatchID:           &batchID,
		DecidedAt:         s.Clock.Now(),
	})
	log.Info().Str("batch_id", batchID.String()).
		Int("picks", len(plan.Picks)).
		Float64("fairness_improvement", plan.Improvement).
		Msg("balance batch drained")

	return outcomes, nil
}

// commitPick commits a planner-chosen interpreter. A lost race releases
// the entry back to pending for the next tick
func (s *Service) commitPick(
	ctx context.Context,
	b bookingdom.Booking,
	p policydom.Policy,
	snap *snapshot,
	ev evaluation,
	interpreter string,
	batchID *uuid.UUID,
) dom.Outcome {
	corr := uuid.NewString()
	var score float64
	for _, sc := range ev.ranked {
		if sc.ID == interpreter {
			score = sc.Base
			break
		}
	}

	var committed bool
	if err := s.retryStore(ctx, func() error {
		var err error
		committed, err = s.Writer.CommitAssignment(ctx, b.ID, interpreter, b.TimeStart, b.TimeEnd, s.hardBlock())
		return err
	}); err != nil {
		reason := storeFailureReason(ctx, err)
		s.failPool(ctx, b.ID, reason)
		return s.escalate(ctx, b.ID, reason, ev.breakdown, &p, corr, false)
	}
	if !committed {
		storeRetries.Inc()
		s.releasePool(ctx, b.ID, "conflict_at_commit")
		return dom.Outcome{
			BookingID:     b.ID,
			Kind:          dom.KindPooled,
			Reason:        "conflict_at_commit",
			CorrelationID: corr,
		}
	}

	if err := s.Pool.Remove(ctx, b.ID); err != nil {
		logger.C(ctx).Warn().Err(err).Int64("booking_id", b.ID).Msg("pool entry removal failed")
	}
	now := s.Clock.Now()
	s.Audit.Append(ctx, auditdom.Entry{
		BookingID:         b.ID,
		Outcome:           auditdom.OutcomeAssigned,
		Interpreter:       interpreter,
		Score:             score,
		PreHours:          snap.hours,
		PostHours:         fairness.Apply(snap.hours, interpreter, b.DurationHours()),
		Breakdown:         ev.breakdown,
		PolicyFingerprint: fingerprint(p),
		CorrelationID:     corr,
		BatchID:           batchID,
		DecidedAt:         now,
	})
	assignTotal.WithLabelValues(p.Mode.String(), string(dom.KindAssigned)).Inc()
	return dom.Outcome{
		BookingID:     b.ID,
		Kind:          dom.KindAssigned,
		Interpreter:   interpreter,
		Score:         score,
		Breakdown:     ev.breakdown,
		CorrelationID: corr,
	}
}

package service

import (
	"context"
	"time"

	"dragoman/internal/core/fairness"
	"dragoman/internal/core/modes"
	perr "dragoman/internal/platform/errors"
	"dragoman/internal/platform/logger"
	auditdom "dragoman/internal/services/audit/domain"
	bookingdom "dragoman/internal/services/booking/domain"
	dom "dragoman/internal/services/engine/domain"
	policydom "dragoman/internal/services/policy/domain"
	pooldom "dragoman/internal/services/pool/domain"

	"github.com/google/uuid"
)

// Assign implements domain.RunnerPort: validate, route to pool or
// immediate scoring, commit, audit
func (s *Service) Assign(ctx context.Context, bookingID int64) dom.Outcome {
	corr := uuid.NewString()
	log := logger.C(ctx)

	var b bookingdom.Booking
	if err := s.retryStore(ctx, func() error {
		var err error
		b, err = s.Bookings.Get(ctx, bookingID)
		return err
	}); err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return s.escalate(ctx, bookingID, dom.ReasonNotFound, nil, nil, corr, false)
		}
		return s.escalate(ctx, bookingID, storeFailureReason(ctx, err), nil, nil, corr, false)
	}

	// Idempotence: an approved booking echoes its assignment, no writes
	if b.Assigned() {
		return dom.Outcome{
			BookingID:     b.ID,
			Kind:          dom.KindAssigned,
			Interpreter:   b.Interpreter,
			CorrelationID: corr,
		}
	}
	if b.Status == bookingdom.StatusCancel || b.Status == bookingdom.StatusComplete {
		return s.escalate(ctx, b.ID, dom.ReasonCancelled, nil, nil, corr, true)
	}

	var p policydom.Policy
	if err := s.retryStore(ctx, func() error {
		var err error
		p, err = s.Policy.Policy(ctx)
		return err
	}); err != nil {
		return s.escalate(ctx, b.ID, storeFailureReason(ctx, err), nil, nil, corr, false)
	}
	if !p.AutoAssignEnabled {
		return s.escalate(ctx, b.ID, dom.ReasonDisabled, nil, &p, corr, true)
	}

	var resolved policydom.Resolved
	if err := s.retryStore(ctx, func() error {
		var err error
		resolved, err = s.Policy.Resolve(ctx, b.MeetingType, p.Mode)
		return err
	}); err != nil {
		return s.escalate(ctx, b.ID, storeFailureReason(ctx, err), nil, &p, corr, false)
	}

	now := s.Clock.Now()
	daysUntil := b.TimeStart.Sub(now).Hours() / 24
	thresholdDays := modes.ThresholdDays(p.Mode, resolved.Thresholds.GeneralDays, p.CustomThresholdDays)

	if p.Mode != modes.ModeUrgent &&
		daysUntil > float64(thresholdDays) &&
		!modes.DeadlineOverride(now, b.TimeStart) {
		entry := pooldom.Build(b.ID, b.MeetingType, b.TimeStart, b.TimeEnd, p.Mode, thresholdDays, now)
		if err := s.retryStore(ctx, func() error {
			return s.Pool.Add(ctx, entry)
		}); err != nil {
			return s.escalate(ctx, b.ID, storeFailureReason(ctx, err), nil, &p, corr, false)
		}
		s.Audit.Append(ctx, auditdom.Entry{
			BookingID:         b.ID,
			Outcome:           auditdom.OutcomePooled,
			PolicyFingerprint: fingerprint(p),
			CorrelationID:     corr,
			DecidedAt:         now,
		})
		log.Info().Int64("booking_id", b.ID).Time("ready_at", entry.ReadyAt).Msg("booking pooled")
		assignTotal.WithLabelValues(p.Mode.String(), string(dom.KindPooled)).Inc()
		return dom.Outcome{
			BookingID:     b.ID,
			Kind:          dom.KindPooled,
			ReadyAt:       entry.ReadyAt,
			Deadline:      entry.DeadlineTime,
			CorrelationID: corr,
		}
	}

	return s.decide(ctx, b, p, corr, nil)
}

// decide runs the immediate scoring path with commit-conflict retries
func (s *Service) decide(
	ctx context.Context,
	b bookingdom.Booking,
	p policydom.Policy,
	corr string,
	batchID *uuid.UUID,
) dom.Outcome {
	log := logger.C(ctx)
	started := time.Now()
	defer func() { scoreDuration.Observe(time.Since(started).Seconds()) }()

	var breakdown []auditdom.Candidate
	for attempt := 0; attempt <= s.Cfg.CommitRetries; attempt++ {
		snap, err := s.gather(ctx, b, p)
		if err != nil {
			reason := storeFailureReason(ctx, err)
			s.failPool(ctx, b.ID, reason)
			return s.escalate(ctx, b.ID, reason, breakdown, &p, corr, false)
		}
		now := s.Clock.Now()
		ev := s.evaluate(snap, b.TimeStart.Sub(now).Hours()/24)
		breakdown = ev.breakdown

		if len(ev.ranked) == 0 {
			out := s.escalate(ctx, b.ID, dom.ReasonNoEligible, breakdown, &p, corr, true)
			out.Breakdown = breakdown
			return out
		}

		head := ev.ranked[0]
		var committed bool
		if err := s.retryStore(ctx, func() error {
			var err error
			committed, err = s.Writer.CommitAssignment(ctx, b.ID, head.ID, b.TimeStart, b.TimeEnd, s.hardBlock())
			return err
		}); err != nil {
			reason := storeFailureReason(ctx, err)
			s.failPool(ctx, b.ID, reason)
			return s.escalate(ctx, b.ID, reason, breakdown, &p, corr, false)
		}
		if !committed {
			// Lost the race; rescore against the updated state
			storeRetries.Inc()
			log.Warn().Int64("booking_id", b.ID).Str("interpreter", head.ID).
				Int("attempt", attempt+1).Msg("commit conflict; rescoring")
			continue
		}

		if err := s.Pool.Remove(ctx, b.ID); err != nil {
			log.Warn().Err(err).Int64("booking_id", b.ID).Msg("pool entry removal failed")
		}
		post := fairness.Apply(snap.hours, head.ID, b.DurationHours())
		s.Audit.Append(ctx, auditdom.Entry{
			BookingID:         b.ID,
			Outcome:           auditdom.OutcomeAssigned,
			Interpreter:       head.ID,
			Score:             head.Base,
			PreHours:          snap.hours,
			PostHours:         post,
			Breakdown:         breakdown,
			PolicyFingerprint: fingerprint(p),
			CorrelationID:     corr,
			BatchID:           batchID,
			DecidedAt:         now,
		})
		log.Info().Int64("booking_id", b.ID).Str("interpreter", head.ID).
			Float64("score", head.Base).Str("correlation_id", corr).Msg("booking assigned")
		assignTotal.WithLabelValues(p.Mode.String(), string(dom.KindAssigned)).Inc()
		return dom.Outcome{
			BookingID:     b.ID,
			Kind:          dom.KindAssigned,
			Interpreter:   head.ID,
			Score:         head.Base,
			Breakdown:     breakdown,
			CorrelationID: corr,
		}
	}

	return s.escalate(ctx, b.ID, dom.ReasonConflictRetries, breakdown, &p, corr, true)
}

// escalate emits the escalation outcome. terminal decisions drop the pool
// entry; transient ones leave it for the retry machinery
func (s *Service) escalate(
	ctx context.Context,
	bookingID int64,
	reason string,
	breakdown []auditdom.Candidate,
	p *policydom.Policy,
	corr string,
	terminal bool,
) dom.Outcome {
	now := s.Clock.Now()
	entry := auditdom.Entry{
		BookingID:     bookingID,
		Outcome:       auditdom.OutcomeEscalated,
		Reason:        reason,
		Breakdown:     breakdown,
		CorrelationID: corr,
		DecidedAt:     now,
	}
	mode := "unknown"
	if p != nil {
		entry.PolicyFingerprint = fingerprint(*p)
		mode = p.Mode.String()
	}
	s.Audit.Append(ctx, entry)
	if terminal {
		if err := s.Pool.Remove(ctx, bookingID); err != nil {
			logger.C(ctx).Warn().Err(err).Int64("booking_id", bookingID).Msg("pool entry removal failed")
		}
	}
	logger.C(ctx).Warn().Int64("booking_id", bookingID).Str("reason", reason).Msg("booking escalated")
	assignTotal.WithLabelValues(mode, string(dom.KindEscalated)).Inc()
	return dom.Outcome{
		BookingID:     bookingID,
		Kind:          dom.KindEscalated,
		Reason:        reason,
		Breakdown:     breakdown,
		CorrelationID: corr,
	}
}

// releasePool returns a leased entry to pending without burning an
// attempt; used when the entry itself was fine and another writer won
func (s *Service) releasePool(ctx context.Context, bookingID int64, reason string) {
	if err := s.Pool.Release(ctx, bookingID, reason); err != nil {
		logger.C(ctx).Warn().Err(err).Int64("booking_id", bookingID).Msg("pool release failed")
	}
}

// failPool counts a transient failure against the entry's retry budget; the
// sweeper requeues it under backoff until the attempts run out. A no-op for
// bookings that never pooled
func (s *Service) failPool(ctx context.Context, bookingID int64, reason string) {
	if err := s.Pool.Fail(ctx, bookingID, reason); err != nil {
		logger.C(ctx).Warn().Err(err).Int64("booking_id", bookingID).Msg("pool fail failed")
	}
}

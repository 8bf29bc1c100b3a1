package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"dragoman/internal/core/modes"
	auditdom "dragoman/internal/services/audit/domain"
	bookingdom "dragoman/internal/services/booking/domain"
	dom "dragoman/internal/services/engine/domain"
	policydom "dragoman/internal/services/policy/domain"
	pooldom "dragoman/internal/services/pool/domain"
)

func readyEntry(b bookingdom.Booking, mode modes.Mode) pooldom.Entry {
	e := pooldom.Build(b.ID, b.MeetingType, b.TimeStart, b.TimeEnd, mode, 15, testBase)
	e.State = pooldom.StateReady
	return e
}

func TestDrain_BalanceSpreadsAcrossTopK(t *testing.T) {
	t.Parallel()

	// A scores higher (long idle) but carries more hours; both bookings
	// share a window, so top-1 alone would double-book A
	store := &fakeStore{
		bookings: map[int64]bookingdom.Booking{},
		roster: []bookingdom.Interpreter{
			{EmpCode: "A", Active: true},
			{EmpCode: "B", Active: true},
		},
		approved: []bookingdom.Booking{
			approvedBooking(1, "A", 14, 5),
			approvedBooking(2, "B", 1, 4),
		},
		snapshot: []string{"A", "B"},
	}
	b1 := newBooking(201, modes.MeetingGeneral, 72*time.Hour, 2)
	b2 := newBooking(202, modes.MeetingGeneral, 72*time.Hour, 2)
	store.bookings[b1.ID] = b1
	store.bookings[b2.ID] = b2

	p := policydom.Default()
	p.Mode = modes.ModeBalance
	fx := newFixture(store, p)
	fx.pool.entries[b1.ID] = readyEntry(b1, p.Mode)
	fx.pool.entries[b2.ID] = readyEntry(b2, p.Mode)

	outcomes, err := fx.svc.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(outcomes))
	}

	got := map[int64]string{}
	for _, o := range outcomes {
		if o.Kind != dom.KindAssigned {
			t.Fatalf("outcome %+v, want assigned", o)
		}
		got[o.BookingID] = o.Interpreter
	}
	if got[b1.ID] != "B" || got[b2.ID] != "A" {
		t.Fatalf("picks = %v, want 201->B 202->A", got)
	}

	summaries := fx.audit.byOutcome(auditdom.OutcomeBatchSummary)
	if len(summaries) != 1 {
		t.Fatalf("batch summaries = %d, want 1", len(summaries))
	}
	if summaries[0].BatchID == nil {
		t.Fatal("batch summary missing batch id")
	}
	// Achieved spread 1 against 5 for independent top-1 picks
	if imp := summaries[0].Score; math.Abs(imp-4) > 1e-9 {
		t.Fatalf("fairness improvement = %v, want 4", imp)
	}
	if summaries[0].Score <= 0 {
		t.Fatal("batching must improve on independent top-1 picks here")
	}
}

func TestDrain_NonBalanceDecidesIndependently(t *testing.T) {
	t.Parallel()

	store := threeRoster()
	b := newBooking(203, modes.MeetingGeneral, 72*time.Hour, 2)
	store.bookings[b.ID] = b
	fx := newFixture(store, policydom.Default())
	fx.pool.entries[b.ID] = readyEntry(b, modes.ModeNormal)

	outcomes, err := fx.svc.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Kind != dom.KindAssigned {
		t.Fatalf("outcomes = %+v, want one assignment", outcomes)
	}
	if len(fx.pool.entries) != 0 {
		t.Fatalf("decided entry must leave the pool, still holds %v", fx.pool.entries)
	}
}

func TestDrain_EmptyPoolIsQuiet(t *testing.T) {
	t.Parallel()

	fx := newFixture(threeRoster(), policydom.Default())
	outcomes, err := fx.svc.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if outcomes != nil {
		t.Fatalf("outcomes = %+v, want none", outcomes)
	}
}

func TestDrain_DecidedElsewhereDropsEntry(t *testing.T) {
	t.Parallel()

	store := threeRoster()
	b := newBooking(204, modes.MeetingGeneral, 72*time.Hour, 2)
	b.Status = bookingdom.StatusApprove
	b.Interpreter = "A"
	store.bookings[b.ID] = b
	fx := newFixture(store, policydom.Default())
	fx.pool.entries[b.ID] = readyEntry(b, modes.ModeNormal)

	outcomes, err := fx.svc.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Interpreter != "A" {
		t.Fatalf("outcomes = %+v, want echo of A", outcomes)
	}
	if len(store.commits) != 0 {
		t.Fatalf("echo must not write, got %v", store.commits)
	}
	if len(fx.pool.entries) != 0 {
		t.Fatal("stale entry must be dropped")
	}
}

// Store trouble while holding a lease burns a retry attempt: the entry
// moves to failed for the sweeper's backoff, not straight back to pending
func TestDrain_TransientFailureCountsAttempt(t *testing.T) {
	t.Parallel()

	store := threeRoster()
	b := newBooking(205, modes.MeetingGeneral, 72*time.Hour, 2)
	store.bookings[b.ID] = b
	store.getErr = errors.New("connection refused")
	fx := newFixture(store, policydom.Default())
	fx.pool.entries[b.ID] = readyEntry(b, modes.ModeNormal)

	outcomes, err := fx.svc.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Kind != dom.KindEscalated || outcomes[0].Reason != dom.ReasonStoreDown {
		t.Fatalf("outcomes = %+v, want escalated %q", outcomes, dom.ReasonStoreDown)
	}

	e, ok := fx.pool.entries[b.ID]
	if !ok {
		t.Fatal("entry must survive a transient failure")
	}
	if e.State != pooldom.StateFailed || e.Attempts != 1 {
		t.Fatalf("entry = %+v, want failed with one attempt counted", e)
	}
	if len(fx.pool.released) != 0 {
		t.Fatalf("transient failure must not release to pending, got %v", fx.pool.released)
	}
}

// Pool round trip: Assign defers the booking, the readiness moment
// arrives, Drain decides it
func TestAssignThenDrain_PoolRoundTrip(t *testing.T) {
	t.Parallel()

	store := threeRoster()
	b := newBooking(205, modes.MeetingGeneral, 30*24*time.Hour, 2)
	store.bookings[b.ID] = b
	fx := newFixture(store, policydom.Default())

	if out := fx.svc.Assign(context.Background(), b.ID); out.Kind != dom.KindPooled {
		t.Fatalf("outcome = %+v, want pooled", out)
	}

	// the sweeper's job, compressed: readiness moment reached
	e := fx.pool.entries[b.ID]
	e.State = pooldom.StateReady
	fx.pool.entries[b.ID] = e
	fx.clk.SetTime(e.ReadyAt.Add(time.Minute))

	outcomes, err := fx.svc.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Kind != dom.KindAssigned {
		t.Fatalf("outcomes = %+v, want one assignment", outcomes)
	}
	if got := store.bookings[b.ID]; got.Status != bookingdom.StatusApprove {
		t.Fatalf("booking not committed after drain: %+v", got)
	}
}

func TestDrain_OverdueEntrySkipsBatching(t *testing.T) {
	t.Parallel()

	store := threeRoster()
	b := newBooking(206, modes.MeetingGeneral, 12*time.Hour, 2)
	store.bookings[b.ID] = b
	p := policydom.Default()
	p.Mode = modes.ModeBalance
	fx := newFixture(store, p)
	fx.pool.entries[b.ID] = readyEntry(b, p.Mode)

	outcomes, err := fx.svc.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Kind != dom.KindAssigned {
		t.Fatalf("outcomes = %+v, want direct assignment", outcomes)
	}
	// no batch ran, so no summary
	if got := fx.audit.byOutcome(auditdom.OutcomeBatchSummary); len(got) != 0 {
		t.Fatalf("batch summaries = %d, want 0", len(got))
	}
}

func TestEscalateExhausted_TerminalAndStamped(t *testing.T) {
	t.Parallel()

	fx := newFixture(threeRoster(), policydom.Default())
	fx.pool.entries[41] = pooldom.Entry{BookingID: 41, State: pooldom.StateFailed, Attempts: 3}
	fx.pool.entries[42] = pooldom.Entry{BookingID: 42, State: pooldom.StateFailed, Attempts: 3}

	outs := fx.svc.EscalateExhausted(context.Background(), []int64{41, 42})

	if len(outs) != 2 {
		t.Fatalf("outcomes = %+v, want 2 escalations", outs)
	}
	for _, o := range outs {
		if o.Kind != dom.KindEscalated || o.Reason != dom.ReasonRetryExhausted {
			t.Fatalf("outcome = %+v, want retry_exhausted escalation", o)
		}
	}
	got := fx.audit.byOutcome(auditdom.OutcomeEscalated)
	if len(got) != 2 {
		t.Fatalf("audit escalations = %d, want 2", len(got))
	}
	if got[0].PolicyFingerprint == 0 {
		t.Fatal("escalation must carry the live policy fingerprint")
	}
	// terminal: the spent pool rows are dropped
	if len(fx.pool.removed) != 2 {
		t.Fatalf("pool removals = %v, want both entries dropped", fx.pool.removed)
	}
}

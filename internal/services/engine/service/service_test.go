package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"dragoman/internal/core/modes"
	perr "dragoman/internal/platform/errors"
	auditdom "dragoman/internal/services/audit/domain"
	bookingdom "dragoman/internal/services/booking/domain"
	policydom "dragoman/internal/services/policy/domain"
	pooldom "dragoman/internal/services/pool/domain"

	clocktesting "k8s.io/utils/clock/testing"
)

// fakeStore backs the booking reader, roster, and writer ports with
// in-memory state. Overlap checks and hour totals derive from the
// approved slice the same way the SQL does
type fakeStore struct {
	mu       sync.Mutex
	bookings map[int64]bookingdom.Booking
	roster   []bookingdom.Interpreter
	approved []bookingdom.Booking
	lastDR   bookingdom.LastDR
	snapshot []string

	getErr       error
	commitDeny   int    // force this many lost commit races
	beforeCommit func() // runs once at the next commit, before the checks
	commits      []string
	purged       []string
}

func (f *fakeStore) Get(_ context.Context, id int64) (bookingdom.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return bookingdom.Booking{}, f.getErr
	}
	b, ok := f.bookings[id]
	if !ok {
		return bookingdom.Booking{}, perr.NotFoundf("booking %d", id)
	}
	return b, nil
}

func (f *fakeStore) ActiveInterpreters(context.Context) ([]bookingdom.Interpreter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bookingdom.Interpreter(nil), f.roster...), nil
}

func (f *fakeStore) Overlapping(
	_ context.Context, empCode string, from, to time.Time, statuses []bookingdom.Status,
) ([]bookingdom.Conflict, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	in := func(s bookingdom.Status) bool {
		for _, st := range statuses {
			if st == s {
				return true
			}
		}
		return false
	}
	var out []bookingdom.Conflict
	for _, b := range f.approved {
		if b.Interpreter != empCode || !in(b.Status) {
			continue
		}
		if from.Before(b.TimeEnd) && to.After(b.TimeStart) {
			out = append(out, bookingdom.Conflict{
				BookingID: b.ID, TimeStart: b.TimeStart, TimeEnd: b.TimeEnd, Status: b.Status,
			})
		}
	}
	return out, nil
}

func (f *fakeStore) ApprovedInWindow(_ context.Context, from, to time.Time) ([]bookingdom.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []bookingdom.Booking
	for _, b := range f.approved {
		if b.Status == bookingdom.StatusApprove && !b.TimeStart.Before(from) && b.TimeStart.Before(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) LastDR(context.Context, bookingdom.DRQuery) (bookingdom.LastDR, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastDR, nil
}

func (f *fakeStore) DaysSinceLast(_ context.Context, empCode string, now time.Time) (float64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var last time.Time
	ever := false
	for _, b := range f.approved {
		if b.Interpreter == empCode && b.Status == bookingdom.StatusApprove && b.TimeStart.Before(now) {
			if b.TimeStart.After(last) {
				last = b.TimeStart
			}
			ever = true
		}
	}
	if !ever {
		return 0, false, nil
	}
	return now.Sub(last).Hours() / 24, true, nil
}

func (f *fakeStore) RosterSnapshot(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.snapshot...), nil
}

func (f *fakeStore) RecordRoster(_ context.Context, empCodes []string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot = append([]string(nil), empCodes...)
	sort.Strings(f.snapshot)
	return nil
}

func (f *fakeStore) PurgeDeparted(_ context.Context, empCodes []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purged = append(f.purged, empCodes...)
	keep := f.snapshot[:0]
	for _, id := range f.snapshot {
		departed := false
		for _, d := range empCodes {
			if d == id {
				departed = true
				break
			}
		}
		if !departed {
			keep = append(keep, id)
		}
	}
	f.snapshot = keep
	return nil
}

func (f *fakeStore) SetStatus(_ context.Context, id int64, status bookingdom.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.bookings[id]
	b.Status = status
	f.bookings[id] = b
	return nil
}

func (f *fakeStore) CommitAssignment(
	ctx context.Context, id int64, empCode string, from, to time.Time, hardBlock []bookingdom.Status,
) (bool, error) {
	f.mu.Lock()
	if f.beforeCommit != nil {
		hook := f.beforeCommit
		f.beforeCommit = nil
		f.mu.Unlock()
		hook()
		f.mu.Lock()
	}
	if f.commitDeny > 0 {
		f.commitDeny--
		f.mu.Unlock()
		return false, nil
	}
	f.mu.Unlock()

	conflicts, err := f.Overlapping(ctx, empCode, from, to, hardBlock)
	if err != nil {
		return false, err
	}
	if len(conflicts) > 0 {
		return false, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.bookings[id]
	if b.Status != bookingdom.StatusWaiting {
		// status guard: approved and cancelled rows stay as they are
		return false, nil
	}
	b.Status = bookingdom.StatusApprove
	b.Interpreter = empCode
	f.bookings[id] = b
	f.approved = append(f.approved, b)
	f.commits = append(f.commits, empCode)
	return true, nil
}

type fakePolicy struct {
	p        policydom.Policy
	resolved policydom.Resolved
	err      error
}

func (f *fakePolicy) Policy(context.Context) (policydom.Policy, error) {
	if f.err != nil {
		return policydom.Policy{}, f.err
	}
	return f.p, nil
}

func (f *fakePolicy) Resolve(context.Context, modes.MeetingType, modes.Mode) (policydom.Resolved, error) {
	if f.err != nil {
		return policydom.Resolved{}, f.err
	}
	return f.resolved, nil
}

type fakePool struct {
	mu       sync.Mutex
	entries  map[int64]pooldom.Entry
	adds     []pooldom.Entry
	removed  []int64
	released []int64
}

func newFakePool() *fakePool { return &fakePool{entries: map[int64]pooldom.Entry{}} }

func (f *fakePool) Add(_ context.Context, e pooldom.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[e.BookingID]; ok {
		return nil
	}
	f.entries[e.BookingID] = e
	f.adds = append(f.adds, e)
	return nil
}

func (f *fakePool) Remove(_ context.Context, bookingID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, bookingID)
	f.removed = append(f.removed, bookingID)
	return nil
}

func (f *fakePool) Lease(_ context.Context, owner string, limit int) ([]pooldom.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []pooldom.Entry
	for id, e := range f.entries {
		if e.State != pooldom.StateReady || len(out) >= limit {
			continue
		}
		e.State = pooldom.StateProcessing
		e.LeaseOwner = owner
		f.entries[id] = e
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookingID < out[j].BookingID })
	return out, nil
}

func (f *fakePool) Release(_ context.Context, bookingID int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.entries[bookingID]; ok {
		e.State = pooldom.StatePending
		e.LeaseOwner = ""
		f.entries[bookingID] = e
	}
	f.released = append(f.released, bookingID)
	return nil
}

func (f *fakePool) Fail(_ context.Context, bookingID int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.entries[bookingID]; ok {
		e.State = pooldom.StateFailed
		e.Attempts++
		e.LastError = reason
		f.entries[bookingID] = e
	}
	return nil
}

func (f *fakePool) ListReady(context.Context) ([]pooldom.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []pooldom.Entry
	for _, e := range f.entries {
		if e.State == pooldom.StateReady {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookingID < out[j].BookingID })
	return out, nil
}

func (f *fakePool) Stats(context.Context) (pooldom.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var s pooldom.Stats
	for _, e := range f.entries {
		switch e.State {
		case pooldom.StatePending:
			s.Pending++
		case pooldom.StateReady:
			s.Ready++
		case pooldom.StateProcessing:
			s.Processing++
		case pooldom.StateFailed:
			s.Failed++
		}
	}
	return s, nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []auditdom.Entry
}

func (f *fakeAudit) Append(_ context.Context, e auditdom.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
}

func (f *fakeAudit) byOutcome(outcome string) []auditdom.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []auditdom.Entry
	for _, e := range f.entries {
		if e.Outcome == outcome {
			out = append(out, e)
		}
	}
	return out
}

// fixture bundles one engine under fully faked collaborators
type fixture struct {
	svc   *Service
	store *fakeStore
	pol   *fakePolicy
	pool  *fakePool
	audit *fakeAudit
	clk   *clocktesting.FakePassiveClock
}

var testBase = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newFixture(store *fakeStore, p policydom.Policy) *fixture {
	clk := clocktesting.NewFakePassiveClock(testBase)
	pol := &fakePolicy{
		p: p,
		resolved: policydom.Resolved{
			Thresholds: modes.DefaultThresholds(modes.MeetingGeneral),
			Weights:    p.Weights(),
			Priority:   modes.Priority(p.Mode),
		},
	}
	pool := newFakePool()
	audit := &fakeAudit{}
	svc := New(store, store, store, pol, pool, audit, clk, Config{
		CommitRetries:   2,
		StoreRetryDelay: time.Millisecond,
		WorkerID:        "test-worker",
	})
	return &fixture{svc: svc, store: store, pol: pol, pool: pool, audit: audit, clk: clk}
}

// approvedBooking fabricates a past approved booking for hour totals
func approvedBooking(id int64, emp string, daysAgo int, hours float64) bookingdom.Booking {
	start := testBase.AddDate(0, 0, -daysAgo)
	return bookingdom.Booking{
		ID:          id,
		MeetingType: modes.MeetingGeneral,
		TimeStart:   start,
		TimeEnd:     start.Add(time.Duration(hours * float64(time.Hour))),
		Status:      bookingdom.StatusApprove,
		Interpreter: emp,
	}
}

// threeRoster is the A/B/C fixture: A carries 10h, B 2h, C 6h inside the
// window, with staggered idle spans
func threeRoster() *fakeStore {
	return &fakeStore{
		bookings: map[int64]bookingdom.Booking{},
		roster: []bookingdom.Interpreter{
			{EmpCode: "A", Active: true},
			{EmpCode: "B", Active: true},
			{EmpCode: "C", Active: true},
		},
		approved: []bookingdom.Booking{
			approvedBooking(1, "A", 5, 10),
			approvedBooking(2, "B", 7, 2),
			approvedBooking(3, "C", 3, 6),
		},
		snapshot: []string{"A", "B", "C"},
	}
}

func breakdownFor(bd []auditdom.Candidate, id string) (auditdom.Candidate, bool) {
	for _, c := range bd {
		if c.Interpreter == id {
			return c, true
		}
	}
	return auditdom.Candidate{}, false
}

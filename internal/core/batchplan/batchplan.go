// Package batchplan implements the balance-mode batch optimiser: a greedy
// pass over ready entries trading top-1 picks for a smaller projected
// hours spread. The planner is pure; callers gather candidates and commit
package batchplan

import (
	"sort"
	"time"

	"dragoman/internal/core/fairness"
)

// TopK is how many ranked candidates per entry the planner weighs
const TopK = 3

// Batch sizes for one drain: Standard normally, Rush when any ready entry
// starts within a day
const (
	SizeStandard = 10
	SizeRush     = 15
)

// Size returns the drain size for the given readiness mix
func Size(anyWithin24h bool) int {
	if anyWithin24h {
		return SizeRush
	}
	return SizeStandard
}

// Candidate is one ranked choice for an entry, listed in scorer order
type Candidate struct {
	ID    string
	Score float64
}

// Entry is one ready pool entry with its ranked candidates
type Entry struct {
	BookingID int64
	Start     time.Time
	End       time.Time
	Deadline  time.Time
	Duration  float64 // hours
	TopK      []Candidate
}

// Pick is the planned assignment for one entry
type Pick struct {
	BookingID   int64
	Interpreter string
	Rank        int // index into the entry's TopK
}

// Plan is the planner output. Improvement compares the achieved spread
// against every entry taking its top-1 independently
type Plan struct {
	Picks        []Pick
	Unplanned    []int64 // entries whose every candidate overlapped a prior pick
	SpreadBefore float64
	SpreadTop1   float64
	SpreadAfter  float64
	Improvement  float64
}

// Build runs the greedy phase. Entries are walked deadline-ascending; each
// takes the candidate among its top-K yielding the smallest projected
// spread, ties resolved in scorer order. A candidate already planned onto
// an overlapping interval is skipped so no interpreter is double-booked
// inside the batch. The hours snapshot must carry every roster member,
// zero-hour members included
func Build(hours map[string]float64, entries []Entry) Plan {
	order := make([]Entry, len(entries))
	copy(order, entries)
	sort.SliceStable(order, func(i, j int) bool {
		if !order[i].Deadline.Equal(order[j].Deadline) {
			return order[i].Deadline.Before(order[j].Deadline)
		}
		return order[i].BookingID < order[j].BookingID
	})

	plan := Plan{SpreadBefore: fairness.Spread(hours)}
	projected := copyHours(hours)
	top1 := copyHours(hours)
	planned := map[string][]span{}

	for _, e := range order {
		if len(e.TopK) > 0 {
			top1[e.TopK[0].ID] += e.Duration
		}

		best := -1
		var bestSpread float64
		for k, c := range e.TopK {
			if overlapsAny(planned[c.ID], e.Start, e.End) {
				continue
			}
			s := fairness.Spread(fairness.Apply(projected, c.ID, e.Duration))
			if best == -1 || s < bestSpread {
				best, bestSpread = k, s
			}
		}
		if best == -1 {
			plan.Unplanned = append(plan.Unplanned, e.BookingID)
			continue
		}

		pick := e.TopK[best]
		projected[pick.ID] += e.Duration
		planned[pick.ID] = append(planned[pick.ID], span{from: e.Start, to: e.End})
		plan.Picks = append(plan.Picks, Pick{BookingID: e.BookingID, Interpreter: pick.ID, Rank: best})
	}

	plan.SpreadTop1 = fairness.Spread(top1)
	plan.SpreadAfter = fairness.Spread(projected)
	plan.Improvement = plan.SpreadTop1 - plan.SpreadAfter
	return plan
}

func copyHours(hours map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(hours))
	for k, v := range hours {
		out[k] = v
	}
	return out
}

type span struct {
	from, to time.Time
}

// overlapsAny reports half-open interval overlap against planned spans
func overlapsAny(spans []span, start, end time.Time) bool {
	for _, s := range spans {
		if start.Before(s.to) && end.After(s.from) {
			return true
		}
	}
	return false
}

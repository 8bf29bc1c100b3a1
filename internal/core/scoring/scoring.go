// Package scoring implements the urgency, least-recently-served, and
// composite candidate scores plus the deterministic ranking order.
// Everything here is a pure function of its inputs: no clock, no RNG
package scoring

import (
	"hash/fnv"
	"math"
	"sort"

	"dragoman/internal/core/modes"
)

// Urgency returns the per-booking urgency score given days until start and
// the urgent/general day thresholds: 1 at or below urgent, 0 at or above
// general, linear in between. A degenerate general == urgent is a step at
// the urgent threshold. All candidates of one booking share this value
func Urgency(daysUntilStart float64, urgentDays, generalDays int) float64 {
	u, g := float64(urgentDays), float64(generalDays)
	if g < u {
		g = u
	}
	switch {
	case daysUntilStart <= u:
		return 1
	case daysUntilStart >= g:
		return 0
	default:
		return (g - daysUntilStart) / (g - u)
	}
}

// LRS returns the least-recently-served score: idle days capped at the
// fairness window, normalised to [0,1]. Never-assigned interpreters score 1
func LRS(daysSinceLast float64, everAssigned bool, windowDays int) float64 {
	if !everAssigned || windowDays <= 0 {
		return 1
	}
	d := math.Min(daysSinceLast, float64(windowDays))
	if d < 0 {
		d = 0
	}
	return d / float64(windowDays)
}

// Candidate is one interpreter's scoring input
type Candidate struct {
	ID            string
	Hours         float64 // approved hours inside the fairness window
	DaysSinceLast float64 // days since the last assignment
	EverAssigned  bool
	Fairness      float64 // fairness score in [0,1]
	Penalty       float64 // consecutive-DR penalty, zero or negative
}

// Scored is a ranked candidate with its component breakdown
type Scored struct {
	Candidate
	Urgency  float64
	LRS      float64
	Base     float64 // weighted components plus penalty
	Adjusted float64 // Base plus tie-break offsets
}

// Score computes the composite score for one candidate
func Score(w modes.Weights, c Candidate, urgency float64, windowDays int) Scored {
	lrs := LRS(c.DaysSinceLast, c.EverAssigned, windowDays)
	base := w.Fair*c.Fairness + w.Urgency*urgency + w.LRS*lrs + c.Penalty
	return Scored{
		Candidate: c,
		Urgency:   urgency,
		LRS:       lrs,
		Base:      base,
		Adjusted:  base + tieBreak(idleDays(c, windowDays), c.Hours, c.ID),
	}
}

// idleDays caps the idle span at the window so the tie-break offset stays
// vanishing even for interpreters idle far beyond it
func idleDays(c Candidate, windowDays int) float64 {
	if !c.EverAssigned {
		return float64(windowDays)
	}
	return math.Min(math.Max(c.DaysSinceLast, 0), float64(windowDays))
}

// tieBreak adds vanishing offsets so equally scored candidates order
// deterministically: longer idle first, lighter load first, then a stable
// per-id nudge. The hash term is normalised to [0,1] to keep it last
func tieBreak(idle, hours float64, id string) float64 {
	return 1e-4*idle - 1e-5*hours + float64(Hash32(id))/float64(math.MaxUint32)*1e-7
}

// Hash32 is the stable FNV-1a hash the tie-break derives its per-id nudge from
func Hash32(id string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return h.Sum32()
}

// Rank orders scored candidates best first: adjusted score descending, then
// idle days descending, hours ascending, id ascending
func Rank(cands []Scored) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Adjusted != b.Adjusted {
			return a.Adjusted > b.Adjusted
		}
		if a.DaysSinceLast != b.DaysSinceLast {
			return a.DaysSinceLast > b.DaysSinceLast
		}
		if a.Hours != b.Hours {
			return a.Hours < b.Hours
		}
		return a.ID < b.ID
	})
}

// RankAll scores every candidate with the shared urgency and returns them
// ranked best first
func RankAll(w modes.Weights, cands []Candidate, urgency float64, windowDays int) []Scored {
	out := make([]Scored, 0, len(cands))
	for _, c := range cands {
		out = append(out, Score(w, c, urgency, windowDays))
	}
	Rank(out)
	return out
}

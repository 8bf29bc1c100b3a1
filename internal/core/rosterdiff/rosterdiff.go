// Package rosterdiff computes roster deltas and the newcomer adjustment
// factor applied to fairness scoring
package rosterdiff

import (
	"sort"

	"github.com/samber/lo"
)

// Factor bounds: a roster of entirely fresh interpreters still scales
// fairness by at most half again
const (
	MinFactor = 1.0
	MaxFactor = 1.5
)

// Input is the roster view for one diff
type Input struct {
	Roster           []string        // active interpreter ids now
	Snapshot         []string        // ids recorded by the previous run
	AssignedInWindow map[string]bool // ids holding at least one approved assignment in the window
}

// Diff is the roster delta. Newcomers and Departed come back sorted for
// stable logging and idempotent snapshot writes
type Diff struct {
	Newcomers []string // active now with no assignment in the window
	Departed  []string // in the snapshot, inactive now
	Grown     bool     // someone active now was absent from the snapshot
	Factor    float64
}

// Compute diffs the current roster against the prior snapshot
func Compute(in Input) Diff {
	active := lo.SliceToMap(in.Roster, func(id string) (string, struct{}) { return id, struct{}{} })
	snapped := lo.SliceToMap(in.Snapshot, func(id string) (string, struct{}) { return id, struct{}{} })

	d := Diff{Factor: MinFactor}
	for _, id := range in.Roster {
		if !in.AssignedInWindow[id] {
			d.Newcomers = append(d.Newcomers, id)
		}
		if _, ok := snapped[id]; !ok {
			d.Grown = true
		}
	}
	for _, id := range in.Snapshot {
		if _, ok := active[id]; !ok {
			d.Departed = append(d.Departed, id)
		}
	}
	sort.Strings(d.Newcomers)
	sort.Strings(d.Departed)

	if n := len(in.Roster); n > 0 {
		d.Factor = clamp(1+float64(len(d.Newcomers))/float64(n)*0.5, MinFactor, MaxFactor)
	}
	return d
}

// GraceApplies reports whether the newcomer grace clears DR blocks and
// penalties for id: no window assignments while the roster has grown
func (d Diff) GraceApplies(id string) bool {
	return d.Grown && lo.Contains(d.Newcomers, id)
}

// IsNewcomer reports whether id sits in the newcomer set
func (d Diff) IsNewcomer(id string) bool { return lo.Contains(d.Newcomers, id) }

func clamp(v, low, high float64) float64 {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}

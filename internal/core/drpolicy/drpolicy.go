// Package drpolicy evaluates the consecutive-assignment rule for the DR
// meeting class
package drpolicy

import (
	"fmt"
	"strings"
)

// Scope selects which DR bookings count when finding the previous one
type Scope string

const (
	// ScopeGlobal considers every DR booking
	ScopeGlobal Scope = "GLOBAL"
	// ScopeByType considers only DR bookings sharing the drType sub-class
	ScopeByType Scope = "BY_TYPE"
)

// ParseScope normalizes and validates a scope string
func ParseScope(s string) (Scope, error) {
	sc := Scope(strings.ToUpper(strings.TrimSpace(s)))
	switch sc {
	case ScopeGlobal, ScopeByType:
		return sc, nil
	}
	return "", fmt.Errorf("unknown dr scope %q", s)
}

// Policy is the DR sub-policy carried on the assignment policy
type Policy struct {
	Scope                  Scope
	ForbidConsecutive      bool
	ConsecutivePenalty     *float64 // nil falls back to the policy-level penalty
	IncludePendingInGlobal bool
}

// EffectivePenalty returns the penalty in force: the sub-policy value when
// present, the policy-level drConsecutivePenalty otherwise
func (p Policy) EffectivePenalty(policyLevel float64) float64 {
	if p.ConsecutivePenalty != nil {
		return *p.ConsecutivePenalty
	}
	return policyLevel
}

// Last identifies the interpreter on the most recent DR booking before the
// one under evaluation
type Last struct {
	Interpreter string
	Found       bool
}

// Input gathers what the rule needs for one candidate
type Input struct {
	Candidate     string
	Last          Last
	PolicyPenalty float64 // policy-level drConsecutivePenalty
	Override      bool    // critical coverage or no alternatives available
	NewcomerGrace bool    // zero window assignments while the roster has grown
}

// Evaluation is the per-candidate outcome of the consecutive rule
type Evaluation struct {
	Consecutive     bool
	Blocked         bool
	PenaltyApplied  bool
	Penalty         float64
	OverrideApplied bool
}

// ReasonConsecutive is the machine-readable ineligibility reason stamped on
// blocked candidates
const ReasonConsecutive = "ConsecutiveDR"

// Evaluate applies the consecutive-DR rule for one candidate. Forbidden
// consecutives block unless overridden; an override, like a plain
// consecutive under a non-forbidding policy, converts to the effective
// penalty. Newcomer grace clears both block and penalty
func Evaluate(p Policy, in Input) Evaluation {
	var ev Evaluation
	if !in.Last.Found || in.Last.Interpreter != in.Candidate {
		return ev
	}
	ev.Consecutive = true

	if in.NewcomerGrace {
		return ev
	}

	pen := p.EffectivePenalty(in.PolicyPenalty)
	if p.ForbidConsecutive && !in.Override {
		ev.Blocked = true
		return ev
	}
	if p.ForbidConsecutive {
		ev.OverrideApplied = true
	}
	ev.PenaltyApplied = true
	ev.Penalty = pen
	return ev
}

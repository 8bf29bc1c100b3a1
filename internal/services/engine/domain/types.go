// Package domain defines the engine's decision outcomes and ports
package domain

import (
	"time"

	auditdom "dragoman/internal/services/audit/domain"

	"github.com/google/uuid"
)

// Kind discriminates the three decision outcomes
type Kind string

const (
	// KindAssigned means an interpreter was committed
	KindAssigned Kind = "assigned"
	// KindEscalated means no automatic decision was possible
	KindEscalated Kind = "escalated"
	// KindPooled means the booking waits for its decision moment
	KindPooled Kind = "pooled"
)

// Machine-readable escalation reasons
const (
	ReasonNotFound        = "booking_not_found"
	ReasonCancelled       = "cancelled"
	ReasonDisabled        = "disabled"
	ReasonNoEligible      = "no eligible interpreter"
	ReasonConflictRetries = "conflict_after_retries"
	ReasonStoreDown       = "store_unavailable"
	ReasonTimeout         = "timeout"
	ReasonRetryExhausted  = "retry_exhausted"
)

// Candidate ineligibility reasons stamped into breakdowns
const (
	IneligibleConflict = "time conflict"
	IneligibleMaxGap   = "would exceed max gap"
)

// Outcome is the discriminated decision result returned to callers. The
// engine never leaks errors for decisions; every terminal condition is an
// escalation with a machine-readable reason
type Outcome struct {
	BookingID     int64                `json:"bookingId"`
	Kind          Kind                 `json:"kind"`
	Interpreter   string               `json:"interpreter,omitempty"`
	Score         float64              `json:"score,omitempty"`
	Reason        string               `json:"reason,omitempty"`
	ReadyAt       time.Time            `json:"readyAt,omitzero"`
	Deadline      time.Time            `json:"deadline,omitzero"`
	Breakdown     []auditdom.Candidate `json:"breakdown,omitempty"`
	CorrelationID string               `json:"correlationId,omitempty"`
}

// Assigned reports a committed decision
func (o Outcome) Assigned() bool { return o.Kind == KindAssigned }

// BatchResult summarises one balance-mode drain
type BatchResult struct {
	BatchID             uuid.UUID `json:"batchId"`
	Outcomes            []Outcome `json:"outcomes"`
	FairnessImprovement float64   `json:"fairnessImprovement"`
	SpreadBefore        float64   `json:"spreadBefore"`
	SpreadAfter         float64   `json:"spreadAfter"`
}

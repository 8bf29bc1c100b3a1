// Package domain defines the append-only assignment decision log
package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Outcome labels for log entries
const (
	OutcomeAssigned     = "assigned"
	OutcomeEscalated    = "escalated"
	OutcomePooled       = "pooled"
	OutcomeBatchSummary = "batch_summary"
)

// Candidate is one interpreter's line in the decision breakdown: either an
// eligible candidate with its score parts, or the reason it was dropped
type Candidate struct {
	Interpreter string  `json:"interpreter"`
	Eligible    bool    `json:"eligible"`
	Reason      string  `json:"reason,omitempty"`
	Score       float64 `json:"score,omitempty"`
	Fairness    float64 `json:"fairness,omitempty"`
	Urgency     float64 `json:"urgency,omitempty"`
	LRS         float64 `json:"lrs,omitempty"`
	Penalty     float64 `json:"penalty,omitempty"`

	// OverrideApplied marks a consecutive-DR candidate re-admitted under
	// the no-alternatives override; the penalty alone cannot tell the two
	// apart after the fact
	OverrideApplied bool `json:"overrideApplied,omitempty"`
}

// Entry is one appended decision record
type Entry struct {
	BookingID         int64              `json:"bookingId,omitempty"`
	Outcome           string             `json:"outcome"`
	Reason            string             `json:"reason,omitempty"`
	Interpreter       string             `json:"interpreter,omitempty"`
	Score             float64            `json:"score,omitempty"`
	PreHours          map[string]float64 `json:"preHours,omitempty"`
	PostHours         map[string]float64 `json:"postHours,omitempty"`
	Breakdown         []Candidate        `json:"breakdown,omitempty"`
	PolicyFingerprint uint64             `json:"policyFingerprint"`
	CorrelationID     string             `json:"correlationId"`
	BatchID           *uuid.UUID         `json:"batchId,omitempty"`
	DecidedAt         time.Time          `json:"decidedAt"`
}

// SinkPort appends decision records. Best-effort: implementations never
// fail the decision path; append trouble goes to stderr
type SinkPort interface {
	Append(ctx context.Context, e Entry)
}

// Package domain defines the pool entry lifecycle the engine defers
// bookings through
package domain

import (
	"time"

	"dragoman/internal/core/modes"

	"github.com/google/uuid"
)

// State is the pool entry lifecycle state
type State string

const (
	// StatePending waits for the readiness moment
	StatePending State = "pending"
	// StateReady is due for a decision
	StateReady State = "ready"
	// StateProcessing is leased by a single worker
	StateProcessing State = "processing"
	// StateFailed awaits a bounded retry
	StateFailed State = "failed"
)

// MaxAttempts bounds failed-entry retries before escalation
const MaxAttempts = 3

// Entry is one booking awaiting its decision moment
type Entry struct {
	BookingID     int64
	MeetingType   modes.MeetingType
	TimeStart     time.Time
	TimeEnd       time.Time
	Mode          modes.Mode
	ThresholdDays int
	ReadyAt       time.Time // timeStart minus the threshold
	DeadlineTime  time.Time // timeStart; the decision must land by then
	EnteredAt     time.Time
	Priority      int
	BatchID       *uuid.UUID
	Attempts      int
	State         State
	LeaseOwner    string
	LeaseExpires  *time.Time
	LastError     string
}

// Build derives a pending entry from the booking under the resolved mode
// profile. ReadyAt precedes DeadlineTime by the threshold span
func Build(
	bookingID int64,
	mt modes.MeetingType,
	start, end time.Time,
	mode modes.Mode,
	thresholdDays int,
	now time.Time,
) Entry {
	return Entry{
		BookingID:     bookingID,
		MeetingType:   mt,
		TimeStart:     start,
		TimeEnd:       end,
		Mode:          mode,
		ThresholdDays: thresholdDays,
		ReadyAt:       start.AddDate(0, 0, -thresholdDays),
		DeadlineTime:  start,
		EnteredAt:     now,
		Priority:      modes.Priority(mode),
		State:         StatePending,
	}
}

// Stats is the aggregate pool view served to operators
type Stats struct {
	Pending        int           `json:"pending"`
	Ready          int           `json:"ready"`
	Processing     int           `json:"processing"`
	Failed         int           `json:"failed"`
	OldestReadyAge time.Duration `json:"oldestReadyAgeNs"`
	NextReadyAt    *time.Time    `json:"nextReadyAt,omitempty"`
}

// Total is the entry count across all states
func (s Stats) Total() int { return s.Pending + s.Ready + s.Processing + s.Failed }

// SweepReport summarises one sweeper tick
type SweepReport struct {
	MarkedReady int
	Reclaimed   int
	Requeued    int
	Exhausted   []Entry // failed entries out of attempts, due for escalation
}

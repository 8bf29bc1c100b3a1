// Package domain defines the booking-side types and ports the engine
// decides over
package domain

import (
	"time"

	"dragoman/internal/core/modes"
)

// Status is the booking lifecycle state
type Status string

const (
	// StatusWaiting marks a booking awaiting an assignment decision
	StatusWaiting Status = "waiting"
	// StatusApprove marks a booking holding a committed interpreter
	StatusApprove Status = "approve"
	// StatusCancel marks a withdrawn booking
	StatusCancel Status = "cancel"
	// StatusComplete marks a finished booking
	StatusComplete Status = "complete"
)

// Booking is one interpreter service request over a half-open interval.
// The engine mutates only Interpreter and Status (to approve); every other
// field belongs to the surrounding booking service
type Booking struct {
	ID          int64
	MeetingType modes.MeetingType
	DRType      string // optional DR sub-class
	TimeStart   time.Time
	TimeEnd     time.Time
	Room        string
	OwnerID     string
	CreatedAt   time.Time
	Status      Status
	Interpreter string // emp code, empty while unassigned
}

// DurationHours returns the interval length in hours
func (b Booking) DurationHours() float64 { return b.TimeEnd.Sub(b.TimeStart).Hours() }

// Assigned reports whether the booking holds an approved interpreter
func (b Booking) Assigned() bool { return b.Status == StatusApprove && b.Interpreter != "" }

// Interpreter is one assignable roster member
type Interpreter struct {
	EmpCode  string
	Active   bool
	JoinedAt time.Time
}

// Conflict is an overlapping booking found for a candidate
type Conflict struct {
	BookingID int64
	TimeStart time.Time
	TimeEnd   time.Time
	Status    Status
}

// DRQuery filters the previous-DR lookup
type DRQuery struct {
	Before         time.Time
	DRType         string // set only under BY_TYPE scope
	IncludePending bool   // count waiting bookings alongside approved
}

// LastDR identifies the most recent matching DR booking before the query point
type LastDR struct {
	BookingID   int64
	Interpreter string
	TimeStart   time.Time
	Found       bool
}

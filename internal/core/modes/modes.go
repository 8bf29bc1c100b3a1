// Package modes defines the engine mode profiles: locked scoring weights,
// pool thresholds, and processing priorities per (meeting type, mode) pair
package modes

import (
	"fmt"
	"strings"
	"time"
)

// Mode is the top-level engine profile selecting weights and pool thresholds
type Mode string

const (
	// ModeBalance pools aggressively and weights fairness highest
	ModeBalance Mode = "BALANCE"
	// ModeUrgent decides immediately and weights urgency highest
	ModeUrgent Mode = "URGENT"
	// ModeNormal is the default profile
	ModeNormal Mode = "NORMAL"
	// ModeCustom takes weights and thresholds from the policy row
	ModeCustom Mode = "CUSTOM"
)

// ParseMode normalizes and validates a mode string
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("unknown mode %q", s)
	}
	return m, nil
}

// Valid reports whether m is one of the four known modes
func (m Mode) Valid() bool {
	switch m {
	case ModeBalance, ModeUrgent, ModeNormal, ModeCustom:
		return true
	}
	return false
}

// String returns the canonical upper-case form
func (m Mode) String() string { return string(m) }

// MeetingType is the categorical booking tag influencing thresholds and priority
type MeetingType string

const (
	// MeetingDR is the sensitive class with the consecutive-assignment rule
	MeetingDR        MeetingType = "DR"
	MeetingVIP       MeetingType = "VIP"
	MeetingWeekly    MeetingType = "Weekly"
	MeetingGeneral   MeetingType = "General"
	MeetingUrgent    MeetingType = "Urgent"
	MeetingOther     MeetingType = "Other"
	MeetingPresident MeetingType = "President"
)

var meetingTypes = map[string]MeetingType{
	"dr":        MeetingDR,
	"vip":       MeetingVIP,
	"weekly":    MeetingWeekly,
	"general":   MeetingGeneral,
	"urgent":    MeetingUrgent,
	"other":     MeetingOther,
	"president": MeetingPresident,
}

// ParseMeetingType maps a string onto its canonical meeting type, case-insensitively
func ParseMeetingType(s string) (MeetingType, error) {
	if mt, ok := meetingTypes[strings.ToLower(strings.TrimSpace(s))]; ok {
		return mt, nil
	}
	return "", fmt.Errorf("unknown meeting type %q", s)
}

// Valid reports whether t is a known meeting type
func (t MeetingType) Valid() bool {
	_, ok := meetingTypes[strings.ToLower(string(t))]
	return ok
}

// String returns the canonical form
func (t MeetingType) String() string { return string(t) }

// Weights are the scoring weights combined by the ranker
type Weights struct {
	Fair    float64
	Urgency float64
	LRS     float64
}

// WeightMin and WeightMax bound each weight; policy writes clamp into this range
const (
	WeightMin = 0.0
	WeightMax = 5.0
)

var lockedWeights = map[Mode]Weights{
	ModeBalance: {Fair: 2.0, Urgency: 0.5, LRS: 0.8},
	ModeNormal:  {Fair: 1.2, Urgency: 1.0, LRS: 0.6},
	ModeUrgent:  {Fair: 0.5, Urgency: 2.0, LRS: 0.3},
}

// LockedWeights returns the fixed weights for m. CUSTOM carries no locked
// weights; ok is false and the caller reads the policy row instead
func LockedWeights(m Mode) (Weights, bool) {
	w, ok := lockedWeights[m]
	return w, ok
}

// Priority returns the pool processing priority for m (1 is highest)
func Priority(m Mode) int {
	switch m {
	case ModeUrgent:
		return 1
	case ModeBalance:
		return 2
	default:
		return 3
	}
}

// Thresholds are the urgency/general day thresholds for a (meeting type, mode) pair
type Thresholds struct {
	UrgentDays  int
	GeneralDays int
}

// defaultThresholds back every meeting type absent a configured row
var defaultThresholds = Thresholds{UrgentDays: 10, GeneralDays: 15}

// DefaultThresholds returns the built-in fallback thresholds for mt
func DefaultThresholds(MeetingType) Thresholds { return defaultThresholds }

// ThresholdDays returns the pool threshold for m given the resolved general
// threshold. customDays applies only in CUSTOM mode; non-positive custom
// values fall back to the general threshold
func ThresholdDays(m Mode, generalDays, customDays int) int {
	switch m {
	case ModeUrgent:
		return 0
	case ModeBalance:
		if generalDays < 3 {
			return 3
		}
		return generalDays
	case ModeCustom:
		if customDays > 0 {
			return customDays
		}
		return generalDays
	default:
		return generalDays
	}
}

// DeadlineOverrideWindow is the span before a booking's start inside which
// it is decided immediately regardless of threshold
const DeadlineOverrideWindow = 24 * time.Hour

// DeadlineOverride reports whether the booking at start must be decided now
func DeadlineOverride(now, start time.Time) bool {
	return !start.After(now.Add(DeadlineOverrideWindow))
}

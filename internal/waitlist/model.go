package waitlist

import (
	"time"

	"github.com/google/uuid"
)

type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Rank gives the fixed sort order: urgent(0) < high(1) < normal(2) < low(3).
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 3
	}
	return 4
}

func ValidPriority(p Priority) bool {
	return p.Rank() < 4
}

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusNotified  Status = "notified"
	StatusConfirmed Status = "confirmed"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

func IsTerminal(s Status) bool {
	switch s {
	case StatusConfirmed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// CanAdvance encodes the forward-only lifecycle:
// waiting -> notified -> confirmed | expired, with cancelled reachable from
// any non-terminal state.
func CanAdvance(from, to Status) bool {
	if to == StatusCancelled {
		return !IsTerminal(from)
	}
	switch from {
	case StatusWaiting:
		return to == StatusNotified
	case StatusNotified:
		return to == StatusConfirmed || to == StatusExpired
	}
	return false
}

// Entry is a patient waiting for a freed interval with a given doctor.
type Entry struct {
	ID       uuid.UUID
	DoctorID uuid.UUID
	OfficeID *uuid.UUID
	// A registered patient may be linked; walk-ins carry only name and phone.
	PatientID             *uuid.UUID
	PatientName           string
	PatientPhone          string
	ProcedureType         string
	ProcedureCode         *string
	EstimatedDurationMins int
	Priority              Priority
	PreferredDays         []time.Weekday
	// Preferred window in minutes since midnight, both set or both nil.
	PreferredStartMins *int
	PreferredEndMins   *int
	Status             Status
	NotifiedAt         *time.Time
	ConfirmedAt        *time.Time
	Notes              string
	CreatedAt          time.Time
}

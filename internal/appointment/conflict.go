package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/scheduling-engine/internal/availability"
)

// ConflictResult reports whether a candidate interval collides with existing
// reservations and, when it does, with which appointment.
type ConflictResult struct {
	Conflicted             bool
	ConflictingAppointment *uuid.UUID
	BlockedByTimeBlock     bool
}

// ConflictInput is everything the detector looks at. It is pure: callers load
// the doctor's state and hand it over, which keeps the invariant testable
// without a store.
type ConflictInput struct {
	Candidate Interval
	Kind      VisitKind
	// Existing non-cancelled appointments for the doctor across all offices;
	// a doctor cannot be in two offices at once.
	Existing []Appointment
	Kinds    *KindRegistry
	// Blocks active for the doctor around the candidate.
	Blocks []availability.TimeBlock
	// ExcludeAppointmentID lets a reschedule-in-place ignore the appointment
	// being moved.
	ExcludeAppointmentID *uuid.UUID
}

// DetectConflict checks the candidate against buffered appointment intervals
// and block occurrences using half-open overlap. Back-to-back intervals with
// an equal boundary never conflict.
func DetectConflict(in ConflictInput) ConflictResult {
	reserved := Interval{
		Start: in.Candidate.Start.Add(-minutes(in.Kind.BufferBeforeMins)),
		End:   in.Candidate.End.Add(minutes(in.Kind.BufferAfterMins)),
	}

	if !in.Kind.AllowsConcurrency {
		for _, existing := range in.Existing {
			if existing.Status == StatusCancelled {
				continue
			}
			if in.ExcludeAppointmentID != nil && existing.ID == *in.ExcludeAppointmentID {
				continue
			}
			existingKind := in.Kinds.Lookup(existing.Kind)
			if existingKind.AllowsConcurrency {
				continue
			}
			if reserved.Overlaps(ReservedInterval(existing, existingKind)) {
				id := existing.ID
				return ConflictResult{Conflicted: true, ConflictingAppointment: &id}
			}
		}
	}

	for _, block := range in.Blocks {
		for _, occ := range block.OccurrencesBetween(reserved.Start, reserved.End) {
			if occ.Overlaps(reserved.Start, reserved.End) {
				return ConflictResult{Conflicted: true, BlockedByTimeBlock: true}
			}
		}
	}

	return ConflictResult{}
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

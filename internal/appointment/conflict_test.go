package appointment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/scheduling-engine/internal/availability"
)

var day = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func clock(hour, min int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

func existingAppt(start time.Time, durationMins int, kind string) Appointment {
	return Appointment{
		ID:           uuid.New(),
		DoctorID:     uuid.New(),
		Start:        start,
		DurationMins: durationMins,
		Status:       StatusConfirmed,
		Kind:         kind,
	}
}

func TestDetectConflictHalfOpenBoundaries(t *testing.T) {
	kinds := DefaultKinds()
	existing := existingAppt(clock(9, 30), 30, "consulta")

	// Back-to-back: [9:00, 9:30) against [9:30, 10:00) does not conflict.
	res := DetectConflict(ConflictInput{
		Candidate: Interval{Start: clock(9, 0), End: clock(9, 30)},
		Kind:      kinds.Lookup("consulta"),
		Existing:  []Appointment{existing},
		Kinds:     kinds,
	})
	assert.False(t, res.Conflicted)

	// One overlapping minute: [9:00, 9:31) against [9:30, 10:00) conflicts.
	res = DetectConflict(ConflictInput{
		Candidate: Interval{Start: clock(9, 0), End: clock(9, 31)},
		Kind:      kinds.Lookup("consulta"),
		Existing:  []Appointment{existing},
		Kinds:     kinds,
	})
	require.True(t, res.Conflicted)
	require.NotNil(t, res.ConflictingAppointment)
	assert.Equal(t, existing.ID, *res.ConflictingAppointment)
}

func TestDetectConflictRespectsBuffers(t *testing.T) {
	kinds := DefaultKinds()
	// procedimiento reserves 10 minutes before and 15 after its interval.
	existing := existingAppt(clock(10, 0), 60, "procedimiento")

	// Ends exactly at the visible start, but inside the buffer-before.
	res := DetectConflict(ConflictInput{
		Candidate: Interval{Start: clock(9, 30), End: clock(10, 0)},
		Kind:      kinds.Lookup("consulta"),
		Existing:  []Appointment{existing},
		Kinds:     kinds,
	})
	assert.True(t, res.Conflicted, "buffer-before must block adjacent booking")

	// Clear of the buffer entirely.
	res = DetectConflict(ConflictInput{
		Candidate: Interval{Start: clock(9, 0), End: clock(9, 50)},
		Kind:      kinds.Lookup("consulta"),
		Existing:  []Appointment{existing},
		Kinds:     kinds,
	})
	assert.False(t, res.Conflicted)
}

func TestDetectConflictIgnoresCancelled(t *testing.T) {
	kinds := DefaultKinds()
	cancelled := existingAppt(clock(9, 0), 30, "consulta")
	cancelled.Status = StatusCancelled

	res := DetectConflict(ConflictInput{
		Candidate: Interval{Start: clock(9, 0), End: clock(9, 30)},
		Kind:      kinds.Lookup("consulta"),
		Existing:  []Appointment{cancelled},
		Kinds:     kinds,
	})
	assert.False(t, res.Conflicted)
}

func TestDetectConflictExcludesRescheduledAppointment(t *testing.T) {
	kinds := DefaultKinds()
	existing := existingAppt(clock(9, 0), 30, "consulta")

	res := DetectConflict(ConflictInput{
		Candidate:            Interval{Start: clock(9, 0), End: clock(9, 30)},
		Kind:                 kinds.Lookup("consulta"),
		Existing:             []Appointment{existing},
		Kinds:                kinds,
		ExcludeAppointmentID: &existing.ID,
	})
	assert.False(t, res.Conflicted, "reschedule-in-place ignores the moved appointment")
}

func TestDetectConflictTelemedicineConcurrency(t *testing.T) {
	kinds := DefaultKinds()
	tele := existingAppt(clock(9, 0), 20, "telemedicina")

	// A telemedicine visit in the calendar does not block an in-person one,
	// and a telemedicine candidate does not collide with anything.
	res := DetectConflict(ConflictInput{
		Candidate: Interval{Start: clock(9, 0), End: clock(9, 30)},
		Kind:      kinds.Lookup("consulta"),
		Existing:  []Appointment{tele},
		Kinds:     kinds,
	})
	assert.False(t, res.Conflicted)

	inPerson := existingAppt(clock(9, 0), 30, "consulta")
	res = DetectConflict(ConflictInput{
		Candidate: Interval{Start: clock(9, 0), End: clock(9, 20)},
		Kind:      kinds.Lookup("telemedicina"),
		Existing:  []Appointment{inPerson},
		Kinds:     kinds,
	})
	assert.False(t, res.Conflicted)
}

func TestDetectConflictAgainstTimeBlock(t *testing.T) {
	kinds := DefaultKinds()
	lunch := availability.TimeBlock{
		ID:       uuid.New(),
		Kind:     availability.BlockLunch,
		Start:    clock(12, 0),
		End:      clock(13, 0),
		IsActive: true,
	}

	res := DetectConflict(ConflictInput{
		Candidate: Interval{Start: clock(12, 30), End: clock(13, 0)},
		Kind:      kinds.Lookup("consulta"),
		Blocks:    []availability.TimeBlock{lunch},
		Kinds:     kinds,
	})
	require.True(t, res.Conflicted)
	assert.True(t, res.BlockedByTimeBlock)

	// Right after lunch is fine.
	res = DetectConflict(ConflictInput{
		Candidate: Interval{Start: clock(13, 0), End: clock(13, 30)},
		Kind:      kinds.Lookup("consulta"),
		Blocks:    []availability.TimeBlock{lunch},
		Kinds:     kinds,
	})
	assert.False(t, res.Conflicted)
}

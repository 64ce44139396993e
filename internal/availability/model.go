package availability

import (
	"time"

	"github.com/google/uuid"
)

// MinDurationMins is the smallest bookable appointment duration.
const MinDurationMins = 5

// TimeRange is a half-open [Start, End) range expressed in minutes since
// local midnight, e.g. 09:00-12:00 is {540, 720}.
type TimeRange struct {
	StartMins int `json:"start_mins"`
	EndMins   int `json:"end_mins"`
}

// WeekdayTemplate is one day of a doctor's recurring weekly schedule.
// Templates are never destroyed, only toggled inactive.
type WeekdayTemplate struct {
	ID                  uuid.UUID
	DoctorID            uuid.UUID
	OfficeID            *uuid.UUID
	Weekday             time.Weekday
	IsWorkingDay        bool
	Intervals           []TimeRange
	DefaultDurationMins int
	BufferAfterMins     int
	MaxAppointments     *int
	IsActive            bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type BlockKind string

const (
	BlockVacation       BlockKind = "vacaciones"
	BlockLunch          BlockKind = "almuerzo"
	BlockMeeting        BlockKind = "reunion"
	BlockPrep           BlockKind = "preparacion"
	BlockAdministrative BlockKind = "administrativa"
	BlockEmergency      BlockKind = "emergencia"
	BlockGeneric        BlockKind = "bloqueo"
)

func ValidBlockKind(k BlockKind) bool {
	switch k {
	case BlockVacation, BlockLunch, BlockMeeting, BlockPrep,
		BlockAdministrative, BlockEmergency, BlockGeneric:
		return true
	}
	return false
}

// Recurrence repeats a block weekly on the given weekdays. Until is required
// so expansion is always bounded.
type Recurrence struct {
	Weekdays []time.Weekday `json:"weekdays"`
	Until    time.Time      `json:"until"`
}

// TimeBlock is an ad-hoc exception to the weekly template: vacation, lunch,
// meetings and the like. Deleting a block is a soft deactivate.
type TimeBlock struct {
	ID          uuid.UUID
	DoctorID    uuid.UUID
	OfficeID    *uuid.UUID
	Kind        BlockKind
	Title       string
	Description *string
	Start       time.Time
	End         time.Time
	AllDay      bool
	Recurrence  *Recurrence
	IsActive    bool
	CreatedAt   time.Time
}

// Busy is a reserved half-open interval: a block occurrence or a committed
// appointment expanded by its buffers.
type Busy struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether [start, end) intersects the busy interval.
// Equal boundaries do not overlap, so back-to-back bookings are fine.
func (b Busy) Overlaps(start, end time.Time) bool {
	return start.Before(b.End) && b.Start.Before(end)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func minutesIntoDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// OccurrencesBetween expands the block into concrete busy intervals
// intersecting [from, to). Recurring blocks are expanded lazily and clipped
// to min(to, recurrence.until); they are never materialized further out.
func (b TimeBlock) OccurrencesBetween(from, to time.Time) []Busy {
	if !b.IsActive {
		return nil
	}

	if b.Recurrence == nil {
		start, end := b.Start, b.End
		if b.AllDay {
			start = startOfDay(b.Start)
			end = startOfDay(b.End).AddDate(0, 0, 1)
		}
		if start.Before(to) && from.Before(end) {
			return []Busy{{Start: start, End: end}}
		}
		return nil
	}

	horizon := to
	if b.Recurrence.Until.Before(horizon) {
		// Until marks the last day the block repeats on.
		horizon = startOfDay(b.Recurrence.Until).AddDate(0, 0, 1)
	}

	days := make(map[time.Weekday]bool, len(b.Recurrence.Weekdays))
	for _, wd := range b.Recurrence.Weekdays {
		days[wd] = true
	}

	startMins := minutesIntoDay(b.Start)
	endMins := minutesIntoDay(b.End)

	var out []Busy
	for d := startOfDay(from); d.Before(horizon); d = d.AddDate(0, 0, 1) {
		if !days[d.Weekday()] {
			continue
		}
		if d.AddDate(0, 0, 1).Before(b.Start) || d.AddDate(0, 0, 1).Equal(b.Start) {
			continue
		}

		var occ Busy
		if b.AllDay {
			occ = Busy{Start: d, End: d.AddDate(0, 0, 1)}
		} else {
			occ = Busy{
				Start: d.Add(time.Duration(startMins) * time.Minute),
				End:   d.Add(time.Duration(endMins) * time.Minute),
			}
		}
		if occ.Start.Before(to) && from.Before(occ.End) {
			out = append(out, occ)
		}
	}
	return out
}

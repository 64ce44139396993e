package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pendiente"
	StatusConfirmed Status = "confirmada"
	StatusCompleted Status = "completada"
	StatusCancelled Status = "cancelada"
	StatusNoShow    Status = "no_asistio"
)

// Role is the actor requesting a mutation. Transition legality depends on it.
type Role string

const (
	RoleDoctor  Role = "medico"
	RoleStaff   Role = "secretaria"
	RolePatient Role = "paciente"
	RoleSystem  Role = "system"
)

func ValidRole(r Role) bool {
	switch r {
	case RoleDoctor, RoleStaff, RolePatient, RoleSystem:
		return true
	}
	return false
}

// Appointment is never physically deleted; cancellation is a status change so
// the history stays intact.
type Appointment struct {
	ID       uuid.UUID
	DoctorID uuid.UUID
	OfficeID *uuid.UUID
	// Exactly one of PatientID / OfflinePatientID is set.
	PatientID        *uuid.UUID
	OfflinePatientID *uuid.UUID
	Start            time.Time
	DurationMins     int
	Status           Status
	Kind             string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// End is the visible end of the appointment, buffers excluded.
func (a Appointment) End() time.Time {
	return a.Start.Add(time.Duration(a.DurationMins) * time.Minute)
}

// VisitKind describes a visit type: its default duration and the buffer it
// reserves around the visible interval. Buffers block adjacent bookings but
// are not shown to the patient.
type VisitKind struct {
	Code                string
	DefaultDurationMins int
	BufferBeforeMins    int
	BufferAfterMins     int
	// AllowsConcurrency exempts the kind from the one-office-at-a-time rule
	// (telemedicine).
	AllowsConcurrency bool
}

// KindRegistry resolves visit kind codes. Unknown codes fall back to the
// plain consultation kind so a booking never fails on an unseen code.
type KindRegistry struct {
	kinds    map[string]VisitKind
	fallback VisitKind
}

func DefaultKinds() *KindRegistry {
	consulta := VisitKind{Code: "consulta", DefaultDurationMins: 30}
	kinds := []VisitKind{
		consulta,
		{Code: "limpieza", DefaultDurationMins: 45, BufferAfterMins: 10},
		{Code: "procedimiento", DefaultDurationMins: 60, BufferBeforeMins: 10, BufferAfterMins: 15},
		{Code: "urgencia", DefaultDurationMins: 30},
		{Code: "seguimiento", DefaultDurationMins: 15},
		{Code: "telemedicina", DefaultDurationMins: 20, AllowsConcurrency: true},
	}

	m := make(map[string]VisitKind, len(kinds))
	for _, k := range kinds {
		m[k.Code] = k
	}
	return &KindRegistry{kinds: m, fallback: consulta}
}

func (r *KindRegistry) Lookup(code string) VisitKind {
	if k, ok := r.kinds[code]; ok {
		return k
	}
	return r.fallback
}

// Interval is a half-open [Start, End) reservation.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps uses the half-open rule: equal boundaries do not collide.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// ReservedInterval is the appointment's interval expanded by its kind's
// buffers. This is what the overlap invariant is enforced on.
func ReservedInterval(a Appointment, kind VisitKind) Interval {
	return Interval{
		Start: a.Start.Add(-time.Duration(kind.BufferBeforeMins) * time.Minute),
		End:   a.End().Add(time.Duration(kind.BufferAfterMins) * time.Minute),
	}
}

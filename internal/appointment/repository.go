package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// ListActiveForDoctor returns the doctor's non-cancelled appointments
	// overlapping [from, to), regardless of office.
	ListActiveForDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error)

	// Create inserts a new appointment in its initial status.
	Create(ctx context.Context, appt Appointment) (*Appointment, error)

	// UpdateStatus is compare-and-swap: it only applies when the stored
	// status still equals from, and reports ErrAppointmentNotFound otherwise.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	// FindNoShowCandidates returns pending/confirmed appointments whose end
	// passed before the cutoff. Used by the lifecycle worker.
	FindNoShowCandidates(ctx context.Context, endedBefore time.Time) ([]Appointment, error)
}

package eventbus

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Event types appended to the schedule event log. External collaborators
// (reminder/notification systems) drain these; the core never contacts a
// messaging provider itself.
const (
	TypeAppointmentChanged = "appointment.changed"
	TypeSlotFreed          = "slot.freed"
	TypeWaitlistNotified   = "waitlist.notified"
	TypeWaitlistExpired    = "waitlist.expired"
)

// Event is one durable entry of a doctor's ordered event log. Seq is assigned
// by the store and strictly increases per append.
type Event struct {
	Seq       int64           `json:"seq"`
	DoctorID  uuid.UUID       `json:"doctor_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Payloads

type AppointmentChanged struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	OldStatus     string    `json:"old_status"`
	NewStatus     string    `json:"new_status"`
	Actor         string    `json:"actor"`
}

// SlotFreed is emitted whenever an appointment transitions into cancelada.
// It is a value object, not a persisted record of its own.
type SlotFreed struct {
	DoctorID     uuid.UUID  `json:"doctor_id"`
	OfficeID     *uuid.UUID `json:"office_id,omitempty"`
	Start        time.Time  `json:"start"`
	DurationMins int        `json:"duration_mins"`
}

// SlotKey identifies the freed interval for idempotency bookkeeping. Duration
// and office are part of the identity: a longer slot freed at the same start
// is a different slot.
func (s SlotFreed) SlotKey() string {
	key := s.DoctorID.String() + "/" + s.Start.UTC().Format(time.RFC3339) + "/" + strconv.Itoa(s.DurationMins)
	if s.OfficeID != nil {
		key += "/" + s.OfficeID.String()
	}
	return key
}

type WaitlistNotified struct {
	EntryID      uuid.UUID  `json:"entry_id"`
	OfficeID     *uuid.UUID `json:"office_id,omitempty"`
	Start        time.Time  `json:"start"`
	DurationMins int        `json:"duration_mins"`
}

type WaitlistExpired struct {
	EntryID uuid.UUID `json:"entry_id"`
}

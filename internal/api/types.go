package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/scheduling-engine/internal/appointment"
	"github.com/clinicdesk/scheduling-engine/internal/availability"
	"github.com/clinicdesk/scheduling-engine/internal/waitlist"
)

type BookAppointmentRequest struct {
	DoctorID         string    `json:"doctor_id"`
	OfficeID         *string   `json:"office_id,omitempty"`
	PatientID        *string   `json:"patient_id,omitempty"`
	OfflinePatientID *string   `json:"offline_patient_id,omitempty"`
	Start            time.Time `json:"start"`
	DurationMins     int       `json:"duration_mins,omitempty"`
	Kind             string    `json:"kind"`
	Role             string    `json:"role"`
}

type TransitionRequest struct {
	To   string `json:"to"`
	Role string `json:"role"`
}

type AppointmentResponse struct {
	ID               uuid.UUID  `json:"id"`
	DoctorID         uuid.UUID  `json:"doctor_id"`
	OfficeID         *uuid.UUID `json:"office_id,omitempty"`
	PatientID        *uuid.UUID `json:"patient_id,omitempty"`
	OfflinePatientID *uuid.UUID `json:"offline_patient_id,omitempty"`
	Start            time.Time  `json:"start"`
	End              time.Time  `json:"end"`
	DurationMins     int        `json:"duration_mins"`
	Status           string     `json:"status"`
	Kind             string     `json:"kind"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:               a.ID,
		DoctorID:         a.DoctorID,
		OfficeID:         a.OfficeID,
		PatientID:        a.PatientID,
		OfflinePatientID: a.OfflinePatientID,
		Start:            a.Start,
		End:              a.End(),
		DurationMins:     a.DurationMins,
		Status:           string(a.Status),
		Kind:             a.Kind,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

type AvailabilityResponse struct {
	DoctorID uuid.UUID           `json:"doctor_id"`
	From     time.Time           `json:"from"`
	To       time.Time           `json:"to"`
	Slots    []availability.Slot `json:"slots"`
}

type WeekdayTemplateRequest struct {
	Weekday             int                     `json:"weekday"`
	IsWorkingDay        bool                    `json:"is_working_day"`
	Intervals           []availability.TimeRange `json:"intervals"`
	DefaultDurationMins int                     `json:"default_duration_mins"`
	BufferAfterMins     int                     `json:"buffer_after_mins"`
	MaxAppointments     *int                    `json:"max_appointments,omitempty"`
	IsActive            bool                    `json:"is_active"`
}

type PutScheduleRequest struct {
	OfficeID *string                  `json:"office_id,omitempty"`
	Days     []WeekdayTemplateRequest `json:"days"`
}

type WeekdayTemplateResponse struct {
	ID                  uuid.UUID                `json:"id"`
	DoctorID            uuid.UUID                `json:"doctor_id"`
	OfficeID            *uuid.UUID               `json:"office_id,omitempty"`
	Weekday             int                      `json:"weekday"`
	IsWorkingDay        bool                     `json:"is_working_day"`
	Intervals           []availability.TimeRange `json:"intervals"`
	DefaultDurationMins int                      `json:"default_duration_mins"`
	BufferAfterMins     int                      `json:"buffer_after_mins"`
	MaxAppointments     *int                     `json:"max_appointments,omitempty"`
	IsActive            bool                     `json:"is_active"`
}

func toTemplateResponse(d availability.WeekdayTemplate) WeekdayTemplateResponse {
	return WeekdayTemplateResponse{
		ID:                  d.ID,
		DoctorID:            d.DoctorID,
		OfficeID:            d.OfficeID,
		Weekday:             int(d.Weekday),
		IsWorkingDay:        d.IsWorkingDay,
		Intervals:           d.Intervals,
		DefaultDurationMins: d.DefaultDurationMins,
		BufferAfterMins:     d.BufferAfterMins,
		MaxAppointments:     d.MaxAppointments,
		IsActive:            d.IsActive,
	}
}

type CreateBlockRequest struct {
	DoctorID    string                   `json:"doctor_id"`
	OfficeID    *string                  `json:"office_id,omitempty"`
	Kind        string                   `json:"kind"`
	Title       string                   `json:"title"`
	Description *string                  `json:"description,omitempty"`
	Start       time.Time                `json:"start"`
	End         time.Time                `json:"end"`
	AllDay      bool                     `json:"all_day"`
	Recurrence  *availability.Recurrence `json:"recurrence,omitempty"`
}

type BlockResponse struct {
	ID          uuid.UUID                `json:"id"`
	DoctorID    uuid.UUID                `json:"doctor_id"`
	OfficeID    *uuid.UUID               `json:"office_id,omitempty"`
	Kind        string                   `json:"kind"`
	Title       string                   `json:"title"`
	Description *string                  `json:"description,omitempty"`
	Start       time.Time                `json:"start"`
	End         time.Time                `json:"end"`
	AllDay      bool                     `json:"all_day"`
	Recurrence  *availability.Recurrence `json:"recurrence,omitempty"`
	IsActive    bool                     `json:"is_active"`
	CreatedAt   time.Time                `json:"created_at"`
}

func toBlockResponse(b *availability.TimeBlock) BlockResponse {
	return BlockResponse{
		ID:          b.ID,
		DoctorID:    b.DoctorID,
		OfficeID:    b.OfficeID,
		Kind:        string(b.Kind),
		Title:       b.Title,
		Description: b.Description,
		Start:       b.Start,
		End:         b.End,
		AllDay:      b.AllDay,
		Recurrence:  b.Recurrence,
		IsActive:    b.IsActive,
		CreatedAt:   b.CreatedAt,
	}
}

type AddWaitlistRequest struct {
	DoctorID              string  `json:"doctor_id"`
	OfficeID              *string `json:"office_id,omitempty"`
	PatientID             *string `json:"patient_id,omitempty"`
	PatientName           string  `json:"patient_name"`
	PatientPhone          string  `json:"patient_phone"`
	ProcedureType         string  `json:"procedure_type"`
	ProcedureCode         *string `json:"procedure_code,omitempty"`
	EstimatedDurationMins int     `json:"estimated_duration_mins"`
	Priority              string  `json:"priority"`
	PreferredDays         []int   `json:"preferred_days,omitempty"`
	PreferredStartMins    *int    `json:"preferred_start_mins,omitempty"`
	PreferredEndMins      *int    `json:"preferred_end_mins,omitempty"`
	Notes                 string  `json:"notes,omitempty"`
}

type AdvanceWaitlistRequest struct {
	To string `json:"to"`
}

type WaitlistEntryResponse struct {
	ID                    uuid.UUID  `json:"id"`
	DoctorID              uuid.UUID  `json:"doctor_id"`
	OfficeID              *uuid.UUID `json:"office_id,omitempty"`
	PatientID             *uuid.UUID `json:"patient_id,omitempty"`
	PatientName           string     `json:"patient_name"`
	PatientPhone          string     `json:"patient_phone"`
	ProcedureType         string     `json:"procedure_type"`
	ProcedureCode         *string    `json:"procedure_code,omitempty"`
	EstimatedDurationMins int        `json:"estimated_duration_mins"`
	Priority              string     `json:"priority"`
	PreferredDays         []int      `json:"preferred_days,omitempty"`
	PreferredStartMins    *int       `json:"preferred_start_mins,omitempty"`
	PreferredEndMins      *int       `json:"preferred_end_mins,omitempty"`
	Status                string     `json:"status"`
	NotifiedAt            *time.Time `json:"notified_at,omitempty"`
	ConfirmedAt           *time.Time `json:"confirmed_at,omitempty"`
	Notes                 string     `json:"notes,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
}

func toWaitlistResponse(e *waitlist.Entry) WaitlistEntryResponse {
	days := make([]int, 0, len(e.PreferredDays))
	for _, d := range e.PreferredDays {
		days = append(days, int(d))
	}
	return WaitlistEntryResponse{
		ID:                    e.ID,
		DoctorID:              e.DoctorID,
		OfficeID:              e.OfficeID,
		PatientID:             e.PatientID,
		PatientName:           e.PatientName,
		PatientPhone:          e.PatientPhone,
		ProcedureType:         e.ProcedureType,
		ProcedureCode:         e.ProcedureCode,
		EstimatedDurationMins: e.EstimatedDurationMins,
		Priority:              string(e.Priority),
		PreferredDays:         days,
		PreferredStartMins:    e.PreferredStartMins,
		PreferredEndMins:      e.PreferredEndMins,
		Status:                string(e.Status),
		NotifiedAt:            e.NotifiedAt,
		ConfirmedAt:           e.ConfirmedAt,
		Notes:                 e.Notes,
		CreatedAt:             e.CreatedAt,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

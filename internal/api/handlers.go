package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicdesk/scheduling-engine/internal/appointment"
	"github.com/clinicdesk/scheduling-engine/internal/availability"
	"github.com/clinicdesk/scheduling-engine/internal/eventbus"
	redisclient "github.com/clinicdesk/scheduling-engine/internal/redis"
	"github.com/clinicdesk/scheduling-engine/internal/waitlist"
)

func getAvailabilityHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		doctorID, err := uuid.Parse(q.Get("doctor_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		var officeID *uuid.UUID
		if raw := q.Get("office_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_office_id", "office_id must be a valid UUID")
				return
			}
			officeID = &id
		}

		from, err := time.Parse(time.RFC3339, q.Get("from"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from", "from must be RFC3339")
			return
		}
		to, err := time.Parse(time.RFC3339, q.Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_to", "to must be RFC3339")
			return
		}

		durationMins := 0
		if raw := q.Get("duration_mins"); raw != "" {
			durationMins, err = strconv.Atoi(raw)
			if err != nil || durationMins < 0 {
				writeError(w, http.StatusBadRequest, "invalid_duration", "duration_mins must be a non-negative integer")
				return
			}
		}

		slots, err := svc.GetAvailability(r.Context(), doctorID, officeID, from, to, durationMins)
		if err != nil {
			var ivErr *appointment.InvalidIntervalError
			if errors.As(err, &ivErr) {
				writeError(w, http.StatusBadRequest, "invalid_range", ivErr.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		if slots == nil {
			slots = []availability.Slot{}
		}

		writeJSON(w, http.StatusOK, AvailabilityResponse{
			DoctorID: doctorID,
			From:     from,
			To:       to,
			Slots:    slots,
		})
	}
}

func bookAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		role := appointment.Role(req.Role)
		if !appointment.ValidRole(role) {
			writeError(w, http.StatusBadRequest, "invalid_role", "unknown actor role")
			return
		}

		officeID, err := parseOptionalUUID(req.OfficeID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_office_id", "office_id must be a valid UUID")
			return
		}
		patientID, err := parseOptionalUUID(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		offlineID, err := parseOptionalUUID(req.OfflinePatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_offline_patient_id", "offline_patient_id must be a valid UUID")
			return
		}

		appt, err := svc.Book(r.Context(), appointment.BookRequest{
			DoctorID:         doctorID,
			OfficeID:         officeID,
			PatientID:        patientID,
			OfflinePatientID: offlineID,
			Start:            req.Start,
			DurationMins:     req.DurationMins,
			Kind:             req.Kind,
			Actor:            role,
		})
		if err != nil {
			handleBookError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, appointment.ErrAppointmentNotFound) {
				writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func transitionAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req TransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		role := appointment.Role(req.Role)
		if !appointment.ValidRole(role) {
			writeError(w, http.StatusBadRequest, "invalid_role", "unknown actor role")
			return
		}

		appt, err := svc.Transition(r.Context(), id, appointment.Status(req.To), role)
		if err != nil {
			handleTransitionError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func handleBookError(w http.ResponseWriter, err error) {
	var ivErr *appointment.InvalidIntervalError
	switch {
	case errors.As(err, &ivErr):
		writeError(w, http.StatusBadRequest, "invalid_interval", ivErr.Error())
	case errors.Is(err, appointment.ErrPatientRef):
		writeError(w, http.StatusBadRequest, "invalid_patient_ref", err.Error())
	case errors.Is(err, appointment.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", err.Error())
	case errors.Is(err, appointment.ErrSlotUnavailable):
		// Unlike slot_taken this is not a race: the interval can never be
		// booked as requested.
		writeError(w, http.StatusUnprocessableEntity, "slot_unavailable", err.Error())
	case errors.Is(err, appointment.ErrBookingContended),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "booking_contended", "doctor schedule is busy, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleTransitionError(w http.ResponseWriter, err error) {
	var stErr *appointment.StateTransitionError
	switch {
	case errors.As(err, &stErr):
		writeError(w, http.StatusConflict, "invalid_status_transition", stErr.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func getScheduleHandler(repo availability.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		var officeID *uuid.UUID
		if raw := r.URL.Query().Get("office_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_office_id", "office_id must be a valid UUID")
				return
			}
			officeID = &id
		}

		days, err := repo.GetWeeklyTemplate(r.Context(), doctorID, officeID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]WeekdayTemplateResponse, 0, len(days))
		for _, d := range days {
			resp = append(resp, toTemplateResponse(d))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func putScheduleHandler(repo availability.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		var req PutScheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		officeID, err := parseOptionalUUID(req.OfficeID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_office_id", "office_id must be a valid UUID")
			return
		}

		resp := make([]WeekdayTemplateResponse, 0, len(req.Days))
		for _, day := range req.Days {
			if day.Weekday < 0 || day.Weekday > 6 {
				writeError(w, http.StatusBadRequest, "invalid_weekday", "weekday must be 0 (Sunday) through 6 (Saturday)")
				return
			}
			for _, iv := range day.Intervals {
				if iv.StartMins < 0 || iv.EndMins > 24*60 || iv.StartMins >= iv.EndMins {
					writeError(w, http.StatusBadRequest, "invalid_interval", "intervals must satisfy 0 <= start < end <= 1440")
					return
				}
			}
			if day.IsWorkingDay && day.DefaultDurationMins < availability.MinDurationMins {
				writeError(w, http.StatusBadRequest, "invalid_duration", "default_duration_mins below minimum")
				return
			}

			saved, err := repo.UpsertWeekdayTemplate(r.Context(), availability.WeekdayTemplate{
				DoctorID:            doctorID,
				OfficeID:            officeID,
				Weekday:             time.Weekday(day.Weekday),
				IsWorkingDay:        day.IsWorkingDay,
				Intervals:           day.Intervals,
				DefaultDurationMins: day.DefaultDurationMins,
				BufferAfterMins:     day.BufferAfterMins,
				MaxAppointments:     day.MaxAppointments,
				IsActive:            day.IsActive,
			})
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
				return
			}
			resp = append(resp, toTemplateResponse(*saved))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func createBlockHandler(repo availability.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateBlockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		officeID, err := parseOptionalUUID(req.OfficeID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_office_id", "office_id must be a valid UUID")
			return
		}

		kind := availability.BlockKind(req.Kind)
		if !availability.ValidBlockKind(kind) {
			writeError(w, http.StatusBadRequest, "invalid_block_kind", "unknown block kind")
			return
		}
		if !req.AllDay && !req.End.After(req.Start) {
			writeError(w, http.StatusBadRequest, "invalid_interval", "end must be after start")
			return
		}
		if req.Recurrence != nil {
			if len(req.Recurrence.Weekdays) == 0 || req.Recurrence.Until.IsZero() {
				writeError(w, http.StatusBadRequest, "invalid_recurrence", "recurrence needs weekdays and an until date")
				return
			}
		}

		block, err := repo.CreateBlock(r.Context(), availability.TimeBlock{
			DoctorID:    doctorID,
			OfficeID:    officeID,
			Kind:        kind,
			Title:       req.Title,
			Description: req.Description,
			Start:       req.Start,
			End:         req.End,
			AllDay:      req.AllDay,
			Recurrence:  req.Recurrence,
			IsActive:    true,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusCreated, toBlockResponse(block))
	}
}

func listBlocksHandler(repo availability.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		doctorID, err := uuid.Parse(q.Get("doctor_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		from, err := time.Parse(time.RFC3339, q.Get("from"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from", "from must be RFC3339")
			return
		}
		to, err := time.Parse(time.RFC3339, q.Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_to", "to must be RFC3339")
			return
		}

		blocks, err := repo.ListActiveBlocks(r.Context(), doctorID, from, to)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]BlockResponse, 0, len(blocks))
		for i := range blocks {
			resp = append(resp, toBlockResponse(&blocks[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func deleteBlockHandler(repo availability.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_block_id", "id must be a valid UUID")
			return
		}

		if err := repo.DeactivateBlock(r.Context(), id); err != nil {
			if errors.Is(err, availability.ErrBlockNotFound) {
				writeError(w, http.StatusNotFound, "block_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func addWaitlistHandler(svc *waitlist.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddWaitlistRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		officeID, err := parseOptionalUUID(req.OfficeID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_office_id", "office_id must be a valid UUID")
			return
		}
		patientID, err := parseOptionalUUID(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		days := make([]time.Weekday, 0, len(req.PreferredDays))
		for _, d := range req.PreferredDays {
			if d < 0 || d > 6 {
				writeError(w, http.StatusBadRequest, "invalid_weekday", "preferred_days entries must be 0 through 6")
				return
			}
			days = append(days, time.Weekday(d))
		}

		entry, err := svc.Add(r.Context(), waitlist.Entry{
			DoctorID:              doctorID,
			OfficeID:              officeID,
			PatientID:             patientID,
			PatientName:           req.PatientName,
			PatientPhone:          req.PatientPhone,
			ProcedureType:         req.ProcedureType,
			ProcedureCode:         req.ProcedureCode,
			EstimatedDurationMins: req.EstimatedDurationMins,
			Priority:              waitlist.Priority(req.Priority),
			PreferredDays:         days,
			PreferredStartMins:    req.PreferredStartMins,
			PreferredEndMins:      req.PreferredEndMins,
			Notes:                 req.Notes,
		})
		if err != nil {
			if errors.Is(err, waitlist.ErrInvalidEntry) {
				writeError(w, http.StatusBadRequest, "invalid_waitlist_entry", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusCreated, toWaitlistResponse(entry))
	}
}

func listWaitlistHandler(svc *waitlist.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		doctorID, err := uuid.Parse(q.Get("doctor_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		var statuses []waitlist.Status
		for _, raw := range q["status"] {
			statuses = append(statuses, waitlist.Status(raw))
		}

		entries, err := svc.List(r.Context(), doctorID, statuses)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]WaitlistEntryResponse, 0, len(entries))
		for i := range entries {
			resp = append(resp, toWaitlistResponse(&entries[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func advanceWaitlistHandler(svc *waitlist.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_entry_id", "id must be a valid UUID")
			return
		}

		var req AdvanceWaitlistRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		entry, err := svc.Advance(r.Context(), id, waitlist.Status(req.To))
		if err != nil {
			switch {
			case errors.Is(err, waitlist.ErrEntryNotFound):
				writeError(w, http.StatusNotFound, "waitlist_entry_not_found", err.Error())
			case errors.Is(err, waitlist.ErrEntryNotEligible):
				writeError(w, http.StatusConflict, "waitlist_entry_not_eligible", err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			}
			return
		}

		writeJSON(w, http.StatusOK, toWaitlistResponse(entry))
	}
}

// listEventsHandler exposes the durable event log so external collaborators
// (reminder and notification systems) can drain it by polling.
func listEventsHandler(bus *eventbus.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		doctorID, err := uuid.Parse(q.Get("doctor_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		var afterSeq int64
		if raw := q.Get("after_seq"); raw != "" {
			afterSeq, err = strconv.ParseInt(raw, 10, 64)
			if err != nil || afterSeq < 0 {
				writeError(w, http.StatusBadRequest, "invalid_after_seq", "after_seq must be a non-negative integer")
				return
			}
		}

		limit := 100
		if raw := q.Get("limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil || limit < 1 || limit > 1000 {
				writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 1000")
				return
			}
		}

		events, err := bus.ListAfter(r.Context(), doctorID, afterSeq, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		if events == nil {
			events = []eventbus.Event{}
		}

		writeJSON(w, http.StatusOK, events)
	}
}

func parseOptionalUUID(raw *string) (*uuid.UUID, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

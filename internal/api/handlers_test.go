package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/scheduling-engine/internal/appointment"
)

func TestHandleBookErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"slot taken", appointment.ErrSlotTaken, http.StatusConflict, "slot_taken"},
		{"slot unavailable", appointment.ErrSlotUnavailable, http.StatusUnprocessableEntity, "slot_unavailable"},
		{"booking contended", appointment.ErrBookingContended, http.StatusConflict, "booking_contended"},
		{"patient ref", appointment.ErrPatientRef, http.StatusBadRequest, "invalid_patient_ref"},
		{"invalid interval", &appointment.InvalidIntervalError{Reason: "start is required"}, http.StatusBadRequest, "invalid_interval"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleBookError(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Error)
		})
	}
}

func TestHandleTransitionErrorStatusMapping(t *testing.T) {
	rec := httptest.NewRecorder()
	handleTransitionError(rec, &appointment.StateTransitionError{
		From: appointment.StatusCompleted,
		To:   appointment.StatusCancelled,
		Role: appointment.RolePatient,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	handleTransitionError(rec, appointment.ErrAppointmentNotFound)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/avery-cole/frontdesk/libs/schedule"
)

type validationResponse struct {
	FieldErrors map[string][]string `json:"field_errors"`
	Errors      []string            `json:"errors"`
}

type conflictResponse struct {
	Overlapping []schedule.Appointment `json:"overlapping_appointments"`
	Proposed    schedule.Appointment   `json:"proposed_appointment"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeValidationError(w http.ResponseWriter, verr *schedule.ValidationError) {
	resp := validationResponse{FieldErrors: verr.Fields, Errors: verr.General}
	if resp.FieldErrors == nil {
		resp.FieldErrors = map[string][]string{}
	}
	if resp.Errors == nil {
		resp.Errors = []string{}
	}
	writeJSON(w, http.StatusUnprocessableEntity, resp)
}

func writeConflict(w http.ResponseWriter, overlapping []schedule.Appointment, proposed schedule.Appointment) {
	if overlapping == nil {
		overlapping = []schedule.Appointment{}
	}
	writeJSON(w, http.StatusConflict, conflictResponse{Overlapping: overlapping, Proposed: proposed})
}

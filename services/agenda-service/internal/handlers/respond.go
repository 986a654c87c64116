package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/avery-cole/frontdesk/libs/schedule"
)

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

type errorResponse struct {
	FieldErrors map[string][]string `json:"field_errors,omitempty"`
	Errors      []string            `json:"errors"`
}

func writeValidationError(w http.ResponseWriter, verr *schedule.ValidationError) {
	writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
		FieldErrors: verr.Fields,
		Errors:      append([]string{}, verr.General...),
	})
}

func writeErrors(w http.ResponseWriter, status int, msgs ...string) {
	writeJSON(w, status, errorResponse{Errors: msgs})
}

package calendarapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/avery-cole/frontdesk/libs/schedule"
)

// The calendar service's error JSON is loosely typed: field messages
// arrive as a string or an array of strings depending on code path,
// and general errors the same way. decodeError flattens every variant
// into the fixed taxonomy so the rest of this service never sees the
// raw shape.
func decodeError(status int, raw []byte) error {
	switch status {
	case http.StatusConflict:
		return decodeConflict(raw)
	case http.StatusUnprocessableEntity:
		return decodeValidation(raw)
	default:
		return fmt.Errorf("%w: calendar service returned %d", schedule.ErrTransport, status)
	}
}

type conflictBody struct {
	Overlapping []schedule.Appointment `json:"overlapping_appointments"`
	Proposed    schedule.Appointment   `json:"proposed_appointment"`
}

func decodeConflict(raw []byte) error {
	var body conflictBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return fmt.Errorf("%w: malformed conflict body: %v", schedule.ErrTransport, err)
	}
	return &schedule.ConflictError{Overlapping: body.Overlapping, Proposed: body.Proposed}
}

type looseValidationBody struct {
	FieldErrors map[string]json.RawMessage `json:"field_errors"`
	Errors      json.RawMessage            `json:"errors"`
	Error       string                     `json:"error"`
}

func decodeValidation(raw []byte) error {
	var body looseValidationBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return fmt.Errorf("%w: malformed validation body: %v", schedule.ErrTransport, err)
	}

	verr := schedule.NewValidationError()
	fields := make([]string, 0, len(body.FieldErrors))
	for field := range body.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		for _, msg := range looseStrings(body.FieldErrors[field]) {
			verr.Add(field, msg)
		}
	}
	for _, msg := range looseStrings(body.Errors) {
		verr.Add("", msg)
	}
	if body.Error != "" {
		verr.Add("", body.Error)
	}
	if verr.Empty() {
		verr.Add("", "request rejected by calendar service")
	}
	return verr
}

// looseStrings accepts "msg", ["a","b"], or anything else (rendered
// verbatim) and always yields a flat list.
func looseStrings(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single == "" {
			return nil
		}
		return []string{single}
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		out := many[:0]
		for _, m := range many {
			if m != "" {
				out = append(out, m)
			}
		}
		return out
	}
	return []string{string(raw)}
}

package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidDate marks an unparseable or impossible calendar date.
	ErrInvalidDate = errors.New("invalid date")
	// ErrInvalidRange marks an availability window whose bounds or slot
	// duration are out of range.
	ErrInvalidRange = errors.New("invalid range")
	// ErrTransport marks a failure to reach the calendar service. The
	// caller may retry; nothing in this package retries on its own.
	ErrTransport = errors.New("calendar service unreachable")
)

// ValidationError carries field-scoped messages plus general ones, in
// the shape the calendar service reports them.
type ValidationError struct {
	Fields  map[string][]string
	General []string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string][]string{}}
}

func (e *ValidationError) Add(field, msg string) {
	if field == "" {
		e.General = append(e.General, msg)
		return
	}
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

func (e *ValidationError) Empty() bool {
	return e == nil || (len(e.Fields) == 0 && len(e.General) == 0)
}

func (e *ValidationError) Error() string {
	var parts []string
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(e.Fields[f], "; "))
	}
	parts = append(parts, e.General...)
	if len(parts) == 0 {
		return "validation failed"
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// ConflictError is the expected, non-fatal branch of a create attempt:
// the proposed interval intersects existing appointments.
type ConflictError struct {
	Overlapping []Appointment
	Proposed    Appointment
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("appointment conflicts with %d existing appointment(s)", len(e.Overlapping))
}

// OverwriteFailedError reports that the combined cancel-and-create
// transaction did not succeed. Nothing was applied.
type OverwriteFailedError struct {
	Cause error
}

func (e *OverwriteFailedError) Error() string {
	return "overwrite failed: " + e.Cause.Error()
}

func (e *OverwriteFailedError) Unwrap() error {
	return e.Cause
}

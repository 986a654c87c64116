package schedule

type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// Appointment is one entry on the shared calendar. ID is assigned by
// the calendar service and is empty on not-yet-persisted proposals.
// Date and Start/End are calendar fields, not timestamps; TimezoneLabel
// is display-only and never participates in date math.
type Appointment struct {
	ID              string  `json:"id,omitempty"`
	StaffID         string  `json:"staff_id"`
	ClientID        string  `json:"client_id,omitempty"`
	Date            DateKey `json:"date"`
	Start           TimeOfDay `json:"start_minutes"`
	DurationMinutes int     `json:"duration_minutes"`
	// End, when set, takes precedence over Start+DurationMinutes.
	End           TimeOfDay `json:"end_minutes,omitempty"`
	Subject       string    `json:"subject"`
	Status        Status    `json:"status"`
	MeetingType   string    `json:"meeting_type,omitempty"`
	Description   string    `json:"description,omitempty"`
	TimezoneLabel string    `json:"timezone_label,omitempty"`
}

// EndTime returns the explicit end when present, otherwise the end
// derived from the duration.
func (a Appointment) EndTime() TimeOfDay {
	if a.End > 0 {
		return a.End
	}
	return a.Start + TimeOfDay(a.DurationMinutes)
}

// Active reports whether the appointment still occupies its interval.
func (a Appointment) Active() bool {
	return a.Status != StatusCancelled
}

// naturalKey identifies an appointment that has not been assigned a
// server ID yet: start minute + staff + subject.
type naturalKey struct {
	start   TimeOfDay
	staffID string
	subject string
}

func naturalKeyOf(a Appointment) naturalKey {
	return naturalKey{start: a.Start, staffID: a.StaffID, subject: a.Subject}
}

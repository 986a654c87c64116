package model

import (
	"time"

	"github.com/avery-cole/frontdesk/libs/schedule"
)

// Appointment is the persisted calendar row. The day is stored as its
// canonical YYYY-MM-DD key plus minute offsets, so what a viewer sees
// never depends on the timezone of whoever wrote the row.
type Appointment struct {
	ID            string
	StaffID       string
	ClientID      string
	Date          schedule.DateKey
	StartMinutes  int
	EndMinutes    int
	Subject       string
	Status        schedule.Status
	MeetingType   string
	Description   string
	TimezoneLabel string
	CancelledAt   *time.Time
	CancelReason  string
	CreatedAt     time.Time
}

func (a Appointment) DurationMinutes() int {
	return a.EndMinutes - a.StartMinutes
}

// ToSchedule converts the row into the shared calendar representation.
func (a Appointment) ToSchedule() schedule.Appointment {
	return schedule.Appointment{
		ID:              a.ID,
		StaffID:         a.StaffID,
		ClientID:        a.ClientID,
		Date:            a.Date,
		Start:           schedule.TimeOfDay(a.StartMinutes),
		End:             schedule.TimeOfDay(a.EndMinutes),
		DurationMinutes: a.DurationMinutes(),
		Subject:         a.Subject,
		Status:          a.Status,
		MeetingType:     a.MeetingType,
		Description:     a.Description,
		TimezoneLabel:   a.TimezoneLabel,
	}
}

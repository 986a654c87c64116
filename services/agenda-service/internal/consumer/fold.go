package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/avery-cole/frontdesk/libs/schedule"
	"github.com/avery-cole/frontdesk/services/agenda-service/internal/board"
)

type calendarEvent struct {
	AppointmentID string   `json:"appointment_id"`
	StaffID       string   `json:"staff_id"`
	ClientID      string   `json:"client_id"`
	Date          string   `json:"date"`
	StartMinutes  int      `json:"start_minutes"`
	EndMinutes    int      `json:"end_minutes"`
	Subject       string   `json:"subject"`
	Status        string   `json:"status"`
	MeetingType   string   `json:"meeting_type"`
	CancelledIDs  []string `json:"cancelled_appointment_ids"`
}

// BoardFold returns a handler that folds calendar events into the
// board. Bad payloads are logged and dropped; redelivery would not
// make them parse.
func BoardFold(logger *slog.Logger, b *board.Board) Handler {
	return func(_ context.Context, msg kafka.Message) error {
		var ev calendarEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
			return nil
		}
		date, err := schedule.NormalizeDate(ev.Date)
		if err != nil {
			logger.Error("event carries invalid date", "date", ev.Date, "topic", msg.Topic)
			return nil
		}

		appts := []schedule.Appointment{{
			ID:              ev.AppointmentID,
			StaffID:         ev.StaffID,
			ClientID:        ev.ClientID,
			Date:            date,
			Start:           schedule.TimeOfDay(ev.StartMinutes),
			End:             schedule.TimeOfDay(ev.EndMinutes),
			DurationMinutes: ev.EndMinutes - ev.StartMinutes,
			Subject:         ev.Subject,
			Status:          schedule.Status(ev.Status),
		}}

		// An overwritten event names the records it cancelled by id
		// only; tombstone whatever the board currently holds for them.
		if len(ev.CancelledIDs) > 0 {
			appts = append(appts, tombstones(b.Snapshot(), ev.CancelledIDs)...)
		}

		b.Absorb(appts...)
		return nil
	}
}

func tombstones(idx *schedule.Index, ids []string) []schedule.Appointment {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []schedule.Appointment
	for _, day := range idx.Days() {
		for _, a := range idx.Day(day) {
			if wanted[a.ID] && a.Status != schedule.StatusCancelled {
				a.Status = schedule.StatusCancelled
				out = append(out, a)
			}
		}
	}
	return out
}

package consumer

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/avery-cole/frontdesk/libs/schedule"
	"github.com/avery-cole/frontdesk/services/agenda-service/internal/board"
)

type noFeeds struct{}

func (noFeeds) Range(context.Context, schedule.DateKey, schedule.DateKey) ([]schedule.Appointment, error) {
	return nil, nil
}
func (noFeeds) Today(context.Context) ([]schedule.Appointment, error)    { return nil, nil }
func (noFeeds) Upcoming(context.Context) ([]schedule.Appointment, error) { return nil, nil }

func foldMessage(t *testing.T, h Handler, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := h(context.Background(), kafka.Message{Topic: "calendar.events", Value: raw}); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
}

func TestBoardFoldBookedEvent(t *testing.T) {
	b := board.New(noFeeds{})
	h := BoardFold(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), b)

	foldMessage(t, h, map[string]any{
		"appointment_id": "appt-1",
		"staff_id":       "staff-1",
		"date":           "2024-06-10",
		"start_minutes":  840,
		"end_minutes":    870,
		"subject":        "Intake",
		"status":         "scheduled",
	})

	day := b.Day("2024-06-10")
	if len(day) != 1 || day[0].ID != "appt-1" || day[0].Start != 840 {
		t.Fatalf("unexpected board state: %+v", day)
	}

	// Redelivered event is a no-op thanks to merge idempotence.
	foldMessage(t, h, map[string]any{
		"appointment_id": "appt-1",
		"staff_id":       "staff-1",
		"date":           "2024-06-10",
		"start_minutes":  840,
		"end_minutes":    870,
		"subject":        "Intake",
		"status":         "scheduled",
	})
	if got := b.Snapshot().Len(); got != 1 {
		t.Fatalf("expected single record after redelivery, got %d", got)
	}
}

func TestBoardFoldOverwrittenEventTombstonesCancelled(t *testing.T) {
	b := board.New(noFeeds{})
	b.Absorb(schedule.Appointment{
		ID: "appt-1", StaffID: "staff-1", Date: "2024-06-10",
		Start: 840, End: 870, DurationMinutes: 30,
		Subject: "Old", Status: schedule.StatusScheduled,
	})
	h := BoardFold(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), b)

	foldMessage(t, h, map[string]any{
		"appointment_id":            "appt-2",
		"staff_id":                  "staff-1",
		"date":                      "2024-06-10",
		"start_minutes":             855,
		"end_minutes":               885,
		"subject":                   "New",
		"status":                    "scheduled",
		"cancelled_appointment_ids": []string{"appt-1"},
	})

	day := b.Day("2024-06-10")
	if len(day) != 2 {
		t.Fatalf("expected old record kept as tombstone, got %+v", day)
	}
	byID := map[string]schedule.Appointment{}
	for _, a := range day {
		byID[a.ID] = a
	}
	if byID["appt-1"].Status != schedule.StatusCancelled {
		t.Fatalf("expected appt-1 cancelled, got %s", byID["appt-1"].Status)
	}
	if byID["appt-2"].Status != schedule.StatusScheduled {
		t.Fatalf("expected appt-2 scheduled, got %s", byID["appt-2"].Status)
	}
}

func TestBoardFoldDropsBadPayloads(t *testing.T) {
	b := board.New(noFeeds{})
	h := BoardFold(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), b)

	if err := h(context.Background(), kafka.Message{Value: []byte("not json")}); err != nil {
		t.Fatalf("bad payload must be dropped, not retried: %v", err)
	}
	foldMessage(t, h, map[string]any{"appointment_id": "x", "date": "2024-02-30"})
	if got := b.Snapshot().Len(); got != 0 {
		t.Fatalf("bad events must not reach the board, got %d records", got)
	}
}

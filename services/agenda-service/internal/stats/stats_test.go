package stats

import (
	"math"
	"testing"

	"github.com/avery-cole/frontdesk/libs/schedule"
)

func buildIndex(t *testing.T) *schedule.Index {
	t.Helper()
	idx := schedule.NewIndex()
	add := func(id string, date schedule.DateKey, start, dur int, status schedule.Status) {
		idx.Upsert(schedule.Appointment{
			ID:              id,
			StaffID:         "staff-1",
			Date:            date,
			Start:           schedule.TimeOfDay(start),
			End:             schedule.TimeOfDay(start + dur),
			DurationMinutes: dur,
			Subject:         "Meeting " + id,
			Status:          status,
		})
	}
	add("a", "2024-06-10", 540, 30, schedule.StatusCompleted)
	add("b", "2024-06-10", 600, 60, schedule.StatusNoShow)
	add("c", "2024-06-11", 540, 30, schedule.StatusScheduled)
	add("d", "2024-06-11", 600, 30, schedule.StatusCancelled)
	add("e", "2024-07-01", 540, 30, schedule.StatusNoShow)
	return idx
}

func TestNoShowRate(t *testing.T) {
	idx := buildIndex(t)
	got := NoShowRate(idx, "2024-06-01", "2024-06-30")
	if math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("expected 0.5, got %f", got)
	}
	if NoShowRate(idx, "2024-08-01", "2024-08-31") != 0 {
		t.Fatal("empty range yields 0")
	}
}

func TestAverageDurationSkipsCancelled(t *testing.T) {
	idx := buildIndex(t)
	got := AverageDurationMinutes(idx, "2024-06-01", "2024-06-30")
	want := float64(30+60+30) / 3
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected %f, got %f", want, got)
	}
}

func TestCountByStatus(t *testing.T) {
	idx := buildIndex(t)
	got := CountByStatus(idx, "2024-06-01", "2024-06-30")
	if got[schedule.StatusCompleted] != 1 || got[schedule.StatusNoShow] != 1 ||
		got[schedule.StatusScheduled] != 1 || got[schedule.StatusCancelled] != 1 {
		t.Fatalf("unexpected counts: %+v", got)
	}
	if len(got) != 4 {
		t.Fatalf("out-of-range appointments must not count: %+v", got)
	}
}

package board

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/avery-cole/frontdesk/libs/schedule"
)

type fakeFeeds struct {
	rangeAppts    []schedule.Appointment
	todayAppts    []schedule.Appointment
	upcomingAppts []schedule.Appointment
	rangeErr      error
}

func (f *fakeFeeds) Range(context.Context, schedule.DateKey, schedule.DateKey) ([]schedule.Appointment, error) {
	return f.rangeAppts, f.rangeErr
}
func (f *fakeFeeds) Today(context.Context) ([]schedule.Appointment, error) {
	return f.todayAppts, nil
}
func (f *fakeFeeds) Upcoming(context.Context) ([]schedule.Appointment, error) {
	return f.upcomingAppts, nil
}

func appt(id string, date schedule.DateKey, start int) schedule.Appointment {
	return schedule.Appointment{
		ID:              id,
		StaffID:         "staff-1",
		Date:            date,
		Start:           schedule.TimeOfDay(start),
		End:             schedule.TimeOfDay(start + 30),
		DurationMinutes: 30,
		Subject:         "Meeting " + id,
		Status:          schedule.StatusScheduled,
	}
}

func TestRefreshMergesAllFeeds(t *testing.T) {
	shared := appt("appt-1", "2024-06-10", 540)
	feeds := &fakeFeeds{
		rangeAppts:    []schedule.Appointment{shared, appt("appt-2", "2024-06-11", 600)},
		todayAppts:    []schedule.Appointment{shared},
		upcomingAppts: []schedule.Appointment{appt("appt-3", "2024-06-12", 660)},
	}
	b := New(feeds)

	if err := b.Refresh(context.Background(), "2024-06-10", "2024-06-12"); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if got := b.Snapshot().Len(); got != 3 {
		t.Fatalf("expected 3 appointments after merge, got %d", got)
	}
	if len(b.Day("2024-06-10")) != 1 {
		t.Fatal("record shared across feeds must appear once")
	}
}

func TestRefreshPropagatesFeedError(t *testing.T) {
	feeds := &fakeFeeds{rangeErr: schedule.ErrTransport}
	b := New(feeds)
	if err := b.Refresh(context.Background(), "2024-06-10", "2024-06-12"); !errors.Is(err, schedule.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestSnapshotIsImmutable(t *testing.T) {
	b := New(&fakeFeeds{})
	b.Absorb(appt("appt-1", "2024-06-10", 540))

	snap := b.Snapshot()
	b.Absorb(appt("appt-2", "2024-06-10", 600))

	if snap.Len() != 1 {
		t.Fatalf("earlier snapshot must not change, got %d records", snap.Len())
	}
	if b.Snapshot().Len() != 2 {
		t.Fatalf("board should hold both records, got %d", b.Snapshot().Len())
	}
}

func TestAbsorbUpdatesRecord(t *testing.T) {
	b := New(&fakeFeeds{})
	b.Absorb(appt("appt-1", "2024-06-10", 540))

	moved := appt("appt-1", "2024-06-10", 600)
	b.Absorb(moved)

	day := b.Day("2024-06-10")
	if len(day) != 1 || day[0].Start != 600 {
		t.Fatalf("expected record replaced by id, got %+v", day)
	}
}

func TestConcurrentAbsorb(t *testing.T) {
	b := New(&fakeFeeds{})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			b.Absorb(appt(string(rune('a'+n)), "2024-06-10", 540+n*30))
		}(i)
	}
	wg.Wait()
	if got := b.Snapshot().Len(); got != 20 {
		t.Fatalf("expected 20 records, got %d", got)
	}
}

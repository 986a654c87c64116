package schedule

import "testing"

func TestDetect_AdjacentDoesNotOverlap(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(appt("a1", "s1", "2024-06-10", 10*60+30, 30)) // 10:30-11:00

	// Proposed 10:00-10:30 touches but does not intersect.
	if got := Detect(idx, "s1", "2024-06-10", 10*60, 30); len(got) != 0 {
		t.Fatalf("adjacent intervals flagged as conflict: %d", len(got))
	}
	// Proposed 11:00-11:30 starts exactly at the existing end.
	if got := Detect(idx, "s1", "2024-06-10", 11*60, 30); len(got) != 0 {
		t.Fatalf("adjacent intervals flagged as conflict: %d", len(got))
	}
}

func TestDetect_OverlappingInterval(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(appt("a1", "s1", "2024-06-10", 10*60+30, 30)) // 10:30-11:00

	got := Detect(idx, "s1", "2024-06-10", 10*60+15, 30) // 10:15-10:45
	if len(got) != 1 || got[0].ID != "a1" {
		t.Fatalf("expected one conflict with a1, got %+v", got)
	}
}

func TestDetect_FiltersStaffAndCancelled(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(appt("a1", "s1", "2024-06-10", 10*60, 60))
	other := appt("a2", "s2", "2024-06-10", 10*60, 60)
	idx.Upsert(other)
	cancelled := appt("a3", "s1", "2024-06-10", 10*60, 60)
	cancelled.Status = StatusCancelled
	idx.Upsert(cancelled)

	got := Detect(idx, "s1", "2024-06-10", 10*60+30, 30)
	if len(got) != 1 || got[0].ID != "a1" {
		t.Fatalf("expected only a1, got %+v", got)
	}
}

func TestDetect_ExplicitEndWins(t *testing.T) {
	a := appt("a1", "s1", "2024-06-10", 10*60, 30)
	a.End = 12 * 60 // explicit end extends past the derived one
	idx := NewIndex()
	idx.Upsert(a)

	// 11:00-11:30 is inside the explicit interval but past the derived one.
	if got := Detect(idx, "s1", "2024-06-10", 11*60, 30); len(got) != 1 {
		t.Fatalf("explicit end ignored: %d conflicts", len(got))
	}
}

func TestDetect_ContainedAndSpanning(t *testing.T) {
	idx := NewIndex()
	idx.Upsert(appt("a1", "s1", "2024-06-10", 10*60, 120)) // 10:00-12:00

	if got := Detect(idx, "s1", "2024-06-10", 10*60+30, 30); len(got) != 1 {
		t.Fatalf("contained interval not detected")
	}

	idx2 := NewIndex()
	idx2.Upsert(appt("b1", "s1", "2024-06-10", 10*60+30, 30)) // 10:30-11:00
	if got := Detect(idx2, "s1", "2024-06-10", 10*60, 120); len(got) != 1 {
		t.Fatalf("spanning interval not detected")
	}
}

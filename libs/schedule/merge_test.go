package schedule

import "testing"

func sameIndex(t *testing.T, a, b *Index) {
	t.Helper()
	if a.Len() != b.Len() {
		t.Fatalf("index sizes differ: %d vs %d", a.Len(), b.Len())
	}
	for _, day := range a.Days() {
		la, lb := a.Day(day), b.Day(day)
		if len(la) != len(lb) {
			t.Fatalf("day %s sizes differ: %d vs %d", day, len(la), len(lb))
		}
		for i := range la {
			if la[i] != lb[i] {
				t.Fatalf("day %s entry %d differs: %+v vs %+v", day, i, la[i], lb[i])
			}
		}
	}
}

func TestMerge_Idempotent(t *testing.T) {
	feed := []Appointment{
		appt("a1", "s1", "2024-06-10", 9*60, 30),
		appt("a2", "s1", "2024-06-10", 14*60, 30),
		appt("a3", "s2", "2024-06-11", 10*60, 60),
	}

	once := Merge(NewIndex(), feed)
	twice := Merge(once, feed)
	sameIndex(t, once, twice)
}

func TestMerge_DisjointFeedsCount(t *testing.T) {
	feedA := []Appointment{
		appt("a1", "s1", "2024-06-10", 9*60, 30),
		appt("a2", "s1", "2024-06-10", 11*60, 30),
	}
	feedB := []Appointment{
		appt("b1", "s2", "2024-06-10", 10*60, 30),
		appt("b2", "s2", "2024-06-12", 15*60, 30),
	}

	merged := Merge(Merge(NewIndex(), feedA), feedB)
	if merged.Len() != len(feedA)+len(feedB) {
		t.Fatalf("Len = %d, want %d", merged.Len(), len(feedA)+len(feedB))
	}
	for _, day := range merged.Days() {
		list := merged.Day(day)
		for i := 1; i < len(list); i++ {
			if list[i-1].Start > list[i].Start {
				t.Fatalf("day %s not sorted", day)
			}
		}
	}
}

func TestMerge_OrderIndependent(t *testing.T) {
	feedA := []Appointment{appt("a1", "s1", "2024-06-10", 9*60, 30)}
	feedB := []Appointment{appt("b1", "s1", "2024-06-10", 10*60, 30)}

	ab := Merge(Merge(NewIndex(), feedA), feedB)
	ba := Merge(Merge(NewIndex(), feedB), feedA)
	sameIndex(t, ab, ba)
}

func TestMerge_ReplacesByIDNotAppend(t *testing.T) {
	stale := appt("a1", "s1", "2024-06-10", 9*60, 30)
	fresh := stale
	fresh.Subject = "follow-up"
	fresh.Start = 10 * 60

	merged := Merge(Merge(NewIndex(), []Appointment{stale}), []Appointment{fresh})
	if merged.Len() != 1 {
		t.Fatalf("expected replacement, got %d entries", merged.Len())
	}
	day := merged.Day("2024-06-10")
	if day[0].Subject != "follow-up" || day[0].Start != 10*60 {
		t.Fatalf("stale record survived: %+v", day[0])
	}
}

func TestMerge_NaturalKeyFallback(t *testing.T) {
	// No server ID on either record: same start/staff/subject must merge
	// into a single entry.
	local := Appointment{StaffID: "s1", Date: "2024-06-10", Start: 9 * 60, DurationMinutes: 30, Subject: "intake", Status: StatusPending}
	again := local
	again.Description = "updated notes"

	merged := Merge(Merge(NewIndex(), []Appointment{local}), []Appointment{again})
	if merged.Len() != 1 {
		t.Fatalf("natural key duplicate: %d entries", merged.Len())
	}
	if merged.Day("2024-06-10")[0].Description != "updated notes" {
		t.Fatalf("incoming record did not replace the match")
	}
}

func TestMerge_AuthoritativeRecordClaimsProposal(t *testing.T) {
	proposal := Appointment{StaffID: "s1", Date: "2024-06-10", Start: 9 * 60, DurationMinutes: 30, Subject: "intake", Status: StatusPending}
	persisted := proposal
	persisted.ID = "a1"
	persisted.Status = StatusScheduled

	merged := Merge(Merge(NewIndex(), []Appointment{proposal}), []Appointment{persisted})
	if merged.Len() != 1 {
		t.Fatalf("persisted record duplicated its proposal: %d entries", merged.Len())
	}
	got := merged.Day("2024-06-10")[0]
	if got.ID != "a1" || got.Status != StatusScheduled {
		t.Fatalf("proposal was not upgraded: %+v", got)
	}
}

func TestMerge_DoesNotMutateInput(t *testing.T) {
	base := Merge(NewIndex(), []Appointment{appt("a1", "s1", "2024-06-10", 9*60, 30)})
	_ = Merge(base, []Appointment{appt("a2", "s1", "2024-06-10", 10*60, 30)})
	if base.Len() != 1 {
		t.Fatalf("Merge mutated its input index")
	}
}

func TestMerge_SkipsInvalidDates(t *testing.T) {
	bad := appt("a1", "s1", "2024-02-30", 9*60, 30)
	merged := Merge(NewIndex(), []Appointment{bad})
	if merged.Len() != 0 {
		t.Fatalf("invalid date reached the index")
	}
}

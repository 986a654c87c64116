package schedule

import (
	"errors"
	"testing"
)

func TestGenerateSlots_SingleDay(t *testing.T) {
	seq, err := GenerateSlots(Window{
		StaffID:     "s1",
		DateFrom:    "2024-03-01",
		DateTo:      "2024-03-01",
		TimeFrom:    9 * 60,
		TimeTo:      10 * 60,
		SlotMinutes: 30,
	})
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	slots := seq.All()
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if slots[0].Start != 9*60 || slots[1].Start != 9*60+30 {
		t.Fatalf("unexpected starts: %s, %s", slots[0].Start, slots[1].Start)
	}
	for _, s := range slots {
		if s.Date != "2024-03-01" {
			t.Fatalf("unexpected date %q", s.Date)
		}
	}
}

func TestGenerateSlots_TailDropped(t *testing.T) {
	// 09:00-10:15 with 30-minute slots: 09:00, 09:30; a slot at 10:00
	// would end past the window.
	seq, err := GenerateSlots(Window{
		DateFrom:    "2024-03-01",
		DateTo:      "2024-03-01",
		TimeFrom:    9 * 60,
		TimeTo:      10*60 + 15,
		SlotMinutes: 30,
	})
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	if got := len(seq.All()); got != 2 {
		t.Fatalf("expected 2 slots, got %d", got)
	}
}

func TestGenerateSlots_MultiDay(t *testing.T) {
	seq, err := GenerateSlots(Window{
		DateFrom:    "2024-02-28",
		DateTo:      "2024-03-01", // leap year: 28th, 29th, 1st
		TimeFrom:    9 * 60,
		TimeTo:      10 * 60,
		SlotMinutes: 30,
	})
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	slots := seq.All()
	if len(slots) != 6 {
		t.Fatalf("expected 6 slots, got %d", len(slots))
	}
	if slots[2].Date != "2024-02-29" {
		t.Fatalf("leap day missing, got %q", slots[2].Date)
	}
}

func TestGenerateSlots_InvalidRange(t *testing.T) {
	cases := []Window{
		{DateFrom: "2024-03-02", DateTo: "2024-03-01", TimeFrom: 9 * 60, TimeTo: 10 * 60, SlotMinutes: 30},
		{DateFrom: "2024-03-01", DateTo: "2024-03-01", TimeFrom: 10 * 60, TimeTo: 10 * 60, SlotMinutes: 30},
		{DateFrom: "2024-03-01", DateTo: "2024-03-01", TimeFrom: 10 * 60, TimeTo: 9 * 60, SlotMinutes: 30},
		{DateFrom: "2024-03-01", DateTo: "2024-03-01", TimeFrom: 9 * 60, TimeTo: 10 * 60, SlotMinutes: 10},
		{DateFrom: "2024-03-01", DateTo: "2024-03-01", TimeFrom: 9 * 60, TimeTo: 10 * 60, SlotMinutes: 481},
	}
	for i, w := range cases {
		if _, err := GenerateSlots(w); !errors.Is(err, ErrInvalidRange) {
			t.Fatalf("case %d: want ErrInvalidRange, got %v", i, err)
		}
	}
}

func TestSlotSeq_Restartable(t *testing.T) {
	seq, err := GenerateSlots(Window{
		DateFrom:    "2024-03-01",
		DateTo:      "2024-03-01",
		TimeFrom:    9 * 60,
		TimeTo:      11 * 60,
		SlotMinutes: 30,
	})
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}

	first := seq.All()
	// Partial iteration must not consume the sequence.
	n := 0
	seq.Each(func(Slot) bool {
		n++
		return n < 2
	})
	second := seq.All()

	if len(first) != len(second) {
		t.Fatalf("sequence not restartable: %d then %d", len(first), len(second))
	}
}

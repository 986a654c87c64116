package schedule

import "fmt"

// Slot duration bounds, minutes.
const (
	MinSlotMinutes = 15
	MaxSlotMinutes = 480
)

// Window is a staff member's declared bookable range: inclusive date
// range, exclusive-end time range, slot duration. Windows are expanded
// once into slots and discarded; nothing persists them.
type Window struct {
	StaffID     string  `json:"staff_id,omitempty"`
	DateFrom    DateKey `json:"date_from"`
	DateTo      DateKey `json:"date_to"`
	TimeFrom    TimeOfDay `json:"time_from"`
	TimeTo      TimeOfDay `json:"time_to"`
	SlotMinutes int     `json:"slot_minutes"`
}

func (w Window) Validate() error {
	if w.DateFrom == "" || w.DateTo == "" || w.DateTo < w.DateFrom {
		return fmt.Errorf("%w: date range %s..%s", ErrInvalidRange, w.DateFrom, w.DateTo)
	}
	if w.TimeTo <= w.TimeFrom {
		return fmt.Errorf("%w: time range %s..%s", ErrInvalidRange, w.TimeFrom, w.TimeTo)
	}
	if w.SlotMinutes < MinSlotMinutes || w.SlotMinutes > MaxSlotMinutes {
		return fmt.Errorf("%w: slot duration %d minutes", ErrInvalidRange, w.SlotMinutes)
	}
	return nil
}

// Slot is one bookable candidate produced from a Window.
type Slot struct {
	Date  DateKey   `json:"date"`
	Start TimeOfDay `json:"start_minutes"`
}

// SlotSeq is a finite, restartable expansion of a validated window.
// Each iteration re-walks the window; no state is consumed.
type SlotSeq struct {
	w Window
}

// GenerateSlots validates the window once and returns its expansion.
func GenerateSlots(w Window) (*SlotSeq, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &SlotSeq{w: w}, nil
}

// Each calls fn for every slot in order, stopping early when fn returns
// false. It may be called any number of times.
func (s *SlotSeq) Each(fn func(Slot) bool) {
	for day := s.w.DateFrom; day <= s.w.DateTo; day = day.NextDay() {
		for start := s.w.TimeFrom; start+TimeOfDay(s.w.SlotMinutes) <= s.w.TimeTo; start += TimeOfDay(s.w.SlotMinutes) {
			if !fn(Slot{Date: day, Start: start}) {
				return
			}
		}
	}
}

// All materializes the sequence.
func (s *SlotSeq) All() []Slot {
	var out []Slot
	s.Each(func(sl Slot) bool {
		out = append(out, sl)
		return true
	})
	return out
}

package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avery-cole/frontdesk/libs/schedule"
	"github.com/avery-cole/frontdesk/services/calendar-service/internal/model"
)

type feedResponse struct {
	Appointments []schedule.Appointment `json:"appointments"`
}

type slotItem struct {
	Date         schedule.DateKey `json:"date"`
	StartMinutes int              `json:"start_minutes"`
	EndMinutes   int              `json:"end_minutes"`
	Start        string           `json:"start"`
	End          string           `json:"end"`
}

type slotsResponse struct {
	Slots []slotItem `json:"slots"`
}

func todayKey() schedule.DateKey {
	now := time.Now().UTC()
	key, _ := schedule.MakeDateKey(now.Year(), int(now.Month()), now.Day())
	return key
}

func writeFeed(w http.ResponseWriter, rows []model.Appointment) {
	out := make([]schedule.Appointment, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToSchedule())
	}
	writeJSON(w, http.StatusOK, feedResponse{Appointments: out})
}

// Range serves GET /api/v1/appointments?from=&to=.
func (h *ScheduleHandler) Range(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	verr := schedule.NewValidationError()
	from, err := schedule.ParseDateInput(strings.TrimSpace(r.URL.Query().Get("from")))
	if err != nil {
		verr.Add("from", "must be a real calendar date")
	}
	to, err := schedule.ParseDateInput(strings.TrimSpace(r.URL.Query().Get("to")))
	if err != nil {
		verr.Add("to", "must be a real calendar date")
	}
	if verr.Empty() && to < from {
		verr.Add("to", "must not be before from")
	}
	if !verr.Empty() {
		writeValidationError(w, verr)
		return
	}

	rows, err := h.store.ListRange(r.Context(), from, to)
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}
	writeFeed(w, rows)
}

// Today serves GET /api/v1/appointments/today. An explicit date query
// overrides the server clock, which keeps the endpoint testable.
func (h *ScheduleHandler) Today(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	day := todayKey()
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		parsed, err := schedule.ParseDateInput(raw)
		if err != nil {
			verr := schedule.NewValidationError()
			verr.Add("date", "must be a real calendar date")
			writeValidationError(w, verr)
			return
		}
		day = parsed
	}

	rows, err := h.store.ListRange(r.Context(), day, day)
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}
	writeFeed(w, rows)
}

// Upcoming serves GET /api/v1/appointments/upcoming.
func (h *ScheduleHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	from := todayKey()
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		parsed, err := schedule.ParseDateInput(raw)
		if err != nil {
			verr := schedule.NewValidationError()
			verr.Add("from", "must be a real calendar date")
			writeValidationError(w, verr)
			return
		}
		from = parsed
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	rows, err := h.store.ListUpcoming(r.Context(), from, limit)
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}
	writeFeed(w, rows)
}

// Slots serves GET /api/v1/slots. The window expands into fixed-width
// candidates and anything colliding with an active appointment for the
// staff member is dropped.
func (h *ScheduleHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	verr := schedule.NewValidationError()

	staffID := strings.TrimSpace(q.Get("staff_id"))
	if staffID == "" {
		verr.Add("staff_id", "cannot be blank")
	}
	dateFrom, err := schedule.ParseDateInput(strings.TrimSpace(q.Get("date_from")))
	if err != nil {
		verr.Add("date_from", "must be a real calendar date")
	}
	dateTo, err := schedule.ParseDateInput(strings.TrimSpace(q.Get("date_to")))
	if err != nil {
		verr.Add("date_to", "must be a real calendar date")
	}
	timeFrom, err := schedule.ParseTimeOfDay(strings.TrimSpace(q.Get("time_from")))
	if err != nil {
		verr.Add("time_from", "must be a clock time in HH:MM form")
	}
	timeTo, err := schedule.ParseTimeOfDay(strings.TrimSpace(q.Get("time_to")))
	if err != nil {
		verr.Add("time_to", "must be a clock time in HH:MM form")
	}
	slotMinutes, err := strconv.Atoi(strings.TrimSpace(q.Get("slot_minutes")))
	if err != nil {
		verr.Add("slot_minutes", "must be a whole number of minutes")
	}
	if !verr.Empty() {
		writeValidationError(w, verr)
		return
	}

	seq, err := schedule.GenerateSlots(schedule.Window{
		StaffID:     staffID,
		DateFrom:    dateFrom,
		DateTo:      dateTo,
		TimeFrom:    timeFrom,
		TimeTo:      timeTo,
		SlotMinutes: slotMinutes,
	})
	if err != nil {
		verr.Add("", err.Error())
		writeValidationError(w, verr)
		return
	}

	rows, err := h.store.ListRange(r.Context(), dateFrom, dateTo)
	if err != nil {
		http.Error(w, "failed to load booked appointments", http.StatusInternalServerError)
		return
	}
	idx := schedule.NewIndex()
	for _, row := range rows {
		if row.StaffID == staffID {
			idx.Upsert(row.ToSchedule())
		}
	}

	free := []slotItem{}
	seq.Each(func(s schedule.Slot) bool {
		if len(schedule.Detect(idx, staffID, s.Date, s.Start, slotMinutes)) == 0 {
			end := s.Start + schedule.TimeOfDay(slotMinutes)
			free = append(free, slotItem{
				Date:         s.Date,
				StartMinutes: int(s.Start),
				EndMinutes:   int(end),
				Start:        s.Start.String(),
				End:          end.String(),
			})
		}
		return true
	})

	writeJSON(w, http.StatusOK, slotsResponse{Slots: free})
}

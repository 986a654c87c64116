package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/avery-cole/frontdesk/libs/schedule"
	"github.com/avery-cole/frontdesk/services/agenda-service/internal/workflow"
)

type dayBucket struct {
	Date         schedule.DateKey       `json:"date"`
	Appointments []schedule.Appointment `json:"appointments"`
}

type boardResponse struct {
	From schedule.DateKey `json:"from"`
	To   schedule.DateKey `json:"to"`
	Days []dayBucket      `json:"days"`
}

func todayKey() schedule.DateKey {
	now := time.Now().UTC()
	key, _ := schedule.MakeDateKey(now.Year(), int(now.Month()), now.Day())
	return key
}

func parseRange(r *http.Request) (from, to schedule.DateKey, verr *schedule.ValidationError) {
	verr = schedule.NewValidationError()
	from = todayKey()
	to = from
	for i := 0; i < 13; i++ {
		to = to.NextDay()
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		parsed, err := schedule.ParseDateInput(raw)
		if err != nil {
			verr.Add("from", "must be a real calendar date")
		} else {
			from = parsed
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		parsed, err := schedule.ParseDateInput(raw)
		if err != nil {
			verr.Add("to", "must be a real calendar date")
		} else {
			to = parsed
		}
	}
	if verr.Empty() && to < from {
		verr.Add("to", "must not be before from")
	}
	return from, to, verr
}

// ViewBoard serves GET /api/v1/board: refresh the live index from the
// calendar service, then render the requested window as day buckets.
func (h *AgendaHandler) ViewBoard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	from, to, verr := parseRange(r)
	if !verr.Empty() {
		writeValidationError(w, verr)
		return
	}

	if err := h.board.Refresh(r.Context(), from, to); err != nil {
		h.logger.Warn("board refresh failed", "err", err)
		writeErrors(w, http.StatusBadGateway, "calendar service unreachable, try again")
		return
	}

	snap := h.board.Snapshot()
	resp := boardResponse{From: from, To: to, Days: []dayBucket{}}
	for _, day := range snap.Days() {
		if day < from || day > to {
			continue
		}
		resp.Days = append(resp.Days, dayBucket{Date: day, Appointments: snap.Day(day)})
	}
	writeJSON(w, http.StatusOK, resp)
}

// ViewDay serves GET /api/v1/board/day?date= from the current snapshot
// without a refresh.
func (h *AgendaHandler) ViewDay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	day, err := schedule.ParseDateInput(strings.TrimSpace(r.URL.Query().Get("date")))
	if err != nil {
		verr := schedule.NewValidationError()
		verr.Add("date", "must be a real calendar date")
		writeValidationError(w, verr)
		return
	}

	appts := h.board.Day(day)
	if appts == nil {
		appts = []schedule.Appointment{}
	}
	writeJSON(w, http.StatusOK, dayBucket{Date: day, Appointments: appts})
}

type rescheduleRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type draftPayload struct {
	Title           string `json:"title"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
	StaffID         string `json:"staff_id"`
	ParticipantID   string `json:"participant_id,omitempty"`
	MeetingType     string `json:"meeting_type,omitempty"`
	Description     string `json:"description,omitempty"`
	TimezoneLabel   string `json:"timezone_label,omitempty"`
}

// Reschedule serves POST /api/v1/appointments/reschedule: seed a fresh
// draft from a prior appointment. Nothing is mutated; the client
// submits the returned draft whenever it is ready.
func (h *AgendaHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	prior, ok := h.findAppointment(req.AppointmentID)
	if !ok {
		http.Error(w, "appointment not found on the board", http.StatusNotFound)
		return
	}

	draft := workflow.Reschedule(prior)
	writeJSON(w, http.StatusOK, map[string]draftPayload{"draft": {
		Title:           draft.Title,
		Date:            draft.Date,
		Time:            draft.Time,
		DurationMinutes: draft.DurationMinutes,
		StaffID:         draft.StaffID,
		ParticipantID:   draft.ParticipantID,
		MeetingType:     draft.MeetingType,
		Description:     draft.Description,
		TimezoneLabel:   draft.TimezoneLabel,
	}})
}

func (h *AgendaHandler) findAppointment(id string) (schedule.Appointment, bool) {
	snap := h.board.Snapshot()
	for _, day := range snap.Days() {
		for _, a := range snap.Day(day) {
			if a.ID == id {
				return a, true
			}
		}
	}
	return schedule.Appointment{}, false
}

// Slots serves GET /api/v1/slots: validate the window locally, then
// proxy the expansion so the answer reflects authoritative bookings.
func (h *AgendaHandler) Slots(w http.ResponseWriter, r *http.Request) {
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

	window := schedule.Window{
		StaffID:     staffID,
		DateFrom:    dateFrom,
		DateTo:      dateTo,
		TimeFrom:    timeFrom,
		TimeTo:      timeTo,
		SlotMinutes: slotMinutes,
	}
	if err := window.Validate(); err != nil {
		verr.Add("", err.Error())
		writeValidationError(w, verr)
		return
	}

	slots, err := h.api.Slots(r.Context(), window)
	if err != nil {
		var remoteVerr *schedule.ValidationError
		if errors.As(err, &remoteVerr) {
			writeValidationError(w, remoteVerr)
			return
		}
		h.logger.Warn("slot expansion failed", "err", err)
		writeErrors(w, http.StatusBadGateway, "calendar service unreachable, try again")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

type statsResponse struct {
	From                   schedule.DateKey        `json:"from"`
	To                     schedule.DateKey        `json:"to"`
	NoShowRate             float64                 `json:"no_show_rate"`
	AverageDurationMinutes float64                 `json:"average_duration_minutes"`
	CountByStatus          map[schedule.Status]int `json:"count_by_status"`
}

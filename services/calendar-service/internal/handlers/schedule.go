package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/avery-cole/frontdesk/libs/schedule"
	"github.com/avery-cole/frontdesk/services/calendar-service/internal/model"
	"github.com/avery-cole/frontdesk/services/calendar-service/internal/staffdir"
	"github.com/avery-cole/frontdesk/services/calendar-service/internal/storage"
)

// Store is the slice of the calendar repository the handlers use.
type Store interface {
	ListActiveByStaffDate(ctx context.Context, staffID string, date schedule.DateKey) ([]model.Appointment, error)
	ListRange(ctx context.Context, from, to schedule.DateKey) ([]model.Appointment, error)
	ListUpcoming(ctx context.Context, from schedule.DateKey, limit int) ([]model.Appointment, error)
	Get(ctx context.Context, id string) (model.Appointment, error)
	CreateScheduled(ctx context.Context, appt model.Appointment, idemKey string) (model.Appointment, error)
	Cancel(ctx context.Context, id, reason string) (model.Appointment, error)
	Overwrite(ctx context.Context, appt model.Appointment, cancelIDs []string, reason string) (model.Appointment, []model.Appointment, error)
}

type ScheduleHandler struct {
	store     Store
	directory staffdir.Provider
	logger    *slog.Logger
}

func NewScheduleHandler(store Store, directory staffdir.Provider, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{store: store, directory: directory, logger: logger}
}

type createAppointmentRequest struct {
	Title           string `json:"title"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
	StaffID         string `json:"staff_id"`
	ParticipantID   string `json:"participant_id"`
	MeetingType     string `json:"meeting_type"`
	Description     string `json:"description"`
	TimezoneLabel   string `json:"timezone_label"`
}

type overwriteAppointmentRequest struct {
	createAppointmentRequest
	ConfirmOverwrite     bool     `json:"confirm_overwrite"`
	CancelAppointmentIDs []string `json:"cancel_appointment_ids"`
	Reason               string   `json:"reason"`
}

type appointmentResponse struct {
	Appointment schedule.Appointment `json:"appointment"`
}

type overwriteResponse struct {
	Appointment schedule.Appointment   `json:"appointment"`
	Cancelled   []schedule.Appointment `json:"cancelled_appointments"`
}

type cancelAppointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
}

type cancelAppointmentResponse struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at"`
}

// ozzo reports errors keyed by Go field name; the wire uses json names.
var requestFieldJSON = map[string]string{
	"Title":           "title",
	"Date":            "date",
	"Time":            "time",
	"DurationMinutes": "duration_minutes",
	"StaffID":         "staff_id",
}

func (req *createAppointmentRequest) normalize() {
	req.Title = strings.TrimSpace(req.Title)
	req.Date = strings.TrimSpace(req.Date)
	req.Time = strings.TrimSpace(req.Time)
	req.StaffID = strings.TrimSpace(req.StaffID)
	req.ParticipantID = strings.TrimSpace(req.ParticipantID)
	req.MeetingType = strings.TrimSpace(req.MeetingType)
	req.TimezoneLabel = strings.TrimSpace(req.TimezoneLabel)
}

// validate collects every problem at once rather than stopping at the
// first, so a client can render all field messages in one round trip.
func (req createAppointmentRequest) validate() (schedule.DateKey, schedule.TimeOfDay, *schedule.ValidationError) {
	verr := schedule.NewValidationError()

	err := validation.ValidateStruct(&req,
		validation.Field(&req.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&req.Date, validation.Required),
		validation.Field(&req.Time, validation.Required),
		validation.Field(&req.DurationMinutes, validation.Required, validation.Min(1), validation.Max(schedule.MaxSlotMinutes)),
		validation.Field(&req.StaffID, validation.Required),
	)
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		for field, ferr := range fieldErrs {
			name, ok := requestFieldJSON[field]
			if !ok {
				name = field
			}
			verr.Add(name, ferr.Error())
		}
	} else if err != nil {
		verr.Add("", err.Error())
	}

	var date schedule.DateKey
	var start schedule.TimeOfDay
	timeOK := false
	if req.Date != "" {
		d, err := schedule.ParseDateInput(req.Date)
		if err != nil {
			verr.Add("date", "must be a real calendar date")
		} else {
			date = d
		}
	}
	if req.Time != "" {
		t, err := schedule.ParseTimeOfDay(req.Time)
		if err != nil {
			verr.Add("time", "must be a clock time in HH:MM form")
		} else {
			start = t
			timeOK = true
		}
	}
	if date != "" && timeOK && req.DurationMinutes > 0 {
		if int(start)+req.DurationMinutes > 24*60 {
			verr.Add("duration_minutes", "appointment must end within the same day")
		}
	}
	return date, start, verr
}

func (req createAppointmentRequest) toModel(date schedule.DateKey, start schedule.TimeOfDay) model.Appointment {
	return model.Appointment{
		StaffID:       req.StaffID,
		ClientID:      req.ParticipantID,
		Date:          date,
		StartMinutes:  int(start),
		EndMinutes:    int(start) + req.DurationMinutes,
		Subject:       req.Title,
		Status:        schedule.StatusScheduled,
		MeetingType:   req.MeetingType,
		Description:   req.Description,
		TimezoneLabel: req.TimezoneLabel,
	}
}

// checkAvailability asks the staff directory and folds the answer into
// the validation error. A directory outage is reported as a transport
// failure, never as a validation verdict.
func (h *ScheduleHandler) checkAvailability(ctx context.Context, staffID string, date schedule.DateKey, verr *schedule.ValidationError) (ok bool, transportErr error) {
	available, err := h.directory.StaffAvailable(ctx, staffID, date)
	if err != nil {
		return false, err
	}
	if !available {
		verr.Add("date", "staff member is not available on this day")
		return false, nil
	}
	return true, nil
}

func (h *ScheduleHandler) findOverlaps(ctx context.Context, appt model.Appointment) ([]schedule.Appointment, error) {
	existing, err := h.store.ListActiveByStaffDate(ctx, appt.StaffID, appt.Date)
	if err != nil {
		return nil, err
	}
	idx := schedule.NewIndex()
	for _, row := range existing {
		idx.Upsert(row.ToSchedule())
	}
	return schedule.Detect(idx, appt.StaffID, appt.Date, schedule.TimeOfDay(appt.StartMinutes), appt.DurationMinutes()), nil
}

func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.normalize()

	date, start, verr := req.validate()
	if !verr.Empty() {
		writeValidationError(w, verr)
		return
	}

	ctx := r.Context()
	ok, err := h.checkAvailability(ctx, req.StaffID, date, verr)
	if err != nil {
		h.logger.Warn("staff directory lookup failed", "staff_id", req.StaffID, "err", err)
		http.Error(w, "staff directory unavailable", http.StatusServiceUnavailable)
		return
	}
	if !ok {
		writeValidationError(w, verr)
		return
	}

	appt := req.toModel(date, start)
	overlaps, err := h.findOverlaps(ctx, appt)
	if err != nil {
		http.Error(w, "failed to load existing appointments", http.StatusInternalServerError)
		return
	}
	if len(overlaps) > 0 {
		writeConflict(w, overlaps, appt.ToSchedule())
		return
	}

	created, err := h.store.CreateScheduled(ctx, appt, strings.TrimSpace(r.Header.Get("Idempotency-Key")))
	if err != nil {
		if storage.IsConflict(err) {
			// Lost a race with a concurrent booking; report whatever
			// overlaps now so the caller can start a resolution.
			fresh, lerr := h.findOverlaps(ctx, appt)
			if lerr != nil {
				h.logger.Warn("overlap reload after conflict failed", "err", lerr)
			}
			writeConflict(w, fresh, appt.ToSchedule())
			return
		}
		h.logger.Error("appointment create failed", "err", err)
		http.Error(w, "failed to create appointment", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, appointmentResponse{Appointment: created.ToSchedule()})
}

func (h *ScheduleHandler) Overwrite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req overwriteAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.normalize()

	date, start, verr := req.validate()
	if !req.ConfirmOverwrite {
		verr.Add("confirm_overwrite", "overwrite must be explicitly confirmed")
	}
	ids := make([]string, 0, len(req.CancelAppointmentIDs))
	for _, id := range req.CancelAppointmentIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		verr.Add("cancel_appointment_ids", "at least one appointment to cancel is required")
	}
	if !verr.Empty() {
		writeValidationError(w, verr)
		return
	}

	ctx := r.Context()
	ok, err := h.checkAvailability(ctx, req.StaffID, date, verr)
	if err != nil {
		h.logger.Warn("staff directory lookup failed", "staff_id", req.StaffID, "err", err)
		http.Error(w, "staff directory unavailable", http.StatusServiceUnavailable)
		return
	}
	if !ok {
		writeValidationError(w, verr)
		return
	}

	appt := req.toModel(date, start)
	reason := req.Reason
	if reason == "" {
		reason = "overwritten by " + req.Title
	}

	created, cancelled, err := h.store.Overwrite(ctx, appt, ids, reason)
	if err != nil {
		if errors.Is(err, storage.ErrStaleOverwrite) || errors.Is(err, storage.ErrResidualConflict) || storage.IsConflict(err) {
			fresh, lerr := h.findOverlaps(ctx, appt)
			if lerr != nil {
				h.logger.Warn("overlap reload after failed overwrite", "err", lerr)
			}
			writeConflict(w, fresh, appt.ToSchedule())
			return
		}
		h.logger.Error("overwrite failed", "cancel_ids", ids, "err", err)
		http.Error(w, "failed to overwrite appointments", http.StatusInternalServerError)
		return
	}

	cancelledOut := make([]schedule.Appointment, 0, len(cancelled))
	for _, c := range cancelled {
		cancelledOut = append(cancelledOut, c.ToSchedule())
	}
	writeJSON(w, http.StatusCreated, overwriteResponse{
		Appointment: created.ToSchedule(),
		Cancelled:   cancelledOut,
	})
}

func (h *ScheduleHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	cancelled, err := h.store.Cancel(ctx, req.AppointmentID, req.Reason)
	if err != nil {
		if storage.IsNotFound(err) {
			// Either unknown or already cancelled; replay the latter.
			prior, gerr := h.store.Get(ctx, req.AppointmentID)
			if gerr == nil && prior.Status == schedule.StatusCancelled && prior.CancelledAt != nil {
				writeJSON(w, http.StatusOK, cancelAppointmentResponse{
					AppointmentID: prior.ID,
					Status:        string(prior.Status),
					CancelledAt:   prior.CancelledAt.UTC().Format(timeFormat),
				})
				return
			}
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		h.logger.Error("appointment cancel failed", "appointment_id", req.AppointmentID, "err", err)
		http.Error(w, "failed to cancel appointment", http.StatusInternalServerError)
		return
	}

	resp := cancelAppointmentResponse{
		AppointmentID: cancelled.ID,
		Status:        string(cancelled.Status),
	}
	if cancelled.CancelledAt != nil {
		resp.CancelledAt = cancelled.CancelledAt.UTC().Format(timeFormat)
	}
	writeJSON(w, http.StatusOK, resp)
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

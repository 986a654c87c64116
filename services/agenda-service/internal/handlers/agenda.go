package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/avery-cole/frontdesk/libs/schedule"
	"github.com/avery-cole/frontdesk/services/agenda-service/internal/board"
	"github.com/avery-cole/frontdesk/services/agenda-service/internal/calendarapi"
	"github.com/avery-cole/frontdesk/services/agenda-service/internal/workflow"
)

// CalendarAPI is the slice of the calendar client the handlers drive.
type CalendarAPI interface {
	Create(ctx context.Context, req calendarapi.CreateRequest) (schedule.Appointment, error)
	Overwrite(ctx context.Context, req calendarapi.OverwriteRequest) (calendarapi.OverwriteResult, error)
	Slots(ctx context.Context, w schedule.Window) ([]calendarapi.Slot, error)
}

type AgendaHandler struct {
	api    CalendarAPI
	board  *board.Board
	subs   *workflow.Store
	logger *slog.Logger
}

func NewAgendaHandler(api CalendarAPI, b *board.Board, subs *workflow.Store, logger *slog.Logger) *AgendaHandler {
	return &AgendaHandler{api: api, board: b, subs: subs, logger: logger}
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

func (req createAppointmentRequest) toDraft() workflow.Draft {
	return workflow.Draft{
		Title:           strings.TrimSpace(req.Title),
		Date:            strings.TrimSpace(req.Date),
		Time:            strings.TrimSpace(req.Time),
		DurationMinutes: req.DurationMinutes,
		StaffID:         strings.TrimSpace(req.StaffID),
		ParticipantID:   strings.TrimSpace(req.ParticipantID),
		MeetingType:     strings.TrimSpace(req.MeetingType),
		Description:     req.Description,
		TimezoneLabel:   strings.TrimSpace(req.TimezoneLabel),
	}
}

type resolveConflictRequest struct {
	SubmissionToken  string `json:"submission_token"`
	ConfirmOverwrite bool   `json:"confirm_overwrite"`
}

type conflictPayload struct {
	Overlapping []schedule.Appointment `json:"overlapping_appointments"`
	Proposed    schedule.Appointment   `json:"proposed_appointment"`
}

type submissionResponse struct {
	SubmissionToken string                 `json:"submission_token"`
	State           string                 `json:"state"`
	Appointment     *schedule.Appointment  `json:"appointment,omitempty"`
	Cancelled       []schedule.Appointment `json:"cancelled_appointments,omitempty"`
	Conflict        *conflictPayload       `json:"conflict,omitempty"`
	FieldErrors     map[string][]string    `json:"field_errors,omitempty"`
	Errors          []string               `json:"errors,omitempty"`
}

// Submit serves POST /api/v1/appointments: seed a submission, run it
// through the workflow, and render whatever terminal (or conflict)
// state it lands in.
func (h *AgendaHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	sub := workflow.NewSubmission(req.toDraft())
	h.subs.Add(sub)

	effects, snap, err := h.subs.Apply(sub.ID, workflow.Submit{})
	if err != nil {
		h.logger.Error("submit transition failed", "err", err)
		http.Error(w, "failed to start submission", http.StatusInternalServerError)
		return
	}
	snap = h.runEffects(r.Context(), sub.ID, snap, effects)
	h.renderSubmission(w, snap)
}

// ResolveConflict serves POST /api/v1/appointments/overwrite: resume a
// pending conflict by token. Confirmation runs the overwrite; anything
// else aborts the submission.
func (h *AgendaHandler) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req resolveConflictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.SubmissionToken = strings.TrimSpace(req.SubmissionToken)
	if req.SubmissionToken == "" {
		http.Error(w, "submission_token required", http.StatusBadRequest)
		return
	}

	var ev workflow.Event = workflow.Abort{}
	if req.ConfirmOverwrite {
		ev = workflow.ConfirmOverwrite{}
	}

	effects, snap, err := h.subs.Apply(req.SubmissionToken, ev)
	if err != nil {
		switch {
		case errors.Is(err, workflow.ErrUnknownSubmission):
			http.Error(w, "unknown or expired submission", http.StatusNotFound)
		case errors.Is(err, workflow.ErrSubmissionInFlight):
			http.Error(w, "submission still in flight", http.StatusConflict)
		default:
			http.Error(w, "submission cannot accept this action", http.StatusConflict)
		}
		return
	}
	snap = h.runEffects(r.Context(), req.SubmissionToken, snap, effects)
	h.renderSubmission(w, snap)
}

// runEffects interprets workflow effects until the machine stops
// producing them. Remote calls happen here; the machine stays pure.
func (h *AgendaHandler) runEffects(ctx context.Context, id string, snap workflow.Submission, effects []workflow.Effect) workflow.Submission {
	queue := effects
	for len(queue) > 0 {
		eff := queue[0]
		queue = queue[1:]

		var ev workflow.Event
		switch e := eff.(type) {
		case workflow.EffectAbsorb:
			h.board.Absorb(e.Appointments...)
			continue

		case workflow.EffectValidateRemote:
			appt, err := h.api.Create(ctx, toCreateRequest(e.Draft))
			ev = createResultEvent(appt, err)

		case workflow.EffectOverwrite:
			res, err := h.api.Overwrite(ctx, calendarapi.OverwriteRequest{
				CreateRequest:        toCreateRequest(e.Draft),
				ConfirmOverwrite:     true,
				CancelAppointmentIDs: e.CancelIDs,
			})
			if err != nil {
				ev = workflow.OverwriteFailed{Err: err}
			} else {
				ev = workflow.OverwriteSucceeded{Appointment: res.Appointment, Cancelled: res.Cancelled}
			}

		default:
			continue
		}

		more, next, err := h.subs.Apply(id, ev)
		if err != nil {
			h.logger.Error("workflow transition failed", "submission", id, "err", err)
			return snap
		}
		snap = next
		queue = append(queue, more...)
	}
	return snap
}

func toCreateRequest(d workflow.Draft) calendarapi.CreateRequest {
	return calendarapi.CreateRequest{
		Title:           d.Title,
		Date:            d.Date,
		Time:            d.Time,
		DurationMinutes: d.DurationMinutes,
		StaffID:         d.StaffID,
		ParticipantID:   d.ParticipantID,
		MeetingType:     d.MeetingType,
		Description:     d.Description,
		TimezoneLabel:   d.TimezoneLabel,
	}
}

func createResultEvent(appt schedule.Appointment, err error) workflow.Event {
	if err == nil {
		return workflow.ServerAccepted{Appointment: appt}
	}
	var verr *schedule.ValidationError
	if errors.As(err, &verr) {
		return workflow.ServerRejected{Err: verr}
	}
	var cerr *schedule.ConflictError
	if errors.As(err, &cerr) {
		return workflow.ServerConflict{Err: cerr}
	}
	return workflow.TransportFailed{Err: err}
}

func (h *AgendaHandler) renderSubmission(w http.ResponseWriter, snap workflow.Submission) {
	resp := submissionResponse{
		SubmissionToken: snap.ID,
		State:           string(snap.State),
	}

	switch snap.State {
	case workflow.StateCreated:
		resp.Appointment = snap.Result
		resp.Cancelled = snap.Cancelled
		writeJSON(w, http.StatusCreated, resp)

	case workflow.StateRejected:
		if snap.Rejection != nil {
			resp.FieldErrors = snap.Rejection.Fields
			resp.Errors = snap.Rejection.General
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)

	case workflow.StateConflictDetected:
		if snap.Conflict != nil {
			resp.Conflict = &conflictPayload{
				Overlapping: snap.Conflict.Overlapping,
				Proposed:    snap.Conflict.Proposed,
			}
		}
		writeJSON(w, http.StatusConflict, resp)

	case workflow.StateAborted:
		writeJSON(w, http.StatusOK, resp)

	case workflow.StateDraft:
		// Only a transport failure lands back here after a submit.
		resp.Errors = []string{"calendar service unreachable, try again"}
		writeJSON(w, http.StatusBadGateway, resp)

	default:
		h.logger.Error("submission stuck in non-terminal state", "submission", snap.ID, "state", snap.State)
		writeJSON(w, http.StatusInternalServerError, resp)
	}
}

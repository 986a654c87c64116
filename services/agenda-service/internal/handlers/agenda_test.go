package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avery-cole/frontdesk/libs/schedule"
	"github.com/avery-cole/frontdesk/services/agenda-service/internal/board"
	"github.com/avery-cole/frontdesk/services/agenda-service/internal/calendarapi"
	"github.com/avery-cole/frontdesk/services/agenda-service/internal/workflow"
)

type fakeFeeds struct {
	rangeAppts []schedule.Appointment
}

func (f *fakeFeeds) Range(context.Context, schedule.DateKey, schedule.DateKey) ([]schedule.Appointment, error) {
	return f.rangeAppts, nil
}
func (f *fakeFeeds) Today(context.Context) ([]schedule.Appointment, error)    { return nil, nil }
func (f *fakeFeeds) Upcoming(context.Context) ([]schedule.Appointment, error) { return nil, nil }

type fakeAPI struct {
	createCalls    int
	createFn       func(calendarapi.CreateRequest) (schedule.Appointment, error)
	overwriteCalls int
	overwriteFn    func(calendarapi.OverwriteRequest) (calendarapi.OverwriteResult, error)
	slots          []calendarapi.Slot
	slotsErr       error
}

func (f *fakeAPI) Create(_ context.Context, req calendarapi.CreateRequest) (schedule.Appointment, error) {
	f.createCalls++
	return f.createFn(req)
}

func (f *fakeAPI) Overwrite(_ context.Context, req calendarapi.OverwriteRequest) (calendarapi.OverwriteResult, error) {
	f.overwriteCalls++
	return f.overwriteFn(req)
}

func (f *fakeAPI) Slots(context.Context, schedule.Window) ([]calendarapi.Slot, error) {
	return f.slots, f.slotsErr
}

func newTestAgenda(api *fakeAPI, feeds *fakeFeeds) *AgendaHandler {
	if feeds == nil {
		feeds = &fakeFeeds{}
	}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	return NewAgendaHandler(api, board.New(feeds), workflow.NewStore(time.Minute), logger)
}

func postJSON(t *testing.T, h http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "http://example.com", bytes.NewReader(raw))
	rw := httptest.NewRecorder()
	h(rw, req)
	return rw
}

func validSubmitBody() map[string]any {
	return map[string]any{
		"title":            "Client intake",
		"date":             "2024-06-10",
		"time":             "14:15",
		"duration_minutes": 30,
		"staff_id":         "staff-1",
		"participant_id":   "client-7",
	}
}

func serverAppt(id string, start int) schedule.Appointment {
	return schedule.Appointment{
		ID:              id,
		StaffID:         "staff-1",
		Date:            "2024-06-10",
		Start:           schedule.TimeOfDay(start),
		End:             schedule.TimeOfDay(start + 30),
		DurationMinutes: 30,
		Subject:         "Client intake",
		Status:          schedule.StatusScheduled,
	}
}

func TestSubmitCreated(t *testing.T) {
	api := &fakeAPI{
		createFn: func(req calendarapi.CreateRequest) (schedule.Appointment, error) {
			if req.Title != "Client intake" || req.Date != "2024-06-10" {
				t.Errorf("unexpected request: %+v", req)
			}
			return serverAppt("appt-1", 14*60+15), nil
		},
	}
	h := newTestAgenda(api, nil)

	rw := postJSON(t, h.Submit, validSubmitBody())
	if rw.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rw.Code, rw.Body.String())
	}
	var resp submissionResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.State != string(workflow.StateCreated) || resp.Appointment == nil || resp.Appointment.ID != "appt-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if day := h.board.Day("2024-06-10"); len(day) != 1 || day[0].ID != "appt-1" {
		t.Fatalf("created appointment must land on the board, got %+v", day)
	}
}

func TestSubmitLocalRejectionSkipsServer(t *testing.T) {
	api := &fakeAPI{createFn: func(calendarapi.CreateRequest) (schedule.Appointment, error) {
		t.Fatal("server must not be called for a locally invalid draft")
		return schedule.Appointment{}, nil
	}}
	h := newTestAgenda(api, nil)

	body := validSubmitBody()
	body["title"] = ""
	rw := postJSON(t, h.Submit, body)
	if rw.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rw.Code)
	}
	var resp submissionResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.State != string(workflow.StateRejected) || len(resp.FieldErrors["title"]) == 0 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestSubmitConflictThenConfirmOverwrite(t *testing.T) {
	conflict := &schedule.ConflictError{
		Overlapping: []schedule.Appointment{serverAppt("appt-1", 14*60)},
		Proposed:    serverAppt("", 14*60+15),
	}
	api := &fakeAPI{
		createFn: func(calendarapi.CreateRequest) (schedule.Appointment, error) {
			return schedule.Appointment{}, conflict
		},
		overwriteFn: func(req calendarapi.OverwriteRequest) (calendarapi.OverwriteResult, error) {
			if len(req.CancelAppointmentIDs) != 1 || req.CancelAppointmentIDs[0] != "appt-1" {
				t.Errorf("unexpected cancel ids: %v", req.CancelAppointmentIDs)
			}
			if !req.ConfirmOverwrite {
				t.Error("overwrite request must carry the confirmation flag")
			}
			cancelled := serverAppt("appt-1", 14*60)
			cancelled.Status = schedule.StatusCancelled
			return calendarapi.OverwriteResult{
				Appointment: serverAppt("appt-2", 14*60+15),
				Cancelled:   []schedule.Appointment{cancelled},
			}, nil
		},
	}
	h := newTestAgenda(api, nil)

	rw := postJSON(t, h.Submit, validSubmitBody())
	if rw.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rw.Code, rw.Body.String())
	}
	var prompt submissionResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &prompt); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if prompt.SubmissionToken == "" || prompt.Conflict == nil || len(prompt.Conflict.Overlapping) != 1 {
		t.Fatalf("unexpected conflict prompt: %+v", prompt)
	}

	rw2 := postJSON(t, h.ResolveConflict, map[string]any{
		"submission_token":  prompt.SubmissionToken,
		"confirm_overwrite": true,
	})
	if rw2.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rw2.Code, rw2.Body.String())
	}
	var done submissionResponse
	if err := json.Unmarshal(rw2.Body.Bytes(), &done); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if done.Appointment == nil || done.Appointment.ID != "appt-2" || len(done.Cancelled) != 1 {
		t.Fatalf("unexpected result: %+v", done)
	}

	// Both the new record and the tombstone reach the board.
	day := h.board.Day("2024-06-10")
	if len(day) != 2 {
		t.Fatalf("expected 2 records on the board, got %+v", day)
	}
	if api.overwriteCalls != 1 {
		t.Fatalf("expected one overwrite call, got %d", api.overwriteCalls)
	}

	// The token is spent.
	rw3 := postJSON(t, h.ResolveConflict, map[string]any{
		"submission_token":  prompt.SubmissionToken,
		"confirm_overwrite": true,
	})
	if rw3.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for spent token, got %d", rw3.Code)
	}
}

func TestResolveConflictAbort(t *testing.T) {
	api := &fakeAPI{
		createFn: func(calendarapi.CreateRequest) (schedule.Appointment, error) {
			return schedule.Appointment{}, &schedule.ConflictError{
				Overlapping: []schedule.Appointment{serverAppt("appt-1", 14*60)},
			}
		},
		overwriteFn: func(calendarapi.OverwriteRequest) (calendarapi.OverwriteResult, error) {
			t.Fatal("abort must not reach the server")
			return calendarapi.OverwriteResult{}, nil
		},
	}
	h := newTestAgenda(api, nil)

	rw := postJSON(t, h.Submit, validSubmitBody())
	var prompt submissionResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &prompt); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	rw2 := postJSON(t, h.ResolveConflict, map[string]any{"submission_token": prompt.SubmissionToken})
	if rw2.Code != http.StatusOK {
		t.Fatalf("expected 200 for abort, got %d", rw2.Code)
	}
	var done submissionResponse
	if err := json.Unmarshal(rw2.Body.Bytes(), &done); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if done.State != string(workflow.StateAborted) {
		t.Fatalf("expected aborted, got %s", done.State)
	}
	if len(h.board.Day("2024-06-10")) != 0 {
		t.Fatal("abort must leave the board untouched")
	}
}

func TestSubmitTransportFailureIsRetryable(t *testing.T) {
	api := &fakeAPI{createFn: func(calendarapi.CreateRequest) (schedule.Appointment, error) {
		return schedule.Appointment{}, schedule.ErrTransport
	}}
	h := newTestAgenda(api, nil)

	rw := postJSON(t, h.Submit, validSubmitBody())
	if rw.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rw.Code)
	}
	var resp submissionResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.State != string(workflow.StateDraft) {
		t.Fatalf("draft must survive a transport failure, got %s", resp.State)
	}
	if _, ok := h.subs.Get(resp.SubmissionToken); !ok {
		t.Fatal("submission should still be resumable")
	}
}

func TestViewBoard(t *testing.T) {
	feeds := &fakeFeeds{rangeAppts: []schedule.Appointment{
		serverAppt("appt-1", 9*60),
		serverAppt("appt-2", 10*60),
	}}
	h := newTestAgenda(&fakeAPI{}, feeds)

	req := httptest.NewRequest(http.MethodGet, "http://example.com?from=2024-06-10&to=2024-06-11", nil)
	rw := httptest.NewRecorder()
	h.ViewBoard(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	var resp boardResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Days) != 1 || resp.Days[0].Date != "2024-06-10" || len(resp.Days[0].Appointments) != 2 {
		t.Fatalf("unexpected board: %+v", resp)
	}
	if resp.Days[0].Appointments[0].Start != 9*60 {
		t.Fatalf("day must be start-sorted: %+v", resp.Days[0].Appointments)
	}
}

func TestViewDay(t *testing.T) {
	h := newTestAgenda(&fakeAPI{}, nil)
	h.board.Absorb(serverAppt("appt-1", 9*60))

	req := httptest.NewRequest(http.MethodGet, "http://example.com?date=2024-06-10", nil)
	rw := httptest.NewRecorder()
	h.ViewDay(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	var resp dayBucket
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Appointments) != 1 {
		t.Fatalf("unexpected day: %+v", resp)
	}

	reqEmpty := httptest.NewRequest(http.MethodGet, "http://example.com?date=2024-06-11", nil)
	rwEmpty := httptest.NewRecorder()
	h.ViewDay(rwEmpty, reqEmpty)
	var empty dayBucket
	if err := json.Unmarshal(rwEmpty.Body.Bytes(), &empty); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if empty.Appointments == nil || len(empty.Appointments) != 0 {
		t.Fatalf("unknown day renders empty list, got %+v", empty)
	}
}

func TestReschedule(t *testing.T) {
	h := newTestAgenda(&fakeAPI{}, nil)
	prior := serverAppt("appt-1", 14*60)
	prior.ClientID = "client-7"
	prior.MeetingType = "intake"
	h.board.Absorb(prior)

	rw := postJSON(t, h.Reschedule, map[string]any{"appointment_id": "appt-1"})
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	var resp map[string]draftPayload
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	draft := resp["draft"]
	if draft.Date != "" || draft.Time != "" {
		t.Fatalf("reschedule must clear date/time, got %+v", draft)
	}
	if draft.Title != "Client intake" || draft.StaffID != "staff-1" || draft.ParticipantID != "client-7" {
		t.Fatalf("reschedule must carry descriptive fields, got %+v", draft)
	}

	rw404 := postJSON(t, h.Reschedule, map[string]any{"appointment_id": "no-such"})
	if rw404.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rw404.Code)
	}
}

func TestSlotsLocalValidation(t *testing.T) {
	h := newTestAgenda(&fakeAPI{}, nil)

	req := httptest.NewRequest(http.MethodGet,
		"http://example.com?staff_id=staff-1&date_from=2024-06-10&date_to=2024-06-10&time_from=10:00&time_to=09:00&slot_minutes=30", nil)
	rw := httptest.NewRecorder()
	h.Slots(rw, req)
	if rw.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for inverted window, got %d", rw.Code)
	}
}

func TestSlotsProxy(t *testing.T) {
	api := &fakeAPI{slots: []calendarapi.Slot{{Date: "2024-06-10", StartMinutes: 570, EndMinutes: 600, Start: "09:30", End: "10:00"}}}
	h := newTestAgenda(api, nil)

	req := httptest.NewRequest(http.MethodGet,
		"http://example.com?staff_id=staff-1&date_from=2024-06-10&date_to=2024-06-10&time_from=09:00&time_to=10:30&slot_minutes=30", nil)
	rw := httptest.NewRecorder()
	h.Slots(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	var resp struct {
		Slots []calendarapi.Slot `json:"slots"`
	}
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Slots) != 1 || resp.Slots[0].Start != "09:30" {
		t.Fatalf("unexpected slots: %+v", resp.Slots)
	}
}

func TestStats(t *testing.T) {
	h := newTestAgenda(&fakeAPI{}, nil)
	completed := serverAppt("appt-1", 9*60)
	completed.Status = schedule.StatusCompleted
	noShow := serverAppt("appt-2", 10*60)
	noShow.Status = schedule.StatusNoShow
	h.board.Absorb(completed, noShow)

	req := httptest.NewRequest(http.MethodGet, "http://example.com?from=2024-06-01&to=2024-06-30", nil)
	rw := httptest.NewRecorder()
	h.Stats(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	var resp statsResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.NoShowRate != 0.5 {
		t.Fatalf("expected no-show rate 0.5, got %f", resp.NoShowRate)
	}
	if resp.CountByStatus[schedule.StatusCompleted] != 1 {
		t.Fatalf("unexpected counts: %+v", resp.CountByStatus)
	}
}

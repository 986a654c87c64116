package calendarapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/avery-cole/frontdesk/libs/schedule"
)

// Client talks to the calendar service. It never retries on its own;
// transport failures surface as schedule.ErrTransport and the caller
// decides.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type CreateRequest struct {
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

type OverwriteRequest struct {
	CreateRequest
	ConfirmOverwrite     bool     `json:"confirm_overwrite"`
	CancelAppointmentIDs []string `json:"cancel_appointment_ids"`
	Reason               string   `json:"reason,omitempty"`
}

type OverwriteResult struct {
	Appointment schedule.Appointment   `json:"appointment"`
	Cancelled   []schedule.Appointment `json:"cancelled_appointments"`
}

type Slot struct {
	Date         schedule.DateKey `json:"date"`
	StartMinutes int              `json:"start_minutes"`
	EndMinutes   int              `json:"end_minutes"`
	Start        string           `json:"start"`
	End          string           `json:"end"`
}

type appointmentEnvelope struct {
	Appointment schedule.Appointment `json:"appointment"`
}

type feedEnvelope struct {
	Appointments []schedule.Appointment `json:"appointments"`
}

type slotsEnvelope struct {
	Slots []Slot `json:"slots"`
}

func (c *Client) Create(ctx context.Context, req CreateRequest) (schedule.Appointment, error) {
	var out appointmentEnvelope
	if err := c.post(ctx, "/api/v1/appointments", req, http.StatusCreated, &out); err != nil {
		return schedule.Appointment{}, err
	}
	return out.Appointment, nil
}

func (c *Client) Overwrite(ctx context.Context, req OverwriteRequest) (OverwriteResult, error) {
	var out OverwriteResult
	if err := c.post(ctx, "/api/v1/appointments/overwrite", req, http.StatusCreated, &out); err != nil {
		return OverwriteResult{}, err
	}
	return out, nil
}

func (c *Client) Cancel(ctx context.Context, id, reason string) error {
	body := map[string]string{"appointment_id": id, "reason": reason}
	return c.post(ctx, "/api/v1/appointments/cancel", body, http.StatusOK, &json.RawMessage{})
}

func (c *Client) Range(ctx context.Context, from, to schedule.DateKey) ([]schedule.Appointment, error) {
	q := url.Values{"from": {string(from)}, "to": {string(to)}}
	var out feedEnvelope
	if err := c.get(ctx, "/api/v1/appointments", q, &out); err != nil {
		return nil, err
	}
	return out.Appointments, nil
}

func (c *Client) Today(ctx context.Context) ([]schedule.Appointment, error) {
	var out feedEnvelope
	if err := c.get(ctx, "/api/v1/appointments/today", nil, &out); err != nil {
		return nil, err
	}
	return out.Appointments, nil
}

func (c *Client) Upcoming(ctx context.Context) ([]schedule.Appointment, error) {
	var out feedEnvelope
	if err := c.get(ctx, "/api/v1/appointments/upcoming", nil, &out); err != nil {
		return nil, err
	}
	return out.Appointments, nil
}

func (c *Client) Slots(ctx context.Context, w schedule.Window) ([]Slot, error) {
	q := url.Values{
		"staff_id":     {w.StaffID},
		"date_from":    {string(w.DateFrom)},
		"date_to":      {string(w.DateTo)},
		"time_from":    {w.TimeFrom.String()},
		"time_to":      {w.TimeTo.String()},
		"slot_minutes": {strconv.Itoa(w.SlotMinutes)},
	}
	var out slotsEnvelope
	if err := c.get(ctx, "/api/v1/slots", q, &out); err != nil {
		return nil, err
	}
	return out.Slots, nil
}

func (c *Client) post(ctx context.Context, path string, body any, wantStatus int, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, wantStatus, out)
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	target := c.baseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	return c.do(req, http.StatusOK, out)
}

func (c *Client) do(req *http.Request, wantStatus int, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", schedule.ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", schedule.ErrTransport, err)
	}

	if resp.StatusCode == wantStatus {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("%w: malformed response body: %v", schedule.ErrTransport, err)
		}
		return nil
	}
	return decodeError(resp.StatusCode, raw)
}

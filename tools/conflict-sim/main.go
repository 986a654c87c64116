package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Drives the full conflict flow against a running agenda-service: book an
// appointment, submit an overlapping one, then confirm the overwrite.
func main() {
	var (
		baseURL  = flag.String("base-url", getenv("BASE_URL", "http://localhost:8085"), "agenda-service base url")
		date     = flag.String("date", getenv("SIM_DATE", time.Now().UTC().Format("2006-01-02")), "appointment date")
		staffID  = flag.String("staff-id", getenv("STAFF_ID", "staff-sim"), "staff member id")
		clientID = flag.String("client-id", getenv("CLIENT_ID", "client-sim"), "participant id")
		confirm  = flag.Bool("confirm", true, "confirm the overwrite after the conflict prompt")
	)
	flag.Parse()

	if strings.TrimSpace(*staffID) == "" {
		fatal("STAFF_ID is required")
	}

	first := submitBody("Conflict sim baseline", *date, "14:00", *staffID, *clientID)
	resp := post(*baseURL, "/api/v1/appointments", first)
	fmt.Printf("baseline: state=%s token=%s\n", resp.State, resp.SubmissionToken)
	if resp.State != "created" {
		fatal("baseline booking did not reach created: " + renderErrors(resp))
	}

	second := submitBody("Conflict sim challenger", *date, "14:15", *staffID, *clientID)
	resp = post(*baseURL, "/api/v1/appointments", second)
	fmt.Printf("challenger: state=%s token=%s\n", resp.State, resp.SubmissionToken)
	if resp.State != "conflict_detected" {
		fatal("challenger did not trigger a conflict: " + renderErrors(resp))
	}
	if resp.Conflict != nil {
		fmt.Printf("overlapping=%d\n", len(resp.Conflict.Overlapping))
	}

	if !*confirm {
		fmt.Println("confirm disabled, leaving conflict unresolved")
		return
	}

	resolve, err := json.Marshal(map[string]any{
		"submission_token":  resp.SubmissionToken,
		"confirm_overwrite": true,
	})
	if err != nil {
		fatal(err.Error())
	}
	resp = post(*baseURL, "/api/v1/appointments/overwrite", resolve)
	fmt.Printf("overwrite: state=%s cancelled=%d\n", resp.State, len(resp.Cancelled))
	if resp.State != "created" {
		fatal("overwrite did not reach created: " + renderErrors(resp))
	}
}

type submission struct {
	SubmissionToken string              `json:"submission_token"`
	State           string              `json:"state"`
	Cancelled       []json.RawMessage   `json:"cancelled_appointments"`
	Conflict        *conflictBody       `json:"conflict"`
	FieldErrors     map[string][]string `json:"field_errors"`
	Errors          []string            `json:"errors"`
}

type conflictBody struct {
	Overlapping []json.RawMessage `json:"overlapping_appointments"`
}

func submitBody(title, date, start, staffID, clientID string) []byte {
	body, err := json.Marshal(map[string]any{
		"title":            title,
		"date":             date,
		"time":             start,
		"duration_minutes": 30,
		"staff_id":         staffID,
		"participant_id":   clientID,
		"meeting_type":     "consultation",
	})
	if err != nil {
		fatal(err.Error())
	}
	return body
}

func post(baseURL, path string, body []byte) submission {
	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(baseURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		fatal(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatal(err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		fatal(err.Error())
	}
	fmt.Printf("POST %s status=%d\n", path, resp.StatusCode)

	var out submission
	if err := json.Unmarshal(raw, &out); err != nil {
		fatal(fmt.Sprintf("bad response body: %v: %s", err, raw))
	}
	return out
}

func renderErrors(s submission) string {
	parts := append([]string{}, s.Errors...)
	for field, msgs := range s.FieldErrors {
		parts = append(parts, field+": "+strings.Join(msgs, "; "))
	}
	if len(parts) == 0 {
		return "no error detail"
	}
	return strings.Join(parts, ", ")
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/avery-cole/frontdesk/libs/db"
	"github.com/avery-cole/frontdesk/libs/schedule"
	"github.com/avery-cole/frontdesk/services/calendar-service/internal/model"
	"github.com/avery-cole/frontdesk/services/calendar-service/internal/outbox"
)

var (
	// ErrStaleOverwrite means an overwrite named an appointment that no
	// longer exists or is no longer active. Nothing was applied.
	ErrStaleOverwrite = errors.New("overwrite targets are stale")
	// ErrResidualConflict means that after cancelling the named targets
	// the proposed interval still collided with an active appointment
	// booked in the meantime. Nothing was applied.
	ErrResidualConflict = errors.New("conflicting appointment booked concurrently")
)

type CalendarRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewCalendarRepository(pool *db.Pool, outboxRepo *outbox.Repository) *CalendarRepository {
	return &CalendarRepository{pool: pool, outbox: outboxRepo}
}

const appointmentColumns = `
	id, staff_id, COALESCE(client_id, ''), date, start_minutes, end_minutes,
	subject, status, COALESCE(meeting_type, ''), COALESCE(description, ''),
	COALESCE(timezone_label, ''), cancelled_at, COALESCE(cancel_reason, ''), created_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	var cancelledAt *time.Time
	err := row.Scan(
		&a.ID,
		&a.StaffID,
		&a.ClientID,
		&a.Date,
		&a.StartMinutes,
		&a.EndMinutes,
		&a.Subject,
		&a.Status,
		&a.MeetingType,
		&a.Description,
		&a.TimezoneLabel,
		&cancelledAt,
		&a.CancelReason,
		&a.CreatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	a.CancelledAt = cancelledAt
	return a, nil
}

func (r *CalendarRepository) collect(rows pgx.Rows) ([]model.Appointment, error) {
	defer rows.Close()
	var appts []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

// ListActiveByStaffDate returns the staff member's non-cancelled
// appointments for one calendar day, in start order.
func (r *CalendarRepository) ListActiveByStaffDate(ctx context.Context, staffID string, date schedule.DateKey) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE staff_id = $1 AND date = $2 AND status <> 'cancelled'
		ORDER BY start_minutes ASC, created_at ASC
	`, staffID, string(date))
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

// ListRange returns every appointment (any status) in the inclusive day
// range, ordered by day then start minute.
func (r *CalendarRepository) ListRange(ctx context.Context, from, to schedule.DateKey) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE date >= $1 AND date <= $2
		ORDER BY date ASC, start_minutes ASC, created_at ASC
	`, string(from), string(to))
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

// ListUpcoming returns active appointments on or after the given day.
func (r *CalendarRepository) ListUpcoming(ctx context.Context, from schedule.DateKey, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE date >= $1 AND status <> 'cancelled'
		ORDER BY date ASC, start_minutes ASC, created_at ASC
		LIMIT $2
	`, string(from), limit)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *CalendarRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	return scanAppointment(r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id))
}

// CreateScheduled persists the appointment and its booked event in one
// transaction. When idemKey matches a previous create, that create's
// appointment is returned instead of inserting a duplicate.
func (r *CalendarRepository) CreateScheduled(ctx context.Context, appt model.Appointment, idemKey string) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if idemKey != "" {
		replayID, replay, err := r.lockIdempotencyKey(ctx, tx, idemKey)
		if err != nil {
			return model.Appointment{}, err
		}
		if replay {
			prior, err := scanAppointment(tx.QueryRow(ctx, `
				SELECT `+appointmentColumns+` FROM appointments WHERE id = $1
			`, replayID))
			if err != nil {
				return model.Appointment{}, err
			}
			return prior, tx.Commit(ctx)
		}
	}

	created, err := r.insertAppointment(ctx, tx, appt)
	if err != nil {
		return model.Appointment{}, err
	}
	if err := r.insertEvent(ctx, tx, outbox.EventAppointmentBooked, created, nil); err != nil {
		return model.Appointment{}, err
	}
	if idemKey != "" {
		if err := r.finalizeIdempotencyKey(ctx, tx, idemKey, created.ID); err != nil {
			return model.Appointment{}, err
		}
	}
	return created, tx.Commit(ctx)
}

// Cancel marks a single appointment cancelled and emits the event.
func (r *CalendarRepository) Cancel(ctx context.Context, id, reason string) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cancelled, err := scanAppointment(tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
			cancelled_at = now(),
			cancel_reason = $2
		WHERE id = $1 AND status <> 'cancelled'
		RETURNING `+appointmentColumns+`
	`, id, reason))
	if err != nil {
		return model.Appointment{}, err
	}
	if err := r.insertEvent(ctx, tx, outbox.EventAppointmentCancelled, cancelled, nil); err != nil {
		return model.Appointment{}, err
	}
	return cancelled, tx.Commit(ctx)
}

// Overwrite cancels every named appointment and creates the proposed
// one in a single transaction. Either the whole set is applied or none
// of it: stale targets, residual conflicts, and storage failures all
// roll back with nothing changed.
func (r *CalendarRepository) Overwrite(ctx context.Context, appt model.Appointment, cancelIDs []string, reason string) (model.Appointment, []model.Appointment, error) {
	if len(cancelIDs) == 0 {
		return model.Appointment{}, nil, fmt.Errorf("%w: no cancel targets", ErrStaleOverwrite)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = ANY($1)
		FOR UPDATE
	`, cancelIDs)
	if err != nil {
		return model.Appointment{}, nil, err
	}
	targets, err := r.collect(rows)
	if err != nil {
		return model.Appointment{}, nil, err
	}
	if len(targets) != len(cancelIDs) {
		return model.Appointment{}, nil, ErrStaleOverwrite
	}
	for _, target := range targets {
		if target.Status == schedule.StatusCancelled || target.StaffID != appt.StaffID {
			return model.Appointment{}, nil, ErrStaleOverwrite
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
			cancelled_at = now(),
			cancel_reason = $2
		WHERE id = ANY($1)
	`, cancelIDs, reason); err != nil {
		return model.Appointment{}, nil, err
	}

	// The named conflicts are gone inside this transaction; anything
	// still overlapping was booked concurrently and aborts the whole
	// overwrite.
	residualRows, err := tx.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE staff_id = $1 AND date = $2 AND status <> 'cancelled'
		FOR UPDATE
	`, appt.StaffID, string(appt.Date))
	if err != nil {
		return model.Appointment{}, nil, err
	}
	residual, err := r.collect(residualRows)
	if err != nil {
		return model.Appointment{}, nil, err
	}
	for _, other := range residual {
		if schedule.Overlaps(
			schedule.TimeOfDay(other.StartMinutes), schedule.TimeOfDay(other.EndMinutes),
			schedule.TimeOfDay(appt.StartMinutes), schedule.TimeOfDay(appt.EndMinutes),
		) {
			return model.Appointment{}, nil, ErrResidualConflict
		}
	}

	created, err := r.insertAppointment(ctx, tx, appt)
	if err != nil {
		return model.Appointment{}, nil, err
	}

	cancelled := make([]model.Appointment, 0, len(targets))
	now := time.Now().UTC()
	for _, target := range targets {
		target.Status = schedule.StatusCancelled
		target.CancelledAt = &now
		target.CancelReason = reason
		cancelled = append(cancelled, target)
	}

	if err := r.insertEvent(ctx, tx, outbox.EventAppointmentOverwritten, created, cancelIDs); err != nil {
		return model.Appointment{}, nil, err
	}

	return created, cancelled, tx.Commit(ctx)
}

func (r *CalendarRepository) insertAppointment(ctx context.Context, tx pgx.Tx, appt model.Appointment) (model.Appointment, error) {
	id := uuid.NewString()
	return scanAppointment(tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, staff_id, client_id, date, start_minutes, end_minutes,
			 subject, status, meeting_type, description, timezone_label)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+appointmentColumns+`
	`, id, appt.StaffID, appt.ClientID, string(appt.Date), appt.StartMinutes, appt.EndMinutes,
		appt.Subject, string(appt.Status), appt.MeetingType, appt.Description, appt.TimezoneLabel))
}

func (r *CalendarRepository) insertEvent(ctx context.Context, tx pgx.Tx, eventType string, appt model.Appointment, cancelledIDs []string) error {
	payload, err := json.Marshal(eventPayload{
		AppointmentID: appt.ID,
		StaffID:       appt.StaffID,
		ClientID:      appt.ClientID,
		Date:          string(appt.Date),
		StartMinutes:  appt.StartMinutes,
		EndMinutes:    appt.EndMinutes,
		Subject:       appt.Subject,
		Status:        string(appt.Status),
		MeetingType:   appt.MeetingType,
		CancelledIDs:  cancelledIDs,
	})
	if err != nil {
		return err
	}
	return r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       payload,
	})
}

type eventPayload struct {
	AppointmentID string   `json:"appointment_id"`
	StaffID       string   `json:"staff_id"`
	ClientID      string   `json:"client_id,omitempty"`
	Date          string   `json:"date"`
	StartMinutes  int      `json:"start_minutes"`
	EndMinutes    int      `json:"end_minutes"`
	Subject       string   `json:"subject"`
	Status        string   `json:"status"`
	MeetingType   string   `json:"meeting_type,omitempty"`
	CancelledIDs  []string `json:"cancelled_appointment_ids,omitempty"`
}

func (r *CalendarRepository) lockIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) (string, bool, error) {
	var apptID *string
	err := tx.QueryRow(ctx, `
		SELECT appointment_id FROM calendar_idempotency_keys
		WHERE idempotency_key = $1
		FOR UPDATE
	`, key).Scan(&apptID)
	if err == nil {
		if apptID != nil && *apptID != "" {
			return *apptID, true, nil
		}
		return "", false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO calendar_idempotency_keys (idempotency_key)
		VALUES ($1)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, key); err != nil {
		return "", false, err
	}
	err = tx.QueryRow(ctx, `
		SELECT appointment_id FROM calendar_idempotency_keys
		WHERE idempotency_key = $1
		FOR UPDATE
	`, key).Scan(&apptID)
	if err != nil {
		return "", false, err
	}
	if apptID != nil && *apptID != "" {
		return *apptID, true, nil
	}
	return "", false, nil
}

func (r *CalendarRepository) finalizeIdempotencyKey(ctx context.Context, tx pgx.Tx, key, appointmentID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE calendar_idempotency_keys
		SET appointment_id = $2, updated_at = now()
		WHERE idempotency_key = $1
	`, key, appointmentID)
	return err
}

func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

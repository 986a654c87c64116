package workflow

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/avery-cole/frontdesk/libs/schedule"
)

// Submission states. Created, Rejected, and Aborted are terminal.
type State string

const (
	StateDraft            State = "draft"
	StateValidating       State = "validating"
	StateCreated          State = "created"
	StateRejected         State = "rejected"
	StateConflictDetected State = "conflict_detected"
	StateAborted          State = "aborted"
	StateOverwriting      State = "overwriting"
)

func (s State) Terminal() bool {
	return s == StateCreated || s == StateRejected || s == StateAborted
}

var (
	// ErrSubmissionInFlight rejects a second Submit or ConfirmOverwrite
	// while a request for this submission is still outstanding.
	ErrSubmissionInFlight = errors.New("submission already in flight")
	// ErrInvalidTransition rejects an event the current state cannot
	// accept. The submission is left unchanged.
	ErrInvalidTransition = errors.New("invalid transition")
)

// Draft is the user's proposed appointment before the calendar service
// has seen it.
type Draft struct {
	Title           string
	Date            string
	Time            string
	DurationMinutes int
	StaffID         string
	ParticipantID   string
	MeetingType     string
	Description     string
	TimezoneLabel   string
}

// Submission tracks one appointment proposal through the conflict
// resolution flow. All mutation goes through Apply; the machine does
// no I/O, effects tell the caller what to run.
type Submission struct {
	ID        string
	State     State
	Draft     Draft
	Conflict  *schedule.ConflictError
	Rejection *schedule.ValidationError
	Result    *schedule.Appointment
	Cancelled []schedule.Appointment
	LastError error

	inFlight bool
}

func NewSubmission(draft Draft) *Submission {
	return &Submission{
		ID:    uuid.NewString(),
		State: StateDraft,
		Draft: draft,
	}
}

// Events.
type Event interface{ isEvent() }

type Submit struct{}

type ServerAccepted struct{ Appointment schedule.Appointment }

type ServerRejected struct{ Err *schedule.ValidationError }

type ServerConflict struct{ Err *schedule.ConflictError }

type ConfirmOverwrite struct{}

type Abort struct{}

type OverwriteSucceeded struct {
	Appointment schedule.Appointment
	Cancelled   []schedule.Appointment
}

type OverwriteFailed struct{ Err error }

// TransportFailed reports that the validation request never got a
// definite answer. The draft returns to the user for retry.
type TransportFailed struct{ Err error }

func (Submit) isEvent()             {}
func (ServerAccepted) isEvent()     {}
func (ServerRejected) isEvent()     {}
func (ServerConflict) isEvent()     {}
func (ConfirmOverwrite) isEvent()   {}
func (Abort) isEvent()              {}
func (OverwriteSucceeded) isEvent() {}
func (OverwriteFailed) isEvent()    {}
func (TransportFailed) isEvent()    {}

// Effects the caller interprets against the calendar service and the
// board.
type Effect interface{ isEffect() }

type EffectValidateRemote struct{ Draft Draft }

type EffectOverwrite struct {
	Draft     Draft
	CancelIDs []string
}

type EffectAbsorb struct{ Appointments []schedule.Appointment }

func (EffectValidateRemote) isEffect() {}
func (EffectOverwrite) isEffect()      {}
func (EffectAbsorb) isEffect()         {}

// Apply advances the submission. On error the submission is unchanged,
// except that a failed local pre-validation on Submit lands in
// Rejected with the field errors recorded.
func (s *Submission) Apply(ev Event) ([]Effect, error) {
	switch e := ev.(type) {
	case Submit:
		if s.inFlight {
			return nil, ErrSubmissionInFlight
		}
		if s.State != StateDraft {
			return nil, ErrInvalidTransition
		}
		if verr := s.Draft.prevalidate(); !verr.Empty() {
			s.State = StateRejected
			s.Rejection = verr
			return nil, nil
		}
		s.State = StateValidating
		s.inFlight = true
		return []Effect{EffectValidateRemote{Draft: s.Draft}}, nil

	case ServerAccepted:
		if s.State != StateValidating {
			return nil, ErrInvalidTransition
		}
		s.State = StateCreated
		s.inFlight = false
		appt := e.Appointment
		s.Result = &appt
		return []Effect{EffectAbsorb{Appointments: []schedule.Appointment{appt}}}, nil

	case ServerRejected:
		if s.State != StateValidating {
			return nil, ErrInvalidTransition
		}
		s.State = StateRejected
		s.inFlight = false
		s.Rejection = e.Err
		return nil, nil

	case ServerConflict:
		if s.State != StateValidating {
			return nil, ErrInvalidTransition
		}
		s.State = StateConflictDetected
		s.inFlight = false
		s.Conflict = e.Err
		return nil, nil

	case ConfirmOverwrite:
		if s.inFlight {
			return nil, ErrSubmissionInFlight
		}
		if s.State != StateConflictDetected || s.Conflict == nil {
			return nil, ErrInvalidTransition
		}
		ids := make([]string, 0, len(s.Conflict.Overlapping))
		for _, a := range s.Conflict.Overlapping {
			if a.ID != "" {
				ids = append(ids, a.ID)
			}
		}
		s.State = StateOverwriting
		s.inFlight = true
		return []Effect{EffectOverwrite{Draft: s.Draft, CancelIDs: ids}}, nil

	case Abort:
		if s.inFlight {
			return nil, ErrSubmissionInFlight
		}
		if s.State != StateDraft && s.State != StateConflictDetected {
			return nil, ErrInvalidTransition
		}
		s.State = StateAborted
		return nil, nil

	case OverwriteSucceeded:
		if s.State != StateOverwriting {
			return nil, ErrInvalidTransition
		}
		s.State = StateCreated
		s.inFlight = false
		appt := e.Appointment
		s.Result = &appt
		s.Cancelled = e.Cancelled
		absorbed := append([]schedule.Appointment{appt}, e.Cancelled...)
		return []Effect{EffectAbsorb{Appointments: absorbed}}, nil

	case OverwriteFailed:
		if s.State != StateOverwriting {
			return nil, ErrInvalidTransition
		}
		// Nothing was applied server-side. A failed overwrite ends the
		// attempt the same way a fresh rejection would; the user starts
		// over from a new draft.
		s.State = StateRejected
		s.inFlight = false
		s.LastError = &schedule.OverwriteFailedError{Cause: e.Err}
		verr := schedule.NewValidationError()
		verr.Add("", s.LastError.Error())
		s.Rejection = verr
		return nil, nil

	case TransportFailed:
		if s.State != StateValidating {
			return nil, ErrInvalidTransition
		}
		s.State = StateDraft
		s.inFlight = false
		s.LastError = e.Err
		return nil, nil

	default:
		return nil, ErrInvalidTransition
	}
}

// prevalidate mirrors the calendar service's field rules so obviously
// broken drafts never leave the process.
func (d Draft) prevalidate() *schedule.ValidationError {
	verr := schedule.NewValidationError()
	if strings.TrimSpace(d.Title) == "" {
		verr.Add("title", "cannot be blank")
	}
	if strings.TrimSpace(d.StaffID) == "" {
		verr.Add("staff_id", "cannot be blank")
	}
	if _, err := schedule.ParseDateInput(strings.TrimSpace(d.Date)); err != nil {
		verr.Add("date", "must be a real calendar date")
	}
	if _, err := schedule.ParseTimeOfDay(strings.TrimSpace(d.Time)); err != nil {
		verr.Add("time", "must be a clock time in HH:MM form")
	}
	if d.DurationMinutes <= 0 || d.DurationMinutes > schedule.MaxSlotMinutes {
		verr.Add("duration_minutes", "must be between 1 and 480 minutes")
	}
	return verr
}

// Reschedule seeds a fresh draft from an existing appointment. The
// date and time are cleared on purpose; staff, participant, and
// descriptive fields carry over. The prior record is untouched.
func Reschedule(prior schedule.Appointment) Draft {
	return Draft{
		Title:           prior.Subject,
		DurationMinutes: prior.DurationMinutes,
		StaffID:         prior.StaffID,
		ParticipantID:   prior.ClientID,
		MeetingType:     prior.MeetingType,
		Description:     prior.Description,
		TimezoneLabel:   prior.TimezoneLabel,
	}
}

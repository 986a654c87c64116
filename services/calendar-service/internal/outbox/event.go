package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (one topic per event type).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Calendar event types published by this service.
const (
	EventAppointmentBooked      = "calendar.appointment.booked.v1"
	EventAppointmentCancelled   = "calendar.appointment.cancelled.v1"
	EventAppointmentOverwritten = "calendar.appointment.overwritten.v1"
)

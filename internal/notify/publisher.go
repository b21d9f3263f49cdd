package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
)

// Event is the payload pushed to a clinic's notification channel after a
// booking commits. Delivery is best-effort; nothing in the booking path
// depends on it.
type Event struct {
	Type             string     `json:"type"`
	AppointmentID    uuid.UUID  `json:"appointment_id"`
	ClinicID         uuid.UUID  `json:"clinic_id"`
	PatientName      string     `json:"patient_name,omitempty"`
	PractitionerName string     `json:"practitioner_name,omitempty"`
	StartAt          time.Time  `json:"start_at"`
	DurationMinutes  int        `json:"duration_minutes"`
	OccurredAt       time.Time  `json:"occurred_at"`
}

// Publisher is the notification sink the scheduling service writes to.
type Publisher interface {
	Publish(ctx context.Context, clinicID uuid.UUID, ev Event) error
}

// Nop discards every event. Used in tests and when redis is not configured.
type Nop struct{}

func (Nop) Publish(context.Context, uuid.UUID, Event) error { return nil }

// ClinicChannel returns the pub/sub channel name for a clinic.
func ClinicChannel(clinicID uuid.UUID) string {
	return "clinic:" + clinicID.String() + ":appointments"
}

package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrClinicNotFound       = errors.New("clinic not found")
	ErrPatientNotFound      = errors.New("patient not found")
	ErrPractitionerNotFound = errors.New("practitioner not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")

	// ErrTxConflict is returned by a TxRunner when the database aborts a
	// transaction for serialization or unique-key reasons. The booking path
	// retries on it a bounded number of times.
	ErrTxConflict = errors.New("transaction conflict")
)

// Repository contains all DB interactions needed by the scheduling service.
// A TxRunner hands the service a Repository bound to one transaction.
type Repository interface {
	GetClinicByID(ctx context.Context, id uuid.UUID) (*Clinic, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error)

	// Availability rules. date parameters are civil dates (see civilDate).
	ListRecurringRules(ctx context.Context, practitionerID uuid.UUID, weekday time.Weekday) ([]AvailabilityRule, error)
	ListOverrideRules(ctx context.Context, practitionerID uuid.UUID, date time.Time) ([]AvailabilityRule, error)
	UpsertRecurringRule(ctx context.Context, rule AvailabilityRule) (*AvailabilityRule, error)
	UpsertOverrideRule(ctx context.Context, rule AvailabilityRule) (*AvailabilityRule, error)
	DeleteOccupiedOverride(ctx context.Context, practitionerID uuid.UUID, date time.Time, startMinute, endMinute int) error

	// Appointments
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)
	FindAppointmentAtStart(ctx context.Context, patientID, clinicID uuid.UUID, startAt time.Time) (*Appointment, error)
	ListAppointmentsOverlapping(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Appointment, error)
	CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)

	// Stale-booking sweeper
	FindStalePending(ctx context.Context, olderThan time.Time) ([]Appointment, error)
}

// TxRunner executes fn inside one atomic unit against a Repository bound to
// that unit. Implementations must guarantee isolation strong enough that two
// concurrent bookings of the same window cannot both commit.
type TxRunner interface {
	InTx(ctx context.Context, fn func(Repository) error) error
}

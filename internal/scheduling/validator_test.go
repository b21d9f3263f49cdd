package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) window(hour, duration int) bookingWindow {
	b, err := e.svc.normalize(e.bookingAt(hour, 0, duration))
	if err != nil {
		panic(err)
	}
	return b
}

func TestValidateUnknownPatient(t *testing.T) {
	env := newTestEnv()
	env.openMondays(9*60, 17*60)

	b := env.window(10, 30)
	b.patientID = uuid.New()

	err := validateBooking(context.Background(), env.repo, time.UTC, b)
	assert.ErrorIs(t, err, ErrPatientNotFound)
}

func TestValidateUnknownClinic(t *testing.T) {
	env := newTestEnv()

	b := env.window(10, 30)
	b.clinicID = uuid.New()

	err := validateBooking(context.Background(), env.repo, time.UTC, b)
	assert.ErrorIs(t, err, ErrClinicNotFound)
}

func TestValidateUnknownPractitioner(t *testing.T) {
	env := newTestEnv()

	b := env.window(10, 30)
	other := uuid.New()
	b.practitionerID = &other

	err := validateBooking(context.Background(), env.repo, time.UTC, b)
	assert.ErrorIs(t, err, ErrPractitionerNotFound)
}

func TestValidatePatientFromAnotherClinic(t *testing.T) {
	env := newTestEnv()
	env.openMondays(9*60, 17*60)

	other := env.repo.addClinic("Hillside Clinic")
	stranger := env.repo.addPatient(other.ID, "Ben Okri")

	b := env.window(10, 30)
	b.patientID = stranger.ID

	err := validateBooking(context.Background(), env.repo, time.UTC, b)
	assert.ErrorIs(t, err, ErrPatientNotInClinic)
}

func TestValidateDuplicateStart(t *testing.T) {
	env := newTestEnv()
	env.openMondays(9*60, 17*60)

	b := env.window(10, 30)
	_, err := env.repo.CreateAppointment(context.Background(), Appointment{
		PatientID:       env.patient.ID,
		ClinicID:        env.clinic.ID,
		StartAt:         b.start,
		DurationMinutes: 30,
		Status:          StatusScheduled,
	})
	require.NoError(t, err)

	err = validateBooking(context.Background(), env.repo, time.UTC, b)
	assert.ErrorIs(t, err, ErrDuplicateBooking)
}

func TestValidateBlockedWindow(t *testing.T) {
	env := newTestEnv()
	env.openMondays(9*60, 17*60)
	env.overrideOn(monday, 10*60, 11*60, RuleBlocked)

	err := validateBooking(context.Background(), env.repo, time.UTC, env.window(10, 30))
	assert.ErrorIs(t, err, ErrSlotBlocked)
}

func TestValidateOutsideAvailability(t *testing.T) {
	env := newTestEnv()
	env.openMondays(9*60, 17*60)

	err := validateBooking(context.Background(), env.repo, time.UTC, env.window(18, 30))
	assert.ErrorIs(t, err, ErrOutsideAvailability)
}

func TestValidateNoRulesAtAll(t *testing.T) {
	env := newTestEnv()

	err := validateBooking(context.Background(), env.repo, time.UTC, env.window(10, 30))
	assert.ErrorIs(t, err, ErrOutsideAvailability)
}

// An open override for the date takes precedence over the weekly rule: the
// recurring window no longer counts once the date has its own open hours.
func TestValidateOverridePrecedesRecurring(t *testing.T) {
	env := newTestEnv()
	env.openMondays(9*60, 17*60)
	env.overrideOn(monday, 14*60, 16*60, RuleOpen)

	err := validateBooking(context.Background(), env.repo, time.UTC, env.window(10, 30))
	assert.ErrorIs(t, err, ErrOutsideAvailability)

	err = validateBooking(context.Background(), env.repo, time.UTC, env.window(14, 30))
	assert.NoError(t, err)
}

func TestValidateOverlappingAppointment(t *testing.T) {
	env := newTestEnv()
	env.openMondays(9*60, 17*60)

	otherPatient := env.repo.addPatient(env.clinic.ID, "Cleo Marsh")
	_, err := env.repo.CreateAppointment(context.Background(), Appointment{
		PatientID:       otherPatient.ID,
		ClinicID:        env.clinic.ID,
		PractitionerID:  &env.practitioner.ID,
		StartAt:         monday.Add(10 * time.Hour),
		DurationMinutes: 60,
		Status:          StatusScheduled,
	})
	require.NoError(t, err)

	// Partially overlapping window.
	err = validateBooking(context.Background(), env.repo, time.UTC, env.window(10, 90))
	assert.ErrorIs(t, err, ErrOverlappingAppointment)
}

func TestValidateOccupiedOverride(t *testing.T) {
	env := newTestEnv()
	env.openMondays(9*60, 17*60)
	env.overrideOn(monday, 10*60, 11*60, RuleOccupied)

	err := validateBooking(context.Background(), env.repo, time.UTC, env.window(10, 30))
	assert.ErrorIs(t, err, ErrSlotOccupied)
}

func TestValidatePassesOnFreeWindow(t *testing.T) {
	env := newTestEnv()
	env.openMondays(9*60, 17*60)

	err := validateBooking(context.Background(), env.repo, time.UTC, env.window(10, 30))
	assert.NoError(t, err)
}

func TestValidateWithoutPractitionerSkipsAvailabilityChecks(t *testing.T) {
	env := newTestEnv()

	b := env.window(10, 30)
	b.practitionerID = nil

	err := validateBooking(context.Background(), env.repo, time.UTC, b)
	assert.NoError(t, err)
}

func TestIsValidationError(t *testing.T) {
	assert.True(t, IsValidationError(ErrSlotBlocked))
	assert.True(t, IsValidationError(ErrPatientNotFound))
	assert.False(t, IsValidationError(ErrTxConflict))
	assert.False(t, IsValidationError(context.Canceled))
}

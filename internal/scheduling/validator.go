package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/careloop/clinic-scheduling/internal/interval"
)

// Validation failures. Each check has its own sentinel so handlers can
// surface a precise rejection reason.
var (
	ErrPatientNotInClinic      = errors.New("patient is not registered with this clinic")
	ErrPractitionerNotInClinic = errors.New("practitioner does not belong to this clinic")
	ErrDuplicateBooking        = errors.New("patient already has an appointment at this time")
	ErrSlotBlocked             = errors.New("the requested window is blocked")
	ErrOutsideAvailability     = errors.New("the requested window is outside the practitioner's availability")
	ErrOverlappingAppointment  = errors.New("practitioner already has an overlapping appointment")
	ErrSlotOccupied            = errors.New("the requested window is already occupied")
)

// bookingWindow is a normalized booking candidate: start is clinic-local,
// the date is the local civil date, minutes are the window's time of day.
type bookingWindow struct {
	patientID      uuid.UUID
	clinicID       uuid.UUID
	practitionerID *uuid.UUID
	start          time.Time
	end            time.Time
	date           time.Time // civil date (see civilDate)
	weekday        time.Weekday
	startMinute    int
	endMinute      int
}

func (b bookingWindow) interval() interval.Interval {
	return interval.Interval{Start: b.start, End: b.end}
}

// validateBooking runs the booking checks in order against repo's view of the
// data. Inside the booking transaction that view is the transaction's own, so
// every check holds at commit time. Checks are deliberately not collapsed:
// each failure mode keeps its own error.
func validateBooking(ctx context.Context, repo Repository, loc *time.Location, b bookingWindow) error {
	// 1. Entities must exist.
	patient, err := repo.GetPatientByID(ctx, b.patientID)
	if err != nil {
		return err
	}
	if _, err := repo.GetClinicByID(ctx, b.clinicID); err != nil {
		return err
	}
	if b.practitionerID != nil {
		if _, err := repo.GetPractitionerByID(ctx, *b.practitionerID); err != nil {
			return err
		}
	}

	// 2. Tenant boundary: the patient belongs to the booking clinic.
	if patient.ClinicID != b.clinicID {
		return ErrPatientNotInClinic
	}

	// 3. Duplicate guard, keyed on the exact start instant.
	existing, err := repo.FindAppointmentAtStart(ctx, b.patientID, b.clinicID, b.start)
	if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
		return fmt.Errorf("check duplicate booking: %w", err)
	}
	if existing != nil {
		return ErrDuplicateBooking
	}

	if b.practitionerID == nil {
		return nil
	}
	practitionerID := *b.practitionerID

	overrides, err := repo.ListOverrideRules(ctx, practitionerID, b.date)
	if err != nil {
		return fmt.Errorf("list override rules: %w", err)
	}
	recurring, err := repo.ListRecurringRules(ctx, practitionerID, b.weekday)
	if err != nil {
		return fmt.Errorf("list recurring rules: %w", err)
	}

	year, month, day := b.start.In(loc).Date()
	window := b.interval()

	// 4. No admin block overlapping the window.
	for _, rule := range append(append([]AvailabilityRule{}, overrides...), recurring...) {
		if rule.Kind == RuleBlocked && rule.WindowOn(year, month, day, loc).Overlaps(window) {
			return ErrSlotBlocked
		}
	}

	// 5. Availability must cover the window. A date's open overrides take
	// precedence; recurring rules apply only when the date has none.
	var openOverrides, openRecurring []AvailabilityRule
	for _, rule := range overrides {
		if rule.Kind == RuleOpen {
			openOverrides = append(openOverrides, rule)
		}
	}
	for _, rule := range recurring {
		if rule.Kind == RuleOpen {
			openRecurring = append(openRecurring, rule)
		}
	}

	covering := openOverrides
	if len(covering) == 0 {
		covering = openRecurring
	}
	covered := false
	for _, rule := range covering {
		if rule.WindowOn(year, month, day, loc).Contains(window) {
			covered = true
			break
		}
	}
	if !covered {
		return ErrOutsideAvailability
	}

	// 6. No overlapping non-cancelled appointment for the practitioner.
	overlapping, err := repo.ListAppointmentsOverlapping(ctx, practitionerID, b.start, b.end)
	if err != nil {
		return fmt.Errorf("list overlapping appointments: %w", err)
	}
	if len(overlapping) > 0 {
		return ErrOverlappingAppointment
	}

	// 7. No occupied override overlapping the window. Distinct from check 4:
	// occupied rows come from earlier bookings, blocked rows from admins.
	for _, rule := range overrides {
		if rule.Kind == RuleOccupied && rule.WindowOn(year, month, day, loc).Overlaps(window) {
			return ErrSlotOccupied
		}
	}

	return nil
}

// IsValidationError reports whether err is a booking rejection the caller
// should treat as a client error rather than a server fault.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrPatientNotFound,
		ErrClinicNotFound,
		ErrPractitionerNotFound,
		ErrPatientNotInClinic,
		ErrPractitionerNotInClinic,
		ErrDuplicateBooking,
		ErrSlotBlocked,
		ErrOutsideAvailability,
		ErrOverlappingAppointment,
		ErrSlotOccupied,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

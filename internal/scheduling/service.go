package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careloop/clinic-scheduling/internal/config"
	"github.com/careloop/clinic-scheduling/internal/notify"
)

var (
	ErrInvalidInput = errors.New("invalid booking input")

	// ErrBookingConflict is returned when the retry budget for concurrent
	// booking conflicts is exhausted. The slot was most likely taken.
	ErrBookingConflict = errors.New("booking conflicts with a concurrent request, please retry")

	ErrAlreadyCancelled = errors.New("appointment is already cancelled")
)

type Service struct {
	store      Repository
	tx         TxRunner
	pub        notify.Publisher
	loc        *time.Location
	retries    int
	pendingTTL time.Duration
	log        zerolog.Logger
}

func NewService(store Repository, tx TxRunner, pub notify.Publisher, cfg config.Config, log zerolog.Logger) *Service {
	retries := cfg.BookingRetries
	if retries < 1 {
		retries = 1
	}
	return &Service{
		store:      store,
		tx:         tx,
		pub:        pub,
		loc:        cfg.ClinicLocation,
		retries:    retries,
		pendingTTL: cfg.PendingTTL,
		log:        log,
	}
}

type BookingRequest struct {
	PatientID       uuid.UUID
	ClinicID        uuid.UUID
	PractitionerID  *uuid.UUID
	StartAt         time.Time // any offset; re-expressed in the clinic zone
	DurationMinutes int
	Context         string
}

// BookAppointment validates and books atomically. Validation, the
// occupied-override write and the appointment insert share one serializable
// transaction, so two concurrent bookings of the same window cannot both
// commit; the losing transaction is retried up to the configured budget and
// then rejected as a conflict. The post-commit notification is best-effort.
func (s *Service) BookAppointment(ctx context.Context, req BookingRequest) (*AppointmentDetail, error) {
	b, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	var created *Appointment

	err = s.runTx(ctx, func(repo Repository) error {
		if err := validateBooking(ctx, repo, s.loc, b); err != nil {
			return err
		}

		// Tenant recheck inside the transaction. The validator covers the
		// patient side; the practitioner side is verified here.
		if b.practitionerID != nil {
			practitioner, err := repo.GetPractitionerByID(ctx, *b.practitionerID)
			if err != nil {
				return err
			}
			if practitioner.ClinicID != b.clinicID {
				return ErrPractitionerNotInClinic
			}

			// Convert the booked window into a standing occupied override
			// so resolver reads exclude it without consulting the
			// appointment row. The unique override key makes this the
			// contention point for racing bookings.
			_, err = repo.UpsertOverrideRule(ctx, AvailabilityRule{
				PractitionerID: *b.practitionerID,
				ClinicID:       b.clinicID,
				Date:           &b.date,
				StartMinute:    b.startMinute,
				EndMinute:      b.endMinute,
				Kind:           RuleOccupied,
			})
			if err != nil {
				return fmt.Errorf("write occupied override: %w", err)
			}
		}

		appt, err := repo.CreateAppointment(ctx, Appointment{
			PatientID:       b.patientID,
			ClinicID:        b.clinicID,
			PractitionerID:  b.practitionerID,
			StartAt:         b.start,
			DurationMinutes: req.DurationMinutes,
			Status:          StatusPending,
			Context:         req.Context,
		})
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		created = appt
		return nil
	})
	if err != nil {
		return nil, err
	}

	detail, err := s.store.GetAppointmentDetail(ctx, created.ID)
	if err != nil {
		// The booking committed; return what we have rather than failing it.
		s.log.Error().Err(err).Str("appointment_id", created.ID.String()).Msg("hydrate booked appointment")
		detail = &AppointmentDetail{Appointment: *created}
	}

	s.publish(ctx, notify.EventAppointmentBooked, detail)

	return detail, nil
}

// normalize re-expresses the request in the clinic zone and derives the civil
// date, weekday and time-of-day window. Input errors are caught here, before
// any database access.
func (s *Service) normalize(req BookingRequest) (bookingWindow, error) {
	if req.PatientID == uuid.Nil {
		return bookingWindow{}, fmt.Errorf("%w: patient_id is required", ErrInvalidInput)
	}
	if req.ClinicID == uuid.Nil {
		return bookingWindow{}, fmt.Errorf("%w: clinic_id is required", ErrInvalidInput)
	}
	if req.StartAt.IsZero() {
		return bookingWindow{}, fmt.Errorf("%w: start is required", ErrInvalidInput)
	}
	if req.DurationMinutes <= 0 {
		return bookingWindow{}, fmt.Errorf("%w: duration must be a positive number of minutes", ErrInvalidInput)
	}

	start := req.StartAt.In(s.loc).Truncate(time.Minute)
	end := start.Add(time.Duration(req.DurationMinutes) * time.Minute)

	startMinute := minuteOfDay(start, s.loc)
	endMinute := startMinute + req.DurationMinutes
	if endMinute > 24*60 {
		return bookingWindow{}, fmt.Errorf("%w: appointment must end on the same day it starts", ErrInvalidInput)
	}

	return bookingWindow{
		patientID:      req.PatientID,
		clinicID:       req.ClinicID,
		practitionerID: req.PractitionerID,
		start:          start,
		end:            end,
		date:           civilDate(start, s.loc),
		weekday:        start.Weekday(),
		startMinute:    startMinute,
		endMinute:      endMinute,
	}, nil
}

// runTx executes fn under the bounded conflict-retry budget every mutating
// path shares. Serialization aborts never reach the caller raw: they are
// retried, and an exhausted budget surfaces as ErrBookingConflict.
func (s *Service) runTx(ctx context.Context, fn func(Repository) error) error {
	for attempt := 1; ; attempt++ {
		err := s.tx.InTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrTxConflict) {
			return err
		}
		if attempt >= s.retries {
			return ErrBookingConflict
		}
		s.log.Warn().Int("attempt", attempt).Msg("transaction conflict, retrying")
	}
}

// CancelAppointment flips a non-cancelled appointment to cancelled and
// releases the occupied override it wrote at booking time, atomically.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var cancelled *Appointment

	err := s.runTx(ctx, func(repo Repository) error {
		appt, err := repo.GetAppointmentByID(ctx, id)
		if err != nil {
			return err
		}
		if appt.Status == StatusCancelled {
			return ErrAlreadyCancelled
		}

		updated, err := repo.UpdateAppointmentStatus(ctx, id, appt.Status, StatusCancelled)
		if err != nil {
			return fmt.Errorf("cancel appointment: %w", err)
		}

		if updated.PractitionerID != nil {
			start := updated.StartAt.In(s.loc)
			startMinute := minuteOfDay(start, s.loc)
			err = repo.DeleteOccupiedOverride(ctx,
				*updated.PractitionerID,
				civilDate(start, s.loc),
				startMinute,
				startMinute+updated.DurationMinutes,
			)
			if err != nil {
				return err
			}
		}

		cancelled = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	detail, err := s.store.GetAppointmentDetail(ctx, cancelled.ID)
	if err != nil {
		detail = &AppointmentDetail{Appointment: *cancelled}
	}
	s.publish(ctx, notify.EventAppointmentCancelled, detail)

	return cancelled, nil
}

// GetAppointment retrieves a fully hydrated appointment by ID.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	detail, err := s.store.GetAppointmentDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// ListPractitionerDay returns the practitioner's non-cancelled appointments
// touching a civil date.
func (s *Service) ListPractitionerDay(ctx context.Context, practitionerID uuid.UUID, date time.Time) ([]Appointment, error) {
	if _, err := s.store.GetPractitionerByID(ctx, practitionerID); err != nil {
		return nil, err
	}

	year, month, day := date.Date()
	dayStart := time.Date(year, month, day, 0, 0, 0, 0, s.loc)
	appts, err := s.store.ListAppointmentsOverlapping(ctx, practitionerID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("list practitioner day: %w", err)
	}
	return appts, nil
}

// ReleaseStalePending cancels pending appointments older than the configured
// TTL, freeing their windows. Intended to be called periodically by the
// sweeper binary. Returns how many were released.
func (s *Service) ReleaseStalePending(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.pendingTTL)
	stale, err := s.store.FindStalePending(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find stale pending appointments: %w", err)
	}

	released := 0
	for _, appt := range stale {
		if _, err := s.CancelAppointment(ctx, appt.ID); err != nil {
			if errors.Is(err, ErrAlreadyCancelled) || errors.Is(err, ErrAppointmentNotFound) {
				continue
			}
			s.log.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("release stale pending appointment")
			continue
		}
		released++
	}

	return released, nil
}

// publish pushes a notification for the clinic. Failures are logged and
// swallowed: the booking already committed and must not be affected.
func (s *Service) publish(ctx context.Context, eventType string, detail *AppointmentDetail) {
	ev := notify.Event{
		Type:             eventType,
		AppointmentID:    detail.ID,
		ClinicID:         detail.ClinicID,
		PatientName:      detail.PatientName,
		PractitionerName: detail.PractitionerName,
		StartAt:          detail.StartAt,
		DurationMinutes:  detail.DurationMinutes,
		OccurredAt:       time.Now(),
	}

	if err := s.pub.Publish(ctx, detail.ClinicID, ev); err != nil {
		s.log.Error().Err(err).
			Str("appointment_id", detail.ID.String()).
			Str("event", eventType).
			Msg("publish notification")
	}
}

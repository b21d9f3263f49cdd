package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so the same repository
// serves plain reads and the transactional booking path.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	db DBTX
}

func NewPgRepository(db DBTX) *PgRepository {
	return &PgRepository{db: db}
}

// Helpers

func scanClinic(row pgx.Row) (*Clinic, error) {
	var c Clinic

	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClinicNotFound
		}
		return nil, err
	}

	return &c, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.ClinicID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanPractitioner(row pgx.Row) (*Practitioner, error) {
	var p Practitioner

	err := row.Scan(
		&p.ID,
		&p.ClinicID,
		&p.Name,
		&p.Specialties,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPractitionerNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanRule(row pgx.Row) (*AvailabilityRule, error) {
	var r AvailabilityRule
	var weekday *int16
	var date *time.Time

	err := row.Scan(
		&r.ID,
		&r.PractitionerID,
		&r.ClinicID,
		&weekday,
		&date,
		&r.StartMinute,
		&r.EndMinute,
		&r.Kind,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if weekday != nil {
		wd := time.Weekday(*weekday)
		r.Weekday = &wd
	}
	r.Date = date
	return &r, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var practitionerID *uuid.UUID

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.ClinicID,
		&practitionerID,
		&a.StartAt,
		&a.DurationMinutes,
		&a.Status,
		&a.Context,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.PractitionerID = practitionerID
	return &a, nil
}

const ruleColumns = `id, practitioner_id, clinic_id, weekday, rule_date, start_minute, end_minute, kind, created_at, updated_at`

const appointmentColumns = `id, patient_id, clinic_id, practitioner_id, start_at, duration_minutes, status, context, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetClinicByID(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, created_at, updated_at
		FROM clinics
		WHERE id = $1
	`, id)
	return scanClinic(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, clinic_id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, clinic_id, name, specialties, created_at, updated_at
		FROM practitioners
		WHERE id = $1
	`, id)
	return scanPractitioner(row)
}

func (r *PgRepository) ListRecurringRules(ctx context.Context, practitionerID uuid.UUID, weekday time.Weekday) ([]AvailabilityRule, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM availability_rules
		WHERE practitioner_id = $1
		  AND weekday = $2
		  AND rule_date IS NULL
		ORDER BY start_minute
	`, practitionerID, int16(weekday))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRules(rows)
}

func (r *PgRepository) ListOverrideRules(ctx context.Context, practitionerID uuid.UUID, date time.Time) ([]AvailabilityRule, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM availability_rules
		WHERE practitioner_id = $1
		  AND rule_date = $2
		  AND weekday IS NULL
		ORDER BY start_minute
	`, practitionerID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRules(rows)
}

func collectRules(rows pgx.Rows) ([]AvailabilityRule, error) {
	var result []AvailabilityRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rule)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) UpsertRecurringRule(ctx context.Context, rule AvailabilityRule) (*AvailabilityRule, error) {
	if rule.Weekday == nil {
		return nil, fmt.Errorf("recurring rule requires a weekday")
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO availability_rules
			(id, practitioner_id, clinic_id, weekday, start_minute, end_minute, kind, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		ON CONFLICT (practitioner_id, weekday) WHERE rule_date IS NULL
		DO UPDATE SET
			start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute,
			kind = EXCLUDED.kind,
			updated_at = now()
		RETURNING `+ruleColumns+`
	`, uuid.New(), rule.PractitionerID, rule.ClinicID, int16(*rule.Weekday), rule.StartMinute, rule.EndMinute, rule.Kind)

	return scanRule(row)
}

func (r *PgRepository) UpsertOverrideRule(ctx context.Context, rule AvailabilityRule) (*AvailabilityRule, error) {
	if rule.Date == nil {
		return nil, fmt.Errorf("override rule requires a date")
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO availability_rules
			(id, practitioner_id, clinic_id, rule_date, start_minute, end_minute, kind, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		ON CONFLICT (practitioner_id, rule_date, start_minute, end_minute) WHERE weekday IS NULL
		DO UPDATE SET
			kind = EXCLUDED.kind,
			updated_at = now()
		RETURNING `+ruleColumns+`
	`, uuid.New(), rule.PractitionerID, rule.ClinicID, *rule.Date, rule.StartMinute, rule.EndMinute, rule.Kind)

	return scanRule(row)
}

func (r *PgRepository) DeleteOccupiedOverride(ctx context.Context, practitionerID uuid.UUID, date time.Time, startMinute, endMinute int) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM availability_rules
		WHERE practitioner_id = $1
		  AND rule_date = $2
		  AND start_minute = $3
		  AND end_minute = $4
		  AND kind = 'occupied'
	`, practitionerID, date, startMinute, endMinute)
	if err != nil {
		return fmt.Errorf("delete occupied override: %w", err)
	}
	return nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	row := r.db.QueryRow(ctx, `
		SELECT a.id, a.patient_id, a.clinic_id, a.practitioner_id, a.start_at,
		       a.duration_minutes, a.status, a.context, a.created_at, a.updated_at,
		       p.name, COALESCE(pr.name, '')
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		LEFT JOIN practitioners pr ON pr.id = a.practitioner_id
		WHERE a.id = $1
	`, id)

	var d AppointmentDetail
	var practitionerID *uuid.UUID

	err := row.Scan(
		&d.ID,
		&d.PatientID,
		&d.ClinicID,
		&practitionerID,
		&d.StartAt,
		&d.DurationMinutes,
		&d.Status,
		&d.Context,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.PatientName,
		&d.PractitionerName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	d.PractitionerID = practitionerID
	return &d, nil
}

func (r *PgRepository) FindAppointmentAtStart(ctx context.Context, patientID, clinicID uuid.UUID, startAt time.Time) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		  AND clinic_id = $2
		  AND start_at = $3
		  AND status <> 'cancelled'
		LIMIT 1
	`, patientID, clinicID, startAt)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointmentsOverlapping(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE practitioner_id = $1
		  AND status <> 'cancelled'
		  AND start_at < $3
		  AND start_at + make_interval(mins => duration_minutes) > $2
		ORDER BY start_at
	`, practitionerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) CreateAppointment(ctx context.Context, appt Appointment) (*Appointment, error) {
	id := appt.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO appointments
			(id, patient_id, clinic_id, practitioner_id, start_at, duration_minutes, status, context, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, appt.PatientID, appt.ClinicID, appt.PractitionerID, appt.StartAt, appt.DurationMinutes, appt.Status, appt.Context)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) FindStalePending(ctx context.Context, olderThan time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'pending'
		  AND created_at < $1
	`, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

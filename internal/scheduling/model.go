package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/careloop/clinic-scheduling/internal/interval"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusPending   AppointmentStatus = "pending"
	StatusCancelled AppointmentStatus = "cancelled"
)

// ParseStatus normalizes a status string to its canonical lowercase form.
func ParseStatus(raw string) (AppointmentStatus, error) {
	switch AppointmentStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusScheduled:
		return StatusScheduled, nil
	case StatusPending:
		return StatusPending, nil
	case StatusCancelled:
		return StatusCancelled, nil
	}
	return "", fmt.Errorf("unknown appointment status %q", raw)
}

// RuleKind says why a window appears in the availability table.
// open windows are bookable; blocked windows are administrative blocks;
// occupied windows are written by the booking path when a slot is taken.
type RuleKind string

const (
	RuleOpen     RuleKind = "open"
	RuleBlocked  RuleKind = "blocked"
	RuleOccupied RuleKind = "occupied"
)

type Clinic struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	ClinicID  uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Practitioner struct {
	ID          uuid.UUID
	ClinicID    uuid.UUID
	Name        string
	Specialties []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AvailabilityRule is either a weekly recurring window (Weekday set) or a
// date-specific override (Date set), never both. Start and end are minutes
// since midnight in the clinic's zone; only the time of day is stored, the
// recurring variant is remapped onto a concrete date by the resolver.
type AvailabilityRule struct {
	ID             uuid.UUID
	PractitionerID uuid.UUID
	ClinicID       uuid.UUID
	Weekday        *time.Weekday
	Date           *time.Time
	StartMinute    int
	EndMinute      int
	Kind           RuleKind
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (r AvailabilityRule) IsRecurring() bool {
	return r.Weekday != nil
}

// WindowOn maps the rule's time-of-day span onto the given civil date in loc.
func (r AvailabilityRule) WindowOn(year int, month time.Month, day int, loc *time.Location) interval.Interval {
	return interval.Interval{
		Start: time.Date(year, month, day, 0, r.StartMinute, 0, 0, loc),
		End:   time.Date(year, month, day, 0, r.EndMinute, 0, 0, loc),
	}
}

type Appointment struct {
	ID              uuid.UUID
	PatientID       uuid.UUID
	ClinicID        uuid.UUID
	PractitionerID  *uuid.UUID
	StartAt         time.Time
	DurationMinutes int
	Status          AppointmentStatus
	Context         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (a Appointment) EndAt() time.Time {
	return a.StartAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

func (a Appointment) Interval() interval.Interval {
	return interval.Interval{Start: a.StartAt, End: a.EndAt()}
}

// AppointmentDetail is an appointment hydrated with display names.
type AppointmentDetail struct {
	Appointment
	PatientName      string
	PractitionerName string
}

// TimeWindow is a free span formatted as local time-of-day, the shape the
// availability endpoint returns.
type TimeWindow struct {
	Start string `json:"start_time"`
	End   string `json:"end_time"`
}

// minuteOfDay returns minutes since midnight of t expressed in loc.
func minuteOfDay(t time.Time, loc *time.Location) int {
	local := t.In(loc)
	return local.Hour()*60 + local.Minute()
}

// civilDate normalizes t (in loc) to its calendar date, stored as a UTC
// midnight so date columns compare cleanly.
func civilDate(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

func formatMinute(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

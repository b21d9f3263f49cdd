package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/careloop/clinic-scheduling/internal/scheduling"
)

type BookAppointmentRequest struct {
	PatientID       string `json:"patient_id"`
	ClinicID        string `json:"clinic_id"`
	PractitionerID  string `json:"practitioner_id,omitempty"`
	Start           string `json:"start"` // RFC 3339, any offset
	DurationMinutes int    `json:"duration_minutes"`
	Context         string `json:"context,omitempty"`
}

type AppointmentResponse struct {
	ID               uuid.UUID  `json:"id"`
	PatientID        uuid.UUID  `json:"patient_id"`
	ClinicID         uuid.UUID  `json:"clinic_id"`
	PractitionerID   *uuid.UUID `json:"practitioner_id,omitempty"`
	PatientName      string     `json:"patient_name,omitempty"`
	PractitionerName string     `json:"practitioner_name,omitempty"`
	Start            time.Time  `json:"start"`
	DurationMinutes  int        `json:"duration_minutes"`
	Status           string     `json:"status"`
	Context          string     `json:"context,omitempty"`
}

func toAppointmentResponse(a scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		PatientID:       a.PatientID,
		ClinicID:        a.ClinicID,
		PractitionerID:  a.PractitionerID,
		Start:           a.StartAt,
		DurationMinutes: a.DurationMinutes,
		Status:          string(a.Status),
		Context:         a.Context,
	}
}

func toDetailResponse(d *scheduling.AppointmentDetail) AppointmentResponse {
	resp := toAppointmentResponse(d.Appointment)
	resp.PatientName = d.PatientName
	resp.PractitionerName = d.PractitionerName
	return resp
}

type AvailabilityResponse struct {
	PractitionerID uuid.UUID                 `json:"practitioner_id"`
	Date           string                    `json:"date"`
	FreeWindows    []scheduling.TimeWindow   `json:"free_windows"`
}

type BlockRangeRequest struct {
	Start   string `json:"start"` // RFC 3339
	End     string `json:"end"`
	Blocked bool   `json:"blocked"`
}

type BlockSlotRequest struct {
	ClinicID string `json:"clinic_id,omitempty"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Blocked  bool   `json:"blocked"`
}

type RecurringRuleRequest struct {
	Weekday     int  `json:"weekday"` // 0=Sunday .. 6=Saturday
	StartMinute int  `json:"start_minute"`
	EndMinute   int  `json:"end_minute"`
	Blocked     bool `json:"blocked"`
}

type RuleResponse struct {
	ID             uuid.UUID `json:"id"`
	PractitionerID uuid.UUID `json:"practitioner_id"`
	ClinicID       uuid.UUID `json:"clinic_id"`
	Weekday        *int      `json:"weekday,omitempty"`
	Date           string    `json:"date,omitempty"`
	StartMinute    int       `json:"start_minute"`
	EndMinute      int       `json:"end_minute"`
	Kind           string    `json:"kind"`
}

func toRuleResponse(r scheduling.AvailabilityRule) RuleResponse {
	resp := RuleResponse{
		ID:             r.ID,
		PractitionerID: r.PractitionerID,
		ClinicID:       r.ClinicID,
		StartMinute:    r.StartMinute,
		EndMinute:      r.EndMinute,
		Kind:           string(r.Kind),
	}
	if r.Weekday != nil {
		wd := int(*r.Weekday)
		resp.Weekday = &wd
	}
	if r.Date != nil {
		resp.Date = r.Date.Format("2006-01-02")
	}
	return resp
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

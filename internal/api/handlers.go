package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/careloop/clinic-scheduling/internal/scheduling"
)

// Scheduler is the slice of the scheduling service the HTTP layer depends on.
type Scheduler interface {
	BookAppointment(ctx context.Context, req scheduling.BookingRequest) (*scheduling.AppointmentDetail, error)
	CancelAppointment(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*scheduling.AppointmentDetail, error)
	ResolveAvailability(ctx context.Context, practitionerID uuid.UUID, date time.Time) ([]scheduling.TimeWindow, error)
	ListPractitionerDay(ctx context.Context, practitionerID uuid.UUID, date time.Time) ([]scheduling.Appointment, error)
	BlockRange(ctx context.Context, in scheduling.BlockRangeInput) ([]scheduling.AvailabilityRule, error)
	BlockSlot(ctx context.Context, in scheduling.BlockSlotInput) (*scheduling.AvailabilityRule, error)
	SetRecurringRule(ctx context.Context, in scheduling.RecurringRuleInput) (*scheduling.AvailabilityRule, error)
}

func bookAppointmentHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		clinicID, err := uuid.Parse(req.ClinicID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_clinic_id", "clinic_id must be a valid UUID")
			return
		}

		var practitionerID *uuid.UUID
		if req.PractitionerID != "" {
			id, err := uuid.Parse(req.PractitionerID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitioner_id must be a valid UUID")
				return
			}
			practitionerID = &id
		}

		start, err := time.Parse(time.RFC3339, req.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", "start must be an RFC 3339 datetime")
			return
		}

		detail, err := svc.BookAppointment(r.Context(), scheduling.BookingRequest{
			PatientID:       patientID,
			ClinicID:        clinicID,
			PractitionerID:  practitionerID,
			StartAt:         start,
			DurationMinutes: req.DurationMinutes,
			Context:         req.Context,
		})
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toDetailResponse(detail))
	}
}

func cancelAppointmentHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.CancelAppointment(r.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, scheduling.ErrAppointmentNotFound):
				writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
			case errors.Is(err, scheduling.ErrAlreadyCancelled):
				writeError(w, http.StatusConflict, "already_cancelled", err.Error())
			case errors.Is(err, scheduling.ErrBookingConflict):
				writeError(w, http.StatusConflict, "booking_conflict", err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "internal_error", "could not cancel appointment")
			}
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func getAppointmentHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		detail, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			if errors.Is(err, scheduling.ErrAppointmentNotFound) {
				writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
			} else {
				writeError(w, http.StatusInternalServerError, "internal_error", "could not load appointment")
			}
			return
		}

		writeJSON(w, http.StatusOK, toDetailResponse(detail))
	}
}

func availabilityHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		practitionerID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "id must be a valid UUID")
			return
		}

		date, ok := parseDateParam(w, r)
		if !ok {
			return
		}

		windows, err := svc.ResolveAvailability(r.Context(), practitionerID, date)
		if err != nil {
			if errors.Is(err, scheduling.ErrPractitionerNotFound) {
				writeError(w, http.StatusNotFound, "practitioner_not_found", err.Error())
			} else {
				writeError(w, http.StatusInternalServerError, "internal_error", "could not resolve availability")
			}
			return
		}

		writeJSON(w, http.StatusOK, AvailabilityResponse{
			PractitionerID: practitionerID,
			Date:           date.Format("2006-01-02"),
			FreeWindows:    windows,
		})
	}
}

func practitionerDayHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		practitionerID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "id must be a valid UUID")
			return
		}

		date, ok := parseDateParam(w, r)
		if !ok {
			return
		}

		appts, err := svc.ListPractitionerDay(r.Context(), practitionerID, date)
		if err != nil {
			if errors.Is(err, scheduling.ErrPractitionerNotFound) {
				writeError(w, http.StatusNotFound, "practitioner_not_found", err.Error())
			} else {
				writeError(w, http.StatusInternalServerError, "internal_error", "could not list appointments")
			}
			return
		}

		out := make([]AppointmentResponse, 0, len(appts))
		for _, a := range appts {
			out = append(out, toAppointmentResponse(a))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func blockRangeHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		practitionerID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "id must be a valid UUID")
			return
		}

		var req BlockRangeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		start, err := time.Parse(time.RFC3339, req.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", "start must be an RFC 3339 datetime")
			return
		}
		end, err := time.Parse(time.RFC3339, req.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end", "end must be an RFC 3339 datetime")
			return
		}

		rules, err := svc.BlockRange(r.Context(), scheduling.BlockRangeInput{
			PractitionerID: practitionerID,
			Start:          start,
			End:            end,
			Blocked:        req.Blocked,
		})
		if err != nil {
			handleRuleError(w, err)
			return
		}

		out := make([]RuleResponse, 0, len(rules))
		for _, rule := range rules {
			out = append(out, toRuleResponse(rule))
		}
		writeJSON(w, http.StatusCreated, out)
	}
}

func blockSlotHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		practitionerID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "id must be a valid UUID")
			return
		}

		var req BlockSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		var clinicID uuid.UUID
		if req.ClinicID != "" {
			clinicID, err = uuid.Parse(req.ClinicID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_clinic_id", "clinic_id must be a valid UUID")
				return
			}
		}

		start, err := time.Parse(time.RFC3339, req.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", "start must be an RFC 3339 datetime")
			return
		}
		end, err := time.Parse(time.RFC3339, req.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end", "end must be an RFC 3339 datetime")
			return
		}

		rule, err := svc.BlockSlot(r.Context(), scheduling.BlockSlotInput{
			PractitionerID: practitionerID,
			ClinicID:       clinicID,
			Start:          start,
			End:            end,
			Blocked:        req.Blocked,
		})
		if err != nil {
			handleRuleError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toRuleResponse(*rule))
	}
}

func recurringRuleHandler(svc Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		practitionerID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "id must be a valid UUID")
			return
		}

		var req RecurringRuleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		rule, err := svc.SetRecurringRule(r.Context(), scheduling.RecurringRuleInput{
			PractitionerID: practitionerID,
			Weekday:        time.Weekday(req.Weekday),
			StartMinute:    req.StartMinute,
			EndMinute:      req.EndMinute,
			Blocked:        req.Blocked,
		})
		if err != nil {
			handleRuleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toRuleResponse(*rule))
	}
}

// handleBookingError maps every validator rejection to its own machine code.
// Validation failures are the client's problem; only unknown errors become 500s.
func handleBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduling.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, scheduling.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, scheduling.ErrClinicNotFound):
		writeError(w, http.StatusNotFound, "clinic_not_found", err.Error())
	case errors.Is(err, scheduling.ErrPractitionerNotFound):
		writeError(w, http.StatusNotFound, "practitioner_not_found", err.Error())
	case errors.Is(err, scheduling.ErrPatientNotInClinic):
		writeError(w, http.StatusConflict, "patient_not_in_clinic", err.Error())
	case errors.Is(err, scheduling.ErrPractitionerNotInClinic):
		writeError(w, http.StatusConflict, "practitioner_not_in_clinic", err.Error())
	case errors.Is(err, scheduling.ErrDuplicateBooking):
		writeError(w, http.StatusConflict, "duplicate_booking", err.Error())
	case errors.Is(err, scheduling.ErrSlotBlocked):
		writeError(w, http.StatusConflict, "slot_blocked", err.Error())
	case errors.Is(err, scheduling.ErrOutsideAvailability):
		writeError(w, http.StatusConflict, "outside_availability", err.Error())
	case errors.Is(err, scheduling.ErrOverlappingAppointment):
		writeError(w, http.StatusConflict, "overlapping_appointment", err.Error())
	case errors.Is(err, scheduling.ErrSlotOccupied):
		writeError(w, http.StatusConflict, "slot_occupied", err.Error())
	case errors.Is(err, scheduling.ErrBookingConflict):
		writeError(w, http.StatusConflict, "booking_conflict", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "booking failed")
	}
}

func handleRuleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduling.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, scheduling.ErrPractitionerNotFound):
		writeError(w, http.StatusNotFound, "practitioner_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "could not update availability")
	}
}

func parseDateParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing_date", "date query parameter is required")
		return time.Time{}, false
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be formatted YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

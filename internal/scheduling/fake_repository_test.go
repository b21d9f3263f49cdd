package scheduling

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// fakeRepo is an in-memory Repository used by the service and validator
// tests. It mirrors the database constraints that matter: the recurring and
// override unique keys.
type fakeRepo struct {
	mu            sync.RWMutex
	clinics       map[uuid.UUID]Clinic
	patients      map[uuid.UUID]Patient
	practitioners map[uuid.UUID]Practitioner
	rules         map[uuid.UUID]AvailabilityRule
	appointments  map[uuid.UUID]Appointment
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		clinics:       make(map[uuid.UUID]Clinic),
		patients:      make(map[uuid.UUID]Patient),
		practitioners: make(map[uuid.UUID]Practitioner),
		rules:         make(map[uuid.UUID]AvailabilityRule),
		appointments:  make(map[uuid.UUID]Appointment),
	}
}

func (f *fakeRepo) addClinic(name string) Clinic {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := Clinic{ID: uuid.New(), Name: name, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	f.clinics[c.ID] = c
	return c
}

func (f *fakeRepo) addPatient(clinicID uuid.UUID, name string) Patient {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := Patient{ID: uuid.New(), ClinicID: clinicID, Name: name, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	f.patients[p.ID] = p
	return p
}

func (f *fakeRepo) addPractitioner(clinicID uuid.UUID, name string) Practitioner {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := Practitioner{ID: uuid.New(), ClinicID: clinicID, Name: name, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	f.practitioners[p.ID] = p
	return p
}

func (f *fakeRepo) snapshot() (map[uuid.UUID]AvailabilityRule, map[uuid.UUID]Appointment) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	rules := make(map[uuid.UUID]AvailabilityRule, len(f.rules))
	for k, v := range f.rules {
		rules[k] = v
	}
	appts := make(map[uuid.UUID]Appointment, len(f.appointments))
	for k, v := range f.appointments {
		appts[k] = v
	}
	return rules, appts
}

func (f *fakeRepo) restore(rules map[uuid.UUID]AvailabilityRule, appts map[uuid.UUID]Appointment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = rules
	f.appointments = appts
}

func (f *fakeRepo) GetClinicByID(_ context.Context, id uuid.UUID) (*Clinic, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	c, ok := f.clinics[id]
	if !ok {
		return nil, ErrClinicNotFound
	}
	return &c, nil
}

func (f *fakeRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (f *fakeRepo) GetPractitionerByID(_ context.Context, id uuid.UUID) (*Practitioner, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.practitioners[id]
	if !ok {
		return nil, ErrPractitionerNotFound
	}
	return &p, nil
}

func (f *fakeRepo) ListRecurringRules(_ context.Context, practitionerID uuid.UUID, weekday time.Weekday) ([]AvailabilityRule, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []AvailabilityRule
	for _, r := range f.rules {
		if r.PractitionerID == practitionerID && r.Weekday != nil && *r.Weekday == weekday {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListOverrideRules(_ context.Context, practitionerID uuid.UUID, date time.Time) ([]AvailabilityRule, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []AvailabilityRule
	for _, r := range f.rules {
		if r.PractitionerID == practitionerID && r.Date != nil && r.Date.Equal(date) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpsertRecurringRule(_ context.Context, rule AvailabilityRule) (*AvailabilityRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, existing := range f.rules {
		if existing.PractitionerID == rule.PractitionerID &&
			existing.Weekday != nil && rule.Weekday != nil &&
			*existing.Weekday == *rule.Weekday {
			existing.StartMinute = rule.StartMinute
			existing.EndMinute = rule.EndMinute
			existing.Kind = rule.Kind
			existing.UpdatedAt = time.Now()
			f.rules[id] = existing
			return &existing, nil
		}
	}
	rule.ID = uuid.New()
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = rule.CreatedAt
	f.rules[rule.ID] = rule
	return &rule, nil
}

func (f *fakeRepo) UpsertOverrideRule(_ context.Context, rule AvailabilityRule) (*AvailabilityRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, existing := range f.rules {
		if existing.PractitionerID == rule.PractitionerID &&
			existing.Date != nil && rule.Date != nil &&
			existing.Date.Equal(*rule.Date) &&
			existing.StartMinute == rule.StartMinute &&
			existing.EndMinute == rule.EndMinute {
			existing.Kind = rule.Kind
			existing.UpdatedAt = time.Now()
			f.rules[id] = existing
			return &existing, nil
		}
	}
	rule.ID = uuid.New()
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = rule.CreatedAt
	f.rules[rule.ID] = rule
	return &rule, nil
}

func (f *fakeRepo) DeleteOccupiedOverride(_ context.Context, practitionerID uuid.UUID, date time.Time, startMinute, endMinute int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, r := range f.rules {
		if r.PractitionerID == practitionerID && r.Kind == RuleOccupied &&
			r.Date != nil && r.Date.Equal(date) &&
			r.StartMinute == startMinute && r.EndMinute == endMinute {
			delete(f.rules, id)
		}
	}
	return nil
}

func (f *fakeRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	a, ok := f.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (f *fakeRepo) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	a, err := f.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	d := AppointmentDetail{Appointment: *a}
	if p, ok := f.patients[a.PatientID]; ok {
		d.PatientName = p.Name
	}
	if a.PractitionerID != nil {
		if p, ok := f.practitioners[*a.PractitionerID]; ok {
			d.PractitionerName = p.Name
		}
	}
	return &d, nil
}

func (f *fakeRepo) FindAppointmentAtStart(_ context.Context, patientID, clinicID uuid.UUID, startAt time.Time) (*Appointment, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, a := range f.appointments {
		if a.PatientID == patientID && a.ClinicID == clinicID &&
			a.StartAt.Equal(startAt) && a.Status != StatusCancelled {
			return &a, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (f *fakeRepo) ListAppointmentsOverlapping(_ context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []Appointment
	for _, a := range f.appointments {
		if a.PractitionerID == nil || *a.PractitionerID != practitionerID || a.Status == StatusCancelled {
			continue
		}
		if a.StartAt.Before(to) && a.EndAt().After(from) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateAppointment(_ context.Context, appt Appointment) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	appt.CreatedAt = time.Now()
	appt.UpdatedAt = appt.CreatedAt
	f.appointments[appt.ID] = appt
	return &appt, nil
}

func (f *fakeRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	f.appointments[id] = a
	return &a, nil
}

func (f *fakeRepo) FindStalePending(_ context.Context, olderThan time.Time) ([]Appointment, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []Appointment
	for _, a := range f.appointments {
		if a.Status == StatusPending && a.CreatedAt.Before(olderThan) {
			out = append(out, a)
		}
	}
	return out, nil
}

// fakeTxRunner serializes transactions with a mutex and rolls mutations back
// when fn fails, which is all the atomicity the service logic needs in tests.
// conflictsLeft injects retryable aborts to exercise the retry budget.
type fakeTxRunner struct {
	repo          *fakeRepo
	mu            sync.Mutex
	conflictsLeft int
}

func (r *fakeTxRunner) InTx(_ context.Context, fn func(Repository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conflictsLeft > 0 {
		r.conflictsLeft--
		return ErrTxConflict
	}

	rules, appts := r.repo.snapshot()
	if err := fn(r.repo); err != nil {
		r.repo.restore(rules, appts)
		return err
	}
	return nil
}

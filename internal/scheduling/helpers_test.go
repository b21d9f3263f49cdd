package scheduling

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careloop/clinic-scheduling/internal/config"
	"github.com/careloop/clinic-scheduling/internal/notify"
)

// capturePublisher records published events for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *capturePublisher) Publish(_ context.Context, _ uuid.UUID, ev notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *capturePublisher) captured() []notify.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notify.Event, len(p.events))
	copy(out, p.events)
	return out
}

// failingPublisher rejects every event, standing in for an unreachable sink.
type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, uuid.UUID, notify.Event) error {
	return errors.New("notification sink unavailable")
}

type testEnv struct {
	svc    *Service
	repo   *fakeRepo
	runner *fakeTxRunner
	pub    *capturePublisher

	clinic       Clinic
	patient      Patient
	practitioner Practitioner
}

func newTestEnv() *testEnv {
	repo := newFakeRepo()
	runner := &fakeTxRunner{repo: repo}
	pub := &capturePublisher{}

	env := &testEnv{
		svc:    NewService(repo, runner, pub, testConfig(), zerolog.Nop()),
		repo:   repo,
		runner: runner,
		pub:    pub,
	}

	env.clinic = repo.addClinic("Riverside Clinic")
	env.patient = repo.addPatient(env.clinic.ID, "Ada Calhoun")
	env.practitioner = repo.addPractitioner(env.clinic.ID, "Dr. Imani Okafor")

	return env
}

func testConfig() config.Config {
	return config.Config{
		ClinicLocation: time.UTC,
		BookingRetries: 3,
		PendingTTL:     30 * time.Minute,
	}
}

// monday is a fixed date all scheduling tests anchor on: 2026-03-02 is a Monday.
var monday = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

func (e *testEnv) openMondays(start, end int) {
	weekday := time.Monday
	_, err := e.repo.UpsertRecurringRule(context.Background(), AvailabilityRule{
		PractitionerID: e.practitioner.ID,
		ClinicID:       e.clinic.ID,
		Weekday:        &weekday,
		StartMinute:    start,
		EndMinute:      end,
		Kind:           RuleOpen,
	})
	if err != nil {
		panic(err)
	}
}

func (e *testEnv) overrideOn(date time.Time, start, end int, kind RuleKind) {
	d := date
	_, err := e.repo.UpsertOverrideRule(context.Background(), AvailabilityRule{
		PractitionerID: e.practitioner.ID,
		ClinicID:       e.clinic.ID,
		Date:           &d,
		StartMinute:    start,
		EndMinute:      end,
		Kind:           kind,
	})
	if err != nil {
		panic(err)
	}
}

func (e *testEnv) bookingAt(hour, minute, duration int) BookingRequest {
	return BookingRequest{
		PatientID:       e.patient.ID,
		ClinicID:        e.clinic.ID,
		PractitionerID:  &e.practitioner.ID,
		StartAt:         monday.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute),
		DurationMinutes: duration,
	}
}

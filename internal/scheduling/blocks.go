package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type BlockRangeInput struct {
	PractitionerID uuid.UUID
	Start          time.Time
	End            time.Time
	Blocked        bool
}

// BlockRange writes one override row per local calendar day in [start, end],
// each carrying the request's wall-clock start/end time of day. A 3-day
// block 09:00-17:00 therefore produces three rows, not one spanning row.
func (s *Service) BlockRange(ctx context.Context, in BlockRangeInput) ([]AvailabilityRule, error) {
	practitioner, err := s.store.GetPractitionerByID(ctx, in.PractitionerID)
	if err != nil {
		return nil, err
	}

	start := in.Start.In(s.loc)
	end := in.End.In(s.loc)
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return nil, fmt.Errorf("%w: start must not be after end", ErrInvalidInput)
	}

	startMinute := minuteOfDay(start, s.loc)
	endMinute := endMinuteOfDay(end, s.loc)
	if endMinute <= startMinute {
		return nil, fmt.Errorf("%w: end time of day must be after start time of day", ErrInvalidInput)
	}

	kind := RuleBlocked
	if !in.Blocked {
		kind = RuleOpen
	}

	firstDay := civilDate(start, s.loc)
	lastDay := civilDate(end, s.loc)

	var rules []AvailabilityRule
	for day := firstDay; !day.After(lastDay); day = day.AddDate(0, 0, 1) {
		d := day
		rule, err := s.store.UpsertOverrideRule(ctx, AvailabilityRule{
			PractitionerID: practitioner.ID,
			ClinicID:       practitioner.ClinicID,
			Date:           &d,
			StartMinute:    startMinute,
			EndMinute:      endMinute,
			Kind:           kind,
		})
		if err != nil {
			return nil, fmt.Errorf("upsert override for %s: %w", d.Format("2006-01-02"), err)
		}
		rules = append(rules, *rule)
	}

	return rules, nil
}

type BlockSlotInput struct {
	PractitionerID uuid.UUID
	ClinicID       uuid.UUID // optional; resolved from the practitioner when nil
	Start          time.Time
	End            time.Time
	Blocked        bool
}

// BlockSlot writes a single override row for one date and time range.
func (s *Service) BlockSlot(ctx context.Context, in BlockSlotInput) (*AvailabilityRule, error) {
	practitioner, err := s.store.GetPractitionerByID(ctx, in.PractitionerID)
	if err != nil {
		return nil, err
	}

	clinicID := in.ClinicID
	if clinicID == uuid.Nil {
		clinicID = practitioner.ClinicID
	}

	start := in.Start.In(s.loc)
	end := in.End.In(s.loc)
	startMinute := minuteOfDay(start, s.loc)
	endMinute := endMinuteOfDay(end, s.loc)
	if endMinute <= startMinute {
		return nil, fmt.Errorf("%w: end must be after start", ErrInvalidInput)
	}
	if civilDate(start, s.loc) != civilDate(end.Add(-time.Minute), s.loc) {
		return nil, fmt.Errorf("%w: slot must fall on a single date", ErrInvalidInput)
	}

	kind := RuleBlocked
	if !in.Blocked {
		kind = RuleOpen
	}

	date := civilDate(start, s.loc)
	rule, err := s.store.UpsertOverrideRule(ctx, AvailabilityRule{
		PractitionerID: practitioner.ID,
		ClinicID:       clinicID,
		Date:           &date,
		StartMinute:    startMinute,
		EndMinute:      endMinute,
		Kind:           kind,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert slot override: %w", err)
	}

	return rule, nil
}

type RecurringRuleInput struct {
	PractitionerID uuid.UUID
	Weekday        time.Weekday
	StartMinute    int
	EndMinute      int
	Blocked        bool
}

// SetRecurringRule upserts a practitioner's weekly rule. The upsert key is
// (practitioner, weekday): at most one recurring rule exists per weekday.
func (s *Service) SetRecurringRule(ctx context.Context, in RecurringRuleInput) (*AvailabilityRule, error) {
	practitioner, err := s.store.GetPractitionerByID(ctx, in.PractitionerID)
	if err != nil {
		return nil, err
	}

	if in.Weekday < time.Sunday || in.Weekday > time.Saturday {
		return nil, fmt.Errorf("%w: weekday out of range", ErrInvalidInput)
	}
	if in.StartMinute < 0 || in.EndMinute > 24*60 || in.EndMinute <= in.StartMinute {
		return nil, fmt.Errorf("%w: rule window must satisfy 0 <= start < end <= 1440", ErrInvalidInput)
	}

	kind := RuleOpen
	if in.Blocked {
		kind = RuleBlocked
	}

	weekday := in.Weekday
	rule, err := s.store.UpsertRecurringRule(ctx, AvailabilityRule{
		PractitionerID: practitioner.ID,
		ClinicID:       practitioner.ClinicID,
		Weekday:        &weekday,
		StartMinute:    in.StartMinute,
		EndMinute:      in.EndMinute,
		Kind:           kind,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert recurring rule: %w", err)
	}

	return rule, nil
}

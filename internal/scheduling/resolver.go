package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/careloop/clinic-scheduling/internal/interval"
)

// FreeWindows is the pure core of availability resolution. rules holds the
// recurring rules for the date's weekday plus the date's overrides; appts
// holds the practitioner's appointments touching the day. The result is the
// open windows minus blocked/occupied windows minus appointment intervals,
// sorted and disjoint.
//
// A practitioner with no open rules at all resolves to nothing: absence of a
// rule means unavailable, not free-for-anything.
func FreeWindows(date time.Time, loc *time.Location, rules []AvailabilityRule, appts []Appointment) []interval.Interval {
	year, month, day := date.Date()

	var open, closed []interval.Interval
	for _, rule := range rules {
		w := rule.WindowOn(year, month, day, loc)
		switch rule.Kind {
		case RuleOpen:
			open = append(open, w)
		case RuleBlocked, RuleOccupied:
			closed = append(closed, w)
		}
	}

	available := interval.Merge(open)
	blocked := interval.Merge(closed)
	free := interval.Subtract(available, blocked)

	var booked []interval.Interval
	for _, a := range appts {
		if a.Status == StatusCancelled {
			continue
		}
		booked = append(booked, a.Interval())
	}

	return interval.Subtract(free, booked)
}

// ResolveAvailability returns the free windows for a practitioner on a civil
// date as local time-of-day pairs. Reads run outside any transaction; a
// slightly stale snapshot is acceptable on this path.
func (s *Service) ResolveAvailability(ctx context.Context, practitionerID uuid.UUID, date time.Time) ([]TimeWindow, error) {
	if _, err := s.store.GetPractitionerByID(ctx, practitionerID); err != nil {
		return nil, err
	}

	free, err := s.freeWindowsOn(ctx, s.store, practitionerID, date)
	if err != nil {
		return nil, err
	}

	windows := make([]TimeWindow, 0, len(free))
	for _, iv := range free {
		windows = append(windows, TimeWindow{
			Start: formatMinute(minuteOfDay(iv.Start, s.loc)),
			End:   formatMinute(endMinuteOfDay(iv.End, s.loc)),
		})
	}
	return windows, nil
}

func (s *Service) freeWindowsOn(ctx context.Context, repo Repository, practitionerID uuid.UUID, date time.Time) ([]interval.Interval, error) {
	// date is a civil date: its year/month/day are taken as-is and anchored
	// in the clinic zone, whatever location the caller parsed it in.
	year, month, day := date.Date()
	dayStart := time.Date(year, month, day, 0, 0, 0, 0, s.loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	recurring, err := repo.ListRecurringRules(ctx, practitionerID, dayStart.Weekday())
	if err != nil {
		return nil, fmt.Errorf("list recurring rules: %w", err)
	}

	overrides, err := repo.ListOverrideRules(ctx, practitionerID, civilDate(dayStart, s.loc))
	if err != nil {
		return nil, fmt.Errorf("list override rules: %w", err)
	}

	appts, err := repo.ListAppointmentsOverlapping(ctx, practitionerID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	// Recurring and override open windows union on the read path. The
	// booking validator is stricter: it covers a window from the date's open
	// overrides first and falls back to recurring only when there are none.
	rules := make([]AvailabilityRule, 0, len(recurring)+len(overrides))
	rules = append(rules, recurring...)
	rules = append(rules, overrides...)

	return FreeWindows(dayStart, s.loc, rules, appts), nil
}

// endMinuteOfDay is minuteOfDay except that a midnight end renders as 24:00
// rather than 00:00 of the next day.
func endMinuteOfDay(t time.Time, loc *time.Location) int {
	m := minuteOfDay(t, loc)
	if m == 0 {
		return 24 * 60
	}
	return m
}

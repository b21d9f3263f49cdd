// Package interval provides the time-interval arithmetic the availability
// resolver is built on. Intervals are half-open [Start, End); all functions
// are pure and treat their inputs as immutable.
package interval

import (
	"sort"
	"time"
)

type Interval struct {
	Start time.Time
	End   time.Time
}

// IsZeroLength reports whether the interval covers no time at all.
func (iv Interval) IsZeroLength() bool {
	return !iv.End.After(iv.Start)
}

// Overlaps reports whether two half-open intervals share any instant.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Contains reports whether iv fully covers other.
func (iv Interval) Contains(other Interval) bool {
	return !iv.Start.After(other.Start) && !iv.End.Before(other.End)
}

// Merge sorts the input by start time and coalesces overlapping or touching
// intervals. Touching endpoints merge: [9,12) and [12,17) become [9,17).
// Zero-length inputs are dropped. The result is sorted and disjoint.
func Merge(intervals []Interval) []Interval {
	in := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if !iv.IsZeroLength() {
			in = append(in, iv)
		}
	}
	if len(in) == 0 {
		return nil
	}

	sort.Slice(in, func(i, j int) bool {
		return in[i].Start.Before(in[j].Start)
	})

	out := []Interval{in[0]}
	for _, iv := range in[1:] {
		last := &out[len(out)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}

	return out
}

// Subtract removes every cut from every base segment. A cut that partially
// overlaps a segment splits it into the uncovered remainder; a cut that covers
// a segment removes it; non-overlapping cuts are no-ops. Zero-length
// remainders are discarded. Cuts may be supplied in any order; the result is
// the same either way.
func Subtract(base, cuts []Interval) []Interval {
	remaining := make([]Interval, 0, len(base))
	for _, iv := range base {
		if !iv.IsZeroLength() {
			remaining = append(remaining, iv)
		}
	}

	for _, cut := range cuts {
		if cut.IsZeroLength() {
			continue
		}

		next := make([]Interval, 0, len(remaining))
		for _, seg := range remaining {
			if !seg.Overlaps(cut) {
				next = append(next, seg)
				continue
			}
			if cut.Start.After(seg.Start) {
				next = append(next, Interval{Start: seg.Start, End: cut.Start})
			}
			if cut.End.Before(seg.End) {
				next = append(next, Interval{Start: cut.End, End: seg.End})
			}
		}
		remaining = next
	}

	if len(remaining) == 0 {
		return nil
	}
	return remaining
}
